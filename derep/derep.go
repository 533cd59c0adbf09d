// Package derep collapses the reads of one sample into unique sequences,
// keeping an abundance and a per-position mean quality for each.
package derep

import (
	"sort"

	"github.com/pkg/errors"
)

// Read is one quality-annotated read handed over by the filter stage.
type Read struct {
	Seq  string
	Qual []int
}

// WeightedRead is a read standing for Weight identical reads whose mean
// quality is Qual.
type WeightedRead struct {
	Seq    string
	Qual   []float64
	Weight int
}

// Unique is a distinct sequence observed in a sample.
//
// INVARIANT: Abundance >= 1 && len(Qual) == len(Seq)
type Unique struct {
	Seq string
	// Abundance is the number of reads folded into this unique.
	Abundance int
	// Qual is the per-position mean quality of the folded reads.
	Qual []float64
	// First is the index of the first input read with this sequence.
	First int
}

// Set is the dereplicated form of one sample (and one read direction).
type Set struct {
	// Uniques are sorted by decreasing abundance, then by first appearance.
	Uniques []Unique
	// Map[i] is the index in Uniques of the i'th input read.
	Map []int
}

// Dereplicate collapses reads into uniques. Reads with identical sequences
// are folded together; their qualities are averaged position by position.
func Dereplicate(reads []Read) (*Set, error) {
	b := newBuilder(len(reads))
	for i, r := range reads {
		if len(r.Qual) != len(r.Seq) {
			return nil, errors.Errorf("read %d: sequence length %d, quality length %d", i, len(r.Seq), len(r.Qual))
		}
		b.add(i, r.Seq, 1, func(j int) float64 { return float64(r.Qual[j]) })
	}
	return b.finish(), nil
}

// DereplicateWeighted is like Dereplicate, but each input stands for Weight
// reads. Dereplicating the output of Set.Reads reproduces the set.
func DereplicateWeighted(reads []WeightedRead) (*Set, error) {
	b := newBuilder(len(reads))
	for i, r := range reads {
		if len(r.Qual) != len(r.Seq) {
			return nil, errors.Errorf("read %d: sequence length %d, quality length %d", i, len(r.Seq), len(r.Qual))
		}
		if r.Weight < 1 {
			return nil, errors.Errorf("read %d: weight %d < 1", i, r.Weight)
		}
		b.add(i, r.Seq, r.Weight, func(j int) float64 { return r.Qual[j] })
	}
	return b.finish(), nil
}

type builder struct {
	index   map[string]int
	uniques []Unique
	readMap []int
}

func newBuilder(n int) *builder {
	return &builder{
		index:   map[string]int{},
		readMap: make([]int, n),
	}
}

// add folds weight reads with sequence seq and qualities qual(0..len-1).
func (b *builder) add(readIdx int, seq string, weight int, qual func(int) float64) {
	ui, ok := b.index[seq]
	if !ok {
		ui = len(b.uniques)
		b.index[seq] = ui
		u := Unique{Seq: seq, Qual: make([]float64, len(seq)), First: readIdx}
		for j := range u.Qual {
			u.Qual[j] = qual(j)
		}
		u.Abundance = weight
		b.uniques = append(b.uniques, u)
		b.readMap[readIdx] = ui
		return
	}
	u := &b.uniques[ui]
	n, w := float64(u.Abundance), float64(weight)
	for j := range u.Qual {
		u.Qual[j] = (u.Qual[j]*n + qual(j)*w) / (n + w)
	}
	u.Abundance += weight
	b.readMap[readIdx] = ui
}

func (b *builder) finish() *Set {
	order := make([]int, len(b.uniques))
	for i := range order {
		order[i] = i
	}
	// Sort in descending order of abundance; ties are broken by first
	// appearance, so the output is deterministic.
	sort.SliceStable(order, func(i, j int) bool {
		ui, uj := &b.uniques[order[i]], &b.uniques[order[j]]
		if ui.Abundance != uj.Abundance {
			return ui.Abundance > uj.Abundance
		}
		return ui.First < uj.First
	})
	rank := make([]int, len(order))
	s := &Set{Uniques: make([]Unique, len(order)), Map: b.readMap}
	for newIdx, oldIdx := range order {
		s.Uniques[newIdx] = b.uniques[oldIdx]
		rank[oldIdx] = newIdx
	}
	for i, ui := range s.Map {
		s.Map[i] = rank[ui]
	}
	return s
}

// Len returns the number of uniques.
func (s *Set) Len() int { return len(s.Uniques) }

// TotalReads returns the sum of abundances, i.e. the number of reads
// that were dereplicated.
func (s *Set) TotalReads() int {
	n := 0
	for _, u := range s.Uniques {
		n += u.Abundance
	}
	return n
}

// Reads expands the set into one weighted read per unique.
func (s *Set) Reads() []WeightedRead {
	r := make([]WeightedRead, len(s.Uniques))
	for i, u := range s.Uniques {
		r[i] = WeightedRead{Seq: u.Seq, Qual: u.Qual, Weight: u.Abundance}
	}
	return r
}

// Index returns the index of the unique with the given sequence, or -1.
func (s *Set) Index(seq string) int {
	for i := range s.Uniques {
		if s.Uniques[i].Seq == seq {
			return i
		}
	}
	return -1
}
