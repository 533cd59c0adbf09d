// Package merge joins the denoised forward and reverse variants of a sample
// into full-length amplicon sequences.
package merge

import (
	"sort"
	"strings"

	"github.com/grailbio/amplicon/dada"
	"github.com/grailbio/amplicon/derep"
	"github.com/grailbio/amplicon/dna"
	"github.com/pkg/errors"
)

// ErrInputMismatch is returned when the forward and reverse inputs of a
// sample do not describe the same read pairs.
var ErrInputMismatch = errors.New("forward and reverse reads do not match")

// Opts configures pair merging.
type Opts struct {
	// MinOverlap is the minimum length of the overlap between the forward
	// variant and the reverse complement of the reverse variant.
	MinOverlap int
	// MaxMismatch is the maximum number of mismatches allowed in the overlap.
	MaxMismatch int
	// JustConcatenate joins the forward variant, Spacer, and the reverse
	// complement of the reverse variant without looking for an overlap. Use
	// for amplicons longer than the combined read length.
	JustConcatenate bool
	// Spacer is inserted between the two halves when JustConcatenate is set.
	Spacer string
	// ReturnRejects includes the combinations that failed to merge in the
	// output, with Accept=false.
	ReturnRejects bool
}

// DefaultOpts are the default merge options.
var DefaultOpts = Opts{
	MinOverlap: 12,
	Spacer:     strings.Repeat("N", 10),
}

// Variant is a merged forward/reverse combination.
type Variant struct {
	// Seq is the merged sequence. It is empty for rejected combinations.
	Seq string
	// Abundance is the number of read pairs whose forward read belongs to
	// variant Forward and whose reverse read belongs to variant Reverse.
	Abundance int
	// Forward and Reverse are variant indices into the forward and reverse
	// denoising results.
	Forward, Reverse int
	// NMatch and NMismatch count the overlap columns.
	NMatch, NMismatch int
	// Accept is true if the combination merged.
	Accept bool
}

// Stats counts merge outcomes for a sample.
type Stats struct {
	// Pairs is the number of read pairs.
	Pairs int
	// Merged is the number of read pairs whose combination merged.
	Merged int
	// Rejected is the number of read pairs whose combination did not merge.
	Rejected int
	// Combinations is the number of distinct forward/reverse combinations,
	// and RejectedCombinations the number of those that did not merge.
	Combinations, RejectedCombinations int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Pairs += o.Pairs
	s.Merged += o.Merged
	s.Rejected += o.Rejected
	s.Combinations += o.Combinations
	s.RejectedCombinations += o.RejectedCombinations
	return s
}

// Direction is the dereplicated reads of one read direction of a sample,
// with their denoising result.
type Direction struct {
	Derep    *derep.Set
	Denoised *dada.Result
}

// variant returns the denoised variant of the i'th read.
func (d Direction) variant(i int) int {
	return d.Denoised.Map[d.Derep.Map[i]]
}

// Pairs merges the read pairs of a sample. The i'th forward read and the
// i'th reverse read must come from the same read pair. Read pairs are
// tallied by (forward variant, reverse variant), and each combination is
// merged once. The output is sorted by decreasing abundance, then by
// sequence.
func Pairs(fwd, rev Direction, opts Opts) ([]Variant, Stats, error) {
	var stats Stats
	nf, nr := len(fwd.Derep.Map), len(rev.Derep.Map)
	if nf != nr {
		return nil, stats, errors.Wrapf(ErrInputMismatch, "%d forward reads, %d reverse reads", nf, nr)
	}
	if len(fwd.Denoised.Map) != fwd.Derep.Len() || len(rev.Denoised.Map) != rev.Derep.Len() {
		return nil, stats, errors.Wrap(ErrInputMismatch, "denoising result does not match the dereplicated reads")
	}
	type combo struct{ f, r int }
	counts := map[combo]int{}
	var order []combo
	for i := 0; i < nf; i++ {
		c := combo{fwd.variant(i), rev.variant(i)}
		if _, ok := counts[c]; !ok {
			order = append(order, c)
		}
		counts[c]++
	}
	stats.Pairs = nf
	stats.Combinations = len(order)

	var out []Variant
	for _, c := range order {
		v := Join(fwd.Denoised.Variants[c.f].Seq, rev.Denoised.Variants[c.r].Seq, opts)
		v.Forward, v.Reverse, v.Abundance = c.f, c.r, counts[c]
		if v.Accept {
			stats.Merged += v.Abundance
		} else {
			stats.Rejected += v.Abundance
			stats.RejectedCombinations++
			if !opts.ReturnRejects {
				continue
			}
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := &out[i], &out[j]
		if vi.Abundance != vj.Abundance {
			return vi.Abundance > vj.Abundance
		}
		if vi.Seq != vj.Seq {
			return vi.Seq < vj.Seq
		}
		if vi.Forward != vj.Forward {
			return vi.Forward < vj.Forward
		}
		return vi.Reverse < vj.Reverse
	})
	return out, stats, nil
}

// Join merges a forward sequence with a reverse sequence. The reverse
// complement of rev is slid along fwd; the placement with the longest
// overlap of at least opts.MinOverlap bases and at most opts.MaxMismatch
// mismatches is used. Among placements with the longest overlap, the one
// with the fewest mismatches wins, and among those the one where the reverse
// complement starts first (the leftmost offset). Overlap columns take
// the forward base. A reverse complement that extends past the start of fwd,
// or a fwd that extends past the end of the reverse complement, is trimmed.
//
// The returned Variant has only Seq, NMatch, NMismatch and Accept set. For a
// rejected pair, NMatch and NMismatch describe the placement with the fewest
// mismatches.
func Join(fwd, rev string, opts Opts) Variant {
	rc := dna.ReverseComplement(rev)
	if opts.JustConcatenate {
		return Variant{Seq: fwd + opts.Spacer + rc, Accept: true}
	}
	minOverlap := opts.MinOverlap
	if minOverlap < 1 {
		minOverlap = 1
	}
	// Offset and overlap stats of the best accepted placement, and overlap
	// stats of the placement with the fewest mismatches. Offsets can be
	// negative, so the found flags record whether a placement was seen.
	var (
		found, foundClosest  bool
		best, bestN, bestMis int
		closestN, closestMis int
	)
	// o is the position of rc[0] relative to fwd[0].
	for o := -(len(rc) - minOverlap); o <= len(fwd)-minOverlap; o++ {
		start, end := o, o+len(rc)
		if start < 0 {
			start = 0
		}
		if end > len(fwd) {
			end = len(fwd)
		}
		n := end - start
		if n < minOverlap {
			continue
		}
		mis := 0
		for i := start; i < end; i++ {
			if fwd[i] != rc[i-o] {
				mis++
			}
		}
		if !foundClosest || mis < closestMis || (mis == closestMis && n > closestN) {
			foundClosest = true
			closestN, closestMis = n, mis
		}
		if mis > opts.MaxMismatch {
			continue
		}
		if !found || n > bestN || (n == bestN && mis < bestMis) {
			found = true
			best, bestN, bestMis = o, n, mis
		}
	}
	if !found {
		if !foundClosest {
			return Variant{}
		}
		return Variant{NMatch: closestN - closestMis, NMismatch: closestMis}
	}
	end := best + len(rc)
	var seq string
	if end <= len(fwd) {
		seq = fwd[:end]
	} else {
		seq = fwd + rc[len(fwd)-best:]
	}
	return Variant{Seq: seq, NMatch: bestN - bestMis, NMismatch: bestMis, Accept: true}
}
