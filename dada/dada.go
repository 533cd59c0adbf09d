// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package dada infers exact sequence variants from the dereplicated reads
// of a sample. Uniques are partitioned into clusters by a divisive
// algorithm: a unique whose abundance is too high to be explained as
// sequencing errors of its cluster center, under an error model, becomes the
// center of a new cluster.
//
// The package also implements the estimation loop that alternates between
// denoising and refitting the error model (LearnErrors).
package dada

import (
	"math"
	"sort"

	"github.com/grailbio/amplicon/align"
	"github.com/grailbio/amplicon/derep"
	"github.com/grailbio/amplicon/dna"
	"github.com/grailbio/amplicon/errmodel"
	"github.com/grailbio/base/log"
)

// Partition assigns every unique of a set to exactly one cluster.
//
// INVARIANT: Center[Centers[c]] == c for every cluster c.
type Partition struct {
	// Center[u] is the cluster index of unique u.
	Center []int
	// Centers[c] is the index of the unique at the center of cluster c.
	Centers []int
}

// Variant is a denoised sequence variant: one final cluster.
type Variant struct {
	// Seq is the sequence of the cluster center.
	Seq string
	// Abundance is the total abundance of the cluster members.
	Abundance int
	// Members lists the uniques in the cluster, in increasing order.
	Members []int
	// Center is the unique at the center of the cluster.
	Center int
	// PValue is the abundance p-value with which the center was promoted. It
	// is 1 for the initial center.
	PValue float64
}

// Result is the output of Denoise.
type Result struct {
	// Variants are sorted by decreasing abundance, then by sequence.
	Variants []Variant
	// Map[u] is the index in Variants of the cluster of unique u. It is the
	// same slice as Partition.Center.
	Map       []int
	Partition Partition
	// Converged is false if clustering stopped at the MaxClusters limit.
	Converged bool
	// Counts holds the abundance-weighted transitions observed between each
	// unique and its cluster center.
	Counts errmodel.Counts
}

// TotalAbundance returns the sum of the variant abundances.
func (r *Result) TotalAbundance() int {
	n := 0
	for _, v := range r.Variants {
		n += v.Abundance
	}
	return n
}

// Denoise partitions the uniques of set into clusters under the error model,
// and returns one variant per cluster.
//
// The clustering starts with a single cluster centered on the most abundant
// unique. At each step, the unique whose abundance is least consistent with
// being errors of its center is promoted to a new center if its p-value,
// times the number of uniques, is below opts.OmegaA. After each promotion,
// each unique moves to the cluster where its expected error abundance is
// highest. Clustering stops when nothing can be promoted.
func Denoise(set *derep.Set, model *errmodel.Model, opts Opts) *Result {
	r := &Result{Converged: true, Counts: errmodel.NewCounts(model.MaxQual)}
	n := set.Len()
	if n == 0 {
		r.Map = []int{}
		r.Partition.Center = r.Map
		return r
	}
	e := newEngine(set.Uniques, model, opts)
	e.addCenter(0, 1)
	logN := math.Log(float64(n))
	logOmega := math.Log(opts.OmegaA)
	for {
		u, logp := e.mostSignificant()
		if u < 0 || logp+logN >= logOmega {
			break
		}
		if opts.MaxClusters > 0 && len(e.centers) >= opts.MaxClusters {
			log.Error.Printf("dada: stopped at %d clusters with %d uniques", len(e.centers), n)
			r.Converged = false
			break
		}
		log.Debug.Printf("dada: promoting unique %d (abundance %d, p=%g), %d clusters",
			u, e.uniques[u].Abundance, math.Exp(logp), len(e.centers)+1)
		e.addCenter(u, math.Exp(logp))
		e.shuffle()
	}
	e.finish(r)
	return r
}

// engine holds the clustering state of one Denoise call.
type engine struct {
	opts    Opts
	model   *errmodel.Model
	uniques []derep.Unique
	kmers   []dna.KmerProfile

	center   []int // unique -> cluster
	centers  []int // cluster -> unique
	isCenter []bool
	pvalues  []float64   // cluster -> p-value at promotion
	lambda   [][]float64 // cluster -> unique -> probability of the unique given the center
	reads    []int       // cluster -> total abundance
}

func newEngine(uniques []derep.Unique, model *errmodel.Model, opts Opts) *engine {
	return &engine{
		opts:     opts,
		model:    model,
		uniques:  uniques,
		kmers:    make([]dna.KmerProfile, len(uniques)),
		center:   make([]int, len(uniques)),
		isCenter: make([]bool, len(uniques)),
	}
}

func (e *engine) kmer(u int) dna.KmerProfile {
	if e.kmers[u] == nil {
		e.kmers[u] = dna.NewKmerProfile(e.uniques[u].Seq)
	}
	return e.kmers[u]
}

func (e *engine) qual(u *derep.Unique, pos int) float64 {
	if !e.opts.UseQuals {
		return 0
	}
	return u.Qual[pos]
}

// walk calls fn for every internal column of the alignment of center c
// against unique u where neither sequence has a gap, and gap for every
// internal gap column. Overhanging ends are skipped.
func (e *engine) walk(c, u int, fn func(from, to byte, q float64), gap func()) {
	cu, uu := &e.uniques[c], &e.uniques[u]
	var al align.Alignment
	if len(cu.Seq) == len(uu.Seq) && e.opts.Align.Band == 0 {
		al = align.Ungapped(cu.Seq, uu.Seq, e.opts.Align)
	} else {
		al = align.Global(cu.Seq, uu.Seq, e.opts.Align)
	}
	start, end := al.InternalRange()
	pos := 0 // position in uu.Seq
	for i := 0; i < start; i++ {
		if al.B[i] != align.Gap {
			pos++
		}
	}
	for i := start; i < end; i++ {
		a, b := al.A[i], al.B[i]
		switch {
		case a == align.Gap:
			gap()
			pos++
		case b == align.Gap:
			gap()
		default:
			fn(dna.Index(a), dna.Index(b), e.qual(uu, pos))
			pos++
		}
	}
}

// computeLambda returns the probability that the true sequence of unique c
// is read as the sequence of unique u.
func (e *engine) computeLambda(c, u int) float64 {
	if c == u {
		return 1
	}
	cu, uu := &e.uniques[c], &e.uniques[u]
	if e.opts.KDistCutoff > 0 &&
		dna.KmerDistance(e.kmer(c), len(cu.Seq), e.kmer(u), len(uu.Seq)) > e.opts.KDistCutoff {
		return 0
	}
	lambda := 1.0
	e.walk(c, u,
		func(from, to byte, q float64) { lambda *= e.model.P(from, to, q) },
		func() { lambda *= e.opts.GapProb })
	return lambda
}

// addCenter makes unique u the center of a new cluster.
func (e *engine) addCenter(u int, pvalue float64) {
	c := len(e.centers)
	row := make([]float64, len(e.uniques))
	for v := range e.uniques {
		row[v] = e.computeLambda(u, v)
	}
	e.centers = append(e.centers, u)
	e.pvalues = append(e.pvalues, pvalue)
	e.lambda = append(e.lambda, row)
	e.reads = append(e.reads, 0)
	e.isCenter[u] = true
	if c == 0 {
		for v := range e.center {
			e.center[v] = 0
			e.reads[0] += e.uniques[v].Abundance
		}
		return
	}
	e.move(u, c)
}

func (e *engine) move(u, c int) {
	a := e.uniques[u].Abundance
	e.reads[e.center[u]] -= a
	e.reads[c] += a
	e.center[u] = c
}

// expected returns the expected number of reads of unique u produced as
// errors of the center of cluster c.
func (e *engine) expected(c, u int, reads []int) float64 {
	return e.lambda[c][u] * float64(reads[c])
}

// prefer reports whether the center of cluster c1 wins a tie against the
// center of cluster c2.
func (e *engine) prefer(c1, c2 int) bool {
	u1, u2 := &e.uniques[e.centers[c1]], &e.uniques[e.centers[c2]]
	if u1.Abundance != u2.Abundance {
		return u1.Abundance > u2.Abundance
	}
	return u1.Seq < u2.Seq
}

// mostSignificant returns the non-center unique with the smallest abundance
// p-value, and the log of that p-value. It returns -1 if no unique may be
// promoted.
func (e *engine) mostSignificant() (int, float64) {
	best, bestP := -1, 0.0
	for u := range e.uniques {
		uu := &e.uniques[u]
		if e.isCenter[u] || uu.Abundance < e.opts.MinAbundance {
			continue
		}
		if uu.Abundance == 1 && !e.opts.DetectSingletons {
			continue
		}
		c := e.center[u]
		logp := logPValue(uu.Abundance, e.expected(c, u, e.reads), uu.Abundance > 1)
		if best < 0 || logp < bestP {
			best, bestP = u, logp
			continue
		}
		if logp == bestP {
			bu := &e.uniques[best]
			if uu.Abundance > bu.Abundance || (uu.Abundance == bu.Abundance && uu.Seq < bu.Seq) {
				best = u
			}
		}
	}
	return best, bestP
}

// shuffle moves every non-center unique to the cluster with the highest
// expected abundance for it, until no unique moves.
func (e *engine) shuffle() {
	reads := make([]int, len(e.reads))
	for pass := 0; pass < e.opts.MaxShuffle; pass++ {
		copy(reads, e.reads)
		changed := false
		for u := range e.uniques {
			if e.isCenter[u] {
				continue
			}
			best := e.center[u]
			bestE := e.expected(best, u, reads)
			for c := range e.centers {
				if c == best {
					continue
				}
				if v := e.expected(c, u, reads); v > bestE || (v == bestE && e.prefer(c, best)) {
					best, bestE = c, v
				}
			}
			if best != e.center[u] {
				e.move(u, best)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
	log.Debug.Printf("dada: reassignment still changing after %d passes, %d clusters",
		e.opts.MaxShuffle, len(e.centers))
}

// finish fills r from the final partition.
func (e *engine) finish(r *Result) {
	nc := len(e.centers)
	order := make([]int, nc)
	for c := range order {
		order[c] = c
	}
	sort.SliceStable(order, func(i, j int) bool {
		ci, cj := order[i], order[j]
		if e.reads[ci] != e.reads[cj] {
			return e.reads[ci] > e.reads[cj]
		}
		return e.uniques[e.centers[ci]].Seq < e.uniques[e.centers[cj]].Seq
	})
	rank := make([]int, nc)
	r.Variants = make([]Variant, nc)
	r.Partition.Centers = make([]int, nc)
	for i, c := range order {
		rank[c] = i
		u := e.centers[c]
		r.Variants[i] = Variant{
			Seq:       e.uniques[u].Seq,
			Abundance: e.reads[c],
			Center:    u,
			PValue:    e.pvalues[c],
		}
		r.Partition.Centers[i] = u
	}
	r.Map = make([]int, len(e.uniques))
	for u, c := range e.center {
		v := rank[c]
		r.Map[u] = v
		r.Variants[v].Members = append(r.Variants[v].Members, u)
		e.countTransitions(&r.Counts, e.centers[c], u)
	}
	r.Partition.Center = r.Map
}

// countTransitions adds the transitions from center c to unique u, weighted
// by the abundance of u.
func (e *engine) countTransitions(counts *errmodel.Counts, c, u int) {
	uu := &e.uniques[u]
	w := float64(uu.Abundance)
	if c == u {
		for pos := 0; pos < len(uu.Seq); pos++ {
			b := dna.Index(uu.Seq[pos])
			counts.Add(b, b, int(math.Floor(e.qual(uu, pos)+0.5)), w)
		}
		return
	}
	e.walk(c, u,
		func(from, to byte, q float64) { counts.Add(from, to, int(math.Floor(q+0.5)), w) },
		func() {})
}
