// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package chimera detects and removes bimeras: sequences that are the
// concatenation of a prefix of one more abundant sequence (the left parent)
// and a suffix of another (the right parent), formed when an incompletely
// extended amplicon primes the amplification of a different template.
package chimera

import (
	"github.com/grailbio/amplicon/align"
)

// Parent is a potential parent of a candidate bimera.
type Parent struct {
	Seq       string
	Abundance int
}

// Call describes a bimera decomposition.
type Call struct {
	// Seq is the bimera.
	Seq string
	// Sample is the sample in which the call was made, or -1 for a call made
	// on the totals of the table.
	Sample int
	// Left and Right are the parents contributing the prefix and the suffix.
	Left, Right string
	// OneOff is true if the decomposition needed one mismatch.
	OneOff bool
}

// lr describes how much of a candidate a parent explains.
type lr struct {
	// left is the length of the longest prefix of the candidate that matches
	// the parent exactly, and leftOO the longest allowing one mismatch.
	left, leftOO int
	// right and rightOO are the same for suffixes.
	right, rightOO int
}

// compare aligns the candidate seq to parent and measures the matching
// prefix and suffix. Sequences of equal length are compared position by
// position; others are aligned with free end gaps, allowing shifts of up to
// opts.MaxShift.
func compare(seq, parent string, opts Opts) lr {
	a, b := seq, parent
	if len(seq) != len(parent) {
		al := align.Global(seq, parent, align.Opts{
			Match:      align.DefaultOpts.Match,
			Mismatch:   align.DefaultOpts.Mismatch,
			GapPenalty: align.DefaultOpts.GapPenalty,
			Band:       opts.MaxShift,
			EndsFree:   true,
		})
		a, b = al.A, al.B
	}
	var r lr
	r.left, r.leftOO = matchRun(a, b, func(k int) int { return k })
	r.right, r.rightOO = matchRun(a, b, func(k int) int { return len(a) - 1 - k })
	return r
}

// matchRun walks the aligned candidate a and parent b in the column order
// given by idx, and returns the number of candidate bases covered before the
// first difference (exact), and before the second difference (oneOff).
// Parent bases hanging off the end of the candidate are skipped.
func matchRun(a, b string, idx func(k int) int) (exact, oneOff int) {
	started := false
	diffs, bases := 0, 0
	for k := 0; k < len(a); k++ {
		i := idx(k)
		if !started && a[i] == align.Gap {
			continue
		}
		started = true
		if a[i] != align.Gap && a[i] == b[i] {
			bases++
			continue
		}
		if diffs == 0 {
			exact = bases
		}
		diffs++
		if diffs == 2 {
			return exact, bases
		}
		if a[i] != align.Gap {
			bases++
		}
	}
	if diffs == 0 {
		exact = bases
	}
	return exact, bases
}

// distance returns the number of differences between two parents.
func distance(s1, s2 string, opts Opts) int {
	if len(s1) == len(s2) {
		return align.Hamming(s1, s2)
	}
	al := align.Global(s1, s2, align.Opts{
		Match:      align.DefaultOpts.Match,
		Mismatch:   align.DefaultOpts.Mismatch,
		GapPenalty: align.DefaultOpts.GapPenalty,
		Band:       opts.MaxShift,
		EndsFree:   true,
	})
	_, mis, gaps := al.Counts()
	return mis + gaps
}

// detector tests one candidate against a changing set of parents, caching
// the comparisons.
type detector struct {
	seq   string
	opts  Opts
	cache map[string]lr
}

func newDetector(seq string, opts Opts) *detector {
	return &detector{seq: seq, opts: opts, cache: map[string]lr{}}
}

func (d *detector) compare(parent string) lr {
	r, ok := d.cache[parent]
	if !ok {
		r = compare(d.seq, parent, d.opts)
		d.cache[parent] = r
	}
	return r
}

// better reports whether the parent pair (l1, r1) wins over (l2, r2): higher
// combined abundance, then lexicographically smaller (left, right).
func better(l1, r1, l2, r2 Parent) bool {
	if a1, a2 := l1.Abundance+r1.Abundance, l2.Abundance+r2.Abundance; a1 != a2 {
		return a1 > a2
	}
	if l1.Seq != l2.Seq {
		return l1.Seq < l2.Seq
	}
	return r1.Seq < r2.Seq
}

// test returns the best bimera decomposition of the candidate over parents.
func (d *detector) test(parents []Parent) (Call, bool) {
	n := len(d.seq)
	lrs := make([]lr, len(parents))
	maxLeft, maxRight := 0, 0
	for i, p := range parents {
		lrs[i] = d.compare(p.Seq)
		if lrs[i].left > maxLeft {
			maxLeft = lrs[i].left
		}
		if lrs[i].right > maxRight {
			maxRight = lrs[i].right
		}
	}
	var (
		call  Call
		found bool
		bestL Parent
		bestR Parent
	)
	consider := func(l, r int, oneOff bool) {
		if found && !better(parents[l], parents[r], bestL, bestR) {
			return
		}
		bestL, bestR, found = parents[l], parents[r], true
		call = Call{Seq: d.seq, Left: bestL.Seq, Right: bestR.Seq, OneOff: oneOff}
	}
	if maxLeft+maxRight >= n {
		for l := range parents {
			if lrs[l].left+maxRight < n {
				continue
			}
			for r := range parents {
				if lrs[l].left+lrs[r].right >= n {
					consider(l, r, false)
				}
			}
		}
		return call, found
	}
	if !d.opts.AllowOneOff {
		return call, false
	}
	for i := range lrs {
		// Within one mismatch of a single parent: an error, not a bimera.
		if lrs[i].leftOO >= n {
			return call, false
		}
	}
	for l := range parents {
		for r := range parents {
			if l == r {
				continue
			}
			if lrs[l].leftOO+lrs[r].right < n && lrs[l].left+lrs[r].rightOO < n {
				continue
			}
			if found && !better(parents[l], parents[r], bestL, bestR) {
				continue
			}
			if distance(parents[l].Seq, parents[r].Seq, d.opts) < d.opts.MinOneOffParentDistance {
				continue
			}
			consider(l, r, true)
		}
	}
	return call, found
}

// IsBimera reports whether seq can be built from a prefix of one of the
// parents and a suffix of another (or the same) one, and returns the
// decomposition with the most abundant parent pair. The caller selects the
// parents; see Opts.MinFoldParentOverAbundance.
func IsBimera(seq string, parents []Parent, opts Opts) (Call, bool) {
	call, ok := newDetector(seq, opts).test(parents)
	call.Sample = -1
	return call, ok
}
