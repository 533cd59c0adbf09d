// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package filter implements the quality filtering and trimming applied to
// amplicon reads before dereplication: left trimming, truncation at the first
// low-quality base, fixed-length truncation, and expected-error filtering.
package filter

import (
	"math"

	"github.com/grailbio/amplicon/dna"
	"github.com/grailbio/amplicon/encoding/fastq"
)

// Opts configures the filter for one read direction.
type Opts struct {
	// TrimLeft removes this many bases from the start of each read.
	TrimLeft int
	// TruncQ truncates a read at the first base with quality <= TruncQ.
	TruncQ int
	// TruncLen truncates reads to exactly this length. Reads shorter than
	// TruncLen are discarded. Zero disables truncation.
	TruncLen int
	// MaxN is the max number of non-ACGT bases allowed after truncation.
	MaxN int
	// MaxEE is the max number of expected errors, sum(10^(-Q/10)), allowed
	// after truncation.
	MaxEE float64
	// MinLen discards reads shorter than this after trimming.
	MinLen int
}

// DefaultOpts is the default setting for both directions.
var DefaultOpts = Opts{
	TrimLeft: 0,
	TruncQ:   2,
	TruncLen: 0,
	MaxN:     0,
	MaxEE:    math.Inf(1),
	MinLen:   20,
}

// errorProbs[q] is the error probability of Phred score q.
var errorProbs [128]float64

func init() {
	for q := range errorProbs {
		errorProbs[q] = math.Pow(10, float64(q)/-10)
	}
}

// ExpectedErrors computes the expected number of errors in a read from its
// Phred scores.
func ExpectedErrors(qual []int) float64 {
	var sum float64
	for _, q := range qual {
		if q < 0 {
			q = 0
		}
		if q >= len(errorProbs) {
			q = len(errorProbs) - 1
		}
		sum += errorProbs[q]
	}
	return sum
}

// Reason describes why a read was discarded.
type Reason int

const (
	// Pass means the read was kept.
	Pass Reason = iota
	// TooShort means the read was shorter than TruncLen or MinLen.
	TooShort
	// TooManyN means the read had more than MaxN ambiguous bases.
	TooManyN
	// TooManyErrors means the read exceeded MaxEE expected errors.
	TooManyErrors
)

var reasonNames = [...]string{"pass", "too-short", "too-many-n", "too-many-errors"}

func (r Reason) String() string { return reasonNames[r] }

// Apply trims r in place and reports whether it should be kept.
func Apply(r *fastq.Read, opts Opts) Reason {
	r.TrimLeft(opts.TrimLeft)
	qual := r.Phred()
	for i, q := range qual {
		if q <= opts.TruncQ {
			r.Trim(i)
			qual = qual[:i]
			break
		}
	}
	if opts.TruncLen > 0 {
		if len(r.Seq) < opts.TruncLen {
			return TooShort
		}
		r.Trim(opts.TruncLen)
		qual = qual[:opts.TruncLen]
	}
	if len(r.Seq) < opts.MinLen || len(r.Seq) == 0 {
		return TooShort
	}
	if dna.CountACGTN(r.Seq)[dna.BaseN] > opts.MaxN {
		return TooManyN
	}
	if ExpectedErrors(qual) > opts.MaxEE {
		return TooManyErrors
	}
	return Pass
}

// Stats counts filtering outcomes.
type Stats struct {
	// In is the number of reads (or read pairs) examined.
	In int
	// Out is the number of reads (or read pairs) kept.
	Out int
	// Discarded[r] counts reads discarded for Reason r.
	Discarded [4]int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.In += o.In
	s.Out += o.Out
	for i, n := range o.Discarded {
		s.Discarded[i] += n
	}
	return s
}

// ApplyPair filters a read pair. Both reads must pass for the pair to be
// kept.
func ApplyPair(r1, r2 *fastq.Read, opts1, opts2 Opts, stats *Stats) bool {
	stats.In++
	reason := Apply(r1, opts1)
	if reason == Pass {
		reason = Apply(r2, opts2)
	}
	if reason != Pass {
		stats.Discarded[reason]++
		return false
	}
	stats.Out++
	return true
}
