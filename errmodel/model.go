// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package errmodel defines the sequencing error model used by the denoiser:
// a table of base-transition probabilities indexed by quality score, the
// transition counts observed in a partition, and the fit that turns the
// latter into the former.
package errmodel

import (
	"fmt"
	"math"

	"github.com/grailbio/amplicon/dna"
)

// NTrans is the number of base transitions, A2A, A2C, ..., T2T.
const NTrans = dna.NBase * dna.NBase

// DefaultMaxQual is the highest quality score tracked by default (Illumina
// 1.8+ scores are capped at 41).
const DefaultMaxQual = 40

// Trans returns the transition index of from -> to, where from and to are
// base enums (dna.BaseA ... dna.BaseT).
func Trans(from, to byte) int { return int(from)*dna.NBase + int(to) }

// TransName returns a name such as "A2C" for a transition index.
func TransName(t int) string {
	return fmt.Sprintf("%c2%c", dna.EnumToASCII[t/dna.NBase], dna.EnumToASCII[t%dna.NBase])
}

// Model maps (transition, quality) to the probability that a base of the
// true sequence is read as the transition target at that quality. Rows with
// from == to hold the probability of reading the base correctly.
//
// A Model is immutable once built; it is shared read-only by concurrent
// denoising tasks.
type Model struct {
	// MaxQual is the highest quality score in the table. Higher scores are
	// looked up as MaxQual.
	MaxQual int
	// Prob[t][q] is the probability of transition t at quality q.
	Prob [NTrans][]float64
}

// New creates a model with all probabilities set to zero.
func New(maxQual int) *Model {
	m := &Model{MaxQual: maxQual}
	for t := range m.Prob {
		m.Prob[t] = make([]float64, maxQual+1)
	}
	return m
}

// Pessimistic creates the model used to bootstrap error estimation. Every
// transition is given probability 1, so every sequence is fully explained as
// an error of the most abundant one and nothing but it can be a center.
func Pessimistic(maxQual int) *Model {
	m := New(maxQual)
	for t := range m.Prob {
		for q := range m.Prob[t] {
			m.Prob[t][q] = 1
		}
	}
	return m
}

// Uniform creates a model with the same total error rate at every quality,
// spread evenly across the three substitutions.
func Uniform(rate float64, maxQual int) *Model {
	m := New(maxQual)
	for t := range m.Prob {
		p := rate / 3
		if t/dna.NBase == t%dna.NBase {
			p = 1 - rate
		}
		for q := range m.Prob[t] {
			m.Prob[t][q] = p
		}
	}
	return m
}

// P returns the probability of reading the true base "from" as "to" at
// quality q. from and to are base enums; any transition involving N has
// probability 1 (it carries no information). Fractional qualities are
// rounded to the nearest integer.
func (m *Model) P(from, to byte, q float64) float64 {
	if from >= dna.NBase || to >= dna.NBase {
		return 1
	}
	qi := int(math.Floor(q + 0.5))
	if qi < 0 {
		qi = 0
	}
	if qi > m.MaxQual {
		qi = m.MaxQual
	}
	return m.Prob[Trans(from, to)][qi]
}

// MaxDiff returns the largest absolute difference between corresponding
// probabilities of m and o. Models of different shape are infinitely far
// apart.
func (m *Model) MaxDiff(o *Model) float64 {
	if o == nil || m.MaxQual != o.MaxQual {
		return math.Inf(1)
	}
	var d float64
	for t := range m.Prob {
		for q, p := range m.Prob[t] {
			if v := math.Abs(p - o.Prob[t][q]); v > d {
				d = v
			}
		}
	}
	return d
}

// Warning describes a fit-quality problem found by Validate.
type Warning struct {
	// Trans is the transition index, or -1 if the warning is about a whole
	// from-base.
	Trans int
	// From is the base enum the warning applies to.
	From byte
	// Qual is the quality score at which the problem occurs.
	Qual int
	Msg  string
}

func (w Warning) String() string {
	if w.Trans >= 0 {
		return fmt.Sprintf("%s q=%d: %s", TransName(w.Trans), w.Qual, w.Msg)
	}
	return fmt.Sprintf("%c q=%d: %s", dna.EnumToASCII[w.From], w.Qual, w.Msg)
}

// Validate checks that, for every base and quality, the substitution
// probabilities sum to at most one, and that each substitution probability
// does not increase with quality. Violations are returned, not fixed.
func (m *Model) Validate() []Warning {
	var warnings []Warning
	for from := byte(0); from < dna.NBase; from++ {
		for q := 0; q <= m.MaxQual; q++ {
			var sum float64
			for to := byte(0); to < dna.NBase; to++ {
				if to != from {
					sum += m.Prob[Trans(from, to)][q]
				}
			}
			if sum > 1+1e-9 {
				warnings = append(warnings, Warning{Trans: -1, From: from, Qual: q,
					Msg: fmt.Sprintf("error probabilities sum to %g", sum)})
			}
		}
		for to := byte(0); to < dna.NBase; to++ {
			if to == from {
				continue
			}
			t := Trans(from, to)
			for q := 1; q <= m.MaxQual; q++ {
				if m.Prob[t][q] > m.Prob[t][q-1]*(1+1e-9) {
					warnings = append(warnings, Warning{Trans: t, From: from, Qual: q,
						Msg: fmt.Sprintf("rate increases with quality: %g -> %g", m.Prob[t][q-1], m.Prob[t][q])})
				}
			}
		}
	}
	return warnings
}
