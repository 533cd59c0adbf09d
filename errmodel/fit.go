package errmodel

import (
	"math"
	"sort"

	"github.com/grailbio/amplicon/dna"
	"github.com/grailbio/base/log"
)

// FitOpts configures Fit.
type FitOpts struct {
	// MinRate and MaxRate clamp every fitted substitution rate.
	MinRate, MaxRate float64
	// Span is the fraction of observed quality scores used in each local
	// regression.
	Span float64
}

// DefaultFitOpts are the default fit options.
var DefaultFitOpts = FitOpts{
	MinRate: 1e-7,
	MaxRate: 0.25,
	Span:    0.75,
}

type point struct {
	q, y, w float64
}

// Fit re-derives an error model from observed transition counts. For each
// substitution, log10 of the observed rate, (count+1)/total, is smoothed
// against quality with a tricube-weighted local linear regression, weighted
// by the number of observations at each quality. Qualities outside the
// observed range take the value of the nearest observed quality. Rates are
// clamped to [MinRate, MaxRate], and the probability of reading a base
// correctly is one minus the sum of its substitution rates.
func Fit(c Counts, opts FitOpts) *Model {
	m := New(c.MaxQual)
	for from := byte(0); from < dna.NBase; from++ {
		for to := byte(0); to < dna.NBase; to++ {
			if from == to {
				continue
			}
			t := Trans(from, to)
			var pts []point
			for q := 0; q <= c.MaxQual; q++ {
				tot := c.Total(from, q)
				if tot <= 0 {
					continue
				}
				pts = append(pts, point{q: float64(q), y: math.Log10((c.N[t][q] + 1) / tot), w: tot})
			}
			if len(pts) == 0 {
				log.Debug.Printf("errmodel: no observations of %c, using min rate for %s",
					dna.EnumToASCII[from], TransName(t))
			}
			for q := 0; q <= c.MaxQual; q++ {
				rate := opts.MinRate
				if len(pts) > 0 {
					qq := math.Max(pts[0].q, math.Min(pts[len(pts)-1].q, float64(q)))
					rate = math.Pow(10, loess(pts, qq, opts.Span))
				}
				m.Prob[t][q] = math.Max(opts.MinRate, math.Min(opts.MaxRate, rate))
			}
		}
		for q := 0; q <= c.MaxQual; q++ {
			self := 1.0
			for to := byte(0); to < dna.NBase; to++ {
				if to != from {
					self -= m.Prob[Trans(from, to)][q]
				}
			}
			m.Prob[Trans(from, from)][q] = self
		}
	}
	return m
}

// loess evaluates, at x, a tricube-weighted local linear regression over the
// span*len(pts) points nearest to x.
func loess(pts []point, x float64, span float64) float64 {
	n := int(math.Ceil(span * float64(len(pts))))
	if n < 2 {
		n = 2
	}
	if n > len(pts) {
		n = len(pts)
	}
	near := make([]point, len(pts))
	copy(near, pts)
	sort.SliceStable(near, func(i, j int) bool {
		return math.Abs(near[i].q-x) < math.Abs(near[j].q-x)
	})
	near = near[:n]
	maxDist := 0.0
	for _, p := range near {
		if d := math.Abs(p.q - x); d > maxDist {
			maxDist = d
		}
	}
	// Widen the window slightly so that the farthest point keeps some weight.
	maxDist *= 1.0001
	var sw, swx, swy, swxx, swxy float64
	for _, p := range near {
		w := p.w
		if maxDist > 0 {
			u := math.Abs(p.q-x) / maxDist
			k := 1 - u*u*u
			w *= k * k * k
		}
		sw += w
		swx += w * p.q
		swy += w * p.y
		swxx += w * p.q * p.q
		swxy += w * p.q * p.y
	}
	if sw == 0 {
		return near[0].y
	}
	den := sw*swxx - swx*swx
	if math.Abs(den) < 1e-12*sw*sw {
		return swy / sw
	}
	slope := (sw*swxy - swx*swy) / den
	intercept := (swy - slope*swx) / sw
	return intercept + slope*x
}
