package errmodel

import "github.com/grailbio/amplicon/dna"

// Counts holds the abundance-weighted number of times each transition was
// observed at each quality score, comparing partition members to their
// cluster centers.
type Counts struct {
	MaxQual int
	N       [NTrans][]float64
}

// NewCounts creates an empty count table.
func NewCounts(maxQual int) Counts {
	c := Counts{MaxQual: maxQual}
	for t := range c.N {
		c.N[t] = make([]float64, maxQual+1)
	}
	return c
}

// Add records w observations of from -> to at quality q. Transitions
// involving N are ignored.
func (c *Counts) Add(from, to byte, q int, w float64) {
	if from >= dna.NBase || to >= dna.NBase {
		return
	}
	if q < 0 {
		q = 0
	}
	if q > c.MaxQual {
		q = c.MaxQual
	}
	c.N[Trans(from, to)][q] += w
}

// Merge adds the counts of two tables and creates a new table.
func (c Counts) Merge(o Counts) Counts {
	r := NewCounts(c.MaxQual)
	for t := range r.N {
		for q := range r.N[t] {
			if q < len(c.N[t]) {
				r.N[t][q] += c.N[t][q]
			}
			if q < len(o.N[t]) {
				r.N[t][q] += o.N[t][q]
			}
		}
	}
	return r
}

// Total returns the number of observations of base "from" at quality q.
func (c *Counts) Total(from byte, q int) float64 {
	var n float64
	for to := byte(0); to < dna.NBase; to++ {
		n += c.N[Trans(from, to)][q]
	}
	return n
}

// Sum returns the number of observations in the table.
func (c *Counts) Sum() float64 {
	var n float64
	for t := range c.N {
		for _, v := range c.N[t] {
			n += v
		}
	}
	return n
}
