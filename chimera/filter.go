package chimera

import (
	"fmt"

	"github.com/grailbio/amplicon/seqtab"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
)

// Method selects how bimera calls are turned into removals.
type Method int

const (
	// Consensus calls each column in every sample where it occurs, and
	// removes the column from the whole table if it is called in enough of
	// them.
	Consensus Method = iota
	// Pooled calls each column once, using the total abundances of the table.
	Pooled
	// PerSample calls each column in each sample, and removes it only from
	// the samples where it was called.
	PerSample
)

var methodNames = [...]string{"consensus", "pooled", "per-sample"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod parses the name of a Method.
func ParseMethod(s string) (Method, error) {
	for i, n := range methodNames {
		if n == s {
			return Method(i), nil
		}
	}
	return 0, errors.Errorf("unknown chimera method %q, want one of %v", s, methodNames)
}

// Opts configures chimera removal.
type Opts struct {
	Method Method
	// MinFoldParentOverAbundance is how many times more abundant than the
	// candidate a parent must be. Parents must always be strictly more
	// abundant.
	MinFoldParentOverAbundance float64
	// AllowOneOff also flags candidates that are one mismatch away from a
	// bimera, provided their parents differ from each other by at least
	// MinOneOffParentDistance.
	AllowOneOff             bool
	MinOneOffParentDistance int
	// MaxShift bounds the shift between a candidate and a parent of a
	// different length.
	MaxShift int
	// MinSampleFraction is the fraction of the samples considered for a
	// column in which it must be called, for Consensus.
	MinSampleFraction float64
	// MinSampleAbundance is the abundance a column must have in a sample for
	// that sample to be considered, for Consensus.
	MinSampleAbundance int
	// Parallelism is the number of candidates tested concurrently.
	Parallelism int
}

// DefaultOpts are the default chimera removal options.
var DefaultOpts = Opts{
	Method:                     Consensus,
	MinFoldParentOverAbundance: 1,
	MinOneOffParentDistance:    4,
	MaxShift:                   16,
	MinSampleFraction:          1,
	MinSampleAbundance:         1,
	Parallelism:                1,
}

// Result is the output of Remove.
type Result struct {
	// Table is the table without the bimeras.
	Table *seqtab.Table
	// Removed lists the sequences whose column was removed entirely.
	Removed []string
	// RemovedColumns is len(Removed).
	RemovedColumns int
	// RemovedAbundance is the total abundance removed from the table.
	RemovedAbundance int
	// Calls lists the bimera calls that led to removals. For Consensus, only
	// the per-sample calls of removed columns are listed.
	Calls []Call
}

// parents returns the columns of tab that may be parents of a candidate of
// the given abundance: those more abundant by the configured fold, strictly.
// If sample >= 0, abundances in that sample are used, else column totals.
func parents(tab *seqtab.Table, sample, abundance int, opts Opts) []Parent {
	var ps []Parent
	minN := opts.MinFoldParentOverAbundance * float64(abundance)
	for j := 0; j < tab.NumColumns(); j++ {
		c := tab.Column(j)
		n := c.Total
		if sample >= 0 {
			n = tab.Count(sample, c.Seq)
		}
		if n > abundance && float64(n) > minN {
			ps = append(ps, Parent{Seq: c.Seq, Abundance: n})
		}
	}
	return ps
}

// Remove detects bimeras in tab and returns a new table without them.
// Candidates are tested from the least to the most abundant column.
func Remove(tab *seqtab.Table, opts Opts) (*Result, error) {
	n := tab.NumColumns()
	order := make([]int, n)
	for j := range order {
		order[j] = n - 1 - j
	}
	calls := make([][]Call, n)
	removed := make([]bool, n)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	if parallelism > n {
		parallelism = n
	}
	if parallelism > 0 {
		err := traverse.Each(parallelism, func(jobIdx int) error {
			startIdx := (jobIdx * n) / parallelism
			endIdx := ((jobIdx + 1) * n) / parallelism
			for _, j := range order[startIdx:endIdx] {
				calls[j], removed[j] = testColumn(tab, j, opts)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	r := &Result{}
	var cells []seqtab.Cell
	var drop []string
	for _, j := range order {
		seq := tab.Column(j).Seq
		switch opts.Method {
		case PerSample:
			for _, c := range calls[j] {
				cells = append(cells, seqtab.Cell{Sample: c.Sample, Seq: seq})
			}
			r.Calls = append(r.Calls, calls[j]...)
		default:
			if removed[j] {
				drop = append(drop, seq)
				r.Calls = append(r.Calls, calls[j]...)
			}
		}
	}
	if opts.Method == PerSample {
		r.Table = tab.RemoveCells(cells)
	} else {
		r.Table = tab.RemoveColumns(drop)
	}
	for j := 0; j < n; j++ {
		seq := tab.Column(j).Seq
		if r.Table.Index(seq) < 0 {
			r.Removed = append(r.Removed, seq)
		}
		r.RemovedAbundance += tab.Column(j).Total - r.Table.Total(seq)
	}
	r.RemovedColumns = len(r.Removed)
	log.Printf("chimera: %s: removed %d of %d sequences (%d reads)",
		opts.Method, r.RemovedColumns, n, r.RemovedAbundance)
	return r, nil
}

// testColumn tests column j. It returns the bimera calls made, and whether
// the column is to be removed from the whole table.
func testColumn(tab *seqtab.Table, j int, opts Opts) ([]Call, bool) {
	col := tab.Column(j)
	d := newDetector(col.Seq, opts)
	if opts.Method == Pooled {
		call, ok := d.test(parents(tab, -1, col.Total, opts))
		if !ok {
			return nil, false
		}
		call.Sample = -1
		return []Call{call}, true
	}
	var calls []Call
	nConsidered := 0
	for _, e := range col.Entries {
		if opts.Method == Consensus && e.Count < opts.MinSampleAbundance {
			continue
		}
		nConsidered++
		call, ok := d.test(parents(tab, e.Sample, e.Count, opts))
		if !ok {
			continue
		}
		call.Sample = e.Sample
		calls = append(calls, call)
	}
	if opts.Method == PerSample {
		return calls, false
	}
	if nConsidered == 0 || len(calls) == 0 {
		return calls, false
	}
	return calls, float64(len(calls)) >= opts.MinSampleFraction*float64(nConsidered)
}
