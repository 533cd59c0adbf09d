// Package seqtab builds the samples x sequences abundance table from merged
// variants.
package seqtab

import (
	"fmt"
	"sort"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/amplicon/merge"
)

// Entry is a nonzero cell of a column.
type Entry struct {
	Sample, Count int
}

// Column is one distinct sequence of the table.
type Column struct {
	Seq string
	// Entries are sorted by sample; all counts are positive.
	Entries []Entry
	// Total is the sum of the entry counts.
	Total int
}

// Table is a sparse samples x sequences abundance table. Columns are sorted
// by decreasing total abundance, then by sequence. No column has a zero
// total. A Table is immutable; the Remove methods create new tables.
type Table struct {
	samples []string
	columns []Column
	index   map[string]int
}

// Build creates a table from the merged variants of each sample. merged[i]
// holds the variants of samples[i]. Rejected variants are ignored, and
// variants with the same sequence are summed.
func Build(samples []string, merged [][]merge.Variant) *Table {
	if len(merged) != len(samples) {
		panic(fmt.Sprintf("seqtab: %d samples, %d variant lists", len(samples), len(merged)))
	}
	counts := make([]map[string]int, len(samples))
	for i, vs := range merged {
		counts[i] = map[string]int{}
		for _, v := range vs {
			if v.Accept && v.Abundance > 0 {
				counts[i][v.Seq] += v.Abundance
			}
		}
	}
	return fromCounts(samples, counts)
}

// FromCounts creates a table from per-sample sequence counts. counts[i] is
// the abundance of each sequence in samples[i]; zero counts are ignored.
func FromCounts(samples []string, counts []map[string]int) *Table {
	if len(counts) != len(samples) {
		panic(fmt.Sprintf("seqtab: %d samples, %d count maps", len(samples), len(counts)))
	}
	return fromCounts(samples, counts)
}

func fromCounts(samples []string, counts []map[string]int) *Table {
	t := &Table{samples: append([]string(nil), samples...), index: map[string]int{}}
	for i, m := range counts {
		for seq, n := range m {
			if n <= 0 {
				continue
			}
			j, ok := t.index[seq]
			if !ok {
				j = len(t.columns)
				t.index[seq] = j
				t.columns = append(t.columns, Column{Seq: seq})
			}
			c := &t.columns[j]
			c.Entries = append(c.Entries, Entry{Sample: i, Count: n})
			c.Total += n
		}
	}
	sort.Slice(t.columns, func(i, j int) bool {
		ci, cj := &t.columns[i], &t.columns[j]
		if ci.Total != cj.Total {
			return ci.Total > cj.Total
		}
		return ci.Seq < cj.Seq
	})
	// Entries are already in sample order since samples were visited in
	// order.
	for j := range t.columns {
		t.index[t.columns[j].Seq] = j
	}
	return t
}

// NumSamples returns the number of rows.
func (t *Table) NumSamples() int { return len(t.samples) }

// NumColumns returns the number of sequences.
func (t *Table) NumColumns() int { return len(t.columns) }

// Samples returns the row labels.
func (t *Table) Samples() []string { return t.samples }

// Sequences returns the column sequences, in column order.
func (t *Table) Sequences() []string {
	seqs := make([]string, len(t.columns))
	for j, c := range t.columns {
		seqs[j] = c.Seq
	}
	return seqs
}

// Labels returns the column labels (see Label), in column order.
func (t *Table) Labels() []string {
	labels := make([]string, len(t.columns))
	for j, c := range t.columns {
		labels[j] = Label(c.Seq)
	}
	return labels
}

// Column returns the j'th column. The caller must not modify it.
func (t *Table) Column(j int) Column { return t.columns[j] }

// Index returns the column index of seq, or -1.
func (t *Table) Index(seq string) int {
	if j, ok := t.index[seq]; ok {
		return j
	}
	return -1
}

// Count returns the abundance of seq in the given sample.
func (t *Table) Count(sample int, seq string) int {
	j, ok := t.index[seq]
	if !ok {
		return 0
	}
	entries := t.columns[j].Entries
	k := sort.Search(len(entries), func(k int) bool { return entries[k].Sample >= sample })
	if k < len(entries) && entries[k].Sample == sample {
		return entries[k].Count
	}
	return 0
}

// Total returns the total abundance of seq across samples.
func (t *Table) Total(seq string) int {
	if j, ok := t.index[seq]; ok {
		return t.columns[j].Total
	}
	return 0
}

// SampleTotals returns the total abundance of each sample.
func (t *Table) SampleTotals() []int {
	totals := make([]int, len(t.samples))
	for _, c := range t.columns {
		for _, e := range c.Entries {
			totals[e.Sample] += e.Count
		}
	}
	return totals
}

// Matrix returns the table as a dense matrix: m[i][j] is the abundance of
// column j in sample i.
func (t *Table) Matrix() [][]int {
	m := make([][]int, len(t.samples))
	for i := range m {
		m[i] = make([]int, len(t.columns))
	}
	for j, c := range t.columns {
		for _, e := range c.Entries {
			m[e.Sample][j] = e.Count
		}
	}
	return m
}

// Cell identifies one table cell.
type Cell struct {
	Sample int
	Seq    string
}

// RemoveColumns creates a table without the given sequences.
func (t *Table) RemoveColumns(seqs []string) *Table {
	drop := map[string]bool{}
	for _, s := range seqs {
		drop[s] = true
	}
	return t.filter(func(sample int, seq string) bool { return !drop[seq] })
}

// RemoveCells creates a table with the given cells set to zero. Columns left
// with no abundance are dropped.
func (t *Table) RemoveCells(cells []Cell) *Table {
	drop := map[Cell]bool{}
	for _, c := range cells {
		drop[c] = true
	}
	return t.filter(func(sample int, seq string) bool { return !drop[Cell{sample, seq}] })
}

func (t *Table) filter(keep func(sample int, seq string) bool) *Table {
	counts := make([]map[string]int, len(t.samples))
	for i := range counts {
		counts[i] = map[string]int{}
	}
	for _, c := range t.columns {
		for _, e := range c.Entries {
			if keep(e.Sample, c.Seq) {
				counts[e.Sample][c.Seq] = e.Count
			}
		}
	}
	return fromCounts(t.samples, counts)
}

// Label returns a stable, short name for a sequence: "ASV" followed by the
// hex farm fingerprint of the sequence.
func Label(seq string) string {
	return fmt.Sprintf("ASV%016x", farm.Fingerprint64([]byte(seq)))
}
