package seqtab

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/amplicon/merge"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testTable() *Table {
	return Build([]string{"s1", "s2", "s3"}, [][]merge.Variant{
		{
			{Seq: "AAAA", Abundance: 10, Accept: true},
			{Seq: "CCCC", Abundance: 5, Accept: true},
			{Seq: "AAAA", Abundance: 2, Accept: true, Forward: 1},
			{Seq: "", Abundance: 7},
		},
		{
			{Seq: "CCCC", Abundance: 7, Accept: true},
			{Seq: "GGGG", Abundance: 3, Accept: true},
		},
		nil,
	})
}

func TestBuild(t *testing.T) {
	tab := testTable()
	expect.EQ(t, tab.NumSamples(), 3)
	expect.EQ(t, tab.NumColumns(), 3)
	// CCCC and AAAA both total 12; ties are broken by sequence.
	expect.EQ(t, tab.Sequences(), []string{"AAAA", "CCCC", "GGGG"})
	expect.EQ(t, tab.Count(0, "AAAA"), 12)
	expect.EQ(t, tab.Count(1, "AAAA"), 0)
	expect.EQ(t, tab.Count(1, "CCCC"), 7)
	expect.EQ(t, tab.Count(0, "TTTT"), 0)
	expect.EQ(t, tab.Total("CCCC"), 12)
	expect.EQ(t, tab.Index("GGGG"), 2)
	expect.EQ(t, tab.Index("TTTT"), -1)
	expect.EQ(t, tab.Column(1).Entries, []Entry{{0, 5}, {1, 7}})
	expect.EQ(t, tab.SampleTotals(), []int{17, 10, 0})
	expect.EQ(t, tab.Matrix(), [][]int{{12, 5, 0}, {0, 7, 3}, {0, 0, 0}})
}

func TestBuildNoZeroColumns(t *testing.T) {
	tab := Build([]string{"s1"}, [][]merge.Variant{{{Seq: "AAAA", Abundance: 0, Accept: true}}})
	expect.EQ(t, tab.NumColumns(), 0)
	expect.EQ(t, tab.Matrix(), [][]int{{}})
}

func TestRemove(t *testing.T) {
	tab := testTable()
	r := tab.RemoveColumns([]string{"CCCC"})
	expect.EQ(t, r.Sequences(), []string{"AAAA", "GGGG"})
	expect.EQ(t, r.Samples(), tab.Samples())
	// The original is unchanged.
	expect.EQ(t, tab.NumColumns(), 3)

	r = tab.RemoveCells([]Cell{{Sample: 1, Seq: "CCCC"}, {Sample: 1, Seq: "GGGG"}})
	expect.EQ(t, r.Sequences(), []string{"AAAA", "CCCC"})
	expect.EQ(t, r.Total("CCCC"), 5)
	expect.EQ(t, r.SampleTotals(), []int{17, 0, 0})
}

func TestLabel(t *testing.T) {
	l := Label("ACGT")
	expect.EQ(t, len(l), 19)
	expect.True(t, strings.HasPrefix(l, "ASV"))
	expect.EQ(t, Label("ACGT"), l)
	expect.True(t, Label("ACGA") != l)
}

func TestReadWrite(t *testing.T) {
	tab := testTable()
	var tsvBuf, faBuf bytes.Buffer
	assert.NoError(t, tab.WriteTSV(&tsvBuf))
	assert.NoError(t, tab.WriteFASTA(&faBuf))
	lines := strings.Split(strings.TrimSpace(tsvBuf.String()), "\n")
	expect.EQ(t, len(lines), 4)
	expect.EQ(t, lines[0], "SAMPLE\t"+strings.Join(tab.Labels(), "\t"))
	expect.EQ(t, lines[1], "s1\t12\t5\t0")
	expect.EQ(t, lines[3], "s3\t0\t0\t0")

	r, err := Read(&tsvBuf, &faBuf)
	assert.NoError(t, err)
	expect.EQ(t, r.Samples(), tab.Samples())
	expect.EQ(t, r.Sequences(), tab.Sequences())
	expect.EQ(t, r.Matrix(), tab.Matrix())
}

func TestReadWriteFiles(t *testing.T) {
	ctx := vcontext.Background()
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	tsvPath, faPath := filepath.Join(tmpDir, "seqtab.tsv"), filepath.Join(tmpDir, "sequences.fa")
	tab := testTable()
	assert.NoError(t, tab.WriteFiles(ctx, tsvPath, faPath))
	r, err := ReadFiles(ctx, tsvPath, faPath)
	assert.NoError(t, err)
	expect.EQ(t, r.Matrix(), tab.Matrix())
}
