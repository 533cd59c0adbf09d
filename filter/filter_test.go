package filter

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/grailbio/amplicon/encoding/fastq"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestExpectedErrors(t *testing.T) {
	expect.EQ(t, ExpectedErrors(nil), 0.0)
	ee := ExpectedErrors([]int{10, 20, 30})
	expect.True(t, math.Abs(ee-0.111) < 1e-9, "got %v", ee)
}

func TestApply(t *testing.T) {
	opts := DefaultOpts
	opts.MinLen = 2

	// Truncated at the first Q2 ('#') base.
	r := fastq.Read{ID: "@r", Seq: "ACGTACGT", Unk: "+", Qual: "IIII#III"}
	expect.EQ(t, Apply(&r, opts), Pass)
	expect.EQ(t, r.Seq, "ACGT")

	r = fastq.Read{ID: "@r", Seq: "ACGTACGT", Unk: "+", Qual: "IIIIIIII"}
	opts.TrimLeft = 2
	opts.TruncLen = 4
	expect.EQ(t, Apply(&r, opts), Pass)
	expect.EQ(t, r.Seq, "GTAC")

	r = fastq.Read{ID: "@r", Seq: "ACG", Unk: "+", Qual: "III"}
	expect.EQ(t, Apply(&r, opts), TooShort)

	opts = DefaultOpts
	opts.MinLen = 1
	r = fastq.Read{ID: "@r", Seq: "ACNT", Unk: "+", Qual: "IIII"}
	expect.EQ(t, Apply(&r, opts), TooManyN)

	opts.MaxEE = 0.5
	r = fastq.Read{ID: "@r", Seq: "ACGT", Unk: "+", Qual: "++++"} // Q10 each: EE=0.4
	expect.EQ(t, Apply(&r, opts), Pass)
	r = fastq.Read{ID: "@r", Seq: "ACGTAA", Unk: "+", Qual: "++++++"} // EE=0.6
	expect.EQ(t, Apply(&r, opts), TooManyErrors)
	expect.EQ(t, TooManyErrors.String(), "too-many-errors")
}

func TestApplyPair(t *testing.T) {
	opts := DefaultOpts
	opts.MinLen = 4
	var stats Stats
	r1 := fastq.Read{ID: "@p", Seq: "ACGTACGT", Unk: "+", Qual: "IIIIIIII"}
	r2 := fastq.Read{ID: "@p", Seq: "ACG", Unk: "+", Qual: "III"}
	expect.False(t, ApplyPair(&r1, &r2, opts, opts, &stats))
	r1 = fastq.Read{ID: "@p", Seq: "ACGTACGT", Unk: "+", Qual: "IIIIIIII"}
	r2 = fastq.Read{ID: "@p", Seq: "ACGTA", Unk: "+", Qual: "IIIII"}
	expect.True(t, ApplyPair(&r1, &r2, opts, opts, &stats))
	expect.EQ(t, stats, Stats{In: 2, Out: 1, Discarded: [4]int{0, 1, 0, 0}})
	expect.EQ(t, stats.Merge(stats).In, 4)
}

const r1FASTQ = `@a/1
ACGTACGTAC
+
IIIIIIIIII
@b/1
ACGTACGTAC
+
I#IIIIIIII
@c/1
TTTTGGGGCC
+
IIIIIIIIII
`

const r2FASTQ = `@a/2
GGTTCCAAGG
+
IIIIIIIIII
@b/2
GGTTCCAAGG
+
IIIIIIIIII
@c/2
GGTTCCAAGG
+
IIIIIIIIII
`

func TestFilterPairedFiles(t *testing.T) {
	ctx := vcontext.Background()
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	paths := PairedPaths{
		In1:  filepath.Join(tmpDir, "r1.fastq"),
		In2:  filepath.Join(tmpDir, "r2.fastq"),
		Out1: filepath.Join(tmpDir, "r1.filt.fastq.gz"),
		Out2: filepath.Join(tmpDir, "r2.filt.fastq.gz"),
	}
	assert.NoError(t, file.WriteFile(ctx, paths.In1, []byte(r1FASTQ)))
	assert.NoError(t, file.WriteFile(ctx, paths.In2, []byte(r2FASTQ)))

	opts := DefaultOpts
	opts.MinLen = 8
	stats, err := FilterPairedFiles(ctx, paths, opts, opts)
	assert.NoError(t, err)
	expect.EQ(t, stats.In, 3)
	expect.EQ(t, stats.Out, 2)
	expect.EQ(t, stats.Discarded[TooShort], 1)

	// Gzipped inputs are decompressed by extension.
	stats, err = FilterPairedFiles(ctx, PairedPaths{
		In1:  paths.Out1,
		In2:  paths.Out2,
		Out1: filepath.Join(tmpDir, "r1.refilt.fastq.gz"),
		Out2: filepath.Join(tmpDir, "r2.refilt.fastq.gz"),
	}, opts, opts)
	assert.NoError(t, err)
	expect.EQ(t, stats.In, 2)
	expect.EQ(t, stats.Out, 2)
}
