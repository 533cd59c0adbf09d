package main

import (
	"flag"
	"testing"

	"github.com/grailbio/amplicon/chimera"
	"github.com/grailbio/amplicon/pipeline"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestOptsFlags(t *testing.T) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	f := newOptsFlags(fs, false)
	assert.NoError(t, fs.Parse([]string{
		"-trunc-len-f", "240", "-trunc-len-r", "160", "-trunc-q", "11",
		"-pool", "-chimera-method", "per-sample", "-min-overlap", "20",
		"-parallelism", "3", "manifest.tsv", "out",
	}))
	opts, err := f.get()
	assert.NoError(t, err)
	expect.EQ(t, opts.FilterF.TruncLen, 240)
	expect.EQ(t, opts.FilterR.TruncLen, 160)
	expect.EQ(t, opts.FilterR.TruncQ, 11)
	expect.True(t, opts.Pool)
	expect.EQ(t, opts.Chimera.Method, chimera.PerSample)
	expect.EQ(t, opts.Chimera.Parallelism, 3)
	expect.EQ(t, opts.Merge.MinOverlap, 20)
	expect.EQ(t, fs.Args(), []string{"manifest.tsv", "out"})

	// Unset flags keep their defaults.
	expect.EQ(t, opts.Denoise, pipeline.DefaultOpts.Denoise)

	fs = flag.NewFlagSet("run", flag.ContinueOnError)
	f = newOptsFlags(fs, false)
	assert.NoError(t, fs.Parse([]string{"-chimera-method", "bogus"}))
	_, err = f.get()
	expect.True(t, err != nil)
}
