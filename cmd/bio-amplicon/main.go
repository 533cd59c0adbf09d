// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"

	"github.com/grailbio/amplicon/chimera"
	"github.com/grailbio/amplicon/pipeline"
	"github.com/grailbio/amplicon/seqtab"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

// optsFlags registers the pipeline options on a command's flag set.
type optsFlags struct {
	opts          pipeline.Opts
	chimeraMethod string
}

func newOptsFlags(fs *flag.FlagSet, filterOnly bool) *optsFlags {
	f := &optsFlags{opts: pipeline.DefaultOpts}
	o := &f.opts
	fs.IntVar(&o.FilterF.TruncLen, "trunc-len-f", o.FilterF.TruncLen, "Truncate forward reads to this length; shorter reads are discarded. 0 disables truncation")
	fs.IntVar(&o.FilterR.TruncLen, "trunc-len-r", o.FilterR.TruncLen, "Truncate reverse reads to this length; shorter reads are discarded. 0 disables truncation")
	fs.IntVar(&o.FilterF.TrimLeft, "trim-left-f", o.FilterF.TrimLeft, "Remove this many bases from the start of forward reads")
	fs.IntVar(&o.FilterR.TrimLeft, "trim-left-r", o.FilterR.TrimLeft, "Remove this many bases from the start of reverse reads")
	fs.Float64Var(&o.FilterF.MaxEE, "max-ee-f", o.FilterF.MaxEE, "Discard forward reads with more expected errors")
	fs.Float64Var(&o.FilterR.MaxEE, "max-ee-r", o.FilterR.MaxEE, "Discard reverse reads with more expected errors")
	fs.IntVar(&o.FilterF.TruncQ, "trunc-q", o.FilterF.TruncQ, "Truncate reads at the first base with quality <= this value")
	fs.IntVar(&o.FilterF.MaxN, "max-n", o.FilterF.MaxN, "Discard reads with more ambiguous bases")
	fs.IntVar(&o.FilterF.MinLen, "min-len", o.FilterF.MinLen, "Discard reads shorter than this after trimming")
	fs.IntVar(&o.Parallelism, "parallelism", o.Parallelism, "Number of samples processed concurrently")
	if filterOnly {
		return f
	}
	fs.BoolVar(&o.Filter, "filter", o.Filter, "Filter the inputs before denoising. The filtered files are written under the output directory")
	fs.BoolVar(&o.Pool, "pool", o.Pool, "Denoise all samples together")
	fs.IntVar(&o.Learn.MaxReads, "error-read-cap", o.Learn.MaxReads, "Number of reads used to estimate each error model")
	fs.IntVar(&o.Learn.MaxRounds, "error-max-rounds", o.Learn.MaxRounds, "Maximum number of error estimation rounds")
	fs.StringVar(&o.ModelF, "err-f", "", "Forward error model written by a previous run. If set, the model is not estimated")
	fs.StringVar(&o.ModelR, "err-r", "", "Reverse error model written by a previous run. If set, the model is not estimated")
	fs.Float64Var(&o.Denoise.OmegaA, "omega-a", o.Denoise.OmegaA, "Abundance p-value threshold for new sequence variants")
	fs.BoolVar(&o.Denoise.DetectSingletons, "detect-singletons", o.Denoise.DetectSingletons, "Allow singletons to become sequence variants")
	fs.IntVar(&o.Denoise.Align.Band, "band", o.Denoise.Align.Band, "Alignment band width; negative for unbanded alignment")
	fs.IntVar(&o.Merge.MinOverlap, "min-overlap", o.Merge.MinOverlap, "Minimum overlap of merged read pairs")
	fs.IntVar(&o.Merge.MaxMismatch, "max-mismatch", o.Merge.MaxMismatch, "Maximum number of mismatches in the overlap of merged read pairs")
	fs.BoolVar(&o.Merge.JustConcatenate, "just-concatenate", o.Merge.JustConcatenate, "Join read pairs with a spacer of Ns instead of overlapping them")
	fs.StringVar(&f.chimeraMethod, "chimera-method", o.Chimera.Method.String(), "Bimera removal method: consensus, pooled or per-sample")
	fs.BoolVar(&o.SkipChimera, "skip-chimera", o.SkipChimera, "Do not remove bimeras")
	return f
}

// get returns the options, with the settings shared by both read directions
// copied.
func (f *optsFlags) get() (pipeline.Opts, error) {
	o := f.opts
	o.FilterR.TruncQ = o.FilterF.TruncQ
	o.FilterR.MaxN = o.FilterF.MaxN
	o.FilterR.MinLen = o.FilterF.MinLen
	o.Chimera.Parallelism = o.Parallelism
	if f.chimeraMethod != "" {
		m, err := chimera.ParseMethod(f.chimeraMethod)
		if err != nil {
			return o, err
		}
		o.Chimera.Method = m
	}
	return o, nil
}

func newCmdFilter() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "filter",
		Short:    "Filter the reads of every sample in a manifest",
		ArgsName: "manifest outdir",
		Long: `
Filter reads the samples listed in the manifest, filters and truncates their
reads, and writes the surviving read pairs as gzipped FASTQ files under
outdir, along with outdir/manifest.tsv listing them.`,
	}
	flags := newOptsFlags(&cmd.Flags, true)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("filter takes manifest and outdir, but got %v", argv)
		}
		opts, err := flags.get()
		if err != nil {
			return err
		}
		return runFilter(argv[0], argv[1], opts)
	})
	return cmd
}

func newCmdLearnErrors() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "learn-errors",
		Short:    "Estimate the error models of the samples in a manifest",
		ArgsName: "manifest outdir",
	}
	flags := newOptsFlags(&cmd.Flags, false)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("learn-errors takes manifest and outdir, but got %v", argv)
		}
		opts, err := flags.get()
		if err != nil {
			return err
		}
		return runLearn(argv[0], argv[1], opts)
	})
	return cmd
}

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run",
		Short:    "Infer the sequence variants of the samples in a manifest",
		ArgsName: "manifest outdir",
	}
	flags := newOptsFlags(&cmd.Flags, false)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("run takes manifest and outdir, but got %v", argv)
		}
		opts, err := flags.get()
		if err != nil {
			return err
		}
		return run(argv[0], argv[1], opts)
	})
	return cmd
}

func newCmdRemoveChimeras() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "remove-chimeras",
		Short:    "Remove bimeras from a sequence table",
		ArgsName: "indir outdir",
		Long: `
Remove-chimeras reads indir/seqtab.tsv and indir/sequences.fa, as written by
run -skip-chimera, and writes the table without bimeras to outdir.`,
	}
	opts := chimera.DefaultOpts
	method := cmd.Flags.String("chimera-method", opts.Method.String(), "Bimera removal method: consensus, pooled or per-sample")
	cmd.Flags.BoolVar(&opts.AllowOneOff, "allow-one-off", opts.AllowOneOff, "Also flag bimeras that are one mismatch away from a parent combination")
	cmd.Flags.Float64Var(&opts.MinFoldParentOverAbundance, "min-fold", opts.MinFoldParentOverAbundance, "Parents must be more abundant than the candidate by this factor")
	cmd.Flags.Float64Var(&opts.MinSampleFraction, "min-sample-fraction", opts.MinSampleFraction, "Consensus method: fraction of samples that must flag a sequence")
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism, "Number of sequences tested concurrently")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("remove-chimeras takes indir and outdir, but got %v", argv)
		}
		m, err := chimera.ParseMethod(*method)
		if err != nil {
			return err
		}
		opts.Method = m
		return removeChimeras(argv[0], argv[1], opts)
	})
	return cmd
}

func runFilter(manifest, outDir string, opts pipeline.Opts) (err error) {
	ctx := vcontext.Background()
	samples, err := pipeline.ReadManifest(ctx, manifest)
	if err != nil {
		return err
	}
	kept, stats, skipped, err := pipeline.Filter(ctx, samples, outDir, opts)
	if err != nil {
		return err
	}
	for i, s := range kept {
		log.Printf("%s: %d of %d read pairs kept", s.Name, stats[i].Out, stats[i].In)
	}
	if len(skipped) > 0 {
		log.Error.Printf("%d of %d samples skipped", len(skipped), len(samples))
	}
	path := file.Join(outDir, "manifest.tsv")
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return pipeline.WriteManifest(out.Writer(ctx), kept)
}

func runLearn(manifest, outDir string, opts pipeline.Opts) error {
	ctx := vcontext.Background()
	samples, err := pipeline.ReadManifest(ctx, manifest)
	if err != nil {
		return err
	}
	diag, err := pipeline.Learn(ctx, samples, outDir, opts)
	if err != nil {
		return err
	}
	if !diag.LearnedF.Converged || !diag.LearnedR.Converged {
		log.Error.Printf("error estimation did not converge; consider raising -error-max-rounds")
	}
	return nil
}

func run(manifest, outDir string, opts pipeline.Opts) error {
	ctx := vcontext.Background()
	samples, err := pipeline.ReadManifest(ctx, manifest)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(ctx, samples, outDir, opts)
	if err != nil {
		return err
	}
	for _, s := range res.Diagnostics.Skipped {
		log.Error.Printf("sample %s skipped: %v", s.Sample, s.Err)
	}
	return nil
}

func removeChimeras(inDir, outDir string, opts chimera.Opts) error {
	ctx := vcontext.Background()
	tab, err := seqtab.ReadFiles(ctx, file.Join(inDir, pipeline.SeqTabFile), file.Join(inDir, pipeline.SequencesFile))
	if err != nil {
		return err
	}
	r, err := chimera.Remove(tab, opts)
	if err != nil {
		return err
	}
	log.Printf("removed %d bimeric sequences (%d reads) of %d", len(r.Removed), r.RemovedAbundance, tab.NumColumns())
	return r.Table.WriteFiles(ctx, file.Join(outDir, pipeline.SeqTabFile), file.Join(outDir, pipeline.SequencesFile))
}

func main() {
	shutdown := grail.Init()
	defer shutdown()
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-amplicon",
			Short:    "Amplicon sequence variant inference",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdFilter(),
				newCmdLearnErrors(),
				newCmdRun(),
				newCmdRemoveChimeras(),
			},
		})
}
