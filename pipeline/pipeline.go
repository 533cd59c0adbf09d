// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pipeline runs the amplicon workflow over a set of paired-end
// samples: optional read filtering, dereplication, error estimation for each
// read direction, denoising, pair merging, construction of the sequence
// table, and bimera removal. It keeps per-sample counts of the reads that
// survive each stage.
package pipeline

import (
	"context"
	"io"

	"github.com/grailbio/amplicon/chimera"
	"github.com/grailbio/amplicon/dada"
	"github.com/grailbio/amplicon/derep"
	"github.com/grailbio/amplicon/encoding/fastq"
	"github.com/grailbio/amplicon/errmodel"
	"github.com/grailbio/amplicon/filter"
	"github.com/grailbio/amplicon/merge"
	"github.com/grailbio/amplicon/seqtab"
	"github.com/grailbio/base/compress"
	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
)

// ErrInputMismatch is the cause of the error recorded for a sample whose
// forward and reverse reads do not pair up.
var ErrInputMismatch = merge.ErrInputMismatch

// Skipped is a sample left out of the run.
type Skipped struct {
	Sample string
	Err    error
}

// Diagnostics collects the per-stage details of a run.
type Diagnostics struct {
	// Skipped lists the samples that were dropped, in input order.
	Skipped []Skipped
	// LearnedF and LearnedR describe error estimation. They are nil for a
	// direction whose model was loaded from a file.
	LearnedF, LearnedR *dada.Learned
	// Filter, Merge and NUniques are indexed like Result.Samples. Filter is
	// nil unless Opts.Filter is set.
	Filter   []filter.Stats
	Merge    []merge.Stats
	NUniques [][2]int
	// Chimera is nil if bimera removal is disabled.
	Chimera *chimera.Result
}

// Result is the output of Run.
type Result struct {
	// Samples are the names of the samples processed, in input order.
	Samples []string
	// Table is the final sequence table.
	Table *seqtab.Table
	// ModelF and ModelR are the error models used to denoise the two read
	// directions.
	ModelF, ModelR *errmodel.Model
	// Track[i] counts the reads of Samples[i] at each stage.
	Track       []Track
	Diagnostics Diagnostics
}

// sample is the dereplicated input of one sample.
type sample struct {
	Sample
	track    Track
	filter   filter.Stats
	fwd, rev *derep.Set
	// err is set if the sample is skipped.
	err error
}

// Run runs the workflow over the samples. If outDir is nonempty, the
// outputs (SeqTabFile, SequencesFile, TrackFile, ErrFFile and ErrRFile) are
// written there.
//
// A sample whose forward and reverse reads are discordant is skipped, and
// recorded in Diagnostics.Skipped with an error whose cause is
// ErrInputMismatch. An empty sample is not an error; it yields a row of
// zeros. Run fails if the sample list is malformed, or if no reads remain.
func Run(ctx context.Context, samples []Sample, outDir string, opts Opts) (*Result, error) {
	in, diag, err := load(ctx, samples, outDir, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{Diagnostics: diag}
	res.ModelF, res.ModelR, err = models(ctx, in, outDir, opts, &res.Diagnostics)
	if err != nil {
		return nil, err
	}

	fwdSets, revSets := make([]*derep.Set, len(in)), make([]*derep.Set, len(in))
	for i, s := range in {
		fwdSets[i], revSets[i] = s.fwd, s.rev
		res.Samples = append(res.Samples, s.Name)
	}
	fwd, err := denoise(fwdSets, res.ModelF, opts)
	if err != nil {
		return nil, errors.Wrap(err, "denoise forward reads")
	}
	rev, err := denoise(revSets, res.ModelR, opts)
	if err != nil {
		return nil, errors.Wrap(err, "denoise reverse reads")
	}

	merged := make([][]merge.Variant, len(in))
	res.Diagnostics.Merge = make([]merge.Stats, len(in))
	res.Diagnostics.NUniques = make([][2]int, len(in))
	for i, s := range in {
		var stats merge.Stats
		merged[i], stats, err = merge.Pairs(
			merge.Direction{Derep: s.fwd, Denoised: fwd[i]},
			merge.Direction{Derep: s.rev, Denoised: rev[i]},
			opts.Merge)
		if err != nil {
			// Unreachable for pairs read by load.
			return nil, errors.Wrapf(err, "sample %s", s.Name)
		}
		res.Diagnostics.Merge[i] = stats
		res.Diagnostics.NUniques[i] = [2]int{s.fwd.Len(), s.rev.Len()}
		s.track.DenoisedF = int64(fwd[i].TotalAbundance())
		s.track.DenoisedR = int64(rev[i].TotalAbundance())
		s.track.Merged = int64(stats.Merged)
		log.Printf("sample %s: %d read pairs, %d+%d variants, %d pairs merged (%d of %d combinations rejected)",
			s.Name, stats.Pairs, len(fwd[i].Variants), len(rev[i].Variants),
			stats.Merged, stats.RejectedCombinations, stats.Combinations)
	}

	tab := seqtab.Build(res.Samples, merged)
	for i, n := range tab.SampleTotals() {
		in[i].track.Tabled = int64(n)
	}
	if !opts.SkipChimera {
		r, err := chimera.Remove(tab, opts.Chimera)
		if err != nil {
			return nil, errors.Wrap(err, "remove bimeras")
		}
		res.Diagnostics.Chimera = r
		tab = r.Table
	}
	for i, n := range tab.SampleTotals() {
		in[i].track.NonChim = int64(n)
	}
	res.Table = tab
	for _, s := range in {
		res.Track = append(res.Track, s.track)
	}
	log.Printf("%d samples, %d sequence variants, %d reads tabled", tab.NumSamples(), tab.NumColumns(), total(tab))

	if outDir == "" {
		return res, nil
	}
	if err := tab.WriteFiles(ctx, file.Join(outDir, SeqTabFile), file.Join(outDir, SequencesFile)); err != nil {
		return nil, err
	}
	if err := writeTrackFile(ctx, file.Join(outDir, TrackFile), res.Track); err != nil {
		return nil, err
	}
	return res, nil
}

// Learn estimates the error models of the samples without denoising them
// further. If outDir is nonempty, the models are written to ErrFFile and
// ErrRFile.
func Learn(ctx context.Context, samples []Sample, outDir string, opts Opts) (*Diagnostics, error) {
	opts.ModelF, opts.ModelR = "", ""
	in, diag, err := load(ctx, samples, outDir, opts)
	if err != nil {
		return nil, err
	}
	if _, _, err := models(ctx, in, outDir, opts, &diag); err != nil {
		return nil, err
	}
	return &diag, nil
}

func total(tab *seqtab.Table) int {
	n := 0
	for _, t := range tab.SampleTotals() {
		n += t
	}
	return n
}

// validate checks that every sample has a unique name and a pair of inputs.
func validate(samples []Sample) error {
	seen := map[string]bool{}
	for _, s := range samples {
		if s.Name == "" {
			return errors.Errorf("sample with inputs %q, %q has no name", s.R1, s.R2)
		}
		if seen[s.Name] {
			return errors.Errorf("sample %s: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if s.R1 == "" || s.R2 == "" {
			return errors.Errorf("sample %s: forward and reverse inputs are both required", s.Name)
		}
	}
	return nil
}

// load reads and dereplicates the samples, filtering them first if
// requested. Skipped samples are dropped from the returned list.
func load(ctx context.Context, samples []Sample, outDir string, opts Opts) ([]*sample, Diagnostics, error) {
	var diag Diagnostics
	if err := validate(samples); err != nil {
		return nil, diag, err
	}
	if len(samples) == 0 {
		return nil, diag, errors.New("no samples")
	}
	if opts.Filter && outDir == "" {
		return nil, diag, errors.New("filtering requires an output directory")
	}
	all := make([]*sample, len(samples))
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	if parallelism > len(samples) {
		parallelism = len(samples)
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(samples)) / parallelism
		endIdx := ((jobIdx + 1) * len(samples)) / parallelism
		for i := startIdx; i < endIdx; i++ {
			s, err := loadSample(ctx, samples[i], outDir, opts)
			if err != nil {
				return err
			}
			all[i] = s
		}
		return nil
	})
	if err != nil {
		return nil, diag, err
	}

	var (
		in    []*sample
		nRead int
	)
	for _, s := range all {
		if s.err != nil {
			log.Error.Printf("skipping sample %s: %v", s.Name, s.err)
			diag.Skipped = append(diag.Skipped, Skipped{Sample: s.Name, Err: s.err})
			continue
		}
		in = append(in, s)
		nRead += s.fwd.TotalReads()
		if opts.Filter {
			diag.Filter = append(diag.Filter, s.filter)
		}
	}
	if nRead == 0 {
		return nil, diag, errors.Errorf("no reads in %d samples (%d skipped)", len(samples), len(diag.Skipped))
	}
	return in, diag, nil
}

func loadSample(ctx context.Context, s Sample, outDir string, opts Opts) (*sample, error) {
	r := &sample{Sample: s}
	r.track.Sample = s.Name
	r1, r2 := s.R1, s.R2
	if opts.Filter {
		out, stats, err := filterSample(ctx, s, file.Join(outDir, filteredDir), opts)
		if errors.Cause(err) == ErrInputMismatch {
			r.err = err
			return r, nil
		}
		if err != nil {
			return nil, err
		}
		r.filter = stats
		r.track.Input = int64(stats.In)
		r1, r2 = out.R1, out.R2
	}
	fwd, rev, err := readPairs(ctx, r1, r2)
	if errors.Cause(err) == fastq.ErrDiscordant {
		r.err = errors.Wrapf(ErrInputMismatch, "sample %s: %v", s.Name, err)
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	r.track.Filtered = int64(len(fwd))
	if !opts.Filter {
		r.track.Input = r.track.Filtered
	}
	if r.fwd, err = derep.Dereplicate(fwd); err != nil {
		return nil, errors.Wrapf(err, "sample %s: forward reads", s.Name)
	}
	if r.rev, err = derep.Dereplicate(rev); err != nil {
		return nil, errors.Wrapf(err, "sample %s: reverse reads", s.Name)
	}
	log.Debug.Printf("sample %s: %d read pairs, %d+%d uniques", s.Name, len(fwd), r.fwd.Len(), r.rev.Len())
	return r, nil
}

// filterSample filters the reads of s into dir.
func filterSample(ctx context.Context, s Sample, dir string, opts Opts) (Sample, filter.Stats, error) {
	paths := filter.PairedPaths{
		In1:  s.R1,
		In2:  s.R2,
		Out1: file.Join(dir, s.Name+"_F.fastq.gz"),
		Out2: file.Join(dir, s.Name+"_R.fastq.gz"),
	}
	stats, err := filter.FilterPairedFiles(ctx, paths, opts.FilterF, opts.FilterR)
	if err == fastq.ErrDiscordant {
		err = errors.Wrapf(ErrInputMismatch, "sample %s: %v", s.Name, err)
	}
	return Sample{Name: s.Name, R1: paths.Out1, R2: paths.Out2}, stats, err
}

// Filter filters the reads of every sample into dir, and returns the
// samples with their filtered inputs. Samples whose forward and reverse
// reads are discordant are left out, and reported in the returned
// Skipped list.
func Filter(ctx context.Context, samples []Sample, dir string, opts Opts) ([]Sample, []filter.Stats, []Skipped, error) {
	if err := validate(samples); err != nil {
		return nil, nil, nil, err
	}
	var (
		out     = make([]Sample, len(samples))
		stats   = make([]filter.Stats, len(samples))
		errs    = make([]error, len(samples))
		kept    []Sample
		keptSt  []filter.Stats
		skipped []Skipped
	)
	err := traverse.Each(len(samples), func(i int) error {
		out[i], stats[i], errs[i] = filterSample(ctx, samples[i], dir, opts)
		if errors.Cause(errs[i]) == ErrInputMismatch {
			return nil
		}
		return errs[i]
	})
	if err != nil {
		return nil, nil, nil, err
	}
	for i := range samples {
		if errs[i] != nil {
			log.Error.Printf("skipping sample %s: %v", samples[i].Name, errs[i])
			skipped = append(skipped, Skipped{Sample: samples[i].Name, Err: errs[i]})
			continue
		}
		kept = append(kept, out[i])
		keptSt = append(keptSt, stats[i])
	}
	return kept, keptSt, skipped, nil
}

// readPairs reads a pair of (optionally compressed) FASTQ files.
func readPairs(ctx context.Context, path1, path2 string) (fwd, rev []derep.Read, err error) {
	in1, err := file.Open(ctx, path1)
	if err != nil {
		return nil, nil, gerrors.E(err, "open", path1)
	}
	defer file.CloseAndReport(ctx, in1, &err)
	in2, err := file.Open(ctx, path2)
	if err != nil {
		return nil, nil, gerrors.E(err, "open", path2)
	}
	defer file.CloseAndReport(ctx, in2, &err)
	var rd1, rd2 io.Reader = in1.Reader(ctx), in2.Reader(ctx)
	if u, _ := compress.NewReaderPath(rd1, in1.Name()); u != nil {
		rd1 = u
	}
	if u, _ := compress.NewReaderPath(rd2, in2.Name()); u != nil {
		rd2 = u
	}
	sc := fastq.NewPairScanner(rd1, rd2, fastq.ID|fastq.Seq|fastq.Unk|fastq.Qual)
	var read1, read2 fastq.Read
	for sc.Scan(&read1, &read2) {
		fwd = append(fwd, derep.Read{Seq: read1.Seq, Qual: read1.Phred()})
		rev = append(rev, derep.Read{Seq: read2.Seq, Qual: read2.Phred()})
	}
	if err := sc.Err(); err != nil {
		if err == fastq.ErrDiscordant {
			return nil, nil, errors.Wrapf(err, "read %s, %s", path1, path2)
		}
		return nil, nil, gerrors.E(err, "read", path1, path2)
	}
	return fwd, rev, nil
}

// models loads or learns the error models of the two read directions.
func models(ctx context.Context, in []*sample, outDir string, opts Opts, diag *Diagnostics) (modelF, modelR *errmodel.Model, err error) {
	lopts := opts.Learn
	lopts.Pool = opts.Pool
	lopts.Denoise = opts.Denoise
	lopts.Parallelism = opts.Parallelism

	direction := func(name, path, out string, sets []*derep.Set) (*errmodel.Model, *dada.Learned, error) {
		if path != "" {
			m, err := errmodel.Read(ctx, path)
			return m, nil, err
		}
		l, err := dada.LearnErrors(ctx, sets, lopts)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s reads", name)
		}
		log.Printf("%s error model: %d rounds over %d reads, converged=%v",
			name, l.Rounds, l.NReads, l.Converged)
		if outDir != "" {
			if err := errmodel.Write(ctx, file.Join(outDir, out), l.Model); err != nil {
				return nil, nil, err
			}
		}
		return l.Model, l, nil
	}
	fwdSets, revSets := make([]*derep.Set, len(in)), make([]*derep.Set, len(in))
	for i, s := range in {
		fwdSets[i], revSets[i] = s.fwd, s.rev
	}
	if modelF, diag.LearnedF, err = direction("forward", opts.ModelF, ErrFFile, fwdSets); err != nil {
		return nil, nil, err
	}
	if modelR, diag.LearnedR, err = direction("reverse", opts.ModelR, ErrRFile, revSets); err != nil {
		return nil, nil, err
	}
	return modelF, modelR, nil
}

// denoise denoises the sets of one read direction and returns one result
// per set.
func denoise(sets []*derep.Set, model *errmodel.Model, opts Opts) ([]*dada.Result, error) {
	if opts.Pool {
		p, err := dada.DenoisePooled(sets, model, opts.Denoise)
		if err != nil {
			return nil, err
		}
		return p.Samples, nil
	}
	return dada.DenoiseSamples(sets, model, opts.Denoise, opts.Parallelism)
}
