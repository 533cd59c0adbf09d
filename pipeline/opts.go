package pipeline

import (
	"runtime"

	"github.com/grailbio/amplicon/chimera"
	"github.com/grailbio/amplicon/dada"
	"github.com/grailbio/amplicon/filter"
	"github.com/grailbio/amplicon/merge"
)

// Opts configures Run.
type Opts struct {
	// Filter, if true, runs the inputs through the read filter before
	// denoising. The filtered files are written under OutDir/filtered.
	Filter bool
	// FilterF and FilterR configure the filter for forward and reverse
	// reads.
	FilterF, FilterR filter.Opts
	// ModelF and ModelR, if nonempty, name error model files written by a
	// previous run. Error estimation is skipped for a direction whose model
	// is given.
	ModelF, ModelR string
	// Learn configures error estimation. Learn.Pool and Learn.Denoise are
	// overridden by Pool and Denoise.
	Learn dada.LearnOpts
	// Denoise configures the denoising of the samples.
	Denoise dada.Opts
	// Pool denoises all samples of a direction as one pooled set.
	Pool bool
	// Merge configures the merging of read pairs.
	Merge merge.Opts
	// Chimera configures bimera removal.
	Chimera chimera.Opts
	// SkipChimera disables bimera removal.
	SkipChimera bool
	// Parallelism is the number of samples processed concurrently.
	Parallelism int
}

// DefaultOpts are the default pipeline options.
var DefaultOpts = Opts{
	Filter:      false,
	FilterF:     filter.DefaultOpts,
	FilterR:     filter.DefaultOpts,
	Learn:       dada.DefaultLearnOpts,
	Denoise:     dada.DefaultOpts,
	Pool:        false,
	Merge:       merge.DefaultOpts,
	Chimera:     chimera.DefaultOpts,
	SkipChimera: false,
	Parallelism: runtime.NumCPU(),
}

// Sample names the paired FASTQ files of one sample.
type Sample struct {
	Name   string
	R1, R2 string
}

// Output file names, relative to the output directory.
const (
	SeqTabFile    = "seqtab.tsv"
	SequencesFile = "sequences.fa"
	TrackFile     = "track.tsv"
	ErrFFile      = "errF.rio"
	ErrRFile      = "errR.rio"
	filteredDir   = "filtered"
)
