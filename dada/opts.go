package dada

import (
	"runtime"

	"github.com/grailbio/amplicon/align"
	"github.com/grailbio/amplicon/errmodel"
)

// Opts configures the denoising engine.
type Opts struct {
	// OmegaA is the significance threshold for promoting a unique to a new
	// cluster center. The abundance p-value is Bonferroni-corrected by the
	// number of uniques before the comparison.
	OmegaA float64
	// DetectSingletons allows uniques of abundance 1 to become centers. When
	// false, a singleton is always explained as an error.
	DetectSingletons bool
	// MinAbundance is the smallest abundance a unique must have to be
	// promoted.
	MinAbundance int
	// KDistCutoff is the k-mer distance above which a unique is considered
	// too far from a center to be one of its errors. The pair is not aligned
	// and its error-derivation probability is zero. Zero disables the screen.
	KDistCutoff float64
	// Align is the aligner configuration used to compare uniques to centers.
	Align align.Opts
	// GapProb is the probability charged for each internal alignment gap.
	GapProb float64
	// MaxShuffle caps the number of reassignment passes after a promotion.
	MaxShuffle int
	// MaxClusters caps the number of clusters. Zero means no limit. Reaching
	// the cap stops the clustering and the result is marked unconverged.
	MaxClusters int
	// UseQuals enables quality-aware error probabilities. When false, every
	// position is looked up (and counted) at quality 0, which suits a
	// quality-independent model such as errmodel.Uniform.
	UseQuals bool
}

// DefaultOpts are the default denoising options.
var DefaultOpts = Opts{
	OmegaA:       1e-40,
	MinAbundance: 1,
	KDistCutoff:  0.42,
	Align:        align.DefaultOpts,
	GapProb:      1e-4,
	MaxShuffle:   10,
	UseQuals:     true,
}

// LearnOpts configures LearnErrors.
type LearnOpts struct {
	// MaxRounds caps the number of estimation rounds.
	MaxRounds int
	// Tolerance is the largest per-entry change between the models of two
	// consecutive rounds for the estimate to be considered converged.
	Tolerance float64
	// MaxReads caps the number of reads used. Samples are taken in order,
	// whole, until at least MaxReads reads have been collected.
	MaxReads int
	// Parallelism is the number of samples denoised concurrently.
	Parallelism int
	// Pool denoises the samples as one pooled set.
	Pool bool
	// MaxQual is the highest quality score of the model.
	MaxQual int
	Fit     errmodel.FitOpts
	Denoise Opts
}

// DefaultLearnOpts are the default error estimation options.
var DefaultLearnOpts = LearnOpts{
	MaxRounds:   10,
	Tolerance:   1e-5,
	MaxReads:    1000000,
	Parallelism: runtime.NumCPU(),
	MaxQual:     errmodel.DefaultMaxQual,
	Fit:         errmodel.DefaultFitOpts,
	Denoise:     DefaultOpts,
}
