package dada

import (
	"context"
	"math"

	"github.com/grailbio/amplicon/derep"
	"github.com/grailbio/amplicon/errmodel"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Learned is the result of LearnErrors.
type Learned struct {
	// Model is the last model computed.
	Model *errmodel.Model
	// Converged is false if the loop stopped at MaxRounds or at the context
	// deadline before two consecutive models agreed within Tolerance.
	Converged bool
	// Rounds is the number of denoising rounds run.
	Rounds int
	// MaxDiffs[i] is the distance between the models of rounds i and i+1.
	// The first entry compares against the bootstrap model.
	MaxDiffs []float64
	// NSamples and NReads count the input used, after the read cap.
	NSamples, NReads int
	// Counts are the transition counts the final model was fit to.
	Counts errmodel.Counts
}

// LearnErrors estimates an error model from dereplicated samples. The first
// round denoises with errmodel.Pessimistic, under which every unique is an
// error of the most abundant one. Each later round denoises the samples
// under the model fit to the transitions observed in the previous round's
// partitions. The loop stops when two consecutive models differ by less
// than opts.Tolerance, after opts.MaxRounds rounds, or when ctx is done; in
// the last two cases the last model is returned with Converged=false.
//
// Every round uses a fresh model; models are never modified once denoising
// has started with them.
func LearnErrors(ctx context.Context, sets []*derep.Set, opts LearnOpts) (*Learned, error) {
	var (
		used  []*derep.Set
		nRead int
	)
	for _, s := range sets {
		if opts.MaxReads > 0 && nRead >= opts.MaxReads {
			break
		}
		if s.Len() == 0 {
			continue
		}
		used = append(used, s)
		nRead += s.TotalReads()
	}
	if nRead == 0 {
		return nil, errors.New("dada: no reads to learn errors from")
	}
	log.Printf("dada: learning errors from %d reads in %d samples", nRead, len(used))

	l := &Learned{Model: errmodel.Pessimistic(opts.MaxQual), NSamples: len(used), NReads: nRead}
	for round := 1; round <= opts.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			if round == 1 {
				return nil, errors.Wrap(err, "dada: learning errors")
			}
			log.Error.Printf("dada: error estimation stopped after %d rounds: %v", l.Rounds, err)
			break
		}
		dopts := opts.Denoise
		if round == 1 {
			// Nothing is too far from the most abundant unique to be one of
			// its errors under the bootstrap model.
			dopts.KDistCutoff = 0
			dopts.GapProb = 1
		}
		counts, err := roundCounts(used, l.Model, dopts, opts)
		if err != nil {
			return nil, err
		}
		next := errmodel.Fit(counts, opts.Fit)
		diff := next.MaxDiff(l.Model)
		l.Model, l.Counts = next, counts
		l.Rounds = round
		l.MaxDiffs = append(l.MaxDiffs, diff)
		log.Printf("dada: error estimation round %d: max change %g", round, diff)
		if diff < opts.Tolerance {
			l.Converged = true
			break
		}
	}
	if !l.Converged {
		log.Error.Printf("dada: error estimation did not converge after %d rounds (last change %g)",
			l.Rounds, lastOr(l.MaxDiffs, math.Inf(1)))
	}
	for _, w := range l.Model.Validate() {
		log.Debug.Printf("dada: error model: %v", w)
	}
	return l, nil
}

// roundCounts denoises the sets under model and returns the summed
// transition counts.
func roundCounts(sets []*derep.Set, model *errmodel.Model, dopts Opts, opts LearnOpts) (errmodel.Counts, error) {
	if opts.Pool {
		p, err := DenoisePooled(sets, model, dopts)
		if err != nil {
			return errmodel.Counts{}, err
		}
		return p.Result.Counts, nil
	}
	results, err := DenoiseSamples(sets, model, dopts, opts.Parallelism)
	if err != nil {
		return errmodel.Counts{}, err
	}
	counts := errmodel.NewCounts(model.MaxQual)
	for _, r := range results {
		counts = counts.Merge(r.Counts)
	}
	return counts, nil
}

func lastOr(x []float64, def float64) float64 {
	if len(x) == 0 {
		return def
	}
	return x[len(x)-1]
}
