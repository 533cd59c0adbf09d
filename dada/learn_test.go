package dada

import (
	"context"
	"math/rand"
	"testing"

	"github.com/grailbio/amplicon/derep"
	"github.com/grailbio/amplicon/errmodel"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

// learnSets returns three samples, each holding one true sequence read 200
// times and ten single reads carrying one substitution each.
func learnSets(t *testing.T) []*derep.Set {
	rnd := rand.New(rand.NewSource(10))
	var sets []*derep.Set
	for i := 0; i < 3; i++ {
		truth := randomSeq(rnd, 60)
		counts := []seqCount{{truth, 200}}
		for j := 0; j < 10; j++ {
			counts = append(counts, seqCount{substitute(truth, 10+4*j), 1})
		}
		sets = append(sets, makeSet(t, counts...))
	}
	return sets
}

func TestLearnErrors(t *testing.T) {
	ctx := vcontext.Background()
	sets := learnSets(t)
	opts := DefaultLearnOpts
	opts.Parallelism = 2
	l, err := LearnErrors(ctx, sets, opts)
	require.NoError(t, err)
	expect.True(t, l.Converged)
	expect.EQ(t, l.Rounds, 2)
	expect.EQ(t, len(l.MaxDiffs), 2)
	expect.EQ(t, l.MaxDiffs[1], 0.0)
	expect.EQ(t, l.NSamples, 3)
	expect.EQ(t, l.NReads, 630)
	expect.EQ(t, l.Counts.Sum(), float64(630*60))
	expect.EQ(t, l.Model.MaxQual, errmodel.DefaultMaxQual)

	// Substitutions are rare, so the fitted rates are small.
	expect.True(t, l.Model.P(0, 1, 30) < 0.01)
	expect.True(t, l.Model.P(0, 0, 30) > 0.97)

	results, err := DenoiseSamples(sets, l.Model, DefaultOpts, 3)
	require.NoError(t, err)
	for i, r := range results {
		expect.EQ(t, len(r.Variants), 1, "sample %d", i)
		expect.EQ(t, r.Variants[0].Abundance, 210)
	}
}

func TestLearnErrorsPooled(t *testing.T) {
	opts := DefaultLearnOpts
	opts.Pool = true
	l, err := LearnErrors(vcontext.Background(), learnSets(t), opts)
	require.NoError(t, err)
	expect.True(t, l.Converged)
	expect.EQ(t, l.Counts.Sum(), float64(630*60))
}

func TestLearnErrorsReadCap(t *testing.T) {
	opts := DefaultLearnOpts
	opts.MaxReads = 300
	l, err := LearnErrors(vcontext.Background(), learnSets(t), opts)
	require.NoError(t, err)
	expect.EQ(t, l.NSamples, 2)
	expect.EQ(t, l.NReads, 420)
}

func TestLearnErrorsRoundCap(t *testing.T) {
	opts := DefaultLearnOpts
	opts.MaxRounds = 1
	l, err := LearnErrors(vcontext.Background(), learnSets(t), opts)
	require.NoError(t, err)
	expect.False(t, l.Converged)
	expect.EQ(t, l.Rounds, 1)
	expect.EQ(t, len(l.Model.Validate()), 0)
}

func TestLearnErrorsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(vcontext.Background())
	cancel()
	_, err := LearnErrors(ctx, learnSets(t), DefaultLearnOpts)
	require.Error(t, err)
}

func TestLearnErrorsEmpty(t *testing.T) {
	_, err := LearnErrors(vcontext.Background(), []*derep.Set{makeSet(t)}, DefaultLearnOpts)
	require.Error(t, err)
}
