package merge

import (
	"strings"
	"testing"

	"github.com/grailbio/amplicon/dada"
	"github.com/grailbio/amplicon/derep"
	"github.com/grailbio/amplicon/dna"
	"github.com/grailbio/testutil/expect"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	opts := DefaultOpts
	opts.MinOverlap = 4

	// The reverse complement of GGGGACGT is ACGTCCCC, whose ACGT prefix
	// overlaps the ACGT suffix of the forward read.
	v := Join("ACGTACGT", "GGGGACGT", opts)
	expect.True(t, v.Accept)
	expect.EQ(t, v.Seq, "ACGTACGTCCCC")
	expect.EQ(t, v.NMatch, 4)
	expect.EQ(t, v.NMismatch, 0)

	// ACTTCCCC: the overlap has a mismatch.
	v = Join("ACGTACGT", "GGGGAAGT", opts)
	expect.False(t, v.Accept)
	expect.EQ(t, v.Seq, "")

	opts.MaxMismatch = 1
	v = Join("ACGTACGT", "GGGGAAGT", opts)
	expect.True(t, v.Accept)
	expect.EQ(t, v.Seq, "ACGTACGTCCCC")
	expect.EQ(t, v.NMatch, 3)
	expect.EQ(t, v.NMismatch, 1)

	// Too short an overlap.
	opts = DefaultOpts
	v = Join("ACGTACGT", "GGGGACGT", opts)
	expect.False(t, v.Accept)
}

func TestJoinReadThrough(t *testing.T) {
	amplicon := "ACGTTGCAAGGCTTAC"
	opts := DefaultOpts
	opts.MinOverlap = 8
	// Both reads run past the end of the amplicon into adapter sequence.
	for _, tail := range []string{"A", "AG", "AGATCG"} {
		rev := dna.ReverseComplement(amplicon) + strings.Repeat("T", len(tail))
		v := Join(amplicon+tail, rev, opts)
		expect.True(t, v.Accept, "tail %s", tail)
		expect.EQ(t, v.Seq, amplicon, "tail %s", tail)
		expect.EQ(t, v.NMatch, 16, "tail %s", tail)
		expect.EQ(t, v.NMismatch, 0, "tail %s", tail)
	}

	// Only the reverse read runs through.
	v := Join(amplicon[:12], dna.ReverseComplement(amplicon)+"TTT", opts)
	expect.True(t, v.Accept)
	expect.EQ(t, v.Seq, amplicon)
	expect.EQ(t, v.NMatch, 12)
}

func TestJustConcatenate(t *testing.T) {
	opts := DefaultOpts
	opts.JustConcatenate = true
	v := Join("AAAC", "GGTT", opts)
	expect.True(t, v.Accept)
	expect.EQ(t, v.Seq, "AAACNNNNNNNNNNAACC")
}

const (
	amplicon1 = "GATCCTAGGCATTGACCGTAAGCTTCAGGA"
	amplicon2 = "TTGCAGCATGACTAGGTCCAATCGGATTCA"
)

// direction builds a dereplicated set with one unique per sequence, each
// unique denoised into its own variant.
func direction(seqs []string, readMap []int) Direction {
	set := &derep.Set{Map: readMap}
	res := &dada.Result{}
	for i, s := range seqs {
		set.Uniques = append(set.Uniques, derep.Unique{Seq: s, Qual: make([]float64, len(s))})
		res.Variants = append(res.Variants, dada.Variant{Seq: s, Center: i, Members: []int{i}})
		res.Map = append(res.Map, i)
	}
	for _, u := range readMap {
		set.Uniques[u].Abundance++
		res.Variants[u].Abundance++
	}
	return Direction{Derep: set, Denoised: res}
}

func TestPairs(t *testing.T) {
	fwd := direction([]string{amplicon1[:20], amplicon2[:20]}, []int{0, 0, 0, 1, 0})
	rev := direction([]string{
		dna.ReverseComplement(amplicon1)[:20],
		dna.ReverseComplement(amplicon2)[:20],
	}, []int{0, 0, 0, 1, 1})
	opts := DefaultOpts
	opts.MinOverlap = 8

	merged, stats, err := Pairs(fwd, rev, opts)
	require.NoError(t, err)
	require.Equal(t, 2, len(merged))
	expect.EQ(t, merged[0], Variant{Seq: amplicon1, Abundance: 3, Forward: 0, Reverse: 0, NMatch: 10, Accept: true})
	expect.EQ(t, merged[1], Variant{Seq: amplicon2, Abundance: 1, Forward: 1, Reverse: 1, NMatch: 10, Accept: true})
	expect.EQ(t, stats, Stats{Pairs: 5, Merged: 4, Rejected: 1, Combinations: 3, RejectedCombinations: 1})

	opts.ReturnRejects = true
	merged, _, err = Pairs(fwd, rev, opts)
	require.NoError(t, err)
	require.Equal(t, 3, len(merged))
	expect.False(t, merged[1].Accept)
	expect.EQ(t, merged[1].Forward, 0)
	expect.EQ(t, merged[1].Reverse, 1)
	expect.EQ(t, merged[1].Abundance, 1)
}

func TestPairsInputMismatch(t *testing.T) {
	fwd := direction([]string{amplicon1[:20]}, []int{0, 0, 0})
	rev := direction([]string{dna.ReverseComplement(amplicon1)[:20]}, []int{0, 0})
	_, _, err := Pairs(fwd, rev, DefaultOpts)
	require.Error(t, err)
	expect.EQ(t, errors.Cause(err), ErrInputMismatch)
}

func TestStatsMerge(t *testing.T) {
	a := Stats{Pairs: 3, Merged: 2, Rejected: 1, Combinations: 2, RejectedCombinations: 1}
	expect.EQ(t, a.Merge(a), Stats{Pairs: 6, Merged: 4, Rejected: 2, Combinations: 4, RejectedCombinations: 2})
}
