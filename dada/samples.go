package dada

import (
	"sort"

	"github.com/grailbio/amplicon/derep"
	"github.com/grailbio/amplicon/errmodel"
	"github.com/grailbio/base/traverse"
)

// DenoiseSamples denoises each set independently, running up to parallelism
// sets concurrently. The model is shared read-only by all tasks.
func DenoiseSamples(sets []*derep.Set, model *errmodel.Model, opts Opts, parallelism int) ([]*Result, error) {
	results := make([]*Result, len(sets))
	if parallelism <= 0 {
		parallelism = 1
	}
	if parallelism > len(sets) {
		parallelism = len(sets)
	}
	if parallelism == 0 {
		return results, nil
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(sets)) / parallelism
		endIdx := ((jobIdx + 1) * len(sets)) / parallelism
		for i := startIdx; i < endIdx; i++ {
			results[i] = Denoise(sets[i], model, opts)
		}
		return nil
	})
	return results, err
}

// Pooled is the result of DenoisePooled.
type Pooled struct {
	// Set is the union of the input sets. Abundances are summed across
	// samples and qualities averaged, weighted by abundance.
	Set *derep.Set
	// Result is the clustering of Set.
	Result *Result
	// Samples[i] reports the clustering in terms of the i'th input set. Its
	// variants are those with nonzero abundance in the sample. The center of
	// a variant need not occur in the sample, in which case Center and
	// Partition.Centers hold -1. Sample results carry no transition counts;
	// they are in Result.
	Samples []*Result
}

// DenoisePooled clusters the uniques of all sets together, then reports the
// variants of each set.
func DenoisePooled(sets []*derep.Set, model *errmodel.Model, opts Opts) (*Pooled, error) {
	var reads []derep.WeightedRead
	for _, s := range sets {
		reads = append(reads, s.Reads()...)
	}
	pooled, err := derep.DereplicateWeighted(reads)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, pooled.Len())
	for i, u := range pooled.Uniques {
		index[u.Seq] = i
	}
	p := &Pooled{
		Set:     pooled,
		Result:  Denoise(pooled, model, opts),
		Samples: make([]*Result, len(sets)),
	}
	for i, s := range sets {
		p.Samples[i] = sampleResult(s, index, p.Result, model.MaxQual)
	}
	return p, nil
}

// sampleResult projects the pooled clustering onto the uniques of set s.
func sampleResult(s *derep.Set, index map[string]int, pooled *Result, maxQual int) *Result {
	r := &Result{
		Converged: pooled.Converged,
		Counts:    errmodel.NewCounts(maxQual),
		Map:       make([]int, s.Len()),
	}
	local := map[int]int{} // pooled variant -> local variant
	var pooledIdx []int
	abundance := map[int]int{}
	for _, uu := range s.Uniques {
		pv := pooled.Map[index[uu.Seq]]
		if _, ok := local[pv]; !ok {
			local[pv] = len(pooledIdx)
			pooledIdx = append(pooledIdx, pv)
		}
		abundance[pv] += uu.Abundance
	}
	sort.SliceStable(pooledIdx, func(i, j int) bool {
		vi, vj := pooledIdx[i], pooledIdx[j]
		if abundance[vi] != abundance[vj] {
			return abundance[vi] > abundance[vj]
		}
		return pooled.Variants[vi].Seq < pooled.Variants[vj].Seq
	})
	r.Variants = make([]Variant, len(pooledIdx))
	r.Partition.Centers = make([]int, len(pooledIdx))
	for i, pv := range pooledIdx {
		local[pv] = i
		v := pooled.Variants[pv]
		center := s.Index(v.Seq)
		r.Variants[i] = Variant{Seq: v.Seq, Abundance: abundance[pv], Center: center, PValue: v.PValue}
		r.Partition.Centers[i] = center
	}
	for u, uu := range s.Uniques {
		v := local[pooled.Map[index[uu.Seq]]]
		r.Map[u] = v
		r.Variants[v].Members = append(r.Variants[v].Members, u)
	}
	r.Partition.Center = r.Map
	return r
}
