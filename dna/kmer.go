package dna

// KmerSize is the k used for k-mer distance screening.
const KmerSize = 5

// nKmer is 4^KmerSize.
const nKmer = 1 << (2 * KmerSize)

// KmerProfile counts the occurrences of every ACGT k-mer of a sequence.
// K-mers that contain a non-ACGT base are skipped.
type KmerProfile []uint16

// NewKmerProfile computes the k-mer profile of seq.
func NewKmerProfile(seq string) KmerProfile {
	p := make(KmerProfile, nKmer)
	var (
		kmer  uint32
		valid int // number of consecutive ACGT bases ending at i
	)
	const mask = nKmer - 1
	for i := 0; i < len(seq); i++ {
		b := acgtnIndex[seq[i]]
		if b == BaseN {
			valid = 0
			continue
		}
		kmer = ((kmer << 2) | uint32(b)) & mask
		valid++
		if valid >= KmerSize && p[kmer] < ^uint16(0) {
			p[kmer]++
		}
	}
	return p
}

// KmerDistance computes 1 - (shared k-mers)/(min(len1,len2) - k + 1), the
// fraction of k-mers not shared between two sequences.  It returns 1 if
// either sequence is shorter than the k-mer size.
func KmerDistance(p1 KmerProfile, len1 int, p2 KmerProfile, len2 int) float64 {
	n := len1
	if len2 < n {
		n = len2
	}
	n -= KmerSize - 1
	if n <= 0 {
		return 1
	}
	shared := 0
	for i := range p1 {
		if p1[i] < p2[i] {
			shared += int(p1[i])
		} else {
			shared += int(p2[i])
		}
	}
	return 1 - float64(shared)/float64(n)
}
