// Package align implements the pairwise comparisons used throughout the
// denoiser: Hamming distance and a banded, ends-free Needleman-Wunsch global
// alignment.
package align

import (
	"fmt"
	"strconv"
	"strings"
)

// Gap is the byte used to represent a gap in an aligned sequence.
const Gap = '-'

// Opts configures the aligner.
type Opts struct {
	// Match, Mismatch and Gap are the scores for an aligned identical pair, an
	// aligned non-identical pair, and a base aligned to a gap, respectively.
	Match, Mismatch, GapPenalty int
	// Band restricts the alignment to cells whose diagonal offset is within
	// Band of the diagonals spanned by the two sequence ends. A negative value
	// disables banding.
	Band int
	// EndsFree makes leading and trailing gaps free.
	EndsFree bool
}

// DefaultOpts are the scores used when comparing noisy reads to a center
// sequence.
var DefaultOpts = Opts{
	Match:      5,
	Mismatch:   -4,
	GapPenalty: -8,
	Band:       16,
	EndsFree:   true,
}

// Alignment is a pair of equal-length gapped sequences.
type Alignment struct {
	A, B  string
	Score int
}

// Len is the number of alignment columns.
func (a Alignment) Len() int { return len(a.A) }

// Counts returns the number of matching columns, mismatching columns, and
// internal gap columns. Gaps hanging off either end are not counted.
func (a Alignment) Counts() (match, mismatch, gaps int) {
	start, end := a.InternalRange()
	for i := start; i < end; i++ {
		switch {
		case a.A[i] == Gap || a.B[i] == Gap:
			gaps++
		case a.A[i] == a.B[i]:
			match++
		default:
			mismatch++
		}
	}
	return
}

// InternalRange returns the range [start,end) of columns in which both
// sequences have started and neither has ended.
func (a Alignment) InternalRange() (start, end int) {
	n := len(a.A)
	for start < n && (a.A[start] == Gap || a.B[start] == Gap) {
		start++
	}
	end = n
	for end > start && (a.A[end-1] == Gap || a.B[end-1] == Gap) {
		end--
	}
	return
}

// matrix represents a 2 dimensional matrix.
type matrix struct {
	nRow, nCol int
	data       []int // row-major nRow*nCol array.
}

// newMatrix returns an n x m matrix.
func newMatrix(n, m int) (x matrix) {
	return matrix{
		nRow: n,
		nCol: m,
		data: make([]int, n*m),
	}
}

func (m matrix) at(i, j int) int     { return m.data[i*m.nCol+j] }
func (m matrix) set(i, j int, v int) { m.data[i*m.nCol+j] = v }

// String returns a string representation of a matrix.
func (m matrix) String() (r string) {
	maxLength := 0
	for _, d := range m.data {
		if l := len(strconv.Itoa(d)); l > maxLength {
			maxLength = l
		}
	}

	lines := []string{"\n"}
	for i := 0; i < m.nRow; i++ {
		var parts []string
		for j := 0; j < m.nCol; j++ {
			parts = append(parts, fmt.Sprintf("%*s", maxLength, strconv.Itoa(m.data[i*m.nCol+j])))
		}
		lines = append(lines, strings.Join(parts, " | "))
	}
	return strings.Join(lines, "\n")
}

// operation is a type that describes one of the three possible traversals in
// the alignment matrix.
//
//   ___|___
//    1 | 3
//    2 | 4
//
// (1) diagonal (1 -> 4)
// (2) right (2 -> 4), a gap in the first sequence
// (3) down (3 -> 4), a gap in the second sequence
type operation uint8

const (
	none operation = iota
	diagonal
	right
	down
)

// minInt is used as -infinity for out-of-band cells. It is far enough from
// the real minimum that adding a penalty can't overflow.
const minInt = -(1 << 29)

// Global computes a global alignment of s1 and s2.
//
// REQUIRES: opts.Band < 0, or the band is wide enough to connect the two
// corners of the matrix (always true by construction).
func Global(s1, s2 string, opts Opts) Alignment {
	n1, n2 := len(s1), len(s2)
	score := newMatrix(n1+1, n2+1)
	ops := make([]operation, (n1+1)*(n2+1))

	// Cell (i,j) is inside the band iff lo <= j-i <= hi.
	lo, hi := -n1, n2
	if opts.Band >= 0 {
		d := n2 - n1
		lo, hi = -opts.Band, opts.Band
		if d < 0 {
			lo += d
		} else {
			hi += d
		}
	}
	inBand := func(i, j int) bool { return j-i >= lo && j-i <= hi }

	for i := 0; i <= n1; i++ {
		for j := 0; j <= n2; j++ {
			if !inBand(i, j) {
				score.set(i, j, minInt)
				continue
			}
			switch {
			case i == 0 && j == 0:
				score.set(0, 0, 0)
			case i == 0:
				if opts.EndsFree {
					score.set(0, j, 0)
				} else {
					score.set(0, j, j*opts.GapPenalty)
				}
				ops[j] = right
			case j == 0:
				if opts.EndsFree {
					score.set(i, 0, 0)
				} else {
					score.set(i, 0, i*opts.GapPenalty)
				}
				ops[i*(n2+1)] = down
			default:
				s := opts.Mismatch
				if s1[i-1] == s2[j-1] {
					s = opts.Match
				}
				best, op := score.at(i-1, j-1)+s, diagonal
				// Trailing gaps are free in ends-free mode.
				gapDown, gapRight := opts.GapPenalty, opts.GapPenalty
				if opts.EndsFree && j == n2 {
					gapDown = 0
				}
				if opts.EndsFree && i == n1 {
					gapRight = 0
				}
				if v := score.at(i-1, j) + gapDown; v > best {
					best, op = v, down
				}
				if v := score.at(i, j-1) + gapRight; v > best {
					best, op = v, right
				}
				score.set(i, j, best)
				ops[i*(n2+1)+j] = op
			}
		}
	}

	// Traceback.
	var a, b []byte
	i, j := n1, n2
	for i > 0 || j > 0 {
		switch ops[i*(n2+1)+j] {
		case diagonal:
			a = append(a, s1[i-1])
			b = append(b, s2[j-1])
			i--
			j--
		case down:
			a = append(a, s1[i-1])
			b = append(b, Gap)
			i--
		case right:
			a = append(a, Gap)
			b = append(b, s2[j-1])
			j--
		default:
			panic(fmt.Sprintf("align: broken traceback at (%d,%d)", i, j))
		}
	}
	reverse(a)
	reverse(b)
	return Alignment{A: string(a), B: string(b), Score: score.at(n1, n2)}
}

func reverse(s []byte) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Hamming returns the number of positions at which s1 and s2 differ.
//
// REQUIRES: len(s1) == len(s2)
func Hamming(s1, s2 string) int {
	l := len(s1)
	if l != len(s2) {
		panic(fmt.Sprintf("s1 and s2 must have equal length: '%s', '%s'", s1, s2))
	}
	d := 0
	for i := 0; i < l; i++ {
		if s1[i] != s2[i] {
			d++
		}
	}
	return d
}

// Ungapped returns the trivial alignment of two equal-length sequences.
func Ungapped(s1, s2 string, opts Opts) Alignment {
	d := Hamming(s1, s2)
	return Alignment{A: s1, B: s2, Score: (len(s1)-d)*opts.Match + d*opts.Mismatch}
}
