// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dna

import (
	gunsafe "github.com/grailbio/base/unsafe"
)

const (
	// BaseA represents an A base.
	BaseA byte = iota
	// BaseC represents a C base.
	BaseC
	// BaseG represents a G base.
	BaseG
	// BaseT represents a T base.
	BaseT
	// BaseN is a catch-all for anything that is not A/C/G/T.
	BaseN
)

// NBase is the number of regular base types.
const NBase = 4

// EnumToASCII is the A/C/G/T/N enum -> ASCII mapping.
var EnumToASCII = [...]byte{'A', 'C', 'G', 'T', 'N'}

// acgtnIndex maps A, C, G, T (either case) to {0,1,2,3}. It maps other
// letters to 4.
var acgtnIndex [256]uint8

var revCompTable [256]byte

func init() {
	for i := range acgtnIndex {
		acgtnIndex[i] = BaseN
		revCompTable[i] = 'N'
	}
	for i, ch := range []byte("ACGT") {
		acgtnIndex[ch] = uint8(i)
		acgtnIndex[ch+'a'-'A'] = uint8(i)
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}} {
		revCompTable[p[0]] = p[1]
		revCompTable[p[0]+'a'-'A'] = p[1]
	}
}

// Index returns the A/C/G/T/N enum of an ASCII base.
func Index(ch byte) byte { return acgtnIndex[ch] }

// ReverseComplement computes a reverse complement of the given DNA string.
// It maps 'A'/'a' to 'T', 'C'/'c' to 'G', 'G'/'g' to 'C', 'T'/'t' to 'A',
// and everything else to 'N'.
func ReverseComplement(seq string) string {
	n := len(seq)
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[n-1-i] = revCompTable[seq[i]]
	}
	return gunsafe.BytesToString(buf)
}

// CountACGTN returns the number of A, C, G, T and other bases in seq.
func CountACGTN(seq string) [5]int {
	var counts [5]int
	for i := 0; i < len(seq); i++ {
		counts[acgtnIndex[seq[i]]]++
	}
	return counts
}

// IsACGT returns true iff every base of seq is one of A/C/G/T.
func IsACGT(seq string) bool {
	return CountACGTN(seq)[BaseN] == 0
}
