// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package dna provides the nucleotide alphabet shared by the amplicon
// denoising packages: base indexing, reverse complementation and k-mer
// profiles used to screen out distant sequence pairs before alignment.
package dna
