// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*
bio-amplicon infers exact amplicon sequence variants from paired-end FASTQ
files, and counts them per sample.

Samples are listed in a manifest: a TSV file with a header line and the
columns sample, r1 and r2, naming each sample and its forward and reverse
FASTQ files (optionally gzipped; local or S3 paths).

Subcommands:

  filter          Quality-filter and truncate the reads of every sample, and
                  write a manifest of the filtered files.
  learn-errors    Estimate the forward and reverse error models.
  run             Run the whole workflow and write the sequence table.
  remove-chimeras Remove bimeras from a sequence table written by run.

Sample usage:

  bio-amplicon filter -trunc-len-f 240 -trunc-len-r 160 manifest.tsv filtered/
  bio-amplicon run filtered/manifest.tsv out/

run writes out/seqtab.tsv (one row per sample, one column per sequence
variant label), out/sequences.fa (the sequence of each label),
out/track.tsv (per-sample read counts after each stage) and the error models
out/errF.rio and out/errR.rio. The models can be passed back with -err-f and
-err-r to skip error estimation.
*/
package main
