package filter

import (
	"context"
	"io"

	"github.com/grailbio/amplicon/encoding/fastq"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// PairedPaths names the input and output files of one sample.
type PairedPaths struct {
	In1, In2   string
	Out1, Out2 string
}

// FilterPairedFiles reads a pair of (optionally compressed) FASTQ files,
// filters the read pairs, and writes the surviving pairs as gzipped FASTQ.
// Discordant inputs are reported as fastq.ErrDiscordant.
func FilterPairedFiles(ctx context.Context, paths PairedPaths, opts1, opts2 Opts) (stats Stats, err error) {
	in1, err := file.Open(ctx, paths.In1)
	if err != nil {
		return stats, errors.E(err, "open", paths.In1)
	}
	defer file.CloseAndReport(ctx, in1, &err)
	in2, err := file.Open(ctx, paths.In2)
	if err != nil {
		return stats, errors.E(err, "open", paths.In2)
	}
	defer file.CloseAndReport(ctx, in2, &err)
	out1, err := file.Create(ctx, paths.Out1)
	if err != nil {
		return stats, errors.E(err, "create", paths.Out1)
	}
	defer file.CloseAndReport(ctx, out1, &err)
	out2, err := file.Create(ctx, paths.Out2)
	if err != nil {
		return stats, errors.E(err, "create", paths.Out2)
	}
	defer file.CloseAndReport(ctx, out2, &err)

	var r1, r2 io.Reader = in1.Reader(ctx), in2.Reader(ctx)
	if u, _ := compress.NewReaderPath(r1, in1.Name()); u != nil {
		r1 = u
	}
	if u, _ := compress.NewReaderPath(r2, in2.Name()); u != nil {
		r2 = u
	}
	var (
		sc   = fastq.NewPairScanner(r1, r2, fastq.All)
		w1   = fastq.NewGzipWriter(out1.Writer(ctx))
		w2   = fastq.NewGzipWriter(out2.Writer(ctx))
		rd1  fastq.Read
		rd2  fastq.Read
		werr = errors.Once{}
	)
	for sc.Scan(&rd1, &rd2) {
		if !ApplyPair(&rd1, &rd2, opts1, opts2, &stats) {
			continue
		}
		werr.Set(w1.Write(&rd1))
		werr.Set(w2.Write(&rd2))
		if werr.Err() != nil {
			break
		}
	}
	werr.Set(w1.Close())
	werr.Set(w2.Close())
	if e := sc.Err(); e != nil {
		if e == fastq.ErrDiscordant {
			return stats, e
		}
		return stats, errors.E(e, "read", paths.In1, paths.In2)
	}
	if e := werr.Err(); e != nil {
		return stats, errors.E(e, "write", paths.Out1, paths.Out2)
	}
	log.Printf("filter %s: %d of %d read pairs kept", paths.In1, stats.Out, stats.In)
	return stats, nil
}
