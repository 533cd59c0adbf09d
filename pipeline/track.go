package pipeline

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Track counts the reads of one sample that survive each stage.
type Track struct {
	Sample    string `tsv:"sample"`
	Input     int64  `tsv:"input"`
	Filtered  int64  `tsv:"filtered"`
	DenoisedF int64  `tsv:"denoisedF"`
	DenoisedR int64  `tsv:"denoisedR"`
	Merged    int64  `tsv:"merged"`
	Tabled    int64  `tsv:"tabled"`
	NonChim   int64  `tsv:"nonchim"`
}

// Merge adds the counts of two Tracks and creates a new Track. The sample
// name of t is kept.
func (t Track) Merge(o Track) Track {
	t.Input += o.Input
	t.Filtered += o.Filtered
	t.DenoisedF += o.DenoisedF
	t.DenoisedR += o.DenoisedR
	t.Merged += o.Merged
	t.Tabled += o.Tabled
	t.NonChim += o.NonChim
	return t
}

// WriteTrack writes one row per sample, with a header line.
func WriteTrack(w io.Writer, rows []Track) error {
	tw := tsv.NewRowWriter(w)
	for i := range rows {
		if err := tw.Write(&rows[i]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadTrack reads a file written by WriteTrack.
func ReadTrack(r io.Reader) ([]Track, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	var rows []Track
	for {
		var row Track
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeTrackFile(ctx context.Context, path string, rows []Track) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err := WriteTrack(out.Writer(ctx), rows); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}
