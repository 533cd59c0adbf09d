package pipeline

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// manifestRow is one line of a sample manifest.
type manifestRow struct {
	Name string `tsv:"sample"`
	R1   string `tsv:"r1"`
	R2   string `tsv:"r2"`
}

// ParseManifest reads a sample manifest: a TSV file with a header line and
// the columns sample, r1 and r2. Lines starting with '#' are ignored.
func ParseManifest(r io.Reader) ([]Sample, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.Comment = '#'
	var samples []Sample
	for {
		var row manifestRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		samples = append(samples, Sample{Name: row.Name, R1: row.R1, R2: row.R2})
	}
	return samples, validate(samples)
}

// ReadManifest reads the sample manifest at path.
func ReadManifest(ctx context.Context, path string) (samples []Sample, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if samples, err = ParseManifest(in.Reader(ctx)); err != nil {
		return nil, errors.E(err, "read", path)
	}
	return samples, nil
}

// WriteManifest writes samples in the format read by ParseManifest.
func WriteManifest(w io.Writer, samples []Sample) error {
	tw := tsv.NewRowWriter(w)
	for _, s := range samples {
		if err := tw.Write(&manifestRow{Name: s.Name, R1: s.R1, R2: s.R2}); err != nil {
			return err
		}
	}
	return tw.Flush()
}
