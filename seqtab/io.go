package seqtab

import (
	"context"
	"io"
	"strconv"

	"github.com/grailbio/amplicon/encoding/fasta"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

const sampleHeader = "SAMPLE"

// WriteTSV writes the table as a header line of column labels followed by
// one line per sample.
func (t *Table) WriteTSV(w io.Writer) error {
	tw := tsv.NewWriter(w)
	tw.WriteString(sampleHeader)
	for _, l := range t.Labels() {
		tw.WriteString(l)
	}
	if err := tw.EndLine(); err != nil {
		return err
	}
	for i, row := range t.Matrix() {
		tw.WriteString(t.samples[i])
		for _, n := range row {
			tw.WriteInt64(int64(n))
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteFASTA writes the column sequences, named by their labels, in column
// order.
func (t *Table) WriteFASTA(w io.Writer) error {
	fw := fasta.NewWriter(w, 0)
	for _, c := range t.columns {
		if err := fw.Write(Label(c.Seq), c.Seq); err != nil {
			return err
		}
	}
	return fw.Flush()
}

// Read reads a table written by WriteTSV and WriteFASTA.
func Read(tsvIn, fastaIn io.Reader) (*Table, error) {
	recs, err := fasta.Read(fastaIn)
	if err != nil {
		return nil, err
	}
	seqs := make(map[string]string, len(recs))
	for _, r := range recs {
		seqs[r.Name] = r.Seq
	}
	r := tsv.NewReader(tsvIn)
	header, err := r.Reader.Read()
	if err != nil {
		return nil, errors.E(err, "read table header")
	}
	if len(header) == 0 || header[0] != sampleHeader {
		return nil, errors.E("table header must start with " + sampleHeader)
	}
	colSeqs := make([]string, len(header)-1)
	for j, label := range header[1:] {
		s, ok := seqs[label]
		if !ok {
			return nil, errors.E("no sequence for column " + label)
		}
		colSeqs[j] = s
	}
	var (
		samples []string
		counts  []map[string]int
	)
	for {
		row, err := r.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(err, "read table")
		}
		m := map[string]int{}
		for j, field := range row[1:] {
			n, err := strconv.Atoi(field)
			if err != nil {
				return nil, errors.E(err, "sample "+row[0], "column "+header[j+1])
			}
			m[colSeqs[j]] += n
		}
		samples = append(samples, row[0])
		counts = append(counts, m)
	}
	return fromCounts(samples, counts), nil
}

// WriteFiles writes the table to tsvPath and its sequences to fastaPath.
func (t *Table) WriteFiles(ctx context.Context, tsvPath, fastaPath string) (err error) {
	if err := writeFile(ctx, tsvPath, t.WriteTSV); err != nil {
		return err
	}
	return writeFile(ctx, fastaPath, t.WriteFASTA)
}

func writeFile(ctx context.Context, path string, write func(io.Writer) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err := write(out.Writer(ctx)); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

// ReadFiles reads a table written by WriteFiles.
func ReadFiles(ctx context.Context, tsvPath, fastaPath string) (t *Table, err error) {
	tsvIn, err := file.Open(ctx, tsvPath)
	if err != nil {
		return nil, errors.E(err, "open", tsvPath)
	}
	defer file.CloseAndReport(ctx, tsvIn, &err)
	fastaIn, err := file.Open(ctx, fastaPath)
	if err != nil {
		return nil, errors.E(err, "open", fastaPath)
	}
	defer file.CloseAndReport(ctx, fastaIn, &err)
	return Read(tsvIn.Reader(ctx), fastaIn.Reader(ctx))
}
