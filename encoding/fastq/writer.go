package fastq

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

var newline = []byte{'\n'}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	gz  *gzip.Writer
	n   int
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewGzipWriter constructs a FASTQ writer that gzip-compresses its output
// into w. Close must be called to flush the compressed stream.
func NewGzipWriter(w io.Writer) *Writer {
	gz := gzip.NewWriter(w)
	return &Writer{w: gz, gz: gz}
}

// Write writes the read r in FASTQ format.
// An error is returned if the write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Unk)
	w.writeln(r.Qual)
	if w.err == nil {
		w.n++
	}
	return w.err
}

// N returns the number of reads written.
func (w *Writer) N() int { return w.n }

// Close flushes the compressed stream, if any. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if w.gz != nil {
		if err := w.gz.Close(); err != nil && w.err == nil {
			w.err = err
		}
	}
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}
