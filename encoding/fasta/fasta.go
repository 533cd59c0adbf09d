// Package fasta reads and writes FASTA files. FASTA files consist of a number
// of named sequences that may be interrupted by newlines. For example:
//
// >ASV1
// ACGTAC
// GAGGAC
// GCG
// >ASV2
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appear after a space are ignored.
// For example, '>ASV1 size=10' becomes 'ASV1'.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const maxLineSize = 16 << 20

// Record is one named sequence.
type Record struct {
	Name, Seq string
}

// Read parses all the sequences in r, in order of appearance.
func Read(r io.Reader) ([]Record, error) {
	var (
		recs    []Record
		seqName string
		started bool
		seq     strings.Builder
	)
	flush := func() {
		if started {
			recs = append(recs, Record{Name: seqName, Seq: seq.String()})
			seq.Reset()
		}
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			flush()
			seqName = strings.Split(line[1:], " ")[0]
			if seqName == "" {
				return nil, errors.Errorf("malformed FASTA file: empty sequence name")
			}
			started = true
			continue
		}
		if !started {
			return nil, errors.Errorf("malformed FASTA file: sequence data before the first name")
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	flush()
	return recs, nil
}

// Writer writes FASTA records.
type Writer struct {
	w     *bufio.Writer
	width int
	err   error
}

// NewWriter creates a writer that wraps sequences at width bases per line. A
// width <= 0 writes each sequence on a single line.
func NewWriter(w io.Writer, width int) *Writer {
	return &Writer{w: bufio.NewWriter(w), width: width}
}

// Write writes one record. The error, if any, is sticky.
func (w *Writer) Write(name, seq string) error {
	if w.err != nil {
		return w.err
	}
	w.writeString(">")
	w.writeString(name)
	w.writeString("\n")
	for len(seq) > 0 {
		n := len(seq)
		if w.width > 0 && n > w.width {
			n = w.width
		}
		w.writeString(seq[:n])
		w.writeString("\n")
		seq = seq[n:]
	}
	return w.err
}

func (w *Writer) writeString(s string) {
	if w.err == nil {
		_, w.err = w.w.WriteString(s)
	}
}

// Flush flushes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}
