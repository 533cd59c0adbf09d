package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant,
	// either because one ends before the other or because the read names of a
	// pair disagree.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// PhredOffset is the ASCII offset of FASTQ quality strings (Sanger/Illumina
// 1.8+ encoding).
const PhredOffset = 33

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Trim cuts the read and quality lengths to at most n.
func (r *Read) Trim(n int) {
	if n < len(r.Seq) {
		r.Seq = r.Seq[:n]
	}
	if n < len(r.Qual) {
		r.Qual = r.Qual[:n]
	}
}

// TrimLeft removes the first n bases and qualities.
func (r *Read) TrimLeft(n int) {
	if n > len(r.Seq) {
		n = len(r.Seq)
	}
	r.Seq = r.Seq[n:]
	if n > len(r.Qual) {
		n = len(r.Qual)
	}
	r.Qual = r.Qual[n:]
}

// Phred decodes the quality string into integer Phred scores.
func (r *Read) Phred() []int {
	q := make([]int, len(r.Qual))
	for i := 0; i < len(r.Qual); i++ {
		q[i] = int(r.Qual[i]) - PhredOffset
	}
	return q
}

// Name returns the read name: the ID without the leading '@', the comment
// that follows the first space, and a trailing "/1" or "/2" mate suffix.
func (r *Read) Name() string {
	id := strings.TrimPrefix(r.ID, "@")
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	if n := len(id); n > 2 && id[n-2] == '/' && (id[n-1] == '1' || id[n-1] == '2') {
		id = id[:n-2]
	}
	return id
}

var errEOF = errors.New("eof")

// Scanner provides a convenient interface for reading FASTQ read
// data. The Scan method returns the next read, returning a boolean
// indicating whether the read succeeded. Scanners are not
// threadsafe.
//
// Scanner requires ID lines to begin with "@" and that line 3 begins with
// "+". When both Seq and Qual are requested it also requires them to have
// equal length.
type Scanner struct {
	b      *bufio.Scanner
	err    error
	fields Field
	n      int
}

// Field enumerates FASTQ fields. It is used to specify fields to read in
// NewScanner.
type Field uint

const (
	// ID causes the Read.ID field to be filled
	ID Field = 1 << iota
	// Seq causes the Read.Seq field to be filled
	Seq
	// Unk causes the Read.Unk field to be filled
	Unk
	// Qual causes the Read.Qual field to be filled
	Qual
	// All equals ID|Seq|Unk|Qual.
	All = ID | Seq | Unk | Qual
)

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader. Fields is a bitset of the fields to read. A typical value
// would be All or ID|Seq|Qual.
func NewScanner(r io.Reader, fields Field) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 64<<10), 16<<20)
	return &Scanner{b: b, fields: fields}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&ID != 0 {
		read.ID = string(id)
	}
	if !f.scan() {
		return false
	}
	if f.fields&Seq != 0 {
		read.Seq = f.b.Text()
	}
	if !f.scan() {
		return false
	}
	unk := f.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&Unk != 0 {
		read.Unk = string(unk)
	}
	if !f.scan() {
		return false
	}
	if f.fields&Qual != 0 {
		read.Qual = f.b.Text()
		if f.fields&Seq != 0 && len(read.Qual) != len(read.Seq) {
			f.err = ErrInvalid
			return false
		}
	}
	f.n++
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// N returns the number of reads scanned so far.
func (f *Scanner) N() int { return f.n }

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// PairScanner composes a pair of scanners to scan a pair of FASTQ
// streams.
type PairScanner struct {
	r1, r2    *Scanner
	checkName bool
	err       error
}

// NewPairScanner creates a new FASTQ pair scanner from the provided
// R1 and R2 readers. If fields includes ID, the scanner also verifies that
// the two reads of every pair carry the same name.
func NewPairScanner(r1, r2 io.Reader, fields Field) *PairScanner {
	return &PairScanner{
		r1:        NewScanner(r1, fields),
		r2:        NewScanner(r2, fields),
		checkName: fields&ID != 0,
	}
}

// Scan scans the next read pair into r1, r2. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	if p.err != nil {
		return false
	}
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
		return false
	}
	if ok1 && p.checkName && r1.Name() != r2.Name() {
		p.err = ErrDiscordant
		return false
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any. It should be checked
// after Scan returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}
