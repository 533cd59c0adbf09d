package fastq

import (
	"bytes"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const fq = `@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG
ATACAGGCCTGANCCACTGTGCCCAGNCTANNTNATTANTGAANANAGAATNGTTNTAAATANANNNNNTNTNNNC
+
AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEE#EEEE#E#EEEEE#EEE#EEEAEE#A#####E#E###E
@NB500956:89:HW2FHBGX2:1:11101:13871:1070 1:N:0:ATCACG
CTCAACTCTGAGNCAGACAGAAATACNTTTNNTNTGAGTTACANCNTTCTTTTTCNACATATNCNNNNNTNGNNNT
+
AAAAAEEEEEEE#EEEEEEEEEEEEE#EEE##E#EEEEEEEEE#E#EEEEEEEEE#EAEEEE#A#####E#A###E
@NB500956:89:HW2FHBGX2:1:11101:9975:1070 1:N:0:ATCACG
GAGTAACCACGTNCCCATGGCCACAGNTGANNGNGTCACACCTNANCCGGGAGAGNCAATCCNGNNNNNGNANNNC
+
AAAAAEEEEEEE#EEEEEEEEEAEEE#EEA##E#EEEEEEEE<#E#<EEEEEEEE#<EEEA/#/#####A#E###A
@NB500956:89:HW2FHBGX2:1:11101:20247:1070 1:N:0:ATCACG
GATCGGAAGAGCNCACGTCTGAACTCNAGTNNCNTCCCGATCTNGNATGCCGTCTNCTGCTTNANNNNNANANNNG
+
AAAAAEEEEEEE#EEEEEEEEEEEEE#AEE##E#A////6AE<#E#EEEEEEEEA#A/EE/E#E#####/#E###E
@NB500956:89:HW2FHBGX2:1:11101:17754:1070 1:N:0:ATCACG
CAAGCAACTTACNTTACTTTAGGCTGNAAANNGNCTGCCTGAANTNCCTGCTCACNAATCCCNCNNNNNCNTNNNT
+
AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEEEEEEE#E#EEEEEEEEE#EAEAEA#/#####E#A###E
@NB500956:89:HW2FHBGX2:1:11101:26223:1070 1:N:0:ATCACG
TCAATTTCAGAACTTTTTATTGGTCTNTTCNNGNATTCATCTTNTNCCTGGTTTANTCTTGGNANNNNNTNTNNNT
+
AAAAAEEEEEEEEEEEEEEEEEEEEE#EEA##E#EEEEEEEEE#E#<EAEEEEEE#EEEEEE#E#####E#E###E
`

func stringScanner(s string) *Scanner {
	return NewScanner(bytes.NewReader([]byte(s)), All)
}

func scanErr(s string) error {
	scan := stringScanner(s)
	var r Read
	for scan.Scan(&r) {
	}
	return scan.Err()
}

func TestFASTQ(t *testing.T) {
	s := stringScanner(fq)
	var r Read
	if !s.Scan(&r) {
		t.Fatal(s.Err())
	}
	expect := Read{
		ID:   "@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG",
		Seq:  "ATACAGGCCTGANCCACTGTGCCCAGNCTANNTNATTANTGAANANAGAATNGTTNTAAATANANNNNNTNTNNNC",
		Unk:  "+",
		Qual: "AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEE#EEEE#E#EEEEE#EEE#EEEAEE#A#####E#E###E",
	}
	if got, want := r, expect; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var n int
	for s.Scan(&r) {
		n++
	}
	if got, want := n, 5; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBadFASTQ(t *testing.T) {
	if got, want := scanErr("12312#"), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@1234\n123"), ErrShort; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWriter(t *testing.T) {
	var (
		s = stringScanner(fq)
		b = new(bytes.Buffer)
		w = NewWriter(b)
		r Read
	)
	for s.Scan(&r) {
		if err := w.Write(&r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), fq; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReadHelpers(t *testing.T) {
	r := Read{ID: "@M00:1:FC:1:1101:15589:1331 1:N:0:1", Seq: "ACGTACGT", Unk: "+", Qual: "I#I5I#II"}
	expect.EQ(t, r.Name(), "M00:1:FC:1:1101:15589:1331")
	expect.EQ(t, r.Phred(), []int{40, 2, 40, 20, 40, 2, 40, 40})
	r.TrimLeft(2)
	expect.EQ(t, r.Seq, "GTACGT")
	expect.EQ(t, r.Qual, "I5I#II")
	r.Trim(3)
	expect.EQ(t, r.Seq, "GTA")
	expect.EQ(t, r.Qual, "I5I")
	r.Trim(10)
	expect.EQ(t, r.Seq, "GTA")

	r2 := Read{ID: "@read7/2"}
	expect.EQ(t, r2.Name(), "read7")
}

func TestQualLengthMismatch(t *testing.T) {
	expect.EQ(t, scanErr("@r1\nACGT\n+\nIII\n"), ErrInvalid)
}

const pairR1 = `@r1/1
ACGT
+
IIII
@r2/1
TTTT
+
IIII
`

func TestPairScanner(t *testing.T) {
	r2 := strings.Replace(pairR1, "/1", "/2", -1)
	s := NewPairScanner(strings.NewReader(pairR1), strings.NewReader(r2), All)
	var a, b Read
	n := 0
	for s.Scan(&a, &b) {
		n++
	}
	expect.EQ(t, n, 2)
	expect.NoError(t, s.Err())

	// Discordant length.
	short := pairR1[:strings.Index(pairR1, "@r2")]
	s = NewPairScanner(strings.NewReader(pairR1), strings.NewReader(short), All)
	for s.Scan(&a, &b) {
	}
	expect.EQ(t, s.Err(), ErrDiscordant)

	// Discordant names.
	swapped := strings.Replace(r2, "@r1", "@rX", 1)
	s = NewPairScanner(strings.NewReader(pairR1), strings.NewReader(swapped), All)
	expect.False(t, s.Scan(&a, &b))
	expect.EQ(t, s.Err(), ErrDiscordant)
}

func TestGzipWriter(t *testing.T) {
	var (
		s = stringScanner(fq)
		b = new(bytes.Buffer)
		w = NewGzipWriter(b)
		r Read
	)
	for s.Scan(&r) {
		expect.NoError(t, w.Write(&r))
	}
	expect.NoError(t, w.Close())
	expect.EQ(t, w.N(), 6)

	zr, err := gzip.NewReader(b)
	expect.NoError(t, err)
	data, err := ioutil.ReadAll(zr)
	expect.NoError(t, err)
	expect.EQ(t, string(data), fq)
}
