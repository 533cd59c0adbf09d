package fasta_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/amplicon/encoding/fasta"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var fastaData = ">seq1\n" + "ACGTA\nCGTAC\nGT\n" + ">seq2 A viral sequence\n" + "ACGT\n" + "ACGT\n"

func TestRead(t *testing.T) {
	recs, err := fasta.Read(strings.NewReader(fastaData))
	assert.NoError(t, err)
	expect.EQ(t, recs, []fasta.Record{
		{Name: "seq1", Seq: "ACGTACGTACGT"},
		{Name: "seq2", Seq: "ACGTACGT"},
	})

	recs, err = fasta.Read(strings.NewReader(""))
	assert.NoError(t, err)
	expect.EQ(t, len(recs), 0)

	_, err = fasta.Read(strings.NewReader("ACGT\n>seq1\nACGT\n"))
	expect.True(t, err != nil)
	_, err = fasta.Read(strings.NewReader(">\nACGT\n"))
	expect.True(t, err != nil)
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := fasta.NewWriter(&buf, 5)
	assert.NoError(t, w.Write("seq1", "ACGTACGTACGT"))
	assert.NoError(t, w.Write("seq2", "ACGTA"))
	assert.NoError(t, w.Flush())
	expect.EQ(t, buf.String(), ">seq1\nACGTA\nCGTAC\nGT\n>seq2\nACGTA\n")

	recs, err := fasta.Read(&buf)
	assert.NoError(t, err)
	expect.EQ(t, recs, []fasta.Record{
		{Name: "seq1", Seq: "ACGTACGTACGT"},
		{Name: "seq2", Seq: "ACGTA"},
	})
}

func TestWriteUnwrapped(t *testing.T) {
	var buf bytes.Buffer
	w := fasta.NewWriter(&buf, 0)
	assert.NoError(t, w.Write("x", "ACGTACGTACGT"))
	assert.NoError(t, w.Flush())
	expect.EQ(t, buf.String(), ">x\nACGTACGTACGT\n")
}
