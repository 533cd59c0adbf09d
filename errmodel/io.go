package errmodel

// This file defines Write and Read, which dump an error model into a
// recordio file and read it back, so that the expensive error estimation can
// be skipped on later runs.

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/tsv"
)

const (
	// <fileVersionHeader, fileVersion> is stored in a recordio header.
	fileVersionHeader = "errmodelversion"
	fileVersion       = "ERRMODEL_V1"
)

// Write stores m in a zstd-compressed recordio file at path.
func Write(ctx context.Context, path string, m *Model) (err error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	b := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(b).Encode(m); err != nil {
		return errors.E(err, "encode error model")
	}
	w.Append(b.Bytes())
	if err := w.Finish(); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

// Read loads a model written by Write.
func Read(ctx context.Context, path string) (m *Model, err error) {
	recordiozstd.Init()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if v, ok := kv.Value.(string); !ok || v != fileVersion {
				return nil, errors.E("error model file version mismatch:", path)
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return nil, errors.E(fileVersionHeader+" not found", path)
	}
	if !r.Scan() {
		if err := r.Err(); err != nil {
			return nil, errors.E(err, "read", path)
		}
		return nil, errors.E("empty error model file", path)
	}
	m = &Model{}
	if err := gob.NewDecoder(bytes.NewReader(r.Get().([]byte))).Decode(m); err != nil {
		return nil, errors.E(err, "decode", path)
	}
	if err := r.Err(); err != nil {
		return nil, errors.E(err, "read", path)
	}
	return m, nil
}

// WriteTSV writes the model as rows of (transition, quality, probability).
func WriteTSV(w io.Writer, m *Model) error {
	tw := tsv.NewWriter(w)
	tw.WriteString("TRANS")
	tw.WriteString("QUAL")
	tw.WriteString("PROB")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for t := range m.Prob {
		name := TransName(t)
		for q, p := range m.Prob[t] {
			tw.WriteString(name)
			tw.WriteInt64(int64(q))
			tw.WriteString(strconv.FormatFloat(p, 'g', 6, 64))
			if err := tw.EndLine(); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}
