/*
Copyright 2024 The pdfcore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package write

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/internal/iostreams"
	"github.com/feliwir/pdfcore/types"
)

func newEmitter(buf *bytes.Buffer) *Emitter {
	return NewEmitter(iostreams.NewBufWriter(buf), "\n")
}

func TestEmitterWriteHeaderAndComment(t *testing.T) {
	var buf bytes.Buffer
	e := newEmitter(&buf)

	if err := e.WriteHeader("1.7"); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "%PDF-1.7\n") {
		t.Fatalf("header = %q", buf.String())
	}
	if e.Position() != int64(buf.Len()) {
		t.Fatalf("Position() = %d, want %d", e.Position(), buf.Len())
	}
}

func TestEmitterWriteObjectHeaderAndTrailer(t *testing.T) {
	var buf bytes.Buffer
	e := newEmitter(&buf)

	if err := e.WriteObjectHeader(3, 0); err != nil {
		t.Fatalf("WriteObjectHeader: %v", err)
	}
	if err := e.WriteObject(types.Dict{"Type": types.Name("Catalog")}, SepNone); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if err := e.WriteObjectTrailer(); err != nil {
		t.Fatalf("WriteObjectTrailer: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "3 0 obj\n") {
		t.Fatalf("got = %q, want header prefix", got)
	}
	if !strings.HasSuffix(got, "\nendobj\n") {
		t.Fatalf("got = %q, want endobj suffix", got)
	}
}

func TestEmitterWriteStartXref(t *testing.T) {
	var buf bytes.Buffer
	e := newEmitter(&buf)

	if err := e.WriteStartXref(1234); err != nil {
		t.Fatalf("WriteStartXref: %v", err)
	}
	want := "startxref\n1234\n%%EOF"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestObjectWriterRejectsOutOfSequenceCalls(t *testing.T) {
	var buf bytes.Buffer
	e := newEmitter(&buf)
	ow := NewObjectWriter(e)

	// WriteBody before BeginIndirectObject: wrong state entirely.
	err := ow.WriteBody(types.Integer(1))
	if err == nil {
		t.Fatalf("WriteBody at top level should fail")
	}
	if !errors.Is(err, errs.ErrWriterState) {
		t.Fatalf("err = %v, want ErrWriterState", err)
	}

	// EndStream without BeginStream.
	if _, err := ow.BeginIndirectObject(1, 0); err != nil {
		t.Fatalf("BeginIndirectObject: %v", err)
	}
	if err := ow.EndStream(); !errors.Is(err, errs.ErrWriterState) {
		t.Fatalf("EndStream out of sequence: err = %v, want ErrWriterState", err)
	}
}

func TestObjectWriterRejectsStreamDictInWriteBody(t *testing.T) {
	var buf bytes.Buffer
	e := newEmitter(&buf)
	ow := NewObjectWriter(e)

	if _, err := ow.BeginIndirectObject(1, 0); err != nil {
		t.Fatalf("BeginIndirectObject: %v", err)
	}
	sd := types.NewStreamDict(types.Dict{"Length": types.Integer(0)}, nil)
	if err := ow.WriteBody(sd); !errors.Is(err, errs.ErrWriterState) {
		t.Fatalf("WriteBody(StreamDict): err = %v, want ErrWriterState", err)
	}
}

func TestObjectWriterWriteIndirectStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	e := newEmitter(&buf)
	ow := NewObjectWriter(e)

	dict := types.Dict{"Length": types.Integer(5)}
	offset, err := ow.WriteIndirectStream(5, 0, dict, []byte("hello"))
	if err != nil {
		t.Fatalf("WriteIndirectStream: %v", err)
	}
	if offset != 0 {
		t.Fatalf("offset = %d, want 0 (first write)", offset)
	}

	got := buf.String()
	if !strings.Contains(got, "stream\nhello\nendstream\n") {
		t.Fatalf("got = %q, missing stream body", got)
	}
	if !strings.HasPrefix(got, "5 0 obj\n") {
		t.Fatalf("got = %q, want object header prefix", got)
	}
}
