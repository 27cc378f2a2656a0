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
	"fmt"
	"testing"

	"github.com/feliwir/pdfcore/config"
	"github.com/feliwir/pdfcore/internal/diag"
	"github.com/feliwir/pdfcore/internal/iostreams"
	"github.com/feliwir/pdfcore/types"
	"github.com/feliwir/pdfcore/xref"
)

// buildSourceDoc assembles a minimal three-object document with a classical
// xref table, mirroring the fixture the xref package's own tests use.
func buildSourceDoc(t *testing.T) []byte {
	t.Helper()

	var body bytes.Buffer
	body.WriteString("%PDF-1.4\n")

	offsets := make([]int, 4)
	offsets[1] = body.Len()
	body.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = body.Len()
	body.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = body.Len()
	body.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << >> >> >>\nendobj\n")

	xrefOffset := body.Len()
	body.WriteString("xref\n0 4\n")
	body.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		body.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	body.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n")
	body.WriteString(fmt.Sprintf("startxref\n%d\n%%%%EOF", xrefOffset))

	return body.Bytes()
}

func newSourceTable(t *testing.T, raw []byte) *xref.Table {
	t.Helper()
	source := iostreams.NewBuffered(bytes.NewReader(raw), 4096)
	tbl := xref.New(source, 0, diag.Nop{})
	if err := tbl.Build(raw); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tbl
}

func TestFinalizerFullWriteClassicalRoundTrips(t *testing.T) {
	src := newSourceTable(t, buildSourceDoc(t))

	cfg := config.Default()
	cfg.XRefMode = config.XRefModeTable

	var out bytes.Buffer
	f := NewFinalizer(src, cfg, diag.Nop{}, "1.4")
	if err := f.FullWrite(iostreams.NewBufWriter(&out)); err != nil {
		t.Fatalf("FullWrite: %v", err)
	}

	dst := newSourceTable(t, out.Bytes())
	obj, err := dst.Resolve(1)
	if err != nil {
		t.Fatalf("Resolve(1) on rewritten doc: %v", err)
	}
	d, ok := obj.(types.Dict)
	if !ok {
		t.Fatalf("Resolve(1) = %T, want types.Dict", obj)
	}
	if typ, _ := d.NameEntry("Type"); string(typ) != "Catalog" {
		t.Fatalf("/Type = %q, want Catalog", typ)
	}

	n, err := dst.PageCount()
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("PageCount = %d, want 1", n)
	}
}

func TestFinalizerFullWriteXRefStreamRoundTrips(t *testing.T) {
	src := newSourceTable(t, buildSourceDoc(t))

	cfg := config.Default()
	cfg.XRefMode = config.XRefModeStream

	var out bytes.Buffer
	f := NewFinalizer(src, cfg, diag.Nop{}, "1.7")
	if err := f.FullWrite(iostreams.NewBufWriter(&out)); err != nil {
		t.Fatalf("FullWrite: %v", err)
	}

	dst := newSourceTable(t, out.Bytes())
	page, attrs, err := dst.Page(1)
	if err != nil {
		t.Fatalf("Page(1) on rewritten doc: %v", err)
	}
	if typ, _ := page.NameEntry("Type"); string(typ) != "Page" {
		t.Fatalf("/Type = %q, want Page", typ)
	}
	if len(attrs.MediaBox) != 4 {
		t.Fatalf("MediaBox = %v, want 4 elements", attrs.MediaBox)
	}
}

func TestFinalizerIncrementalUpdateAppendsDirtyObjects(t *testing.T) {
	raw := buildSourceDoc(t)
	src := newSourceTable(t, raw)

	cfg := config.Default()
	cfg.XRefMode = config.XRefModeTable

	prevXRef, err := xref.Discover(raw)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	// Object 3 (the page) is treated as dirty; IncrementalUpdate appends
	// only it plus a new xref section chaining back to prevXRef via /Prev.
	appendBuf := bytes.NewBuffer(nil)
	aw := iostreams.NewBufWriterAt(appendBuf, int64(len(raw)))

	f := NewFinalizer(src, cfg, diag.Nop{}, "1.4")
	if err := f.IncrementalUpdate(aw, prevXRef, 4, []int{3}, [2][]byte{}); err != nil {
		t.Fatalf("IncrementalUpdate: %v", err)
	}

	full := append(append([]byte{}, raw...), appendBuf.Bytes()...)
	dst := newSourceTable(t, full)
	page, _, err := dst.Page(1)
	if err != nil {
		t.Fatalf("Page(1) on updated doc: %v", err)
	}
	if typ, _ := page.NameEntry("Type"); string(typ) != "Page" {
		t.Fatalf("/Type = %q, want Page", typ)
	}
}
