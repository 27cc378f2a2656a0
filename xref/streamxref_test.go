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

package xref

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/feliwir/pdfcore/types"
)

// buildObjectStreamDoc assembles a five-object document whose sole page
// dictionary (object 3) lives compressed inside an object stream (object
// 4), indexed by an xref stream (object 5) rather than a classical table —
// spec scenario S6.
func buildObjectStreamDoc(t *testing.T) []byte {
	t.Helper()

	var body bytes.Buffer
	body.WriteString("%PDF-1.5\n")

	var offsets [6]int // index by object number, 0 unused
	offsets[1] = body.Len()
	body.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = body.Len()
	body.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	pageObj := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>"
	prologue := "3 0\n"
	payload := prologue + pageObj

	offsets[4] = body.Len()
	fmt.Fprintf(&body, "4 0 obj\n<< /Type /ObjStm /N 1 /First %d /Length %d >>\nstream\n%sendstream\nendobj\n",
		len(prologue), len(payload), payload)

	// Entry width [type:1][field2:2][field3:2] — 2 bytes comfortably covers
	// both small file offsets and the free list head's 65535 generation.
	entries := make([]byte, 0, 6*5)
	putEntry := func(typ int, f2, f3 int) {
		entries = append(entries, byte(typ))
		entries = append(entries, byte(f2>>8), byte(f2))
		entries = append(entries, byte(f3>>8), byte(f3))
	}
	putEntry(0, 0, 65535)          // 0: free list head
	putEntry(1, offsets[1], 0)     // 1: catalog, classical placement
	putEntry(1, offsets[2], 0)     // 2: pages, classical placement
	putEntry(2, 4, 0)              // 3: page, compressed in object stream 4, index 0
	putEntry(1, offsets[4], 0)     // 4: the object stream itself
	offsets[5] = body.Len()        // 5: the xref stream, self-referencing its own offset
	putEntry(1, offsets[5], 0)

	fmt.Fprintf(&body, "5 0 obj\n<< /Type /XRef /Size 6 /W [1 2 2] /Root 1 0 R /Length %d >>\nstream\n", len(entries))
	body.Write(entries)
	body.WriteString("endstream\nendobj\n")

	fmt.Fprintf(&body, "startxref\n%d\n%%%%EOF", offsets[5])

	return body.Bytes()
}

func TestObjectStreamCompressedPageResolves(t *testing.T) {
	raw := buildObjectStreamDoc(t)
	tbl, err := newTableFromBytes(raw)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if tbl.Size != 6 {
		t.Fatalf("Size = %d, want 6 (accounts for the compressed object id too)", tbl.Size)
	}

	entry, ok := tbl.Entries[3]
	if !ok || entry.Kind != InObjectStream {
		t.Fatalf("object 3 entry = %+v, want Kind InObjectStream", entry)
	}

	obj, err := tbl.Resolve(3)
	if err != nil {
		t.Fatalf("Resolve(3): %v", err)
	}
	d, ok := obj.(types.Dict)
	if !ok {
		t.Fatalf("Resolve(3) = %T, want types.Dict", obj)
	}
	if typ, _ := d.NameEntry("Type"); string(typ) != "Page" {
		t.Fatalf("/Type = %q, want Page", typ)
	}

	n, err := tbl.PageCount()
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("PageCount = %d, want 1", n)
	}

	page, _, err := tbl.Page(1)
	if err != nil {
		t.Fatalf("Page(1): %v", err)
	}
	if typ, _ := page.NameEntry("Type"); string(typ) != "Page" {
		t.Fatalf("Page(1) /Type = %q, want Page", typ)
	}
}
