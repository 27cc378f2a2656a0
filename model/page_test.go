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

package model

import (
	"bytes"
	"strings"
	"testing"

	"github.com/feliwir/pdfcore/config"
	"github.com/feliwir/pdfcore/internal/diag"
	"github.com/feliwir/pdfcore/types"
	"github.com/feliwir/pdfcore/xref"
)

func buildOnePageDoc(t *testing.T) []byte {
	t.Helper()

	cfg := config.Default()
	ctx, err := NewDocument(cfg, diag.Nop{}, "1.4")
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if _, err := ctx.AddPage(types.NewIntegerArray(0, 0, 612, 792)); err != nil {
		t.Fatalf("AddPage: %v", err)
	}

	var out bytes.Buffer
	if err := ctx.Save(&out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return out.Bytes()
}

// TestAddAnnotationIncrementalUpdateAppendsDirtyObjects covers spec scenario
// S2: opening a fresh document for modification, adding an annotation, and
// finalizing as an incremental update that keeps the original bytes intact.
func TestAddAnnotationIncrementalUpdateAppendsDirtyObjects(t *testing.T) {
	original := buildOnePageDoc(t)

	originalStartXref, err := xref.Discover(original)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	cfg := config.Default()
	ctx, err := NewContext(bytes.NewReader(original), cfg, diag.Nop{}, "")
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	rect := types.NewIntegerArray(100, 500, 200, 600)
	if _, err := ctx.AddAnnotation(0, "Text", rect); err != nil {
		t.Fatalf("AddAnnotation: %v", err)
	}

	var appended bytes.Buffer
	if err := ctx.SaveIncremental(&appended); err != nil {
		t.Fatalf("SaveIncremental: %v", err)
	}

	full := append(append([]byte{}, original...), appended.Bytes()...)
	if !bytes.HasPrefix(full, original) {
		t.Fatalf("updated file does not carry the original bytes as a prefix")
	}
	if strings.Count(string(full), "startxref") < 2 {
		t.Fatalf("updated file has only one xref section, want at least two")
	}

	updated, err := NewContext(bytes.NewReader(full), cfg, diag.Nop{}, "")
	if err != nil {
		t.Fatalf("NewContext on updated doc: %v", err)
	}
	if prev, ok := updated.Table.Trailer["Prev"].(types.Integer); !ok || int64(prev) != originalStartXref {
		t.Fatalf("/Prev = %v, want %d", updated.Table.Trailer["Prev"], originalStartXref)
	}

	page, _, err := updated.Page(0)
	if err != nil {
		t.Fatalf("Page(0): %v", err)
	}
	annots, ok := page["Annots"].(types.Array)
	if !ok || len(annots) != 1 {
		t.Fatalf("Annots = %v, want a single-element array", page["Annots"])
	}
	annotRef, ok := annots[0].(types.IndirectRef)
	if !ok {
		t.Fatalf("Annots[0] = %T, want an indirect reference", annots[0])
	}
	annotObj, err := updated.Table.Resolve(annotRef.ObjectNumber)
	if err != nil {
		t.Fatalf("resolving annotation: %v", err)
	}
	annot, ok := annotObj.(types.Dict)
	if !ok {
		t.Fatalf("annotation = %T, want a dictionary", annotObj)
	}
	gotRect, ok := annot["Rect"].(types.Array)
	if !ok || len(gotRect) != 4 {
		t.Fatalf("annotation /Rect = %v, want a 4-element array", annot["Rect"])
	}
	for i, want := range []int64{100, 500, 200, 600} {
		n, ok := gotRect[i].(types.Integer)
		if !ok || int64(n) != want {
			t.Fatalf("Rect[%d] = %v, want %d", i, gotRect[i], want)
		}
	}
}
