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
)

// TestNewDocumentAddPageSaveRoundTrips covers spec scenario S1: a fresh
// document, one empty page, finalized and re-parsed.
func TestNewDocumentAddPageSaveRoundTrips(t *testing.T) {
	cfg := config.Default()
	ctx, err := NewDocument(cfg, diag.Nop{}, "1.4")
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}

	mediaBox := types.NewIntegerArray(0, 0, 612, 792)
	if _, err := ctx.AddPage(mediaBox); err != nil {
		t.Fatalf("AddPage: %v", err)
	}

	var out bytes.Buffer
	if err := ctx.Save(&out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(out.String(), "%PDF-1.4\n") {
		t.Fatalf("output header = %q", out.String()[:9])
	}

	reopened, err := NewContext(bytes.NewReader(out.Bytes()), cfg, diag.Nop{}, "")
	if err != nil {
		t.Fatalf("NewContext on saved doc: %v", err)
	}

	n, err := reopened.PageCount()
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("PageCount = %d, want 1", n)
	}

	page, _, err := reopened.Page(0)
	if err != nil {
		t.Fatalf("Page(0): %v", err)
	}
	if typ, _ := page.NameEntry("Type"); string(typ) != "Page" {
		t.Fatalf("/Type = %q, want Page", typ)
	}
	got, ok := page["MediaBox"].(types.Array)
	if !ok || len(got) != 4 {
		t.Fatalf("MediaBox = %v, want a 4-element array", page["MediaBox"])
	}
	for i, want := range []int64{0, 0, 612, 792} {
		n, ok := got[i].(types.Integer)
		if !ok || int64(n) != want {
			t.Fatalf("MediaBox[%d] = %v, want %d", i, got[i], want)
		}
	}
}

func TestNewContextRejectsCorruptHeader(t *testing.T) {
	_, err := NewContext(bytes.NewReader([]byte("not a pdf at all")), nil, nil, "")
	if err == nil {
		t.Fatalf("NewContext: expected an error for a missing %%PDF- header")
	}
}
