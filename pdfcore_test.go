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

package pdfcore

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/config"
	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/internal/diag"
	"github.com/feliwir/pdfcore/types"
	"github.com/feliwir/pdfcore/xref"
)

// buildOnePageDoc is S1: a fresh document, one page, fully finalized.
func buildOnePageDoc(t *testing.T) []byte {
	t.Helper()

	doc, err := NewDocument(config.Default(), diag.Nop{}, "1.4")
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if _, err := doc.AddPage(types.NewIntegerArray(0, 0, 612, 792)); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	var out bytes.Buffer
	if err := doc.Save(&out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return out.Bytes()
}

// TestFreshDocumentOnePage covers spec scenario S1.
func TestFreshDocumentOnePage(t *testing.T) {
	raw := buildOnePageDoc(t)

	if !strings.HasPrefix(string(raw), "%PDF-1.4\n") {
		t.Fatalf("output header = %q", raw[:9])
	}
	// Trailing space distinguishes "/Type /Page" from "/Type /Pages", which
	// would otherwise also match as a prefix.
	if strings.Count(string(raw), "/Type /Page ") != 1 {
		t.Fatalf("expected exactly one /Type /Page object")
	}

	doc, err := Open(bytes.NewReader(raw), config.Default(), diag.Nop{}, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	n, err := doc.PageCount()
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("PageCount = %d, want 1", n)
	}

	page, _, err := doc.ParsePage(0)
	if err != nil {
		t.Fatalf("ParsePage(0): %v", err)
	}
	mediaBox, ok := page["MediaBox"].(types.Array)
	if !ok || len(mediaBox) != 4 {
		t.Fatalf("MediaBox = %v, want a 4-element array", page["MediaBox"])
	}
}

// TestIncrementalAnnotation covers spec scenario S2.
func TestIncrementalAnnotation(t *testing.T) {
	original := buildOnePageDoc(t)
	originalStartXref, err := xref.Discover(original)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	cfg := config.Default()
	doc, err := Open(bytes.NewReader(original), cfg, diag.Nop{}, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rect := types.NewIntegerArray(100, 500, 200, 600)
	if _, err := doc.AddAnnotation(0, "Text", rect); err != nil {
		t.Fatalf("AddAnnotation: %v", err)
	}

	var appended bytes.Buffer
	if err := doc.SaveIncremental(&appended); err != nil {
		t.Fatalf("SaveIncremental: %v", err)
	}

	full := append(append([]byte{}, original...), appended.Bytes()...)
	if !bytes.HasPrefix(full, original) {
		t.Fatalf("updated file does not carry the original bytes as a prefix")
	}

	reopened, err := Open(bytes.NewReader(full), cfg, diag.Nop{}, "")
	if err != nil {
		t.Fatalf("Open updated doc: %v", err)
	}
	if prev, ok := reopened.ctx.Table.Trailer["Prev"].(types.Integer); !ok || int64(prev) != originalStartXref {
		t.Fatalf("/Prev = %v, want %d", reopened.ctx.Table.Trailer["Prev"], originalStartXref)
	}

	page, _, err := reopened.ParsePage(0)
	if err != nil {
		t.Fatalf("ParsePage(0): %v", err)
	}
	annots, ok := page["Annots"].(types.Array)
	if !ok || len(annots) != 1 {
		t.Fatalf("Annots = %v, want a single-element array", page["Annots"])
	}
}

// TestImportPage covers spec §4.J: copying a page (and the object graph it
// references) from one document into another, re-parented onto the
// destination's own page tree rather than dragging in the source's.
func TestImportPage(t *testing.T) {
	sourceRaw := buildOnePageDoc(t)
	source, err := Open(bytes.NewReader(sourceRaw), config.Default(), diag.Nop{}, "")
	if err != nil {
		t.Fatalf("Open source: %v", err)
	}

	dest, err := NewDocument(config.Default(), diag.Nop{}, "1.4")
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if _, err := dest.AddPage(types.NewIntegerArray(0, 0, 200, 200)); err != nil {
		t.Fatalf("AddPage: %v", err)
	}

	if _, err := dest.ImportPage(source, 0); err != nil {
		t.Fatalf("ImportPage: %v", err)
	}

	n, err := dest.PageCount()
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("PageCount = %d, want 2 (one original page plus one imported)", n)
	}

	imported, _, err := dest.ParsePage(1)
	if err != nil {
		t.Fatalf("ParsePage(1): %v", err)
	}
	mediaBox, ok := imported["MediaBox"].(types.Array)
	if !ok || len(mediaBox) != 4 {
		t.Fatalf("imported page's MediaBox = %v, want a 4-element array", imported["MediaBox"])
	}

	var out bytes.Buffer
	if err := dest.Save(&out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Count(out.String(), "/Type /Page ") != 2 {
		t.Fatalf("expected exactly two /Type /Page objects in the saved output")
	}
}

// TestAppendPageContent covers the in-place content-joining feature mined
// from the original implementation's incremental page modification path:
// appending a new content stream must keep the existing one rather than
// replacing it, normalising /Contents into an array either way.
func TestAppendPageContent(t *testing.T) {
	original := buildOnePageDoc(t)

	doc, err := Open(bytes.NewReader(original), config.Default(), diag.Nop{}, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	page, _, err := doc.ParsePage(0)
	if err != nil {
		t.Fatalf("ParsePage(0): %v", err)
	}
	if _, ok := page["Contents"]; ok {
		t.Fatalf("fixture page already has /Contents; test assumes it starts with none")
	}

	firstID, err := doc.AppendPageContent(0, []byte("q 1 0 0 1 0 0 cm Q"))
	if err != nil {
		t.Fatalf("AppendPageContent: %v", err)
	}
	secondID, err := doc.AppendPageContent(0, []byte("BT ET"))
	if err != nil {
		t.Fatalf("AppendPageContent (second): %v", err)
	}
	if firstID == secondID {
		t.Fatalf("two calls to AppendPageContent returned the same object number %d", firstID)
	}

	page, _, err = doc.ParsePage(0)
	if err != nil {
		t.Fatalf("ParsePage(0) after append: %v", err)
	}
	contents, ok := page["Contents"].(types.Array)
	if !ok || len(contents) != 2 {
		t.Fatalf("/Contents = %v, want a 2-element array", page["Contents"])
	}
	first, ok := contents[0].(types.IndirectRef)
	if !ok || first.ObjectNumber != firstID {
		t.Fatalf("/Contents[0] = %v, want a reference to %d (draw order preserved)", contents[0], firstID)
	}
	second, ok := contents[1].(types.IndirectRef)
	if !ok || second.ObjectNumber != secondID {
		t.Fatalf("/Contents[1] = %v, want a reference to %d (draw order preserved)", contents[1], secondID)
	}

	var out bytes.Buffer
	if err := doc.Save(&out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.Contains(out.String(), "BT ET") {
		t.Fatalf("saved output is missing the appended content stream's payload")
	}
}

// TestXrefRecovery covers spec scenario S5: corrupting the byte at
// startxref+3 must still let the document open and its page parse.
func TestXrefRecovery(t *testing.T) {
	raw := buildOnePageDoc(t)

	keywordAt := bytes.LastIndex(raw, []byte("startxref"))
	if keywordAt < 0 {
		t.Fatalf("fixture has no startxref keyword")
	}

	corrupted := append([]byte{}, raw...)
	corrupted[keywordAt+3] = 0x00

	sink := &recordingSink{}
	doc, err := Open(bytes.NewReader(corrupted), config.Default(), sink, "")
	if err != nil {
		t.Fatalf("Open after corruption: %v", err)
	}
	if len(sink.repaired) == 0 {
		t.Fatalf("expected a Repaired diagnostic after xref recovery")
	}

	page, _, err := doc.ParsePage(0)
	if err != nil {
		t.Fatalf("ParsePage(0) after recovery: %v", err)
	}
	if typ, _ := page.NameEntry("Type"); string(typ) != "Page" {
		t.Fatalf("/Type = %q, want Page", typ)
	}
}

// TestDocumentSticksAfterFailure covers spec §7's "AlreadyFailed" policy:
// once a Document has failed once, every later call is refused immediately.
func TestDocumentSticksAfterFailure(t *testing.T) {
	doc, err := Open(bytes.NewReader([]byte("not a pdf at all, no header")), nil, nil, "")
	if err == nil {
		t.Fatalf("Open: expected an error for a missing %%PDF- header")
	}
	if doc != nil {
		t.Fatalf("Open should return a nil Document alongside its error")
	}

	valid := buildOnePageDoc(t)
	d, err := Open(bytes.NewReader(valid), config.Default(), diag.Nop{}, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Force a failure: page 5 does not exist.
	if _, _, err := d.ParsePage(5); err == nil {
		t.Fatalf("ParsePage(5): expected an error for an out-of-range page")
	}
	if _, err := d.PageCount(); !errors.Is(err, errs.ErrAlreadyFailed) {
		t.Fatalf("PageCount after failure = %v, want ErrAlreadyFailed", err)
	}
	var out bytes.Buffer
	if err := d.Save(&out); !errors.Is(err, errs.ErrAlreadyFailed) {
		t.Fatalf("Save after failure = %v, want ErrAlreadyFailed", err)
	}
}

type recordingSink struct {
	diag.Nop
	repaired []string
}

func (s *recordingSink) Repaired(reason string) {
	s.repaired = append(s.repaired, reason)
}
