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
	"io"

	"github.com/feliwir/pdfcore/config"
	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/internal/diag"
	"github.com/feliwir/pdfcore/model"
	"github.com/feliwir/pdfcore/types"
	"github.com/feliwir/pdfcore/xref"
)

// Document is the engine's public handle on a PDF, opened from an existing
// file or created fresh. Every method returns a status plus, where
// applicable, a value (spec §7 "user-visible behaviour"); once any method
// fails, the Document is stuck, and every later call returns
// errs.ErrAlreadyFailed without attempting to advance further.
type Document struct {
	ctx    *model.Context
	failed bool
}

// Open parses an existing PDF from rs. cfg and sink may be nil, in which
// case config.Default() and a no-op sink are used. password authenticates
// against the document's /Encrypt dictionary when one is present; it is
// ignored for an unencrypted document.
func Open(rs io.ReadSeeker, cfg *config.Configuration, sink diag.Sink, password string) (*Document, error) {
	ctx, err := model.NewContext(rs, cfg, sink, password)
	if err != nil {
		return nil, err
	}
	return &Document{ctx: ctx}, nil
}

// NewDocument creates a fresh, minimal document (an empty /Pages tree)
// at the given PDF version (e.g. "1.4"). cfg and sink may be nil.
func NewDocument(cfg *config.Configuration, sink diag.Sink, version string) (*Document, error) {
	ctx, err := model.NewDocument(cfg, sink, version)
	if err != nil {
		return nil, err
	}
	return &Document{ctx: ctx}, nil
}

// fail marks d stuck and returns err unchanged, so every mutating call site
// can just `return d.fail(err)`.
func (d *Document) fail(err error) error {
	d.failed = true
	return err
}

// guard reports ErrAlreadyFailed if d is already stuck, so a caller that
// needs a value alongside the error can write
// `if err := d.guard(); err != nil { return zero, err }`.
func (d *Document) guard() error {
	if d.failed {
		return errs.ErrAlreadyFailed
	}
	return nil
}

// PageCount returns the document's /Pages /Count.
func (d *Document) PageCount() (int, error) {
	if err := d.guard(); err != nil {
		return 0, err
	}
	n, err := d.ctx.PageCount()
	if err != nil {
		return 0, d.fail(err)
	}
	return n, nil
}

// ParsePage returns the i-th (0-based) page dictionary and the attributes
// it inherits from ancestor page-tree nodes, without applying them onto the
// dictionary itself (spec §4.F).
func (d *Document) ParsePage(i int) (types.Dict, xref.InheritedPageAttrs, error) {
	if err := d.guard(); err != nil {
		return nil, xref.InheritedPageAttrs{}, err
	}
	page, attrs, err := d.ctx.Page(i)
	if err != nil {
		return nil, xref.InheritedPageAttrs{}, d.fail(err)
	}
	return page, attrs, nil
}

// AddPage appends a new page with the given /MediaBox to the document's
// page tree and returns its object number.
func (d *Document) AddPage(mediaBox types.Array) (int, error) {
	if err := d.guard(); err != nil {
		return 0, err
	}
	id, err := d.ctx.AddPage(mediaBox)
	if err != nil {
		return 0, d.fail(err)
	}
	return id, nil
}

// AddAnnotation appends a subtype annotation with the given /Rect to the
// i-th (0-based) page's /Annots array and returns its object number.
func (d *Document) AddAnnotation(i int, subtype string, rect types.Array) (int, error) {
	if err := d.guard(); err != nil {
		return 0, err
	}
	id, err := d.ctx.AddAnnotation(i, subtype, rect)
	if err != nil {
		return 0, d.fail(err)
	}
	return id, nil
}

// ImportPage deep-copies the i-th (0-based) page of src, plus the full
// object graph it references, into d, appending it to d's page tree, and
// returns its new object number.
func (d *Document) ImportPage(src *Document, i int) (int, error) {
	if err := d.guard(); err != nil {
		return 0, err
	}
	if err := src.guard(); err != nil {
		return 0, err
	}
	id, err := d.ctx.ImportPage(src.ctx, i)
	if err != nil {
		return 0, d.fail(err)
	}
	return id, nil
}

// AppendPageContent joins newContent onto the end of the i-th (0-based)
// page's existing /Contents as an additional content stream, preserving
// draw order, and returns the new stream's object number. Intended for
// incremental workflows: combined with SaveIncremental, only the new
// content stream and the page dictionary itself are rewritten.
func (d *Document) AppendPageContent(i int, newContent []byte) (int, error) {
	if err := d.guard(); err != nil {
		return 0, err
	}
	id, err := d.ctx.AppendPageContent(i, newContent)
	if err != nil {
		return 0, d.fail(err)
	}
	return id, nil
}

// Save finalizes the document as a complete, self-contained PDF written to
// w: header, every live object, and a fresh trailer/xref section.
func (d *Document) Save(w io.Writer) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := d.ctx.Save(w); err != nil {
		return d.fail(err)
	}
	return nil
}

// SaveIncremental appends an incremental update to w: only the objects
// touched since the document was opened or last saved, followed by a
// trailer whose /Prev chains back to the original xref section. Valid only
// for a Document obtained from Open, never one built with NewDocument.
func (d *Document) SaveIncremental(w io.Writer) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := d.ctx.SaveIncremental(w); err != nil {
		return d.fail(err)
	}
	return nil
}
