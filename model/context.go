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

// Package model ties the cross-reference engine, the write-side finalizer,
// engine configuration and a diagnostic sink into one document-level
// session: Context. NewContext opens an existing PDF (authenticating
// against /Encrypt when present); NewDocument builds a fresh, empty one.
// Both support Save (full rewrite) and SaveIncremental (append-only).
package model

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/config"
	"github.com/feliwir/pdfcore/crypto"
	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/internal/diag"
	"github.com/feliwir/pdfcore/internal/iostreams"
	"github.com/feliwir/pdfcore/types"
	"github.com/feliwir/pdfcore/write"
	"github.com/feliwir/pdfcore/xref"
)

// Context is a document session: a built cross-reference table plus the
// bookkeeping an incremental update needs (the prior revision's length and
// primary xref offset, and which object numbers changed since the last
// save).
type Context struct {
	*config.Configuration
	Table         *xref.Table
	Sink          diag.Sink
	HeaderVersion string

	sourceLength   int64
	lastXRefOffset int64
	dirty          map[int]bool
}

// NewContext reads the whole of rs, builds its cross-reference table, and —
// if the document carries an /Encrypt dictionary — authenticates password
// against it, trying it first as a user password and then as an owner
// password. password is ignored when the document is not encrypted.
func NewContext(rs io.ReadSeeker, cfg *config.Configuration, sink diag.Sink, password string) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if sink == nil {
		sink = diag.Nop{}
	}

	raw, err := io.ReadAll(rs)
	if err != nil {
		return nil, errors.Wrap(err, "model: reading source")
	}

	version, err := headerVersion(raw)
	if err != nil {
		return nil, err
	}

	source := iostreams.NewBuffered(bytes.NewReader(raw), cfg.BufferSize)
	table := xref.New(source, cfg.MaxNestingDepth, sink)
	if err := table.Build(raw); err != nil {
		return nil, errors.Wrap(err, "model: building xref table")
	}

	// Build already fell back to a linear scan and logged XrefRepaired if
	// discovery failed; there is simply no /Prev offset to extend an
	// incremental update from in that case.
	lastXRefOffset, _ := xref.Discover(raw)

	c := &Context{
		Configuration:  cfg,
		Table:          table,
		Sink:           sink,
		HeaderVersion:  version,
		sourceLength:   int64(len(raw)),
		lastXRefOffset: lastXRefOffset,
		dirty:          map[int]bool{},
	}

	if _, ok := table.Trailer["Encrypt"]; ok {
		if err := c.authenticate(password); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// NewDocument builds a fresh, empty document: a /Catalog, an empty /Pages
// tree with /Count 0, and a freshly generated two-element /ID. version is
// the header version string (e.g. "1.4") the document will be saved with.
func NewDocument(cfg *config.Configuration, sink diag.Sink, version string) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if sink == nil {
		sink = diag.Nop{}
	}

	table := xref.New(nil, cfg.MaxNestingDepth, sink)

	const catalogID, pagesID = 1, 2
	table.PutObject(catalogID, types.Dict{
		"Type":  types.Name("Catalog"),
		"Pages": types.NewIndirectRef(pagesID, 0),
	})
	table.PutObject(pagesID, types.Dict{
		"Type":  types.Name("Pages"),
		"Kids":  types.Array{},
		"Count": types.Integer(0),
	})

	id, err := crypto.GenerateFileID()
	if err != nil {
		return nil, errors.Wrap(err, "model: generating /ID")
	}
	table.Trailer = types.Dict{
		"Root": types.NewIndirectRef(catalogID, 0),
		"ID":   types.Array{types.HexString(id), types.HexString(id)},
	}

	return &Context{
		Configuration: cfg,
		Table:         table,
		Sink:          sink,
		HeaderVersion: version,
		dirty:         map[int]bool{catalogID: true, pagesID: true},
	}, nil
}

// MarkDirty records id as changed since the document was opened or last
// saved, so a subsequent SaveIncremental includes it.
func (c *Context) MarkDirty(id int) {
	c.dirty[id] = true
}

func (c *Context) dirtyIDs() []int {
	ids := make([]int, 0, len(c.dirty))
	for id := range c.dirty {
		ids = append(ids, id)
	}
	return ids
}

// Save performs a full rewrite of the document to w: header, every live
// object, and a fresh trailer (spec §4.I "Full rewrite").
func (c *Context) Save(w io.Writer) error {
	f := write.NewFinalizer(c.Table, c.Configuration, c.Sink, c.HeaderVersion)
	if err := f.FullWrite(iostreams.NewBufWriter(w)); err != nil {
		return err
	}
	c.dirty = map[int]bool{}
	return nil
}

// SaveIncremental appends only the objects changed since the document was
// opened or last saved to w, which must receive exactly the new bytes
// starting at the end of the prior revision (e.g. a file opened with
// O_APPEND, or positioned at its own length). Only valid for a Context
// opened via NewContext, since a full rewrite has no prior revision to
// extend (spec §4.I "Incremental update").
func (c *Context) SaveIncremental(w io.Writer) error {
	if c.sourceLength == 0 {
		return errors.New("model: SaveIncremental requires a document opened with NewContext")
	}

	var fileID [2][]byte
	if id, ok := c.Table.Trailer["ID"].(types.Array); ok && len(id) == 2 {
		fileID[0] = bytesOf(id[0])
	}
	fresh, err := crypto.GenerateFileID()
	if err != nil {
		return errors.Wrap(err, "model: generating refreshed /ID")
	}
	fileID[1] = fresh

	f := write.NewFinalizer(c.Table, c.Configuration, c.Sink, c.HeaderVersion)
	aw := iostreams.NewBufWriterAt(w, c.sourceLength)
	if err := f.IncrementalUpdate(aw, c.lastXRefOffset, c.Table.Size, c.dirtyIDs(), fileID); err != nil {
		return err
	}
	c.dirty = map[int]bool{}
	return nil
}

// headerVersion extracts the "X.Y" version string from the %PDF-X.Y header
// comment, mirroring the teacher's own headerVersion (pkg/pdfcpu/read.go).
func headerVersion(raw []byte) (string, error) {
	const prefix = "%PDF-"

	n := len(raw)
	if n > 16 {
		n = 16
	}
	s := strings.TrimSpace(string(raw[:n]))
	if !strings.HasPrefix(s, prefix) || len(s) < len(prefix)+3 {
		return "", errors.Wrap(errs.ErrCorruptXref, "model: missing or malformed %PDF- header")
	}
	return s[len(prefix) : len(prefix)+3], nil
}
