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

// Package xref implements the cross-reference engine (spec §4.F): discovery
// and parsing of classical xref tables and xref streams, /Prev-chain
// merging, linear-scan recovery, on-demand object resolution (including
// object-stream decompression), the inherited page-tree attribute cascade,
// and a copying context for merging objects between documents.
package xref

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/crypto"
	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/filter"
	"github.com/feliwir/pdfcore/internal/diag"
	"github.com/feliwir/pdfcore/internal/iostreams"
	"github.com/feliwir/pdfcore/parse"
	"github.com/feliwir/pdfcore/types"
)

// Kind is the category an xref entry falls into, per spec §4.F / the xref
// stream type byte.
type Kind int

const (
	// Undefined marks an object number never seen by any xref section.
	Undefined Kind = iota
	// Free marks an object number on the document's free list.
	Free
	// InUse marks an object with a body directly in the file at Offset.
	InUse
	// InObjectStream marks an object compressed inside another object's
	// object-stream payload.
	InObjectStream
)

// Entry is one cross-reference table row.
type Entry struct {
	Kind Kind

	// InUse
	Offset     int64
	Generation int

	// InObjectStream
	StreamObjectNumber int
	IndexInStream      int

	// Free: the next free object number in the free-list chain, and the
	// generation to use the next time this slot is reused.
	NextFree int
}

// Table is a built, queryable cross-reference index plus the machinery to
// resolve indirect references against it on demand.
type Table struct {
	Entries map[int]Entry
	Size    int
	Trailer types.Dict

	source   iostreams.PositionedReader
	maxDepth int
	sink     diag.Sink

	handler *crypto.Handler
	encryptObjNum int // the /Encrypt dict's own object number, never decrypted

	objStreamCache map[int][]types.Object

	// direct holds objects constructed in memory rather than parsed from
	// source (e.g. by CopyContext or a caller building a new document),
	// keyed by object number. Resolve consults this before falling back
	// to offset-based parsing.
	direct map[int]types.Object
}

// New wraps a positioned source stream with an (initially empty) table.
// Callers build the table with Build (which runs Discover, parses and merges
// every section of the /Prev chain, and falls back to Recover), or with
// Recover directly, before calling Resolve.
func New(source iostreams.PositionedReader, maxDepth int, sink diag.Sink) *Table {
	if sink == nil {
		sink = diag.Nop{}
	}
	if maxDepth <= 0 {
		maxDepth = 150
	}
	return &Table{
		Entries:        map[int]Entry{},
		source:         source,
		maxDepth:       maxDepth,
		sink:           sink,
		objStreamCache: map[int][]types.Object{},
	}
}

// SetEncryptionHandler activates decryption for subsequent Resolve calls.
// encryptObjNum is the /Encrypt dictionary's own object number (never
// decrypted, along with the /ID array, per spec §4.E).
func (t *Table) SetEncryptionHandler(h *crypto.Handler, encryptObjNum int) {
	t.handler = h
	t.encryptObjNum = encryptObjNum
}

// EncryptionHandler returns the active decryption handler and the /Encrypt
// dictionary's own (never-decrypted) object number, or (nil, 0) if
// encryption is not active. Used by the write package to re-encrypt
// unchanged objects with the same handler on a full rewrite.
func (t *Table) EncryptionHandler() (*crypto.Handler, int) {
	return t.handler, t.encryptObjNum
}

// Exists reports whether id has any entry at all (of any kind).
func (t *Table) Exists(id int) bool {
	_, ok := t.Entries[id]
	return ok
}

func (t *Table) newParser() *parse.Parser {
	return parse.New(t.source, t.maxDepth)
}

// Resolve returns the object id refers to, decrypting strings with the
// per-object key when encryption is active. Free and Undefined entries
// resolve to types.NullObject per spec §4.F.
func (t *Table) Resolve(id int) (types.Object, error) {
	if obj, ok := t.direct[id]; ok {
		return obj, nil
	}

	e, ok := t.Entries[id]
	if !ok || e.Kind == Free || e.Kind == Undefined {
		return types.NullObject, nil
	}

	switch e.Kind {
	case InUse:
		return t.resolveInUse(id, e)
	case InObjectStream:
		return t.resolveInObjectStream(id, e)
	default:
		return types.NullObject, nil
	}
}

// Dereference resolves obj if it is an IndirectRef, otherwise returns it
// unchanged. Used throughout the model layer to accept either direct or
// indirect values transparently.
func (t *Table) Dereference(obj types.Object) (types.Object, error) {
	ref, ok := obj.(types.IndirectRef)
	if !ok {
		return obj, nil
	}
	return t.Resolve(ref.ObjectNumber)
}

func (t *Table) resolveInUse(id int, e Entry) (types.Object, error) {
	t.source.Seek(e.Offset)
	p := t.newParser()

	if t.handler != nil && id != t.encryptObjNum {
		p.SetStringDecryptors(
			func(b []byte) ([]byte, error) { return t.handler.DecryptString(b, id, e.Generation) },
			func(b []byte) ([]byte, error) { return t.handler.DecryptString(b, id, e.Generation) },
		)
	}

	hdr, err := p.ParseObject()
	if err != nil {
		return nil, errors.Wrapf(err, "xref: parsing header for object %d", id)
	}
	gotID, ok1 := hdr.(types.Integer)
	if !ok1 {
		return nil, errors.Wrapf(errs.ErrCorruptXref, "xref: object %d: expected an id integer, got %T", id, hdr)
	}
	if int(gotID) != id {
		t.sink.Warnf("xref: object %d: header declares id %d", id, gotID)
	}

	genTok, err := p.ParseObject()
	if err != nil {
		return nil, err
	}
	if _, ok := genTok.(types.Integer); !ok {
		return nil, errors.Wrapf(errs.ErrCorruptXref, "xref: object %d: expected a generation integer", id)
	}

	kw, err := p.ParseObject()
	if err != nil {
		return nil, err
	}
	if sym, ok := kw.(types.Symbol); !ok || string(sym) != "obj" {
		return nil, errors.Wrapf(errs.ErrCorruptXref, "xref: object %d: missing 'obj' keyword", id)
	}

	objOrStream, err := p.ParseObjectOrStreamHeader()
	if err != nil {
		return nil, err
	}

	if sh, ok := objOrStream.(*parse.StreamHeader); ok {
		return t.readStream(sh, id, e.Generation)
	}
	return objOrStream.(types.Object), nil
}

func (t *Table) readStream(sh *parse.StreamHeader, objNum, genNum int) (types.Object, error) {
	length, err := t.streamLength(sh.Dict, objNum, genNum)
	if err != nil {
		return nil, err
	}

	t.source.Seek(sh.PayloadStart)
	raw := make([]byte, length)
	if err := iostreams.ReadFull(t.source, raw); err != nil {
		return nil, errors.Wrapf(errs.ErrCorruptStream, "xref: object %d: stream shorter than /Length: %v", objNum, err)
	}

	if t.handler != nil && objNum != t.encryptObjNum {
		raw, err = t.handler.DecryptStream(raw, objNum, genNum)
		if err != nil {
			return nil, err
		}
	}

	return types.NewStreamDict(sh.Dict, raw), nil
}

// streamLength resolves a stream dictionary's /Length, which may itself be
// an indirect reference to an object elsewhere in the file.
func (t *Table) streamLength(d types.Dict, objNum, genNum int) (int64, error) {
	lenObj, ok := d["Length"]
	if !ok {
		return 0, errors.Wrapf(errs.ErrCorruptStream, "xref: object %d: stream dictionary missing /Length", objNum)
	}
	if ref, ok := lenObj.(types.IndirectRef); ok {
		resolved, err := t.Resolve(ref.ObjectNumber)
		if err != nil {
			return 0, err
		}
		lenObj = resolved
	}
	i, ok := lenObj.(types.Integer)
	if !ok {
		return 0, errors.Wrapf(errs.ErrTypeMismatch, "xref: object %d: /Length is not an integer", objNum)
	}
	return int64(i), nil
}

func (t *Table) resolveInObjectStream(id int, e Entry) (types.Object, error) {
	objs, err := t.decodeObjectStream(e.StreamObjectNumber)
	if err != nil {
		return nil, err
	}
	if e.IndexInStream < 0 || e.IndexInStream >= len(objs) {
		return nil, errors.Wrapf(errs.ErrCorruptXref, "xref: object %d: index %d out of range in object stream %d", id, e.IndexInStream, e.StreamObjectNumber)
	}
	return objs[e.IndexInStream], nil
}

// decodeObjectStream resolves streamObjNum as a stream, applies its filter
// chain itself (Resolve returns a stream's raw, still-encoded payload), and
// parses the (N, First) prologue followed by N compressed object bodies
// (spec §4.F).
func (t *Table) decodeObjectStream(streamObjNum int) ([]types.Object, error) {
	if cached, ok := t.objStreamCache[streamObjNum]; ok {
		return cached, nil
	}

	obj, err := t.Resolve(streamObjNum)
	if err != nil {
		return nil, err
	}
	sd, ok := obj.(types.StreamDict)
	if !ok {
		return nil, errors.Wrapf(errs.ErrTypeMismatch, "xref: object %d is not a stream (expected /Type /ObjStm)", streamObjNum)
	}

	decoded, err := t.decodeStreamPayload(sd)
	if err != nil {
		return nil, err
	}

	n, err := dictInt(sd.Dict, "N")
	if err != nil {
		return nil, err
	}
	first, err := dictInt(sd.Dict, "First")
	if err != nil {
		return nil, err
	}

	// Strings inside an object stream use the containing stream's own
	// per-object key, not the contained object's id (spec §4.E): the
	// stream payload was already decrypted in full when streamObjNum was
	// resolved above, so the embedded object bodies parsed below are
	// already plaintext and need no further per-string decryption hook.
	offsets := make([]int, n)
	ids := make([]int, n)
	{
		p := parse.New(iostreamsByteReader(decoded[:first]), t.maxDepth)
		for i := 0; i < n; i++ {
			idObj, err := p.ParseObject()
			if err != nil {
				return nil, errors.Wrapf(err, "xref: object stream %d: prologue entry %d", streamObjNum, i)
			}
			offObj, err := p.ParseObject()
			if err != nil {
				return nil, errors.Wrapf(err, "xref: object stream %d: prologue entry %d", streamObjNum, i)
			}
			idI, ok1 := idObj.(types.Integer)
			offI, ok2 := offObj.(types.Integer)
			if !ok1 || !ok2 {
				return nil, errors.Wrapf(errs.ErrCorruptXref, "xref: object stream %d: malformed prologue", streamObjNum)
			}
			ids[i] = int(idI)
			offsets[i] = int(offI)
		}
	}

	objs := make([]types.Object, n)
	for i := 0; i < n; i++ {
		start := first + offsets[i]
		if start > len(decoded) {
			return nil, errors.Wrapf(errs.ErrCorruptXref, "xref: object stream %d: entry %d offset past end", streamObjNum, i)
		}
		end := len(decoded)
		if i+1 < n {
			end = first + offsets[i+1]
		}
		if end > len(decoded) || end < start {
			end = len(decoded)
		}
		p := parse.New(iostreamsByteReader(decoded[start:end]), t.maxDepth)
		o, err := p.ParseObject()
		if err != nil {
			return nil, errors.Wrapf(err, "xref: object stream %d: object %d (index %d)", streamObjNum, ids[i], i)
		}
		objs[i] = o
	}

	t.objStreamCache[streamObjNum] = objs
	return objs, nil
}

func (t *Table) decodeStreamPayload(sd types.StreamDict) ([]byte, error) {
	names, err := sd.FilterNames()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return sd.Raw, nil
	}

	parmsList := make([]filter.Parms, len(names))
	for i := range names {
		parmsList[i], err = t.resolveParms(sd.DecodeParmsFor(i))
		if err != nil {
			return nil, err
		}
	}

	chain, err := filter.NewChain(names, parmsList, t.sink)
	if err != nil {
		return nil, err
	}
	buf, err := chain.Decode(bytes.NewReader(sd.Raw))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// resolveParms converts a /DecodeParms dictionary to filter.Parms, resolving
// any indirect integer entries against this table.
func (t *Table) resolveParms(d types.Dict) (filter.Parms, error) {
	if d == nil {
		return nil, nil
	}
	out := make(filter.Parms, len(d))
	for k, v := range d {
		if ref, ok := v.(types.IndirectRef); ok {
			resolved, err := t.Resolve(ref.ObjectNumber)
			if err != nil {
				return nil, err
			}
			v = resolved
		}
		switch n := v.(type) {
		case types.Integer:
			out[k] = int(n)
		case types.Boolean:
			if n {
				out[k] = 1
			}
		}
	}
	return out, nil
}

func dictInt(d types.Dict, key string) (int, error) {
	o, ok := d[key]
	if !ok {
		return 0, errors.Wrapf(errs.ErrTypeMismatch, "xref: missing required /%s", key)
	}
	i, ok := o.(types.Integer)
	if !ok {
		return 0, errors.Wrapf(errs.ErrTypeMismatch, "xref: /%s is not an integer", key)
	}
	return int(i), nil
}
