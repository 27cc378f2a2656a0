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
	"sort"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/config"
	"github.com/feliwir/pdfcore/crypto"
	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/filter"
	"github.com/feliwir/pdfcore/internal/diag"
	"github.com/feliwir/pdfcore/internal/iostreams"
	"github.com/feliwir/pdfcore/types"
	"github.com/feliwir/pdfcore/xref"
)

// xrefStreamVersionFloor is the lowest PDF version that may carry a
// cross-reference stream instead of a classical table (spec §4.I).
const xrefStreamVersionFloor = "1.5"

// Finalizer drives one output pass over a document: writing every live
// object, then a trailer either as a classical xref table or as an xref
// stream, in full-rewrite or incremental-update form (spec §4.I).
type Finalizer struct {
	table *xref.Table
	cfg   *config.Configuration
	sink  diag.Sink

	handler       *crypto.Handler
	encryptObjNum int
	encryptRef    *types.IndirectRef

	version string
}

// NewFinalizer prepares to write table's object graph. handler/encryptObjNum
// may be zero-valued when the output document carries no encryption.
func NewFinalizer(table *xref.Table, cfg *config.Configuration, sink diag.Sink, version string) *Finalizer {
	if sink == nil {
		sink = diag.Nop{}
	}
	if cfg == nil {
		cfg = config.Default()
	}
	f := &Finalizer{table: table, cfg: cfg, sink: sink, version: version}
	f.handler, f.encryptObjNum = table.EncryptionHandler()
	if f.handler != nil {
		ref := types.NewIndirectRef(f.encryptObjNum, 0)
		f.encryptRef = &ref
	}
	return f
}

// FullWrite rewrites the entire document to w: header, every live object in
// ascending object-number order, and a fresh trailer whose /Size covers the
// whole table.
func (f *Finalizer) FullWrite(w iostreams.PositionedWriter) error {
	e := NewEmitter(w, string(f.cfg.Eol))
	ow := NewObjectWriter(e)
	reg := NewRegistry(1)

	if err := e.WriteHeader(f.version); err != nil {
		return err
	}

	ids := sortedIDs(f.table)
	for _, id := range ids {
		if id == 0 {
			continue
		}
		entry := f.table.Entries[id]
		if entry.Kind == xref.Free {
			reg.MarkFree(id, entry.Generation)
			continue
		}

		gen := entry.Generation
		obj, err := f.table.Resolve(id)
		if err != nil {
			return errors.Wrapf(err, "write: resolving object %d for full rewrite", id)
		}
		obj, err = f.encryptForWrite(obj, id, gen)
		if err != nil {
			return err
		}
		offset, err := f.writeOneObject(ow, id, gen, obj)
		if err != nil {
			return err
		}
		reg.RecordWritten(id, offset)
	}

	trailer, err := f.buildTrailer(reg, nil)
	if err != nil {
		return err
	}

	return f.writeXRefAndTrailer(e, ow, reg, trailer, nil)
}

// IncrementalUpdate appends only the objects in dirtyIDs (plus any brand
// new object numbers table.Entries carries that prevSize did not) to w,
// which must already contain the prior revision's bytes up to prevEOFOffset
// — the caller is responsible for positioning w there. The new trailer's
// /Prev points at prevXRefOffset, and /ID keeps its first element stable
// while refreshing the second (spec §4.I).
func (f *Finalizer) IncrementalUpdate(w iostreams.PositionedWriter, prevXRefOffset int64, prevSize int, dirtyIDs []int, fileID [2][]byte) error {
	e := NewEmitter(w, string(f.cfg.Eol))
	ow := NewObjectWriter(e)
	reg := NewRegistry(prevSize)

	dirty := map[int]bool{}
	for _, id := range dirtyIDs {
		dirty[id] = true
	}
	for id, entry := range f.table.Entries {
		if id >= prevSize && entry.Kind != xref.Free {
			dirty[id] = true
		}
	}

	ids := make([]int, 0, len(dirty))
	for id := range dirty {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		entry := f.table.Entries[id]
		gen := entry.Generation
		obj, err := f.table.Resolve(id)
		if err != nil {
			return errors.Wrapf(err, "write: resolving object %d for incremental update", id)
		}
		obj, err = f.encryptForWrite(obj, id, gen)
		if err != nil {
			return err
		}
		offset, err := f.writeOneObject(ow, id, gen, obj)
		if err != nil {
			return err
		}
		reg.RecordWritten(id, offset)
	}

	prev := prevXRefOffset
	trailer, err := f.buildTrailer(reg, &prev)
	if err != nil {
		return err
	}
	if len(fileID) == 2 && fileID[0] != nil {
		trailer["ID"] = types.Array{types.HexString(fileID[0]), types.HexString(fileID[1])}
	}

	return f.writeXRefAndTrailer(e, ow, reg, trailer, &prev)
}

// encryptForWrite encrypts obj's strings and, for a stream, its payload,
// using the active handler — a no-op when encryption is not active or id
// is the /Encrypt dictionary's own object number.
func (f *Finalizer) encryptForWrite(obj types.Object, id, gen int) (types.Object, error) {
	if f.handler == nil || id == f.encryptObjNum {
		return obj, nil
	}
	if sd, ok := obj.(types.StreamDict); ok {
		d, err := f.handler.EncryptObject(sd.Dict, id, gen, nil)
		if err != nil {
			return nil, err
		}
		raw, err := f.handler.EncryptStream(sd.Raw, id, gen)
		if err != nil {
			return nil, err
		}
		return types.NewStreamDict(d.(types.Dict), raw), nil
	}
	return f.handler.EncryptObject(obj, id, gen, nil)
}

func (f *Finalizer) writeOneObject(ow *ObjectWriter, id, gen int, obj types.Object) (int64, error) {
	if sd, ok := obj.(types.StreamDict); ok {
		d := sd.Dict.Clone().(types.Dict)
		d["Length"] = types.Integer(len(sd.Raw))
		return ow.WriteIndirectStream(id, gen, d, sd.Raw)
	}
	return ow.WriteIndirectObject(id, gen, obj)
}

// buildTrailer assembles the trailer dictionary (classical table) or the
// dictionary an xref stream object itself carries — the same fields either
// way (spec §4.I).
func (f *Finalizer) buildTrailer(reg *Registry, prev *int64) (types.Dict, error) {
	rootObj, ok := f.table.Trailer["Root"]
	if !ok {
		return nil, errors.Wrap(errs.ErrCorruptXref, "write: source trailer has no /Root")
	}

	d := types.Dict{
		"Size": types.Integer(reg.Size()),
		"Root": rootObj,
	}
	if info, ok := f.table.Trailer["Info"]; ok {
		d["Info"] = info
	}
	if id, ok := f.table.Trailer["ID"]; ok {
		d["ID"] = id
	}
	if f.encryptRef != nil {
		d["Encrypt"] = *f.encryptRef
	}
	if prev != nil {
		d["Prev"] = types.Integer(*prev)
	}
	return d, nil
}

func (f *Finalizer) useXRefStream() bool {
	switch f.cfg.XRefMode {
	case config.XRefModeStream:
		return true
	case config.XRefModeTable:
		return false
	default:
		return f.version >= xrefStreamVersionFloor
	}
}

// writeXRefAndTrailer emits the cross-reference section/stream for every
// object reg knows about, then the startxref marker.
func (f *Finalizer) writeXRefAndTrailer(e *Emitter, ow *ObjectWriter, reg *Registry, trailer types.Dict, prev *int64) error {
	if f.useXRefStream() {
		return f.writeXRefStream(ow, reg, trailer)
	}
	return f.writeXRefTable(e, reg, trailer)
}

func (f *Finalizer) writeXRefTable(e *Emitter, reg *Registry, trailer types.Dict) error {
	xrefOffset := e.Position()

	if err := e.writeString("xref" + e.Eol); err != nil {
		return err
	}

	ids := reg.IDs()
	// Object 0 (the free-list head) is always present even if nothing was
	// ever explicitly freed.
	all := append([]int{0}, ids...)
	sort.Ints(all)
	all = dedupe(all)

	if err := f.writeXRefSubsections(e, reg, all); err != nil {
		return err
	}

	if err := e.writeString("trailer" + e.Eol); err != nil {
		return err
	}
	if err := e.WriteObject(trailer, SepNewline); err != nil {
		return err
	}
	return e.WriteStartXref(xrefOffset)
}

func (f *Finalizer) writeXRefSubsections(e *Emitter, reg *Registry, ids []int) error {
	i := 0
	for i < len(ids) {
		start := ids[i]
		j := i
		for j+1 < len(ids) && ids[j+1] == ids[j]+1 {
			j++
		}
		count := j - i + 1

		if err := e.writeString(formatSubsectionHeader(start, count, e.Eol)); err != nil {
			return err
		}
		for k := i; k <= j; k++ {
			id := ids[k]
			slot, _ := reg.Slot(id)
			var line string
			if id == 0 || slot.Status == StatusFree {
				line = formatClassicalEntry(int64(nextFree), slot.Generation, 'f', e.Eol)
			} else {
				line = formatClassicalEntry(slot.RecordedOffset, slot.Generation, 'n', e.Eol)
			}
			if err := e.writeString(line); err != nil {
				return err
			}
		}
		i = j + 1
	}
	return nil
}

// nextFree is the next-free chain value written for any free object number.
// This module does not reconstruct a full reusable free-list chain on
// write, so every free slot simply points back to object 0, which never
// reuses an object number but is always valid per the free-list grammar.
const nextFree = 0

func (f *Finalizer) writeXRefStream(ow *ObjectWriter, reg *Registry, trailer types.Dict) error {
	xrefObjNum := reg.Allocate()
	trailer["Size"] = types.Integer(reg.Size())

	// The xref stream object's own offset is simply where the writer
	// stands right now — BeginIndirectObject will record this same value
	// a moment later. Computing it here lets the stream's own entry be
	// included in its payload without a write/rewind/fixup.
	xrefOffset := ow.e.Position()

	ids := reg.IDs()
	all := append([]int{0}, ids...)
	all = append(all, xrefObjNum)
	sort.Ints(all)
	all = dedupe(all)

	w1, w2, w3 := 1, 8, 2
	var buf bytes.Buffer
	for _, id := range all {
		slot, known := reg.Slot(id)
		switch {
		case id == xrefObjNum:
			writeXRefStreamEntry(&buf, 1, uint64(xrefOffset), 0, w1, w2, w3)
		case !known || slot.Status == StatusFree || id == 0:
			writeXRefStreamEntry(&buf, 0, uint64(nextFree), uint64(slot.Generation), w1, w2, w3)
		default:
			writeXRefStreamEntry(&buf, 1, uint64(slot.RecordedOffset), uint64(slot.Generation), w1, w2, w3)
		}
	}

	chain, err := filter.NewChain([]string{"FlateDecode"}, []filter.Parms{nil}, f.sink)
	if err != nil {
		return err
	}
	encoded, err := chain.Encode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}

	trailer["Type"] = types.Name("XRef")
	trailer["W"] = types.Array{types.Integer(w1), types.Integer(w2), types.Integer(w3)}
	trailer["Index"] = indexArrayFor(all)
	trailer["Filter"] = types.Name("FlateDecode")
	// The xref stream's own payload is written unencrypted (spec §4.E); its
	// dictionary still carries /Encrypt, as the document's trailer.

	offset, err := ow.WriteIndirectStream(xrefObjNum, 0, trailer, encoded.Bytes())
	if err != nil {
		return err
	}
	if offset != xrefOffset {
		return errors.Wrap(errs.ErrCorruptXref, "write: xref stream offset drifted between computation and emission")
	}
	return ow.e.WriteStartXref(xrefOffset)
}

func writeXRefStreamEntry(buf *bytes.Buffer, typ byte, f2, f3 uint64, w1, w2, w3 int) {
	writeBigEndian(buf, uint64(typ), w1)
	writeBigEndian(buf, f2, w2)
	writeBigEndian(buf, f3, w3)
}

func writeBigEndian(buf *bytes.Buffer, v uint64, width int) {
	b := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	buf.Write(b)
}

func indexArrayFor(ids []int) types.Array {
	var out types.Array
	i := 0
	for i < len(ids) {
		start := ids[i]
		j := i
		for j+1 < len(ids) && ids[j+1] == ids[j]+1 {
			j++
		}
		out = append(out, types.Integer(start), types.Integer(j-i+1))
		i = j + 1
	}
	return out
}

func formatSubsectionHeader(start, count int, eol string) string {
	return fmt.Sprintf("%d %d%s", start, count, eol)
}

// formatClassicalEntry renders the fixed 20-byte classical xref entry: a
// single-character Eol is padded to width 2 so every entry stays exactly
// 20 bytes regardless of line-ending convention.
func formatClassicalEntry(offsetOrNext int64, gen int, kind byte, eol string) string {
	return fmt.Sprintf("%010d %05d %c%2s", offsetOrNext, gen, kind, eol)
}

func sortedIDs(t *xref.Table) []int {
	ids := make([]int, 0, len(t.Entries))
	for id := range t.Entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func dedupe(a []int) []int {
	if len(a) == 0 {
		return a
	}
	out := a[:1]
	for _, v := range a[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
