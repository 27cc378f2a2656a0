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
	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/internal/iostreams"
	"github.com/feliwir/pdfcore/parse"
	"github.com/feliwir/pdfcore/types"
)

// parseStreamSection parses an xref stream section starting at offset (an
// "id gen obj" header). Entries are inserted only when not already present,
// matching parseClassicalSection's merge precedence (spec §4.F).
func (t *Table) parseStreamSection(offset int64) (trailer types.Dict, prev *int64, err error) {
	t.source.Seek(offset)
	p := t.newParser()

	// "id gen obj" — the header belongs to the xref stream's own object
	// number, not meaningful to the caller beyond skipping past it.
	if _, err := p.ParseObject(); err != nil {
		return nil, nil, errors.Wrap(err, "xref: stream section: object id")
	}
	if _, err := p.ParseObject(); err != nil {
		return nil, nil, errors.Wrap(err, "xref: stream section: generation")
	}
	kw, err := p.ParseObject()
	if err != nil {
		return nil, nil, err
	}
	if sym, ok := kw.(types.Symbol); !ok || string(sym) != "obj" {
		return nil, nil, errors.Wrap(errs.ErrCorruptXref, "xref: stream section: missing 'obj' keyword")
	}

	objOrStream, err := p.ParseObjectOrStreamHeader()
	if err != nil {
		return nil, nil, err
	}
	sh, ok := objOrStream.(*parse.StreamHeader)
	if !ok {
		return nil, nil, errors.Wrap(errs.ErrCorruptXref, "xref: stream section: expected a stream")
	}

	d := sh.Dict
	if typ, ok := d.NameEntry("Type"); !ok || string(typ) != "XRef" {
		return nil, nil, errors.Wrap(errs.ErrCorruptXref, "xref: stream section: missing /Type /XRef")
	}

	length, err := t.streamLength(d, 0, 0)
	if err != nil {
		return nil, nil, err
	}
	t.source.Seek(sh.PayloadStart)
	raw := make([]byte, length)
	if err := iostreams.ReadFull(t.source, raw); err != nil {
		return nil, nil, errors.Wrapf(errs.ErrCorruptStream, "xref: stream section: truncated payload: %v", err)
	}

	sd := types.NewStreamDict(d, raw)
	decoded, err := t.decodeStreamPayload(sd)
	if err != nil {
		return nil, nil, err
	}

	w, err := xrefStreamWidths(d)
	if err != nil {
		return nil, nil, err
	}
	size, ok := d["Size"].(types.Integer)
	if !ok {
		return nil, nil, errors.Wrap(errs.ErrCorruptXref, "xref: stream section: missing /Size")
	}
	index := xrefStreamIndex(d, int(size))

	if err := t.fillEntriesFromXRefStream(decoded, w, index); err != nil {
		return nil, nil, err
	}

	if prevObj, ok := d["Prev"].(types.Integer); ok {
		v := int64(prevObj)
		prev = &v
	}
	return d, prev, nil
}

func xrefStreamWidths(d types.Dict) ([3]int, error) {
	arr, ok := d["W"].(types.Array)
	if !ok || len(arr) != 3 {
		return [3]int{}, errors.Wrap(errs.ErrCorruptXref, "xref: stream section: /W must be a 3-element array")
	}
	var w [3]int
	for i, o := range arr {
		n, ok := o.(types.Integer)
		if !ok {
			return [3]int{}, errors.Wrap(errs.ErrCorruptXref, "xref: stream section: /W entries must be integers")
		}
		w[i] = int(n)
	}
	return w, nil
}

// xrefStreamIndex returns the (firstId, count) pairs /Index declares, or a
// single pair covering the whole table (0, size) when /Index is absent.
func xrefStreamIndex(d types.Dict, size int) [][2]int {
	arr, ok := d["Index"].(types.Array)
	if !ok || len(arr)%2 != 0 {
		return [][2]int{{0, size}}
	}
	pairs := make([][2]int, 0, len(arr)/2)
	for i := 0; i+1 < len(arr); i += 2 {
		first, ok1 := arr[i].(types.Integer)
		count, ok2 := arr[i+1].(types.Integer)
		if !ok1 || !ok2 {
			return [][2]int{{0, size}}
		}
		pairs = append(pairs, [2]int{int(first), int(count)})
	}
	return pairs
}

func (t *Table) fillEntriesFromXRefStream(buf []byte, w [3]int, index [][2]int) error {
	entryLen := w[0] + w[1] + w[2]
	if entryLen == 0 {
		return errors.Wrap(errs.ErrCorruptXref, "xref: stream section: zero-width entries")
	}
	if len(buf)%entryLen != 0 {
		return errors.Wrap(errs.ErrCorruptXref, "xref: stream section: payload size is not a multiple of the entry width")
	}

	readField := func(b []byte) int64 {
		var v int64
		for _, c := range b {
			v = v<<8 | int64(c)
		}
		return v
	}

	pos := 0
	for _, pair := range index {
		first, count := pair[0], pair[1]
		for i := 0; i < count; i++ {
			if pos+entryLen > len(buf) {
				return errors.Wrap(errs.ErrCorruptXref, "xref: stream section: fewer entries than /Index declares")
			}
			entry := buf[pos : pos+entryLen]
			pos += entryLen

			typ := int64(1)
			off := 0
			if w[0] > 0 {
				typ = readField(entry[:w[0]])
				off = w[0]
			}
			f2 := readField(entry[off : off+w[1]])
			f3 := readField(entry[off+w[1] : off+w[1]+w[2]])

			id := first + i
			if _, exists := t.Entries[id]; exists {
				continue
			}

			switch typ {
			case 0:
				t.Entries[id] = Entry{Kind: Free, NextFree: int(f2), Generation: int(f3)}
			case 1:
				t.Entries[id] = Entry{Kind: InUse, Offset: f2, Generation: int(f3)}
			case 2:
				t.Entries[id] = Entry{Kind: InObjectStream, StreamObjectNumber: int(f2), IndexInStream: int(f3)}
			default:
				return errors.Wrapf(errs.ErrCorruptXref, "xref: stream section: unknown entry type %d", typ)
			}
		}
	}
	return nil
}
