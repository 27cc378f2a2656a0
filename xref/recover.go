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
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/types"
)

// objHeaderPattern matches an "id gen obj" header anywhere in the file.
// Deliberately loose on whitespace — recovery runs only once a structured
// parse has already failed.
var objHeaderPattern = regexp.MustCompile(`(?:^|[^0-9])(\d+)[ \t]+(\d+)[ \t]+obj\b`)

// Recover rebuilds the table by scanning raw top to bottom for every
// "N G obj" header, superseding any partial state from a failed structured
// parse (spec §4.F: "the engine logs XrefRepaired and proceeds"). The last
// occurrence of a given object number wins, matching how incremental
// updates append a newer body further into the file.
func (t *Table) Recover(raw []byte) error {
	t.Entries = map[int]Entry{}
	t.objStreamCache = map[int][]types.Object{}

	matches := objHeaderPattern.FindAllSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return errors.Wrap(errs.ErrCorruptXref, "xref: recovery found no object headers")
	}

	for _, m := range matches {
		idStart, idEnd := m[2], m[3]
		genStart, genEnd := m[4], m[5]

		id, err := strconv.Atoi(string(raw[idStart:idEnd]))
		if err != nil {
			continue
		}
		gen, err := strconv.Atoi(string(raw[genStart:genEnd]))
		if err != nil {
			continue
		}

		// The match's group 1 starts right where the id digits begin, after
		// any boundary byte the pattern consumed: that is the true start of
		// the header, so Resolve re-parses from the id token.
		offset := idStart

		t.Entries[id] = Entry{Kind: InUse, Offset: int64(offset), Generation: gen}
	}

	trailer, err := recoverTrailer(raw)
	if err != nil {
		return err
	}
	t.Trailer = trailer
	if sz, ok := trailer["Size"].(types.Integer); ok {
		t.Size = int(sz)
	} else {
		maxID := 0
		for id := range t.Entries {
			if id > maxID {
				maxID = id
			}
		}
		t.Size = maxID + 1
	}

	t.sink.Repaired("xref table reconstructed via linear scan")
	return nil
}

// recoverTrailer locates the last "trailer <<...>>" dictionary in the file,
// falling back to synthesizing one from the last object found to declare
// /Type /Catalog or /Type /XRef when no classical trailer keyword exists at
// all (xref-stream-only files have no "trailer" keyword).
func recoverTrailer(raw []byte) (types.Dict, error) {
	idx := bytes.LastIndex(raw, []byte("trailer"))
	if idx != -1 {
		rest := raw[idx+len("trailer"):]
		if d, err := parseTrailerDict(rest); err == nil {
			return d, nil
		}
	}

	// No classical trailer: scan backward for the last xref stream's own
	// dictionary, which carries /Root, /Size, /ID exactly like a trailer.
	d, ok := lastDictWithKey(raw, "Root")
	if !ok {
		return nil, errors.Wrap(errs.ErrCorruptXref, "xref: recovery found no trailer or /Root")
	}
	return d, nil
}

// lastDictWithKey scans every "<<...>>" dictionary in raw and returns the
// last one containing key, used to recover a trailer-equivalent dictionary
// from a stream-only file whose sole source of /Root is an xref stream or
// catalog dictionary.
func lastDictWithKey(raw []byte, key string) (types.Dict, bool) {
	var (
		found types.Dict
		ok    bool
		pos   int
	)
	needle := []byte("/" + key)
	for {
		start := bytes.Index(raw[pos:], []byte("<<"))
		if start == -1 {
			break
		}
		start += pos
		depth := 0
		end := start
		for end < len(raw) {
			switch {
			case bytes.HasPrefix(raw[end:], []byte("<<")):
				depth++
				end += 2
			case bytes.HasPrefix(raw[end:], []byte(">>")):
				depth--
				end += 2
				if depth == 0 {
					goto closed
				}
			default:
				end++
			}
		}
	closed:
		chunk := raw[start:end]
		if bytes.Contains(chunk, needle) {
			if d, err := parseTrailerDict(chunk); err == nil {
				found, ok = d, true
			}
		}
		pos = start + 2
	}
	return found, ok
}
