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
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/types"
)

const discoverChunkSize = 1024

// Discover scans backward from the end of source for the last "startxref"
// keyword and returns the offset it names (spec §4.F steps 1-2).
func Discover(source []byte) (int64, error) {
	if len(source) == 0 {
		return 0, errors.Wrap(errs.ErrCorruptXref, "xref: empty input")
	}

	end := len(source)
	for end > 0 {
		start := end - discoverChunkSize
		if start < 0 {
			start = 0
		}
		window := source[start:end]

		if j := strings.LastIndex(string(window), "startxref"); j != -1 {
			rest := window[j+len("startxref"):]
			eof := strings.Index(string(rest), "%%EOF")
			if eof == -1 {
				return 0, errors.Wrap(errs.ErrCorruptXref, "xref: startxref with no matching %%EOF")
			}
			offsetStr := strings.TrimSpace(string(rest[:eof]))
			offset, err := strconv.ParseInt(offsetStr, 10, 64)
			if err != nil {
				return 0, errors.Wrap(errs.ErrCorruptXref, "xref: malformed startxref offset")
			}
			return offset, nil
		}

		if start == 0 {
			break
		}
		end = start + len("startxref") // keep overlap so a keyword split across chunks is still found
	}

	return 0, errors.Wrap(errs.ErrCorruptXref, "xref: no startxref keyword found")
}

// Build runs the full discovery+parse+merge sequence against raw (the
// entire source file's bytes), following /Prev chains, and falls back to
// Recover on any failure (spec §4.F).
func (t *Table) Build(raw []byte) error {
	offset, err := Discover(raw)
	if err != nil {
		t.sink.Warnf("xref: discovery failed: %v; falling back to linear scan", err)
		if err := t.Recover(raw); err != nil {
			return err
		}
		return t.postBuildChecks()
	}

	if err := t.mergeChain(raw, offset); err != nil {
		t.sink.Warnf("xref: parse/merge failed: %v; falling back to linear scan", err)
		t.Entries = map[int]Entry{}
		if err := t.Recover(raw); err != nil {
			return err
		}
		return t.postBuildChecks()
	}
	return t.postBuildChecks()
}

// postBuildChecks runs the free-list repair and missing-object sweep once a
// table is otherwise built, surfacing anything found through the diag sink
// rather than failing the build: neither condition prevents Resolve from
// working, so both are reported, not fatal.
func (t *Table) postBuildChecks() error {
	if err := t.EnsureValidFreeList(); err != nil {
		t.sink.Warnf("xref: %v", err)
	}
	if n, ids := t.MissingObjects(); n > 0 {
		t.sink.Warnf("xref: %d object(s) referenced but never defined: %s", n, ids)
	}
	return nil
}

// mergeChain walks the /Prev chain starting at offset, merging each
// section's entries with higher-offset (more recent) sections taking
// precedence (spec §4.F "Merging"). Cycles are rejected as CorruptXref.
func (t *Table) mergeChain(raw []byte, offset int64) error {
	visited := map[int64]bool{}

	for {
		if visited[offset] {
			return errors.Wrap(errs.ErrCorruptXref, "xref: /Prev cycle detected")
		}
		visited[offset] = true

		kind := classifySection(raw, offset)
		var (
			trailer types.Dict
			prev    *int64
			xrefStm *int64
			err     error
		)

		switch kind {
		case sectionClassical:
			trailer, prev, xrefStm, err = t.parseClassicalSection(offset)
		case sectionStream:
			trailer, prev, err = t.parseStreamSection(offset)
		default:
			return errors.Wrapf(errs.ErrCorruptXref, "xref: offset %d is neither a table nor a stream", offset)
		}
		if err != nil {
			return err
		}

		if t.Trailer == nil {
			t.Trailer = trailer
		} else {
			for k, v := range trailer {
				if _, exists := t.Trailer[k]; !exists {
					t.Trailer[k] = v
				}
			}
		}
		if sz, ok := trailer["Size"].(types.Integer); ok && int(sz) > t.Size {
			t.Size = int(sz)
		}

		// A hybrid-reference file (classical table whose trailer carries
		// /XRefStm) layers a stream section's compressed-object entries on
		// top before following /Prev, per the PDF 2.0 hybrid extension.
		if xrefStm != nil {
			if _, _, err := t.parseStreamSection(*xrefStm); err != nil {
				t.sink.Warnf("xref: hybrid /XRefStm at %d: %v", *xrefStm, err)
			}
		}

		if prev == nil {
			return nil
		}
		offset = *prev
	}
}

// sectionKind identifies what a discovered offset points at.
type sectionKind int

const (
	sectionUnknown sectionKind = iota
	sectionClassical
	sectionStream
)

// classifySection peeks at the bytes starting at offset to tell a classical
// "xref" table header apart from an "id gen obj" header introducing an xref
// stream (spec §4.F step 3).
func classifySection(source []byte, offset int64) sectionKind {
	if offset < 0 || int(offset) >= len(source) {
		return sectionUnknown
	}
	rest := strings.TrimLeft(string(source[offset:]), " \t\r\n")
	if strings.HasPrefix(rest, "xref") {
		return sectionClassical
	}
	return sectionStream
}
