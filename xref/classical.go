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
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/types"
)

// parseClassicalSection parses one classical "xref ... trailer <<...>>"
// section starting at offset (the "xref" keyword), inserting any entry not
// already present in t.Entries — the caller walks sections from newest to
// oldest, so a prior insertion always represents the more recent value
// (spec §4.F "Merging").
func (t *Table) parseClassicalSection(offset int64) (trailer types.Dict, prev *int64, xrefStm *int64, err error) {
	t.source.Seek(offset)

	s := bufio.NewScanner(&readerAdapter{t.source})
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	s.Split(bufio.ScanLines)

	if !s.Scan() {
		return nil, nil, nil, errors.Wrap(errs.ErrCorruptXref, "xref: empty classical section")
	}
	firstLine := strings.TrimSpace(s.Text())
	if firstLine != "xref" {
		// Some writers put the first subsection header on the same line as
		// "xref". Treat anything after "xref" as the start of a subsection.
		rest := strings.TrimSpace(strings.TrimPrefix(firstLine, "xref"))
		if rest != "" {
			if err := t.parseClassicalSubsections(s, rest); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if line == "trailer" {
			break
		}
		if err := t.parseClassicalSubsections(s, line); err != nil {
			return nil, nil, nil, err
		}
	}

	var dictBuf bytes.Buffer
	for s.Scan() {
		line := s.Text()
		dictBuf.WriteString(line)
		dictBuf.WriteByte('\n')
		if strings.Contains(line, "startxref") || strings.TrimSpace(line) == "%%EOF" {
			break
		}
	}

	trailer, err = parseTrailerDict(dictBuf.Bytes())
	if err != nil {
		return nil, nil, nil, err
	}

	if p, ok := trailer["Prev"].(types.Integer); ok {
		v := int64(p)
		prev = &v
	}
	if x, ok := trailer["XRefStm"].(types.Integer); ok {
		v := int64(x)
		xrefStm = &v
	}
	return trailer, prev, xrefStm, nil
}

// parseClassicalSubsections parses exactly one "firstId count" subsection
// header (headerLine, already consumed from the scanner by the caller)
// followed by count 20-byte fixed-width entries. The caller's own loop
// drives repeated calls for a section with multiple subsections, so this
// function never looks past its own entries — avoiding any ambiguity
// between a further subsection header and the "trailer" keyword that ends
// the section.
func (t *Table) parseClassicalSubsections(s *scanLineSource, headerLine string) error {
	fields := strings.Fields(headerLine)
	if len(fields) != 2 {
		return errors.Wrapf(errs.ErrCorruptXref, "xref: malformed subsection header %q", headerLine)
	}
	first, err := strconv.Atoi(fields[0])
	if err != nil {
		return errors.Wrap(errs.ErrCorruptXref, "xref: malformed subsection start id")
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil {
		return errors.Wrap(errs.ErrCorruptXref, "xref: malformed subsection count")
	}

	for i := 0; i < count; i++ {
		if !s.Scan() {
			return errors.Wrap(errs.ErrCorruptXref, "xref: truncated subsection")
		}
		entryLine := strings.TrimRight(s.Text(), "\r\n \t")
		fields := strings.Fields(entryLine)
		if len(fields) != 3 {
			return errors.Wrapf(errs.ErrCorruptXref, "xref: malformed entry %q", entryLine)
		}
		offset, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return errors.Wrap(errs.ErrCorruptXref, "xref: malformed entry offset")
		}
		gen, err := strconv.Atoi(fields[1])
		if err != nil {
			return errors.Wrap(errs.ErrCorruptXref, "xref: malformed entry generation")
		}

		id := first + i
		if _, exists := t.Entries[id]; exists {
			continue
		}

		switch fields[2] {
		case "n":
			if offset == 0 {
				continue
			}
			t.Entries[id] = Entry{Kind: InUse, Offset: offset, Generation: gen}
		case "f":
			t.Entries[id] = Entry{Kind: Free, NextFree: int(offset), Generation: gen}
		default:
			return errors.Wrapf(errs.ErrCorruptXref, "xref: entry type must be 'n' or 'f', got %q", fields[2])
		}
	}

	return nil
}

type scanLineSource = bufio.Scanner

// readerAdapter adapts an iostreams.Reader (which never signals
// end-of-stream through an error; callers poll NotEnded instead) to the
// stdlib io.Reader bufio.Scanner expects.
type readerAdapter struct {
	r iostreamsReader
}

type iostreamsReader interface {
	Read(buf []byte) (int, error)
	NotEnded() bool
}

func (a *readerAdapter) Read(buf []byte) (int, error) {
	n, err := a.r.Read(buf)
	if err != nil {
		return n, err
	}
	if n == 0 && !a.r.NotEnded() {
		return 0, io.EOF
	}
	return n, nil
}
