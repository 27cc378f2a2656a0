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

// Package write implements the serialization side of the engine (spec §4.B,
// §4.G-J): the primitive token emitter, the indirect-object registry, the
// object-context writer state machine, and the full-rewrite/incremental
// finalizer.
package write

import (
	"fmt"

	"github.com/feliwir/pdfcore/internal/iostreams"
	"github.com/feliwir/pdfcore/types"
)

// Separator controls the whitespace an Emitter inserts between consecutive
// tokens, since different PDF contexts require different delimiters
// (array elements need just a space, dictionary entries and indirect
// objects read better with a newline).
type Separator int

const (
	SepNone Separator = iota
	SepSpace
	SepNewline
)

// Emitter is the primitive token writer: every method writes exactly one
// syntactic unit (a keyword, a number, a name, ...) and tracks the absolute
// byte offset of the underlying stream so callers can record where each
// indirect object begins.
type Emitter struct {
	w   iostreams.PositionedWriter
	Eol string
}

// NewEmitter wraps w. eol is the end-of-line sequence ("\n", "\r\n", or
// "\r") written after lines that call for one; an empty eol defaults to
// "\n".
func NewEmitter(w iostreams.PositionedWriter, eol string) *Emitter {
	if eol == "" {
		eol = "\n"
	}
	return &Emitter{w: w, Eol: eol}
}

// Position returns the number of bytes written so far.
func (e *Emitter) Position() int64 {
	return e.w.Position()
}

func (e *Emitter) writeString(s string) error {
	_, err := e.w.Write([]byte(s))
	return err
}

// WriteRaw writes b unmodified — used for stream payload bytes, which must
// never be re-escaped.
func (e *Emitter) WriteRaw(b []byte) error {
	_, err := e.w.Write(b)
	return err
}

func (e *Emitter) sep(s Separator) error {
	switch s {
	case SepSpace:
		return e.writeString(" ")
	case SepNewline:
		return e.writeString(e.Eol)
	default:
		return nil
	}
}

// WriteComment writes "%<text><eol>".
func (e *Emitter) WriteComment(text string) error {
	return e.writeString("%" + text + e.Eol)
}

// WriteHeader writes the PDF header comment line plus the conventional
// binary marker comment pdfcpu and most writers emit to signal an 8-bit
// clean file to naive transfer tools.
func (e *Emitter) WriteHeader(version string) error {
	if err := e.writeString("%PDF-" + version + e.Eol); err != nil {
		return err
	}
	return e.writeString("%\xe2\xe3\xcf\xd3" + e.Eol)
}

// WriteKeyword writes a bare keyword (obj, endobj, stream, endstream, xref,
// trailer, startxref, R) followed by sep.
func (e *Emitter) WriteKeyword(kw string, sep Separator) error {
	if err := e.writeString(kw); err != nil {
		return err
	}
	return e.sep(sep)
}

// WriteObjectHeader writes "<objNum> <genNum> obj<eol>".
func (e *Emitter) WriteObjectHeader(objNum, genNum int) error {
	return e.writeString(fmt.Sprintf("%d %d obj%s", objNum, genNum, e.Eol))
}

// WriteObjectTrailer writes "<eol>endobj<eol>".
func (e *Emitter) WriteObjectTrailer() error {
	return e.writeString(e.Eol + "endobj" + e.Eol)
}

// WriteObject writes obj's canonical PDFString representation followed by
// sep. Composite values (Dict, Array, StreamDict) already render their own
// internal structure via PDFString; Emitter does not recurse into them
// itself (ObjectWriter owns per-context separator policy for that).
func (e *Emitter) WriteObject(obj types.Object, sep Separator) error {
	if err := e.writeString(obj.PDFString()); err != nil {
		return err
	}
	return e.sep(sep)
}

// WriteIndirectRef writes "<id> <gen> R" followed by sep.
func (e *Emitter) WriteIndirectRef(ref types.IndirectRef, sep Separator) error {
	if err := e.writeString(ref.PDFString()); err != nil {
		return err
	}
	return e.sep(sep)
}

// WriteStreamKeyword writes "stream<eol>".
func (e *Emitter) WriteStreamKeyword() error {
	return e.writeString("stream" + e.Eol)
}

// WriteEndstreamKeyword writes "<eol>endstream<eol>".
func (e *Emitter) WriteEndstreamKeyword() error {
	return e.writeString(e.Eol + "endstream" + e.Eol)
}

// WriteStartXref writes "startxref<eol><offset><eol>%%EOF".
func (e *Emitter) WriteStartXref(offset int64) error {
	return e.writeString(fmt.Sprintf("startxref%s%d%s%%%%EOF", e.Eol, offset, e.Eol))
}
