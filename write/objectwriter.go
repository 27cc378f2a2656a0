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
	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/types"
)

// State is where an ObjectWriter sits in the grammar of one output file.
// Most callers never see it directly; it exists so a caller sequencing
// calls incorrectly (e.g. writing stream bytes outside a stream) fails
// loudly with WriterStateError instead of emitting a malformed file.
type State int

const (
	StateTopLevel State = iota
	StateInIndirectObject
	StateInDictionary
	StateInArray
	StateInStream
)

// ObjectWriter sequences Emitter calls through the states an indirect
// object's body legally passes through, recording the byte offset at which
// each object number's header began so the caller can hand that offset to
// the Registry/Finalizer for the cross-reference table.
type ObjectWriter struct {
	e     *Emitter
	state State
}

// NewObjectWriter wraps e, starting at the top level (between objects).
func NewObjectWriter(e *Emitter) *ObjectWriter {
	return &ObjectWriter{e: e, state: StateTopLevel}
}

func (w *ObjectWriter) requireState(want State, op string) error {
	if w.state != want {
		return errors.Wrapf(errs.ErrWriterState, "write: %s called in state %d, want %d", op, w.state, want)
	}
	return nil
}

// BeginIndirectObject writes the "id gen obj" header and returns the byte
// offset it was written at — the value the xref table/stream must record
// for objNum.
func (w *ObjectWriter) BeginIndirectObject(objNum, genNum int) (int64, error) {
	if err := w.requireState(StateTopLevel, "BeginIndirectObject"); err != nil {
		return 0, err
	}
	offset := w.e.Position()
	if err := w.e.WriteObjectHeader(objNum, genNum); err != nil {
		return 0, err
	}
	w.state = StateInIndirectObject
	return offset, nil
}

// EndIndirectObject writes "endobj" and returns to the top level.
func (w *ObjectWriter) EndIndirectObject() error {
	if err := w.requireState(StateInIndirectObject, "EndIndirectObject"); err != nil {
		return err
	}
	if err := w.e.WriteObjectTrailer(); err != nil {
		return err
	}
	w.state = StateTopLevel
	return nil
}

// WriteBody writes obj's canonical representation as an indirect object's
// direct value — any Object except a StreamDict, which goes through
// BeginStream/WriteStreamBytes/EndStream instead since its payload is
// opaque binary data PDFString must not attempt to render.
func (w *ObjectWriter) WriteBody(obj types.Object) error {
	if err := w.requireState(StateInIndirectObject, "WriteBody"); err != nil {
		return err
	}
	if _, ok := obj.(types.StreamDict); ok {
		return errors.Wrap(errs.ErrWriterState, "write: WriteBody called with a StreamDict; use BeginStream instead")
	}
	return w.e.WriteObject(obj, SepNone)
}

// BeginStream writes streamDict's dictionary followed by the "stream"
// keyword, transitioning into StateInStream for the raw payload bytes that
// follow.
func (w *ObjectWriter) BeginStream(dict types.Dict) error {
	if err := w.requireState(StateInIndirectObject, "BeginStream"); err != nil {
		return err
	}
	if err := w.e.WriteObject(dict, SepNone); err != nil {
		return err
	}
	if err := w.e.writeString(w.e.Eol); err != nil {
		return err
	}
	if err := w.e.WriteStreamKeyword(); err != nil {
		return err
	}
	w.state = StateInStream
	return nil
}

// WriteStreamBytes writes raw payload bytes unmodified — callers must have
// already applied encryption and filter encoding; BeginStream's dictionary
// must already declare the resulting /Length.
func (w *ObjectWriter) WriteStreamBytes(raw []byte) error {
	if err := w.requireState(StateInStream, "WriteStreamBytes"); err != nil {
		return err
	}
	return w.e.WriteRaw(raw)
}

// EndStream writes "endstream", returning to StateInIndirectObject so the
// caller can close out with EndIndirectObject.
func (w *ObjectWriter) EndStream() error {
	if err := w.requireState(StateInStream, "EndStream"); err != nil {
		return err
	}
	if err := w.e.WriteEndstreamKeyword(); err != nil {
		return err
	}
	w.state = StateInIndirectObject
	return nil
}

// WriteIndirectObject is the common-case convenience path: write a complete
// "id gen obj <body> endobj" for a non-stream object in one call.
func (w *ObjectWriter) WriteIndirectObject(objNum, genNum int, obj types.Object) (int64, error) {
	offset, err := w.BeginIndirectObject(objNum, genNum)
	if err != nil {
		return 0, err
	}
	if err := w.WriteBody(obj); err != nil {
		return 0, err
	}
	if err := w.EndIndirectObject(); err != nil {
		return 0, err
	}
	return offset, nil
}

// WriteIndirectStream is the common-case convenience path for a stream
// object: "id gen obj <dict> stream <eol> <raw> endstream endobj". raw must
// already be filter-encoded and encrypted as needed; dict must already
// carry the matching /Length.
func (w *ObjectWriter) WriteIndirectStream(objNum, genNum int, dict types.Dict, raw []byte) (int64, error) {
	offset, err := w.BeginIndirectObject(objNum, genNum)
	if err != nil {
		return 0, err
	}
	if err := w.BeginStream(dict); err != nil {
		return 0, err
	}
	if err := w.WriteStreamBytes(raw); err != nil {
		return 0, err
	}
	if err := w.EndStream(); err != nil {
		return 0, err
	}
	if err := w.EndIndirectObject(); err != nil {
		return 0, err
	}
	return offset, nil
}
