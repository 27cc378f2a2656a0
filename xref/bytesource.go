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

// byteSliceReader adapts an in-memory byte slice (a decoded object-stream
// payload) to iostreams.PositionedReader so the object parser can run over
// it exactly as it would over the document's own source stream.
type byteSliceReader struct {
	b   []byte
	pos int
}

func iostreamsByteReader(b []byte) *byteSliceReader {
	return &byteSliceReader{b: b}
}

func (r *byteSliceReader) Read(buf []byte) (int, error) {
	n := copy(buf, r.b[r.pos:])
	r.pos += n
	return n, nil
}

func (r *byteSliceReader) NotEnded() bool { return r.pos < len(r.b) }

func (r *byteSliceReader) Position() int64 { return int64(r.pos) }

func (r *byteSliceReader) Seek(offset int64) {
	r.pos = int(offset)
}

func (r *byteSliceReader) SeekFromEnd(offset int64) {
	r.pos = len(r.b) - int(offset)
}
