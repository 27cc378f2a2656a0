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

// Package iostreams supplies the byte-stream capability sets spec §4.A
// describes: Reader/Writer and their Positioned variants, a buffered
// adapter, a length-limited reader and a reader that concatenates several
// streams as one.
package iostreams

import (
	"io"

	"github.com/pkg/errors"
)

// Reader never signals end-of-stream through an error; short reads are
// normal and NotEnded reports whether more bytes remain.
type Reader interface {
	Read(buf []byte) (n int, err error)
	NotEnded() bool
}

// PositionedReader additionally supports absolute positioning.
type PositionedReader interface {
	Reader
	Position() int64
	Seek(offset int64)
	SeekFromEnd(offset int64)
}

// Writer delivers bytes to a sink.
type Writer interface {
	Write(buf []byte) (n int, err error)
}

// PositionedWriter additionally reports its current absolute position.
type PositionedWriter interface {
	Writer
	Position() int64
}

// ReadSeeker is the minimum stdlib surface Buffered wraps.
type ReadSeeker interface {
	io.Reader
	io.Seeker
}

// Buffered adapts an io.ReadSeeker into a PositionedReader with a fixed-size
// internal buffer (default config.DefaultBufferSize per spec §4.A).
type Buffered struct {
	rs       ReadSeeker
	buf      []byte
	pos      int // read position within buf
	fill     int // valid bytes in buf
	atEOF    bool
	underPos int64 // position of rs, i.e. of buf[fill]
}

// NewBuffered wraps rs with an internal buffer of bufSize bytes.
func NewBuffered(rs ReadSeeker, bufSize int) *Buffered {
	if bufSize <= 0 {
		bufSize = 256 * 1024
	}
	return &Buffered{rs: rs, buf: make([]byte, bufSize)}
}

func (b *Buffered) fillBuffer() error {
	n, err := b.rs.Read(b.buf)
	b.pos = 0
	b.fill = n
	if n > 0 {
		b.underPos += int64(n)
	}
	if err != nil {
		if err == io.EOF {
			b.atEOF = true
			return nil
		}
		return err
	}
	if n == 0 {
		b.atEOF = true
	}
	return nil
}

// Read implements Reader.
func (b *Buffered) Read(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		if b.pos >= b.fill {
			if b.atEOF {
				break
			}
			if err := b.fillBuffer(); err != nil {
				return total, err
			}
			if b.fill == 0 {
				break
			}
		}
		n := copy(buf[total:], b.buf[b.pos:b.fill])
		b.pos += n
		total += n
	}
	return total, nil
}

// NotEnded implements Reader.
func (b *Buffered) NotEnded() bool {
	if b.pos < b.fill {
		return true
	}
	if b.atEOF {
		return false
	}
	if err := b.fillBuffer(); err != nil {
		return false
	}
	return b.fill > b.pos
}

// Position returns the underlying stream position minus unread buffered
// bytes, per spec §4.A.
func (b *Buffered) Position() int64 {
	return b.underPos - int64(b.fill-b.pos)
}

// Seek invalidates and resets the buffer, then repositions the underlying
// stream.
func (b *Buffered) Seek(offset int64) {
	b.pos, b.fill, b.atEOF = 0, 0, false
	pos, err := b.rs.Seek(offset, io.SeekStart)
	if err != nil {
		// A seek failure leaves the stream at whatever position the
		// underlying implementation left it at; subsequent reads will
		// simply observe EOF or wrong data, surfaced by the caller's own
		// length checks.
		return
	}
	b.underPos = pos
}

// SeekFromEnd seeks to offset bytes before the end of the stream.
func (b *Buffered) SeekFromEnd(offset int64) {
	b.pos, b.fill, b.atEOF = 0, 0, false
	pos, err := b.rs.Seek(-offset, io.SeekEnd)
	if err != nil {
		return
	}
	b.underPos = pos
}

// Limited stops delivering bytes after Length bytes even if the wrapped
// Reader has more, per spec §4.A.
type Limited struct {
	R      Reader
	Length int64
	read   int64
}

// NewLimited wraps r so reads never cross length bytes.
func NewLimited(r Reader, length int64) *Limited {
	return &Limited{R: r, Length: length}
}

func (l *Limited) Read(buf []byte) (int, error) {
	remaining := l.Length - l.read
	if remaining <= 0 {
		return 0, nil
	}
	if int64(len(buf)) > remaining {
		buf = buf[:remaining]
	}
	n, err := l.R.Read(buf)
	l.read += int64(n)
	return n, err
}

func (l *Limited) NotEnded() bool {
	return l.read < l.Length && l.R.NotEnded()
}

// Remaining reports how many bytes are left to deliver before Length is
// reached.
func (l *Limited) Remaining() int64 {
	return l.Length - l.read
}

// ErrShortRead is wrapped by callers that declared a region as having a
// fixed length and received fewer bytes than promised (spec: TruncatedInput
// at the caller's layer).
var ErrShortRead = errors.New("pdfcore: iostreams: short read within a fixed-length region")

// ReadFull reads exactly len(buf) bytes from r, or returns ErrShortRead.
func ReadFull(r Reader, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		if err != nil {
			return err
		}
		total += n
		if n == 0 && !r.NotEnded() {
			return errors.Wrapf(ErrShortRead, "wanted %d bytes, got %d", len(buf), total)
		}
	}
	return nil
}

// Chain concatenates a sequence of Readers as one, used to read a page
// /Contents that is an array of streams (spec §4.A).
type Chain struct {
	readers []Reader
	idx     int
}

// NewChain returns a Reader presenting rs end-to-end in order.
func NewChain(rs ...Reader) *Chain {
	return &Chain{readers: rs}
}

func (c *Chain) Read(buf []byte) (int, error) {
	for c.idx < len(c.readers) {
		n, err := c.readers[c.idx].Read(buf)
		if n > 0 || err != nil {
			return n, err
		}
		if c.readers[c.idx].NotEnded() {
			// Zero bytes but more to come from this sub-reader; let the
			// caller retry rather than spuriously advancing.
			return 0, nil
		}
		c.idx++
	}
	return 0, nil
}

func (c *Chain) NotEnded() bool {
	for c.idx < len(c.readers) {
		if c.readers[c.idx].NotEnded() {
			return true
		}
		c.idx++
	}
	return false
}

// BufWriter adapts an io.Writer into a PositionedWriter.
type BufWriter struct {
	w   io.Writer
	pos int64
}

// NewBufWriter wraps w, tracking the number of bytes written so far.
func NewBufWriter(w io.Writer) *BufWriter {
	return &BufWriter{w: w}
}

// NewBufWriterAt wraps w the same way as NewBufWriter, but seeds Position()
// at startAt — for an incremental update, where w's first byte lands at
// some nonzero offset into a file that already holds a prior revision.
func NewBufWriterAt(w io.Writer, startAt int64) *BufWriter {
	return &BufWriter{w: w, pos: startAt}
}

func (bw *BufWriter) Write(buf []byte) (int, error) {
	n, err := bw.w.Write(buf)
	bw.pos += int64(n)
	return n, err
}

// Position returns the number of bytes written so far.
func (bw *BufWriter) Position() int64 {
	return bw.pos
}
