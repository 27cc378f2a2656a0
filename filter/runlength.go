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

package filter

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
)

type runLengthFilter struct{ baseFilter }

const runLengthEOD = 0x80

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return errors.Wrap(errs.ErrCorruptStream, "pdfcore: filter: RunLengthDecode: missing EOD marker")
	}
	return err
}

func runLengthDecode(w *bytes.Buffer, src io.ByteReader) error {
	for {
		b, err := src.ReadByte()
		if err != nil {
			return unexpectedEOF(err)
		}
		if b == runLengthEOD {
			return nil
		}
		if b < 0x80 {
			n := int(b) + 1
			for j := 0; j < n; j++ {
				c, err := src.ReadByte()
				if err != nil {
					return unexpectedEOF(err)
				}
				w.WriteByte(c)
			}
			continue
		}
		n := 257 - int(b)
		c, err := src.ReadByte()
		if err != nil {
			return unexpectedEOF(err)
		}
		for j := 0; j < n; j++ {
			w.WriteByte(c)
		}
	}
}

func runLengthEncode(w *bytes.Buffer, src []byte) {
	const maxLen = 0x80
	if len(src) == 0 {
		w.WriteByte(runLengthEOD)
		return
	}

	i, start := 0, 0
	b := src[0]

	for {
		for i < len(src) && src[i] == b && i-start < maxLen {
			i++
		}
		if run := i - start; run > 1 {
			w.WriteByte(byte(257 - run))
			w.WriteByte(b)
			if i == len(src) {
				w.WriteByte(runLengthEOD)
				return
			}
			b = src[i]
			start = i
			continue
		}

		for i < len(src) && src[i] != b && i-start < maxLen {
			b = src[i]
			i++
		}
		if i == len(src) || i-start == maxLen {
			run := i - start
			w.WriteByte(byte(run - 1))
			w.Write(src[start : start+run])
			if i == len(src) {
				w.WriteByte(runLengthEOD)
				return
			}
		} else {
			run := i - 1 - start
			w.WriteByte(byte(run - 1))
			w.Write(src[start : start+run])
			i--
		}
		b = src[i]
		start = i
	}
}

// Encode implements RunLengthDecode's encode direction (PackBits-style).
func (f runLengthFilter) Encode(r io.Reader) (*bytes.Buffer, error) {
	raw, err := readAllBytes(r)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	runLengthEncode(&b, raw)
	return &b, nil
}

// Decode implements RunLengthDecode's decode direction.
func (f runLengthFilter) Decode(r io.Reader) (*bytes.Buffer, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	var b bytes.Buffer
	if err := runLengthDecode(&b, br); err != nil {
		return nil, err
	}
	return &b, nil
}
