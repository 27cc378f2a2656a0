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
	"bytes"
	"io"

	"github.com/hhrutter/lzw"
	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
)

type lzwFilter struct{ baseFilter }

// Encode compresses r with the PDF variant of LZW (fixed 8-bit literal
// width, /EarlyChange honoured).
func (f lzwFilter) Encode(r io.Reader) (*bytes.Buffer, error) {
	raw, err := readAllBytes(r)
	if err != nil {
		return nil, err
	}
	raw, err = f.encodePredictor(raw)
	if err != nil {
		return nil, err
	}

	earlyChange := f.intParm("EarlyChange", 1)

	var b bytes.Buffer
	w := lzw.NewWriter(&b, earlyChange == 1)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Decode runs the LZW dictionary reset on code 256, stopping on EOD (code
// 257), per spec §4.D.
func (f lzwFilter) Decode(r io.Reader) (*bytes.Buffer, error) {
	earlyChange := f.intParm("EarlyChange", 1)

	rc := lzw.NewReader(r, earlyChange == 1)
	defer rc.Close()

	raw, err := readAllBytes(rc)
	if err != nil {
		return nil, errors.Wrap(errs.ErrCorruptStream, errors.Wrap(err, "pdfcore: filter: LZWDecode").Error())
	}

	out, err := f.applyPredictor(raw)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(out), nil
}
