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
	"compress/zlib"
	"io"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
)

type flateFilter struct{ baseFilter }

// Encode deflates r, applying predictor preprocessing first if /Predictor
// is configured.
func (f flateFilter) Encode(r io.Reader) (*bytes.Buffer, error) {
	raw, err := readAllBytes(r)
	if err != nil {
		return nil, err
	}
	raw, err = f.encodePredictor(raw)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Decode inflates r and reverses any declared predictor. A corrupt zlib
// header or CRC mismatch is fatal to the surrounding object (spec §4.D).
func (f flateFilter) Decode(r io.Reader) (*bytes.Buffer, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(errs.ErrCorruptStream, errors.Wrap(err, "pdfcore: filter: FlateDecode").Error())
	}
	defer zr.Close()

	raw, err := readAllBytes(zr)
	if err != nil {
		return nil, errors.Wrap(errs.ErrCorruptStream, errors.Wrap(err, "pdfcore: filter: FlateDecode").Error())
	}

	out, err := f.applyPredictor(raw)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(out), nil
}
