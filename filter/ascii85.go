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
	"encoding/ascii85"
	"io"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
)

type ascii85Filter struct{ baseFilter }

const eodASCII85 = "~>"

// Encode implements the ASCII85Decode filter's encode direction.
func (f ascii85Filter) Encode(r io.Reader) (*bytes.Buffer, error) {
	raw, err := readAllBytes(r)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	enc := ascii85.NewEncoder(&b)
	if _, err := enc.Write(raw); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	b.WriteString(eodASCII85)
	return &b, nil
}

// Decode rejects any byte outside the base-85 alphabet (spec §4.D).
func (f ascii85Filter) Decode(r io.Reader) (*bytes.Buffer, error) {
	raw, err := readAllBytes(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if idx := bytes.Index(raw, []byte(eodASCII85)); idx >= 0 {
		raw = raw[:idx]
	}

	for _, c := range raw {
		if c == 'z' || c == '\n' || c == '\r' || c == '\t' || c == ' ' || c == '\f' || c == 0 {
			continue
		}
		if c < '!' || c > 'u' {
			return nil, errors.Wrapf(errs.ErrCorruptStream, "pdfcore: filter: ASCII85Decode: out-of-range byte %#x", c)
		}
	}

	dst := make([]byte, len(raw))
	n, _, err := ascii85.Decode(dst, raw, true)
	if err != nil {
		return nil, errors.Wrap(errs.ErrCorruptStream, errors.Wrap(err, "pdfcore: filter: ASCII85Decode").Error())
	}
	return bytes.NewBuffer(dst[:n]), nil
}
