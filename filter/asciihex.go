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
	"encoding/hex"
	"io"
)

type asciiHexFilter struct{ baseFilter }

const eodHex = '>'

// Encode implements the ASCIIHexDecode filter's encode direction.
func (f asciiHexFilter) Encode(r io.Reader) (*bytes.Buffer, error) {
	raw, err := readAllBytes(r)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(dst, raw)
	dst = append(dst, eodHex)
	return bytes.NewBuffer(dst), nil
}

// Decode skips whitespace and stops at the EOD marker (spec §4.D).
func (f asciiHexFilter) Decode(r io.Reader) (*bytes.Buffer, error) {
	raw, err := readAllBytes(r)
	if err != nil {
		return nil, err
	}

	digits := make([]byte, 0, len(raw))
	for _, c := range raw {
		if c == eodHex {
			break
		}
		switch c {
		case 0x09, 0x0A, 0x0C, 0x0D, 0x20:
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	dst := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(dst, digits); err != nil {
		return nil, err
	}
	return bytes.NewBuffer(dst), nil
}
