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

package types

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// utf16BEBOM is the byte-order mark a PDF "text string" carries when it is
// UTF-16BE rather than PDFDocEncoding.
var utf16BEBOM = []byte{0xFE, 0xFF}

// ErrInvalidUTF16BE is returned when a string claims the UTF-16BE BOM but its
// payload is not valid UTF-16BE.
var ErrInvalidUTF16BE = errors.New("pdfcore: types: invalid UTF-16BE text string")

// IsUTF16BE reports whether b looks like a BOM-prefixed UTF-16BE byte
// string: this heuristic — treat a string as PDFDocEncoding unless it opens
// with the UTF-16 BOM — is a source-specific convention carried forward by
// this engine, not a strict requirement of the PDF spec itself (spec §9).
func IsUTF16BE(b []byte) bool {
	return len(b) >= 2 && len(b)%2 == 0 && b[0] == utf16BEBOM[0] && b[1] == utf16BEBOM[1]
}

// DecodeTextString converts the raw bytes of a PDF "text string" (the value
// of a LiteralString or HexString used in a text context, e.g. /Author) to
// a Go UTF-8 string, applying the BOM heuristic above.
func DecodeTextString(b []byte) (string, error) {
	if IsUTF16BE(b) {
		return decodeUTF16BE(b[2:])
	}
	return decodePDFDocEncoding(b)
}

// EncodeTextString renders s back to PDF text-string bytes. Strings that
// round-trip through Latin-1 (PDFDocEncoding's common subset) are emitted
// unprefixed; anything else is emitted as UTF-16BE with its BOM.
func EncodeTextString(s string) []byte {
	if isLatin1(s) {
		return encodePDFDocEncoding(s)
	}
	return encodeUTF16BE(s)
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

func decodeUTF16BE(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errors.Wrap(ErrInvalidUTF16BE, "odd byte length")
	}
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	rr := utf16.Decode(u16)
	buf := make([]byte, 0, len(rr)*utf8.UTFMax)
	tmp := make([]byte, utf8.UTFMax)
	for _, r := range rr {
		n := utf8.EncodeRune(tmp, r)
		buf = append(buf, tmp[:n]...)
	}
	return string(buf), nil
}

func encodeUTF16BE(s string) []byte {
	rr := utf16.Encode([]rune(s))
	out := make([]byte, 0, 2+2*len(rr))
	out = append(out, utf16BEBOM...)
	for _, r := range rr {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}

// decodePDFDocEncoding decodes b from PDFDocEncoding. PDFDocEncoding and
// Windows-1252 agree on the printable range this engine exercises (ASCII
// plus the common Latin-1 punctuation/diacritics used in document metadata
// and annotation text); golang.org/x/text/encoding/charmap supplies that
// table rather than hand-rolling one.
func decodePDFDocEncoding(b []byte) (string, error) {
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), b)
	if err != nil {
		return "", errors.Wrap(err, "pdfcore: types: decoding PDFDocEncoding text string")
	}
	return string(out), nil
}

func encodePDFDocEncoding(s string) []byte {
	out, _, err := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(s))
	if err != nil {
		// Every byte was already verified to be <= 0xFF by isLatin1; a
		// transform error here means charmap rejected a control code we
		// don't specially handle. Fall back to UTF-16BE rather than lose
		// data.
		return encodeUTF16BE(s)
	}
	return out
}
