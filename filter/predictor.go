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

	"github.com/pkg/errors"
)

// Predictor algorithm values, spec §4.D / PDF 32000-1 table 8.
const (
	PredictorNone = 1
	PredictorTIFF = 2
	PNGNone       = 10
	PNGSub        = 11
	PNGUp         = 12
	PNGAverage    = 13
	PNGPaeth      = 14
	PNGOptimum    = 15
)

// PNG row-filter tag bytes, prefixing each encoded row when Predictor >= 10.
const (
	pngTagNone    = 0x00
	pngTagSub     = 0x01
	pngTagUp      = 0x02
	pngTagAverage = 0x03
	pngTagPaeth   = 0x04
)

func (b baseFilter) predictorParams() (predictor, colors, bpc, columns int) {
	predictor = b.intParm("Predictor", PredictorNone)
	colors = b.intParm("Colors", 1)
	bpc = b.intParm("BitsPerComponent", 8)
	columns = b.intParm("Columns", 1)
	return
}

// applyPredictor reverses the prediction step applied before compression,
// per the TIFF/PNG algorithms spec §4.D names.
func (b baseFilter) applyPredictor(decoded []byte) ([]byte, error) {
	predictor, colors, bpc, columns := b.predictorParams()
	if predictor <= PredictorNone {
		return decoded, nil
	}

	bytesPerPixel := (bpc*colors + 7) / 8
	if bytesPerPixel < 1 {
		bytesPerPixel = 1
	}
	rowSize := (bpc*colors*columns + 7) / 8

	if predictor == PredictorTIFF {
		return applyTIFFPredictor(decoded, rowSize, colors, bpc, bytesPerPixel)
	}

	return applyPNGPredictor(decoded, rowSize, bytesPerPixel)
}

// applyTIFFPredictor reverses horizontal differencing across 8-bit samples
// (the only bit depth this engine reconstructs; other depths pass through
// unchanged, matching wide real-world practice of ignoring the predictor
// for non-8-bit TIFF-predicted data).
func applyTIFFPredictor(data []byte, rowSize, colors, bpc, bytesPerPixel int) ([]byte, error) {
	if bpc != 8 || rowSize == 0 {
		return data, nil
	}
	out := append([]byte(nil), data...)
	for off := 0; off+rowSize <= len(out); off += rowSize {
		row := out[off : off+rowSize]
		for i := colors; i < len(row); i++ {
			row[i] += row[i-colors]
		}
	}
	return out, nil
}

// applyPNGPredictor reverses the PNG sub-filter prefixing every row (RFC
// 2083), dispatching per-row on the tag byte each row itself carries.
func applyPNGPredictor(data []byte, rowSize, bytesPerPixel int) ([]byte, error) {
	if rowSize <= 0 {
		return nil, errors.New("pdfcore: filter: predictor: invalid row size")
	}
	fullRow := rowSize + 1
	var out bytes.Buffer
	prev := make([]byte, rowSize)

	for off := 0; off+fullRow <= len(data); off += fullRow {
		tag := data[off]
		cur := append([]byte(nil), data[off+1:off+fullRow]...)

		switch tag {
		case pngTagNone:
		case pngTagSub:
			for i := bytesPerPixel; i < len(cur); i++ {
				cur[i] += cur[i-bytesPerPixel]
			}
		case pngTagUp:
			for i := range cur {
				cur[i] += prev[i]
			}
		case pngTagAverage:
			for i := range cur {
				var left byte
				if i >= bytesPerPixel {
					left = cur[i-bytesPerPixel]
				}
				cur[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case pngTagPaeth:
			for i := range cur {
				var left, upperLeft byte
				if i >= bytesPerPixel {
					left = cur[i-bytesPerPixel]
					upperLeft = prev[i-bytesPerPixel]
				}
				cur[i] += paethPredictor(left, prev[i], upperLeft)
			}
		default:
			return nil, errors.Errorf("pdfcore: filter: predictor: unknown PNG row filter tag %#x", tag)
		}

		out.Write(cur)
		prev = cur
	}

	if rem := len(data) % fullRow; rem != 0 {
		return nil, errors.Errorf("pdfcore: filter: predictor: trailing %d bytes do not form a full row", rem)
	}

	return out.Bytes(), nil
}

func paethPredictor(a, b, c byte) byte {
	pa := absInt(int(b) - int(c))
	pb := absInt(int(a) - int(c))
	pc := absInt(int(a) + int(b) - 2*int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func absInt(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// encodePredictor is the write-side counterpart: Predictor 2 applies TIFF
// horizontal differencing, and every PNG predictor value is encoded with
// the PNG-Up row filter on each row, matching the common real-world encoder
// choice (any row filter is valid to decode; the writer need not match the
// encoder that produced the original data).
func (b baseFilter) encodePredictor(raw []byte) ([]byte, error) {
	predictor, colors, bpc, columns := b.predictorParams()
	if predictor <= PredictorNone {
		return raw, nil
	}

	bytesPerPixel := (bpc*colors + 7) / 8
	if bytesPerPixel < 1 {
		bytesPerPixel = 1
	}
	rowSize := (bpc*colors*columns + 7) / 8
	if rowSize == 0 {
		return raw, nil
	}

	if predictor == PredictorTIFF {
		out := append([]byte(nil), raw...)
		for off := len(out) - rowSize; off >= 0; off -= rowSize {
			row := out[off : off+rowSize]
			for i := len(row) - 1; i >= colors; i-- {
				row[i] -= row[i-colors]
			}
		}
		return out, nil
	}

	var out bytes.Buffer
	prev := make([]byte, rowSize)
	for off := 0; off+rowSize <= len(raw); off += rowSize {
		row := raw[off : off+rowSize]
		out.WriteByte(pngTagUp)
		for i, v := range row {
			out.WriteByte(v - prev[i])
		}
		prev = row
	}
	return out.Bytes(), nil
}

func readAllBytes(r io.Reader) ([]byte, error) {
	var b bytes.Buffer
	if _, err := io.Copy(&b, r); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
