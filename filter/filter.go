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

// Package filter implements the invertible byte transforms a stream's
// /Filter entry names (spec §4.D): FlateDecode (with TIFF/PNG predictor
// post-processing), ASCII85Decode, ASCIIHexDecode, LZWDecode, RunLengthDecode
// and a DCTDecode passthrough. CCITTFaxDecode and JBIG2Decode are recognised
// but report ErrUnsupportedFilter.
package filter

import (
	"bytes"
	"io"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/internal/diag"
)

// Filter names, as they appear in a stream dictionary's /Filter entry.
const (
	Flate     = "FlateDecode"
	ASCII85   = "ASCII85Decode"
	ASCIIHex  = "ASCIIHexDecode"
	LZW       = "LZWDecode"
	RunLength = "RunLengthDecode"
	DCT       = "DCTDecode"
	CCITTFax  = "CCITTFaxDecode"
	JBIG2     = "JBIG2Decode"
	Crypt     = "Crypt"
)

// Filter is an invertible byte transform. Decode must be able to consume
// exactly what the corresponding Encode produced.
type Filter interface {
	Encode(r io.Reader) (*bytes.Buffer, error)
	Decode(r io.Reader) (*bytes.Buffer, error)
}

// Parms carries the subset of a /DecodeParms dictionary relevant to a
// filter's behaviour, normalised to Go ints (the caller resolves indirect
// references and Name/Boolean entries before building this).
type Parms map[string]int

// New returns the Filter for name, configured with parms. CCITTFaxDecode and
// JBIG2Decode are recognised names that return ErrUnsupportedFilter: the
// caller surfaces this to the stream reader rather than silently dropping
// image data.
func New(name string, parms Parms, sink diag.Sink) (Filter, error) {
	base := baseFilter{parms: parms, sink: sink}
	switch name {
	case Flate:
		return flateFilter{base}, nil
	case ASCII85:
		return ascii85Filter{base}, nil
	case ASCIIHex:
		return asciiHexFilter{base}, nil
	case LZW:
		return lzwFilter{base}, nil
	case RunLength:
		return runLengthFilter{base}, nil
	case DCT:
		return passthroughFilter{base}, nil
	case CCITTFax, JBIG2:
		if sink != nil {
			sink.Warnf("filter: %s is recognised but not decoded", name)
		}
		return nil, errs.ErrUnsupportedFilter
	default:
		if sink != nil {
			sink.Warnf("filter: unknown filter %q", name)
		}
		return nil, errs.ErrUnsupportedFilter
	}
}

// List returns the names of every filter New can construct a working
// decoder for (excludes the image-only/unsupported names).
func List() []string {
	return []string{Flate, ASCII85, ASCIIHex, LZW, RunLength, DCT}
}

type baseFilter struct {
	parms Parms
	sink  diag.Sink
}

func (b baseFilter) intParm(key string, def int) int {
	if v, ok := b.parms[key]; ok {
		return v
	}
	return def
}

// Chain composes an ordered sequence of filters into one Filter: Decode
// applies them in declared order (the order /Filter lists them, outermost
// encoding first); Encode applies them in reverse, so the last-listed
// filter encodes first.
type Chain []Filter

// NewChain constructs filters for each (name, parms) pair in order and
// returns their composition.
func NewChain(names []string, parmsList []Parms, sink diag.Sink) (Chain, error) {
	c := make(Chain, 0, len(names))
	for i, n := range names {
		var p Parms
		if i < len(parmsList) {
			p = parmsList[i]
		}
		f, err := New(n, p, sink)
		if err != nil {
			return nil, err
		}
		c = append(c, f)
	}
	return c, nil
}

// Decode runs r through every filter in the chain in order.
func (c Chain) Decode(r io.Reader) (*bytes.Buffer, error) {
	var cur io.Reader = r
	var out *bytes.Buffer
	for _, f := range c {
		b, err := f.Decode(cur)
		if err != nil {
			return nil, err
		}
		out = b
		cur = b
	}
	if out == nil {
		return passThru(r)
	}
	return out, nil
}

// Encode runs r through the chain in reverse order, matching how the
// corresponding Decode call would unwind it.
func (c Chain) Encode(r io.Reader) (*bytes.Buffer, error) {
	var cur io.Reader = r
	var out *bytes.Buffer
	for i := len(c) - 1; i >= 0; i-- {
		b, err := c[i].Encode(cur)
		if err != nil {
			return nil, err
		}
		out = b
		cur = b
	}
	if out == nil {
		return passThru(r)
	}
	return out, nil
}

func passThru(r io.Reader) (*bytes.Buffer, error) {
	var b bytes.Buffer
	if _, err := io.Copy(&b, r); err != nil {
		return nil, err
	}
	return &b, nil
}

type passthroughFilter struct{ baseFilter }

func (f passthroughFilter) Encode(r io.Reader) (*bytes.Buffer, error) { return passThru(r) }
func (f passthroughFilter) Decode(r io.Reader) (*bytes.Buffer, error) { return passThru(r) }
