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

import (
	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/parse"
	"github.com/feliwir/pdfcore/types"
)

// parseTrailerDict parses the dictionary that follows a classical xref
// section's "trailer" keyword. Trailer values are never encrypted (spec
// §4.E), so no string decryptor is installed.
func parseTrailerDict(buf []byte) (types.Dict, error) {
	p := parse.New(iostreamsByteReader(buf), 150)
	obj, err := p.ParseObject()
	if err != nil {
		return nil, errors.Wrap(err, "xref: parsing trailer dictionary")
	}
	d, ok := obj.(types.Dict)
	if !ok {
		return nil, errors.Wrapf(errs.ErrCorruptXref, "xref: trailer is not a dictionary, got %T", obj)
	}
	return d, nil
}
