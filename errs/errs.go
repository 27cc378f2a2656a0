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

// Package errs defines the sentinel error kinds shared across the engine
// (spec §7). Call sites wrap one of these with github.com/pkg/errors so a
// caller can still recover the kind via errors.Is while seeing a stack trace
// at the origin.
package errs

import "github.com/pkg/errors"

var (
	// ErrTruncatedInput signals end-of-stream hit mid-token, or a region
	// declared with a fixed length that delivered fewer bytes.
	ErrTruncatedInput = errors.New("pdfcore: truncated input")

	// ErrCorruptXref signals an xref header mismatch, an invalid entry, or
	// a /Prev cycle.
	ErrCorruptXref = errors.New("pdfcore: corrupt xref")

	// ErrCorruptStream signals a stream payload shorter than /Length or a
	// filter decode error.
	ErrCorruptStream = errors.New("pdfcore: corrupt stream")

	// ErrUnsupportedFilter signals a filter name with no implementation.
	ErrUnsupportedFilter = errors.New("pdfcore: unsupported filter")

	// ErrUnsupportedEncryption signals /V or /R outside the supported
	// range, or an unknown cipher.
	ErrUnsupportedEncryption = errors.New("pdfcore: unsupported encryption")

	// ErrAuthenticationFailed signals a password that does not match /U
	// (or /O for the owner).
	ErrAuthenticationFailed = errors.New("pdfcore: authentication failed")

	// ErrTypeMismatch signals an expected dictionary (or other type) that
	// turned out to be something else during xref or page-tree traversal.
	ErrTypeMismatch = errors.New("pdfcore: type mismatch")

	// ErrLimitExceeded signals pathological nesting depth or an object id
	// beyond the configured maximum.
	ErrLimitExceeded = errors.New("pdfcore: limit exceeded")

	// ErrWriterState signals API misuse of the object-context writer, e.g.
	// ending a dictionary while inside an array. This is a programmer
	// error, not a data condition, and always surfaces.
	ErrWriterState = errors.New("pdfcore: writer state error")

	// ErrAlreadyFailed is returned by every call on a document/parser
	// instance that has already failed once.
	ErrAlreadyFailed = errors.New("pdfcore: instance already failed")
)
