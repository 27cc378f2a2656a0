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

// Package pdfcore is a PDF processing core supporting encryption, written
// in Go. It handles tokenizing, parsing, cross-reference resolution
// (classical tables, xref streams, object streams), the standard filter
// pipeline, the standard security handler (RC4 and AES), and both full and
// incremental document writing.
//
// Package pdfcore does not render pages, lay out text, perform OCR, or sign
// documents; it is the structural core other tools build on.
package pdfcore
