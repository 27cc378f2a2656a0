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

// Package config carries the engine-wide tunables: buffer sizes, end-of-line
// style, xref emission mode, nesting limits and default document security.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// XRefMode selects how the finalizer emits the cross-reference section.
type XRefMode int

const (
	// XRefModeAuto picks a classical table for PDF <= 1.4 and an xref
	// stream otherwise, per spec §4.I.
	XRefModeAuto XRefMode = iota
	XRefModeTable
	XRefModeStream
)

// Eol is the line terminator the writer emits between tokens and records.
type Eol string

const (
	EolLF   Eol = "\x0A"
	EolCR   Eol = "\x0D"
	EolCRLF Eol = "\x0D\x0A"
)

// Default tunables.
const (
	// DefaultBufferSize is the fixed internal buffer size for buffered
	// stream adapters (spec §4.A).
	DefaultBufferSize = 256 * 1024

	// DefaultMaxNestingDepth bounds recursive array/dictionary parsing
	// before the engine returns LimitExceeded.
	DefaultMaxNestingDepth = 150

	// DefaultMaxObjectNumber bounds the highest indirect object id the
	// engine will allocate or accept from a parsed xref table.
	DefaultMaxObjectNumber = 8388607 // 2^23-1, matches the PDF spec's id width.
)

// Configuration is the engine's tunable state. The zero value is not valid;
// use Default() or Load().
type Configuration struct {
	BufferSize      int      `yaml:"bufferSize"`
	Eol             Eol      `yaml:"eol"`
	XRefMode        XRefMode `yaml:"xrefMode"`
	ValidationRelax bool     `yaml:"validationRelaxed"`
	MaxNestingDepth int      `yaml:"maxNestingDepth"`
	MaxObjectNumber int      `yaml:"maxObjectNumber"`

	// Default passwords, loaded and saved with the rest of the
	// configuration. NewDocument does not read them and does not encrypt
	// the documents it builds.
	OwnerPassword string `yaml:"ownerPassword,omitempty"`
	UserPassword  string `yaml:"userPassword,omitempty"`
}

// Default returns the engine's default configuration.
func Default() *Configuration {
	return &Configuration{
		BufferSize:      DefaultBufferSize,
		Eol:             EolLF,
		XRefMode:        XRefModeAuto,
		MaxNestingDepth: DefaultMaxNestingDepth,
		MaxObjectNumber: DefaultMaxObjectNumber,
	}
}

// Load reads a YAML configuration file, defaulting any field the file
// leaves zero.
func Load(path string) (*Configuration, error) {
	bb, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "pdfcore: config: reading %s", path)
	}

	c := Default()
	if err := yaml.Unmarshal(bb, c); err != nil {
		return nil, errors.Wrapf(err, "pdfcore: config: parsing %s", path)
	}

	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxNestingDepth <= 0 {
		c.MaxNestingDepth = DefaultMaxNestingDepth
	}
	if c.MaxObjectNumber <= 0 {
		c.MaxObjectNumber = DefaultMaxObjectNumber
	}

	return c, nil
}

// Save writes c to path as YAML.
func Save(c *Configuration, path string) error {
	bb, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "pdfcore: config: marshaling")
	}
	if err := os.WriteFile(path, bb, 0o644); err != nil {
		return errors.Wrapf(err, "pdfcore: config: writing %s", path)
	}
	return nil
}
