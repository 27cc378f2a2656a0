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

// Package diag provides the per-document diagnostic sink.
//
// Unlike a global logger singleton, a Sink is a capability: it is created
// once and passed into model.NewContext (or pdfcore.Open/NewDocument) by the
// caller. The core never reaches for a package-level logger.
package diag

import (
	"go.uber.org/zap"
)

// Sink receives human-readable diagnostic lines. The core never depends on
// sink output for correctness; a failing or nil sink must never change
// control flow.
type Sink interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Repaired records a recovered-from-corruption event, e.g. the xref
	// engine falling back to a linear scan (spec: XrefRepaired).
	Repaired(reason string)
}

// Nop discards every message. It is the zero-value Sink and is what Open and
// NewDocument use when the caller passes nil.
type Nop struct{}

func (Nop) Debugf(string, ...interface{}) {}
func (Nop) Infof(string, ...interface{})  {}
func (Nop) Warnf(string, ...interface{})  {}
func (Nop) Errorf(string, ...interface{}) {}
func (Nop) Repaired(string)               {}

// ZapSink is the production Sink, backed by a zap.SugaredLogger.
type ZapSink struct {
	l *zap.SugaredLogger
}

// NewZapSink wraps an existing zap logger. A nil logger yields a sink that
// behaves like Nop.
func NewZapSink(l *zap.Logger) *ZapSink {
	if l == nil {
		return &ZapSink{}
	}
	return &ZapSink{l: l.Sugar()}
}

// NewDevelopmentSink builds a ZapSink with zap's development configuration
// (human-readable, colorized console output) for use by callers that have
// not wired up their own logger.
func NewDevelopmentSink() (*ZapSink, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return NewZapSink(l), nil
}

func (s *ZapSink) Debugf(format string, args ...interface{}) {
	if s == nil || s.l == nil {
		return
	}
	s.l.Debugf(format, args...)
}

func (s *ZapSink) Infof(format string, args ...interface{}) {
	if s == nil || s.l == nil {
		return
	}
	s.l.Infof(format, args...)
}

func (s *ZapSink) Warnf(format string, args ...interface{}) {
	if s == nil || s.l == nil {
		return
	}
	s.l.Warnf(format, args...)
}

func (s *ZapSink) Errorf(format string, args ...interface{}) {
	if s == nil || s.l == nil {
		return
	}
	s.l.Errorf(format, args...)
}

func (s *ZapSink) Repaired(reason string) {
	if s == nil || s.l == nil {
		return
	}
	s.l.Infow("xref repaired", "reason", reason)
}
