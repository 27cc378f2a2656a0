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

// Package parse assembles typed objects (types.Object) from the token
// stream lex.Tokenizer produces (spec §4.C).
package parse

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/internal/iostreams"
	"github.com/feliwir/pdfcore/lex"
	"github.com/feliwir/pdfcore/types"
)

// Parser assembles objects from a Tokenizer. It does not itself know about
// the xref engine: an "N G obj" header is recognised and returned to the
// caller (the xref engine) as two Integers followed by a Symbol("obj"),
// never consumed silently.
type Parser struct {
	tok      *lex.Tokenizer
	maxDepth int

	// queue holds tokens read for look-ahead (e.g. while disambiguating
	// "N" from "N G R") that have not yet been handed to the caller. It is
	// consumed in order before the tokenizer is asked for more input.
	queue []lex.Token

	decryptLit func([]byte) ([]byte, error)
	decryptHex func([]byte) ([]byte, error)
}

// New returns a Parser reading from r. maxDepth bounds array/dictionary
// nesting (spec: LimitExceeded); 0 selects a sane default.
func New(r iostreams.PositionedReader, maxDepth int) *Parser {
	if maxDepth <= 0 {
		maxDepth = 150
	}
	return &Parser{tok: lex.New(r), maxDepth: maxDepth}
}

// SetStringDecryptors installs per-object-key decryption hooks: every
// LiteralString and HexString encountered is run through the matching hook
// immediately after lexing (spec §4.E). Either hook may be nil to disable
// decryption for that string kind (e.g. while parsing the encryption
// dictionary itself, which is never encrypted).
func (p *Parser) SetStringDecryptors(lit, hex func([]byte) ([]byte, error)) {
	p.decryptLit = lit
	p.decryptHex = hex
}

// ClearStringDecryptors disables decryption, e.g. when parsing the /Encrypt
// dictionary or the document /ID array.
func (p *Parser) ClearStringDecryptors() {
	p.decryptLit, p.decryptHex = nil, nil
}

// Position returns the underlying reader's position.
func (p *Parser) Position() int64 {
	return p.tok.Position()
}

func (p *Parser) nextToken() (lex.Token, error) {
	if len(p.queue) > 0 {
		tok := p.queue[0]
		p.queue = p.queue[1:]
		return tok, nil
	}
	return p.tok.Next()
}

// pushFront re-queues a token so the next nextToken call returns it first;
// tokens are pushed in reverse read order so popping restores original order.
func (p *Parser) pushFront(tok lex.Token) {
	p.queue = append([]lex.Token{tok}, p.queue...)
}

// StreamHeader is returned by ParseStreamHeader when a dictionary is
// immediately followed by the "stream" keyword: the parser records the
// payload start offset and does not consume the payload itself (spec §4.C).
type StreamHeader struct {
	Dict         types.Dict
	PayloadStart int64
	LoneCRSeen   bool
}

// ParseObject parses one object at the current position. Use
// ParseObjectOrStreamHeader when a dictionary may be followed by "stream".
func (p *Parser) ParseObject() (types.Object, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	return p.parseFromToken(tok, 0)
}

// ParseObjectOrStreamHeader parses one object, returning a *StreamHeader
// instead of a types.Dict when the dictionary is immediately followed by
// "stream" and a line terminator (spec §4.C).
func (p *Parser) ParseObjectOrStreamHeader() (interface{}, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if tok.Kind != lex.KindDictOpen {
		return p.parseFromToken(tok, 0)
	}
	d, err := p.parseDict(0)
	if err != nil {
		return nil, err
	}

	next, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if next.Kind != lex.KindKeyword || string(next.Bytes) != "stream" {
		p.pushFront(next)
		return d, nil
	}

	loneCR, err := p.tok.ConsumeEOLAfterKeyword()
	if err != nil {
		return nil, err
	}
	return &StreamHeader{Dict: d, PayloadStart: p.tok.Position(), LoneCRSeen: loneCR}, nil
}

func (p *Parser) parseFromToken(tok lex.Token, depth int) (types.Object, error) {
	if depth > p.maxDepth {
		return nil, errors.Wrapf(errs.ErrLimitExceeded, "parse: nesting depth exceeds %d", p.maxDepth)
	}

	switch tok.Kind {
	case lex.KindEOF:
		return nil, errors.Wrap(errs.ErrTruncatedInput, "parse: unexpected end of input")

	case lex.KindInteger:
		return p.parseIntegerOrReference(tok)

	case lex.KindReal:
		return parseReal(tok.Bytes)

	case lex.KindName:
		return types.Name(tok.Bytes), nil

	case lex.KindLiteralString:
		b := tok.Bytes
		if p.decryptLit != nil {
			var err error
			b, err = p.decryptLit(b)
			if err != nil {
				return nil, err
			}
		}
		return types.LiteralString(b), nil

	case lex.KindHexString:
		b := tok.Bytes
		if p.decryptHex != nil {
			var err error
			b, err = p.decryptHex(b)
			if err != nil {
				return nil, err
			}
		}
		return types.HexString(b), nil

	case lex.KindArrayOpen:
		return p.parseArray(depth)

	case lex.KindDictOpen:
		return p.parseDict(depth)

	case lex.KindKeyword:
		return parseKeyword(tok.Bytes)

	default:
		return nil, errors.Errorf("pdfcore: parse: unexpected token %v", tok.Kind)
	}
}

func (p *Parser) parseArray(depth int) (types.Object, error) {
	arr := types.Array{}
	for {
		tok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		if tok.Kind == lex.KindArrayClose {
			return arr, nil
		}
		if tok.Kind == lex.KindEOF {
			return nil, errors.Wrap(errs.ErrTruncatedInput, "parse: unterminated array")
		}
		obj, err := p.parseFromToken(tok, depth+1)
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseDict(depth int) (types.Dict, error) {
	d := types.NewDict()
	for {
		tok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		if tok.Kind == lex.KindDictClose {
			return d, nil
		}
		if tok.Kind == lex.KindEOF {
			return nil, errors.Wrap(errs.ErrTruncatedInput, "parse: unterminated dictionary")
		}
		if tok.Kind != lex.KindName {
			return nil, errors.Errorf("pdfcore: parse: dictionary key must be a name, got %v", tok.Kind)
		}
		key := string(tok.Bytes)

		valTok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		val, err := p.parseFromToken(valTok, depth+1)
		if err != nil {
			return nil, err
		}
		// First occurrence wins on a duplicate key (spec §3 invariant).
		d.Insert(key, val)
	}
}

func parseKeyword(b []byte) (types.Object, error) {
	switch string(b) {
	case "true":
		return types.Boolean(true), nil
	case "false":
		return types.Boolean(false), nil
	case "null":
		return types.NullObject, nil
	default:
		// Bare keywords (obj, endobj, R, stream, endstream, xref,
		// trailer, startxref, ...) are handed back as Symbols; the xref
		// engine consumes these directly rather than the object parser.
		return types.Symbol(b), nil
	}
}

func parseReal(b []byte) (types.Object, error) {
	f, err := parseFloatLenient(b)
	if err != nil {
		return nil, errors.Wrapf(err, "pdfcore: parse: invalid real %q", b)
	}
	return types.Real(f), nil
}

// parseFloatLenient accepts the malformed-but-common real forms PDF writers
// in the wild emit: a lone ".", a trailing ".", multiple leading signs.
func parseFloatLenient(b []byte) (float64, error) {
	s := string(b)
	s = strings.Replace(s, "--", "-", -1)
	if s == "" || s == "." || s == "-" || s == "+" || s == "-." || s == "+." {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Trailing/duplicated dots ("1.2.3", "1.") fall back to the
		// leading well-formed prefix rather than failing outright.
		if trimmed := trimToValidFloatPrefix(s); trimmed != s && trimmed != "" {
			return strconv.ParseFloat(trimmed, 64)
		}
		return 0, err
	}
	return f, nil
}

func trimToValidFloatPrefix(s string) string {
	dot := false
	for i, c := range s {
		switch {
		case c == '-' || c == '+':
			if i != 0 {
				return s[:i]
			}
		case c == '.':
			if dot {
				return s[:i]
			}
			dot = true
		case c >= '0' && c <= '9':
		default:
			return s[:i]
		}
	}
	return s
}

// parseIntegerOrReference distinguishes a plain Integer from the start of an
// "id gen R" indirect-reference sequence by looking ahead up to two more
// tokens, re-queuing them if the pattern does not match.
func (p *Parser) parseIntegerOrReference(first lex.Token) (types.Object, error) {
	i1, err := strconv.ParseInt(string(first.Bytes), 10, 64)
	if err != nil {
		return types.Integer(0), nil
	}

	tok2, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if tok2.Kind != lex.KindInteger {
		p.pushFront(tok2)
		return types.Integer(i1), nil
	}

	i2, err := strconv.ParseInt(string(tok2.Bytes), 10, 64)
	if err != nil {
		p.pushFront(tok2)
		return types.Integer(i1), nil
	}

	tok3, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if tok3.Kind == lex.KindKeyword && string(tok3.Bytes) == "R" {
		return types.NewIndirectRef(int(i1), int(i2)), nil
	}

	p.pushFront(tok3)
	p.pushFront(tok2)
	return types.Integer(i1), nil
}
