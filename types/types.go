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

// Package types is the typed object universe of PDF: nulls, booleans,
// numbers, names, strings, arrays, dictionaries, indirect references and
// streams, plus the parser-internal Symbol kind.
package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FreeHeadGeneration is the generation number of the head of the free list,
// object 0.
const FreeHeadGeneration = 65535

// Object is the sum type every PDF value satisfies.
type Object interface {
	fmt.Stringer

	// Clone returns a deep copy safe to mutate independently of the
	// receiver.
	Clone() Object

	// PDFString returns the exact bytes this object would be serialised
	// as in canonical PDF syntax (modulo the caller's separator policy
	// between tokens, which PDFString does not apply).
	PDFString() string
}

///////////////////////////////////////////////////////////////////////////
// Null

// Null represents the PDF null object. It is a singleton; NullObject is the
// only value of this type a caller should use.
type Null struct{}

// NullObject is the canonical Null instance.
var NullObject = Null{}

func (Null) Clone() Object      { return NullObject }
func (Null) String() string     { return "null" }
func (Null) PDFString() string  { return "null" }

///////////////////////////////////////////////////////////////////////////
// Boolean

// Boolean represents a PDF boolean object.
type Boolean bool

func (b Boolean) Clone() Object     { return b }
func (b Boolean) String() string    { return strconv.FormatBool(bool(b)) }
func (b Boolean) PDFString() string { return b.String() }
func (b Boolean) Value() bool       { return bool(b) }

///////////////////////////////////////////////////////////////////////////
// Integer

// Integer represents a PDF integer object, signed 64-bit.
type Integer int64

func (i Integer) Clone() Object     { return i }
func (i Integer) String() string    { return strconv.FormatInt(int64(i), 10) }
func (i Integer) PDFString() string { return i.String() }
func (i Integer) Value() int64      { return int64(i) }

///////////////////////////////////////////////////////////////////////////
// Real

// Real represents a PDF real (floating-point) object.
type Real float64

func (f Real) Clone() Object  { return f }
func (f Real) String() string { return fmt.Sprintf("%g", float64(f)) }

// PDFString formats f with a fixed-point representation and trims trailing
// zeroes (and a trailing decimal point), per spec §4.B.
func (f Real) PDFString() string {
	s := strconv.FormatFloat(float64(f), 'f', 6, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" || s == "-0" {
		s = "0"
	}
	return s
}

func (f Real) Value() float64 { return float64(f) }

///////////////////////////////////////////////////////////////////////////
// Name

// delimiter bytes and whitespace, per spec §4.C.
const delimiterAndWhitespace = "\x00\t\n\f\r ()<>[]{}/%"

// Name represents a PDF name object, compared by byte value. The #XX
// escaping of spec §4.B is purely syntactic; the in-memory value never
// carries it.
type Name string

func (n Name) Clone() Object  { return n }
func (n Name) String() string { return string(n) }

// PDFString escapes bytes outside '!'-'~' and any delimiter/whitespace byte
// as #XX, per spec §4.B.
func (n Name) PDFString() string {
	var sb strings.Builder
	sb.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < '!' || c > '~' || strings.IndexByte(delimiterAndWhitespace, c) >= 0 || c == '#' {
			fmt.Fprintf(&sb, "#%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func (n Name) Value() string { return string(n) }

///////////////////////////////////////////////////////////////////////////
// LiteralString / HexString

// LiteralString is a PDF string written with the "(...)" syntax. The
// in-memory value is the raw decoded byte sequence; escaping is purely a
// serialization concern.
type LiteralString string

func (s LiteralString) Clone() Object  { return s }
func (s LiteralString) String() string { return string(s) }

// PDFString escapes '(', ')', '\\' and the control bytes spec §4.B names.
func (s LiteralString) PDFString() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '(':
			sb.WriteString(`\(`)
		case ')':
			sb.WriteString(`\)`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

func (s LiteralString) Value() string { return string(s) }
func (s LiteralString) Bytes() []byte { return []byte(s) }

// HexString is a PDF string written with the "<...>" syntax. The in-memory
// value is the raw decoded byte sequence.
type HexString string

func (s HexString) Clone() Object  { return s }
func (s HexString) String() string { return string(s) }

const hexDigits = "0123456789ABCDEF"

// PDFString renders s as uppercase hex between angle brackets.
func (s HexString) PDFString() string {
	var sb strings.Builder
	sb.WriteByte('<')
	for i := 0; i < len(s); i++ {
		c := s[i]
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	sb.WriteByte('>')
	return sb.String()
}

func (s HexString) Value() string { return string(s) }
func (s HexString) Bytes() []byte { return []byte(s) }

///////////////////////////////////////////////////////////////////////////
// Symbol (parser-internal keyword, never appears in a finished object tree)

// Symbol represents a bare PDF keyword as produced by the tokenizer
// (true, false, null, obj, endobj, stream, endstream, R, xref, trailer,
// startxref, ...). The object parser consumes and resolves these; a Symbol
// never survives into a caller-visible object tree.
type Symbol string

func (s Symbol) Clone() Object     { return s }
func (s Symbol) String() string    { return string(s) }
func (s Symbol) PDFString() string { return string(s) }

///////////////////////////////////////////////////////////////////////////
// IndirectRef

// IndirectRef is an opaque (objectId, generation) handle, resolved lazily
// through the xref engine — never through an in-memory back-pointer.
type IndirectRef struct {
	ObjectNumber     int
	GenerationNumber int
}

// NewIndirectRef returns a new IndirectRef for the given id and generation.
func NewIndirectRef(id, gen int) IndirectRef {
	return IndirectRef{ObjectNumber: id, GenerationNumber: gen}
}

func (ir IndirectRef) Clone() Object  { return ir }
func (ir IndirectRef) String() string { return ir.PDFString() }

// PDFString renders "id gen R".
func (ir IndirectRef) PDFString() string {
	return fmt.Sprintf("%d %d R", ir.ObjectNumber, ir.GenerationNumber)
}

///////////////////////////////////////////////////////////////////////////
// Array

// Array is an ordered, mixed-type sequence of objects.
type Array []Object

func (a Array) Clone() Object {
	a2 := make(Array, len(a))
	for i, o := range a {
		if o == nil {
			continue
		}
		a2[i] = o.Clone()
	}
	return a2
}

func (a Array) String() string { return a.PDFString() }

// PDFString renders "[ o1 o2 ... ]" with single-space separators.
func (a Array) PDFString() string {
	parts := make([]string, len(a))
	for i, o := range a {
		if o == nil {
			parts[i] = "null"
			continue
		}
		parts[i] = o.PDFString()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// NewNumberArray wraps a list of float64s as a Real Array.
func NewNumberArray(ff ...float64) Array {
	a := make(Array, len(ff))
	for i, f := range ff {
		a[i] = Real(f)
	}
	return a
}

// NewIntegerArray wraps a list of ints as an Integer Array.
func NewIntegerArray(ii ...int) Array {
	a := make(Array, len(ii))
	for i, v := range ii {
		a[i] = Integer(v)
	}
	return a
}

///////////////////////////////////////////////////////////////////////////
// Dict

// Dict maps Name keys (compared by byte value) to objects. Insertion order
// is irrelevant per spec invariant; any mapping with byte-value key
// comparison is conformant, so this is a plain Go map.
type Dict map[string]Object

// NewDict returns an empty Dict.
func NewDict() Dict {
	return Dict{}
}

// Insert adds key/value if key is not already present, returning whether it
// inserted (a duplicate key keeps the first occurrence, per spec §4.C).
func (d Dict) Insert(key string, value Object) bool {
	if _, found := d[key]; found {
		return false
	}
	d[key] = value
	return true
}

// Update sets key/value unconditionally.
func (d Dict) Update(key string, value Object) {
	d[key] = value
}

// Delete removes key.
func (d Dict) Delete(key string) {
	delete(d, key)
}

func (d Dict) Clone() Object {
	d2 := make(Dict, len(d))
	for k, v := range d {
		if v == nil {
			d2[k] = nil
			continue
		}
		d2[k] = v.Clone()
	}
	return d2
}

func (d Dict) String() string { return d.PDFString() }

// PDFString renders "<< /K1 v1 /K2 v2 ... >>". Keys are sorted for
// deterministic output; PDF does not require any particular order.
func (d Dict) PDFString() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("<<")
	for _, k := range keys {
		sb.WriteByte(' ')
		sb.WriteString(Name(k).PDFString())
		sb.WriteByte(' ')
		v := d[k]
		if v == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(v.PDFString())
		}
	}
	sb.WriteString(" >>")
	return sb.String()
}

// NameEntry dereferences a Name-typed entry without consulting the xref
// engine (the caller resolves indirection first if needed).
func (d Dict) NameEntry(key string) (Name, bool) {
	o, ok := d[key]
	if !ok {
		return "", false
	}
	n, ok := o.(Name)
	return n, ok
}

///////////////////////////////////////////////////////////////////////////
// StreamDict

// StreamDict is a stream object: its dictionary plus the byte offset in the
// source stream where the payload begins. The payload is never held in
// memory on read unless the caller explicitly materialises it.
type StreamDict struct {
	Dict

	// StreamOffset is the absolute byte offset, in the source, of the
	// first payload byte (immediately after the "stream" keyword's line
	// terminator). Zero/unset for streams under construction on write.
	StreamOffset int64

	// StreamLength is the declared /Length, resolved to a concrete value
	// (an indirect /Length is dereferenced once up front by the xref
	// engine).
	StreamLength int64

	// Raw holds the encoded payload once the caller has pulled it into
	// memory (nil otherwise — the default is to stream on demand).
	Raw []byte

	// Content holds the decoded payload once decoded (nil otherwise).
	Content []byte
}

// NewStreamDict wraps d as a stream dictionary with the given raw payload.
func NewStreamDict(d Dict, raw []byte) StreamDict {
	return StreamDict{Dict: d, Raw: raw, StreamLength: int64(len(raw))}
}

func (sd StreamDict) Clone() Object {
	d2, _ := sd.Dict.Clone().(Dict)
	raw := append([]byte(nil), sd.Raw...)
	content := append([]byte(nil), sd.Content...)
	return StreamDict{Dict: d2, StreamOffset: sd.StreamOffset, StreamLength: sd.StreamLength, Raw: raw, Content: content}
}

func (sd StreamDict) String() string { return sd.PDFString() }

// PDFString renders only the dictionary; the payload is emitted separately
// by the object-context writer between "stream" and "endstream".
func (sd StreamDict) PDFString() string {
	return sd.Dict.PDFString()
}

// FilterNames returns the stream's /Filter entry normalised to a slice,
// whether the PDF author wrote a single Name or an Array of Names.
func (sd StreamDict) FilterNames() ([]string, error) {
	o, ok := sd.Dict["Filter"]
	if !ok || o == nil {
		return nil, nil
	}
	switch f := o.(type) {
	case Name:
		return []string{string(f)}, nil
	case Array:
		names := make([]string, 0, len(f))
		for _, e := range f {
			n, ok := e.(Name)
			if !ok {
				return nil, errors.Errorf("pdfcore: types: StreamDict: non-name entry in /Filter array")
			}
			names = append(names, string(n))
		}
		return names, nil
	default:
		return nil, errors.Errorf("pdfcore: types: StreamDict: /Filter has unexpected type %T", o)
	}
}

// DecodeParmsFor returns the /DecodeParms dictionary, if any, aligned to
// filter index i of a multi-filter pipeline.
func (sd StreamDict) DecodeParmsFor(i int) Dict {
	o, ok := sd.Dict["DecodeParms"]
	if !ok || o == nil {
		return nil
	}
	switch p := o.(type) {
	case Dict:
		if i == 0 {
			return p
		}
		return nil
	case Array:
		if i < len(p) {
			if d, ok := p[i].(Dict); ok {
				return d
			}
		}
		return nil
	default:
		return nil
	}
}
