package lex

import (
	"strings"
	"testing"

	"github.com/feliwir/pdfcore/internal/iostreams"
)

func tokenize(t *testing.T, s string) []Token {
	t.Helper()
	r := iostreams.NewBuffered(strings.NewReader(s), 64)
	tk := New(r)
	var toks []Token
	for {
		tok, err := tk.Next()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind == KindEOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks
}

func TestTokenizerIntegerAndReal(t *testing.T) {
	toks := tokenize(t, "123 -45 3.14 -0.5 .5")
	want := []Kind{KindInteger, KindInteger, KindReal, KindReal, KindReal}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d kind = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestTokenizerName(t *testing.T) {
	toks := tokenize(t, "/Type /Pa#67e")
	if len(toks) != 2 {
		t.Fatalf("got %d tokens", len(toks))
	}
	if string(toks[0].Bytes) != "Type" {
		t.Errorf("first name = %q", toks[0].Bytes)
	}
	if string(toks[1].Bytes) != "Page" {
		t.Errorf("escaped name = %q, want %q", toks[1].Bytes, "Page")
	}
}

func TestTokenizerBalancedLiteralString(t *testing.T) {
	toks := tokenize(t, `(a (nested) b)`)
	if len(toks) != 1 || toks[0].Kind != KindLiteralString {
		t.Fatalf("got %+v", toks)
	}
	if string(toks[0].Bytes) != "a (nested) b" {
		t.Errorf("literal = %q", toks[0].Bytes)
	}
}

func TestTokenizerLiteralStringEscapes(t *testing.T) {
	toks := tokenize(t, `(a\(b\)c\\d\ne\101)`)
	if len(toks) != 1 {
		t.Fatalf("got %+v", toks)
	}
	want := "a(b)c\\d\neA"
	if string(toks[0].Bytes) != want {
		t.Errorf("literal = %q, want %q", toks[0].Bytes, want)
	}
}

func TestTokenizerLiteralStringLineContinuation(t *testing.T) {
	toks := tokenize(t, "(a\\\nb)")
	if len(toks) != 1 {
		t.Fatalf("got %+v", toks)
	}
	if string(toks[0].Bytes) != "ab" {
		t.Errorf("literal = %q, want %q", toks[0].Bytes, "ab")
	}
}

func TestTokenizerHexStringIgnoresWhitespace(t *testing.T) {
	a := tokenize(t, "<DE AD BE EF>")
	b := tokenize(t, "<DEADBEEF>")
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("got %+v / %+v", a, b)
	}
	if string(a[0].Bytes) != string(b[0].Bytes) {
		t.Errorf("whitespace-padded hex %q != compact hex %q", a[0].Bytes, b[0].Bytes)
	}
}

func TestTokenizerHexStringOddNibblePadsZero(t *testing.T) {
	toks := tokenize(t, "<ABC>")
	if len(toks) != 1 {
		t.Fatalf("got %+v", toks)
	}
	if len(toks[0].Bytes) != 2 || toks[0].Bytes[1] != 0xC0 {
		t.Errorf("odd-nibble hex = %x, want last byte 0xC0", toks[0].Bytes)
	}
}

func TestTokenizerDictAndArrayDelimiters(t *testing.T) {
	toks := tokenize(t, "<< /K [1 2] >>")
	want := []Kind{KindDictOpen, KindName, KindArrayOpen, KindInteger, KindInteger, KindArrayClose, KindDictClose}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d kind = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestTokenizerComment(t *testing.T) {
	toks := tokenize(t, "1 % a comment\n2")
	if len(toks) != 2 || toks[0].Kind != KindInteger || toks[1].Kind != KindInteger {
		t.Fatalf("got %+v", toks)
	}
}

func TestTokenizerKeyword(t *testing.T) {
	toks := tokenize(t, "true false null obj endobj stream")
	if len(toks) != 6 {
		t.Fatalf("got %+v", toks)
	}
	for _, tok := range toks {
		if tok.Kind != KindKeyword {
			t.Errorf("token %+v not a keyword", tok)
		}
	}
}

func TestTokenizerPushBack(t *testing.T) {
	r := iostreams.NewBuffered(strings.NewReader("1 2"), 64)
	tk := New(r)
	tok1, _ := tk.Next()
	tk.PushBack(tok1)
	tok1Again, _ := tk.Next()
	if string(tok1Again.Bytes) != string(tok1.Bytes) {
		t.Errorf("push-back returned %q, want %q", tok1Again.Bytes, tok1.Bytes)
	}
	tok2, _ := tk.Next()
	if string(tok2.Bytes) != "2" {
		t.Errorf("next token after push-back = %q, want %q", tok2.Bytes, "2")
	}
}
