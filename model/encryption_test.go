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

package model

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/config"
	"github.com/feliwir/pdfcore/crypto"
	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/internal/diag"
	"github.com/feliwir/pdfcore/types"
)

// buildEncryptedDoc assembles a minimal one-page document encrypted with
// the standard security handler at V=2, R=3, Length=128, user password
// "user", with a single literal string on the page carrying a known
// plaintext — spec scenario S3.
func buildEncryptedDoc(t *testing.T, userPassword, plaintext string) []byte {
	t.Helper()

	id := []byte("0123456789ABCDEF")

	p := crypto.Params{R: crypto.R3, V: 2, Length: 128, P: -4, ID: id}
	o, err := crypto.ComputeO("", userPassword, crypto.R3, 128)
	if err != nil {
		t.Fatalf("ComputeO: %v", err)
	}
	p.O = o

	u, fileKey, err := crypto.ComputeU(userPassword, p)
	if err != nil {
		t.Fatalf("ComputeU: %v", err)
	}
	p.U = u

	handler := crypto.NewHandler(fileKey, p.V, false)
	encryptedNote, err := handler.EncryptString([]byte(plaintext), 3, 0)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	var body bytes.Buffer
	body.WriteString("%PDF-1.4\n")

	offsets := make([]int, 5)
	offsets[1] = body.Len()
	body.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = body.Len()
	body.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = body.Len()
	fmt.Fprintf(&body, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Note %s >>\nendobj\n",
		types.LiteralString(encryptedNote).PDFString())

	encDict := types.Dict{
		"Filter": types.Name("Standard"),
		"V":      types.Integer(2),
		"R":      types.Integer(3),
		"Length": types.Integer(128),
		"O":      types.HexString(p.O),
		"U":      types.HexString(p.U),
		"P":      types.Integer(int64(p.P)),
	}
	offsets[4] = body.Len()
	fmt.Fprintf(&body, "4 0 obj\n%s\nendobj\n", encDict.PDFString())

	xrefOffset := body.Len()
	body.WriteString("xref\n0 5\n")
	body.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(&body, "%010d 00000 n \n", offsets[i])
	}
	idArr := types.Array{types.HexString(id), types.HexString(id)}
	fmt.Fprintf(&body, "trailer\n<< /Size 5 /Root 1 0 R /Encrypt 4 0 R /ID %s >>\n", idArr.PDFString())
	fmt.Fprintf(&body, "startxref\n%d\n%%%%EOF", xrefOffset)

	return body.Bytes()
}

func TestNewContextDecryptsWithUserPassword(t *testing.T) {
	const plaintext = "classified"
	raw := buildEncryptedDoc(t, "user", plaintext)

	ctx, err := NewContext(bytes.NewReader(raw), config.Default(), diag.Nop{}, "user")
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	page, _, err := ctx.Page(0)
	if err != nil {
		t.Fatalf("Page(0): %v", err)
	}
	note, ok := page["Note"].(types.LiteralString)
	if !ok {
		t.Fatalf("Note = %T, want types.LiteralString", page["Note"])
	}
	if string(note) != plaintext {
		t.Fatalf("Note = %q, want %q", note, plaintext)
	}
}

func TestNewContextRejectsWrongPassword(t *testing.T) {
	raw := buildEncryptedDoc(t, "user", "classified")

	_, err := NewContext(bytes.NewReader(raw), config.Default(), diag.Nop{}, "wrong")
	if !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("err = %v, want ErrAuthenticationFailed", err)
	}
}
