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

// Package crypto implements the PDF standard security handler: file-key
// derivation, user/owner password validation, per-object key mixing, and
// RC4/AES stream and string (en|de)cryption (spec §4.E, algorithms 3.1-3.7
// of the PDF specification).
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"io"
	"math/big"

	"github.com/pkg/errors"
	"golang.org/x/text/secure/precis"
	"golang.org/x/text/unicode/norm"

	"github.com/feliwir/pdfcore/errs"
)

// pad is the 32-byte padding string algorithm 3.2 mixes into a short
// password.
var pad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41, 0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80, 0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// Revision identifies the standard security handler revision, which governs
// key derivation, validation and which cipher family is used.
type Revision int

const (
	R2 Revision = 2
	R3 Revision = 3
	R4 Revision = 4
	R5 Revision = 5
	R6 Revision = 6
)

// Params is everything the /Encrypt dictionary and the first /ID array
// element contribute to key derivation and password validation.
type Params struct {
	R              Revision
	V              int
	Length         int // key length in bits (40, 128, or 256)
	O, U           []byte
	OE, UE         []byte // AES-256 (R5/R6) wrapped file-key material
	Perms          []byte // AES-256 /Perms, 16 bytes
	P              int32
	ID             []byte // first element of the document /ID array
	EncryptMeta    bool
	UseAES         bool
}

func padTo32(pw []byte) []byte {
	if len(pw) >= 32 {
		return pw[:32]
	}
	out := make([]byte, 32)
	n := copy(out, pw)
	copy(out[n:], pad[:32-n])
	return out
}

// DeriveFileKey computes the file encryption key from the user password and
// the /Encrypt dictionary parameters (algorithm 3.2, R2-R4 only; R5/R6 keys
// come out of ValidateUserPassword/ValidateOwnerPassword instead since they
// require the password-validation step to unwrap UE/OE).
func DeriveFileKey(userPassword string, p Params) []byte {
	pw := padTo32([]byte(userPassword))

	h := md5.New()
	h.Write(pw)
	h.Write(p.O)

	var q = uint32(p.P)
	h.Write([]byte{byte(q), byte(q >> 8), byte(q >> 16), byte(q >> 24)})
	h.Write(p.ID)

	if p.R == R4 && !p.EncryptMeta {
		h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}

	key := h.Sum(nil)

	if p.R >= R3 {
		for i := 0; i < 50; i++ {
			h.Reset()
			h.Write(key[:p.Length/8])
			key = h.Sum(nil)
		}
		key = key[:p.Length/8]
	} else {
		key = key[:5]
	}

	return key
}

// ownerEncryptionKey computes the RC4 key algorithm 3.3 mixes from the
// owner password (or the user password when there is no owner password).
func ownerEncryptionKey(ownerPassword, userPassword string, r Revision, length int) []byte {
	pw := []byte(ownerPassword)
	if len(pw) == 0 {
		pw = []byte(userPassword)
	}
	pw = padTo32(pw)

	h := md5.New()
	h.Write(pw)
	key := h.Sum(nil)

	if r >= R3 {
		for i := 0; i < 50; i++ {
			h.Reset()
			h.Write(key)
			key = h.Sum(nil)
		}
		key = key[:length/8]
	} else {
		key = key[:5]
	}

	return key
}

// rc4With19Xors applies the extra RC4 passes algorithm 3.3/3.7 layers on top
// of the initial unmixed-key pass for R>=3, each with the encryption key
// XOR'd against the iteration counter. forward runs i=1..19 in ascending
// order (encrypting, as in ComputeO/ComputeU) — 19 passes, the key is never
// left unmixed. reverse runs i=19..0 descending (unwinding an owner-password
// digest in algorithm 3.7) — 20 passes, ending on i=0, which XORs every key
// byte with 0 and so applies the original, unmixed key as the final pass.
func rc4With19Xors(key, data []byte, forward bool) ([]byte, error) {
	out := append([]byte(nil), data...)

	pass := func(i int) error {
		k := make([]byte, len(key))
		copy(k, key)
		for j := range k {
			k[j] ^= byte(i)
		}
		c, err := rc4.NewCipher(k)
		if err != nil {
			return err
		}
		c.XORKeyStream(out, out)
		return nil
	}

	if forward {
		for i := 1; i <= 19; i++ {
			if err := pass(i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	for i := 19; i >= 0; i-- {
		if err := pass(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ComputeO computes the /O entry (algorithm 3.3) for a freshly encrypted
// document.
func ComputeO(ownerPassword, userPassword string, r Revision, length int) ([]byte, error) {
	key := ownerEncryptionKey(ownerPassword, userPassword, r, length)
	o := padTo32([]byte(userPassword))

	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	c.XORKeyStream(o, o)

	if r >= R3 {
		o, err = rc4With19Xors(key, o, true)
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ComputeU computes the /U entry and the file key (algorithm 3.4/3.5).
func ComputeU(userPassword string, p Params) (u, fileKey []byte, err error) {
	fileKey = DeriveFileKey(userPassword, p)

	c, err := rc4.NewCipher(fileKey)
	if err != nil {
		return nil, nil, err
	}

	switch p.R {
	case R2:
		u = make([]byte, 32)
		copy(u, pad)
		c.XORKeyStream(u, u)

	default: // R3, R4
		h := md5.New()
		h.Write(pad)
		h.Write(p.ID)
		u = h.Sum(nil)
		c.XORKeyStream(u, u)
		u, err = rc4With19Xors(fileKey, u, true)
		if err != nil {
			return nil, nil, err
		}
	}

	if len(u) < 32 {
		u = append(u, make([]byte, 32-len(u))...)
	}
	return u, fileKey, nil
}

// ValidateUserPassword checks a candidate user password against /U and
// returns the file encryption key on success (algorithms 3.4/3.5/3.6).
func ValidateUserPassword(userPassword string, p Params) (ok bool, fileKey []byte, err error) {
	switch p.R {
	case R5:
		return validateUserPasswordAES256(userPassword, p)
	case R6:
		return validateUserPasswordRev6(userPassword, p)
	}

	u, key, err := ComputeU(userPassword, p)
	if err != nil {
		return false, nil, err
	}

	switch p.R {
	case R2:
		ok = bytes.Equal(p.U, u)
	default:
		ok = bytes.HasPrefix(p.U, u[:16])
	}
	return ok, key, nil
}

// ValidateOwnerPassword checks a candidate owner password by recovering the
// user password it implies and validating that instead (algorithm 3.7).
func ValidateOwnerPassword(ownerPassword, userPassword string, p Params) (ok bool, fileKey []byte, err error) {
	switch p.R {
	case R5:
		return validateOwnerPasswordAES256(ownerPassword, p)
	case R6:
		return validateOwnerPasswordRev6(ownerPassword, p)
	}

	key := ownerEncryptionKey(ownerPassword, userPassword, p.R, p.Length)
	upw := append([]byte(nil), p.O...)

	switch p.R {
	case R2:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return false, nil, err
		}
		c.XORKeyStream(upw, upw)
	default:
		upw, err = rc4With19Xors(key, upw, false)
		if err != nil {
			return false, nil, err
		}
	}

	return ValidateUserPassword(string(upw), p)
}

func validationSalt(bb []byte) []byte { return bb[32:40] }
func keySalt(bb []byte) []byte        { return bb[40:] }

func saslPrep(input string) ([]byte, error) {
	prof := precis.NewIdentifier(precis.BidiRule, precis.Norm(norm.NFKC))
	s, err := prof.String(input)
	if err != nil {
		return nil, err
	}
	b := []byte(s)
	if len(b) > 127 {
		b = b[:127]
	}
	return b, nil
}

func aesCBCDecryptNoPad(key, iv, ciphertext []byte) ([]byte, error) {
	cb, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(cb, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

func validateUserPasswordAES256(userPassword string, p Params) (bool, []byte, error) {
	upw, err := saslPrep(userPassword)
	if err != nil {
		return false, nil, err
	}

	s := sha256.Sum256(append(append([]byte(nil), upw...), validationSalt(p.U)...))
	if !bytes.HasPrefix(p.U, s[:]) {
		return false, nil, nil
	}

	k := sha256.Sum256(append(append([]byte(nil), upw...), keySalt(p.U)...))
	fileKey, err := aesCBCDecryptNoPad(k[:], make([]byte, 16), p.UE)
	return true, fileKey, err
}

func validateOwnerPasswordAES256(ownerPassword string, p Params) (bool, []byte, error) {
	if len(ownerPassword) == 0 {
		return false, nil, nil
	}
	opw, err := saslPrep(ownerPassword)
	if err != nil {
		return false, nil, err
	}

	b := append(append([]byte(nil), opw...), validationSalt(p.O)...)
	b = append(b, p.U...)
	s := sha256.Sum256(b)
	if !bytes.HasPrefix(p.O, s[:]) {
		return false, nil, nil
	}

	b = append(append([]byte(nil), opw...), keySalt(p.O)...)
	b = append(b, p.U...)
	k := sha256.Sum256(b)
	fileKey, err := aesCBCDecryptNoPad(k[:], make([]byte, 16), p.OE)
	return true, fileKey, err
}

// hashRev6 implements ISO 32000-2 algorithm 2.B, the iterated hash R6
// replaced the plain SHA-256 of R5 with.
func hashRev6(input, pw, u []byte) ([]byte, error) {
	k0 := sha256.Sum256(input)
	k := k0[:]

	var e []byte
	for round := 0; round < 64 || int(e[len(e)-1]) > round-32; round++ {
		chunk := append(append([]byte(nil), pw...), k...)
		if len(u) > 0 {
			chunk = append(chunk, u...)
		}
		k1 := bytes.Repeat(chunk, 64)

		cb, err := aes.NewCipher(k[:16])
		if err != nil {
			return nil, err
		}
		e = make([]byte, len(k1))
		cipher.NewCBCEncrypter(cb, k[16:32]).CryptBlocks(e, k1)

		sum := new(big.Int).SetBytes(e[:16])
		switch new(big.Int).Mod(sum, big.NewInt(3)).Uint64() {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		case 2:
			s := sha512.Sum512(e)
			k = s[:]
		}
	}

	return k[:32], nil
}

func validateUserPasswordRev6(userPassword string, p Params) (bool, []byte, error) {
	upw, err := saslPrep(userPassword)
	if err != nil {
		return false, nil, err
	}

	s, err := hashRev6(append(append([]byte(nil), upw...), validationSalt(p.U)...), upw, nil)
	if err != nil {
		return false, nil, err
	}
	if !bytes.HasPrefix(p.U, s) {
		return false, nil, nil
	}

	k, err := hashRev6(append(append([]byte(nil), upw...), keySalt(p.U)...), upw, nil)
	if err != nil {
		return false, nil, err
	}
	fileKey, err := aesCBCDecryptNoPad(k, make([]byte, 16), p.UE)
	return true, fileKey, err
}

func validateOwnerPasswordRev6(ownerPassword string, p Params) (bool, []byte, error) {
	if len(ownerPassword) == 0 {
		return false, nil, nil
	}
	opw, err := saslPrep(ownerPassword)
	if err != nil {
		return false, nil, err
	}

	bb := append(append([]byte(nil), opw...), validationSalt(p.O)...)
	bb = append(bb, p.U...)
	s, err := hashRev6(bb, opw, p.U)
	if err != nil {
		return false, nil, err
	}
	if !bytes.HasPrefix(p.O, s) {
		return false, nil, nil
	}

	bb = append(append([]byte(nil), opw...), keySalt(p.O)...)
	bb = append(bb, p.U...)
	k, err := hashRev6(bb, opw, p.U)
	if err != nil {
		return false, nil, err
	}
	fileKey, err := aesCBCDecryptNoPad(k, make([]byte, 16), p.OE)
	return true, fileKey, err
}

// GenerateFileID derives a fresh, likely-unique first /ID element from
// random bytes (the spec does not require reproducibility, only
// uniqueness-in-practice).
func GenerateFileID() ([]byte, error) {
	id := make([]byte, 16)
	_, err := io.ReadFull(rand.Reader, id)
	return id, err
}

// Authenticate tries password first as a user password and then as an
// owner password, returning the file key on success. Most PDF consumers only
// know one password and don't know which kind it is.
func Authenticate(password string, p Params) ([]byte, error) {
	if ok, key, err := ValidateUserPassword(password, p); err != nil {
		return nil, errors.Wrap(err, "pdfcore: crypto: user password validation")
	} else if ok {
		return key, nil
	}

	if ok, key, err := ValidateOwnerPassword(password, "", p); err != nil {
		return nil, errors.Wrap(err, "pdfcore: crypto: owner password validation")
	} else if ok {
		return key, nil
	}

	return nil, errs.ErrAuthenticationFailed
}
