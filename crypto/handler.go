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

package crypto

import (
	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/types"
)

// Handler binds a validated file key to the per-object cipher construction
// rule so that callers can encrypt/decrypt an object's strings and stream
// bytes without re-deriving keys for every call.
type Handler struct {
	fileKey []byte
	useAES  bool
	v5      bool
}

// NewHandler builds a Handler from a validated file key and the /Encrypt
// dictionary's V/R.
func NewHandler(fileKey []byte, v int, useAES bool) *Handler {
	return &Handler{fileKey: fileKey, useAES: useAES, v5: v >= 5}
}

func (h *Handler) cipherFor(objNum, genNum int) *Cipher {
	return NewCipher(h.fileKey, objNum, genNum, h.useAES, h.v5)
}

// DecryptString decrypts a literal or hex string belonging to object
// (objNum, genNum).
func (h *Handler) DecryptString(s []byte, objNum, genNum int) ([]byte, error) {
	return h.cipherFor(objNum, genNum).Decrypt(s)
}

// EncryptString is the inverse of DecryptString, used when writing a freshly
// encrypted document.
func (h *Handler) EncryptString(s []byte, objNum, genNum int) ([]byte, error) {
	return h.cipherFor(objNum, genNum).Encrypt(s)
}

// DecryptStream decrypts a stream's raw (still-filtered) bytes.
func (h *Handler) DecryptStream(raw []byte, objNum, genNum int) ([]byte, error) {
	return h.cipherFor(objNum, genNum).Decrypt(raw)
}

// EncryptStream is the inverse of DecryptStream.
func (h *Handler) EncryptStream(raw []byte, objNum, genNum int) ([]byte, error) {
	return h.cipherFor(objNum, genNum).Encrypt(raw)
}

// DecryptObject walks obj recursively, decrypting every literal/hex string it
// contains in place and returning the result. Indirect references are left
// alone (they point elsewhere and carry their own object numbers); a
// signature dictionary's /Contents entry is exempt per spec §4.E since it is
// a raw byte range over the file, not an encrypted string.
func (h *Handler) DecryptObject(obj types.Object, objNum, genNum int, isSignatureContents func(key string) bool) (types.Object, error) {
	return h.transformObject(obj, objNum, genNum, isSignatureContents, h.DecryptString)
}

// EncryptObject is the inverse of DecryptObject.
func (h *Handler) EncryptObject(obj types.Object, objNum, genNum int, isSignatureContents func(key string) bool) (types.Object, error) {
	return h.transformObject(obj, objNum, genNum, isSignatureContents, h.EncryptString)
}

type stringTransform func(s []byte, objNum, genNum int) ([]byte, error)

func (h *Handler) transformObject(obj types.Object, objNum, genNum int, isSignatureContents func(string) bool, xf stringTransform) (types.Object, error) {
	switch v := obj.(type) {
	case types.LiteralString:
		out, err := xf([]byte(v), objNum, genNum)
		if err != nil {
			return nil, err
		}
		return types.LiteralString(out), nil

	case types.HexString:
		out, err := xf([]byte(v), objNum, genNum)
		if err != nil {
			return nil, err
		}
		return types.HexString(out), nil

	case types.Array:
		out := make(types.Array, len(v))
		for i, e := range v {
			t, err := h.transformObject(e, objNum, genNum, isSignatureContents, xf)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil

	case types.Dict:
		out := make(types.Dict, len(v))
		for k, e := range v {
			if isSignatureContents != nil && isSignatureContents(k) {
				out[k] = e
				continue
			}
			t, err := h.transformObject(e, objNum, genNum, isSignatureContents, xf)
			if err != nil {
				return nil, err
			}
			out[k] = t
		}
		return out, nil

	case types.IndirectRef:
		return v, nil

	default:
		return obj, nil
	}
}

// ValidatePermissions decrypts the AES-256 /Perms entry (R5/R6) and checks
// its "adb" magic marker and embedded permission bits against P, per the PDF
// 2.0 extension to the standard security handler.
func ValidatePermissions(fileKey []byte, perms []byte, p int32) error {
	if len(perms) != 16 {
		return errs.ErrCorruptStream
	}
	plain, err := aesCBCDecryptNoPad(fileKey, make([]byte, 16), perms)
	if err != nil {
		return err
	}
	if len(plain) < 12 || plain[9] != 'a' || plain[10] != 'd' || plain[11] != 'b' {
		return errs.ErrAuthenticationFailed
	}
	got := int32(plain[0]) | int32(plain[1])<<8 | int32(plain[2])<<16 | int32(plain[3])<<24
	if got != p {
		return errs.ErrAuthenticationFailed
	}
	return nil
}
