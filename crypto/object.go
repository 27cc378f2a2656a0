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
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"io"

	"github.com/hhrutter/pkcs7"
	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
)

// aesSalt is the algorithm-3.1 suffix mixed into the per-object key when the
// stream or string filter is AESV2/AESV3.
var aesSalt = []byte{0x73, 0x41, 0x6C, 0x54} // "sAlT"

// ObjectKey derives the per-object encryption key (algorithm 3.1). For
// V5/R5/R6 handlers the file key is used directly and this is never called.
func ObjectKey(fileKey []byte, objNum, genNum int, useAES bool) []byte {
	h := md5.New()
	h.Write(fileKey)
	h.Write([]byte{byte(objNum), byte(objNum >> 8), byte(objNum >> 16)})
	h.Write([]byte{byte(genNum), byte(genNum >> 8)})
	if useAES {
		h.Write(aesSalt)
	}
	key := h.Sum(nil)

	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return key[:n]
}

// Cipher en/decrypts the byte strings and stream payloads belonging to a
// single indirect object, using the key algorithm 3.1 (or, for V5, the bare
// file key) derived for it.
type Cipher struct {
	key    []byte
	useAES bool
}

// NewCipher builds the per-object Cipher. v5 selects the R5/R6 regime where
// the file key is used unmixed and string/stream payloads are always AES-256.
func NewCipher(fileKey []byte, objNum, genNum int, useAES, v5 bool) *Cipher {
	if v5 {
		return &Cipher{key: fileKey, useAES: true}
	}
	return &Cipher{key: ObjectKey(fileKey, objNum, genNum, useAES), useAES: useAES}
}

// Encrypt transforms plaintext into the bytes stored in the file.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	if c.useAES {
		return c.aesEncrypt(plaintext)
	}
	return c.rc4Transform(plaintext), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if c.useAES {
		return c.aesDecrypt(ciphertext)
	}
	return c.rc4Transform(ciphertext), nil
}

func (c *Cipher) rc4Transform(data []byte) []byte {
	rc, err := rc4.NewCipher(c.key)
	if err != nil {
		// rc4 accepts keys of 1 to 256 bytes and ObjectKey yields 5 to 16,
		// so a failure here means the Cipher was built from a key of some
		// other length, which is a programmer error.
		panic(err)
	}
	out := make([]byte, len(data))
	rc.XORKeyStream(out, data)
	return out
}

func (c *Cipher) aesEncrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Wrap(err, "pdfcore: crypto: AES key setup")
	}

	padded := pkcs7.Pad(plaintext, aes.BlockSize)

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	out := make([]byte, len(iv)+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(iv):], padded)
	return out, nil
}

func (c *Cipher) aesDecrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.Wrap(errs.ErrCorruptStream, "pdfcore: crypto: truncated AES ciphertext")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Wrap(err, "pdfcore: crypto: AES key setup")
	}

	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	if len(body) == 0 {
		return nil, nil
	}

	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	unpadded, err := pkcs7.Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, errors.Wrap(errs.ErrCorruptStream, errors.Wrap(err, "pdfcore: crypto: AES unpad").Error())
	}
	return unpadded, nil
}
