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
	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/crypto"
	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/types"
)

// authenticate parses the document's /Encrypt dictionary, validates
// password against it, and wires the resulting handler into the table so
// every subsequent Resolve call decrypts strings and streams transparently
// (spec §4.E).
func (c *Context) authenticate(password string) error {
	encRef := c.Table.Trailer["Encrypt"]

	encryptObjNum := 0
	if ref, ok := encRef.(types.IndirectRef); ok {
		encryptObjNum = ref.ObjectNumber
	}

	encObj, err := c.Table.Dereference(encRef)
	if err != nil {
		return errors.Wrap(err, "model: resolving /Encrypt")
	}
	encDict, ok := encObj.(types.Dict)
	if !ok {
		return errors.Wrap(errs.ErrTypeMismatch, "model: /Encrypt is not a dictionary")
	}

	params, err := c.buildEncryptParams(encDict)
	if err != nil {
		return err
	}

	fileKey, err := crypto.Authenticate(password, params)
	if err != nil {
		return err
	}

	if params.R >= crypto.R5 && len(params.Perms) == 16 {
		if err := crypto.ValidatePermissions(fileKey, params.Perms, params.P); err != nil {
			return err
		}
	}

	c.Table.SetEncryptionHandler(crypto.NewHandler(fileKey, params.V, params.UseAES), encryptObjNum)
	return nil
}

// buildEncryptParams reads V/R/Length/O/U/OE/UE/Perms/P/EncryptMetadata out
// of an /Encrypt dictionary and the document's first /ID element into a
// crypto.Params, the shape crypto.Authenticate and crypto.NewHandler need.
func (c *Context) buildEncryptParams(d types.Dict) (crypto.Params, error) {
	var p crypto.Params

	v, err := requireInt(d, "V")
	if err != nil {
		return p, err
	}
	p.V = v

	r, err := requireInt(d, "R")
	if err != nil {
		return p, err
	}
	p.R = crypto.Revision(r)

	p.Length = 40
	if n, ok := d["Length"].(types.Integer); ok {
		p.Length = int(n)
	}

	p.O = bytesOf(d["O"])
	p.U = bytesOf(d["U"])
	p.OE = bytesOf(d["OE"])
	p.UE = bytesOf(d["UE"])
	p.Perms = bytesOf(d["Perms"])

	if pi, ok := d["P"].(types.Integer); ok {
		p.P = int32(pi)
	}

	p.EncryptMeta = true
	if b, ok := d["EncryptMetadata"].(types.Boolean); ok {
		p.EncryptMeta = bool(b)
	}

	p.UseAES = encryptionUsesAES(d, p.V)

	if id, ok := c.Table.Trailer["ID"].(types.Array); ok && len(id) > 0 {
		p.ID = bytesOf(id[0])
	}

	return p, nil
}

// encryptionUsesAES inspects /CF/StdCF/CFM to tell an AES crypt filter apart
// from the legacy RC4 cipher; V<=3 is always RC4, V>=5 is always AES-256.
func encryptionUsesAES(d types.Dict, v int) bool {
	if v < 4 {
		return false
	}
	cf, ok := d["CF"].(types.Dict)
	if !ok {
		return v >= 5
	}
	stdCF, ok := cf["StdCF"].(types.Dict)
	if !ok {
		return v >= 5
	}
	cfm, _ := stdCF.NameEntry("CFM")
	switch string(cfm) {
	case "AESV2", "AESV3":
		return true
	default:
		return v >= 5
	}
}

func bytesOf(o types.Object) []byte {
	switch v := o.(type) {
	case types.HexString:
		return v.Bytes()
	case types.LiteralString:
		return v.Bytes()
	default:
		return nil
	}
}

func requireInt(d types.Dict, key string) (int, error) {
	o, ok := d[key]
	if !ok {
		return 0, errors.Errorf("model: /Encrypt missing /%s", key)
	}
	i, ok := o.(types.Integer)
	if !ok {
		return 0, errors.Errorf("model: /Encrypt /%s is not an integer", key)
	}
	return int(i), nil
}
