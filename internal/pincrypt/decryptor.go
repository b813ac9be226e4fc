// Package pincrypt covers the two cryptographic concerns of the credential
// engine: decrypting a transport-encrypted PIN and deriving/verifying the
// salted credential digest.
package pincrypt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"

	"pinguard/internal/keys"
	dErrors "pinguard/pkg/domain-errors"
)

// errDecryption is the single error returned for every decrypt failure.
// Malformed base64, wrong padding, and ciphertext for a different key are
// deliberately indistinguishable to the caller.
var errDecryption = dErrors.New(dErrors.CodeDecryptionError, "decryption failed")

// Decryptor recovers a plaintext PIN from the client's RSA-OAEP payload.
type Decryptor struct {
	custodian *keys.Custodian
}

func NewDecryptor(custodian *keys.Custodian) *Decryptor {
	return &Decryptor{custodian: custodian}
}

// Decrypt decodes the base64 ciphertext and decrypts it with OAEP/SHA-256.
// The returned plaintext must be scoped to the shortest possible lifetime
// by the caller and never logged.
func (d *Decryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errDecryption
	}

	var plain []byte
	err = d.custodian.WithPrivateKey(func(private *rsa.PrivateKey) error {
		decrypted, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, private, raw, nil)
		if err != nil {
			return err
		}
		plain = decrypted
		return nil
	})
	if err != nil {
		return "", errDecryption
	}
	return string(plain), nil
}
