package pincrypt

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const saltBytes = 32

// Hasher derives and verifies the salted one-way digest of a PIN. It is
// stateless; PIN format policy belongs to the engine, not here.
type Hasher struct{}

// NewSalt returns a random 256-bit salt, hex-encoded.
func (Hasher) NewSalt() (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// Hash computes the hex-encoded SHA3-512 digest of salt || pin.
func (Hasher) Hash(pin, salt string) string {
	digest := sha3.Sum512([]byte(salt + pin))
	return hex.EncodeToString(digest[:])
}

// Verify recomputes the digest and compares in constant time, so the
// comparison cost does not depend on where the first differing byte occurs.
func (h Hasher) Verify(pin, digest, salt string) bool {
	computed := h.Hash(pin, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
