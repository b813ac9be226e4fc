// Package keys owns the asymmetric key pair used to protect PINs in
// transit. The pair is generated once per deployment and persisted; the
// private half never leaves this package by value.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const keyBits = 2048

// Custodian holds the loaded key pair. The private key is read-mostly after
// load with a single owner, so no locking is needed.
type Custodian struct {
	private   *rsa.PrivateKey
	publicPEM []byte
}

// Load reads the persisted key pair, generating and persisting a fresh one
// if none exists yet. Any other failure is returned to the caller, which
// should treat it as fatal: without key material the process cannot serve
// authenticated traffic.
func Load(privatePath, publicPath string) (*Custodian, error) {
	raw, err := os.ReadFile(privatePath)
	switch {
	case err == nil:
		return fromPrivatePEM(raw)
	case errors.Is(err, fs.ErrNotExist):
		return generate(privatePath, publicPath)
	default:
		return nil, fmt.Errorf("read private key: %w", err)
	}
}

func fromPrivatePEM(raw []byte) (*Custodian, error) {
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, errors.New("private key file is not a PEM-encoded RSA key")
	}
	private, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	publicPEM, err := marshalPublicPEM(&private.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Custodian{private: private, publicPEM: publicPEM}, nil
}

func generate(privatePath, publicPath string) (*Custodian, error) {
	private, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(private),
	})
	publicPEM, err := marshalPublicPEM(&private.PublicKey)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(privatePath), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		return nil, fmt.Errorf("persist private key: %w", err)
	}
	if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		return nil, fmt.Errorf("persist public key: %w", err)
	}

	return &Custodian{private: private, publicPEM: publicPEM}, nil
}

func marshalPublicPEM(public *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// PublicKeyPEM returns the PEM-encoded public key for client-side encryption.
func (c *Custodian) PublicKeyPEM() []byte {
	out := make([]byte, len(c.publicPEM))
	copy(out, c.publicPEM)
	return out
}

// WithPrivateKey grants fn scoped access to the private key. The key must
// not be retained past the call.
func (c *Custodian) WithPrivateKey(fn func(*rsa.PrivateKey) error) error {
	return fn(c.private)
}
