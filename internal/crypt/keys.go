package crypt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadPrivateKey reads the shard's PEM-encoded RSA private key. The
// client ships the matching public key and wraps the session key with it
// at login.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Newer key files may be PKCS#8.
		any, err8 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err8 != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", path, err)
		}
		rsaKey, ok := any.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key %s is not RSA", path)
		}
		return rsaKey, nil
	}
	return key, nil
}

// GeneratePrivateKey creates an ephemeral key pair. Used by tests and by
// dev bootstrap when no key file is configured.
func GeneratePrivateKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	return key, nil
}

// UnwrapSessionKey decrypts the RSA-wrapped session key blob the client
// sends in the login request and returns the raw key material.
func UnwrapSessionKey(priv *rsa.PrivateKey, blob []byte) ([]byte, error) {
	key, err := rsa.DecryptPKCS1v15(nil, priv, blob)
	if err != nil {
		return nil, fmt.Errorf("unwrapping session key: %w", err)
	}
	return key, nil
}

// WrapSessionKey encrypts key material with the public half. Test-side
// mirror of what the client does.
func WrapSessionKey(pub *rsa.PublicKey, keyMaterial []byte) ([]byte, error) {
	blob, err := rsa.EncryptPKCS1v15(rand.Reader, pub, keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("wrapping session key: %w", err)
	}
	return blob, nil
}
