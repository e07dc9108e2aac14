// Package crypto implements the symmetric encryption engine that protects
// sensitive credential fields at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the required AES-256 key length in bytes.
	KeySize = 32
	// nonceSize is the GCM-recommended 96-bit nonce length.
	nonceSize = 12
	// tagSize is the GCM authentication tag length.
	tagSize = 16
)

// EncryptionError indicates that a ciphertext token is malformed or failed
// authentication. Decryption fails closed: no partial plaintext is ever
// returned alongside one of these.
type EncryptionError struct {
	Op  string
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// Engine encrypts and decrypts individual secret strings with AES-256-GCM
// under a single process-wide key. The key is loaded once at construction
// and never logged; Engine is stateless apart from it and safe for
// concurrent use.
type Engine struct {
	aead cipher.AEAD
}

// NewEngine creates an Engine from a raw 32-byte AES-256 key.
func NewEngine(key []byte) (*Engine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: invalid key length: %d bits, expected 256 bits", len(key)*8)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher.NewGCM: %w", err)
	}

	return &Engine{aead: aead}, nil
}

// Encrypt encrypts plaintext and returns a self-contained base64 token
// holding nonce || ciphertext || tag. A fresh random nonce is generated per
// call, so encrypting the same plaintext twice yields different tokens.
// Empty input passes through unchanged so optional fields need no
// special-casing upstream.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any malformed encoding, truncated token, or
// authentication tag mismatch yields an *EncryptionError and no plaintext.
// Empty input passes through unchanged.
func (e *Engine) Decrypt(token string) (string, error) {
	if token == "" {
		return token, nil
	}

	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", &EncryptionError{Op: "base64 decode", Err: err}
	}
	if len(data) < nonceSize {
		return "", &EncryptionError{Op: "decrypt", Err: errors.New("ciphertext too short")}
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &EncryptionError{Op: "gcm open", Err: err}
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether value looks like an Engine output: valid
// base64 long enough to hold a nonce, a tag, and at least one ciphertext
// byte. Best-effort heuristic for diagnostics only, never for
// authorization decisions.
func (e *Engine) IsEncrypted(value string) bool {
	if value == "" {
		return false
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}
	return len(data) > nonceSize+tagSize
}

// GenerateKey returns a fresh random AES-256 key encoded as base64, suitable
// for the CLOUDMESH_ENCRYPTION_KEY environment variable.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("crypto: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// ParseKey decodes a base64-encoded key and validates its length.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid key encoding: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: invalid key length: %d bits, expected 256 bits", len(key)*8)
	}
	return key, nil
}
