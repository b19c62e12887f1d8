// Package crypto seals form and room payloads at rest.
//
// Payloads are JSON-encoded and encrypted with AES-256-GCM under a named key
// from a Keyring. The key name travels inside the sealed text so keys can be
// rotated without rewriting every document at once.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12

	// SaltMinSize is the shortest salt DeriveKey accepts.
	SaltMinSize = 16

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// ErrInvalidKey is returned when key material has the wrong size or encoding.
var ErrInvalidKey = errors.New("invalid key")

// ParseKey decodes a base64 key (standard or URL alphabet, padded or raw).
// The decoded key must be exactly KeySize bytes.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		key, err := enc.DecodeString(s)
		if err != nil {
			continue
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
		}
		return key, nil
	}
	return nil, fmt.Errorf("%w: not base64", ErrInvalidKey)
}

// DeriveKey stretches a passphrase into a KeySize key with scrypt.
// The same passphrase and salt always produce the same key.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", ErrInvalidKey)
	}
	if len(salt) < SaltMinSize {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes", ErrInvalidKey, SaltMinSize)
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("scrypt key derivation failed: %w", err)
	}
	return key, nil
}

// GenerateKey returns a fresh random key encoded with base64.StdEncoding,
// ready to be placed in configuration.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
