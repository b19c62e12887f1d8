package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// envelopeVersion prefixes every sealed payload.
const envelopeVersion = "fr1"

var (
	// ErrNotSealed is returned by Open when the text is not a sealed envelope.
	ErrNotSealed = errors.New("payload is not sealed")

	// ErrUnknownKey is returned when an envelope names a key the keyring lacks.
	ErrUnknownKey = errors.New("unknown encryption key")

	// ErrDecrypt is returned when authentication or decoding fails.
	ErrDecrypt = errors.New("unable to decrypt payload")
)

// Keyring holds named AES-256-GCM keys. One of them is active and used by
// Seal; all of them can Open. A Keyring is immutable and safe for
// concurrent use.
type Keyring struct {
	active string
	aeads  map[string]cipher.AEAD
}

// NewKeyring builds a keyring from raw keys. The active ID must be present in
// keys, and key IDs may not contain dots.
func NewKeyring(active string, keys map[string][]byte) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: keyring has no keys", ErrInvalidKey)
	}
	if _, ok := keys[active]; !ok {
		return nil, fmt.Errorf("%w: active key %q not in keyring", ErrInvalidKey, active)
	}

	kr := &Keyring{active: active, aeads: make(map[string]cipher.AEAD, len(keys))}
	for id, key := range keys {
		if id == "" || strings.Contains(id, ".") {
			return nil, fmt.Errorf("%w: bad key id %q", ErrInvalidKey, id)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: key %q is %d bytes, want %d", ErrInvalidKey, id, len(key), KeySize)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		kr.aeads[id] = gcm
	}
	return kr, nil
}

// Active returns the ID of the key used for sealing.
func (k *Keyring) Active() string {
	return k.active
}

// IDs returns all key IDs in sorted order.
func (k *Keyring) IDs() []string {
	ids := make([]string, 0, len(k.aeads))
	for id := range k.aeads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Seal JSON-encodes v and encrypts it under the active key.
// The result has the form fr1.<keyID>.<base64url(nonce||ciphertext)>.
func (k *Keyring) Seal(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	gcm := k.aeads[k.active]
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// The key ID is bound as additional data so an envelope cannot be
	// relabelled to another key.
	sealed := gcm.Seal(nonce, nonce, plaintext, []byte(k.active))
	return envelopeVersion + "." + k.active + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed envelope into v.
func (k *Keyring) Open(blob string, v any) error {
	keyID, body, ok := splitEnvelope(blob)
	if !ok {
		return ErrNotSealed
	}

	gcm, ok := k.aeads[keyID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, keyID)
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < NonceSize+gcm.Overhead() {
		return fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	plaintext, err := gcm.Open(nil, raw[:NonceSize], raw[NonceSize:], []byte(keyID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return nil
}

// NeedsReseal reports whether blob is sealed under a key other than the
// active one.
func (k *Keyring) NeedsReseal(blob string) bool {
	id, ok := KeyID(blob)
	return ok && id != k.active
}

// IsSealed reports whether blob looks like a sealed envelope. It does not
// check that the payload decrypts.
func IsSealed(blob string) bool {
	_, _, ok := splitEnvelope(blob)
	return ok
}

// KeyID returns the key ID named in a sealed envelope.
func KeyID(blob string) (string, bool) {
	id, _, ok := splitEnvelope(blob)
	return id, ok
}

func splitEnvelope(blob string) (keyID, body string, ok bool) {
	rest, found := strings.CutPrefix(blob, envelopeVersion+".")
	if !found {
		return "", "", false
	}
	keyID, body, found = strings.Cut(rest, ".")
	if !found || keyID == "" || body == "" {
		return "", "", false
	}
	return keyID, body, true
}
