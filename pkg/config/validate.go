package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/identity"
	"github.com/oneform/formroom/pkg/logging"
	"github.com/oneform/formroom/pkg/plans"
)

// PassphraseKeyName is the key ID of the passphrase-derived key.
const PassphraseKeyName = "passphrase"

// ErrNoKeys is returned when no sealing key is configured.
var ErrNoKeys = errors.New("no encryption key configured")

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, invalid("server.addr", "is required"))
	}
	if u, err := url.Parse(c.Server.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, invalid("server.public_base_url", "must be an absolute URL, got %q", c.Server.PublicBaseURL))
	}
	if c.Server.PurgeInterval < 0 {
		errs = append(errs, invalid("server.purge_interval", "must not be negative"))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, invalid("server.max_connections", "must not be negative"))
	}

	switch logging.Format(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON, "":
	default:
		errs = append(errs, invalid("log.format", "must be text or json, got %q", c.Log.Format))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Keyring(); err != nil {
		errs = append(errs, invalid("crypto", "%v", err))
	}
	if _, err := identity.NewVerifier(c.Identity.Secret, c.Identity.Issuer); err != nil {
		errs = append(errs, invalid("identity.secret", "%v", err))
	}
	if err := c.Audit.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, invalid("rate_limit.burst", "must not be negative"))
	}
	if _, err := c.Gate(); err != nil {
		errs = append(errs, invalid("plans", "%v", err))
	}

	return errors.Join(errs...)
}

// Keyring builds the sealing keyring from the crypto section. With a single
// key and no active_key, that key is active.
func (c *Config) Keyring() (*crypto.Keyring, error) {
	keys := make(map[string][]byte, len(c.Crypto.Keys)+1)
	for id, encoded := range c.Crypto.Keys {
		k, err := crypto.ParseKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", id, err)
		}
		keys[id] = k
	}
	if c.Crypto.Passphrase != "" {
		salt, err := decodeSalt(c.Crypto.Salt)
		if err != nil {
			return nil, err
		}
		k, err := crypto.DeriveKey(c.Crypto.Passphrase, salt)
		if err != nil {
			return nil, err
		}
		keys[PassphraseKeyName] = k
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	active := c.Crypto.ActiveKey
	if active == "" {
		if len(keys) > 1 {
			return nil, errors.New("active_key is required when several keys are configured")
		}
		for id := range keys {
			active = id
		}
	}
	return crypto.NewKeyring(active, keys)
}

// decodeSalt accepts base64 or, failing that, the raw string.
func decodeSalt(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("salt is required with a passphrase")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return []byte(s), nil
}

// Gate builds the plan gate, applying the rules file first and inline
// rules on top.
func (c *Config) Gate() (*plans.Gate, error) {
	rules := map[string]string{}
	if c.Plans.RulesFile != "" {
		fromFile, err := plans.LoadRules(c.Plans.RulesFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			rules[k] = v
		}
	}
	for k, v := range c.Plans.Rules {
		rules[k] = v
	}
	return plans.NewGate(rules)
}

// KeyIDs lists configured key names, sorted. Used for startup logging.
func (c *Config) KeyIDs() []string {
	ids := make([]string, 0, len(c.Crypto.Keys)+1)
	for id := range c.Crypto.Keys {
		ids = append(ids, id)
	}
	if c.Crypto.Passphrase != "" {
		ids = append(ids, PassphraseKeyName)
	}
	sort.Strings(ids)
	return ids
}
