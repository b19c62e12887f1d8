package config

import (
	"time"

	"github.com/oneform/formroom/pkg/audit"
	"github.com/oneform/formroom/pkg/ratelimit"
	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/tracing"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FORMROOM"

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig      `mapstructure:"server" yaml:"server"`
	Log       LogConfig         `mapstructure:"log" yaml:"log"`
	Storage   store.Config      `mapstructure:"storage" yaml:"storage"`
	Crypto    CryptoConfig      `mapstructure:"crypto" yaml:"crypto"`
	Identity  IdentityConfig    `mapstructure:"identity" yaml:"identity"`
	Audit     audit.AuditConfig `mapstructure:"audit" yaml:"audit"`
	Tracing   tracing.Config    `mapstructure:"tracing" yaml:"tracing"`
	RateLimit ratelimit.Config  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Plans     PlansConfig       `mapstructure:"plans" yaml:"plans"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`

	// PublicBaseURL prefixes invite links.
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	// PurgeInterval is how often expired accesses are deleted. Zero disables
	// the sweeper.
	PurgeInterval time.Duration `mapstructure:"purge_interval" yaml:"purge_interval"`

	// MaxConnections caps concurrent client connections. Zero means no cap.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Format  string `mapstructure:"format" yaml:"format"`
	LokiURL string `mapstructure:"loki_url" yaml:"loki_url,omitempty"`
}

// CryptoConfig names the sealing keys. Keys are base64 encoded. A
// passphrase with a salt derives one more key, named "passphrase".
type CryptoConfig struct {
	ActiveKey  string            `mapstructure:"active_key" yaml:"active_key"`
	Keys       map[string]string `mapstructure:"keys" yaml:"keys"`
	Passphrase string            `mapstructure:"passphrase" yaml:"passphrase,omitempty"`
	Salt       string            `mapstructure:"salt" yaml:"salt,omitempty"`
}

// IdentityConfig configures bearer token verification.
type IdentityConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret"`
	Issuer string `mapstructure:"issuer" yaml:"issuer,omitempty"`
}

// PlansConfig overrides plan gate rules, by feature name.
type PlansConfig struct {
	RulesFile string            `mapstructure:"rules_file" yaml:"rules_file,omitempty"`
	Rules     map[string]string `mapstructure:"rules" yaml:"rules,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			PublicBaseURL:   "http://localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			PurgeInterval:   time.Hour,
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Storage:   store.DefaultConfig(),
		Crypto:    CryptoConfig{Keys: map[string]string{}},
		Audit:     audit.DefaultAuditConfig(),
		Tracing:   tracing.DefaultConfig(),
		RateLimit: ratelimit.DefaultConfig(),
	}
}
