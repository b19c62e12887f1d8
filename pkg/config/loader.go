package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultKeyName is the key ID given to FORMROOM_CRYPTO_KEY.
const DefaultKeyName = "default"

// Load reads path (if non-empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read is Load without validation. CLI commands that need only part of
// the configuration use it.
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyKeyShortcut(cfg)
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.public_base_url", d.Server.PublicBaseURL)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.purge_interval", d.Server.PurgeInterval)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.loki_url", d.Log.LokiURL)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.file.path", d.Storage.File.Path)
	v.SetDefault("storage.sqlite.path", d.Storage.SQLite.Path)
	v.SetDefault("storage.redis.addr", d.Storage.Redis.Addr)
	v.SetDefault("storage.redis.password", d.Storage.Redis.Password)
	v.SetDefault("storage.redis.db", d.Storage.Redis.DB)
	v.SetDefault("storage.redis.prefix", d.Storage.Redis.Prefix)

	v.SetDefault("crypto.active_key", d.Crypto.ActiveKey)
	v.SetDefault("crypto.passphrase", d.Crypto.Passphrase)
	v.SetDefault("crypto.salt", d.Crypto.Salt)

	v.SetDefault("identity.secret", d.Identity.Secret)
	v.SetDefault("identity.issuer", d.Identity.Issuer)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.output_file", d.Audit.OutputFile)
	v.SetDefault("audit.log", d.Audit.Log)

	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)

	v.SetDefault("rate_limit.rps", d.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("rate_limit.trusted_proxies", d.RateLimit.TrustedProxies)
	v.SetDefault("rate_limit.entry_ttl", d.RateLimit.EntryTTL)

	v.SetDefault("plans.rules_file", d.Plans.RulesFile)
}

func applyKeyShortcut(cfg *Config) {
	key := strings.TrimSpace(os.Getenv(EnvPrefix + "_CRYPTO_KEY"))
	if key == "" {
		return
	}
	if cfg.Crypto.Keys == nil {
		cfg.Crypto.Keys = map[string]string{}
	}
	cfg.Crypto.Keys[DefaultKeyName] = key
	if cfg.Crypto.ActiveKey == "" {
		cfg.Crypto.ActiveKey = DefaultKeyName
	}
}
