package store

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Config selects and configures a backend.
type Config struct {
	Backend string       `mapstructure:"backend" json:"backend" yaml:"backend"`
	File    FileConfig   `mapstructure:"file" json:"file" yaml:"file"`
	SQLite  SQLiteConfig `mapstructure:"sqlite" json:"sqlite" yaml:"sqlite"`
	Redis   RedisConfig  `mapstructure:"redis" json:"redis" yaml:"redis"`
}

// FileConfig configures the JSON file backend.
type FileConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr" yaml:"addr"`
	Password string `mapstructure:"password" json:"-" yaml:"password"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		File:    FileConfig{Path: filepath.Join(DefaultDataDir(), "data.json")},
		SQLite:  SQLiteConfig{Path: filepath.Join(DefaultDataDir(), "formroom.db")},
		Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "formroom"},
	}
}

// Validate checks the settings needed by the selected backend.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, "":
		return nil
	case BackendFile:
		if c.File.Path == "" {
			return errors.New("storage.file.path is required")
		}
		return nil
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
		return nil
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}
