package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/oneform/formroom/internal/storage"
	"github.com/oneform/formroom/pkg/config"
	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/forms"
	"github.com/oneform/formroom/pkg/logging"
	"github.com/oneform/formroom/pkg/plans"
	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/store/file"
	"github.com/oneform/formroom/pkg/store/redisstore"
	"github.com/oneform/formroom/pkg/store/sqlite"
)

// loadConfig reads and validates the configuration named by --config and
// applies --log-level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger. When a Loki URL is configured,
// records also go to Loki; the returned func flushes and stops it.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, func()) {
	level := logging.ParseLevel(cfg.Level)
	log := logging.New(logging.Config{
		Level:  level,
		Format: logging.ParseFormat(cfg.Format),
		Output: w,
	})
	if cfg.LokiURL == "" {
		return log, func() {}
	}

	loki := logging.NewLokiHandler(cfg.LokiURL,
		logging.WithLokiLabels(map[string]string{"service": "formroom"}),
		logging.WithLokiLevel(level),
	)
	return slog.New(logging.NewMultiHandler(log.Handler(), loki)), func() {
		_ = loki.Close()
	}
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg store.Config, log *slog.Logger) (store.DocumentStore, error) {
	switch cfg.Backend {
	case store.BackendMemory, "":
		return storage.NewMemoryStore(), nil
	case store.BackendFile:
		s, err := file.Open(cfg.File.Path, file.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return s, nil
	case store.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case store.BackendRedis:
		s := redisstore.FromConfig(cfg.Redis)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownBackend, cfg.Backend)
	}
}

// app holds what the data commands share: configuration, the store and
// the services built on it.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    store.DocumentStore
	keyring  *crypto.Keyring
	forms    *forms.Service
	accounts *plans.Accounts

	closeLog func()
}

// openApp loads configuration and opens the store. Callers must Close it.
func openApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, closeLog := newLogger(cfg.Log, logOut)

	kr, err := cfg.Keyring()
	if err != nil {
		closeLog()
		return nil, err
	}
	st, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		keyring:  kr,
		forms:    forms.NewService(st, kr, log),
		accounts: plans.NewAccounts(st),
		closeLog: closeLog,
	}, nil
}

// Close closes the store and flushes the logger.
func (a *app) Close() error {
	err := a.store.Close()
	a.closeLog()
	return err
}
