package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oneform/formroom/pkg/api"
	"github.com/oneform/formroom/pkg/audit"
	"github.com/oneform/formroom/pkg/forms"
	"github.com/oneform/formroom/pkg/identity"
	"github.com/oneform/formroom/pkg/metrics"
	"github.com/oneform/formroom/pkg/plans"
	"github.com/oneform/formroom/pkg/ratelimit"
	"github.com/oneform/formroom/pkg/rooms"
	"github.com/oneform/formroom/pkg/tracing"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the formroom HTTP API",
	Long: `Run the HTTP API until interrupted.

The server also sweeps room accesses whose window has closed (every
server.purge_interval) and evicts idle rate limiter entries.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	log, closeLog := newLogger(cfg.Log, os.Stderr)
	defer closeLog()

	registry := metrics.Init()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	auditLog, err := audit.NewLogger(&cfg.Audit, log.With("component", "audit"))
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			log.Warn("audit close failed", "error", err)
		}
	}()

	kr, err := cfg.Keyring()
	if err != nil {
		return err
	}
	gate, err := cfg.Gate()
	if err != nil {
		return err
	}
	verifier, err := identity.NewVerifier(cfg.Identity.Secret, cfg.Identity.Issuer)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}

	formSvc := forms.NewService(st, kr, log)
	accounts := plans.NewAccounts(st)
	roomSvc, err := rooms.NewService(rooms.Deps{
		Store:         st,
		Keyring:       kr,
		Forms:         formSvc,
		Accounts:      accounts,
		Gate:          gate,
		Audit:         auditLog,
		Logger:        log,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	})
	if err != nil {
		_ = st.Close()
		return err
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit)
	srv, err := api.New(api.Config{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		CORS:           api.CORSConfig{AllowedOrigins: cfg.Server.CORSOrigins},
		MaxConnections: cfg.Server.MaxConnections,
	}, api.Deps{
		Forms:    formSvc,
		Rooms:    roomSvc,
		Accounts: accounts,
		Verifier: verifier,
		Limiter:  limiter,
		Tracer:   tp.Tracer(),
		Metrics:  registry,
		Logger:   log,
	})
	if err != nil {
		_ = st.Close()
		return err
	}
	if err := srv.Start(); err != nil {
		_ = st.Close()
		return err
	}
	log.Info("formroom ready",
		"addr", srv.Addr(),
		"storage", cfg.Storage.Backend,
		"keys", cfg.KeyIDs(),
		"tracing", tp.Enabled(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-srv.Err():
			return err
		case <-gctx.Done():
			return nil
		}
	})
	if cfg.Server.PurgeInterval > 0 {
		g.Go(func() error {
			purgeLoop(gctx, roomSvc, cfg.Server.PurgeInterval, log)
			return nil
		})
	}
	if limiter != nil {
		g.Go(func() error {
			return limiter.Run(gctx, ratelimit.DefaultCleanupInterval)
		})
	}
	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("api shutdown: %w", err))
	}
	if err := st.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	log.Info("formroom stopped")
	return errors.Join(errs...)
}

// purgeLoop deletes expired room accesses every interval until ctx ends.
func purgeLoop(ctx context.Context, svc *rooms.Service, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				log.Warn("failed to purge expired accesses", "error", err)
				continue
			}
			metrics.RecordPurged(n)
		}
	}
}
