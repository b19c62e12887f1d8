package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/net/netutil"

	"github.com/oneform/formroom/pkg/forms"
	"github.com/oneform/formroom/pkg/identity"
	"github.com/oneform/formroom/pkg/logging"
	"github.com/oneform/formroom/pkg/metrics"
	"github.com/oneform/formroom/pkg/plans"
	"github.com/oneform/formroom/pkg/ratelimit"
	"github.com/oneform/formroom/pkg/rooms"
	"github.com/oneform/formroom/pkg/template"
)

// Config configures the listener.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORS         CORSConfig

	// MaxConnections caps concurrent connections. Zero means no cap.
	MaxConnections int
}

// Deps are the services the handlers call. Forms, Rooms and Verifier are
// required.
type Deps struct {
	Forms    *forms.Service
	Rooms    *rooms.Service
	Accounts *plans.Accounts
	Verifier *identity.Verifier
	Limiter  *ratelimit.Limiter
	Tracer   trace.Tracer
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// Server is the formroom HTTP API.
type Server struct {
	forms    *forms.Service
	rooms    *rooms.Service
	accounts *plans.Accounts
	verifier *identity.Verifier
	limiter  *ratelimit.Limiter
	tracer   trace.Tracer
	registry *metrics.Registry
	engine   *template.Engine
	log      *slog.Logger
	cors     CORSConfig
	maxConns int
	openapi  *openapi3.T

	mux        *http.ServeMux
	httpServer *http.Server
	startTime  time.Time

	mu       sync.Mutex
	listener net.Listener
	errCh    chan error
}

// New wires the routes and middleware. It does not start listening.
func New(cfg Config, d Deps) (*Server, error) {
	if d.Forms == nil || d.Rooms == nil || d.Verifier == nil {
		return nil, errors.New("api: forms, rooms and verifier are required")
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("formroom")
	}
	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}

	s := &Server{
		forms:    d.Forms,
		rooms:    d.Rooms,
		accounts: d.Accounts,
		verifier: d.Verifier,
		limiter:  d.Limiter,
		tracer:   d.Tracer,
		registry: d.Metrics,
		engine:   template.New(),
		log:      d.Logger.With("component", "api"),
		cors:     cfg.CORS,
		maxConns: cfg.MaxConnections,
		openapi:  doc,
		mux:      http.NewServeMux(),
		errCh:    make(chan error, 1),
	}
	s.registerRoutes(s.mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withMiddleware(s.mux),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listener and serves in the background. Serve errors are
// delivered on Err.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	s.mu.Lock()
	s.listener = ln
	s.startTime = time.Now()
	s.mu.Unlock()

	s.log.Info("starting API server", "addr", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server error", "error", err)
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Err is closed when the server stops, after delivering any serve error.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("stopping API server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}
