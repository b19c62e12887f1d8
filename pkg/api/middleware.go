package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oneform/formroom/pkg/audit"
	"github.com/oneform/formroom/pkg/httputil"
	"github.com/oneform/formroom/pkg/identity"
	"github.com/oneform/formroom/pkg/metrics"
	"github.com/oneform/formroom/pkg/ratelimit"
	"github.com/oneform/formroom/pkg/tracing"
)

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to make cross-origin requests.
	// Empty disables CORS headers entirely; "*" allows any origin.
	AllowedOrigins []string

	// MaxAge is how long, in seconds, a preflight may be cached.
	// Default: 600.
	MaxAge int
}

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Authorization, Content-Type, " + audit.TraceHeader
)

// allowOrigin returns the Access-Control-Allow-Origin value for origin,
// or "" when the origin is not allowed.
func (c CORSConfig) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	if slices.Contains(c.AllowedOrigins, "*") {
		return "*"
	}
	if slices.Contains(c.AllowedOrigins, origin) {
		return origin
	}
	return ""
}

func (c CORSConfig) maxAge() string {
	if c.MaxAge <= 0 {
		return "600"
	}
	return strconv.Itoa(c.MaxAge)
}

// withMiddleware wraps the mux. Order, outermost first: recovery, trace ID,
// request logging, tracing span, metrics, security headers, CORS, rate
// limiting. Authentication is applied per route.
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	h = ratelimit.Middleware(s.limiter)(h)
	h = s.corsMiddleware(h)
	h = securityHeaders(h)
	h = s.metricsMiddleware(h)
	h = tracing.Middleware(s.tracer)(h)
	h = s.loggingMiddleware(h)
	h = audit.TraceMiddleware(h)
	return s.recoveryMiddleware(h)
}

// authed requires a bearer token on a single route.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return identity.Middleware(s.verifier)(h)
}

// route returns the mux pattern r will be dispatched to, for labels.
func (s *Server) route(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("handler panic",
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"trace_id", audit.TraceID(r.Context()),
					"stack", string(debug.Stack()),
				)
				httputil.WriteInternalError(w, "internal_error", "An internal error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// skipLogPaths are polled by infrastructure and would drown the log.
var skipLogPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipLogPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := httputil.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		level := s.log.Info
		if rec.Status() >= http.StatusInternalServerError {
			level = s.log.Error
		}
		level("request",
			"method", r.Method,
			"route", s.route(r),
			"status", rec.Status(),
			"bytes", rec.Written(),
			"duration", time.Since(start),
			"trace_id", audit.TraceID(r.Context()),
		)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if metrics.HTTPRequestsTotal == nil {
			next.ServeHTTP(w, r)
			return
		}
		if metrics.InFlightRequests != nil {
			_ = metrics.InFlightRequests.Add(1)
			defer func() { _ = metrics.InFlightRequests.Add(-1) }()
		}
		start := time.Now()
		rec := httputil.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		route := s.route(r)
		if vec, err := metrics.HTTPRequestsTotal.WithLabels(r.Method, route, strconv.Itoa(rec.Status())); err == nil {
			_ = vec.Inc()
		}
		if metrics.HTTPRequestDuration != nil {
			if vec, err := metrics.HTTPRequestDuration.WithLabels(r.Method, route); err == nil {
				vec.Observe(time.Since(start).Seconds())
			}
		}
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'")
		// Responses carry personal data.
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	if len(s.cors.AllowedOrigins) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		allow := s.cors.allowOrigin(r.Header.Get("Origin"))
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		if allow == "" {
			if preflight {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", allow)
		w.Header().Set("Access-Control-Expose-Headers", strings.Join([]string{audit.TraceHeader, "Retry-After"}, ", "))
		if preflight {
			w.Header().Set("Access-Control-Allow-Methods", corsMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
			w.Header().Set("Access-Control-Max-Age", s.cors.maxAge())
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
