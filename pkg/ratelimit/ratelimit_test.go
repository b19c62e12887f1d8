package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *fakeClock) {
	t.Helper()
	l := NewLimiter(cfg)
	if l == nil {
		t.Fatal("NewLimiter returned nil")
	}
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	l.now = clock.now
	return l, clock
}

func TestNewLimiterDisabled(t *testing.T) {
	t.Parallel()
	if NewLimiter(Config{}) != nil {
		t.Error("zero RPS should disable limiting")
	}
}

func TestNewLimiterDefaults(t *testing.T) {
	t.Parallel()
	l := NewLimiter(Config{RPS: 2.5})
	if l.Burst() != 5 {
		t.Errorf("Burst() = %d, want 5", l.Burst())
	}
	if l.ttl != DefaultEntryTTL {
		t.Errorf("ttl = %v", l.ttl)
	}
}

func TestAllowDrainsAndRefills(t *testing.T) {
	t.Parallel()
	l, clock := newTestLimiter(t, Config{RPS: 1, Burst: 3})

	for i, want := range []int{2, 1, 0} {
		ok, remaining, _ := l.Allow("10.0.0.1")
		if !ok {
			t.Fatalf("request %d denied", i+1)
		}
		if remaining != want {
			t.Errorf("request %d remaining = %d, want %d", i+1, remaining, want)
		}
	}

	ok, _, retry := l.Allow("10.0.0.1")
	if ok {
		t.Fatal("request beyond burst allowed")
	}
	if retry != time.Second {
		t.Errorf("retry = %v, want 1s", retry)
	}

	if ok, _, _ := l.Allow("10.0.0.2"); !ok {
		t.Error("other key shares the exhausted bucket")
	}

	clock.advance(time.Second)
	if ok, _, _ := l.Allow("10.0.0.1"); !ok {
		t.Error("bucket did not refill")
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()
	l, clock := newTestLimiter(t, Config{RPS: 10, EntryTTL: time.Minute})

	l.Allow("a")
	clock.advance(45 * time.Second)
	l.Allow("b")
	clock.advance(30 * time.Second)

	if n := l.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	l := NewLimiter(Config{RPS: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		proxies []string
		remote  string
		xff     string
		xri     string
		want    string
	}{
		{"no proxies ignores headers", nil, "203.0.113.5:1234", "198.51.100.1", "", "203.0.113.5"},
		{"trusted cidr uses xff", []string{"10.0.0.0/8"}, "10.1.2.3:80", "198.51.100.1, 10.1.2.3", "", "198.51.100.1"},
		{"trusted single ip", []string{"10.1.2.3"}, "10.1.2.3:80", "198.51.100.1", "", "198.51.100.1"},
		{"untrusted peer", []string{"10.0.0.0/8"}, "192.0.2.1:80", "198.51.100.1", "", "192.0.2.1"},
		{"falls back to x-real-ip", []string{"10.0.0.0/8"}, "10.1.2.3:80", "garbage", "198.51.100.7", "198.51.100.7"},
		{"no port", nil, "192.0.2.9", "", "", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := NewLimiter(Config{RPS: 1, TrustedProxies: tt.proxies})
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := l.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter(t, Config{RPS: 1, Burst: 1})
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", first.Code)
	}
	if first.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("X-RateLimit-Limit = %q", first.Header().Get("X-RateLimit-Limit"))
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", second.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "rate_limit_exceeded" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestMiddlewareNilLimiter(t *testing.T) {
	t.Parallel()
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}
