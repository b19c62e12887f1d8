// Package ratelimit throttles API callers per client address.
//
// Each address gets its own golang.org/x/time/rate token bucket. Idle
// buckets are dropped by Sweep, which Run calls on a ticker.
package ratelimit

import (
	"context"
	"math"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults applied by NewLimiter.
const (
	DefaultRPS             = 20
	DefaultCleanupInterval = time.Minute
	DefaultEntryTTL        = 5 * time.Minute
)

// Config configures a Limiter. A zero or negative RPS disables limiting.
type Config struct {
	RPS            float64       `mapstructure:"rps" json:"rps" yaml:"rps"`
	Burst          int           `mapstructure:"burst" json:"burst" yaml:"burst"`
	TrustedProxies []string      `mapstructure:"trusted_proxies" json:"trustedProxies,omitempty" yaml:"trusted_proxies,omitempty"`
	EntryTTL       time.Duration `mapstructure:"entry_ttl" json:"entryTtl,omitempty" yaml:"entry_ttl,omitempty"`
}

// DefaultConfig returns the limits the server starts with.
func DefaultConfig() Config {
	return Config{RPS: DefaultRPS, Burst: 2 * DefaultRPS, EntryTTL: DefaultEntryTTL}
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter tracks one token bucket per client key.
type Limiter struct {
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	proxies []*net.IPNet
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewLimiter returns nil when cfg.RPS is not positive; the middleware treats
// a nil limiter as a pass-through.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RPS <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Ceil(cfg.RPS * 2))
	}
	ttl := cfg.EntryTTL
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &Limiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   burst,
		ttl:     ttl,
		proxies: parseProxies(cfg.TrustedProxies),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int { return l.burst }

// Allow consumes one token for key. When the bucket is empty it reports how
// long the caller should wait before retrying.
func (l *Limiter) Allow(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.seen = now
	l.mu.Unlock()

	res := e.lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, delay
	}
	tokens := e.lim.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}
	return true, int(tokens), 0
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep drops keys that have been idle longer than the entry TTL and
// returns how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, e := range l.entries {
		if e.seen.Before(cutoff) {
			delete(l.entries, key)
			n++
		}
	}
	return n
}

// Run sweeps idle keys every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}
