package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/oneform/formroom/pkg/httputil"
)

// Middleware enforces per-client limits. A nil limiter passes every
// request through.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, retry := l.Allow(l.ClientIP(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Burst()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}
			secs := int64(math.Ceil(retry.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
			httputil.WriteTooManyRequests(w, "rate_limit_exceeded", "Too many requests. Please slow down.")
		})
	}
}
