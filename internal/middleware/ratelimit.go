package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP extracts the client's IP, preferring the first hop of
// X-Forwarded-For over RemoteAddr.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// counter is one key's fixed window: requests seen since start, and the
// window length that applied when it opened.
type counter struct {
	start time.Time
	span  time.Duration
	seen  int
}

func (c *counter) expired(now time.Time) bool {
	return now.Sub(c.start) >= c.span
}

// RateLimiter is an in-memory fixed-window limiter keyed by caller identity.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*counter
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{entries: make(map[string]*counter)}
}

// Allow records a request for key and reports whether it fits within limit
// requests per window.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.entries[key]
	if !ok || c.expired(now) {
		rl.entries[key] = &counter{start: now, span: window, seen: 1}
		return true
	}
	c.seen++
	return c.seen <= limit
}

// Cleanup drops keys whose window has passed. Run it periodically so idle
// callers do not accumulate.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, c := range rl.entries {
		if c.expired(now) {
			delete(rl.entries, key)
		}
	}
}

// RateLimit returns middleware enforcing limit requests per window per key.
// Rejected requests get a 429 with a Retry-After hint of the full window.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r), limit, window) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
