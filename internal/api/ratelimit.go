package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bouksibkhalid-create/cleargate/internal/metrics"
)

const (
	// DefaultRateLimit is requests per window per client IP.
	DefaultRateLimit = 100

	// DefaultRateWindow is the fixed rate-limit window.
	DefaultRateWindow = time.Minute
)

type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window per-IP limiter. Windows are tracked in
// memory; counts reset when a client's window elapses.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	limit   int
	window  time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window per IP.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		limit:   limit,
		window:  window,
	}
}

// Allow records one request for the client and reports whether it is within
// the limit, along with the seconds until the window resets.
func (rl *RateLimiter) Allow(clientIP string) (bool, int) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[clientIP]
	if !ok || now.After(w.resetAt) {
		rl.windows[clientIP] = &rateWindow{count: 1, resetAt: now.Add(rl.window)}
		return true, int(rl.window.Seconds())
	}

	w.count++
	retryAfter := int(time.Until(w.resetAt).Seconds()) + 1
	return w.count <= rl.limit, retryAfter
}

// Middleware rejects over-limit requests with a 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := rl.Allow(clientIP(r))
		if !ok {
			metrics.RateLimited.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from X-Forwarded-For when
	// present, so RemoteAddr is the single source of truth here.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
