package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/PackStore/pkg/httputil"
)

// KeyFunc picks the bucket a request is charged against.
type KeyFunc func(r *http.Request) string

// ByIdentityOrIP keys by the caller's cart identity, falling back to the
// client IP for unidentified requests.
func ByIdentityOrIP(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok && !id.Empty() {
		return id.Key()
	}
	if id := IdentityFromHeaders(r); !id.Empty() {
		return id.Key()
	}
	return "ip:" + clientIP(r)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per key and evicts idle keys.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst, per key.
func NewLimiter(rps float64, burst int, ttl time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Allow consumes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep evicts keys idle for longer than the TTL.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, k)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit charges each request to keyFn's bucket and answers 429 once it
// is empty.
func RateLimit(lim *Limiter, keyFn KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !lim.Allow(key) {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("key", key),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return remoteHost(r)
}
