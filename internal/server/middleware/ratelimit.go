package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 10 * time.Minute
	limiterIdleTTL    = 30 * time.Minute
)

type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet hands out one token bucket per key and forgets keys idle
// for longer than limiterIdleTTL.
type limiterSet[K comparable] struct {
	mu       sync.Mutex
	limiters map[K]*keyedLimiter
	limit    rate.Limit
	burst    int
}

func newLimiterSet[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *limiterSet[K] {
	s := &limiterSet[K]{
		limiters: make(map[K]*keyedLimiter),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
	go s.sweep(ctx)
	return s
}

func (s *limiterSet[K]) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-limiterIdleTTL)
			s.mu.Lock()
			for k, l := range s.limiters {
				if l.lastAccess.Before(cutoff) {
					delete(s.limiters, k)
				}
			}
			s.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// reserve takes a token for key. It returns false and the wait until the
// next token when the bucket is empty.
func (s *limiterSet[K]) reserve(key K) (bool, time.Duration) {
	s.mu.Lock()
	l, ok := s.limiters[key]
	if !ok {
		l = &keyedLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = l
	}
	now := time.Now()
	l.lastAccess = now
	s.mu.Unlock()

	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func tooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)+1))
	}
	deny(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// clientIP is the host part of RemoteAddr, which chi's RealIP middleware
// has already replaced with the forwarded client address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitByIP applies per-IP rate limiting for unauthenticated endpoints
// such as login and signup.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := newLimiterSet[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, wait := limiters.reserve(clientIP(r)); !ok {
				tooManyRequests(w, wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-organization rate limiting. Requests without an
// organization pass through; RequireOrganization rejects those.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := newLimiterSet[uuid.UUID](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, ok := OrganizationIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if ok, wait := limiters.reserve(orgID); !ok {
				tooManyRequests(w, wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
