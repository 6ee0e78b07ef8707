package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 10 * time.Minute
	limiterIdleTTL       = 30 * time.Minute
)

type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet hands out one token bucket per key and forgets keys that have
// been idle for limiterIdleTTL.
type limiterSet[K comparable] struct {
	mu       sync.Mutex
	limiters map[K]*keyedLimiter
	rps      rate.Limit
	burst    int
}

func newLimiterSet[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *limiterSet[K] {
	s := &limiterSet[K]{
		limiters: make(map[K]*keyedLimiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now().Add(-limiterIdleTTL))
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

func (s *limiterSet[K]) allow(key K) bool {
	s.mu.Lock()
	kl, ok := s.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[key] = kl
	}
	kl.lastAccess = time.Now()
	s.mu.Unlock()

	return kl.limiter.Allow()
}

func (s *limiterSet[K]) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, kl := range s.limiters {
		if kl.lastAccess.Before(cutoff) {
			delete(s.limiters, k)
		}
	}
}

// RateLimitByIP applies per-IP rate limiting for unauthenticated endpoints
// (login, refresh). Stale entries are dropped until ctx is done.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := newLimiterSet[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(ClientIP(r)) {
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-institute rate limiting. It must run inside
// ResolveTenant; unscoped requests are not limited.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := newLimiterSet[uuid.UUID](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := TenantIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !limiters.allow(tenantID) {
				userID, _ := UserIDFromContext(r.Context())
				log.Debug().
					Str("institute_id", tenantID.String()).
					Str("user_id", userID.String()).
					Msg("ratelimit: institute limit exceeded")
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
