package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 10 * time.Minute
	limiterIdleTimeout   = 30 * time.Minute
)

type trackedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// keyedLimiters hands out one token bucket per key. Idle buckets are swept
// periodically until ctx is done.
type keyedLimiters[K comparable] struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[K]*trackedLimiter
}

func newKeyedLimiters[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *keyedLimiters[K] {
	kl := &keyedLimiters[K]{
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: make(map[K]*trackedLimiter),
	}

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				kl.sweep(time.Now().Add(-limiterIdleTimeout))
			case <-ctx.Done():
				return
			}
		}
	}()

	return kl
}

func (kl *keyedLimiters[K]) allow(key K) bool {
	kl.mu.Lock()
	tl, ok := kl.limiters[key]
	if !ok {
		tl = &trackedLimiter{limiter: rate.NewLimiter(kl.rps, kl.burst)}
		kl.limiters[key] = tl
	}
	tl.lastAccess = time.Now()
	kl.mu.Unlock()

	return tl.limiter.Allow()
}

func (kl *keyedLimiters[K]) sweep(cutoff time.Time) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, tl := range kl.limiters {
		if tl.lastAccess.Before(cutoff) {
			delete(kl.limiters, key)
		}
	}
}

func tooManyRequests(w http.ResponseWriter) {
	http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
}

// RateLimitByIP applies per-IP rate limiting for unauthenticated endpoints
// (e.g. auth routes). Relies on chi's RealIP middleware having rewritten
// r.RemoteAddr.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := newKeyedLimiters[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(r.RemoteAddr) {
				tooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByUser applies per-user rate limiting behind Auth. Requests without
// a user in context pass through.
func RateLimitByUser(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := newKeyedLimiters[uuid.UUID](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if !limiters.allow(userID) {
				tooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
