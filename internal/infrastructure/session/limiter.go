package session

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// RateLimiter is an injected, session-scoped message budget built on
// golang.org/x/time/rate. One token bucket per session ID; there is no
// process-global counter.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	perMin   int
	burst    int
	disabled bool
}

// NewRateLimiter builds a limiter allowing perMinute messages with the given
// burst per session. Non-positive values fall back to defaults; a negative
// perMinute disables limiting entirely.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute < 0 {
		return &RateLimiter{disabled: true}
	}
	if perMinute == 0 {
		perMinute = domain.DefaultRatePerMinute
	}
	if burst <= 0 {
		burst = domain.DefaultRateBurst
	}
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		perMin:  perMinute,
		burst:   burst,
	}
}

// Allow reports whether the session may send another message now.
func (r *RateLimiter) Allow(sessionID string) bool {
	if r.disabled {
		return true
	}

	r.mu.Lock()
	bucket, ok := r.buckets[sessionID]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(float64(r.perMin)/60.0), r.burst)
		r.buckets[sessionID] = bucket
	}
	r.mu.Unlock()

	return bucket.Allow()
}

var _ ports.Limiter = (*RateLimiter)(nil)
