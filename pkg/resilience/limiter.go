package resilience

import (
	"time"

	"golang.org/x/time/rate"
)

// SearchLimiter throttles search-as-you-type requests so a fast typist does
// not flood the backend. Allow is non-blocking: a denied request is simply
// skipped, matching the gate's drop-don't-queue policy.
type SearchLimiter struct {
	limiter *rate.Limiter
}

// NewSearchLimiter creates a limiter permitting perSecond requests with the
// given burst. Zero values fall back to 4 req/s with a burst of 2.
func NewSearchLimiter(perSecond float64, burst int) *SearchLimiter {
	if perSecond <= 0 {
		perSecond = 4
	}
	if burst <= 0 {
		burst = 2
	}
	return &SearchLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow reports whether a search may proceed now.
func (l *SearchLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Reserve returns how long the caller would need to wait for the next slot.
func (l *SearchLimiter) Reserve() time.Duration {
	r := l.limiter.Reserve()
	if !r.OK() {
		return time.Second
	}
	d := r.Delay()
	r.Cancel()
	return d
}
