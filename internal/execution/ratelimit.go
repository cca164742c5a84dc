package execution

import (
	"sync"
	"time"
)

// Rate limit defaults, per resource bucket.
const (
	DefaultMaxRequests   = 100
	DefaultWindowSeconds = 60
)

// RateDecision is the outcome of one rate-limit lookup.
type RateDecision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// RateLimiter keeps an in-process sliding window per resource bucket.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
}

// NewRateLimiter builds a limiter; non-positive arguments select the
// defaults (100 requests per 60 seconds).
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindowSeconds * time.Second
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		buckets:     map[string][]time.Time{},
	}
}

// Check records a request against the resource bucket when admitted.
// When the window is full, RetryAfter is the time until the oldest
// in-window request expires.
func (l *RateLimiter) Check(resource string) RateDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	inWindow := l.buckets[resource][:0]
	for _, t := range l.buckets[resource] {
		if t.After(cutoff) {
			inWindow = append(inWindow, t)
		}
	}
	l.buckets[resource] = inWindow

	if len(inWindow) >= l.maxRequests {
		oldest := inWindow[0]
		for _, t := range inWindow {
			if t.Before(oldest) {
				oldest = t
			}
		}
		retryAfter := oldest.Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return RateDecision{RetryAfter: retryAfter}
	}

	l.buckets[resource] = append(inWindow, now)
	return RateDecision{Allowed: true, Remaining: l.maxRequests - len(inWindow) - 1}
}
