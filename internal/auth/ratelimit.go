package auth

import (
	"fmt"
	"sync"
	"time"

	"wishstash/internal/apperr"
)

const limiterMaxOrigins = 5000

// LoginRateLimiter tracks failed login attempts per client origin in a
// sliding window. Check is a pure precondition; failures are recorded
// separately so rate-limited rejections never extend a lockout.
type LoginRateLimiter struct {
	mu          sync.Mutex
	maxFailures int
	window      time.Duration
	failures    map[string][]time.Time
	maxOrigins  int

	now func() time.Time
}

func NewLoginRateLimiter(maxFailures int, window time.Duration) *LoginRateLimiter {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}

	return &LoginRateLimiter{
		maxFailures: maxFailures,
		window:      window,
		failures:    make(map[string][]time.Time),
		maxOrigins:  limiterMaxOrigins,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Check prunes the origin's failure history to the trailing window and
// returns RateLimited once the threshold is met. It records nothing.
func (l *LoginRateLimiter) Check(origin string) error {
	now := l.now()
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := prune(l.failures[origin], threshold)
	if len(recent) == 0 {
		delete(l.failures, origin)
	} else {
		l.failures[origin] = recent
	}

	if len(recent) >= l.maxFailures {
		retryAfter := recent[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return apperr.RateLimited(fmt.Sprintf("too many failed login attempts, retry in %ds", int(retryAfter.Seconds())))
	}

	return nil
}

// RetryAfter reports how long the origin stays blocked. Zero means the
// origin is not currently limited.
func (l *LoginRateLimiter) RetryAfter(origin string) time.Duration {
	now := l.now()
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := prune(l.failures[origin], threshold)
	if len(recent) < l.maxFailures {
		return 0
	}

	retryAfter := recent[0].Add(l.window).Sub(now)
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return retryAfter
}

// RecordFailure appends the current timestamp to the origin's history.
// Callers invoke it only after a confirmed bad-credential outcome.
func (l *LoginRateLimiter) RecordFailure(origin string) {
	now := l.now()
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[origin] = append(prune(l.failures[origin], threshold), now)

	if len(l.failures) > l.maxOrigins {
		for key, history := range l.failures {
			if len(history) == 0 || history[len(history)-1].Before(threshold) {
				delete(l.failures, key)
			}
		}
	}
}

func prune(history []time.Time, threshold time.Time) []time.Time {
	kept := history[:0:0]
	for _, at := range history {
		if at.After(threshold) {
			kept = append(kept, at)
		}
	}
	return kept
}
