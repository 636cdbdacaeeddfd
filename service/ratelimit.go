package service

import (
	"log/slog"
	"sync"
	"time"
)

// RateLimiter tracks admitted requests per client identity over a sliding
// window. Counts reset on process restart.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	limit    int           // admitted requests per window
	window   time.Duration // trailing window length
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records one request for the identity and reports whether it is
// admitted. Attempts older than the window no longer count; a rejected
// request is not charged against the window.
func (l *RateLimiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.attempts[identity][:0]
	for _, ts := range l.attempts[identity] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limit {
		l.attempts[identity] = recent
		slog.Warn("rate limit exceeded",
			"client_identity", identity,
			"window", l.window,
			"limit", l.limit,
		)
		return false
	}

	l.attempts[identity] = append(recent, now)
	return true
}
