// Package ratelimit implements a sliding-window attempt limiter, grounded
// on the teacher's RateLimiter (internal/services/ratelimit/limiter.go),
// generalized from gating wallet password attempts to gating the rx
// pipeline's per-counterparty key-search attempts (spec §4.4: decryption
// key search MUST be rate-limited per originator/recipient pair to bound
// the cost of a flood of unauthenticatable messages).
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a thread-safe sliding-window rate limiter keyed by an
// arbitrary string (a blockchain+address pair, in the rx pipeline's case).
type Limiter struct {
	maxAttempts int
	window      time.Duration
	attempts    map[string][]time.Time
	mu          sync.Mutex
}

// New creates a limiter allowing maxAttempts within the most recent window.
func New(maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string][]time.Time),
	}
}

// Allow reports whether another attempt for key is permitted right now,
// recording the attempt if so and pruning expired entries either way.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	valid := valid(l.attempts[key], now, l.window)

	if len(valid) >= l.maxAttempts {
		l.attempts[key] = valid
		return false
	}

	l.attempts[key] = append(valid, now)
	return true
}

// Remaining reports how many more attempts key has before it is throttled.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.maxAttempts - len(valid(l.attempts[key], time.Now(), l.window))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears a key's recorded attempts, used after a successful
// key-search resolves (spec: rate limiting only throttles failed search).
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

func valid(timestamps []time.Time, now time.Time, window time.Duration) []time.Time {
	out := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if now.Sub(ts) < window {
			out = append(out, ts)
		}
	}
	return out
}
