// Package slidingwindow implements a sliding-window-log rate limiter. Unlike
// the fixed window, old attempts age out continuously relative to now rather
// than all at once at a window boundary.
package slidingwindow

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Limiter is a keyed sliding-window-log limiter. Each key carries the
// timestamps of its admitted calls; a call is admitted while fewer than the
// maximum fall inside the trailing window.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	calls       map[string][]time.Time
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithNowFunc replaces the wall clock, for deterministic tests.
func WithNowFunc(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a sliding-window limiter admitting at most maxRequests calls
// per trailing window.
func New(maxRequests int, window time.Duration, opts ...Option) (*Limiter, error) {
	if maxRequests <= 0 {
		return nil, fmt.Errorf("slidingwindow: max_requests %d, must be positive", maxRequests)
	}
	if window <= 0 {
		return nil, fmt.Errorf("slidingwindow: window %s, must be positive", window)
	}
	l := &Limiter{
		maxRequests: maxRequests,
		window:      window,
		calls:       make(map[string][]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow reports whether a call under key is admitted right now, recording it
// when admitted. Expired timestamps are dropped either way, so rejected keys
// still release memory.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	timestamps := l.calls[key]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxRequests {
		l.calls[key] = kept
		log.Warn().Str("key", key).Int("in_window", len(kept)).Msg("sliding window limit exceeded")
		return false
	}

	kept = append(kept, now)
	l.calls[key] = kept
	log.Debug().Str("key", key).Int("in_window", len(kept)).Msg("sliding window call admitted")
	return true
}

// Remaining returns how many more calls the key could make right now.
// It does not mutate stored state.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	inWindow := 0
	for _, ts := range l.calls[key] {
		if ts.After(cutoff) {
			inWindow++
		}
	}

	if remaining := l.maxRequests - inWindow; remaining > 0 {
		return remaining
	}
	return 0
}

// Reset forgets the key's log. A no-op for unknown keys.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.calls, key)
}

// Clear forgets every key's log.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = make(map[string][]time.Time)
}
