package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parraconnect/ratelimit/events"
)

// MemoryStore implements the Store interface using an in-memory map.
// State is process-local and non-authoritative: limits do not survive a
// restart and do not hold across instances. Use the Redis store when the
// limit must actually be enforced fleet-wide.
type MemoryStore struct {
	mu    sync.Mutex
	state map[string]*entry

	now           func() time.Time
	sweepInterval time.Duration
	maxIdle       time.Duration
	broker        *events.Broker

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithNowFunc replaces the wall clock, for deterministic tests.
func WithNowFunc(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepInterval sets how often the background sweep runs.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithMaxIdle sets how long an untouched entry survives before the sweep
// removes it, regardless of blocked state.
func WithMaxIdle(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.maxIdle = d
		}
	}
}

// WithSweepEvents publishes a swept event for every key the sweep removes.
func WithSweepEvents(b *events.Broker) MemoryOption {
	return func(s *MemoryStore) {
		s.broker = b
	}
}

// NewMemoryStore creates a new in-memory fixed-window store.
// The sweep does not run until StartSweep is called.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		state:         make(map[string]*entry),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		maxIdle:       DefaultMaxIdle,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check implements the Store interface for memory storage.
func (s *MemoryStore) Check(ctx context.Context, key string, p Policy) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, exists := s.state[key]

	// active cooldown wins over everything else
	if exists && e.blocked && e.blockedUntil.After(now) {
		log.Debug().Str("key", key).Dur("reset_in", e.blockedUntil.Sub(now)).Msg("check denied, key in cooldown")
		return Result{Allowed: false, Remaining: 0, ResetIn: e.blockedUntil.Sub(now), Blocked: true}, nil
	}

	// missing or expired window: seed a fresh one, clearing any stale cooldown
	if !exists || now.Sub(e.firstAttempt) > p.Window {
		s.state[key] = &entry{firstAttempt: now, lastAttempt: now}
		log.Debug().Str("key", key).Int("remaining", p.MaxAttempts-1).Msg("check allowed, fresh window seeded")
		return Result{Allowed: true, Remaining: p.MaxAttempts - 1, ResetIn: p.Window}, nil
	}

	remaining := p.MaxAttempts - e.attempts
	resetIn := p.Window - now.Sub(e.firstAttempt)

	if e.attempts >= p.MaxAttempts {
		if p.BlockDuration > 0 {
			e.blocked = true
			e.blockedUntil = now.Add(p.BlockDuration)
			log.Warn().Str("key", key).Dur("block_duration", p.BlockDuration).Msg("window exhausted, entering cooldown")
			return Result{Allowed: false, Remaining: 0, ResetIn: p.BlockDuration, Blocked: true}, nil
		}
		log.Warn().Str("key", key).Dur("reset_in", resetIn).Msg("window exhausted")
		return Result{Allowed: false, Remaining: 0, ResetIn: resetIn}, nil
	}

	log.Debug().Str("key", key).Int("remaining", remaining-1).Dur("reset_in", resetIn).Msg("check allowed")
	return Result{Allowed: true, Remaining: remaining - 1, ResetIn: resetIn}, nil
}

// Record implements the Store interface for memory storage.
func (s *MemoryStore) Record(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, exists := s.state[key]
	if !exists {
		s.state[key] = &entry{attempts: 1, firstAttempt: now, lastAttempt: now}
		return nil
	}
	e.attempts++
	e.lastAttempt = now
	return nil
}

// Reset implements the Store interface for memory storage.
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, key)
	return nil
}

// Clear implements the Store interface for memory storage.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[string]*entry)
	return nil
}

// Len returns the number of tracked keys. Useful for tests and monitoring.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state)
}

// StartSweep starts the background sweep goroutine. The goroutine removes
// entries idle for longer than the max idle age and stops when ctx is
// cancelled or Stop is called.
func (s *MemoryStore) StartSweep(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Stop stops the sweep goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *MemoryStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// sweep removes entries whose last attempt is older than the max idle age.
// Blocked entries are removed too: a key that has not been touched for that
// long has long outlived any cooldown worth honoring.
func (s *MemoryStore) sweep() {
	s.mu.Lock()

	now := s.now()
	cutoff := now.Add(-s.maxIdle)
	var swept []string

	for key, e := range s.state {
		if e.lastAttempt.Before(cutoff) {
			delete(s.state, key)
			swept = append(swept, key)
		}
	}
	remaining := len(s.state)
	s.mu.Unlock()

	if len(swept) == 0 {
		return
	}

	log.Debug().Int("swept_keys", len(swept)).Int("remaining_keys", remaining).Msg("limiter sweep completed")

	if s.broker != nil {
		for _, key := range swept {
			s.broker.Publish(events.Event{Kind: events.KindSwept, Key: key, At: now})
		}
	}
}

// Compile-time interface verification.
var _ Store = (*MemoryStore)(nil)
