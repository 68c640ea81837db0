package limiter

import (
	"context"
	"time"
)

// Store defines the interface for keeping fixed-window admission state.
//
// Check and Record are deliberately separate calls: a caller checks before
// attempting the guarded action and records only when the attempt actually
// happens. Check alone still seeds (or re-seeds) the window for the key, so a
// caller that checks without ever recording keeps resetting its own window.
// Pair every successful Check with a Record.
type Store interface {
	// Check decides whether an attempt under key is admissible per the policy.
	// It mutates the store to seed or reset the window and to enter cooldown,
	// but never increments the attempt count.
	Check(ctx context.Context, key string, p Policy) (Result, error)

	// Record counts one attempt against key, creating state if absent.
	Record(ctx context.Context, key string) error

	// Reset forgets all state for key. A no-op for unknown keys.
	Reset(ctx context.Context, key string) error

	// Clear forgets all state for every key.
	Clear(ctx context.Context) error
}

// entry holds the fixed-window state for a single key in the memory store.
type entry struct {
	attempts     int
	firstAttempt time.Time // start of the current window
	lastAttempt  time.Time // most recent recorded or seeded attempt
	blocked      bool
	blockedUntil time.Time // set whenever blocked is true
}
