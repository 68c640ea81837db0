// Package events provides an in-process feed of limiter decisions so callers
// (UI glue, audit logging) can observe denials, cooldowns, and sweeps without
// polling limiter state.
package events

import "time"

// Kind classifies a limit event.
type Kind string

const (
	// KindDenied means an admission check failed inside an unexhausted policy,
	// or the window was exhausted without a configured cooldown.
	KindDenied Kind = "denied"
	// KindBlocked means the key entered or sat in a cooldown.
	KindBlocked Kind = "blocked"
	// KindSwept means the background sweep removed an idle key.
	KindSwept Kind = "swept"
)

// Event describes a single limiter decision worth surfacing.
type Event struct {
	ID     string    // unique event ID, assigned by the broker when empty
	Kind   Kind      // what happened
	Key    string    // the limited key, e.g. "login:a@b.com"
	Policy string    // named policy if the event came through a named check, else empty
	At     time.Time // when it happened, assigned by the broker when zero
}
