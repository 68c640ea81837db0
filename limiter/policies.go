package limiter

import (
	"fmt"
	"time"
)

// DefaultPolicies returns the policy table the application forms bind to by
// convention. The values are part of the caller contract: login and signup
// throttle credential guessing with a cooldown, chat and note policies only
// smooth bursts and never block.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicyLogin: {
			MaxAttempts:   5,
			Window:        15 * time.Minute,
			BlockDuration: 30 * time.Minute,
		},
		PolicySignup: {
			MaxAttempts:   3,
			Window:        60 * time.Minute,
			BlockDuration: 60 * time.Minute,
		},
		PolicyChatMessage: {
			MaxAttempts: 30,
			Window:      1 * time.Minute,
		},
		PolicyNoteCreation: {
			MaxAttempts: 20,
			Window:      1 * time.Minute,
		},
	}
}

// Key formats the store key for a named policy and subject.
// Format: <policy>:<subject>, e.g. "login:a@b.com".
func Key(policy, subject string) string {
	return fmt.Sprintf("%s:%s", policy, subject)
}
