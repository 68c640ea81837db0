package limiter

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Errors returned by policy validation and named-policy lookup.
var (
	ErrInvalidPolicy  = errors.New("limiter: invalid policy")
	ErrUnknownPolicy  = errors.New("limiter: unknown policy name")
	ErrStoreUnhealthy = errors.New("limiter: store operation failed")
)

// Policy defines the admission rules for one class of guarded action.
type Policy struct {
	MaxAttempts   int           `yaml:"max_attempts"`   // allowed attempts per window, must be positive
	Window        time.Duration `yaml:"window"`         // fixed counting window, must be positive
	BlockDuration time.Duration `yaml:"block_duration"` // cooldown entered once the window is exhausted, zero disables blocking
}

// Validate checks the policy values. Limiter decisions themselves are never
// errors; only a malformed policy is.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts %d, must be positive", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: window %s, must be positive", ErrInvalidPolicy, p.Window)
	}
	if p.BlockDuration < 0 {
		return fmt.Errorf("%w: block_duration %s, must not be negative", ErrInvalidPolicy, p.BlockDuration)
	}
	return nil
}

// Result is the outcome of an admission check.
type Result struct {
	Allowed   bool          // whether the caller may perform the guarded action
	Remaining int           // attempts left in the current window after this one
	ResetIn   time.Duration // time until the window resets, or until the cooldown ends when Blocked
	Blocked   bool          // true while the key sits in cooldown
}

// Config holds the overall limiter configuration.
type Config struct {
	StorageType string            `yaml:"storage_type"` // "memory" or "redis"
	Policies    map[string]Policy `yaml:"policies"`
}

// ValidateAndPrepare validates the config and fills in the default policy
// table for any named policy the config does not override.
func (c *Config) ValidateAndPrepare() error {
	if c.StorageType != StorageMemory && c.StorageType != StorageRedis {
		return fmt.Errorf("invalid storage_type: %s, must be '%s' or '%s'", c.StorageType, StorageMemory, StorageRedis)
	}

	if c.Policies == nil {
		c.Policies = make(map[string]Policy)
	}
	for name, p := range DefaultPolicies() {
		if _, ok := c.Policies[name]; !ok {
			c.Policies[name] = p
		}
	}

	for name, p := range c.Policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("policy '%s': %w", name, err)
		}
	}

	log.Debug().Int("policies", len(c.Policies)).Str("storage_type", c.StorageType).Msg("limiter config validated")
	return nil
}
