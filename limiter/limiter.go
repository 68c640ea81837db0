package limiter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/parraconnect/ratelimit/events"
)

// RateLimiter binds a store to the named policy table and publishes limit
// events for denied and blocked checks.
//
// The Check/Record split is part of the caller contract: check before the
// guarded action, record only when the attempt actually happens. A check
// without a matching record keeps re-seeding the key's window, so the limit
// never engages.
type RateLimiter struct {
	store    Store
	policies map[string]Policy
	broker   *events.Broker
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithPolicies replaces the default named policy table.
func WithPolicies(policies map[string]Policy) Option {
	return func(rl *RateLimiter) {
		if policies != nil {
			rl.policies = policies
		}
	}
}

// WithEvents publishes denied and blocked events to the broker.
func WithEvents(b *events.Broker) Option {
	return func(rl *RateLimiter) {
		rl.broker = b
	}
}

// New creates a RateLimiter over the given store, seeded with the default
// policy table unless WithPolicies overrides it.
func New(store Store, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		store:    store,
		policies: DefaultPolicies(),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Check decides whether an attempt under key is admissible per the policy.
// The decision is never an error; an error means the policy is malformed or
// the store failed (Redis backend), in which case the caller should deny.
func (rl *RateLimiter) Check(ctx context.Context, key string, p Policy) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	res, err := rl.store.Check(ctx, key, p)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("rate limit check failed")
		return Result{}, fmt.Errorf("%w: %w", ErrStoreUnhealthy, err)
	}

	if !res.Allowed {
		rl.publish(key, "", res)
	}
	return res, nil
}

// Record counts one attempt against key.
func (rl *RateLimiter) Record(ctx context.Context, key string) error {
	if err := rl.store.Record(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("rate limit record failed")
		return fmt.Errorf("%w: %w", ErrStoreUnhealthy, err)
	}
	return nil
}

// CheckNamed runs Check under a named policy for the given subject, using the
// conventional <policy>:<subject> key. Returns ErrUnknownPolicy for names
// missing from the table.
func (rl *RateLimiter) CheckNamed(ctx context.Context, policy, subject string) (Result, error) {
	p, ok := rl.policies[policy]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownPolicy, policy)
	}

	key := Key(policy, subject)
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	res, err := rl.store.Check(ctx, key, p)
	if err != nil {
		log.Error().Err(err).Str("key", key).Str("policy", policy).Msg("rate limit check failed")
		return Result{}, fmt.Errorf("%w: %w", ErrStoreUnhealthy, err)
	}

	if !res.Allowed {
		rl.publish(key, policy, res)
	}
	return res, nil
}

// RecordNamed counts one attempt for the subject under the named policy's key.
func (rl *RateLimiter) RecordNamed(ctx context.Context, policy, subject string) error {
	if _, ok := rl.policies[policy]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPolicy, policy)
	}
	return rl.Record(ctx, Key(policy, subject))
}

// Reset forgets all state for key. A no-op for unknown keys.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.store.Reset(ctx, key)
}

// Clear forgets all limiter state.
func (rl *RateLimiter) Clear(ctx context.Context) error {
	return rl.store.Clear(ctx)
}

// Policy returns the named policy and whether it exists in the table.
func (rl *RateLimiter) Policy(name string) (Policy, bool) {
	p, ok := rl.policies[name]
	return p, ok
}

func (rl *RateLimiter) publish(key, policy string, res Result) {
	if rl.broker == nil {
		return
	}
	kind := events.KindDenied
	if res.Blocked {
		kind = events.KindBlocked
	}
	rl.broker.Publish(events.Event{Kind: kind, Key: key, Policy: policy})
}
