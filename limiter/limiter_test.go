package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parraconnect/ratelimit/events"
)

func TestDefaultPolicies(t *testing.T) {
	policies := DefaultPolicies()

	assert.Equal(t, Policy{MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute}, policies[PolicyLogin])
	assert.Equal(t, Policy{MaxAttempts: 3, Window: 60 * time.Minute, BlockDuration: 60 * time.Minute}, policies[PolicySignup])
	assert.Equal(t, Policy{MaxAttempts: 30, Window: time.Minute}, policies[PolicyChatMessage])
	assert.Equal(t, Policy{MaxAttempts: 20, Window: time.Minute}, policies[PolicyNoteCreation])
}

func TestKey(t *testing.T) {
	assert.Equal(t, "login:a@b.com", Key(PolicyLogin, "a@b.com"))
}

func TestPolicy_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, Policy{MaxAttempts: 1, Window: time.Second}.Validate())
	})
	t.Run("non-positive attempts", func(t *testing.T) {
		err := Policy{MaxAttempts: 0, Window: time.Second}.Validate()
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})
	t.Run("non-positive window", func(t *testing.T) {
		err := Policy{MaxAttempts: 1}.Validate()
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})
	t.Run("negative block duration", func(t *testing.T) {
		err := Policy{MaxAttempts: 1, Window: time.Second, BlockDuration: -time.Second}.Validate()
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})
}

func TestRateLimiter_CheckNamed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	rl := New(NewMemoryStore(WithNowFunc(clock.Now)))

	res, err := rl.CheckNamed(ctx, PolicyChatMessage, "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 29, res.Remaining)
	require.NoError(t, rl.RecordNamed(ctx, PolicyChatMessage, "user-1"))

	// the named check and a direct check on the formatted key share state
	res, err = rl.Check(ctx, Key(PolicyChatMessage, "user-1"), DefaultPolicies()[PolicyChatMessage])
	require.NoError(t, err)
	assert.Equal(t, 28, res.Remaining)
}

func TestRateLimiter_UnknownPolicy(t *testing.T) {
	ctx := context.Background()
	rl := New(NewMemoryStore())

	_, err := rl.CheckNamed(ctx, "no_such_policy", "x")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
	assert.ErrorIs(t, rl.RecordNamed(ctx, "no_such_policy", "x"), ErrUnknownPolicy)
}

func TestRateLimiter_InvalidPolicy(t *testing.T) {
	ctx := context.Background()
	rl := New(NewMemoryStore())

	_, err := rl.Check(ctx, "k", Policy{})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestRateLimiter_Events(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	broker := events.NewBroker()
	defer broker.Close()

	var got []events.Event
	broker.Subscribe(func(e events.Event) { got = append(got, e) })

	rl := New(NewMemoryStore(WithNowFunc(clock.Now)), WithEvents(broker))
	p := Policy{MaxAttempts: 1, Window: time.Minute}

	res, err := rl.Check(ctx, "k", p)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.NoError(t, rl.Record(ctx, "k"))
	assert.Empty(t, got) // allowed checks publish nothing

	res, err = rl.Check(ctx, "k", p)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Len(t, got, 1)
	assert.Equal(t, events.KindDenied, got[0].Kind)
	assert.Equal(t, "k", got[0].Key)

	// a blocking policy publishes a blocked event instead
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.RecordNamed(ctx, PolicyLogin, "a@b.com"))
	}
	res, err = rl.CheckNamed(ctx, PolicyLogin, "a@b.com")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	last := got[len(got)-1]
	assert.Equal(t, events.KindBlocked, last.Kind)
	assert.Equal(t, Key(PolicyLogin, "a@b.com"), last.Key)
	assert.Equal(t, PolicyLogin, last.Policy)
}

func TestRateLimiter_ResetAndClear(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	rl := New(NewMemoryStore(WithNowFunc(clock.Now)))
	p := Policy{MaxAttempts: 1, Window: time.Minute}

	require.NoError(t, rl.Record(ctx, "k"))
	res, err := rl.Check(ctx, "k", p)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	require.NoError(t, rl.Reset(ctx, "k"))
	res, err = rl.Check(ctx, "k", p)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, rl.Record(ctx, "k"))
	require.NoError(t, rl.Clear(ctx))
	res, err = rl.Check(ctx, "k", p)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestConfig_ValidateAndPrepare(t *testing.T) {
	t.Run("fills default policies", func(t *testing.T) {
		cfg := &Config{StorageType: StorageMemory}
		require.NoError(t, cfg.ValidateAndPrepare())
		assert.Len(t, cfg.Policies, 4)
		assert.Equal(t, 5, cfg.Policies[PolicyLogin].MaxAttempts)
	})

	t.Run("keeps overrides", func(t *testing.T) {
		cfg := &Config{
			StorageType: StorageMemory,
			Policies: map[string]Policy{
				PolicyLogin: {MaxAttempts: 10, Window: time.Minute},
			},
		}
		require.NoError(t, cfg.ValidateAndPrepare())
		assert.Equal(t, 10, cfg.Policies[PolicyLogin].MaxAttempts)
		assert.Equal(t, 3, cfg.Policies[PolicySignup].MaxAttempts)
	})

	t.Run("rejects bad storage type", func(t *testing.T) {
		cfg := &Config{StorageType: "carrier-pigeon"}
		assert.Error(t, cfg.ValidateAndPrepare())
	})

	t.Run("rejects invalid policy", func(t *testing.T) {
		cfg := &Config{
			StorageType: StorageMemory,
			Policies:    map[string]Policy{"broken": {MaxAttempts: -1, Window: time.Second}},
		}
		assert.ErrorIs(t, cfg.ValidateAndPrepare(), ErrInvalidPolicy)
	})
}
