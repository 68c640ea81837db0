package limiter

import (
	"context"
	_ "embed" // needed for go:embed
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

//go:embed check.lua
var redisCheckScript string

//go:embed record.lua
var redisRecordScript string

var (
	checkScript  = redis.NewScript(redisCheckScript)
	recordScript = redis.NewScript(redisRecordScript)
)

const redisKeyPrefix = "ratelimit:fw:"

// redisStore implements the Store interface using Redis. Entries live in
// hashes with an idle TTL in place of the memory store's sweep, so limits
// hold across process restarts and multiple instances.
type redisStore struct {
	client  redis.Cmdable // Cmdable for compatibility with ClusterClient, SentinelClient, etc.
	maxIdle time.Duration
}

// NewRedisStore creates a new Redis-backed fixed-window store.
// It expects a pre-configured redis.Cmdable (e.g., redis.Client or redis.ClusterClient).
func NewRedisStore(client redis.Cmdable) Store {
	return &redisStore{
		client:  client,
		maxIdle: DefaultMaxIdle,
	}
}

// Check implements the Store interface using a Lua script for atomicity.
// Store errors fail closed: the caller receives a denying zero Result along
// with the error.
func (s *redisStore) Check(ctx context.Context, key string, p Policy) (Result, error) {
	keys := []string{redisKeyPrefix + key}
	args := []any{
		time.Now().UnixMilli(),         // ARGV[1]: now
		p.Window.Milliseconds(),        // ARGV[2]: window
		p.MaxAttempts,                  // ARGV[3]: max attempts
		p.BlockDuration.Milliseconds(), // ARGV[4]: block duration
		s.maxIdle.Milliseconds(),       // ARGV[5]: idle ttl
	}

	result, err := checkScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis check script execution failed")
		return Result{}, fmt.Errorf("redis command failed for key %s: %w", key, err)
	}

	fields, ok := result.([]any)
	if !ok || len(fields) != 4 {
		log.Error().Str("key", key).Interface("result", result).Msg("redis check script returned unexpected shape")
		return Result{}, fmt.Errorf("unexpected result shape from redis script for key %s: %T", key, result)
	}

	allowed, aok := fields[0].(int64)
	remaining, rok := fields[1].(int64)
	resetIn, tok := fields[2].(int64)
	blocked, bok := fields[3].(int64)
	if !aok || !rok || !tok || !bok {
		return Result{}, fmt.Errorf("unexpected result types from redis script for key %s", key)
	}

	res := Result{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(resetIn) * time.Millisecond,
		Blocked:   blocked == 1,
	}
	if !res.Allowed {
		log.Warn().Str("key", key).Bool("blocked", res.Blocked).Dur("reset_in", res.ResetIn).Msg("redis rate limit denied")
	} else {
		log.Debug().Str("key", key).Int("remaining", res.Remaining).Msg("redis rate limit allowed")
	}
	return res, nil
}

// Record implements the Store interface using a Lua script for atomicity.
func (s *redisStore) Record(ctx context.Context, key string) error {
	keys := []string{redisKeyPrefix + key}
	args := []any{
		time.Now().UnixMilli(),
		s.maxIdle.Milliseconds(),
	}

	if err := recordScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis record script execution failed")
		return fmt.Errorf("redis command failed for key %s: %w", key, err)
	}
	return nil
}

// Reset implements the Store interface for Redis storage.
func (s *redisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del failed for key %s: %w", key, err)
	}
	return nil
}

// Clear implements the Store interface for Redis storage by scanning the
// limiter prefix. Not atomic across instances, acceptable for an
// administrative operation.
func (s *redisStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
