package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// GetOrCompute returns the cached value for key, or runs compute and stores
// its result. Cache failures only cost a recompute; compute errors are
// returned and never cached. A nil client disables caching.
func GetOrCompute[T any](ctx context.Context, c Client, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return compute(ctx)
	}
	log := zerolog.Ctx(ctx)
	if v, ok := GetJSON[T](ctx, c, key); ok {
		return v, nil
	}
	v, err := compute(ctx)
	if err != nil {
		return v, err
	}
	if err := SetJSON(ctx, c, key, v, ttl); err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
	}
	return v, nil
}

// GetJSON reads and decodes key. Misses, backend errors and undecodable
// payloads all report ok=false.
func GetJSON[T any](ctx context.Context, c Client, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	raw, err := c.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("cache_key", key).Msg("cache read failed, recomputing")
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("cache_key", key).Msg("cache entry undecodable, recomputing")
		return zero, false
	}
	return v, true
}

func SetJSON(ctx context.Context, c Client, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}
