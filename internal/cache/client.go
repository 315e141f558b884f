// Package cache provides the TTL key/value layer used for memoization and
// for the quick-phase handoff between pipeline phases.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Publisher is implemented by clients that can fan out events.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// RedisClient implements Client on Redis. Every key is namespaced by prefix.
type RedisClient struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects using a redis:// URL and pings once.
func NewRedisClient(ctx context.Context, url, prefix string) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if prefix == "" {
		prefix = "lf:"
	}
	return &RedisClient{client: client, prefix: prefix}, nil
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisClient) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// DeleteByPrefix scans rather than KEYS so large keyspaces do not block Redis.
func (c *RedisClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis delete by prefix: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis delete by prefix: %w", err)
		}
	}
	return nil
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}

// Publish publishes a JSON-encoded message to a namespaced channel.
func (c *RedisClient) Publish(ctx context.Context, channel string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.client.Publish(ctx, c.prefix+channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe returns raw payloads from a namespaced channel until cancel is called.
func (c *RedisClient) Subscribe(ctx context.Context, channel string) (<-chan []byte, func()) {
	sub := c.client.Subscribe(ctx, c.prefix+channel)
	out := make(chan []byte, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				}
			}
		}
	}()
	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
}

// MemoryClient is the in-process fallback used when no Redis URL is configured.
type MemoryClient struct {
	mu      sync.RWMutex
	data    map[string]memoryEntry
	maxSize int
	seq     uint64
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	seq       uint64
}

func NewMemoryClient(maxSize int) *MemoryClient {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryClient{data: map[string]memoryEntry{}, maxSize: maxSize, now: time.Now}
}

func (c *MemoryClient) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.data[key]
	if !ok || c.expired(entry) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (c *MemoryClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxSize {
		c.evict()
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.seq++
	entry := memoryEntry{value: stored, seq: c.seq}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.data[key] = entry
	return nil
}

func (c *MemoryClient) Delete(ctx context.Context, key string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *MemoryClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

func (c *MemoryClient) Close() error {
	return nil
}

func (c *MemoryClient) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// evict drops expired entries, or the one closest to expiry when none are.
// evict drops expired entries, then the entry closest to expiry. When
// nothing expires the oldest write goes.
func (c *MemoryClient) evict() {
	var expiringKey, persistentKey string
	var soonest time.Time
	var oldestSeq uint64
	for key, entry := range c.data {
		if c.expired(entry) {
			delete(c.data, key)
			continue
		}
		if entry.expiresAt.IsZero() {
			if persistentKey == "" || entry.seq < oldestSeq {
				persistentKey, oldestSeq = key, entry.seq
			}
			continue
		}
		if expiringKey == "" || entry.expiresAt.Before(soonest) {
			expiringKey, soonest = key, entry.expiresAt
		}
	}
	if len(c.data) < c.maxSize {
		return
	}
	switch {
	case expiringKey != "":
		delete(c.data, expiringKey)
	case persistentKey != "":
		delete(c.data, persistentKey)
	}
}

// Open connects to Redis when url is set and falls back to memory otherwise.
func Open(ctx context.Context, url, prefix string) (Client, error) {
	if strings.TrimSpace(url) == "" {
		return NewMemoryClient(0), nil
	}
	rc, err := NewRedisClient(ctx, url, prefix)
	if err != nil {
		return nil, err
	}
	return rc, nil
}
