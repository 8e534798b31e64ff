package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackup gives the dedupe cache a shared, cross-process "mark once"
// check using Redis SETNX, so multiple chatrelay instances behind the same
// bridge don't double-process a message (spec.md §5 "process-global" shared
// stores; the in-memory map stays the default, per SPEC_FULL.md's domain
// stack — selected when CHATRELAY_REDIS_ADDR is set).
type RedisBackup struct {
	client *redis.Client
	prefix string
}

// NewRedisBackup builds a RedisBackup against addr (host:port).
func NewRedisBackup(addr string) *RedisBackup {
	return &RedisBackup{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "chatrelay:dedupe:",
	}
}

func (b *RedisBackup) Close() error { return b.client.Close() }

// TrySet atomically marks key as seen with the given ttl, returning true
// iff this call is the one that set it (i.e. it was previously absent or
// expired) — the same "mark once" contract DedupeCache.MarkOnce exposes
// locally, extended across processes.
func (b *RedisBackup) TrySet(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, b.prefix+key, 1, ttl).Result()
}

// WithRedisBackup layers backup in front of the in-memory map: MarkOnce
// first checks Redis (when set) and only consults the local map as a
// fallback if the Redis call errors, so a Redis outage degrades to
// single-process dedupe rather than failing closed.
func (c *DedupeCache) WithRedisBackup(backup *RedisBackup) *DedupeCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redis = backup
	return c
}
