package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DedupeCache is a TTL-bounded set of seen (sender, timestamp, text) keys.
type DedupeCache struct {
	mu      sync.Mutex
	expires map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
	backup  *SQLiteBackup
	redis   *RedisBackup
}

// NewDedupeCache builds a cache with the given TTL.
func NewDedupeCache(ttl time.Duration) *DedupeCache {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &DedupeCache{
		expires: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithSQLiteBackup rehydrates the cache from backup's still-unexpired rows
// and records every future MarkOnce success to it, so a restarted process
// does not re-process messages it already saw (opt-in: spec.md §1's
// Non-goals exclude cross-restart persistence as a *requirement*, not as a
// forbidden feature — see SPEC_FULL.md domain stack).
func (c *DedupeCache) WithSQLiteBackup(backup *SQLiteBackup) *DedupeCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backup = backup
	if seeded, err := backup.Load(c.now()); err == nil {
		for k, exp := range seeded {
			c.expires[k] = exp
		}
	}
	return c
}

// DedupeKey builds the normalized key spec.md §4.1 step 5 and §8 specify:
// sender | timestamp | trim(text).
func DedupeKey(sender string, timestamp int64, text string) string {
	return sender + "|" + strconv.FormatInt(timestamp, 10) + "|" + strings.TrimSpace(text)
}

// MarkOnce returns true iff key is absent or its TTL has expired; on true it
// records a fresh expiry. Each call opportunistically purges expired keys.
func (c *DedupeCache) MarkOnce(key string) bool {
	c.mu.Lock()
	redisBackup := c.redis
	ttl := c.ttl
	c.mu.Unlock()

	if redisBackup != nil {
		if first, err := redisBackup.TrySet(context.Background(), key, ttl); err == nil {
			return first
		}
		// Redis unreachable: fall through to the local map so a shared-store
		// outage degrades to single-process dedupe instead of failing closed.
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeLocked(now)

	if exp, ok := c.expires[key]; ok && now.Before(exp) {
		return false
	}
	exp := now.Add(c.ttl)
	c.expires[key] = exp
	if c.backup != nil {
		_ = c.backup.Record(key, exp)
	}
	return true
}

// Purge removes every expired key and reports how many were removed. Not
// required for correctness (MarkOnce purges lazily) but exposed for the
// optional periodic compaction scheduler (SPEC_FULL.md ambient stack).
func (c *DedupeCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, exp := range c.expires {
		if !now.Before(exp) {
			delete(c.expires, k)
			n++
		}
	}
	return n
}

func (c *DedupeCache) purgeLocked(now time.Time) {
	for k, exp := range c.expires {
		if !now.Before(exp) {
			delete(c.expires, k)
		}
	}
}
