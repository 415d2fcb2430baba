// Package cache keeps rendered space calendars in Redis so repeated
// availability lookups for the same space and day skip the store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Calendar caches per-day calendar payloads keyed by space and date.
// A nil Redis client disables it entirely: every read misses and every
// write is a no-op, so the availability path keeps working when Redis
// is absent (the client constructor already returns nil when the ping
// fails).
type Calendar struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewCalendar builds the cache. Empty prefix and non-positive TTL get
// the defaults used across deployments.
func NewCalendar(rdb *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *Calendar {
	if log == nil {
		panic("nil logger passed to NewCalendar")
	}
	if prefix == "" {
		prefix = "calendario"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Calendar{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

func (c *Calendar) key(spaceID uint64, date string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, spaceID, date)
}

// GetDay loads a cached calendar into out and reports whether it was
// present. Any Redis or decoding problem is treated as a miss.
func (c *Calendar) GetDay(ctx context.Context, spaceID uint64, date string, out any) bool {
	if c.rdb == nil {
		return false
	}
	bs, err := c.rdb.Get(ctx, c.key(spaceID, date)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, out) == nil
}

// SetDay stores a rendered calendar with the configured TTL. Failures
// are logged and dropped; the caller already holds the fresh value.
func (c *Calendar) SetDay(ctx context.Context, spaceID uint64, date string, value any) {
	if c.rdb == nil {
		return
	}
	bs, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.SetEx(ctx, c.key(spaceID, date), bs, c.ttl).Err(); err != nil {
		c.log.Debug("caché de calendario no escrita", zap.Error(err))
	}
}

// InvalidateSpace drops every cached day for a space. Called after a
// mutation changes the space's occupancy. The keyspace is small
// (spaces times cached days), so a pattern lookup is fine here.
func (c *Calendar) InvalidateSpace(ctx context.Context, spaceID uint64) {
	if c.rdb == nil {
		return
	}
	keys, err := c.rdb.Keys(ctx, fmt.Sprintf("%s:%d:*", c.prefix, spaceID)).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Debug("caché de calendario no invalidada", zap.Error(err))
	}
}
