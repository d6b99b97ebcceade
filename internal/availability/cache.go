package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"consular/internal/appointment"
	platformredis "consular/internal/platform/redis"
	"consular/internal/schedule"
	id "consular/pkg/domain"
)

// Cache holds short-lived computed availability. Staleness is bounded by the
// TTL and corrected at booking commit time by the conflict guard, so a cached
// read can at worst offer a slot that will be rejected with Overlap.
type Cache interface {
	Get(ctx context.Context, key string) ([]appointment.Slot, bool)
	Set(ctx context.Context, key string, slots []appointment.Slot)
	Delete(ctx context.Context, keys ...string)
}

// CacheKey builds the cache key for one availability query.
func CacheKey(org id.OrganizationID, country id.CountryCode, date schedule.Date, typ appointment.Type) string {
	return fmt.Sprintf("availability:%s:%s:%s:%s", org, country, date, typ)
}

// RedisCache is a Redis-backed availability cache.
type RedisCache struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates an availability cache with the given entry TTL.
func NewRedisCache(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]appointment.Slot, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []appointment.Slot
	if err := json.Unmarshal(payload, &slots); err != nil {
		c.logger.WarnContext(ctx, "corrupt availability cache entry", "key", key, "error", err)
		return nil, false
	}
	return slots, true
}

func (c *RedisCache) Set(ctx context.Context, key string, slots []appointment.Slot) {
	payload, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "availability cache write failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "availability cache invalidation failed", "error", err)
	}
}
