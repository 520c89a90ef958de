package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// CachedCalculator memoizes availability responses in Redis for a short TTL.
// Keys embed a per professional/date version counter, so invalidation is a
// cheap INCR instead of a key scan. Redis failures fall through to the
// wrapped calculator: the cache is never load bearing.
type CachedCalculator struct {
	inner  SlotFinder
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedCalculator wraps a slot finder with a Redis cache.
func NewCachedCalculator(inner SlotFinder, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedCalculator {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedCalculator{inner: inner, redis: redisClient, ttl: ttl, logger: logger}
}

func versionKey(professionalID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("avail:ver:%s:%s", professionalID, date.Format(time.DateOnly))
}

func (c *CachedCalculator) slotKey(req Request, version int64) string {
	return fmt.Sprintf("avail:%s:%s:%s:%d:v%d",
		req.ClinicID, req.ProfessionalID, req.Date.Format(time.DateOnly), req.DurationMinutes, version)
}

// Slots returns the cached response when fresh, computing and storing it
// otherwise.
func (c *CachedCalculator) Slots(ctx context.Context, req Request) (*Response, error) {
	if c.redis == nil {
		return c.inner.Slots(ctx, req)
	}

	version, err := c.redis.Get(ctx, versionKey(req.ProfessionalID, req.Date)).Int64()
	if err != nil && err != redis.Nil {
		c.logger.Warn("availability cache unavailable", "error", err)
		return c.inner.Slots(ctx, req)
	}

	key := c.slotKey(req, version)
	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil {
			return &resp, nil
		}
	}

	resp, err := c.inner.Slots(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("availability cache write failed", "error", err, "key", key)
		}
	}
	return resp, nil
}

// Invalidate bumps the version for the professional/date, orphaning every
// cached response for it. Orphans expire with their TTL.
func (c *CachedCalculator) Invalidate(ctx context.Context, professionalID uuid.UUID, date time.Time) {
	if c.redis == nil {
		return
	}
	key := versionKey(professionalID, date)
	if err := c.redis.Incr(ctx, key).Err(); err != nil {
		c.logger.Warn("availability cache invalidation failed", "error", err, "key", key)
		return
	}
	// Version keys only need to outlive the cached entries they orphan.
	_ = c.redis.Expire(ctx, key, 24*time.Hour).Err()
}
