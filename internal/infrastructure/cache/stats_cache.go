package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"outreach-service/internal/domain/entity"

	"github.com/redis/go-redis/v9"
)

// StatsKey is the Redis key of the cached stats document.
const StatsKey = "outreach:email_stats"

// RedisStatsCache caches EmailStats in Redis so every replica sees the same
// invalidations.
type RedisStatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStatsCache creates a new Redis stats cache
func NewRedisStatsCache(client redis.Cmdable, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl}
}

func (c *RedisStatsCache) Get(ctx context.Context) (*entity.EmailStats, error) {
	data, err := c.client.Get(ctx, StatsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached stats: %w", err)
	}

	var stats entity.EmailStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode cached stats: %w", err)
	}
	return &stats, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, stats *entity.EmailStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, StatsKey, data, c.ttl).Err()
}

func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, StatsKey).Err()
}

// MemoryStatsCache is the in-process fallback when Redis is not configured.
type MemoryStatsCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	stats     *entity.EmailStats
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryStatsCache creates a new in-process stats cache
func NewMemoryStatsCache(ttl time.Duration) *MemoryStatsCache {
	return &MemoryStatsCache{ttl: ttl, now: time.Now}
}

func (c *MemoryStatsCache) Get(ctx context.Context) (*entity.EmailStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats == nil || !c.now().Before(c.expiresAt) {
		return nil, nil
	}
	copied := *c.stats
	return &copied, nil
}

func (c *MemoryStatsCache) Set(ctx context.Context, stats *entity.EmailStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *stats
	c.stats = &copied
	c.expiresAt = c.now().Add(c.ttl)
	return nil
}

func (c *MemoryStatsCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = nil
	return nil
}
