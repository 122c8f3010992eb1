package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const depthKeyPrefix = "depth:"

// DepthCache stores per-pair liquidity depth, refreshed out-of-band by a
// keeper. Redis backs the cache when available; otherwise an in-memory map
// with the same TTL semantics is used. A missing or expired entry reads as
// zero depth, which consumers treat as insufficient data rather than an
// error.
type DepthCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	mu    sync.RWMutex
	local map[string]localDepth
}

type localDepth struct {
	depth     int64
	expiresAt time.Time
}

func NewDepthCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *DepthCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DepthCache{
		client: client,
		ttl:    ttl,
		logger: logger,
		local:  make(map[string]localDepth),
	}
}

// SetDepth stores the liquidity depth for a pair.
func (c *DepthCache) SetDepth(ctx context.Context, pairKey string, depth int64) error {
	if depth < 0 {
		return fmt.Errorf("depth must be non-negative, got %d", depth)
	}
	if c.client != nil {
		if err := c.client.Set(ctx, depthKeyPrefix+pairKey, depth, c.ttl).Err(); err != nil {
			return fmt.Errorf("failed to store depth: %w", err)
		}
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[pairKey] = localDepth{depth: depth, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

// Depth returns the cached depth for a pair. Zero means no usable data.
func (c *DepthCache) Depth(ctx context.Context, pairKey string) (int64, error) {
	if c.client != nil {
		val, err := c.client.Get(ctx, depthKeyPrefix+pairKey).Result()
		if err == redis.Nil {
			return 0, nil
		}
		if err != nil {
			c.logger.WithError(err).WithField("pair", pairKey).Warn("Depth cache read failed")
			return 0, nil
		}
		depth, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			c.logger.WithError(err).WithField("pair", pairKey).Warn("Corrupt depth cache entry")
			return 0, nil
		}
		return depth, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.local[pairKey]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.depth, nil
}
