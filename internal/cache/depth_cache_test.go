package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newRedisCache(t *testing.T) (*DepthCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewDepthCache(client, time.Minute, testLogger()), mr
}

func TestDepthCacheRedisRoundTrip(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetDepth(ctx, "near/usdc", 50000))

	depth, err := c.Depth(ctx, "near/usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), depth)
}

func TestDepthCacheMissReadsZero(t *testing.T) {
	c, _ := newRedisCache(t)

	depth, err := c.Depth(context.Background(), "near/usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestDepthCacheExpiry(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetDepth(ctx, "near/usdc", 1000))
	mr.FastForward(2 * time.Minute)

	depth, err := c.Depth(ctx, "near/usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestDepthCacheRejectsNegative(t *testing.T) {
	c, _ := newRedisCache(t)
	assert.Error(t, c.SetDepth(context.Background(), "near/usdc", -5))
}

func TestDepthCacheRedisDownDegrades(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetDepth(ctx, "near/usdc", 1000))

	mr.Close()

	// An unreachable Redis reads as insufficient data, never an error.
	depth, err := c.Depth(ctx, "near/usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestDepthCacheInMemoryFallback(t *testing.T) {
	c := NewDepthCache(nil, 50*time.Millisecond, testLogger())
	ctx := context.Background()

	require.NoError(t, c.SetDepth(ctx, "near/usdc", 777))
	depth, err := c.Depth(ctx, "near/usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(777), depth)

	time.Sleep(60 * time.Millisecond)
	depth, err = c.Depth(ctx, "near/usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}
