package ratelimit_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nft-checkout/internal/ratelimit"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlidingWindowAdmitsUpToLimit(t *testing.T) {
	_, client := newRedis(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.SlidingWindow{Client: client, Prefix: "test:", Now: func() time.Time { return now }}
	ctx := context.Background()
	window := 10 * time.Second

	allowed, remaining, reset, err := limiter.Allow(ctx, "ip:1", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)
	require.True(t, reset.Equal(now.Add(window)))

	now = now.Add(4 * time.Second)
	allowed, remaining, reset, err = limiter.Allow(ctx, "ip:1", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.Equal(now.Add(-4*time.Second).Add(window)), "reset follows the oldest event")

	allowed, remaining, _, err = limiter.Allow(ctx, "ip:1", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	allowed, _, _, err = limiter.Allow(ctx, "ip:2", window, 2)
	require.NoError(t, err)
	require.True(t, allowed, "keys are independent")
}

func TestSlidingWindowSlidesAndIgnoresDenials(t *testing.T) {
	_, client := newRedis(t)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter := ratelimit.SlidingWindow{Client: client, Prefix: "test:", Now: func() time.Time { return now }}
	ctx := context.Background()
	window := 10 * time.Second

	for _, offset := range []time.Duration{0, 6 * time.Second} {
		now = start.Add(offset)
		allowed, _, _, err := limiter.Allow(ctx, "ip", window, 2)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	for i := 0; i < 5; i++ {
		now = start.Add(8 * time.Second)
		allowed, _, _, err := limiter.Allow(ctx, "ip", window, 2)
		require.NoError(t, err)
		require.False(t, allowed)
	}

	now = start.Add(11 * time.Second)
	allowed, remaining, reset, err := limiter.Allow(ctx, "ip", window, 2)
	require.NoError(t, err)
	require.True(t, allowed, "the first event left the window")
	require.Zero(t, remaining)
	require.True(t, reset.Equal(start.Add(16*time.Second)))

	members, err := client.ZCard(ctx, "test:ip").Result()
	require.NoError(t, err)
	require.Equal(t, int64(2), members)
}

func TestSlidingWindowExpiresIdleKeys(t *testing.T) {
	mr, client := newRedis(t)
	limiter := ratelimit.SlidingWindow{Client: client, Prefix: "test:"}

	_, _, _, err := limiter.Allow(context.Background(), "ip", 2*time.Second, 3)
	require.NoError(t, err)
	require.True(t, mr.Exists("test:ip"))
	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("test:ip"))
}

func TestSlidingWindowWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := ratelimit.SlidingWindow{}.Allow(context.Background(), "key", time.Second, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}
