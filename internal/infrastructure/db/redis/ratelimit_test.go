package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLimiter connects to REDIS_ADDR and skips when it is not set.
func newTestLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := Connect(context.Background(), Config{Addr: addr, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client)
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	for i := 0; i < 3; i++ {
		ok, retry, err := l.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
		assert.Zero(t, retry)
	}

	ok, retry, err := l.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Minute)
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	ok, _, err := l.Allow(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = l.Allow(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	time.Sleep(1100 * time.Millisecond)

	ok, _, err = l.Allow(ctx, key, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	a, b := "test:"+uuid.NewString(), "test:"+uuid.NewString()

	ok, _, err := l.Allow(ctx, a, 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = l.Allow(ctx, b, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
