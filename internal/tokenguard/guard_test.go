package tokenguard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payment-gateway/internal/logger"
)

// setupTestRedis creates a Redis client backed by miniredis, so tests need
// no real Redis server.
func setupTestRedis(t *testing.T) *Guard {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewGuard(client, logger.NewTestLogger())
}

func TestConsumeFreshToken(t *testing.T) {
	guard := setupTestRedis(t)

	ok, err := guard.Consume(context.Background(), "cnon:fresh-token")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsumeRefusesReusedToken(t *testing.T) {
	guard := setupTestRedis(t)
	ctx := context.Background()

	ok, err := guard.Consume(ctx, "cnon:token-1")
	require.NoError(t, err)
	require.True(t, ok)

	// Same token on a second charge attempt must be refused.
	ok, err = guard.Consume(ctx, "cnon:token-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different token is unaffected.
	ok, err = guard.Consume(ctx, "cnon:token-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseAllowsRetryWithSameToken(t *testing.T) {
	guard := setupTestRedis(t)
	ctx := context.Background()

	ok, err := guard.Consume(ctx, "cnon:token-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, guard.Release(ctx, "cnon:token-1"))

	ok, err = guard.Consume(ctx, "cnon:token-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
