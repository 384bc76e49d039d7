package repository

import (
	"context"
	"testing"
	"time"

	"renthaus/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisGuardRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	repo := NewRedisGuardRepository(client)
	ctx := context.Background()

	t.Run("ClaimThenReplay", func(t *testing.T) {
		val, claimed, err := repo.Claim(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed)
		assert.Empty(t, val)

		val, claimed, err = repo.Claim(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, claimed)
		assert.Empty(t, val, "in-progress marker")

		require.NoError(t, repo.Complete(ctx, "key-1", "order-1", time.Hour))

		val, claimed, err = repo.Claim(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, claimed)
		assert.Equal(t, "order-1", val)
	})

	t.Run("ReleaseAllowsRetry", func(t *testing.T) {
		_, claimed, err := repo.Claim(ctx, "key-2", time.Hour)
		require.NoError(t, err)
		require.True(t, claimed)

		require.NoError(t, repo.Release(ctx, "key-2"))
		assert.False(t, s.Exists(idempotencyPrefix+"key-2"))

		_, claimed, err = repo.Claim(ctx, "key-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("KeyExpires", func(t *testing.T) {
		_, claimed, err := repo.Claim(ctx, "key-3", time.Minute)
		require.NoError(t, err)
		require.True(t, claimed)

		s.FastForward(2 * time.Minute)

		_, claimed, err = repo.Claim(ctx, "key-3", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("RateLimit", func(t *testing.T) {
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, "orders:cust-1", limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, "orders:cust-1", limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, "orders:cust-1", limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Second)

		allowed, err = repo.CheckRateLimit(ctx, "orders:cust-1", limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisGuardRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisGuardRepository(nil)
		_, _, err := repo.Claim(ctx, "k", time.Second)
		assert.Error(t, err)
		assert.Error(t, repo.Complete(ctx, "k", "v", time.Second))
		assert.Error(t, repo.Release(ctx, "k"))
		_, err = repo.CheckRateLimit(ctx, "k", 1, time.Second)
		assert.Error(t, err)
	})

	t.Run("ServerDown", func(t *testing.T) {
		s, err := miniredis.Run()
		require.NoError(t, err)
		client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
		defer client.Close()
		s.Close()

		repo := NewRedisGuardRepository(client)
		_, _, err = repo.Claim(ctx, "k", time.Second)
		assert.Error(t, err)
		_, err = repo.CheckRateLimit(ctx, "k", 1, time.Second)
		assert.Error(t, err)
		assert.Error(t, Ping(ctx, client))
	})

	t.Run("CloseNil", func(t *testing.T) {
		assert.NoError(t, Close(nil))
	})
}
