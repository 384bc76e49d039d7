package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockGuard) Complete(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockGuard) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockGuard) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverGuardRepository(t *testing.T) {
	primary := new(mockGuard)
	fallback := new(mockGuard)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverGuardRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Claim", ctx, "a", time.Hour).Return("", true, nil).Once()

		_, claimed, err := repo.Claim(ctx, "a", time.Hour)
		assert.NoError(t, err)
		assert.True(t, claimed)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Claim", ctx, "b", time.Hour).Return("", false, errors.New("fail")).Once()
		fallback.On("Claim", ctx, "b", time.Hour).Return("", true, nil).Once()

		_, claimed, err := repo.Claim(ctx, "b", time.Hour)
		assert.NoError(t, err)
		assert.True(t, claimed)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownSkipsPrimary", func(t *testing.T) {
		fallback.On("Complete", ctx, "b", "order-1", time.Hour).Return(nil).Once()

		assert.NoError(t, repo.Complete(ctx, "b", "order-1", time.Hour))
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "Complete", ctx, "b", "order-1", time.Hour)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("CheckRateLimit", ctx, "ip", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "ip", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("Release", ctx, "c").Return(errors.New("still fail")).Once()
		fallback.On("Release", ctx, "c").Return(nil).Once()

		assert.NoError(t, repo.Release(ctx, "c"))
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RateLimitFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "ip2", 5, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "ip2", 5, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "ip2", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.isDown.Load())
	})
}
