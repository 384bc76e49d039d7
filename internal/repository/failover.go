package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"renthaus/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverGuardRepository prefers the primary (Redis) and switches to the
// fallback on error, probing the primary again once a minute.
type FailoverGuardRepository struct {
	primary   domain.GuardRepository
	fallback  domain.GuardRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverGuardRepository(primary, fallback domain.GuardRepository, logger *zerolog.Logger) *FailoverGuardRepository {
	return &FailoverGuardRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverGuardRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary guard repository failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverGuardRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverGuardRepository) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary guard repository recovered")
	}
}

func (r *FailoverGuardRepository) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if r.usePrimary() {
		val, ok, err := r.primary.Claim(ctx, key, ttl)
		if err == nil {
			r.recovered()
			return val, ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.Claim(ctx, key, ttl)
}

func (r *FailoverGuardRepository) Complete(ctx context.Context, key, value string, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.Complete(ctx, key, value, ttl)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Complete(ctx, key, value, ttl)
}

func (r *FailoverGuardRepository) Release(ctx context.Context, key string) error {
	if r.usePrimary() {
		err := r.primary.Release(ctx, key)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Release(ctx, key)
}

func (r *FailoverGuardRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
