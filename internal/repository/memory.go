package repository

import (
	"context"
	"sync"
	"time"
)

type guardEntry struct {
	value     string
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryGuardRepository is the in-process fallback used when Redis is not
// configured or unreachable. State is lost on restart.
type MemoryGuardRepository struct {
	mu         sync.Mutex
	keys       map[string]guardEntry
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

func NewMemoryGuardRepository() *MemoryGuardRepository {
	return &MemoryGuardRepository{
		keys:       make(map[string]guardEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemoryGuardRepository) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.keys[key]; ok && now.Before(e.expiresAt) {
		return e.value, false, nil
	}
	r.keys[key] = guardEntry{expiresAt: now.Add(ttl)}
	return "", true, nil
}

func (r *MemoryGuardRepository) Complete(ctx context.Context, key, value string, ttl time.Duration) error {
	r.mu.Lock()
	r.keys[key] = guardEntry{value: value, expiresAt: r.now().Add(ttl)}
	r.mu.Unlock()
	return nil
}

func (r *MemoryGuardRepository) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	delete(r.keys, key)
	r.mu.Unlock()
	return nil
}

func (r *MemoryGuardRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	} else {
		entry.count++
	}
	return entry.count <= limit, nil
}
