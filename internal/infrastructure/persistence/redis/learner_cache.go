package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
)

// LearnerCache implements learner.Cache on the generic Redis cache.
type LearnerCache struct {
	cache *Cache
}

// NewLearnerCache creates a LearnerCache backed by the shared client.
func NewLearnerCache(cache *Cache) *LearnerCache {
	return &LearnerCache{cache: cache}
}

// Get reads a cached learner, nil on miss.
func (lc *LearnerCache) Get(ctx context.Context, id string) (*learner.Learner, error) {
	var l learner.Learner
	err := lc.cache.Get(ctx, LearnerKey(id), &l)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read learner cache: %w", err)
	}
	return &l, nil
}

// Set caches a learner with a TTL.
func (lc *LearnerCache) Set(ctx context.Context, l *learner.Learner, ttl time.Duration) error {
	if l == nil {
		return nil
	}
	if err := lc.cache.Set(ctx, LearnerKey(l.ID), l, ttl); err != nil {
		return fmt.Errorf("failed to cache learner: %w", err)
	}
	return nil
}

// Invalidate drops the cached learner.
func (lc *LearnerCache) Invalidate(ctx context.Context, id string) error {
	if err := lc.cache.Delete(ctx, LearnerKey(id)); err != nil {
		return fmt.Errorf("failed to invalidate learner cache: %w", err)
	}
	return nil
}
