package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION CACHE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationCache caches the unread badge count per learner. The
// count changes often and is read on every app open, so it gets a
// short TTL instead of explicit invalidation on reads.
type NotificationCache struct {
	cache *Cache
}

// NewNotificationCache creates a notification cache.
func NewNotificationCache(cache *Cache) *NotificationCache {
	return &NotificationCache{cache: cache}
}

// GetUnreadCount returns the cached count. found is false on a miss.
func (c *NotificationCache) GetUnreadCount(ctx context.Context, learnerID string) (count int, found bool, err error) {
	val, err := c.cache.Client().Get(ctx, UnreadCountKey(learnerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read unread count: %w", err)
	}

	count, err = strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return count, true, nil
}

// SetUnreadCount stores the count with the standard short TTL.
func (c *NotificationCache) SetUnreadCount(ctx context.Context, learnerID string, count int) error {
	err := c.cache.Client().Set(ctx, UnreadCountKey(learnerID), strconv.Itoa(count), TTLUnreadCount).Err()
	if err != nil {
		return fmt.Errorf("failed to cache unread count: %w", err)
	}
	return nil
}

// InvalidateUnreadCount drops the cached count after a write.
func (c *NotificationCache) InvalidateUnreadCount(ctx context.Context, learnerID string) error {
	if err := c.cache.Delete(ctx, UnreadCountKey(learnerID)); err != nil {
		return fmt.Errorf("failed to invalidate unread count: %w", err)
	}
	return nil
}
