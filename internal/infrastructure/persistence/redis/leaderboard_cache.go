package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rianlab/rianhub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.Cache on Redis.
//
// Per scope it keeps two keys with a shared TTL:
//   - Sorted Set  "leaderboard:{scope}:xp"      learnerID -> XP, for ordering
//   - Hash        "leaderboard:{scope}:entries" learnerID -> Entry JSON
//
// The rebuild job writes a full ranked snapshot through SetTop; reads
// that miss fall through to the Postgres snapshot repository.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a LeaderboardCache backed by the shared client.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

func leaderboardRankKey(scope leaderboard.Scope) string {
	return LeaderboardKey(scope.Key()) + ":xp"
}

func leaderboardEntryKey(scope leaderboard.Scope) string {
	return LeaderboardKey(scope.Key()) + ":entries"
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// GetTop reads the cached top-N entries in rank order. A cold scope
// returns nil with no error so the caller can fall through.
func (lc *LeaderboardCache) GetTop(ctx context.Context, scope leaderboard.Scope, limit int) ([]*leaderboard.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	client := lc.cache.Client()

	ids, err := client.ZRevRange(ctx, leaderboardRankKey(scope), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard ranking: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := client.HMGet(ctx, leaderboardEntryKey(scope), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard entries: %w", err)
	}

	entries := make([]*leaderboard.Entry, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			// The hash expired between the two reads. Treat the whole
			// scope as a miss rather than serve a partial page.
			return nil, nil
		}
		var entry leaderboard.Entry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode leaderboard entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// SetTop replaces the cached ranking for a scope with a full ranked
// snapshot. Both keys are rewritten atomically in one transaction so
// readers never observe the sorted set without its entry hash.
func (lc *LeaderboardCache) SetTop(ctx context.Context, scope leaderboard.Scope, entries []*leaderboard.Entry, ttl time.Duration) error {
	rankKey := leaderboardRankKey(scope)
	entryKey := leaderboardEntryKey(scope)

	members := make([]redis.Z, 0, len(entries))
	fields := make(map[string]interface{}, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode leaderboard entry: %w", err)
		}
		members = append(members, redis.Z{Score: float64(entry.XP), Member: entry.LearnerID})
		fields[entry.LearnerID] = data
	}

	pipe := lc.cache.Client().TxPipeline()
	pipe.Del(ctx, rankKey, entryKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, rankKey, members...)
		pipe.HSet(ctx, entryKey, fields)
		pipe.Expire(ctx, rankKey, ttl)
		pipe.Expire(ctx, entryKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache leaderboard: %w", err)
	}
	return nil
}

// GetRank reads one learner's cached entry, nil on miss.
func (lc *LeaderboardCache) GetRank(ctx context.Context, learnerID string, scope leaderboard.Scope) (*leaderboard.Entry, error) {
	data, err := lc.cache.Client().HGet(ctx, leaderboardEntryKey(scope), learnerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard rank: %w", err)
	}

	var entry leaderboard.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard entry: %w", err)
	}
	return &entry, nil
}

// Invalidate drops the cached ranking for a scope.
func (lc *LeaderboardCache) Invalidate(ctx context.Context, scope leaderboard.Scope) error {
	if err := lc.cache.Delete(ctx, leaderboardRankKey(scope), leaderboardEntryKey(scope)); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard cache: %w", err)
	}
	return nil
}
