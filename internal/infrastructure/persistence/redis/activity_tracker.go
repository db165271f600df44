package redis

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// ActivityTracker counts active minutes per learner per local day.
//
// Every authenticated request marks the current minute in a per-day Set
// keyed by the learner-local date, so a learner hammering the API in one
// minute still counts as one active minute. A companion per-day Set
// indexes which learners were active at all, which is what the nightly
// rollup job iterates. Keys expire after TTLDailyActivity; the rollup
// persists the counts to Postgres before they age out.
type ActivityTracker struct {
	cache *Cache
}

// NewActivityTracker creates an ActivityTracker backed by the shared client.
func NewActivityTracker(cache *Cache) *ActivityTracker {
	return &ActivityTracker{cache: cache}
}

// activeLearnersKey indexes learners with any activity on a local day.
func activeLearnersKey(day string) string {
	return PrefixActivity + "learners:" + day
}

// RecordActivity marks one active minute. The caller passes the moment
// already shifted into the learner's timezone so day boundaries follow
// the learner's clock, not the server's.
func (t *ActivityTracker) RecordActivity(ctx context.Context, learnerID string, localNow time.Time) error {
	if learnerID == "" {
		return fmt.Errorf("failed to record activity: empty learner ID")
	}

	day := localNow.Format("2006-01-02")
	minute := localNow.Format("15:04")

	pipe := t.cache.Client().TxPipeline()
	minuteKey := ActivityKey(learnerID, day)
	dayKey := activeLearnersKey(day)
	pipe.SAdd(ctx, minuteKey, minute)
	pipe.Expire(ctx, minuteKey, TTLDailyActivity)
	pipe.SAdd(ctx, dayKey, learnerID)
	pipe.Expire(ctx, dayKey, TTLDailyActivity)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ActiveMinutes returns the distinct active-minute count for one
// learner on one local day (YYYY-MM-DD). Zero for untracked days.
func (t *ActivityTracker) ActiveMinutes(ctx context.Context, learnerID, day string) (int, error) {
	count, err := t.cache.Client().SCard(ctx, ActivityKey(learnerID, day)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count active minutes: %w", err)
	}
	return int(count), nil
}

// ActiveLearners returns the IDs of every learner with recorded
// activity on the given local day.
func (t *ActivityTracker) ActiveLearners(ctx context.Context, day string) ([]string, error) {
	ids, err := t.cache.Client().SMembers(ctx, activeLearnersKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active learners: %w", err)
	}
	return ids, nil
}
