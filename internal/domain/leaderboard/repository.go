package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists snapshots and serves ranking queries. Postgres
// implements it; the rebuild job writes, the query layer reads.
type Repository interface {
	// SaveSnapshot stores a snapshot and its entries.
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetLatestSnapshot returns the newest snapshot for a scope, or
	// ErrSnapshotNotFound.
	GetLatestSnapshot(ctx context.Context, scope Scope) (*Snapshot, error)

	// GetPreviousSnapshot returns the snapshot immediately before the
	// given one in the same scope, for rank-change computation.
	GetPreviousSnapshot(ctx context.Context, snapshotID string) (*Snapshot, error)

	// GetLearnerRank returns a learner's entry from the latest
	// snapshot of the scope, nil when unranked.
	GetLearnerRank(ctx context.Context, learnerID string, scope Scope) (*Entry, error)

	// ListSnapshots lists snapshot metadata for a scope in a window.
	ListSnapshots(ctx context.Context, scope Scope, from, to time.Time) ([]SnapshotMeta, error)

	// DeleteOldSnapshots prunes snapshots older than the cutoff and
	// returns the count removed. The cleanup job calls it.
	DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error)
}

// Cache is the hot path for top-N and single-rank reads. Redis sorted
// sets implement it; a miss falls through to Repository.
type Cache interface {
	// GetTop reads the cached top-N, nil on miss.
	GetTop(ctx context.Context, scope Scope, limit int) ([]*Entry, error)

	// SetTop caches the ranked entries with a TTL.
	SetTop(ctx context.Context, scope Scope, entries []*Entry, ttl time.Duration) error

	// GetRank reads a learner's cached entry, nil on miss.
	GetRank(ctx context.Context, learnerID string, scope Scope) (*Entry, error)

	// Invalidate drops the cache for a scope.
	Invalidate(ctx context.Context, scope Scope) error
}
