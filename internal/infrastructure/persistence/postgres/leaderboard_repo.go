package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/leaderboard"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
// Snapshots are immutable; entries are stored as one JSONB document
// because they are only ever read whole.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// SaveSnapshot stores a snapshot.
func (r *LeaderboardRepository) SaveSnapshot(ctx context.Context, snapshot *leaderboard.Snapshot) error {
	entriesJSON, err := json.Marshal(snapshot.Entries)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot entries: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO leaderboard_snapshots (id, scope, snapshot_at, total_learners, total_xp, entries)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		snapshot.ID,
		snapshot.Scope.Key(),
		snapshot.SnapshotAt,
		snapshot.TotalLearners,
		snapshot.TotalXP,
		entriesJSON,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// GetLatestSnapshot returns the newest snapshot for a scope.
func (r *LeaderboardRepository) GetLatestSnapshot(ctx context.Context, scope leaderboard.Scope) (*leaderboard.Snapshot, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT id, scope, snapshot_at, total_learners, total_xp, entries
		FROM leaderboard_snapshots
		WHERE scope = $1
		ORDER BY snapshot_at DESC
		LIMIT 1
	`, scope.Key())

	return scanSnapshot(row, scope)
}

// GetPreviousSnapshot returns the snapshot taken immediately before the
// given one in the same scope. Used to compute rank changes.
func (r *LeaderboardRepository) GetPreviousSnapshot(ctx context.Context, snapshotID string) (*leaderboard.Snapshot, error) {
	var (
		scopeKey   string
		snapshotAt time.Time
	)
	err := r.conn.QueryRow(ctx,
		`SELECT scope, snapshot_at FROM leaderboard_snapshots WHERE id = $1`, snapshotID,
	).Scan(&scopeKey, &snapshotAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to locate snapshot: %w", err)
	}

	row := r.conn.QueryRow(ctx, `
		SELECT id, scope, snapshot_at, total_learners, total_xp, entries
		FROM leaderboard_snapshots
		WHERE scope = $1 AND snapshot_at < $2
		ORDER BY snapshot_at DESC
		LIMIT 1
	`, scopeKey, snapshotAt)

	return scanSnapshot(row, scopeFromKey(scopeKey))
}

// GetLearnerRank returns the learner's entry in the latest snapshot of
// a scope.
func (r *LeaderboardRepository) GetLearnerRank(ctx context.Context, learnerID string, scope leaderboard.Scope) (*leaderboard.Entry, error) {
	snapshot, err := r.GetLatestSnapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	entry := snapshot.GetByID(learnerID)
	if entry == nil {
		return nil, shared.ErrLeaderboardNotFound
	}
	return entry, nil
}

// ListSnapshots returns snapshot metadata for a scope within a time range.
func (r *LeaderboardRepository) ListSnapshots(ctx context.Context, scope leaderboard.Scope, from, to time.Time) ([]leaderboard.SnapshotMeta, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, snapshot_at, total_learners, total_xp
		FROM leaderboard_snapshots
		WHERE scope = $1 AND snapshot_at >= $2 AND snapshot_at <= $3
		ORDER BY snapshot_at DESC
	`, scope.Key(), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var metas []leaderboard.SnapshotMeta
	for rows.Next() {
		meta := leaderboard.SnapshotMeta{Scope: scope}
		if err := rows.Scan(&meta.ID, &meta.SnapshotAt, &meta.TotalLearners, &meta.TotalXP); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot meta: %w", err)
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// DeleteOldSnapshots removes snapshots older than the cutoff.
func (r *LeaderboardRepository) DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.conn.Exec(ctx,
		`DELETE FROM leaderboard_snapshots WHERE snapshot_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func scanSnapshot(row rowScanner, scope leaderboard.Scope) (*leaderboard.Snapshot, error) {
	var (
		s           leaderboard.Snapshot
		scopeKey    string
		entriesJSON []byte
	)

	err := row.Scan(&s.ID, &scopeKey, &s.SnapshotAt, &s.TotalLearners, &s.TotalXP, &entriesJSON)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	s.Scope = scope
	if err := json.Unmarshal(entriesJSON, &s.Entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot entries: %w", err)
	}

	return &s, nil
}

func scopeFromKey(key string) leaderboard.Scope {
	const coursePrefix = "course:"
	if len(key) > len(coursePrefix) && key[:len(coursePrefix)] == coursePrefix {
		return leaderboard.ScopeCourse(key[len(coursePrefix):])
	}
	return leaderboard.ScopeGlobal
}
