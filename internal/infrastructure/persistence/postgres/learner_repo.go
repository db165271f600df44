// Package postgres implements the PostgreSQL persistence layer for RianHub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LearnerRepository implements learner.Repository for PostgreSQL.
type LearnerRepository struct {
	conn *Connection
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

const learnerColumns = `
	id, email, password_hash, display_name, role, status, current_xp,
	current_streak, best_streak, last_activity_at, last_active_day,
	preferences, created_at, updated_at
`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new learner.
func (r *LearnerRepository) Create(ctx context.Context, l *learner.Learner) error {
	query := `
		INSERT INTO learners (
			id, email, password_hash, display_name, role, status, current_xp,
			current_streak, best_streak, last_activity_at, last_active_day,
			preferences, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	prefsJSON, err := json.Marshal(l.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		l.ID,
		string(l.Email),
		l.PasswordHash,
		l.DisplayName,
		string(l.Role),
		string(l.Status),
		int(l.CurrentXP),
		l.CurrentStreak,
		l.BestStreak,
		nullTime(l.LastActivityAt),
		l.LastActiveDay,
		prefsJSON,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrLearnerAlreadyExists
		}
		return fmt.Errorf("failed to create learner: %w", err)
	}

	return nil
}

// GetByID returns a learner by internal ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id string) (*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE id = $1 AND deleted_at IS NULL`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanLearner(row)
}

// GetByEmail returns a learner by normalized email.
func (r *LearnerRepository) GetByEmail(ctx context.Context, email string) (*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE email = $1 AND deleted_at IS NULL`

	row := r.conn.QueryRow(ctx, query, email)
	return r.scanLearner(row)
}

// GetByIDs returns learners for the given IDs. Missing IDs are skipped.
func (r *LearnerRepository) GetByIDs(ctx context.Context, ids []string) ([]*learner.Learner, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + learnerColumns + ` FROM learners WHERE id = ANY($1) AND deleted_at IS NULL`

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query learners: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// Update persists learner changes.
func (r *LearnerRepository) Update(ctx context.Context, l *learner.Learner) error {
	query := `
		UPDATE learners SET
			email = $1,
			password_hash = $2,
			display_name = $3,
			role = $4,
			status = $5,
			current_xp = $6,
			current_streak = $7,
			best_streak = $8,
			last_activity_at = $9,
			last_active_day = $10,
			preferences = $11,
			updated_at = $12
		WHERE id = $13 AND deleted_at IS NULL
	`

	prefsJSON, err := json.Marshal(l.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	result, err := r.conn.Exec(ctx, query,
		string(l.Email),
		l.PasswordHash,
		l.DisplayName,
		string(l.Role),
		string(l.Status),
		int(l.CurrentXP),
		l.CurrentStreak,
		l.BestStreak,
		nullTime(l.LastActivityAt),
		l.LastActiveDay,
		prefsJSON,
		time.Now().UTC(),
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update learner: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrLearnerNotFound
	}

	return nil
}

// Delete soft-deletes the learner.
func (r *LearnerRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE learners SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.conn.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete learner: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrLearnerNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing
// ─────────────────────────────────────────────────────────────────────────────

// List returns learners with the given options.
func (r *LearnerRepository) List(ctx context.Context, opts learner.ListOptions) ([]*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE deleted_at IS NULL ` +
		orderClause(opts) + ` LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list learners: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// ListByStatus returns learners with the given status.
func (r *LearnerRepository) ListByStatus(ctx context.Context, status learner.Status, opts learner.ListOptions) ([]*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE status = $1 AND deleted_at IS NULL ` +
		orderClause(opts) + ` LIMIT $2 OFFSET $3`

	rows, err := r.conn.Query(ctx, query, string(status), limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list learners by status: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// ListInactiveSince returns active learners whose last activity is older
// than the given number of days.
func (r *LearnerRepository) ListInactiveSince(ctx context.Context, days int, opts learner.ListOptions) ([]*learner.Learner, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -days)

	query := `
		SELECT ` + learnerColumns + `
		FROM learners
		WHERE status = 'active'
		  AND deleted_at IS NULL
		  AND (last_activity_at IS NULL OR last_activity_at < $1)
		ORDER BY last_activity_at ASC NULLS FIRST
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, threshold, limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive learners: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// Count returns the total number of non-deleted learners.
func (r *LearnerRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM learners WHERE deleted_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count learners: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *LearnerRepository) scanLearner(row rowScanner) (*learner.Learner, error) {
	var (
		l              learner.Learner
		email          string
		role, status   string
		xp             int
		lastActivityAt *time.Time
		prefsJSON      []byte
	)

	err := row.Scan(
		&l.ID,
		&email,
		&l.PasswordHash,
		&l.DisplayName,
		&role,
		&status,
		&xp,
		&l.CurrentStreak,
		&l.BestStreak,
		&lastActivityAt,
		&l.LastActiveDay,
		&prefsJSON,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("failed to scan learner: %w", err)
	}

	l.Email = shared.Email(email)
	l.Role = learner.Role(role)
	l.Status = learner.Status(status)
	l.CurrentXP = shared.XP(xp)
	if lastActivityAt != nil {
		l.LastActivityAt = *lastActivityAt
	}

	if err := json.Unmarshal(prefsJSON, &l.Preferences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}

	return &l, nil
}

func (r *LearnerRepository) scanLearners(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]*learner.Learner, error) {
	var learners []*learner.Learner
	for rows.Next() {
		l, err := r.scanLearner(rows)
		if err != nil {
			return nil, err
		}
		learners = append(learners, l)
	}
	return learners, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Query helpers
// ─────────────────────────────────────────────────────────────────────────────

func orderClause(opts learner.ListOptions) string {
	column := "created_at"
	switch opts.OrderBy {
	case "xp":
		column = "current_xp"
	case "last_activity":
		column = "last_activity_at"
	}

	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}

	return fmt.Sprintf("ORDER BY %s %s", column, direction)
}

func limitOf(opts learner.ListOptions) int {
	if opts.Limit <= 0 {
		return learner.DefaultListOptions().Limit
	}
	return opts.Limit
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
