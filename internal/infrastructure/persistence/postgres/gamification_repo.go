package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/gamification"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements gamification.LedgerRepository for PostgreSQL.
// The ledger is append-only; the learner's CurrentXP is the denormalized sum.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// Append stores a ledger entry. The (learner, reason, source) unique
// constraint makes event replays idempotent.
func (r *LedgerRepository) Append(ctx context.Context, entry *gamification.LedgerEntry) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO xp_ledger (id, learner_id, amount, reason, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		entry.ID,
		entry.LearnerID,
		entry.Amount,
		string(entry.Reason),
		entry.SourceID,
		entry.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateOperation
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// ListByLearner returns the learner's ledger entries, newest first.
func (r *LedgerRepository) ListByLearner(ctx context.Context, learnerID string, limit int) ([]*gamification.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, learner_id, amount, reason, source_id, created_at
		FROM xp_ledger
		WHERE learner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*gamification.LedgerEntry
	for rows.Next() {
		var (
			e      gamification.LedgerEntry
			reason string
		)
		if err := rows.Scan(&e.ID, &e.LearnerID, &e.Amount, &reason, &e.SourceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Reason = gamification.Reason(reason)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// SumInWindow returns the XP the learner gained in [since, until).
func (r *LedgerRepository) SumInWindow(ctx context.Context, learnerID string, since, until time.Time) (int, error) {
	var sum int
	err := r.conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM xp_ledger
		WHERE learner_id = $1 AND created_at >= $2 AND created_at < $3
	`, learnerID, since, until).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT AWARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AwardRepository implements gamification.AwardRepository for PostgreSQL.
// The achievement catalog itself is static; only awards are stored.
type AwardRepository struct {
	conn *Connection
}

// NewAwardRepository creates a new AwardRepository.
func NewAwardRepository(conn *Connection) *AwardRepository {
	return &AwardRepository{conn: conn}
}

// Create stores an award.
func (r *AwardRepository) Create(ctx context.Context, award *gamification.Award) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO achievement_awards (learner_id, achievement_id, awarded_at)
		VALUES ($1, $2, $3)
	`, award.LearnerID, award.AchievementID, award.EarnedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyAwarded
		}
		return fmt.Errorf("failed to create award: %w", err)
	}
	return nil
}

// ListByLearner returns the learner's awards, newest first.
func (r *AwardRepository) ListByLearner(ctx context.Context, learnerID string) ([]*gamification.Award, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT learner_id, achievement_id, awarded_at
		FROM achievement_awards
		WHERE learner_id = $1
		ORDER BY awarded_at DESC
	`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}
	defer rows.Close()

	var awards []*gamification.Award
	for rows.Next() {
		var a gamification.Award
		if err := rows.Scan(&a.LearnerID, &a.AchievementID, &a.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		awards = append(awards, &a)
	}
	return awards, rows.Err()
}

// EarnedSet returns the IDs of the learner's earned achievements.
func (r *AwardRepository) EarnedSet(ctx context.Context, learnerID string) (map[string]bool, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT achievement_id FROM achievement_awards WHERE learner_id = $1`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earned achievements: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan achievement ID: %w", err)
		}
		earned[id] = true
	}
	return earned, rows.Err()
}
