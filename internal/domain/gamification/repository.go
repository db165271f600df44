package gamification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository is the append-only XP grant log.
type LedgerRepository interface {
	// Append writes a grant. Returns shared.ErrDuplicateOperation when
	// an entry with the same (learner, reason, source) already exists,
	// so retried event handlers stay idempotent.
	Append(ctx context.Context, entry *LedgerEntry) error

	ListByLearner(ctx context.Context, learnerID string, limit int) ([]*LedgerEntry, error)

	// SumInWindow totals XP earned by a learner in [since, until). The
	// daily analytics rollup uses it.
	SumInWindow(ctx context.Context, learnerID string, since, until time.Time) (int, error)
}

// AwardRepository persists earned achievements.
type AwardRepository interface {
	// Create returns shared.ErrAlreadyAwarded on a duplicate
	// (learner, achievement) pair.
	Create(ctx context.Context, award *Award) error

	ListByLearner(ctx context.Context, learnerID string) ([]*Award, error)

	// EarnedSet returns the achievement IDs a learner holds, for
	// Evaluate.
	EarnedSet(ctx context.Context, learnerID string) (map[string]bool, error)
}
