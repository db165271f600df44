package mastery

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// CompetencyRepository persists the competency graph.
type CompetencyRepository interface {
	Create(ctx context.Context, c *Competency) error
	GetByID(ctx context.Context, id string) (*Competency, error)
	Update(ctx context.Context, c *Competency) error
	Delete(ctx context.Context, id string) error

	// ListAll returns the whole graph. The graph is expected to be
	// small (hundreds of nodes), so repositories load it wholesale.
	ListAll(ctx context.Context) ([]*Competency, error)
}

// Repository persists per-learner mastery records.
type Repository interface {
	// Upsert writes a record keyed by (learner, competency).
	Upsert(ctx context.Context, learnerID string, m *Mastery) error

	// Get returns shared.ErrNotFound if the learner has never
	// practiced the competency.
	Get(ctx context.Context, learnerID, competencyID string) (*Mastery, error)

	// GetProfile returns every record a learner has, keyed by
	// competency ID.
	GetProfile(ctx context.Context, learnerID string) (map[string]*Mastery, error)

	// ListStale returns records not practiced since the cutoff whose
	// state is proficient or mastered. The decay job walks these.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]StaleRecord, error)

	// CountByState aggregates a learner's records per state.
	CountByState(ctx context.Context, learnerID string) (map[State]int, error)
}

// StaleRecord pairs a mastery record with its owner for batch decay.
type StaleRecord struct {
	LearnerID string
	Record    *Mastery
}
