package learner

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implemented in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ListOptions controls listing queries.
type ListOptions struct {
	Limit  int
	Offset int

	// OrderBy is one of "created_at", "xp", "last_activity".
	OrderBy string

	// Descending reverses the sort order.
	Descending bool
}

// DefaultListOptions returns sane defaults for listing.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50, OrderBy: "created_at", Descending: true}
}

// Repository defines persistence operations for learners.
type Repository interface {
	// Create stores a new learner.
	// Returns shared.ErrLearnerAlreadyExists on duplicate email.
	Create(ctx context.Context, l *Learner) error

	// GetByID returns a learner by internal ID.
	// Returns shared.ErrLearnerNotFound if missing.
	GetByID(ctx context.Context, id string) (*Learner, error)

	// GetByEmail returns a learner by normalized email.
	GetByEmail(ctx context.Context, email string) (*Learner, error)

	// GetByIDs returns learners for the given IDs (missing IDs are skipped).
	GetByIDs(ctx context.Context, ids []string) ([]*Learner, error)

	// Update persists learner changes.
	Update(ctx context.Context, l *Learner) error

	// Delete soft-deletes the learner.
	Delete(ctx context.Context, id string) error

	// List returns learners with the given options.
	List(ctx context.Context, opts ListOptions) ([]*Learner, error)

	// ListByStatus returns learners with the given status.
	ListByStatus(ctx context.Context, status Status, opts ListOptions) ([]*Learner, error)

	// ListInactiveSince returns active learners whose last activity is older
	// than the given number of days. Used by the streak-reminder job.
	ListInactiveSince(ctx context.Context, days int, opts ListOptions) ([]*Learner, error)

	// Count returns the total number of non-deleted learners.
	Count(ctx context.Context) (int, error)
}

// Cache is a read-through cache in front of Repository. Redis
// implements it; a miss falls through to Repository.
type Cache interface {
	// Get reads a cached learner by ID, nil on miss.
	Get(ctx context.Context, id string) (*Learner, error)

	// Set caches a learner with a TTL.
	Set(ctx context.Context, l *Learner, ttl time.Duration) error

	// Invalidate drops the cached learner.
	Invalidate(ctx context.Context, id string) error
}
