package xapi

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Query filters statement reads. Zero values mean "no filter".
// Voided statements are always excluded.
type Query struct {
	// ActorKey matches Agent.Key().
	ActorKey string

	VerbID     string
	ActivityID string

	Since time.Time
	Until time.Time

	// Limit defaults to a repository-chosen page size.
	Limit int

	// Ascending flips from the default newest-first order.
	Ascending bool
}

// Repository is the statement store. Statements are append-only;
// voiding flags rows rather than deleting them.
type Repository interface {
	// Store persists a prepared statement. Returns
	// shared.ErrStatementConflict when the ID exists with different
	// content, and is a no-op for an identical resend.
	Store(ctx context.Context, s *Statement) error

	// GetByID returns a statement, voided or not; callers that must
	// exclude voided statements use Find.
	GetByID(ctx context.Context, id string) (*Statement, error)

	// IsVoided reports whether a statement has been voided.
	IsVoided(ctx context.Context, id string) (bool, error)

	// MarkVoided flags the target of a voiding statement.
	MarkVoided(ctx context.Context, targetID, voidingID string) error

	// Find runs a filtered query, excluding voided statements.
	Find(ctx context.Context, q Query) ([]*Statement, error)

	// CountSince counts an actor's statements in a window; the daily
	// analytics rollup uses it.
	CountSince(ctx context.Context, actorKey string, since, until time.Time) (int, error)
}
