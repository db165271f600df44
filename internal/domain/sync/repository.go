package sync

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// DeviceRepository persists registered devices.
type DeviceRepository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	Update(ctx context.Context, d *Device) error
	ListByLearner(ctx context.Context, learnerID string) ([]*Device, error)
	Delete(ctx context.Context, id string) error
}

// OperationLog records applied operations for idempotency checks.
type OperationLog interface {
	// Record marks (device, seq) applied. Returns
	// shared.ErrDuplicateOperation when already recorded.
	Record(ctx context.Context, deviceID string, seq int64, appliedAt time.Time) error

	// IsApplied checks whether (device, seq) was already processed.
	IsApplied(ctx context.Context, deviceID string, seq int64) (bool, error)
}

// ChangeLog is the per-learner stream devices pull from.
type ChangeLog interface {
	// Append writes a change and assigns its cursor.
	Append(ctx context.Context, change *Change) error

	// ListSince returns changes after the cursor, oldest first.
	ListSince(ctx context.Context, learnerID string, cursor int64, limit int) ([]*Change, error)

	// LatestCursor returns the learner's newest cursor value.
	LatestCursor(ctx context.Context, learnerID string) (int64, error)
}

// ConflictLog stores resolved conflicts for support queries.
type ConflictLog interface {
	Record(ctx context.Context, c *Conflict) error
	ListByLearner(ctx context.Context, learnerID string, limit int) ([]*Conflict, error)
}
