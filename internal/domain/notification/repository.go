package notification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// ListFilter narrows notification listings.
type ListFilter struct {
	UnreadOnly bool
	Kind       Kind
	Limit      int
	Offset     int
}

// Repository persists notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id string) (*Notification, error)
	Update(ctx context.Context, n *Notification) error

	ListByLearner(ctx context.Context, learnerID string, filter ListFilter) ([]*Notification, error)
	CountUnread(ctx context.Context, learnerID string) (int, error)

	// MarkAllRead reads every delivered notification of a learner and
	// returns how many changed.
	MarkAllRead(ctx context.Context, learnerID string, at time.Time) (int, error)

	// ListDue returns pending and due-deferred notifications for the
	// delivery job, highest priority first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Notification, error)

	// DeleteOld prunes read notifications older than the cutoff.
	DeleteOld(ctx context.Context, olderThan time.Time) (int, error)
}
