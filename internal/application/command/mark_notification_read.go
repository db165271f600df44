package command

import (
	"context"
	"time"

	"github.com/rianlab/rianhub/internal/domain/notification"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// MarkNotificationReadCommand marks a single notification as read.
type MarkNotificationReadCommand struct {
	LearnerID      string
	NotificationID string

	CorrelationID string
}

// Validate checks the command.
func (c MarkNotificationReadCommand) Validate() error {
	if c.LearnerID == "" {
		return shared.NewDomainError("command", "MarkNotificationRead", shared.ErrEmptyValue, "learner ID is required")
	}
	if c.NotificationID == "" {
		return shared.NewDomainError("command", "MarkNotificationRead", shared.ErrEmptyValue, "notification ID is required")
	}
	return nil
}

// MarkAllNotificationsReadCommand clears the whole unread backlog at once.
type MarkAllNotificationsReadCommand struct {
	LearnerID string

	CorrelationID string
}

// Validate checks the command.
func (c MarkAllNotificationsReadCommand) Validate() error {
	if c.LearnerID == "" {
		return shared.NewDomainError("command", "MarkAllNotificationsRead", shared.ErrEmptyValue, "learner ID is required")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// ══════════════════════════════════════════════════════════════════════════════

// MarkNotificationsReadResult reports how many notifications were affected.
type MarkNotificationsReadResult struct {
	Marked int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UnreadBadgeInvalidator drops the cached unread counter after a read
// state change so the next badge fetch recomputes it.
type UnreadBadgeInvalidator interface {
	InvalidateUnreadCount(ctx context.Context, learnerID string) error
}

// MarkNotificationReadHandler handles read receipts for the in-app inbox.
type MarkNotificationReadHandler struct {
	notifRepo notification.Repository
	badge     UnreadBadgeInvalidator
}

// NewMarkNotificationReadHandler creates a new handler.
func NewMarkNotificationReadHandler(
	notifRepo notification.Repository,
	badge UnreadBadgeInvalidator,
) *MarkNotificationReadHandler {
	return &MarkNotificationReadHandler{
		notifRepo: notifRepo,
		badge:     badge,
	}
}

// Handle marks one notification as read. Marking an already read
// notification is a no-op, not an error.
func (h *MarkNotificationReadHandler) Handle(ctx context.Context, cmd MarkNotificationReadCommand) (*MarkNotificationsReadResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "MarkNotificationRead", shared.ErrValidation, "invalid command", err)
	}

	n, err := h.notifRepo.GetByID(ctx, cmd.NotificationID)
	if err != nil {
		return nil, shared.WrapError("command", "MarkNotificationRead", shared.ErrNotificationNotFound, "failed to load notification", err)
	}

	// Reading another learner's notification must look like a miss.
	if n.LearnerID != cmd.LearnerID {
		return nil, shared.NewDomainError("command", "MarkNotificationRead", shared.ErrNotificationNotFound, "notification not found")
	}

	if n.IsRead() {
		return &MarkNotificationsReadResult{Marked: 0}, nil
	}

	if err := n.MarkRead(time.Now()); err != nil {
		return nil, shared.WrapError("command", "MarkNotificationRead", shared.ErrInvalidState, "failed to mark read", err)
	}
	if err := h.notifRepo.Update(ctx, n); err != nil {
		return nil, shared.WrapError("command", "MarkNotificationRead", shared.ErrNotFound, "failed to persist read state", err)
	}

	h.invalidateBadge(ctx, cmd.LearnerID)
	return &MarkNotificationsReadResult{Marked: 1}, nil
}

// HandleAll marks every delivered notification of the learner as read.
func (h *MarkNotificationReadHandler) HandleAll(ctx context.Context, cmd MarkAllNotificationsReadCommand) (*MarkNotificationsReadResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "MarkAllNotificationsRead", shared.ErrValidation, "invalid command", err)
	}

	marked, err := h.notifRepo.MarkAllRead(ctx, cmd.LearnerID, time.Now())
	if err != nil {
		return nil, shared.WrapError("command", "MarkAllNotificationsRead", shared.ErrNotFound, "failed to mark all read", err)
	}

	if marked > 0 {
		h.invalidateBadge(ctx, cmd.LearnerID)
	}
	return &MarkNotificationsReadResult{Marked: marked}, nil
}

func (h *MarkNotificationReadHandler) invalidateBadge(ctx context.Context, learnerID string) {
	if h.badge == nil {
		return
	}
	// Cache invalidation is best effort; the TTL bounds staleness.
	_ = h.badge.InvalidateUnreadCount(ctx, learnerID)
}
