package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/notification"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

type fakeNotificationRepo struct {
	byID    map[string]*notification.Notification
	updated []*notification.Notification

	markAllCount int
	markAllErr   error
}

func newFakeNotificationRepo(ns ...*notification.Notification) *fakeNotificationRepo {
	repo := &fakeNotificationRepo{byID: make(map[string]*notification.Notification)}
	for _, n := range ns {
		repo.byID[n.ID] = n
	}
	return repo
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	r.byID[n.ID] = n
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id string) (*notification.Notification, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotificationNotFound
	}
	return n, nil
}

func (r *fakeNotificationRepo) Update(_ context.Context, n *notification.Notification) error {
	r.updated = append(r.updated, n)
	return nil
}

func (r *fakeNotificationRepo) ListByLearner(_ context.Context, _ string, _ notification.ListFilter) ([]*notification.Notification, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, _ string, _ time.Time) (int, error) {
	return r.markAllCount, r.markAllErr
}

func (r *fakeNotificationRepo) ListDue(_ context.Context, _ time.Time, _ int) ([]*notification.Notification, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) DeleteOld(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

type fakeBadge struct {
	invalidated []string
}

func (b *fakeBadge) InvalidateUnreadCount(_ context.Context, learnerID string) error {
	b.invalidated = append(b.invalidated, learnerID)
	return nil
}

func deliveredNotification(t *testing.T, id, learnerID string) *notification.Notification {
	t.Helper()
	n, err := notification.New(id, learnerID, notification.KindLevelUp,
		shared.LocalizedText{Th: "เลเวลอัป", En: "Level up"},
		shared.LocalizedText{Th: "ถึงเลเวล 3 แล้ว", En: "You reached level 3"},
		notification.Data{OldLevel: 2, NewLevel: 3},
	)
	require.NoError(t, err)
	require.NoError(t, n.MarkDelivered(time.Now()))
	return n
}

func TestMarkNotificationRead(t *testing.T) {
	ctx := context.Background()

	t.Run("marks a delivered notification and drops the badge", func(t *testing.T) {
		n := deliveredNotification(t, "n1", "learner-1")
		repo := newFakeNotificationRepo(n)
		badge := &fakeBadge{}
		h := NewMarkNotificationReadHandler(repo, badge)

		result, err := h.Handle(ctx, MarkNotificationReadCommand{
			LearnerID:      "learner-1",
			NotificationID: "n1",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Marked)
		assert.True(t, n.IsRead())
		require.Len(t, repo.updated, 1)
		assert.Equal(t, []string{"learner-1"}, badge.invalidated)
	})

	t.Run("reading twice is a no-op", func(t *testing.T) {
		n := deliveredNotification(t, "n1", "learner-1")
		require.NoError(t, n.MarkRead(time.Now()))
		repo := newFakeNotificationRepo(n)
		badge := &fakeBadge{}
		h := NewMarkNotificationReadHandler(repo, badge)

		result, err := h.Handle(ctx, MarkNotificationReadCommand{
			LearnerID:      "learner-1",
			NotificationID: "n1",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Marked)
		assert.Empty(t, repo.updated)
		assert.Empty(t, badge.invalidated)
	})

	t.Run("another learner's notification reads as missing", func(t *testing.T) {
		n := deliveredNotification(t, "n1", "learner-1")
		repo := newFakeNotificationRepo(n)
		h := NewMarkNotificationReadHandler(repo, nil)

		_, err := h.Handle(ctx, MarkNotificationReadCommand{
			LearnerID:      "learner-2",
			NotificationID: "n1",
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrNotificationNotFound))
		assert.False(t, n.IsRead())
	})

	t.Run("unknown notification", func(t *testing.T) {
		h := NewMarkNotificationReadHandler(newFakeNotificationRepo(), nil)

		_, err := h.Handle(ctx, MarkNotificationReadCommand{
			LearnerID:      "learner-1",
			NotificationID: "missing",
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrNotificationNotFound))
	})

	t.Run("requires learner and notification IDs", func(t *testing.T) {
		h := NewMarkNotificationReadHandler(newFakeNotificationRepo(), nil)

		_, err := h.Handle(ctx, MarkNotificationReadCommand{NotificationID: "n1"})
		assert.True(t, shared.IsValidation(err))

		_, err = h.Handle(ctx, MarkNotificationReadCommand{LearnerID: "learner-1"})
		assert.True(t, shared.IsValidation(err))
	})
}

func TestMarkAllNotificationsRead(t *testing.T) {
	ctx := context.Background()

	t.Run("reports the affected count and drops the badge", func(t *testing.T) {
		repo := newFakeNotificationRepo()
		repo.markAllCount = 3
		badge := &fakeBadge{}
		h := NewMarkNotificationReadHandler(repo, badge)

		result, err := h.HandleAll(ctx, MarkAllNotificationsReadCommand{LearnerID: "learner-1"})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Marked)
		assert.Equal(t, []string{"learner-1"}, badge.invalidated)
	})

	t.Run("keeps the badge when nothing changed", func(t *testing.T) {
		repo := newFakeNotificationRepo()
		badge := &fakeBadge{}
		h := NewMarkNotificationReadHandler(repo, badge)

		result, err := h.HandleAll(ctx, MarkAllNotificationsReadCommand{LearnerID: "learner-1"})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Marked)
		assert.Empty(t, badge.invalidated)
	})
}
