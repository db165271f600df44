package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/notification"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

type stubNotificationRepo struct {
	due     []*notification.Notification
	updated []*notification.Notification
}

func (r *stubNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	return nil
}

func (r *stubNotificationRepo) GetByID(_ context.Context, _ string) (*notification.Notification, error) {
	return nil, shared.ErrNotificationNotFound
}

func (r *stubNotificationRepo) Update(_ context.Context, n *notification.Notification) error {
	r.updated = append(r.updated, n)
	return nil
}

func (r *stubNotificationRepo) ListByLearner(_ context.Context, _ string, _ notification.ListFilter) ([]*notification.Notification, error) {
	return nil, nil
}

func (r *stubNotificationRepo) CountUnread(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (r *stubNotificationRepo) MarkAllRead(_ context.Context, _ string, _ time.Time) (int, error) {
	return 0, nil
}

func (r *stubNotificationRepo) ListDue(_ context.Context, _ time.Time, _ int) ([]*notification.Notification, error) {
	return r.due, nil
}

func (r *stubNotificationRepo) DeleteOld(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

type stubLearnerRepo struct {
	byID map[string]*learner.Learner
}

func (r *stubLearnerRepo) Create(_ context.Context, _ *learner.Learner) error { return nil }

func (r *stubLearnerRepo) GetByID(_ context.Context, id string) (*learner.Learner, error) {
	l, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return l, nil
}

func (r *stubLearnerRepo) GetByEmail(_ context.Context, _ string) (*learner.Learner, error) {
	return nil, shared.ErrLearnerNotFound
}

func (r *stubLearnerRepo) GetByIDs(_ context.Context, _ []string) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *stubLearnerRepo) Update(_ context.Context, _ *learner.Learner) error { return nil }
func (r *stubLearnerRepo) Delete(_ context.Context, _ string) error           { return nil }

func (r *stubLearnerRepo) List(_ context.Context, _ learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *stubLearnerRepo) ListByStatus(_ context.Context, _ learner.Status, _ learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *stubLearnerRepo) ListInactiveSince(_ context.Context, _ int, _ learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *stubLearnerRepo) Count(_ context.Context) (int, error) { return 0, nil }

func deliveryLearner(t *testing.T, id string) *learner.Learner {
	t.Helper()
	l, err := learner.NewLearner(learner.NewLearnerParams{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		DisplayName:  "Test Learner",
	})
	require.NoError(t, err)
	return l
}

func pendingNotification(t *testing.T, id, learnerID string, kind notification.Kind) *notification.Notification {
	t.Helper()
	n, err := notification.New(id, learnerID, kind,
		shared.LocalizedText{Th: "หัวข้อ", En: "Title"},
		shared.LocalizedText{Th: "เนื้อหา", En: "Body"},
		notification.Data{},
	)
	require.NoError(t, err)
	return n
}

func newDeliveryJob(notifs *stubNotificationRepo, learners *stubLearnerRepo) *DeliverNotificationsJob {
	return NewDeliverNotificationsJob(notifs, learners,
		slog.New(slog.NewTextHandler(io.Discard, nil)), DefaultDeliverNotificationsConfig())
}

func TestDeliverNotifications_Delivers(t *testing.T) {
	l := deliveryLearner(t, "learner-1")
	// Equal start and end disables quiet hours.
	l.Preferences.QuietHoursStart = 0
	l.Preferences.QuietHoursEnd = 0

	n := pendingNotification(t, "n1", "learner-1", notification.KindAchievement)
	notifs := &stubNotificationRepo{due: []*notification.Notification{n}}
	job := newDeliveryJob(notifs, &stubLearnerRepo{byID: map[string]*learner.Learner{"learner-1": l}})

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, notification.StatusDelivered, n.Status)
	require.NotNil(t, n.DeliveredAt)
	require.Len(t, notifs.updated, 1)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 0, stats.Deferred)
	assert.Equal(t, 0, stats.Skipped)
}

func TestDeliverNotifications_DefersThroughQuietHours(t *testing.T) {
	l := deliveryLearner(t, "learner-1")
	// Wrap a one-hour quiet window around the current local hour so the
	// run is always inside it.
	hour := time.Now().In(l.Preferences.Location()).Hour()
	l.Preferences.QuietHoursStart = hour
	l.Preferences.QuietHoursEnd = (hour + 1) % 24

	n := pendingNotification(t, "n1", "learner-1", notification.KindAchievement)
	notifs := &stubNotificationRepo{due: []*notification.Notification{n}}
	job := newDeliveryJob(notifs, &stubLearnerRepo{byID: map[string]*learner.Learner{"learner-1": l}})

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, notification.StatusDeferred, n.Status)
	require.NotNil(t, n.DeferredUntil)
	assert.True(t, n.DeferredUntil.After(time.Now()))
	assert.Nil(t, n.DeliveredAt)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Deferred)
}

func TestDeliverNotifications_SkipsGatedKinds(t *testing.T) {
	l := deliveryLearner(t, "learner-1")
	l.Preferences.QuietHoursStart = 0
	l.Preferences.QuietHoursEnd = 0
	l.Preferences.Achievements = false

	n := pendingNotification(t, "n1", "learner-1", notification.KindAchievement)
	notifs := &stubNotificationRepo{due: []*notification.Notification{n}}
	job := newDeliveryJob(notifs, &stubLearnerRepo{byID: map[string]*learner.Learner{"learner-1": l}})

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, notification.StatusSkipped, n.Status)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Skipped)
}

func TestDeliverNotifications_MissingOwnerIsAnError(t *testing.T) {
	n := pendingNotification(t, "n1", "ghost", notification.KindWelcome)
	notifs := &stubNotificationRepo{due: []*notification.Notification{n}}
	job := newDeliveryJob(notifs, &stubLearnerRepo{byID: map[string]*learner.Learner{}})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, notification.StatusPending, n.Status)
}
