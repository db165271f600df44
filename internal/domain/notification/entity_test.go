package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func newTestNotification(t *testing.T, kind Kind) *Notification {
	t.Helper()
	title := shared.LocalizedText{Th: "หัวข้อ", En: "Title"}
	body := shared.LocalizedText{Th: "เนื้อหา", En: "Body"}
	n, err := New("n-1", "learner-1", kind, title, body, Data{})
	require.NoError(t, err)
	return n
}

func TestNew(t *testing.T) {
	n := newTestNotification(t, KindLevelUp)

	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, PriorityHigh, n.Priority)
	assert.False(t, n.IsRead())
}

func TestNew_Validation(t *testing.T) {
	title := shared.LocalizedText{Th: "หัวข้อ", En: "Title"}

	_, err := New("n-1", "", KindWelcome, title, title, Data{})
	assert.Error(t, err)

	_, err = New("n-1", "learner-1", "carrier_pigeon", title, title, Data{})
	assert.Error(t, err)

	// One language suffices; the renderer falls back to the other.
	_, err = New("n-1", "learner-1", KindWelcome, shared.LocalizedText{En: "Title"}, title, Data{})
	assert.NoError(t, err)

	// Both languages empty is rejected.
	_, err = New("n-1", "learner-1", KindWelcome, shared.LocalizedText{}, title, Data{})
	assert.ErrorIs(t, err, shared.ErrMissingTranslation)
}

func TestLifecycle_DeliverAndRead(t *testing.T) {
	n := newTestNotification(t, KindAchievement)
	now := time.Now()

	require.NoError(t, n.MarkDelivered(now))
	assert.Equal(t, StatusDelivered, n.Status)

	require.NoError(t, n.MarkRead(now.Add(time.Minute)))
	assert.True(t, n.IsRead())
	first := *n.ReadAt

	// Second read keeps the first timestamp.
	require.NoError(t, n.MarkRead(now.Add(time.Hour)))
	assert.Equal(t, first, *n.ReadAt)

	// Final states reject further transitions.
	assert.ErrorIs(t, n.MarkDelivered(now), shared.ErrInvalidState)
	assert.ErrorIs(t, n.Defer(now), shared.ErrInvalidState)
	assert.ErrorIs(t, n.Skip(), shared.ErrInvalidState)
}

func TestLifecycle_QuietHoursDeferral(t *testing.T) {
	n := newTestNotification(t, KindStreakReminder)
	now := time.Now()
	until := now.Add(3 * time.Hour)

	require.NoError(t, n.Defer(until))
	assert.Equal(t, StatusDeferred, n.Status)
	assert.False(t, n.ReadyAt(now))
	assert.True(t, n.ReadyAt(until))

	// Deferred is delayed, not dropped: delivery still lands.
	require.NoError(t, n.MarkDelivered(until))
	assert.Nil(t, n.DeferredUntil)
}

func TestMarkRead_RequiresDelivery(t *testing.T) {
	n := newTestNotification(t, KindWelcome)
	assert.ErrorIs(t, n.MarkRead(time.Now()), shared.ErrInvalidState)
}

func TestKind_PreferenceGate(t *testing.T) {
	assert.Equal(t, "level_ups", KindLevelUp.PreferenceGate())
	assert.Equal(t, "streak_reminders", KindStreakMilestone.PreferenceGate())
	assert.Empty(t, KindWelcome.PreferenceGate(), "welcome is never gated")
}

func TestRender_AllKindsBilingual(t *testing.T) {
	params := TemplateParams{
		LearnerName:     "Nok",
		Level:           5,
		AchievementName: shared.LocalizedText{Th: "ก้าวแรก", En: "First Steps"},
		StreakDays:      7,
		CompetencyName:  shared.LocalizedText{Th: "วรรณยุกต์", En: "Tones"},
		CourseTitle:     shared.LocalizedText{Th: "ไทยพื้นฐาน", En: "Basic Thai"},
		OldRank:         10,
		NewRank:         4,
	}

	kinds := []Kind{
		KindWelcome, KindLevelUp, KindAchievement, KindStreakReminder,
		KindStreakMilestone, KindMasteryRusty, KindCoursePublished, KindRankChanged,
	}
	for _, k := range kinds {
		title, body, err := Render(k, params)
		require.NoError(t, err, "kind %s", k)
		assert.True(t, title.IsValid(), "kind %s title", k)
		assert.True(t, body.IsValid(), "kind %s body", k)
	}

	_, _, err := Render("carrier_pigeon", params)
	assert.Error(t, err)
}

func TestRender_RankDirection(t *testing.T) {
	up, _, err := Render(KindRankChanged, TemplateParams{OldRank: 10, NewRank: 4})
	require.NoError(t, err)
	assert.Contains(t, up.En, "climbed")

	down, _, err := Render(KindRankChanged, TemplateParams{OldRank: 4, NewRank: 10})
	require.NoError(t, err)
	assert.Contains(t, down.En, "dropped")
}
