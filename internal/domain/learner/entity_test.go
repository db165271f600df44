package learner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func newTestLearner(t *testing.T) *Learner {
	t.Helper()
	l, err := NewLearner(NewLearnerParams{
		ID:           "7ed99bd0-87b2-4dbb-a97b-596c3f29c49b",
		Email:        "Nong.Som@Example.COM",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		DisplayName:  "Nong Som",
		Language:     shared.LangThai,
	})
	require.NoError(t, err)
	return l
}

func TestNewLearner(t *testing.T) {
	l := newTestLearner(t)

	assert.Equal(t, shared.Email("nong.som@example.com"), l.Email)
	assert.Equal(t, StatusActive, l.Status)
	assert.Equal(t, RoleLearner, l.Role)
	assert.Equal(t, shared.LangThai, l.Preferences.Language)
	assert.Equal(t, DefaultTimezone, l.Preferences.Timezone)
	assert.Equal(t, shared.XP(0), l.CurrentXP)
}

func TestNewLearner_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewLearnerParams)
	}{
		{"bad email", func(p *NewLearnerParams) { p.Email = "not-an-email" }},
		{"empty name", func(p *NewLearnerParams) { p.DisplayName = "   " }},
		{"missing hash", func(p *NewLearnerParams) { p.PasswordHash = "" }},
		{"bad role", func(p *NewLearnerParams) { p.Role = Role("wizard") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := NewLearnerParams{
				ID:           "7ed99bd0-87b2-4dbb-a97b-596c3f29c49b",
				Email:        "ok@example.com",
				PasswordHash: "hash",
				DisplayName:  "OK",
			}
			tt.mutate(&params)
			_, err := NewLearner(params)
			assert.Error(t, err)
		})
	}
}

func TestAddXP_LevelUp(t *testing.T) {
	l := newTestLearner(t)

	leveled, old, now := l.AddXP(50)
	assert.False(t, leveled)
	assert.Equal(t, shared.Level(0), old)
	assert.Equal(t, shared.Level(0), now)

	// Level 1 requires 100 cumulative XP.
	leveled, old, now = l.AddXP(60)
	assert.True(t, leveled)
	assert.Equal(t, shared.Level(0), old)
	assert.Equal(t, shared.Level(1), now)
	assert.Equal(t, shared.XP(110), l.CurrentXP)
}

func TestTouchActivity_Streak(t *testing.T) {
	l := newTestLearner(t)
	loc := l.Preferences.Location()

	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)

	assert.Equal(t, StreakExtended, l.TouchActivity(day1))
	assert.Equal(t, 1, l.CurrentStreak)

	// Same local day: idempotent.
	assert.Equal(t, StreakUnchanged, l.TouchActivity(day1.Add(6*time.Hour)))
	assert.Equal(t, 1, l.CurrentStreak)

	// Next day extends.
	assert.Equal(t, StreakExtended, l.TouchActivity(day1.AddDate(0, 0, 1)))
	assert.Equal(t, 2, l.CurrentStreak)
	assert.Equal(t, 2, l.BestStreak)

	// Skipping a day resets to 1, best streak preserved.
	assert.Equal(t, StreakReset, l.TouchActivity(day1.AddDate(0, 0, 3)))
	assert.Equal(t, 1, l.CurrentStreak)
	assert.Equal(t, 2, l.BestStreak)
}

func TestTouchActivity_LocalMidnightBoundary(t *testing.T) {
	l := newTestLearner(t)
	loc := l.Preferences.Location()

	// 23:30 and 00:30 the next local day are different streak days.
	l.TouchActivity(time.Date(2025, 3, 10, 23, 30, 0, 0, loc))
	outcome := l.TouchActivity(time.Date(2025, 3, 11, 0, 30, 0, 0, loc))

	assert.Equal(t, StreakExtended, outcome)
	assert.Equal(t, 2, l.CurrentStreak)
}

func TestPreferences_QuietHours(t *testing.T) {
	prefs := DefaultPreferences(shared.LangEnglish)
	prefs.QuietHoursStart = 22
	prefs.QuietHoursEnd = 8
	loc := prefs.Location()

	assert.True(t, prefs.IsQuietHour(time.Date(2025, 1, 1, 23, 0, 0, 0, loc)))
	assert.True(t, prefs.IsQuietHour(time.Date(2025, 1, 1, 3, 0, 0, 0, loc)))
	assert.False(t, prefs.IsQuietHour(time.Date(2025, 1, 1, 12, 0, 0, 0, loc)))

	// Start == End disables the window.
	prefs.QuietHoursStart, prefs.QuietHoursEnd = 0, 0
	assert.False(t, prefs.IsQuietHour(time.Date(2025, 1, 1, 0, 30, 0, 0, loc)))
}

func TestCanReceiveNotification(t *testing.T) {
	l := newTestLearner(t)
	loc := l.Preferences.Location()
	noon := time.Date(2025, 1, 1, 12, 0, 0, 0, loc)
	night := time.Date(2025, 1, 1, 23, 30, 0, 0, loc)

	assert.True(t, l.CanReceiveNotification("level_up", noon))
	assert.False(t, l.CanReceiveNotification("level_up", night), "quiet hours defer delivery")

	l.Preferences.StreakReminders = false
	assert.False(t, l.CanReceiveNotification("streak_reminder", noon))

	require.NoError(t, l.Suspend())
	assert.False(t, l.CanReceiveNotification("level_up", noon))
}

func TestStatusTransitions(t *testing.T) {
	l := newTestLearner(t)

	require.NoError(t, l.MarkInactive())
	assert.Equal(t, StatusInactive, l.Status)
	assert.Error(t, l.MarkInactive(), "only active learners go inactive")

	// Activity reactivates.
	l.TouchActivity(time.Now())
	assert.Equal(t, StatusActive, l.Status)

	require.NoError(t, l.Suspend())
	require.NoError(t, l.Reinstate())
	assert.Equal(t, StatusActive, l.Status)
}
