package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

func TestNewDevice(t *testing.T) {
	d, err := NewDevice("dev-1", "learner-1", PlatformAndroid, "Nok's phone")
	require.NoError(t, err)
	assert.Zero(t, d.LastSeq)
	assert.Zero(t, d.Cursor)

	_, err = NewDevice("", "learner-1", PlatformAndroid, "")
	assert.Error(t, err)

	_, err = NewDevice("dev-1", "learner-1", "symbian", "")
	assert.Error(t, err)
}

func TestDevice_AdvanceAndCursor(t *testing.T) {
	d, err := NewDevice("dev-1", "learner-1", PlatformIOS, "")
	require.NoError(t, err)
	now := time.Now()

	d.Advance(5, now)
	assert.Equal(t, int64(5), d.LastSeq)

	// A lower sequence never rolls the watermark back.
	d.Advance(3, now)
	assert.Equal(t, int64(5), d.LastSeq)

	require.NoError(t, d.MoveCursor(10, now))
	assert.ErrorIs(t, d.MoveCursor(9, now), shared.ErrStaleCursor)
	require.NoError(t, d.MoveCursor(10, now), "same cursor is a no-op resend")
}

func TestOperation_Validate(t *testing.T) {
	op := Operation{
		DeviceID:   "dev-1",
		Seq:        1,
		Kind:       OpLessonProgress,
		ClientTime: time.Now(),
		Payload:    json.RawMessage(`{"lesson_id":"l1"}`),
	}
	require.NoError(t, op.Validate())

	bad := op
	bad.Seq = 0
	assert.Error(t, bad.Validate())

	bad = op
	bad.Kind = "teleport"
	assert.Error(t, bad.Validate())

	bad = op
	bad.Payload = nil
	assert.Error(t, bad.Validate())
}

func TestOperation_EffectiveTime_ClampsSkew(t *testing.T) {
	serverNow := time.Now()

	// Within tolerance: client time kept.
	op := Operation{ClientTime: serverNow.Add(-2 * time.Hour)}
	got, clamped := op.EffectiveTime(serverNow)
	assert.False(t, clamped)
	assert.Equal(t, op.ClientTime, got)

	// A clock three days behind clamps to server time.
	op = Operation{ClientTime: serverNow.Add(-72 * time.Hour)}
	got, clamped = op.EffectiveTime(serverNow)
	assert.True(t, clamped)
	assert.Equal(t, serverNow, got)

	// A clock in the future clamps too.
	op = Operation{ClientTime: serverNow.Add(25 * time.Hour)}
	_, clamped = op.EffectiveTime(serverNow)
	assert.True(t, clamped)
}

func boolPtr(b bool) *bool { return &b }

func TestResolvePreferences_LWW(t *testing.T) {
	now := time.Now()
	current := learner.DefaultPreferences(shared.LangThai)
	current.UpdatedAt = now.Add(-time.Hour)

	// Newer client write wins.
	next, res := ResolvePreferences(current, PreferencePayload{
		Language:        "en",
		StreakReminders: boolPtr(false),
	}, now)
	assert.Equal(t, ResolutionClientWon, res)
	assert.Equal(t, shared.LangEnglish, next.Language)
	assert.False(t, next.StreakReminders)
	assert.Equal(t, now, next.UpdatedAt)

	// Untouched fields survive.
	assert.Equal(t, current.Timezone, next.Timezone)
	assert.Equal(t, current.Achievements, next.Achievements)
}

func TestResolvePreferences_StaleClientLoses(t *testing.T) {
	now := time.Now()
	current := learner.DefaultPreferences(shared.LangThai)
	current.UpdatedAt = now

	next, res := ResolvePreferences(current, PreferencePayload{Language: "en"}, now.Add(-time.Minute))
	assert.Equal(t, ResolutionServerWon, res)
	assert.Equal(t, shared.LangThai, next.Language)
}

func TestResolveProgress(t *testing.T) {
	started := course.LessonProgress{
		LearnerID: "l1",
		LessonID:  "lesson-1",
		State:     course.ProgressStarted,
		TimeSpent: 5 * time.Minute,
	}
	completed := course.LessonProgress{
		LearnerID: "l1",
		LessonID:  "lesson-1",
		State:     course.ProgressCompleted,
		TimeSpent: 3 * time.Minute,
	}

	// No server record: client wins outright.
	merged, res := ResolveProgress(nil, started)
	assert.Equal(t, ResolutionClientWon, res)
	assert.Equal(t, course.ProgressStarted, merged.State)

	// Completion beats started; time spent takes the max.
	merged, res = ResolveProgress(&started, completed)
	assert.Equal(t, ResolutionMerged, res)
	assert.Equal(t, course.ProgressCompleted, merged.State)
	assert.Equal(t, 5*time.Minute, merged.TimeSpent)

	// Started never demotes completed.
	merged, res = ResolveProgress(&merged, started)
	assert.Equal(t, ResolutionServerWon, res)
	assert.Equal(t, course.ProgressCompleted, merged.State)
}
