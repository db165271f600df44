package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/mastery"
)

func TestDailyRollup_Validate(t *testing.T) {
	r := &DailyRollup{LearnerID: "l1", Day: "2026-08-30", QuizzesTaken: 2, QuizzesPassed: 1}
	require.NoError(t, r.Validate())

	bad := *r
	bad.Day = "30/08/2026"
	assert.Error(t, bad.Validate())

	bad = *r
	bad.QuizzesPassed = 3
	assert.Error(t, bad.Validate())

	bad = *r
	bad.LearnerID = ""
	assert.Error(t, bad.Validate())
}

func TestDailyRollup_IsActive(t *testing.T) {
	r := &DailyRollup{LearnerID: "l1", Day: "2026-08-30"}
	assert.False(t, r.IsActive())

	r.ActiveMinutes = 5
	assert.True(t, r.IsActive())
}

func TestCourseFunnel_Rates(t *testing.T) {
	f := CourseFunnel{CourseID: "c1", Enrolled: 40, Started: 30, Completed: 10}
	assert.InDelta(t, 0.75, f.StartRate(), 1e-9)
	assert.InDelta(t, 0.25, f.CompletionRate(), 1e-9)

	empty := CourseFunnel{}
	assert.Zero(t, empty.StartRate())
	assert.Zero(t, empty.CompletionRate())
}

func TestMasteryDistribution_Total(t *testing.T) {
	d := MasteryDistribution{
		CompetencyID: "tones",
		Counts: map[mastery.State]int{
			mastery.StateLearning: 5,
			mastery.StateMastered: 2,
			mastery.StateRusty:    1,
		},
	}
	assert.Equal(t, 8, d.Total())
}
