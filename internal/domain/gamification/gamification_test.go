package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuizXP(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  int
	}{
		{"zero score", 0, 0},
		{"negative clamped", -0.5, 0},
		{"half", 0.5, 50},
		{"rounds up", 0.855, 86},
		{"rounds down", 0.854, 85},
		{"full", 1.0, 100},
		{"above one clamped", 1.2, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuizXP(tt.ratio))
		})
	}
}

func TestStreakMilestoneXP(t *testing.T) {
	assert.Equal(t, 50, StreakMilestoneXP(7))
	assert.Equal(t, 200, StreakMilestoneXP(30))
	assert.Zero(t, StreakMilestoneXP(8), "only the milestone day pays")
	assert.Zero(t, StreakMilestoneXP(0))
}

func TestLedgerEntry_Validate(t *testing.T) {
	entry := &LedgerEntry{
		LearnerID: "learner-1",
		Amount:    25,
		Reason:    ReasonLessonCompleted,
		SourceID:  "lesson-1",
	}
	require.NoError(t, entry.Validate())

	e := *entry
	e.LearnerID = ""
	assert.Error(t, e.Validate())

	e = *entry
	e.Amount = 0
	assert.Error(t, e.Validate())

	e = *entry
	e.Reason = "bribery"
	assert.Error(t, e.Validate())
}

func TestCatalog_UniqueIDsAndBilingual(t *testing.T) {
	seen := make(map[string]bool, len(Catalog))
	for _, a := range Catalog {
		assert.False(t, seen[a.ID], "duplicate achievement ID %s", a.ID)
		seen[a.ID] = true
		assert.True(t, a.Name.IsValid(), "%s name must have both languages", a.ID)
		assert.True(t, a.Description.IsValid(), "%s description must have both languages", a.ID)
		assert.Positive(t, a.Threshold, "%s", a.ID)
		assert.Positive(t, a.BonusXP, "%s", a.ID)
	}
}

func TestEvaluate(t *testing.T) {
	p := Progress{
		LessonsCompleted: 1,
		StreakDays:       7,
		PerfectQuizzes:   0,
	}

	earned := Evaluate(p, nil)
	ids := make([]string, 0, len(earned))
	for _, a := range earned {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"first-lesson", "streak-7"}, ids)
}

func TestEvaluate_SkipsAlreadyEarned(t *testing.T) {
	p := Progress{LessonsCompleted: 12, StreakDays: 7}
	held := map[string]bool{"first-lesson": true, "streak-7": true}

	earned := Evaluate(p, held)
	require.Len(t, earned, 1)
	assert.Equal(t, "ten-lessons", earned[0].ID)
}

func TestEvaluate_NothingMet(t *testing.T) {
	assert.Empty(t, Evaluate(Progress{}, nil))
}

func TestCatalogByID(t *testing.T) {
	a, ok := CatalogByID("mastered-5")
	require.True(t, ok)
	assert.Equal(t, CriterionCompetenciesMastered, a.Criterion)
	assert.Equal(t, 5, a.Threshold)

	_, ok = CatalogByID("nope")
	assert.False(t, ok)
}

func TestProgress_Value(t *testing.T) {
	p := Progress{
		LessonsCompleted:     3,
		StreakDays:           5,
		CompetenciesMastered: 2,
		PerfectQuizzes:       1,
		CoursesCompleted:     1,
		Level:                4,
	}
	assert.Equal(t, 3, p.Value(CriterionLessonsCompleted))
	assert.Equal(t, 5, p.Value(CriterionStreakDays))
	assert.Equal(t, 2, p.Value(CriterionCompetenciesMastered))
	assert.Equal(t, 1, p.Value(CriterionPerfectQuizzes))
	assert.Equal(t, 1, p.Value(CriterionCoursesCompleted))
	assert.Equal(t, 4, p.Value(CriterionLevelReached))
	assert.Zero(t, p.Value("unknown"))
}
