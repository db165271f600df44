package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func text(en string) shared.LocalizedText {
	return shared.LocalizedText{En: en}
}

func boolPtr(b bool) *bool       { return &b }
func floatPtr(f float64) *float64 { return &f }

func newGradedQuiz(t *testing.T) *Quiz {
	t.Helper()
	q, err := NewQuiz(NewQuizParams{
		ID:            "quiz-1",
		LessonID:      "lesson-1",
		CourseID:      "course-1",
		Title:         text("Checkpoint"),
		PassThreshold: 0.6,
	})
	require.NoError(t, err)

	require.NoError(t, q.AddQuestion(&Question{
		ID:           "q1",
		Type:         TypeSingleChoice,
		Prompt:       text("Pick one"),
		CompetencyID: "comp-a",
		Points:       2,
		Difficulty:   0.3,
		Options: []Option{
			{ID: "a", Text: text("right"), Correct: true},
			{ID: "b", Text: text("wrong")},
		},
	}))
	require.NoError(t, q.AddQuestion(&Question{
		ID:           "q2",
		Type:         TypeMultiChoice,
		Prompt:       text("Pick many"),
		CompetencyID: "comp-a",
		Points:       4,
		Difficulty:   0.6,
		Options: []Option{
			{ID: "a", Text: text("yes"), Correct: true},
			{ID: "b", Text: text("yes too"), Correct: true},
			{ID: "c", Text: text("no")},
			{ID: "d", Text: text("also no")},
		},
	}))
	require.NoError(t, q.AddQuestion(&Question{
		ID:            "q3",
		Type:          TypeTrueFalse,
		Prompt:        text("Water is wet"),
		CompetencyID:  "comp-b",
		Points:        1,
		Difficulty:    0.1,
		TrueAnswer:    true,
	}))
	require.NoError(t, q.AddQuestion(&Question{
		ID:               "q4",
		Type:             TypeNumeric,
		Prompt:           text("2 + 2.5"),
		CompetencyID:     "comp-b",
		Points:           1,
		Difficulty:       0.2,
		NumericAnswer:    4.5,
		NumericTolerance: 0.01,
	}))
	require.NoError(t, q.AddQuestion(&Question{
		ID:           "q5",
		Type:         TypeShortText,
		Prompt:       text("Capital of Thailand"),
		CompetencyID: "comp-c",
		Points:       2,
		Difficulty:   0.4,
		TextAnswers:  []string{"Bangkok", "กรุงเทพฯ"},
	}))
	return q
}

func TestGrade_FullMarks(t *testing.T) {
	q := newGradedQuiz(t)
	a := &Attempt{
		ID:        "att-1",
		QuizID:    q.ID,
		LearnerID: "learner-1",
		Status:    AttemptInProgress,
		StartedAt: time.Now().Add(-3 * time.Minute),
		Answers: []Answer{
			{QuestionID: "q1", SelectedOptions: []string{"a"}},
			{QuestionID: "q2", SelectedOptions: []string{"a", "b"}},
			{QuestionID: "q3", BoolAnswer: boolPtr(true)},
			{QuestionID: "q4", NumericAnswer: floatPtr(4.5)},
			{QuestionID: "q5", TextAnswer: "  bangkok "},
		},
	}

	require.NoError(t, Grade(q, a, time.Now()))

	assert.Equal(t, 10, a.Score)
	assert.Equal(t, 10, a.MaxScore)
	assert.Equal(t, 1.0, a.ScoreRatio)
	assert.True(t, a.Passed)
	assert.True(t, a.Perfect())
	require.Len(t, a.Results, 5)
	for _, r := range a.Results {
		assert.True(t, r.Correct, r.QuestionID)
	}
}

func TestGrade_MultiChoicePartialCredit(t *testing.T) {
	q := newGradedQuiz(t)

	tests := []struct {
		name     string
		selected []string
		want     float64
	}{
		{"both correct", []string{"a", "b"}, 1.0},
		{"one of two", []string{"a"}, 0.5},
		{"one right one wrong", []string{"a", "c"}, 0.0},
		{"two right one wrong", []string{"a", "b", "c"}, 0.5},
		{"all selected", []string{"a", "b", "c", "d"}, 0.0},
		{"duplicates ignored", []string{"a", "a"}, 0.5},
		{"unknown option counts against", []string{"a", "b", "zzz"}, 0.5},
		{"nothing", nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Attempt{
				QuizID: q.ID, LearnerID: "u", Status: AttemptInProgress,
				Answers: []Answer{{QuestionID: "q2", SelectedOptions: tt.selected}},
			}
			require.NoError(t, Grade(q, a, time.Now()))
			require.Len(t, a.Results, 5)
			assert.InDelta(t, tt.want, a.Results[1].Score, 1e-9)
		})
	}
}

func TestGrade_NumericTolerance(t *testing.T) {
	q := newGradedQuiz(t)
	a := &Attempt{
		QuizID: q.ID, LearnerID: "u", Status: AttemptInProgress,
		Answers: []Answer{{QuestionID: "q4", NumericAnswer: floatPtr(4.509)}},
	}
	require.NoError(t, Grade(q, a, time.Now()))
	assert.Equal(t, 0.0, a.Results[3].Score, "outside tolerance")

	a2 := &Attempt{
		QuizID: q.ID, LearnerID: "u", Status: AttemptInProgress,
		Answers: []Answer{{QuestionID: "q4", NumericAnswer: floatPtr(4.491)}},
	}
	require.NoError(t, Grade(q, a2, time.Now()))
	assert.Equal(t, 1.0, a2.Results[3].Score, "within tolerance")
}

func TestGrade_ShortTextThai(t *testing.T) {
	q := newGradedQuiz(t)
	a := &Attempt{
		QuizID: q.ID, LearnerID: "u", Status: AttemptInProgress,
		Answers: []Answer{{QuestionID: "q5", TextAnswer: "\u200bกรุงเทพฯ "}},
	}
	require.NoError(t, Grade(q, a, time.Now()))
	assert.Equal(t, 1.0, a.Results[4].Score, "zero-width space stripped")
}

func TestGrade_Rejections(t *testing.T) {
	q := newGradedQuiz(t)

	dup := &Attempt{
		QuizID: q.ID, Status: AttemptInProgress,
		Answers: []Answer{
			{QuestionID: "q1", SelectedOptions: []string{"a"}},
			{QuestionID: "q1", SelectedOptions: []string{"b"}},
		},
	}
	assert.Error(t, Grade(q, dup, time.Now()))

	unknown := &Attempt{
		QuizID: q.ID, Status: AttemptInProgress,
		Answers: []Answer{{QuestionID: "ghost", TextAnswer: "x"}},
	}
	assert.Error(t, Grade(q, unknown, time.Now()))

	graded := &Attempt{QuizID: q.ID, Status: AttemptGraded}
	assert.ErrorIs(t, Grade(q, graded, time.Now()), shared.ErrAttemptFinished)
}

func TestGrade_UnansweredScoreZero(t *testing.T) {
	q := newGradedQuiz(t)
	a := &Attempt{
		QuizID: q.ID, LearnerID: "u", Status: AttemptInProgress,
		Answers: []Answer{{QuestionID: "q1", SelectedOptions: []string{"a"}}},
	}
	require.NoError(t, Grade(q, a, time.Now()))

	assert.Equal(t, 2, a.Score)
	assert.InDelta(t, 0.2, a.ScoreRatio, 1e-9)
	assert.False(t, a.Passed)
}

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Bangkok  ", "bangkok"},
		{"BANG   KOK", "bang kok"},
		{"don't!", "dont"},
		{"กรุงเทพฯ", "กรุงเทพฯ"}, // paiyannoi is a letter, not punctuation
		{"\u200bสวัสดี\ufeff", "สวัสดี"}, // zero-width space and BOM stripped
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAnswer(tt.in), tt.in)
	}
}
