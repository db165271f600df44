// Package quiz contains the quiz, question and attempt domain model
// together with the deterministic grading pipeline.
package quiz

import (
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION TYPES
// ══════════════════════════════════════════════════════════════════════════════

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	// TypeSingleChoice - exactly one correct option.
	TypeSingleChoice QuestionType = "single_choice"
	// TypeMultiChoice - several correct options, partial credit.
	TypeMultiChoice QuestionType = "multi_choice"
	// TypeTrueFalse - boolean statement.
	TypeTrueFalse QuestionType = "true_false"
	// TypeNumeric - numeric answer with tolerance.
	TypeNumeric QuestionType = "numeric"
	// TypeShortText - free text matched after normalization.
	TypeShortText QuestionType = "short_text"
)

// IsValid checks the question type.
func (t QuestionType) IsValid() bool {
	switch t {
	case TypeSingleChoice, TypeMultiChoice, TypeTrueFalse, TypeNumeric, TypeShortText:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION
// ══════════════════════════════════════════════════════════════════════════════

// Option is a selectable choice for choice questions.
type Option struct {
	ID      string               `json:"id"`
	Text    shared.LocalizedText `json:"text"`
	Correct bool                 `json:"-"`
}

// Question is a single quiz item. Every question maps to exactly one
// competency - that mapping is what feeds the mastery engine.
type Question struct {
	ID     string
	QuizID string

	// Position is the 1-based order within the quiz.
	Position int

	Type   QuestionType
	Prompt shared.LocalizedText

	// CompetencyID links the question to the mastery graph.
	CompetencyID string

	// Points awarded for a fully correct answer.
	Points int

	// Difficulty in [0,1]; weighs the mastery update.
	Difficulty float64

	// Options for choice questions.
	Options []Option

	// TrueAnswer for true/false questions.
	TrueAnswer bool

	// NumericAnswer and NumericTolerance for numeric questions.
	NumericAnswer    float64
	NumericTolerance float64

	// TextAnswers lists accepted answers for short-text questions,
	// compared after normalization.
	TextAnswers []string
}

// Validate checks question invariants.
func (q *Question) Validate() error {
	if !q.Type.IsValid() {
		return shared.ErrInvalidQuestionType
	}
	if !q.Prompt.IsValid() {
		return shared.ErrMissingTranslation
	}
	if q.CompetencyID == "" {
		return shared.NewDomainError("quiz", "ValidateQuestion", shared.ErrEmptyValue, "competency ID is required")
	}
	if q.Points <= 0 {
		return shared.NewDomainError("quiz", "ValidateQuestion", shared.ErrValueOutOfRange, "points must be positive")
	}
	if q.Difficulty < 0 || q.Difficulty > 1 {
		return shared.NewDomainError("quiz", "ValidateQuestion", shared.ErrValueOutOfRange, "difficulty must be in [0,1]")
	}

	switch q.Type {
	case TypeSingleChoice:
		if q.correctOptionCount() != 1 {
			return shared.NewDomainError("quiz", "ValidateQuestion", shared.ErrInvalidInput, "single choice needs exactly one correct option")
		}
	case TypeMultiChoice:
		if len(q.Options) < 2 || q.correctOptionCount() == 0 {
			return shared.NewDomainError("quiz", "ValidateQuestion", shared.ErrInvalidInput, "multi choice needs options with at least one correct")
		}
	case TypeNumeric:
		if q.NumericTolerance < 0 {
			return shared.NewDomainError("quiz", "ValidateQuestion", shared.ErrNegativeValue, "tolerance cannot be negative")
		}
	case TypeShortText:
		if len(q.TextAnswers) == 0 {
			return shared.NewDomainError("quiz", "ValidateQuestion", shared.ErrEmptyValue, "short text needs at least one accepted answer")
		}
	}
	return nil
}

func (q *Question) correctOptionCount() int {
	n := 0
	for _, o := range q.Options {
		if o.Correct {
			n++
		}
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Quiz belongs to a lesson and aggregates ordered questions.
type Quiz struct {
	ID       string
	LessonID string
	CourseID string

	Title shared.LocalizedText

	// PassThreshold is the minimum score ratio to pass (0..1).
	PassThreshold float64

	// TimeLimit of zero means unlimited.
	TimeLimit time.Duration

	Questions []*Question

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewQuizParams carries the inputs for NewQuiz.
type NewQuizParams struct {
	ID            string
	LessonID      string
	CourseID      string
	Title         shared.LocalizedText
	PassThreshold float64
	TimeLimit     time.Duration
}

// NewQuiz creates a quiz with validation.
func NewQuiz(params NewQuizParams) (*Quiz, error) {
	if !params.Title.IsValid() {
		return nil, shared.ErrMissingTranslation
	}
	if params.LessonID == "" || params.CourseID == "" {
		return nil, shared.NewDomainError("quiz", "New", shared.ErrEmptyValue, "lesson and course IDs are required")
	}
	if params.PassThreshold < 0 || params.PassThreshold > 1 {
		return nil, shared.NewDomainError("quiz", "New", shared.ErrValueOutOfRange, "pass threshold must be in [0,1]")
	}

	now := time.Now()
	return &Quiz{
		ID:            params.ID,
		LessonID:      params.LessonID,
		CourseID:      params.CourseID,
		Title:         params.Title,
		PassThreshold: params.PassThreshold,
		TimeLimit:     params.TimeLimit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// AddQuestion appends a question at the end of the quiz.
func (q *Quiz) AddQuestion(question *Question) error {
	question.QuizID = q.ID
	question.Position = len(q.Questions) + 1
	if err := question.Validate(); err != nil {
		return err
	}
	q.Questions = append(q.Questions, question)
	q.UpdatedAt = time.Now()
	return nil
}

// TotalPoints sums the points of all questions.
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// QuestionByID finds a question within the quiz.
func (q *Quiz) QuestionByID(id string) (*Question, error) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, nil
		}
	}
	return nil, shared.ErrQuestionNotFound
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT
// ══════════════════════════════════════════════════════════════════════════════

// AttemptStatus tracks the lifecycle of an attempt.
type AttemptStatus string

const (
	// AttemptInProgress - started, not yet submitted.
	AttemptInProgress AttemptStatus = "in_progress"
	// AttemptGraded - submitted and graded.
	AttemptGraded AttemptStatus = "graded"
	// AttemptAbandoned - expired without submission.
	AttemptAbandoned AttemptStatus = "abandoned"
)

// Answer is a learner's answer to one question.
type Answer struct {
	QuestionID string `json:"question_id"`

	// SelectedOptions for choice questions.
	SelectedOptions []string `json:"selected_options,omitempty"`

	// BoolAnswer for true/false questions.
	BoolAnswer *bool `json:"bool_answer,omitempty"`

	// NumericAnswer for numeric questions.
	NumericAnswer *float64 `json:"numeric_answer,omitempty"`

	// TextAnswer for short-text questions.
	TextAnswer string `json:"text_answer,omitempty"`
}

// Attempt is an append-only record of one quiz run.
type Attempt struct {
	ID        string
	QuizID    string
	LearnerID string

	// Number is the 1-based attempt counter per learner+quiz.
	Number int

	Status AttemptStatus

	Answers []Answer

	// Grading outcome, populated on submission.
	Score       int
	MaxScore    int
	ScoreRatio  float64
	Passed      bool
	Results     []shared.QuestionResult

	StartedAt   time.Time
	SubmittedAt time.Time
}

// Duration returns how long the attempt took.
func (a *Attempt) Duration() time.Duration {
	if a.SubmittedAt.IsZero() {
		return 0
	}
	return a.SubmittedAt.Sub(a.StartedAt)
}

// Perfect reports a full score.
func (a *Attempt) Perfect() bool {
	return a.Status == AttemptGraded && a.MaxScore > 0 && a.Score == a.MaxScore
}
