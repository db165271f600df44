package quiz

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implemented in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines persistence operations for quizzes.
type Repository interface {
	// Create stores a new quiz with its questions.
	Create(ctx context.Context, q *Quiz) error

	// GetByID returns a quiz with all questions.
	// Returns shared.ErrQuizNotFound if missing.
	GetByID(ctx context.Context, id string) (*Quiz, error)

	// GetByLesson returns the quizzes attached to a lesson.
	GetByLesson(ctx context.Context, lessonID string) ([]*Quiz, error)

	// Update persists quiz and question changes.
	Update(ctx context.Context, q *Quiz) error

	// Delete removes a quiz and its questions.
	Delete(ctx context.Context, id string) error
}

// AttemptRepository persists quiz attempts. Attempts are append-only:
// graded attempts are never modified.
type AttemptRepository interface {
	// Create stores a new in-progress attempt.
	// Returns shared.ErrAttemptInFlight if one is already in progress
	// for the same learner and quiz.
	Create(ctx context.Context, a *Attempt) error

	// GetByID returns an attempt.
	GetByID(ctx context.Context, id string) (*Attempt, error)

	// GetInFlight returns the learner's in-progress attempt for a quiz,
	// or shared.ErrAttemptNotFound.
	GetInFlight(ctx context.Context, learnerID, quizID string) (*Attempt, error)

	// Finalize stores the grading outcome of an attempt.
	Finalize(ctx context.Context, a *Attempt) error

	// ListByLearner returns the learner's graded attempts, newest first.
	ListByLearner(ctx context.Context, learnerID string, limit, offset int) ([]*Attempt, error)

	// CountByQuiz returns the learner's attempt count for a quiz,
	// used to assign attempt numbers.
	CountByQuiz(ctx context.Context, learnerID, quizID string) (int, error)

	// CountGradedInWindow counts a learner's graded attempts submitted
	// in [since, until), and how many of them passed. The daily
	// analytics rollup uses it.
	CountGradedInWindow(ctx context.Context, learnerID string, since, until time.Time) (taken, passed int, err error)

	// AbandonExpired marks in-progress attempts older than the quiz time
	// limit as abandoned. Returns the number of attempts abandoned.
	AbandonExpired(ctx context.Context) (int, error)
}
