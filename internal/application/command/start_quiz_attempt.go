package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/quiz"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// START QUIZ ATTEMPT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator mints aggregate IDs. Infrastructure provides a UUID
// implementation; tests substitute deterministic ones.
type IDGenerator interface {
	NewID() string
}

// StartQuizAttemptCommand opens a new attempt.
type StartQuizAttemptCommand struct {
	LearnerID string
	QuizID    string

	CorrelationID string
}

// Validate checks the command fields.
func (c *StartQuizAttemptCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("start_quiz_attempt: learner ID is required")
	}
	if c.QuizID == "" {
		return errors.New("start_quiz_attempt: quiz ID is required")
	}
	return nil
}

// StartQuizAttemptResult reports the opened attempt.
type StartQuizAttemptResult struct {
	Attempt *quiz.Attempt

	// Resumed is true when an in-progress attempt already existed and
	// was returned instead of opening a new one.
	Resumed bool
}

// StartQuizAttemptHandler opens quiz attempts.
type StartQuizAttemptHandler struct {
	quizRepo    quiz.Repository
	attemptRepo quiz.AttemptRepository
	learnerRepo learner.Repository
	ids         IDGenerator
}

// NewStartQuizAttemptHandler creates the handler.
func NewStartQuizAttemptHandler(
	quizRepo quiz.Repository,
	attemptRepo quiz.AttemptRepository,
	learnerRepo learner.Repository,
	ids IDGenerator,
) *StartQuizAttemptHandler {
	return &StartQuizAttemptHandler{
		quizRepo:    quizRepo,
		attemptRepo: attemptRepo,
		learnerRepo: learnerRepo,
		ids:         ids,
	}
}

// Handle opens an attempt, or resumes the in-flight one.
func (h *StartQuizAttemptHandler) Handle(ctx context.Context, cmd StartQuizAttemptCommand) (*StartQuizAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "StartQuizAttempt", shared.ErrValidation, err.Error(), err)
	}

	l, err := h.learnerRepo.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("start_quiz_attempt: failed to load learner: %w", err)
	}
	if !l.Status.CanStudy() {
		return nil, shared.ErrLearnerNotActive
	}

	if _, err := h.quizRepo.GetByID(ctx, cmd.QuizID); err != nil {
		return nil, fmt.Errorf("start_quiz_attempt: failed to load quiz: %w", err)
	}

	if inFlight, err := h.attemptRepo.GetInFlight(ctx, cmd.LearnerID, cmd.QuizID); err == nil {
		return &StartQuizAttemptResult{Attempt: inFlight, Resumed: true}, nil
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("start_quiz_attempt: failed to check in-flight attempt: %w", err)
	}

	number, err := h.attemptRepo.CountByQuiz(ctx, cmd.LearnerID, cmd.QuizID)
	if err != nil {
		return nil, fmt.Errorf("start_quiz_attempt: failed to count attempts: %w", err)
	}

	a := &quiz.Attempt{
		ID:        h.ids.NewID(),
		QuizID:    cmd.QuizID,
		LearnerID: cmd.LearnerID,
		Number:    number + 1,
		Status:    quiz.AttemptInProgress,
		StartedAt: time.Now().UTC(),
	}
	if err := h.attemptRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("start_quiz_attempt: failed to store attempt: %w", err)
	}

	return &StartQuizAttemptResult{Attempt: a}, nil
}
