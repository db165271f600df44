package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/quiz"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT QUIZ ATTEMPT COMMAND
// Grading itself is pure (quiz.Grade); this command wraps it with
// loading, ownership checks, persistence, and the QuizGraded event that
// drives mastery updates and XP downstream.
// ══════════════════════════════════════════════════════════════════════════════

// submitGracePeriod is how far past the quiz time limit a submission is
// still accepted. Mobile clients flush late after regaining network.
const submitGracePeriod = 5 * time.Minute

// SubmitQuizAttemptCommand carries the learner's answers.
type SubmitQuizAttemptCommand struct {
	LearnerID string
	AttemptID string
	Answers   []quiz.Answer

	CorrelationID string
}

// Validate checks the command fields.
func (c *SubmitQuizAttemptCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("submit_quiz_attempt: learner ID is required")
	}
	if c.AttemptID == "" {
		return errors.New("submit_quiz_attempt: attempt ID is required")
	}
	if len(c.Answers) == 0 {
		return errors.New("submit_quiz_attempt: at least one answer is required")
	}
	return nil
}

// SubmitQuizAttemptResult reports the graded attempt.
type SubmitQuizAttemptResult struct {
	Attempt *quiz.Attempt

	StreakOutcome learner.StreakOutcome
	CurrentStreak int

	Events []shared.Event
}

// SubmitQuizAttemptHandler grades and finalizes attempts.
type SubmitQuizAttemptHandler struct {
	quizRepo       quiz.Repository
	attemptRepo    quiz.AttemptRepository
	learnerRepo    learner.Repository
	learnerCache   learner.Cache
	changeLog      sync.ChangeLog
	eventPublisher shared.EventPublisher
}

// NewSubmitQuizAttemptHandler creates the handler. learnerCache and
// changeLog may be nil.
func NewSubmitQuizAttemptHandler(
	quizRepo quiz.Repository,
	attemptRepo quiz.AttemptRepository,
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	changeLog sync.ChangeLog,
	eventPublisher shared.EventPublisher,
) *SubmitQuizAttemptHandler {
	return &SubmitQuizAttemptHandler{
		quizRepo:       quizRepo,
		attemptRepo:    attemptRepo,
		learnerRepo:    learnerRepo,
		learnerCache:   learnerCache,
		changeLog:      changeLog,
		eventPublisher: eventPublisher,
	}
}

// Handle grades the attempt and publishes QuizGraded.
func (h *SubmitQuizAttemptHandler) Handle(ctx context.Context, cmd SubmitQuizAttemptCommand) (*SubmitQuizAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "SubmitQuizAttempt", shared.ErrValidation, err.Error(), err)
	}

	a, err := h.attemptRepo.GetByID(ctx, cmd.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("submit_quiz_attempt: failed to load attempt: %w", err)
	}
	if a.LearnerID != cmd.LearnerID {
		return nil, shared.NewDomainError("command", "SubmitQuizAttempt", shared.ErrForbidden, "attempt belongs to another learner")
	}
	switch a.Status {
	case quiz.AttemptGraded:
		return nil, shared.ErrAttemptFinished
	case quiz.AttemptAbandoned:
		return nil, shared.NewDomainError("command", "SubmitQuizAttempt", shared.ErrExpired, "attempt was abandoned")
	}

	q, err := h.quizRepo.GetByID(ctx, a.QuizID)
	if err != nil {
		return nil, fmt.Errorf("submit_quiz_attempt: failed to load quiz: %w", err)
	}

	now := time.Now().UTC()
	if q.TimeLimit > 0 && now.Sub(a.StartedAt) > q.TimeLimit+submitGracePeriod {
		return nil, shared.NewDomainError("command", "SubmitQuizAttempt", shared.ErrExpired, "time limit exceeded")
	}

	a.Answers = cmd.Answers
	if err := quiz.Grade(q, a, now); err != nil {
		return nil, err
	}

	if err := h.attemptRepo.Finalize(ctx, a); err != nil {
		return nil, fmt.Errorf("submit_quiz_attempt: failed to finalize attempt: %w", err)
	}

	l, err := h.learnerRepo.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("submit_quiz_attempt: failed to load learner: %w", err)
	}
	prevStreak := l.CurrentStreak
	daysMissed := l.DaysSinceActivity(now)
	outcome := l.TouchActivity(now)
	if err := h.learnerRepo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("submit_quiz_attempt: failed to persist learner: %w", err)
	}
	if h.learnerCache != nil {
		_ = h.learnerCache.Invalidate(ctx, l.ID)
	}

	events := []shared.Event{
		shared.NewQuizGradedEvent(a.LearnerID, a.QuizID, a.ID, q.CourseID, a.ScoreRatio, a.Passed, a.Perfect(), a.Duration(), a.Results),
	}
	if outcome == learner.StreakExtended {
		events = append(events, shared.NewDailyStreakUpdatedEvent(l.ID, l.CurrentStreak, l.BestStreak))
	}
	if outcome == learner.StreakReset {
		events = append(events, shared.NewDailyStreakBrokenEvent(l.ID, prevStreak, daysMissed))
	}
	for _, event := range events {
		_ = h.eventPublisher.Publish(event)
	}

	if h.changeLog != nil {
		payload, _ := json.Marshal(map[string]any{
			"attempt_id":  a.ID,
			"quiz_id":     a.QuizID,
			"score_ratio": a.ScoreRatio,
			"passed":      a.Passed,
		})
		_ = h.changeLog.Append(ctx, &sync.Change{
			LearnerID: l.ID,
			Entity:    "quiz_attempt",
			EntityID:  a.ID,
			Payload:   payload,
			ChangedAt: now,
		})
	}

	return &SubmitQuizAttemptResult{
		Attempt:       a,
		StreakOutcome: outcome,
		CurrentStreak: l.CurrentStreak,
		Events:        events,
	}, nil
}
