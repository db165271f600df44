package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LESSON PROGRESS COMMAND
// The write path for online lesson activity. Progress merges
// monotonically, so a repeated "completed" is a no-op and a "started"
// after "completed" never regresses. Completion and streak movement
// surface as events; XP and achievements react to those downstream.
// ══════════════════════════════════════════════════════════════════════════════

// RecordLessonProgressCommand carries one progress report.
type RecordLessonProgressCommand struct {
	LearnerID string
	CourseID  string
	LessonID  string

	// State is "started" or "completed".
	State course.ProgressState

	// TimeSpent is the cumulative time on the lesson as the client
	// measured it.
	TimeSpent time.Duration

	CorrelationID string
}

// Validate checks the command fields.
func (c *RecordLessonProgressCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("record_lesson_progress: learner ID is required")
	}
	if c.CourseID == "" {
		return errors.New("record_lesson_progress: course ID is required")
	}
	if c.LessonID == "" {
		return errors.New("record_lesson_progress: lesson ID is required")
	}
	if c.State != course.ProgressStarted && c.State != course.ProgressCompleted {
		return errors.New("record_lesson_progress: state must be started or completed")
	}
	if c.TimeSpent < 0 {
		return errors.New("record_lesson_progress: time spent cannot be negative")
	}
	return nil
}

// RecordLessonProgressResult reports the merged progress state.
type RecordLessonProgressResult struct {
	Progress course.LessonProgress

	// NewlyCompleted is true when this report moved the lesson to
	// completed for the first time.
	NewlyCompleted bool

	StreakOutcome learner.StreakOutcome
	CurrentStreak int

	Events []shared.Event
}

// RecordLessonProgressHandler applies lesson progress reports.
type RecordLessonProgressHandler struct {
	courseRepo     course.Repository
	progressRepo   course.ProgressRepository
	learnerRepo    learner.Repository
	learnerCache   learner.Cache
	changeLog      sync.ChangeLog
	eventPublisher shared.EventPublisher
}

// NewRecordLessonProgressHandler creates the handler. learnerCache and
// changeLog may be nil.
func NewRecordLessonProgressHandler(
	courseRepo course.Repository,
	progressRepo course.ProgressRepository,
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	changeLog sync.ChangeLog,
	eventPublisher shared.EventPublisher,
) *RecordLessonProgressHandler {
	return &RecordLessonProgressHandler{
		courseRepo:     courseRepo,
		progressRepo:   progressRepo,
		learnerRepo:    learnerRepo,
		learnerCache:   learnerCache,
		changeLog:      changeLog,
		eventPublisher: eventPublisher,
	}
}

// Handle merges the progress report and maintains the daily streak.
func (h *RecordLessonProgressHandler) Handle(ctx context.Context, cmd RecordLessonProgressCommand) (*RecordLessonProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "RecordLessonProgress", shared.ErrValidation, err.Error(), err)
	}

	l, err := h.learnerRepo.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("record_lesson_progress: failed to load learner: %w", err)
	}
	if !l.Status.CanStudy() {
		return nil, shared.ErrLearnerNotActive
	}

	c, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("record_lesson_progress: failed to load course: %w", err)
	}
	if !c.Status.VisibleToLearners() {
		return nil, shared.ErrCourseUnpublished
	}
	if _, err := c.LessonByID(cmd.LessonID); err != nil {
		return nil, err
	}

	enrolled, err := h.progressRepo.IsEnrolled(ctx, cmd.LearnerID, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("record_lesson_progress: failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, shared.NewDomainError("command", "RecordLessonProgress", shared.ErrForbidden, "learner is not enrolled in the course")
	}

	now := time.Now().UTC()

	prior, err := h.progressRepo.Get(ctx, cmd.LearnerID, cmd.LessonID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, fmt.Errorf("record_lesson_progress: failed to load prior progress: %w", err)
	}
	wasCompleted := prior.State == course.ProgressCompleted

	incoming := course.LessonProgress{
		LearnerID: cmd.LearnerID,
		CourseID:  cmd.CourseID,
		LessonID:  cmd.LessonID,
		State:     cmd.State,
		TimeSpent: cmd.TimeSpent,
		StartedAt: now,
		UpdatedAt: now,
	}
	if cmd.State == course.ProgressCompleted {
		incoming.CompletedAt = now
	}

	merged, err := h.progressRepo.Upsert(ctx, incoming)
	if err != nil {
		return nil, fmt.Errorf("record_lesson_progress: failed to store progress: %w", err)
	}

	prevStreak := l.CurrentStreak
	daysMissed := l.DaysSinceActivity(now)
	outcome := l.TouchActivity(now)
	if err := h.learnerRepo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("record_lesson_progress: failed to persist learner: %w", err)
	}
	if h.learnerCache != nil {
		_ = h.learnerCache.Invalidate(ctx, l.ID)
	}

	newlyCompleted := !wasCompleted && merged.State == course.ProgressCompleted

	var events []shared.Event
	if newlyCompleted {
		events = append(events, shared.NewLessonCompletedEvent(cmd.LearnerID, cmd.CourseID, cmd.LessonID, merged.TimeSpent))
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
		payload, _ := json.Marshal(merged)
		_ = h.changeLog.Append(ctx, &sync.Change{
			LearnerID: l.ID,
			Entity:    "lesson_progress",
			EntityID:  cmd.LessonID,
			Payload:   payload,
			ChangedAt: now,
		})
	}

	return &RecordLessonProgressResult{
		Progress:       merged,
		NewlyCompleted: newlyCompleted,
		StreakOutcome:  outcome,
		CurrentStreak:  l.CurrentStreak,
		Events:         events,
	}, nil
}
