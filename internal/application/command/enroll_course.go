package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL COURSE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCourseCommand enrolls a learner in a published course.
type EnrollCourseCommand struct {
	LearnerID string
	CourseID  string

	CorrelationID string
}

// Validate checks the command fields.
func (c *EnrollCourseCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("enroll_course: learner ID is required")
	}
	if c.CourseID == "" {
		return errors.New("enroll_course: course ID is required")
	}
	return nil
}

// EnrollCourseResult reports the enrollment outcome.
type EnrollCourseResult struct {
	Enrollment course.Enrollment

	// AlreadyEnrolled is true when the learner had joined before;
	// enrollment is idempotent.
	AlreadyEnrolled bool

	Events []shared.Event
}

// EnrollCourseHandler enrolls learners in courses.
type EnrollCourseHandler struct {
	courseRepo     course.Repository
	progressRepo   course.ProgressRepository
	learnerRepo    learner.Repository
	eventPublisher shared.EventPublisher
}

// NewEnrollCourseHandler creates the handler.
func NewEnrollCourseHandler(
	courseRepo course.Repository,
	progressRepo course.ProgressRepository,
	learnerRepo learner.Repository,
	eventPublisher shared.EventPublisher,
) *EnrollCourseHandler {
	return &EnrollCourseHandler{
		courseRepo:     courseRepo,
		progressRepo:   progressRepo,
		learnerRepo:    learnerRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle enrolls the learner.
func (h *EnrollCourseHandler) Handle(ctx context.Context, cmd EnrollCourseCommand) (*EnrollCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "EnrollCourse", shared.ErrValidation, err.Error(), err)
	}

	l, err := h.learnerRepo.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("enroll_course: failed to load learner: %w", err)
	}
	if !l.Status.CanStudy() {
		return nil, shared.ErrLearnerNotActive
	}

	c, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("enroll_course: failed to load course: %w", err)
	}
	if !c.Status.VisibleToLearners() {
		return nil, shared.ErrCourseUnpublished
	}

	enrolled, err := h.progressRepo.IsEnrolled(ctx, cmd.LearnerID, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("enroll_course: failed to check enrollment: %w", err)
	}

	e := course.Enrollment{
		LearnerID:  cmd.LearnerID,
		CourseID:   cmd.CourseID,
		EnrolledAt: time.Now().UTC(),
	}
	if enrolled {
		return &EnrollCourseResult{Enrollment: e, AlreadyEnrolled: true}, nil
	}

	if err := h.progressRepo.Enroll(ctx, e); err != nil {
		return nil, fmt.Errorf("enroll_course: failed to store enrollment: %w", err)
	}

	event := shared.NewLearnerEnrolledEvent(cmd.LearnerID, cmd.CourseID)
	_ = h.eventPublisher.Publish(event)

	return &EnrollCourseResult{
		Enrollment: e,
		Events:     []shared.Event{event},
	}, nil
}
