package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE LIFECYCLE COMMANDS
// Publish makes a draft visible to learners and announces it; archive
// hides a course without touching recorded progress.
// ══════════════════════════════════════════════════════════════════════════════

// CourseNewsNotifier fans a course announcement out to learners who
// opted into course news.
type CourseNewsNotifier interface {
	NotifyCoursePublished(ctx context.Context, learnerIDs []string, courseID string, title shared.LocalizedText) error
}

// PublishCourseCommand publishes a draft course.
type PublishCourseCommand struct {
	AuthorID string
	CourseID string

	// AnnounceLimit caps how many learners receive the announcement;
	// zero uses the handler default.
	AnnounceLimit int

	CorrelationID string
}

// Validate checks the command fields.
func (c *PublishCourseCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("publish_course: author ID is required")
	}
	if c.CourseID == "" {
		return errors.New("publish_course: course ID is required")
	}
	return nil
}

// PublishCourseResult reports the published course.
type PublishCourseResult struct {
	Course *course.Course

	// Announced is how many learners were notified.
	Announced int

	Events []shared.Event
}

// defaultAnnounceLimit bounds the announcement fan-out per publish.
const defaultAnnounceLimit = 500

// PublishCourseHandler publishes and archives courses.
type PublishCourseHandler struct {
	courseRepo     course.Repository
	learnerRepo    learner.Repository
	notifier       CourseNewsNotifier
	eventPublisher shared.EventPublisher
}

// NewPublishCourseHandler creates the handler. notifier may be nil.
func NewPublishCourseHandler(
	courseRepo course.Repository,
	learnerRepo learner.Repository,
	notifier CourseNewsNotifier,
	eventPublisher shared.EventPublisher,
) *PublishCourseHandler {
	return &PublishCourseHandler{
		courseRepo:     courseRepo,
		learnerRepo:    learnerRepo,
		notifier:       notifier,
		eventPublisher: eventPublisher,
	}
}

// Handle publishes the course and announces it.
func (h *PublishCourseHandler) Handle(ctx context.Context, cmd PublishCourseCommand) (*PublishCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "PublishCourse", shared.ErrValidation, err.Error(), err)
	}

	c, err := h.authorizedCourse(ctx, cmd.AuthorID, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	if err := c.Publish(); err != nil {
		return nil, err
	}
	if err := h.courseRepo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("publish_course: failed to persist course: %w", err)
	}

	event := shared.NewCoursePublishedEvent(c.ID, c.Title.En, c.Title.Th)
	_ = h.eventPublisher.Publish(event)

	announced := 0
	if h.notifier != nil {
		limit := cmd.AnnounceLimit
		if limit <= 0 {
			limit = defaultAnnounceLimit
		}
		recipients, err := h.learnerRepo.ListByStatus(ctx, learner.StatusActive, learner.ListOptions{
			Limit:      limit,
			OrderBy:    "last_activity",
			Descending: true,
		})
		if err == nil {
			ids := make([]string, 0, len(recipients))
			for _, r := range recipients {
				ids = append(ids, r.ID)
			}
			if err := h.notifier.NotifyCoursePublished(ctx, ids, c.ID, c.Title); err == nil {
				announced = len(ids)
			}
		}
	}

	return &PublishCourseResult{
		Course:    c,
		Announced: announced,
		Events:    []shared.Event{event},
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Archive
// ─────────────────────────────────────────────────────────────────────────────

// ArchiveCourseCommand hides a course from learners.
type ArchiveCourseCommand struct {
	AuthorID string
	CourseID string

	CorrelationID string
}

// Validate checks the command fields.
func (c *ArchiveCourseCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("archive_course: author ID is required")
	}
	if c.CourseID == "" {
		return errors.New("archive_course: course ID is required")
	}
	return nil
}

// HandleArchive archives the course.
func (h *PublishCourseHandler) HandleArchive(ctx context.Context, cmd ArchiveCourseCommand) (*course.Course, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "ArchiveCourse", shared.ErrValidation, err.Error(), err)
	}

	c, err := h.authorizedCourse(ctx, cmd.AuthorID, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	c.Archive()
	if err := h.courseRepo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("archive_course: failed to persist course: %w", err)
	}
	return c, nil
}

// authorizedCourse loads the course and checks authoring rights.
// Admins may manage any course; authors only their own.
func (h *PublishCourseHandler) authorizedCourse(ctx context.Context, authorID, courseID string) (*course.Course, error) {
	author, err := h.learnerRepo.GetByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("course lifecycle: failed to load author: %w", err)
	}
	if !author.Role.CanAuthor() {
		return nil, shared.NewDomainError("command", "CourseLifecycle", shared.ErrForbidden, "role may not author courses")
	}

	c, err := h.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course lifecycle: failed to load course: %w", err)
	}
	if author.Role != learner.RoleAdmin && c.AuthorID != authorID {
		return nil, shared.NewDomainError("command", "CourseLifecycle", shared.ErrForbidden, "course belongs to another author")
	}
	return c, nil
}
