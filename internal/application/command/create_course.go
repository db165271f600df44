package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE COURSE COMMAND
// Authoring only; the course starts as a draft invisible to learners.
// ══════════════════════════════════════════════════════════════════════════════

// LessonInput is one lesson in a course creation request.
type LessonInput struct {
	Title            shared.LocalizedText
	Body             shared.LocalizedText
	CompetencyIDs    []string
	EstimatedMinutes int
}

// CreateCourseCommand creates a draft course with its lessons.
type CreateCourseCommand struct {
	AuthorID    string
	Title       shared.LocalizedText
	Description shared.LocalizedText
	Level       course.CEFRLevel
	Lessons     []LessonInput

	CorrelationID string
}

// Validate checks the command fields.
func (c *CreateCourseCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("create_course: author ID is required")
	}
	if !c.Title.IsValid() {
		return errors.New("create_course: title needs at least one language")
	}
	return nil
}

// CreateCourseResult reports the created course.
type CreateCourseResult struct {
	Course *course.Course
}

// CreateCourseHandler creates draft courses.
type CreateCourseHandler struct {
	courseRepo     course.Repository
	learnerRepo    learner.Repository
	competencyRepo mastery.CompetencyRepository
	ids            IDGenerator
}

// NewCreateCourseHandler creates the handler.
func NewCreateCourseHandler(
	courseRepo course.Repository,
	learnerRepo learner.Repository,
	competencyRepo mastery.CompetencyRepository,
	ids IDGenerator,
) *CreateCourseHandler {
	return &CreateCourseHandler{
		courseRepo:     courseRepo,
		learnerRepo:    learnerRepo,
		competencyRepo: competencyRepo,
		ids:            ids,
	}
}

// Handle creates the draft course.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*CreateCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "CreateCourse", shared.ErrValidation, err.Error(), err)
	}

	author, err := h.learnerRepo.GetByID(ctx, cmd.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("create_course: failed to load author: %w", err)
	}
	if !author.Role.CanAuthor() {
		return nil, shared.NewDomainError("command", "CreateCourse", shared.ErrForbidden, "role may not author courses")
	}

	c, err := course.NewCourse(course.NewCourseParams{
		ID:          h.ids.NewID(),
		AuthorID:    cmd.AuthorID,
		Title:       cmd.Title,
		Description: cmd.Description,
		Level:       cmd.Level,
	})
	if err != nil {
		return nil, err
	}

	for _, in := range cmd.Lessons {
		if err := h.checkCompetencies(ctx, in.CompetencyIDs); err != nil {
			return nil, err
		}
		lesson := &course.Lesson{
			ID:               h.ids.NewID(),
			Title:            in.Title,
			Body:             in.Body,
			CompetencyIDs:    in.CompetencyIDs,
			EstimatedMinutes: in.EstimatedMinutes,
		}
		if err := c.AddLesson(lesson); err != nil {
			return nil, err
		}
	}

	if err := h.courseRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create_course: failed to store course: %w", err)
	}

	return &CreateCourseResult{Course: c}, nil
}

// checkCompetencies verifies every referenced competency exists.
func (h *CreateCourseHandler) checkCompetencies(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := h.competencyRepo.GetByID(ctx, id); err != nil {
			if shared.IsNotFound(err) {
				return shared.WrapError("command", "CreateCourse", shared.ErrInvalidInput, "unknown competency "+id, err)
			}
			return fmt.Errorf("create_course: failed to check competency: %w", err)
		}
	}
	return nil
}
