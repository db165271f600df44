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
// COURSE EDITING COMMANDS
// Metadata updates, lesson additions, reordering, and lesson deletion.
// Content edits are limited to draft courses; lesson order and new
// lessons are allowed on published ones.
// ══════════════════════════════════════════════════════════════════════════════

// EditCourseHandler groups the course editing use cases; they share
// loading and authorization.
type EditCourseHandler struct {
	courseRepo   course.Repository
	progressRepo course.ProgressRepository
	learnerRepo  learner.Repository
	ids          IDGenerator
}

// NewEditCourseHandler creates the handler.
func NewEditCourseHandler(
	courseRepo course.Repository,
	progressRepo course.ProgressRepository,
	learnerRepo learner.Repository,
	ids IDGenerator,
) *EditCourseHandler {
	return &EditCourseHandler{
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
		learnerRepo:  learnerRepo,
		ids:          ids,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update metadata
// ─────────────────────────────────────────────────────────────────────────────

// UpdateCourseCommand changes course metadata. Zero-valued fields are
// left untouched.
type UpdateCourseCommand struct {
	AuthorID string
	CourseID string

	Title       shared.LocalizedText
	Description shared.LocalizedText
	Level       course.CEFRLevel

	CorrelationID string
}

// Validate checks the command fields.
func (c *UpdateCourseCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("update_course: author ID is required")
	}
	if c.CourseID == "" {
		return errors.New("update_course: course ID is required")
	}
	return nil
}

// HandleUpdate applies metadata changes to a draft course.
func (h *EditCourseHandler) HandleUpdate(ctx context.Context, cmd UpdateCourseCommand) (*course.Course, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "UpdateCourse", shared.ErrValidation, err.Error(), err)
	}

	c, err := h.authorized(ctx, cmd.AuthorID, cmd.CourseID)
	if err != nil {
		return nil, err
	}
	if c.Status != course.StatusDraft {
		return nil, shared.ErrCourseNotDraft
	}

	if !cmd.Title.IsEmpty() {
		c.Title = c.Title.Merge(cmd.Title)
	}
	if !cmd.Description.IsEmpty() {
		c.Description = c.Description.Merge(cmd.Description)
	}
	if cmd.Level != "" {
		if !cmd.Level.IsValid() {
			return nil, shared.NewDomainError("command", "UpdateCourse", shared.ErrInvalidInput, "invalid CEFR level")
		}
		c.Level = cmd.Level
	}
	c.UpdatedAt = time.Now()

	if err := h.courseRepo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update_course: failed to persist course: %w", err)
	}
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Add lesson
// ─────────────────────────────────────────────────────────────────────────────

// AddLessonCommand appends a lesson to a course.
type AddLessonCommand struct {
	AuthorID string
	CourseID string
	Lesson   LessonInput

	CorrelationID string
}

// Validate checks the command fields.
func (c *AddLessonCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("add_lesson: author ID is required")
	}
	if c.CourseID == "" {
		return errors.New("add_lesson: course ID is required")
	}
	return nil
}

// HandleAddLesson appends the lesson.
func (h *EditCourseHandler) HandleAddLesson(ctx context.Context, cmd AddLessonCommand) (*course.Lesson, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "AddLesson", shared.ErrValidation, err.Error(), err)
	}

	c, err := h.authorized(ctx, cmd.AuthorID, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	lesson := &course.Lesson{
		ID:               h.ids.NewID(),
		Title:            cmd.Lesson.Title,
		Body:             cmd.Lesson.Body,
		CompetencyIDs:    cmd.Lesson.CompetencyIDs,
		EstimatedMinutes: cmd.Lesson.EstimatedMinutes,
	}
	if err := c.AddLesson(lesson); err != nil {
		return nil, err
	}

	if err := h.courseRepo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("add_lesson: failed to persist course: %w", err)
	}
	return lesson, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reorder lessons
// ─────────────────────────────────────────────────────────────────────────────

// ReorderLessonsCommand sets a new lesson order. IDs must be a
// permutation of the course's current lessons.
type ReorderLessonsCommand struct {
	AuthorID  string
	CourseID  string
	LessonIDs []string

	CorrelationID string
}

// Validate checks the command fields.
func (c *ReorderLessonsCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("reorder_lessons: author ID is required")
	}
	if c.CourseID == "" {
		return errors.New("reorder_lessons: course ID is required")
	}
	if len(c.LessonIDs) == 0 {
		return errors.New("reorder_lessons: lesson IDs are required")
	}
	return nil
}

// HandleReorder applies the new order.
func (h *EditCourseHandler) HandleReorder(ctx context.Context, cmd ReorderLessonsCommand) (*course.Course, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "ReorderLessons", shared.ErrValidation, err.Error(), err)
	}

	c, err := h.authorized(ctx, cmd.AuthorID, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	if err := c.Reorder(cmd.LessonIDs); err != nil {
		return nil, err
	}

	if err := h.courseRepo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("reorder_lessons: failed to persist course: %w", err)
	}
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete lesson
// ─────────────────────────────────────────────────────────────────────────────

// DeleteLessonCommand removes a lesson without recorded progress.
type DeleteLessonCommand struct {
	AuthorID string
	CourseID string
	LessonID string

	CorrelationID string
}

// Validate checks the command fields.
func (c *DeleteLessonCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("delete_lesson: author ID is required")
	}
	if c.CourseID == "" {
		return errors.New("delete_lesson: course ID is required")
	}
	if c.LessonID == "" {
		return errors.New("delete_lesson: lesson ID is required")
	}
	return nil
}

// HandleDeleteLesson removes the lesson, refusing when any learner has
// progress on it. shared.ErrLessonHasProgress tells the caller to
// archive instead.
func (h *EditCourseHandler) HandleDeleteLesson(ctx context.Context, cmd DeleteLessonCommand) error {
	if err := cmd.Validate(); err != nil {
		return shared.WrapError("command", "DeleteLesson", shared.ErrValidation, err.Error(), err)
	}

	c, err := h.authorized(ctx, cmd.AuthorID, cmd.CourseID)
	if err != nil {
		return err
	}
	if _, err := c.LessonByID(cmd.LessonID); err != nil {
		return err
	}

	count, err := h.progressRepo.CountByLesson(ctx, cmd.LessonID)
	if err != nil {
		return fmt.Errorf("delete_lesson: failed to count progress: %w", err)
	}
	if count > 0 {
		return shared.ErrLessonHasProgress
	}

	if err := h.courseRepo.DeleteLesson(ctx, cmd.CourseID, cmd.LessonID); err != nil {
		return fmt.Errorf("delete_lesson: failed to delete lesson: %w", err)
	}
	return nil
}

// authorized loads the course and checks authoring rights.
func (h *EditCourseHandler) authorized(ctx context.Context, authorID, courseID string) (*course.Course, error) {
	author, err := h.learnerRepo.GetByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("edit_course: failed to load author: %w", err)
	}
	if !author.Role.CanAuthor() {
		return nil, shared.NewDomainError("command", "EditCourse", shared.ErrForbidden, "role may not author courses")
	}

	c, err := h.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("edit_course: failed to load course: %w", err)
	}
	if author.Role != learner.RoleAdmin && c.AuthorID != authorID {
		return nil, shared.NewDomainError("command", "EditCourse", shared.ErrForbidden, "course belongs to another author")
	}
	return c, nil
}
