package course

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implemented in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ListFilter narrows course listing queries.
type ListFilter struct {
	// Status filters by lifecycle state; empty means any.
	Status Status

	// Level filters by CEFR level; empty means any.
	Level CEFRLevel

	// AuthorID filters by course author; empty means any.
	AuthorID string

	Limit  int
	Offset int
}

// Repository defines persistence operations for courses and lessons.
type Repository interface {
	// Create stores a new course with its lessons.
	Create(ctx context.Context, c *Course) error

	// GetByID returns a course with all its lessons.
	// Returns shared.ErrCourseNotFound if missing.
	GetByID(ctx context.Context, id string) (*Course, error)

	// Update persists course and lesson changes.
	Update(ctx context.Context, c *Course) error

	// List returns courses matching the filter, lessons not loaded.
	List(ctx context.Context, filter ListFilter) ([]*Course, error)

	// DeleteLesson removes a lesson that has no recorded progress.
	// Returns shared.ErrLessonHasProgress otherwise.
	DeleteLesson(ctx context.Context, courseID, lessonID string) error
}

// ProgressRepository persists per-learner lesson progress and enrollments.
type ProgressRepository interface {
	// Enroll records course enrollment; idempotent.
	Enroll(ctx context.Context, e Enrollment) error

	// IsEnrolled reports whether the learner has joined the course.
	IsEnrolled(ctx context.Context, learnerID, courseID string) (bool, error)

	// Upsert merges the given progress into the stored record using
	// LessonProgress.Merge semantics and returns the stored result.
	Upsert(ctx context.Context, p LessonProgress) (LessonProgress, error)

	// Get returns progress for one lesson.
	Get(ctx context.Context, learnerID, lessonID string) (LessonProgress, error)

	// ListByCourse returns the learner's progress for every lesson of a course.
	ListByCourse(ctx context.Context, learnerID, courseID string) ([]LessonProgress, error)

	// CountByLesson returns how many learners have any progress on a lesson.
	// Used to refuse lesson deletion.
	CountByLesson(ctx context.Context, lessonID string) (int, error)

	// ListEnrolledLearners returns the learner IDs enrolled in a course.
	// The leaderboard rebuild uses it to scope per-course rankings.
	ListEnrolledLearners(ctx context.Context, courseID string) ([]string, error)

	// CountCompletedInWindow counts lessons a learner completed in
	// [since, until). The daily analytics rollup uses it.
	CountCompletedInWindow(ctx context.Context, learnerID string, since, until time.Time) (int, error)

	// CourseFunnel returns enrolled/started/completed learner counts
	// for a course. Feeds the analytics queries.
	CourseFunnel(ctx context.Context, courseID string) (enrolled, started, completed int, err error)
}
