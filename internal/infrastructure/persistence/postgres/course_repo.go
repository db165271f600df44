package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// Create stores a new course with its lessons.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		titleJSON, descJSON, err := marshalTexts(c.Title, c.Description)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO courses (id, author_id, title, description, level, status, published_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			c.ID,
			c.AuthorID,
			titleJSON,
			descJSON,
			string(c.Level),
			string(c.Status),
			nullTime(c.PublishedAt),
			c.CreatedAt,
			c.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrAlreadyExists
			}
			return fmt.Errorf("failed to create course: %w", err)
		}

		for _, l := range c.Lessons {
			if err := insertLesson(ctx, tx, l); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByID returns a course with all its lessons.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*course.Course, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT id, author_id, title, description, level, status, published_at, created_at, updated_at
		FROM courses
		WHERE id = $1
	`, id)

	c, err := scanCourse(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, course_id, position, title, body, competency_ids,
			   estimated_minutes, archived, created_at, updated_at
		FROM lessons
		WHERE course_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		c.Lessons = append(c.Lessons, l)
	}

	return c, rows.Err()
}

// Update persists course and lesson changes. Lessons are replaced
// wholesale; progress references lessons by ID so reordering is safe.
func (r *CourseRepository) Update(ctx context.Context, c *course.Course) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		titleJSON, descJSON, err := marshalTexts(c.Title, c.Description)
		if err != nil {
			return err
		}

		result, err := tx.Exec(ctx, `
			UPDATE courses SET
				title = $1,
				description = $2,
				level = $3,
				status = $4,
				published_at = $5,
				updated_at = $6
			WHERE id = $7
		`,
			titleJSON,
			descJSON,
			string(c.Level),
			string(c.Status),
			nullTime(c.PublishedAt),
			time.Now().UTC(),
			c.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update course: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrCourseNotFound
		}

		for _, l := range c.Lessons {
			if err := upsertLesson(ctx, tx, l); err != nil {
				return err
			}
		}

		return nil
	})
}

// List returns courses matching the filter, lessons not loaded.
func (r *CourseRepository) List(ctx context.Context, filter course.ListFilter) ([]*course.Course, error) {
	query := `
		SELECT id, author_id, title, description, level, status, published_at, created_at, updated_at
		FROM courses
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR level = $2)
		  AND ($3 = '' OR author_id::text = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.Query(ctx, query,
		string(filter.Status),
		string(filter.Level),
		filter.AuthorID,
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*course.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// DeleteLesson removes a lesson that has no recorded progress.
func (r *CourseRepository) DeleteLesson(ctx context.Context, courseID, lessonID string) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var progressCount int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM lesson_progress WHERE lesson_id = $1`, lessonID,
		).Scan(&progressCount)
		if err != nil {
			return fmt.Errorf("failed to count lesson progress: %w", err)
		}
		if progressCount > 0 {
			return shared.ErrLessonHasProgress
		}

		result, err := tx.Exec(ctx,
			`DELETE FROM lessons WHERE id = $1 AND course_id = $2`, lessonID, courseID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete lesson: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrLessonNotFound
		}

		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Lesson helpers
// ─────────────────────────────────────────────────────────────────────────────

func insertLesson(ctx context.Context, tx pgx.Tx, l *course.Lesson) error {
	titleJSON, bodyJSON, err := marshalTexts(l.Title, l.Body)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO lessons (id, course_id, position, title, body, competency_ids,
							 estimated_minutes, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		l.ID,
		l.CourseID,
		l.Position,
		titleJSON,
		bodyJSON,
		l.CompetencyIDs,
		l.EstimatedMinutes,
		l.Archived,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lesson: %w", err)
	}
	return nil
}

func upsertLesson(ctx context.Context, tx pgx.Tx, l *course.Lesson) error {
	titleJSON, bodyJSON, err := marshalTexts(l.Title, l.Body)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO lessons (id, course_id, position, title, body, competency_ids,
							 estimated_minutes, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			competency_ids = EXCLUDED.competency_ids,
			estimated_minutes = EXCLUDED.estimated_minutes,
			archived = EXCLUDED.archived,
			updated_at = EXCLUDED.updated_at
	`,
		l.ID,
		l.CourseID,
		l.Position,
		titleJSON,
		bodyJSON,
		l.CompetencyIDs,
		l.EstimatedMinutes,
		l.Archived,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lesson: %w", err)
	}
	return nil
}

func scanCourse(row rowScanner) (*course.Course, error) {
	var (
		c                   course.Course
		level, status       string
		titleJSON, descJSON []byte
		publishedAt         *time.Time
	)

	err := row.Scan(
		&c.ID,
		&c.AuthorID,
		&titleJSON,
		&descJSON,
		&level,
		&status,
		&publishedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}

	c.Level = course.CEFRLevel(level)
	c.Status = course.Status(status)
	if publishedAt != nil {
		c.PublishedAt = *publishedAt
	}

	if err := unmarshalTexts(titleJSON, descJSON, &c.Title, &c.Description); err != nil {
		return nil, err
	}

	return &c, nil
}

func scanLesson(row rowScanner) (*course.Lesson, error) {
	var (
		l                   course.Lesson
		titleJSON, bodyJSON []byte
	)

	err := row.Scan(
		&l.ID,
		&l.CourseID,
		&l.Position,
		&titleJSON,
		&bodyJSON,
		&l.CompetencyIDs,
		&l.EstimatedMinutes,
		&l.Archived,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}

	if err := unmarshalTexts(titleJSON, bodyJSON, &l.Title, &l.Body); err != nil {
		return nil, err
	}

	return &l, nil
}

func marshalTexts(a, b shared.LocalizedText) ([]byte, []byte, error) {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal localized text: %w", err)
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal localized text: %w", err)
	}
	return aJSON, bJSON, nil
}

func unmarshalTexts(aJSON, bJSON []byte, a, b *shared.LocalizedText) error {
	if err := json.Unmarshal(aJSON, a); err != nil {
		return fmt.Errorf("failed to unmarshal localized text: %w", err)
	}
	if err := json.Unmarshal(bJSON, b); err != nil {
		return fmt.Errorf("failed to unmarshal localized text: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements course.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// Enroll records course enrollment. Idempotent.
func (r *ProgressRepository) Enroll(ctx context.Context, e course.Enrollment) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO enrollments (learner_id, course_id, enrolled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (learner_id, course_id) DO NOTHING
	`, e.LearnerID, e.CourseID, e.EnrolledAt)
	if err != nil {
		return fmt.Errorf("failed to enroll: %w", err)
	}
	return nil
}

// IsEnrolled reports whether the learner has joined the course.
func (r *ProgressRepository) IsEnrolled(ctx context.Context, learnerID, courseID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM enrollments WHERE learner_id = $1 AND course_id = $2)
	`, learnerID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return exists, nil
}

// Upsert merges the given progress into the stored record and returns
// the stored result. The merge is monotonic: completion and time spent
// never roll back.
func (r *ProgressRepository) Upsert(ctx context.Context, p course.LessonProgress) (course.LessonProgress, error) {
	var merged course.LessonProgress

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT learner_id, course_id, lesson_id, state, time_spent_seconds,
				   started_at, completed_at, updated_at
			FROM lesson_progress
			WHERE learner_id = $1 AND lesson_id = $2
			FOR UPDATE
		`, p.LearnerID, p.LessonID)

		existing, err := scanProgress(row)
		switch {
		case err == nil:
			merged = existing
			merged.Merge(p)
		case IsNoRows(err):
			merged = p
		default:
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO lesson_progress (learner_id, course_id, lesson_id, state,
										 time_spent_seconds, started_at, completed_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (learner_id, lesson_id) DO UPDATE SET
				state = EXCLUDED.state,
				time_spent_seconds = EXCLUDED.time_spent_seconds,
				completed_at = EXCLUDED.completed_at,
				updated_at = EXCLUDED.updated_at
		`,
			merged.LearnerID,
			merged.CourseID,
			merged.LessonID,
			string(merged.State),
			int64(merged.TimeSpent.Seconds()),
			nullTime(merged.StartedAt),
			nullTime(merged.CompletedAt),
			merged.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert progress: %w", err)
		}
		return nil
	})

	return merged, err
}

// Get returns progress for one lesson.
func (r *ProgressRepository) Get(ctx context.Context, learnerID, lessonID string) (course.LessonProgress, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT learner_id, course_id, lesson_id, state, time_spent_seconds,
			   started_at, completed_at, updated_at
		FROM lesson_progress
		WHERE learner_id = $1 AND lesson_id = $2
	`, learnerID, lessonID)

	p, err := scanProgress(row)
	if IsNoRows(err) {
		return course.LessonProgress{}, shared.ErrNotFound
	}
	return p, err
}

// ListByCourse returns the learner's progress for every lesson of a course.
func (r *ProgressRepository) ListByCourse(ctx context.Context, learnerID, courseID string) ([]course.LessonProgress, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT learner_id, course_id, lesson_id, state, time_spent_seconds,
			   started_at, completed_at, updated_at
		FROM lesson_progress
		WHERE learner_id = $1 AND course_id = $2
	`, learnerID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []course.LessonProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

// CountByLesson returns how many learners have any progress on a lesson.
func (r *ProgressRepository) CountByLesson(ctx context.Context, lessonID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM lesson_progress WHERE lesson_id = $1`, lessonID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lesson progress: %w", err)
	}
	return count, nil
}

// ListEnrolledLearners returns the learner IDs enrolled in a course.
func (r *ProgressRepository) ListEnrolledLearners(ctx context.Context, courseID string) ([]string, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT learner_id FROM enrollments WHERE course_id = $1 ORDER BY learner_id`, courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrolled learners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan learner ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountCompletedInWindow counts lessons completed in [since, until).
func (r *ProgressRepository) CountCompletedInWindow(ctx context.Context, learnerID string, since, until time.Time) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM lesson_progress
		WHERE learner_id = $1 AND state = 'completed'
		  AND completed_at >= $2 AND completed_at < $3`,
		learnerID, since, until,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	return count, nil
}

// CourseFunnel returns enrolled/started/completed learner counts for a course.
func (r *ProgressRepository) CourseFunnel(ctx context.Context, courseID string) (enrolled, started, completed int, err error) {
	err = r.conn.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM enrollments WHERE course_id = $1),
			(SELECT COUNT(DISTINCT learner_id) FROM lesson_progress
			 WHERE course_id = $1),
			(SELECT COUNT(*) FROM (
				SELECT lp.learner_id
				FROM lesson_progress lp
				JOIN lessons l ON l.id = lp.lesson_id AND NOT l.archived
				WHERE lp.course_id = $1 AND lp.state = 'completed'
				GROUP BY lp.learner_id
				HAVING COUNT(*) = (SELECT COUNT(*) FROM lessons
								   WHERE course_id = $1 AND NOT archived)
			) done)
	`, courseID).Scan(&enrolled, &started, &completed)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to compute course funnel: %w", err)
	}
	return enrolled, started, completed, nil
}

func scanProgress(row rowScanner) (course.LessonProgress, error) {
	var (
		p                      course.LessonProgress
		state                  string
		timeSpentSeconds       int64
		startedAt, completedAt *time.Time
	)

	err := row.Scan(
		&p.LearnerID,
		&p.CourseID,
		&p.LessonID,
		&state,
		&timeSpentSeconds,
		&startedAt,
		&completedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan progress: %w", err)
	}

	p.State = course.ProgressState(state)
	p.TimeSpent = time.Duration(timeSpentSeconds) * time.Second
	if startedAt != nil {
		p.StartedAt = *startedAt
	}
	if completedAt != nil {
		p.CompletedAt = *completedAt
	}

	return p, nil
}
