package postgres

import (
	"context"
	"fmt"

	"github.com/rianlab/rianhub/internal/domain/analytics"
	"github.com/rianlab/rianhub/internal/domain/mastery"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsRepository implements analytics.Repository for PostgreSQL.
type AnalyticsRepository struct {
	conn *Connection
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(conn *Connection) *AnalyticsRepository {
	return &AnalyticsRepository{conn: conn}
}

// UpsertRollup stores a daily rollup. Re-running the rollup job for a
// day replaces the previous numbers.
func (r *AnalyticsRepository) UpsertRollup(ctx context.Context, rollup *analytics.DailyRollup) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO daily_rollups (
			learner_id, day, lessons_completed, quizzes_taken, quizzes_passed,
			xp_gained, active_minutes, statements, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (learner_id, day) DO UPDATE SET
			lessons_completed = EXCLUDED.lessons_completed,
			quizzes_taken = EXCLUDED.quizzes_taken,
			quizzes_passed = EXCLUDED.quizzes_passed,
			xp_gained = EXCLUDED.xp_gained,
			active_minutes = EXCLUDED.active_minutes,
			statements = EXCLUDED.statements,
			computed_at = EXCLUDED.computed_at
	`,
		rollup.LearnerID,
		rollup.Day,
		rollup.LessonsCompleted,
		rollup.QuizzesTaken,
		rollup.QuizzesPassed,
		rollup.XPGained,
		rollup.ActiveMinutes,
		rollup.Statements,
		rollup.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rollup: %w", err)
	}
	return nil
}

// GetSeries returns the learner's rollups for a day range, oldest first.
func (r *AnalyticsRepository) GetSeries(ctx context.Context, learnerID, fromDay, toDay string) ([]*analytics.DailyRollup, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT learner_id, day, lessons_completed, quizzes_taken, quizzes_passed,
			   xp_gained, active_minutes, statements, computed_at
		FROM daily_rollups
		WHERE learner_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day
	`, learnerID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollup series: %w", err)
	}
	defer rows.Close()

	var series []*analytics.DailyRollup
	for rows.Next() {
		var rollup analytics.DailyRollup
		err := rows.Scan(
			&rollup.LearnerID,
			&rollup.Day,
			&rollup.LessonsCompleted,
			&rollup.QuizzesTaken,
			&rollup.QuizzesPassed,
			&rollup.XPGained,
			&rollup.ActiveMinutes,
			&rollup.Statements,
			&rollup.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rollup: %w", err)
		}
		series = append(series, &rollup)
	}
	return series, rows.Err()
}

// GetFunnel returns the enrollment funnel for a course.
func (r *AnalyticsRepository) GetFunnel(ctx context.Context, courseID string) (*analytics.CourseFunnel, error) {
	funnel := &analytics.CourseFunnel{CourseID: courseID}

	err := r.conn.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM enrollments WHERE course_id = $1),
			(SELECT COUNT(DISTINCT learner_id) FROM lesson_progress WHERE course_id = $1),
			(SELECT COUNT(*) FROM (
				SELECT lp.learner_id
				FROM lesson_progress lp
				JOIN lessons l ON l.id = lp.lesson_id AND NOT l.archived
				WHERE lp.course_id = $1 AND lp.state = 'completed'
				GROUP BY lp.learner_id
				HAVING COUNT(*) = (SELECT COUNT(*) FROM lessons
								   WHERE course_id = $1 AND NOT archived)
			) done)
	`, courseID).Scan(&funnel.Enrolled, &funnel.Started, &funnel.Completed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute funnel: %w", err)
	}

	return funnel, nil
}

// GetMasteryDistribution returns per-state learner counts for a competency.
func (r *AnalyticsRepository) GetMasteryDistribution(ctx context.Context, competencyID string) (*analytics.MasteryDistribution, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT state, COUNT(*)
		FROM mastery_records
		WHERE competency_id = $1
		GROUP BY state
	`, competencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mastery distribution: %w", err)
	}
	defer rows.Close()

	dist := &analytics.MasteryDistribution{
		CompetencyID: competencyID,
		Counts:       make(map[mastery.State]int),
	}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}
		dist.Counts[mastery.State(state)] = count
	}
	return dist, rows.Err()
}
