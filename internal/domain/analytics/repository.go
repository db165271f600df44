package analytics

import (
	"context"
)

// Repository persists and serves the aggregated read models.
type Repository interface {
	// UpsertRollup writes a day's rollup, replacing any existing row
	// for (learner, day) so the job can be re-run safely.
	UpsertRollup(ctx context.Context, r *DailyRollup) error

	// GetSeries returns a learner's rollups for an inclusive local-day
	// range, oldest first, missing days omitted.
	GetSeries(ctx context.Context, learnerID, fromDay, toDay string) ([]*DailyRollup, error)

	// GetFunnel aggregates the enrollment funnel for a course.
	GetFunnel(ctx context.Context, courseID string) (*CourseFunnel, error)

	// GetMasteryDistribution aggregates learner states per competency.
	GetMasteryDistribution(ctx context.Context, competencyID string) (*MasteryDistribution, error)
}
