package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/analytics"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

type fakeAnalyticsRepo struct {
	funnel *analytics.CourseFunnel
	dist   *analytics.MasteryDistribution
	err    error
}

func (f *fakeAnalyticsRepo) UpsertRollup(ctx context.Context, r *analytics.DailyRollup) error {
	return nil
}

func (f *fakeAnalyticsRepo) GetSeries(ctx context.Context, learnerID, fromDay, toDay string) ([]*analytics.DailyRollup, error) {
	return nil, nil
}

func (f *fakeAnalyticsRepo) GetFunnel(ctx context.Context, courseID string) (*analytics.CourseFunnel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.funnel, nil
}

func (f *fakeAnalyticsRepo) GetMasteryDistribution(ctx context.Context, competencyID string) (*analytics.MasteryDistribution, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dist, nil
}

func TestGetCourseFunnel(t *testing.T) {
	repo := &fakeAnalyticsRepo{
		funnel: &analytics.CourseFunnel{CourseID: "course-1", Enrolled: 40, Started: 30, Completed: 10},
	}
	h := NewGetCourseFunnelHandler(repo)

	t.Run("returns funnel with rates", func(t *testing.T) {
		result, err := h.Handle(context.Background(), GetCourseFunnelQuery{
			RequesterRole: "author",
			CourseID:      "course-1",
		})
		require.NoError(t, err)
		assert.Equal(t, 40, result.Enrolled)
		assert.InDelta(t, 0.75, result.StartRate, 1e-9)
		assert.InDelta(t, 0.25, result.CompletionRate, 1e-9)
	})

	t.Run("learners are forbidden", func(t *testing.T) {
		_, err := h.Handle(context.Background(), GetCourseFunnelQuery{
			RequesterRole: "learner",
			CourseID:      "course-1",
		})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("missing course ID is a validation error", func(t *testing.T) {
		_, err := h.Handle(context.Background(), GetCourseFunnelQuery{RequesterRole: "admin"})
		assert.True(t, shared.IsValidation(err))
	})
}

func TestGetMasteryDistribution(t *testing.T) {
	repo := &fakeAnalyticsRepo{
		dist: &analytics.MasteryDistribution{
			CompetencyID: "comp-1",
			Counts: map[mastery.State]int{
				mastery.StateLearning:   5,
				mastery.StateProficient: 3,
			},
		},
	}
	h := NewGetMasteryDistributionHandler(repo)

	t.Run("fills every state and totals", func(t *testing.T) {
		result, err := h.Handle(context.Background(), GetMasteryDistributionQuery{
			RequesterRole: "admin",
			CompetencyID:  "comp-1",
		})
		require.NoError(t, err)
		assert.Equal(t, 8, result.Total)
		assert.Equal(t, 5, result.Counts["learning"])
		assert.Equal(t, 0, result.Counts["mastered"])
		assert.Len(t, result.Counts, 5)
	})

	t.Run("repository failure wraps as not found", func(t *testing.T) {
		failing := &fakeAnalyticsRepo{err: errors.New("connection refused")}
		_, err := NewGetMasteryDistributionHandler(failing).Handle(context.Background(), GetMasteryDistributionQuery{
			RequesterRole: "admin",
			CompetencyID:  "comp-1",
		})
		assert.True(t, shared.IsNotFound(err))
	})
}
