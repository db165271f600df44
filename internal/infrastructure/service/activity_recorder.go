package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/pkg/timeutil"
)

// learnerCacheTTL matches the profile read path's cache lifetime.
const learnerCacheTTL = 10 * time.Minute

// MinuteTracker marks active minutes, keyed by learner-local day.
// Implemented by the Redis activity tracker.
type MinuteTracker interface {
	RecordActivity(ctx context.Context, learnerID string, localNow time.Time) error
}

// ActivityRecorder feeds the per-minute activity sets the nightly
// analytics rollup reads. The HTTP layer calls it on every
// authenticated request.
type ActivityRecorder struct {
	tracker      MinuteTracker
	learnerRepo  learner.Repository
	learnerCache learner.Cache
	logger       *slog.Logger
}

// NewActivityRecorder creates the recorder. learnerCache may be nil.
func NewActivityRecorder(
	tracker MinuteTracker,
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	logger *slog.Logger,
) *ActivityRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityRecorder{
		tracker:      tracker,
		learnerRepo:  learnerRepo,
		learnerCache: learnerCache,
		logger:       logger,
	}
}

// Record marks the current minute active for the learner, shifted into
// the learner's timezone so day boundaries follow their clock. Tracking
// is best effort; a failure never reaches the request path.
func (r *ActivityRecorder) Record(ctx context.Context, learnerID string) {
	if learnerID == "" {
		return
	}

	tz := learner.DefaultTimezone
	if l := r.lookup(ctx, learnerID); l != nil {
		tz = l.Preferences.Timezone
	}

	if err := r.tracker.RecordActivity(ctx, learnerID, timeutil.In(time.Now(), tz)); err != nil {
		r.logger.Debug("activity tracking failed",
			slog.String("learner_id", learnerID),
			slog.String("error", err.Error()))
	}
}

func (r *ActivityRecorder) lookup(ctx context.Context, learnerID string) *learner.Learner {
	if r.learnerCache != nil {
		if l, err := r.learnerCache.Get(ctx, learnerID); err == nil && l != nil {
			return l
		}
	}
	l, err := r.learnerRepo.GetByID(ctx, learnerID)
	if err != nil {
		return nil
	}
	if r.learnerCache != nil {
		_ = r.learnerCache.Set(ctx, l, learnerCacheTTL)
	}
	return l
}
