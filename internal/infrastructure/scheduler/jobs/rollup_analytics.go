package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rianlab/rianhub/internal/domain/analytics"
	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/gamification"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/quiz"
	"github.com/rianlab/rianhub/internal/domain/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLLUP ANALYTICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ActivityReader exposes the per-minute activity tracker to the rollup.
// Implemented by the Redis activity tracker.
type ActivityReader interface {
	// ActiveLearners returns the IDs that recorded any activity on the
	// given local day ("2006-01-02").
	ActiveLearners(ctx context.Context, day string) ([]string, error)

	// ActiveMinutes returns how many distinct minutes the learner was
	// active on the given day.
	ActiveMinutes(ctx context.Context, learnerID, day string) (int, error)
}

// RollupAnalyticsJob aggregates yesterday's activity into one
// DailyRollup row per active learner. Windows are computed in each
// learner's own timezone so a "day" matches what the learner saw.
type RollupAnalyticsJob struct {
	learnerRepo   learner.Repository
	progressRepo  course.ProgressRepository
	attemptRepo   quiz.AttemptRepository
	ledgerRepo    gamification.LedgerRepository
	statementRepo xapi.Repository
	analyticsRepo analytics.Repository
	activity      ActivityReader
	logger        *slog.Logger

	config RollupAnalyticsConfig

	lastRunStats atomic.Value // *RollupStats
}

// RollupAnalyticsConfig contains configuration for the rollup job.
type RollupAnalyticsConfig struct {
	// ActorHomePage is the account home page IRI used to key learner
	// statements in the statement store.
	ActorHomePage string

	// DaysBack selects which day to roll up, counted back from today
	// in the learner's timezone. 1 means yesterday.
	DaysBack int

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultRollupAnalyticsConfig returns sensible defaults.
func DefaultRollupAnalyticsConfig() RollupAnalyticsConfig {
	return RollupAnalyticsConfig{
		ActorHomePage: "https://rianhub.app",
		DaysBack:      1,
		Timeout:       10 * time.Minute,
	}
}

// RollupStats contains statistics from a rollup run.
type RollupStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Candidates  int
	RollupsSet  int
	Errors      []error
}

// NewRollupAnalyticsJob creates a new rollup job.
func NewRollupAnalyticsJob(
	learnerRepo learner.Repository,
	progressRepo course.ProgressRepository,
	attemptRepo quiz.AttemptRepository,
	ledgerRepo gamification.LedgerRepository,
	statementRepo xapi.Repository,
	analyticsRepo analytics.Repository,
	activity ActivityReader,
	logger *slog.Logger,
	config RollupAnalyticsConfig,
) *RollupAnalyticsJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &RollupAnalyticsJob{
		learnerRepo:   learnerRepo,
		progressRepo:  progressRepo,
		attemptRepo:   attemptRepo,
		ledgerRepo:    ledgerRepo,
		statementRepo: statementRepo,
		analyticsRepo: analyticsRepo,
		activity:      activity,
		logger:        logger,
		config:        config,
	}
}

// Name returns the job name.
func (j *RollupAnalyticsJob) Name() string {
	return "rollup_analytics"
}

// Description returns a human-readable description.
func (j *RollupAnalyticsJob) Description() string {
	return "Aggregates the previous day's activity into per-learner daily rollups"
}

// Run executes one rollup pass.
func (j *RollupAnalyticsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RollupStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting rollup_analytics job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	// The tracker indexes active learners per local day. The job runs
	// after every timezone's midnight, so yesterday in UTC and the two
	// adjacent calendar days cover all learner-local yesterdays.
	now := time.Now().UTC()
	candidates, err := j.collectCandidates(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to collect active learners: %w", err)
	}
	stats.Candidates = len(candidates)

	for learnerID := range candidates {
		if ctx.Err() != nil {
			stats.Errors = append(stats.Errors, ctx.Err())
			break
		}

		wrote, err := j.rollupLearner(ctx, learnerID, now)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to roll up learner",
				"learner_id", learnerID,
				"error", err,
			)
			continue
		}
		if wrote {
			stats.RollupsSet++
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("rollup_analytics job completed",
		"duration", stats.Duration.String(),
		"candidates", stats.Candidates,
		"rollups", stats.RollupsSet,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("rollup completed with %d errors", len(stats.Errors))
	}
	return nil
}

// collectCandidates unions the active-learner sets of the calendar days
// that can map to some learner's local target day.
func (j *RollupAnalyticsJob) collectCandidates(ctx context.Context, now time.Time) (map[string]struct{}, error) {
	candidates := make(map[string]struct{})
	for _, offset := range []int{-j.config.DaysBack - 1, -j.config.DaysBack, -j.config.DaysBack + 1} {
		day := now.AddDate(0, 0, offset).Format("2006-01-02")
		ids, err := j.activity.ActiveLearners(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			candidates[id] = struct{}{}
		}
	}
	return candidates, nil
}

// rollupLearner computes and stores one learner's rollup for their
// local target day.
func (j *RollupAnalyticsJob) rollupLearner(ctx context.Context, learnerID string, now time.Time) (bool, error) {
	l, err := j.learnerRepo.GetByID(ctx, learnerID)
	if err != nil {
		return false, fmt.Errorf("failed to load learner: %w", err)
	}

	loc := l.Preferences.Location()
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -j.config.DaysBack)
	dayEnd := dayStart.AddDate(0, 0, 1)
	day := dayStart.Format("2006-01-02")

	lessons, err := j.progressRepo.CountCompletedInWindow(ctx, learnerID, dayStart, dayEnd)
	if err != nil {
		return false, fmt.Errorf("failed to count completed lessons: %w", err)
	}

	taken, passed, err := j.attemptRepo.CountGradedInWindow(ctx, learnerID, dayStart, dayEnd)
	if err != nil {
		return false, fmt.Errorf("failed to count quiz attempts: %w", err)
	}

	xpGained, err := j.ledgerRepo.SumInWindow(ctx, learnerID, dayStart, dayEnd)
	if err != nil {
		return false, fmt.Errorf("failed to sum XP ledger: %w", err)
	}

	actorKey := xapi.Agent{
		Account: &xapi.Account{HomePage: j.config.ActorHomePage, Name: learnerID},
	}.Key()
	statements, err := j.statementRepo.CountSince(ctx, actorKey, dayStart, dayEnd)
	if err != nil {
		return false, fmt.Errorf("failed to count statements: %w", err)
	}

	minutes, err := j.activity.ActiveMinutes(ctx, learnerID, day)
	if err != nil {
		return false, fmt.Errorf("failed to read active minutes: %w", err)
	}

	if lessons == 0 && taken == 0 && xpGained == 0 && statements == 0 && minutes == 0 {
		// The candidate union over adjacent days produces learners
		// with nothing on their own local day.
		return false, nil
	}

	rollup := &analytics.DailyRollup{
		LearnerID:        learnerID,
		Day:              day,
		LessonsCompleted: lessons,
		QuizzesTaken:     taken,
		QuizzesPassed:    passed,
		XPGained:         xpGained,
		ActiveMinutes:    minutes,
		Statements:       statements,
		ComputedAt:       time.Now().UTC(),
	}
	if err := j.analyticsRepo.UpsertRollup(ctx, rollup); err != nil {
		return false, fmt.Errorf("failed to upsert rollup: %w", err)
	}
	return true, nil
}

// LastRunStats returns statistics from the last run.
func (j *RollupAnalyticsJob) LastRunStats() *RollupStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RollupStats)
}
