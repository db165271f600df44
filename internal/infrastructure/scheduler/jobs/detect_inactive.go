package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT INACTIVE JOB
// ══════════════════════════════════════════════════════════════════════════════

// DetectInactiveJob transitions long-absent learners to the inactive
// status. Inactive learners drop out of leaderboards and reminder
// sweeps; signing in again reactivates the account.
type DetectInactiveJob struct {
	learnerRepo    learner.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config DetectInactiveConfig

	lastRunStats atomic.Value // *DetectInactiveStats
}

// DetectInactiveConfig contains configuration for the detection job.
type DetectInactiveConfig struct {
	// InactiveAfterDays is how many days without activity mark a
	// learner inactive.
	InactiveAfterDays int

	// MaxLearners caps how many learners one run transitions.
	MaxLearners int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultDetectInactiveConfig returns sensible defaults.
func DefaultDetectInactiveConfig() DetectInactiveConfig {
	return DetectInactiveConfig{
		InactiveAfterDays: 30,
		MaxLearners:       1000,
		Timeout:           3 * time.Minute,
	}
}

// DetectInactiveStats contains statistics from a detection run.
type DetectInactiveStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	Candidates     int
	MarkedInactive int
	Errors         []error
}

// NewDetectInactiveJob creates a new detection job.
func NewDetectInactiveJob(
	learnerRepo learner.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config DetectInactiveConfig,
) *DetectInactiveJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &DetectInactiveJob{
		learnerRepo:    learnerRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *DetectInactiveJob) Name() string {
	return "detect_inactive"
}

// Description returns a human-readable description.
func (j *DetectInactiveJob) Description() string {
	return "Marks learners inactive after a long absence"
}

// Run executes the detection job.
func (j *DetectInactiveJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &DetectInactiveStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting detect_inactive job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	candidates, err := j.learnerRepo.ListInactiveSince(ctx, j.config.InactiveAfterDays, learner.ListOptions{
		Limit:   j.config.MaxLearners,
		OrderBy: "last_activity",
	})
	if err != nil {
		return fmt.Errorf("failed to list absent learners: %w", err)
	}
	stats.Candidates = len(candidates)

	now := time.Now()
	for _, l := range candidates {
		if ctx.Err() != nil {
			stats.Errors = append(stats.Errors, ctx.Err())
			break
		}

		if err := l.MarkInactive(); err != nil {
			// Raced with a status change since the listing.
			continue
		}
		if err := j.learnerRepo.Update(ctx, l); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to persist inactive status",
				"learner_id", l.ID,
				"error", err,
			)
			continue
		}
		stats.MarkedInactive++

		if j.eventPublisher != nil {
			event := shared.NewLearnerInactiveEvent(l.ID, l.DaysSinceActivity(now), l.LastActivityAt)
			_ = j.eventPublisher.Publish(event)
		}

		j.logger.Info("learner marked inactive",
			"learner_id", l.ID,
			"days_inactive", l.DaysSinceActivity(now),
		)
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("detect_inactive job completed",
		"duration", stats.Duration.String(),
		"candidates", stats.Candidates,
		"marked_inactive", stats.MarkedInactive,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("detection completed with %d errors", len(stats.Errors))
	}
	return nil
}

// LastRunStats returns statistics from the last detection run.
func (j *DetectInactiveJob) LastRunStats() *DetectInactiveStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DetectInactiveStats)
}
