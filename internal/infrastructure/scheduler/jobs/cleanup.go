package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rianlab/rianhub/internal/domain/leaderboard"
	"github.com/rianlab/rianhub/internal/domain/notification"
	"github.com/rianlab/rianhub/internal/domain/quiz"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEANUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// CleanupJob prunes data that has aged out: old leaderboard snapshots,
// read notifications, and quiz attempts left open past their time
// limit.
type CleanupJob struct {
	leaderboardRepo  leaderboard.Repository
	notificationRepo notification.Repository
	attemptRepo      quiz.AttemptRepository
	logger           *slog.Logger

	config CleanupConfig

	lastRunStats atomic.Value // *CleanupStats
}

// CleanupConfig contains configuration for the cleanup job.
type CleanupConfig struct {
	// SnapshotRetentionDays is how long leaderboard snapshots are kept.
	SnapshotRetentionDays int

	// NotificationRetentionDays is how long read notifications are kept.
	NotificationRetentionDays int

	// AbandonAttempts enables closing expired in-progress quiz attempts.
	AbandonAttempts bool

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultCleanupConfig returns sensible defaults.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		SnapshotRetentionDays:     7,
		NotificationRetentionDays: 90,
		AbandonAttempts:           true,
		Timeout:                   3 * time.Minute,
	}
}

// CleanupStats contains statistics from a cleanup run.
type CleanupStats struct {
	StartedAt            time.Time
	CompletedAt          time.Time
	Duration             time.Duration
	SnapshotsDeleted     int
	NotificationsDeleted int
	AttemptsAbandoned    int
	Errors               []error
}

// NewCleanupJob creates a new cleanup job.
func NewCleanupJob(
	leaderboardRepo leaderboard.Repository,
	notificationRepo notification.Repository,
	attemptRepo quiz.AttemptRepository,
	logger *slog.Logger,
	config CleanupConfig,
) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &CleanupJob{
		leaderboardRepo:  leaderboardRepo,
		notificationRepo: notificationRepo,
		attemptRepo:      attemptRepo,
		logger:           logger,
		config:           config,
	}
}

// Name returns the job name.
func (j *CleanupJob) Name() string {
	return "cleanup"
}

// Description returns a human-readable description.
func (j *CleanupJob) Description() string {
	return "Prunes aged-out snapshots and notifications and abandons expired quiz attempts"
}

// Run executes one cleanup pass. Each prune is independent; a failure
// in one does not stop the others.
func (j *CleanupJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &CleanupStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := time.Now()

	if j.config.SnapshotRetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -j.config.SnapshotRetentionDays)
		deleted, err := j.leaderboardRepo.DeleteOldSnapshots(ctx, cutoff)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Errorf("failed to delete old snapshots: %w", err))
		} else {
			stats.SnapshotsDeleted = deleted
		}
	}

	if j.config.NotificationRetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -j.config.NotificationRetentionDays)
		deleted, err := j.notificationRepo.DeleteOld(ctx, cutoff)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Errorf("failed to delete old notifications: %w", err))
		} else {
			stats.NotificationsDeleted = deleted
		}
	}

	if j.config.AbandonAttempts {
		abandoned, err := j.attemptRepo.AbandonExpired(ctx)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Errorf("failed to abandon expired attempts: %w", err))
		} else {
			stats.AttemptsAbandoned = abandoned
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("cleanup job completed",
		"duration", stats.Duration.String(),
		"snapshots_deleted", stats.SnapshotsDeleted,
		"notifications_deleted", stats.NotificationsDeleted,
		"attempts_abandoned", stats.AttemptsAbandoned,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("cleanup completed with %d errors", len(stats.Errors))
	}
	return nil
}

// LastRunStats returns statistics from the last cleanup run.
func (j *CleanupJob) LastRunStats() *CleanupStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*CleanupStats)
}
