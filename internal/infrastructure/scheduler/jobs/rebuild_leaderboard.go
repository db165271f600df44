// Package jobs contains implementations of scheduled jobs for RianHub.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/leaderboard"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RankNotifier creates rank-change notifications for learners whose
// position moved significantly. Implemented by the notification
// service adapter.
type RankNotifier interface {
	NotifyRankChange(ctx context.Context, learnerID string, oldRank, newRank shared.Rank) error
}

// RebuildLeaderboardJob rebuilds the global and per-course leaderboard
// snapshots from learner XP, computes rank changes against the previous
// snapshot, refreshes the Redis cache, and notifies significant movers.
type RebuildLeaderboardJob struct {
	learnerRepo     learner.Repository
	courseRepo      course.Repository
	progressRepo    course.ProgressRepository
	leaderboardRepo leaderboard.Repository
	cache           leaderboard.Cache
	eventPublisher  shared.EventPublisher
	notifier        RankNotifier
	logger          *slog.Logger

	config RebuildLeaderboardConfig

	lastRebuildStats atomic.Value // *RebuildStats
}

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// NotifyRankChanges enables notifications for rank changes.
	NotifyRankChanges bool

	// MinRankChangeForNotification is the minimum position delta that
	// triggers a notification.
	MinRankChangeForNotification int

	// CacheTopN is how many entries to push into the Redis cache.
	CacheTopN int

	// CacheTTL is the TTL for cached leaderboard data.
	CacheTTL time.Duration

	// MaxLearners caps the ranking size per rebuild.
	MaxLearners int

	// Timeout is the maximum duration for the rebuild operation.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		NotifyRankChanges:            true,
		MinRankChangeForNotification: 3,
		CacheTopN:                    100,
		CacheTTL:                     10 * time.Minute,
		MaxLearners:                  10000,
		Timeout:                      5 * time.Minute,
	}
}

// RebuildStats contains statistics from a rebuild run.
type RebuildStats struct {
	StartedAt         time.Time
	CompletedAt       time.Time
	Duration          time.Duration
	TotalLearners     int
	ScopesProcessed   int
	SnapshotsCreated  int
	RankChangesFound  int
	NotificationsSent int
	Errors            []error
}

// NewRebuildLeaderboardJob creates a new rebuild leaderboard job.
func NewRebuildLeaderboardJob(
	learnerRepo learner.Repository,
	courseRepo course.Repository,
	progressRepo course.ProgressRepository,
	leaderboardRepo leaderboard.Repository,
	cache leaderboard.Cache,
	eventPublisher shared.EventPublisher,
	notifier RankNotifier,
	logger *slog.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &RebuildLeaderboardJob{
		learnerRepo:     learnerRepo,
		courseRepo:      courseRepo,
		progressRepo:    progressRepo,
		leaderboardRepo: leaderboardRepo,
		cache:           cache,
		eventPublisher:  eventPublisher,
		notifier:        notifier,
		logger:          logger,
		config:          config,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds leaderboard snapshots and detects rank changes for notifications"
}

// Run executes the rebuild job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RebuildStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting rebuild_leaderboard job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	learners, err := j.getRankedLearners(ctx)
	if err != nil {
		return fmt.Errorf("failed to get learners: %w", err)
	}

	stats.TotalLearners = len(learners)
	j.logger.Info("found learners for leaderboard", "count", stats.TotalLearners)

	if stats.TotalLearners == 0 {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(startedAt)
		j.lastRebuildStats.Store(stats)
		return nil
	}

	byID := make(map[string]*learner.Learner, len(learners))
	for _, l := range learners {
		byID[l.ID] = l
	}

	// Global scope ranks everyone. Notifications are only produced
	// here; per-course movement is visible but not pushed.
	if err := j.rebuildScope(ctx, leaderboard.ScopeGlobal, learners, true, stats); err != nil {
		stats.Errors = append(stats.Errors, err)
		j.logger.Error("failed to rebuild global leaderboard", "error", err)
	}
	stats.ScopesProcessed++

	// One scope per published course, ranking its enrollees.
	courses, err := j.courseRepo.List(ctx, course.ListFilter{Status: course.StatusPublished})
	if err != nil {
		stats.Errors = append(stats.Errors, err)
		j.logger.Error("failed to list courses for leaderboard", "error", err)
	}
	for _, c := range courses {
		enrolled, err := j.progressRepo.ListEnrolledLearners(ctx, c.ID)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			continue
		}

		scoped := make([]*learner.Learner, 0, len(enrolled))
		for _, id := range enrolled {
			if l, ok := byID[id]; ok {
				scoped = append(scoped, l)
			}
		}
		if len(scoped) == 0 {
			continue
		}

		if err := j.rebuildScope(ctx, leaderboard.ScopeCourse(c.ID), scoped, false, stats); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to rebuild course leaderboard",
				"course_id", c.ID,
				"error", err,
			)
		}
		stats.ScopesProcessed++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRebuildStats.Store(stats)

	j.logger.Info("rebuild_leaderboard job completed",
		"duration", stats.Duration.String(),
		"total_learners", stats.TotalLearners,
		"scopes", stats.ScopesProcessed,
		"snapshots_created", stats.SnapshotsCreated,
		"rank_changes", stats.RankChangesFound,
		"notifications", stats.NotificationsSent,
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("rebuild completed with %d errors", len(stats.Errors))
	}

	return nil
}

// rebuildScope rebuilds one scope's snapshot and cache.
func (j *RebuildLeaderboardJob) rebuildScope(
	ctx context.Context,
	scope leaderboard.Scope,
	learners []*learner.Learner,
	notify bool,
	stats *RebuildStats,
) error {
	previous, err := j.leaderboardRepo.GetLatestSnapshot(ctx, scope)
	if err != nil && !errors.Is(err, shared.ErrSnapshotNotFound) {
		j.logger.Warn("failed to load previous snapshot", "scope", scope.Key(), "error", err)
	}

	ranking := leaderboard.NewRanking()
	now := time.Now().UTC()
	for _, l := range learners {
		entry := &leaderboard.Entry{
			LearnerID:   l.ID,
			DisplayName: l.DisplayName,
			XP:          l.CurrentXP,
			Level:       l.Level().Int(),
			UpdatedAt:   now,
		}
		if err := ranking.Add(entry); err != nil {
			j.logger.Warn("failed to add entry to ranking",
				"learner_id", l.ID,
				"error", err,
			)
		}
	}
	ranking.SortByXP()

	snapshot := leaderboard.NewSnapshot(uuid.New().String(), scope, ranking, now)
	snapshot.ApplyRankChanges(previous)

	if err := j.leaderboardRepo.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	stats.SnapshotsCreated++

	if j.cache != nil {
		top := snapshot.Top(j.config.CacheTopN)
		if err := j.cache.SetTop(ctx, scope, top, j.config.CacheTTL); err != nil {
			j.logger.Warn("failed to cache leaderboard", "scope", scope.Key(), "error", err)
		}
	}

	movers := snapshot.Movers(1)
	stats.RankChangesFound += len(movers)

	if notify && j.config.NotifyRankChanges && previous != nil {
		for _, entry := range snapshot.Movers(j.config.MinRankChangeForNotification) {
			j.notifyRankChange(ctx, scope, entry, stats)
		}
	}

	j.logger.Debug("leaderboard rebuilt",
		"scope", scope.Key(),
		"learners", snapshot.TotalLearners,
		"average_xp", snapshot.AverageXP(),
	)

	return nil
}

// notifyRankChange notifies one mover and emits the rank event.
func (j *RebuildLeaderboardJob) notifyRankChange(
	ctx context.Context,
	scope leaderboard.Scope,
	entry *leaderboard.Entry,
	stats *RebuildStats,
) {
	oldRank := shared.Rank(int(entry.Rank) + int(entry.RankChange))
	newRank := entry.Rank

	if j.eventPublisher != nil {
		event := shared.NewRankChangedEvent(entry.LearnerID, int(oldRank), int(newRank), scope.Key())
		_ = j.eventPublisher.Publish(event)
	}

	if j.notifier == nil {
		return
	}
	if err := j.notifier.NotifyRankChange(ctx, entry.LearnerID, oldRank, newRank); err != nil {
		j.logger.Warn("failed to send rank change notification",
			"learner_id", entry.LearnerID,
			"error", err,
		)
		return
	}
	stats.NotificationsSent++
}

// getRankedLearners retrieves every active learner for the ranking.
func (j *RebuildLeaderboardJob) getRankedLearners(ctx context.Context) ([]*learner.Learner, error) {
	opts := learner.DefaultListOptions()
	opts.Limit = j.config.MaxLearners
	opts.OrderBy = "xp"
	return j.learnerRepo.ListByStatus(ctx, learner.StatusActive, opts)
}

// LastRebuildStats returns statistics from the last rebuild.
func (j *RebuildLeaderboardJob) LastRebuildStats() *RebuildStats {
	stats := j.lastRebuildStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RebuildStats)
}
