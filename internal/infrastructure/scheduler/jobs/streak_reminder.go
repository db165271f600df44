package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REMINDER JOB
// ══════════════════════════════════════════════════════════════════════════════

// StreakNotifier creates streak-at-risk notifications. Implemented by
// the notification service adapter.
type StreakNotifier interface {
	NotifyStreakAtRisk(ctx context.Context, l *learner.Learner) error
}

// StreakReminderJob finds learners whose streak will break at their
// local midnight and nudges them once per day, in the evening of their
// own timezone.
type StreakReminderJob struct {
	learnerRepo learner.Repository
	notifier    StreakNotifier
	logger      *slog.Logger

	config StreakReminderConfig

	// remindedOn tracks learnerID -> local day of the last reminder so
	// repeated runs within the same evening stay quiet.
	mu         sync.Mutex
	remindedOn map[string]string

	lastRunStats atomic.Value // *StreakReminderStats
}

// StreakReminderConfig contains configuration for the reminder job.
type StreakReminderConfig struct {
	// ReminderHour is the local hour (0-23) after which reminders fire.
	ReminderHour int

	// MinStreak is the smallest streak worth protecting.
	MinStreak int

	// MaxLearners caps how many learners one run scans.
	MaxLearners int

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultStreakReminderConfig returns sensible defaults.
func DefaultStreakReminderConfig() StreakReminderConfig {
	return StreakReminderConfig{
		ReminderHour: 18,
		MinStreak:    1,
		MaxLearners:  10000,
		Timeout:      3 * time.Minute,
	}
}

// StreakReminderStats contains statistics from a reminder run.
type StreakReminderStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Scanned     int
	AtRisk      int
	Reminded    int
	Errors      []error
}

// NewStreakReminderJob creates a new reminder job.
func NewStreakReminderJob(
	learnerRepo learner.Repository,
	notifier StreakNotifier,
	logger *slog.Logger,
	config StreakReminderConfig,
) *StreakReminderJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &StreakReminderJob{
		learnerRepo: learnerRepo,
		notifier:    notifier,
		logger:      logger,
		config:      config,
		remindedOn:  make(map[string]string),
	}
}

// Name returns the job name.
func (j *StreakReminderJob) Name() string {
	return "streak_reminder"
}

// Description returns a human-readable description.
func (j *StreakReminderJob) Description() string {
	return "Reminds learners in their local evening when today's activity is still missing"
}

// Run executes one reminder pass.
func (j *StreakReminderJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &StreakReminderStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	active, err := j.learnerRepo.ListByStatus(ctx, learner.StatusActive, learner.ListOptions{
		Limit:   j.config.MaxLearners,
		OrderBy: "last_activity",
	})
	if err != nil {
		return fmt.Errorf("failed to list active learners: %w", err)
	}
	stats.Scanned = len(active)

	now := time.Now()
	for _, l := range active {
		if ctx.Err() != nil {
			stats.Errors = append(stats.Errors, ctx.Err())
			break
		}

		localDay, due := j.reminderDue(l, now)
		if !due {
			continue
		}
		stats.AtRisk++

		if j.alreadyReminded(l.ID, localDay) {
			continue
		}

		if err := j.notifier.NotifyStreakAtRisk(ctx, l); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Warn("failed to send streak reminder",
				"learner_id", l.ID,
				"streak", l.CurrentStreak,
				"error", err,
			)
			continue
		}

		j.markReminded(l.ID, localDay)
		stats.Reminded++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("streak_reminder job completed",
		"duration", stats.Duration.String(),
		"scanned", stats.Scanned,
		"at_risk", stats.AtRisk,
		"reminded", stats.Reminded,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("reminders completed with %d errors", len(stats.Errors))
	}
	return nil
}

// reminderDue reports whether the learner should be nudged right now
// and returns their current local day.
func (j *StreakReminderJob) reminderDue(l *learner.Learner, now time.Time) (string, bool) {
	if l.CurrentStreak < j.config.MinStreak {
		return "", false
	}
	if !l.Preferences.StreakReminders {
		return "", false
	}

	local := timeutil.In(now, l.Preferences.Timezone)
	day := timeutil.LocalDay(now, l.Preferences.Timezone)

	if l.LastActiveDay == day {
		return day, false
	}
	if local.Hour() < j.config.ReminderHour {
		return day, false
	}
	return day, true
}

func (j *StreakReminderJob) alreadyReminded(learnerID, day string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.remindedOn[learnerID] == day
}

func (j *StreakReminderJob) markReminded(learnerID, day string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	// The map only ever needs one entry per learner; overwriting the
	// previous day keeps it bounded.
	j.remindedOn[learnerID] = day
}

// LastRunStats returns statistics from the last run.
func (j *StreakReminderJob) LastRunStats() *StreakReminderStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*StreakReminderStats)
}
