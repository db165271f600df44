package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/notification"
	"github.com/rianlab/rianhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELIVER NOTIFICATIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// DeliverNotificationsJob drains pending and due-deferred notifications.
// Each notification is checked against the owner's preference toggles
// and quiet hours before it is marked delivered, deferred or skipped.
type DeliverNotificationsJob struct {
	notificationRepo notification.Repository
	learnerRepo      learner.Repository
	logger           *slog.Logger

	config DeliverNotificationsConfig

	lastRunStats atomic.Value // *DeliveryStats
}

// DeliverNotificationsConfig contains configuration for the delivery job.
type DeliverNotificationsConfig struct {
	// BatchSize caps how many due notifications one run drains.
	BatchSize int

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultDeliverNotificationsConfig returns sensible defaults.
func DefaultDeliverNotificationsConfig() DeliverNotificationsConfig {
	return DeliverNotificationsConfig{
		BatchSize: 200,
		Timeout:   2 * time.Minute,
	}
}

// DeliveryStats contains statistics from a delivery run.
type DeliveryStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Due         int
	Delivered   int
	Deferred    int
	Skipped     int
	Errors      []error
}

// NewDeliverNotificationsJob creates a new delivery job.
func NewDeliverNotificationsJob(
	notificationRepo notification.Repository,
	learnerRepo learner.Repository,
	logger *slog.Logger,
	config DeliverNotificationsConfig,
) *DeliverNotificationsJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &DeliverNotificationsJob{
		notificationRepo: notificationRepo,
		learnerRepo:      learnerRepo,
		logger:           logger,
		config:           config,
	}
}

// Name returns the job name.
func (j *DeliverNotificationsJob) Name() string {
	return "deliver_notifications"
}

// Description returns a human-readable description.
func (j *DeliverNotificationsJob) Description() string {
	return "Delivers due notifications, deferring through quiet hours and skipping gated kinds"
}

// Run executes one delivery pass.
func (j *DeliverNotificationsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &DeliveryStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := time.Now().UTC()
	due, err := j.notificationRepo.ListDue(ctx, now, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list due notifications: %w", err)
	}
	stats.Due = len(due)

	// Learners repeat across a batch; load each once.
	learners := make(map[string]*learner.Learner)

	for _, n := range due {
		if ctx.Err() != nil {
			stats.Errors = append(stats.Errors, ctx.Err())
			break
		}

		l, ok := learners[n.LearnerID]
		if !ok {
			l, err = j.learnerRepo.GetByID(ctx, n.LearnerID)
			if err != nil {
				stats.Errors = append(stats.Errors, err)
				j.logger.Error("failed to load notification owner",
					"notification_id", n.ID,
					"learner_id", n.LearnerID,
					"error", err,
				)
				continue
			}
			learners[n.LearnerID] = l
		}

		outcome, err := j.process(ctx, n, l, now)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			continue
		}
		switch outcome {
		case notification.StatusDelivered:
			stats.Delivered++
		case notification.StatusDeferred:
			stats.Deferred++
		case notification.StatusSkipped:
			stats.Skipped++
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("deliver_notifications job completed",
		"duration", stats.Duration.String(),
		"due", stats.Due,
		"delivered", stats.Delivered,
		"deferred", stats.Deferred,
		"skipped", stats.Skipped,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("delivery completed with %d errors", len(stats.Errors))
	}
	return nil
}

// process applies the gate and quiet-hours rules to one notification
// and persists the transition.
func (j *DeliverNotificationsJob) process(ctx context.Context, n *notification.Notification, l *learner.Learner, now time.Time) (notification.Status, error) {
	if !j.gateAllows(n.Kind, l.Preferences) {
		if err := n.Skip(); err != nil {
			return "", fmt.Errorf("failed to skip notification %s: %w", n.ID, err)
		}
	} else if l.Preferences.IsQuietHour(now) {
		until := timeutil.QuietHoursEnd(now, l.Preferences.Timezone, l.Preferences.QuietHoursStart, l.Preferences.QuietHoursEnd)
		if err := n.Defer(until); err != nil {
			return "", fmt.Errorf("failed to defer notification %s: %w", n.ID, err)
		}
	} else {
		if err := n.MarkDelivered(now); err != nil {
			return "", fmt.Errorf("failed to deliver notification %s: %w", n.ID, err)
		}
	}

	if err := j.notificationRepo.Update(ctx, n); err != nil {
		return "", fmt.Errorf("failed to persist notification %s: %w", n.ID, err)
	}

	j.logger.Debug("notification processed",
		"notification_id", n.ID,
		"learner_id", n.LearnerID,
		"kind", string(n.Kind),
		"status", string(n.Status),
	)
	return n.Status, nil
}

// gateAllows resolves the kind's preference toggle. Ungated kinds
// always pass.
func (j *DeliverNotificationsJob) gateAllows(kind notification.Kind, prefs learner.Preferences) bool {
	switch kind.PreferenceGate() {
	case "level_ups":
		return prefs.LevelUps
	case "achievements":
		return prefs.Achievements
	case "streak_reminders":
		return prefs.StreakReminders
	case "mastery_reminders":
		return prefs.MasteryReminders
	case "course_news":
		return prefs.CourseNews
	default:
		return true
	}
}

// LastRunStats returns statistics from the last run.
func (j *DeliverNotificationsJob) LastRunStats() *DeliveryStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DeliveryStats)
}
