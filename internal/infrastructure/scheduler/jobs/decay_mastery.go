package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DECAY MASTERY JOB
// ══════════════════════════════════════════════════════════════════════════════

// RustyNotifier creates review-reminder notifications for competencies
// that decayed into the rusty state. Implemented by the notification
// service adapter.
type RustyNotifier interface {
	NotifyRusty(ctx context.Context, learnerID string, competency *mastery.Competency) error
}

// DecayMasteryJob sweeps stale mastery records and applies time decay.
// Records are read lazily with decay on the hot path too; the sweep
// exists so states, notifications, and analytics stay current for
// learners who stopped reading.
type DecayMasteryJob struct {
	masteryRepo    mastery.Repository
	competencyRepo mastery.CompetencyRepository
	eventPublisher shared.EventPublisher
	notifier       RustyNotifier
	logger         *slog.Logger

	config DecayMasteryConfig

	lastRunStats atomic.Value // *DecayStats
}

// DecayMasteryConfig contains configuration for the decay job.
type DecayMasteryConfig struct {
	// StaleAfter is how long since last practice before a record is
	// considered for the sweep.
	StaleAfter time.Duration

	// BatchSize caps how many stale records one run processes.
	BatchSize int

	// NotifyRusty enables review reminders on rusty transitions.
	NotifyRusty bool

	// Timeout is the maximum duration for the sweep.
	Timeout time.Duration
}

// DefaultDecayMasteryConfig returns sensible defaults.
func DefaultDecayMasteryConfig() DecayMasteryConfig {
	return DecayMasteryConfig{
		StaleAfter:  7 * 24 * time.Hour,
		BatchSize:   500,
		NotifyRusty: true,
		Timeout:     5 * time.Minute,
	}
}

// DecayStats contains statistics from a decay sweep.
type DecayStats struct {
	StartedAt         time.Time
	CompletedAt       time.Time
	Duration          time.Duration
	RecordsChecked    int
	RecordsDecayed    int
	RustyTransitions  int
	NotificationsSent int
	Errors            []error
}

// NewDecayMasteryJob creates a new decay job.
func NewDecayMasteryJob(
	masteryRepo mastery.Repository,
	competencyRepo mastery.CompetencyRepository,
	eventPublisher shared.EventPublisher,
	notifier RustyNotifier,
	logger *slog.Logger,
	config DecayMasteryConfig,
) *DecayMasteryJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &DecayMasteryJob{
		masteryRepo:    masteryRepo,
		competencyRepo: competencyRepo,
		eventPublisher: eventPublisher,
		notifier:       notifier,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *DecayMasteryJob) Name() string {
	return "decay_mastery"
}

// Description returns a human-readable description.
func (j *DecayMasteryJob) Description() string {
	return "Applies time decay to stale mastery records and flags rusty competencies"
}

// Run executes the decay sweep.
func (j *DecayMasteryJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &DecayStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting decay_mastery job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	halfLives, competencies, err := j.loadCompetencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load competencies: %w", err)
	}

	cutoff := startedAt.Add(-j.config.StaleAfter)
	stale, err := j.masteryRepo.ListStale(ctx, cutoff, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list stale records: %w", err)
	}
	stats.RecordsChecked = len(stale)

	now := time.Now().UTC()
	for _, rec := range stale {
		if ctx.Err() != nil {
			stats.Errors = append(stats.Errors, ctx.Err())
			break
		}

		m := rec.Record
		halfLife := halfLives[m.CompetencyID]
		before := m.Value

		becameRusty := m.ApplyDecay(now, halfLife)
		if m.Value >= before {
			continue
		}

		if err := j.masteryRepo.Upsert(ctx, rec.LearnerID, m); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to persist decayed record",
				"learner_id", rec.LearnerID,
				"competency_id", m.CompetencyID,
				"error", err,
			)
			continue
		}
		stats.RecordsDecayed++

		if !becameRusty {
			continue
		}
		stats.RustyTransitions++

		if j.eventPublisher != nil {
			event := shared.NewMasteryDecayedEvent(rec.LearnerID, m.CompetencyID, m.Value, m.LastPracticedAt)
			_ = j.eventPublisher.Publish(event)
		}

		if j.config.NotifyRusty && j.notifier != nil {
			if c, ok := competencies[m.CompetencyID]; ok {
				if err := j.notifier.NotifyRusty(ctx, rec.LearnerID, c); err != nil {
					j.logger.Warn("failed to send rusty notification",
						"learner_id", rec.LearnerID,
						"competency_id", m.CompetencyID,
						"error", err,
					)
				} else {
					stats.NotificationsSent++
				}
			}
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("decay_mastery job completed",
		"duration", stats.Duration.String(),
		"checked", stats.RecordsChecked,
		"decayed", stats.RecordsDecayed,
		"rusty", stats.RustyTransitions,
		"notifications", stats.NotificationsSent,
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("decay sweep completed with %d errors", len(stats.Errors))
	}
	return nil
}

// loadCompetencies loads the graph once per run and indexes half-lives.
func (j *DecayMasteryJob) loadCompetencies(ctx context.Context) (map[string]time.Duration, map[string]*mastery.Competency, error) {
	all, err := j.competencyRepo.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	halfLives := make(map[string]time.Duration, len(all))
	byID := make(map[string]*mastery.Competency, len(all))
	for _, c := range all {
		halfLives[c.ID] = c.HalfLife()
		byID[c.ID] = c
	}
	return halfLives, byID, nil
}

// LastRunStats returns statistics from the last sweep.
func (j *DecayMasteryJob) LastRunStats() *DecayStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DecayStats)
}
