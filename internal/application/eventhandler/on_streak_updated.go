package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rianlab/rianhub/internal/domain/gamification"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON STREAK UPDATED HANDLER
// Milestone days pay a one-time XP bonus and queue a celebration
// notification. The grant dedupes on (learner, milestone day), so a
// streak that resets and climbs back never pays the same day twice.
// ══════════════════════════════════════════════════════════════════════════════

// StreakMilestoneNotifier creates the milestone notification.
// Implemented by service.NotificationService.
type StreakMilestoneNotifier interface {
	NotifyStreakMilestone(ctx context.Context, learnerID string, days int) error
}

// OnStreakUpdatedHandler reacts to DailyStreakUpdatedEvent.
type OnStreakUpdatedHandler struct {
	learnerRepo    learner.Repository
	learnerCache   learner.Cache
	ledgerRepo     gamification.LedgerRepository
	notifier       StreakMilestoneNotifier
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewOnStreakUpdatedHandler creates the handler. learnerCache and
// notifier may be nil.
func NewOnStreakUpdatedHandler(
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	ledgerRepo gamification.LedgerRepository,
	notifier StreakMilestoneNotifier,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *OnStreakUpdatedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnStreakUpdatedHandler{
		learnerRepo:    learnerRepo,
		learnerCache:   learnerCache,
		ledgerRepo:     ledgerRepo,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		logger:         logger.With("handler", "on_streak_updated"),
	}
}

// Handle implements shared.EventHandler.
func (h *OnStreakUpdatedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	updated, ok := event.(shared.DailyStreakUpdatedEvent)
	if !ok {
		h.logger.Warn("received non-DailyStreakUpdatedEvent", "event_type", event.EventType())
		return nil
	}

	bonus := gamification.StreakMilestoneXP(updated.CurrentStreak)
	if bonus == 0 {
		return nil
	}

	sourceID := fmt.Sprintf("streak-%d", updated.CurrentStreak)
	entry := &gamification.LedgerEntry{
		ID:        uuid.New().String(),
		LearnerID: updated.LearnerID,
		Amount:    bonus,
		Reason:    gamification.ReasonStreakMilestone,
		SourceID:  sourceID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.ledgerRepo.Append(ctx, entry); err != nil {
		if errors.Is(err, shared.ErrDuplicateOperation) {
			return nil
		}
		return fmt.Errorf("on_streak_updated: failed to append ledger entry: %w", err)
	}

	if err := applyXP(ctx, h.learnerRepo, h.learnerCache, h.eventPublisher, updated.LearnerID, bonus, string(gamification.ReasonStreakMilestone), sourceID); err != nil {
		return err
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyStreakMilestone(ctx, updated.LearnerID, updated.CurrentStreak); err != nil {
			h.logger.Warn("failed to create milestone notification",
				"learner_id", updated.LearnerID,
				"streak", updated.CurrentStreak,
				"error", err,
			)
		}
	}

	h.logger.Info("streak milestone awarded",
		"learner_id", updated.LearnerID,
		"streak", updated.CurrentStreak,
		"xp", bonus,
	)
	return nil
}
