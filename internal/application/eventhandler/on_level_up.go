package eventhandler

import (
	"context"
	"log/slog"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// LevelUpNotifier creates the level-up notification. Implemented by
// service.NotificationService.
type LevelUpNotifier interface {
	NotifyLevelUp(ctx context.Context, learnerID string, oldLevel, newLevel shared.Level) error
}

// OnLevelUpHandler turns a level crossing into an in-app notification.
// Whether it actually reaches the learner is the delivery job's call
// (preference gate, quiet hours).
type OnLevelUpHandler struct {
	notifier LevelUpNotifier
	logger   *slog.Logger
}

// NewOnLevelUpHandler creates the handler.
func NewOnLevelUpHandler(notifier LevelUpNotifier, logger *slog.Logger) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLevelUpHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_level_up"),
	}
}

// Handle implements shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	levelUp, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent", "event_type", event.EventType())
		return nil
	}

	if err := h.notifier.NotifyLevelUp(ctx, levelUp.LearnerID, shared.Level(levelUp.OldLevel), shared.Level(levelUp.NewLevel)); err != nil {
		h.logger.Error("failed to create level-up notification",
			"learner_id", levelUp.LearnerID,
			"new_level", levelUp.NewLevel,
			"error", err,
		)
		return err
	}

	h.logger.Info("level-up notification queued",
		"learner_id", levelUp.LearnerID,
		"old_level", levelUp.OldLevel,
		"new_level", levelUp.NewLevel,
	)
	return nil
}
