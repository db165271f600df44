package eventhandler

import (
	"context"
	"fmt"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// XPApplier exposes the XP application as a standalone dependency for
// the achievement saga, which grants bonus XP outside this package.
type XPApplier struct {
	learnerRepo    learner.Repository
	learnerCache   learner.Cache
	eventPublisher shared.EventPublisher
}

// NewXPApplier creates the applier. learnerCache may be nil.
func NewXPApplier(learnerRepo learner.Repository, learnerCache learner.Cache, eventPublisher shared.EventPublisher) *XPApplier {
	return &XPApplier{
		learnerRepo:    learnerRepo,
		learnerCache:   learnerCache,
		eventPublisher: eventPublisher,
	}
}

// ApplyXP folds an already-ledgered grant into the learner's total.
func (a *XPApplier) ApplyXP(ctx context.Context, learnerID string, amount int, reason, refID string) error {
	return applyXP(ctx, a.learnerRepo, a.learnerCache, a.eventPublisher, learnerID, amount, reason, refID)
}

// applyXP adds granted XP to the learner's denormalized total and
// publishes XPGained plus LevelUp when a boundary was crossed. The
// ledger entry must already be appended; this only moves the sum.
func applyXP(
	ctx context.Context,
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	eventPublisher shared.EventPublisher,
	learnerID string,
	amount int,
	reason, refID string,
) error {
	if amount <= 0 {
		return nil
	}

	l, err := learnerRepo.GetByID(ctx, learnerID)
	if err != nil {
		return fmt.Errorf("apply xp: failed to load learner: %w", err)
	}

	leveledUp, oldLevel, newLevel := l.AddXP(amount)
	if err := learnerRepo.Update(ctx, l); err != nil {
		return fmt.Errorf("apply xp: failed to persist learner: %w", err)
	}
	if learnerCache != nil {
		_ = learnerCache.Invalidate(ctx, l.ID)
	}

	_ = eventPublisher.Publish(shared.NewXPGainedEvent(learnerID, amount, l.CurrentXP.Int(), reason, refID))
	if leveledUp {
		_ = eventPublisher.Publish(shared.NewLevelUpEvent(learnerID, oldLevel.Int(), newLevel.Int(), l.CurrentXP.Int()))
	}
	return nil
}
