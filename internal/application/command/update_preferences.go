// Package command contains write operations (CQRS - Commands).
// Each command is a self-contained use case: an input struct with
// validation, a handler wired to domain repositories, and a result
// carrying the domain events the operation produced.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PREFERENCES COMMAND
// Online settings change. The result is appended to the sync change log
// so the learner's other devices converge on the next pull.
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesCommand carries the new preference values.
type UpdatePreferencesCommand struct {
	LearnerID   string
	Preferences learner.Preferences

	CorrelationID string
}

// Validate checks the command fields.
func (c *UpdatePreferencesCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("update_preferences: learner ID is required")
	}
	return c.Preferences.Validate()
}

// UpdatePreferencesResult reports the applied preferences.
type UpdatePreferencesResult struct {
	Preferences learner.Preferences
}

// UpdatePreferencesHandler applies preference changes.
type UpdatePreferencesHandler struct {
	learnerRepo  learner.Repository
	learnerCache learner.Cache
	changeLog    sync.ChangeLog
}

// NewUpdatePreferencesHandler creates the handler. learnerCache and
// changeLog may be nil; both are best-effort side channels.
func NewUpdatePreferencesHandler(
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	changeLog sync.ChangeLog,
) *UpdatePreferencesHandler {
	return &UpdatePreferencesHandler{
		learnerRepo:  learnerRepo,
		learnerCache: learnerCache,
		changeLog:    changeLog,
	}
}

// Handle applies the new preferences.
func (h *UpdatePreferencesHandler) Handle(ctx context.Context, cmd UpdatePreferencesCommand) (*UpdatePreferencesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "UpdatePreferences", shared.ErrValidation, err.Error(), err)
	}

	l, err := h.learnerRepo.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("update_preferences: failed to load learner: %w", err)
	}

	if err := l.UpdatePreferences(cmd.Preferences); err != nil {
		return nil, err
	}

	if err := h.learnerRepo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("update_preferences: failed to persist learner: %w", err)
	}

	if h.learnerCache != nil {
		_ = h.learnerCache.Invalidate(ctx, l.ID)
	}

	if h.changeLog != nil {
		payload, _ := json.Marshal(l.Preferences)
		_ = h.changeLog.Append(ctx, &sync.Change{
			LearnerID: l.ID,
			Entity:    "preferences",
			EntityID:  l.ID,
			Payload:   payload,
			ChangedAt: time.Now().UTC(),
		})
	}

	return &UpdatePreferencesResult{Preferences: l.Preferences}, nil
}
