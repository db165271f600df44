package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE STATEMENT COMMAND
// The write side of the statement store. Statements are append-only;
// a resend with the same ID and content is accepted silently, the same
// ID with different content is a conflict. Voiding flags the target
// instead of deleting it.
// ══════════════════════════════════════════════════════════════════════════════

// StoreStatementCommand stores one xAPI statement.
type StoreStatementCommand struct {
	Statement *xapi.Statement

	CorrelationID string
}

// Validate checks the command fields.
func (c *StoreStatementCommand) Validate() error {
	if c.Statement == nil {
		return errors.New("store_statement: statement is required")
	}
	return nil
}

// StoreStatementResult reports the stored statement ID.
type StoreStatementResult struct {
	ID string

	// Voided is the target statement ID when this was a voiding
	// statement.
	Voided string
}

// StoreStatementHandler stores xAPI statements.
type StoreStatementHandler struct {
	statementRepo xapi.Repository
	ids           IDGenerator
}

// NewStoreStatementHandler creates the handler.
func NewStoreStatementHandler(statementRepo xapi.Repository, ids IDGenerator) *StoreStatementHandler {
	return &StoreStatementHandler{
		statementRepo: statementRepo,
		ids:           ids,
	}
}

// Handle validates and stores the statement.
func (h *StoreStatementHandler) Handle(ctx context.Context, cmd StoreStatementCommand) (*StoreStatementResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "StoreStatement", shared.ErrValidation, err.Error(), err)
	}

	s := cmd.Statement
	if err := xapi.Validate(s); err != nil {
		return nil, err
	}

	id := s.ID
	if id == "" {
		id = h.ids.NewID()
	}
	s.Prepare(id, time.Now().UTC())

	result := &StoreStatementResult{ID: s.ID}

	if s.IsVoiding() {
		targetID := s.VoidedTargetID()
		target, err := h.statementRepo.GetByID(ctx, targetID)
		if err != nil {
			return nil, fmt.Errorf("store_statement: failed to load voiding target: %w", err)
		}
		// A voiding statement cannot itself be voided; rejecting the
		// inverse keeps void chains one level deep.
		if target.IsVoiding() {
			return nil, shared.ErrStatementVoided
		}

		if err := h.statementRepo.Store(ctx, s); err != nil {
			return nil, fmt.Errorf("store_statement: failed to store statement: %w", err)
		}
		if err := h.statementRepo.MarkVoided(ctx, targetID, s.ID); err != nil {
			return nil, fmt.Errorf("store_statement: failed to mark target voided: %w", err)
		}
		result.Voided = targetID
		return result, nil
	}

	if err := h.statementRepo.Store(ctx, s); err != nil {
		return nil, fmt.Errorf("store_statement: failed to store statement: %w", err)
	}
	return result, nil
}
