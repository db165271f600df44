package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIND STATEMENTS QUERY
// Raw access to the learning record store. Admin only; learners see
// their history through the profile and progress queries instead.
// ══════════════════════════════════════════════════════════════════════════════

// FindStatementsQuery contains the statement search parameters.
type FindStatementsQuery struct {
	// RequesterRole gates access; only "admin" may search.
	RequesterRole string

	// LearnerID narrows to one actor; empty means all.
	LearnerID string

	// ActorHomePage derives the actor key together with LearnerID.
	ActorHomePage string

	// VerbID filters by verb IRI; empty means all.
	VerbID string

	// ActivityID filters by object IRI; empty means all.
	ActivityID string

	Since time.Time
	Until time.Time

	// Limit - statements per page (default 50, max 500).
	Limit int

	// Ascending flips from the default newest-first order.
	Ascending bool
}

// Validate checks the query parameters and applies defaults.
func (q *FindStatementsQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return errors.New("until cannot be before since")
	}
	return nil
}

// FindStatementsResult is the statement page.
type FindStatementsResult struct {
	Statements  []*xapi.Statement `json:"statements"`
	GeneratedAt time.Time         `json:"generated_at"`
	HasMore     bool              `json:"has_more"`
}

// FindStatementsHandler handles statement searches.
type FindStatementsHandler struct {
	statementRepo xapi.Repository
}

// NewFindStatementsHandler creates the handler.
func NewFindStatementsHandler(statementRepo xapi.Repository) *FindStatementsHandler {
	return &FindStatementsHandler{statementRepo: statementRepo}
}

// Handle executes the statement search.
func (h *FindStatementsHandler) Handle(ctx context.Context, query FindStatementsQuery) (*FindStatementsResult, error) {
	if query.RequesterRole != "admin" {
		return nil, shared.ErrForbidden
	}
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "FindStatements", shared.ErrValidation, err.Error(), err)
	}

	var actorKey string
	if query.LearnerID != "" {
		actorKey = xapi.Agent{
			Account: &xapi.Account{
				HomePage: query.ActorHomePage,
				Name:     query.LearnerID,
			},
		}.Key()
	}

	rows, err := h.statementRepo.Find(ctx, xapi.Query{
		ActorKey:   actorKey,
		VerbID:     query.VerbID,
		ActivityID: query.ActivityID,
		Since:      query.Since,
		Until:      query.Until,
		Limit:      query.Limit + 1,
		Ascending:  query.Ascending,
	})
	if err != nil {
		return nil, shared.WrapError("query", "FindStatements", shared.ErrNotFound, "failed to search statements", err)
	}

	hasMore := len(rows) > query.Limit
	if hasMore {
		rows = rows[:query.Limit]
	}

	return &FindStatementsResult{
		Statements:  rows,
		GeneratedAt: time.Now().UTC(),
		HasMore:     hasMore,
	}, nil
}
