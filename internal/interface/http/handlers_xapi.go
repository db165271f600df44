package http

import (
	"net/http"
	"time"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/application/query"
	"github.com/rianlab/rianhub/internal/domain/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// xAPI STATEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleStoreStatement handles POST /api/v1/xapi/statements
func (s *Server) handleStoreStatement(w http.ResponseWriter, r *http.Request) {
	if s.deps.StoreStatementHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Statement store not configured")
		return
	}

	var stmt xapi.Statement
	if err := decodeBody(r, &stmt); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed statement")
		return
	}

	result, err := s.deps.StoreStatementHandler.Handle(r.Context(), command.StoreStatementCommand{
		Statement:     &stmt,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     result.ID,
		"voided": result.Voided,
	})
}

// handleFindStatements handles GET /api/v1/xapi/statements
func (s *Server) handleFindStatements(w http.ResponseWriter, r *http.Request) {
	if s.deps.FindStatementsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Statement store not configured")
		return
	}

	q := query.FindStatementsQuery{
		RequesterRole: string(roleFromContext(r.Context())),
		LearnerID:     getQueryParam(r, "learner_id", ""),
		ActorHomePage: s.config.ActorHomePage,
		VerbID:        getQueryParam(r, "verb", ""),
		ActivityID:    getQueryParam(r, "activity", ""),
		Limit:         getQueryParamInt(r, "limit", 0),
		Ascending:     getQueryParamBool(r, "ascending"),
	}
	if v := getQueryParam(r, "since", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "since must be RFC 3339")
			return
		}
		q.Since = t
	}
	if v := getQueryParam(r, "until", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "until must be RFC 3339")
			return
		}
		q.Until = t
	}

	result, err := s.deps.FindStatementsHandler.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{HasMore: result.HasMore})
}
