package http

import (
	"net/http"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// TUTOR CHAT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleTutorChat handles POST /api/v1/tutor/chat
func (s *Server) handleTutorChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.ChatHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Tutor not configured")
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		CourseID  string `json:"course_id"`
		Question  string `json:"question"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.ChatHandler.Handle(r.Context(), command.ChatWithTutorCommand{
		LearnerID:     learnerFromContext(r.Context()),
		SessionID:     req.SessionID,
		CourseID:      req.CourseID,
		Question:      req.Question,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": result.SessionID,
		"answer":     result.Answer,
		"degraded":   result.Degraded,
	})
}

// handleListChatSessions handles GET /api/v1/tutor/sessions
func (s *Server) handleListChatSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListSessionsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Tutor not configured")
		return
	}

	result, err := s.deps.ListSessionsHandler.Handle(r.Context(), query.ListChatSessionsQuery{
		LearnerID: learnerFromContext(r.Context()),
		Limit:     getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetChatSession handles GET /api/v1/tutor/sessions/{id}
func (s *Server) handleGetChatSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Tutor not configured")
		return
	}

	result, err := s.deps.GetSessionHandler.Handle(r.Context(), query.GetChatSessionQuery{
		SessionID: r.PathValue("id"),
		LearnerID: learnerFromContext(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
