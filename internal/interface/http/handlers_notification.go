package http

import (
	"net/http"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListNotifications handles GET /api/v1/me/notifications
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.NotificationsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Notifications not configured")
		return
	}

	result, err := s.deps.NotificationsHandler.Handle(r.Context(), query.GetNotificationsQuery{
		LearnerID:  learnerFromContext(r.Context()),
		Language:   getQueryParam(r, "lang", ""),
		UnreadOnly: getQueryParamBool(r, "unread_only"),
		Kind:       getQueryParam(r, "kind", ""),
		Limit:      getQueryParamInt(r, "limit", 20),
		Offset:     getQueryParamInt(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{
		Page:     result.Page,
		PageSize: result.PageSize,
		HasMore:  result.HasMore,
	})
}

// handleMarkNotificationRead handles POST /api/v1/me/notifications/{id}/read
func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if s.deps.MarkReadHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Notifications not configured")
		return
	}

	result, err := s.deps.MarkReadHandler.Handle(r.Context(), command.MarkNotificationReadCommand{
		LearnerID:      learnerFromContext(r.Context()),
		NotificationID: r.PathValue("id"),
		CorrelationID:  getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"marked": result.Marked})
}

// handleMarkAllNotificationsRead handles POST /api/v1/me/notifications/read-all
func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if s.deps.MarkReadHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Notifications not configured")
		return
	}

	result, err := s.deps.MarkReadHandler.HandleAll(r.Context(), command.MarkAllNotificationsReadCommand{
		LearnerID:     learnerFromContext(r.Context()),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"marked": result.Marked})
}
