package http

import (
	"net/http"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/application/query"
	"github.com/rianlab/rianhub/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// OFFLINE SYNC HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRegisterDevice handles POST /api/v1/sync/devices
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegisterDeviceHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Sync not configured")
		return
	}

	var req struct {
		DeviceID string `json:"device_id"`
		Platform string `json:"platform"`
		Name     string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.RegisterDeviceHandler.Handle(r.Context(), command.RegisterDeviceCommand{
		LearnerID:     learnerFromContext(r.Context()),
		DeviceID:      req.DeviceID,
		Platform:      sync.Platform(req.Platform),
		Name:          req.Name,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyRegistered {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"device_id":          result.Device.ID,
		"last_seq":           result.Device.LastSeq,
		"cursor":             result.Device.Cursor,
		"already_registered": result.AlreadyRegistered,
	})
}

// handleSyncPush handles POST /api/v1/sync/push
func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	if s.deps.SyncPushHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Sync not configured")
		return
	}

	var req struct {
		DeviceID   string           `json:"device_id"`
		AckCursor  int64            `json:"ack_cursor"`
		Operations []sync.Operation `json:"operations"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.SyncPushHandler.Handle(r.Context(), command.SyncPushCommand{
		LearnerID:     learnerFromContext(r.Context()),
		DeviceID:      req.DeviceID,
		Operations:    req.Operations,
		AckCursor:     req.AckCursor,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes":      result.Outcomes,
		"applied":       result.Applied,
		"skipped":       result.Skipped,
		"conflicts":     result.Conflicts,
		"latest_cursor": result.LatestCursor,
	})
}

// handleSyncChanges handles GET /api/v1/sync/changes
func (s *Server) handleSyncChanges(w http.ResponseWriter, r *http.Request) {
	if s.deps.SyncChangesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Sync not configured")
		return
	}

	result, err := s.deps.SyncChangesHandler.Handle(r.Context(), query.GetSyncChangesQuery{
		LearnerID: learnerFromContext(r.Context()),
		DeviceID:  getQueryParam(r, "device_id", ""),
		Cursor:    int64(getQueryParamInt(r, "cursor", 0)),
		Limit:     getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
