package http

import (
	"net/http"
	"time"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/application/query"
	"github.com/rianlab/rianhub/internal/application/saga"
	"github.com/rianlab/rianhub/internal/domain/learner"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRegister handles POST /api/v1/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.deps.Onboarding == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Registration not configured")
		return
	}

	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Language    string `json:"language"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.Onboarding.Execute(r.Context(), saga.OnboardingInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Language:    req.Language,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"learner_id":   result.Learner.ID,
		"display_name": result.Learner.DisplayName,
		"language":     result.Learner.Preferences.Language.String(),
		"onboarded_at": result.OnboardedAt,
	})
}

// handleLogin handles POST /api/v1/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.LoginHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Login not configured")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.LoginHandler.Handle(r.Context(), command.LoginCommand{
		Email:         req.Email,
		Password:      req.Password,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":        result.Token,
		"expires_at":   result.ExpiresAt.Format(time.RFC3339),
		"learner_id":   result.LearnerID,
		"display_name": result.DisplayName,
		"role":         string(result.Role),
		"language":     result.Language.String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProfile handles GET /api/v1/me
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.ProfileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Profile handler not configured")
		return
	}

	result, err := s.deps.ProfileHandler.Handle(r.Context(), query.GetLearnerProfileQuery{
		LearnerID: learnerFromContext(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleUpdatePreferences handles PUT /api/v1/me/preferences
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	if s.deps.PreferencesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Preferences handler not configured")
		return
	}

	var prefs learner.Preferences
	if err := decodeBody(r, &prefs); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.PreferencesHandler.Handle(r.Context(), command.UpdatePreferencesCommand{
		LearnerID:     learnerFromContext(r.Context()),
		Preferences:   prefs,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result.Preferences)
}
