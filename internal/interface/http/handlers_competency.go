package http

import (
	"net/http"
	"time"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCY HANDLERS
// Authoring surface for the prerequisite graph.
// ══════════════════════════════════════════════════════════════════════════════

type competencyRequest struct {
	Name            shared.LocalizedText `json:"name"`
	PrerequisiteIDs []string             `json:"prerequisite_ids"`
	DecayHalfDays   int                  `json:"decay_half_life_days"`
}

func competencyView(c *mastery.Competency) map[string]any {
	return map[string]any{
		"id":                   c.ID,
		"name":                 c.Name,
		"prerequisite_ids":     c.PrerequisiteIDs,
		"decay_half_life_days": int(c.HalfLife() / (24 * time.Hour)),
		"updated_at":           c.UpdatedAt,
	}
}

// handleCreateCompetency handles POST /api/v1/competencies
func (s *Server) handleCreateCompetency(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompetencyHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Competency authoring not configured")
		return
	}

	var req competencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.CompetencyHandler.HandleCreate(r.Context(), command.CreateCompetencyCommand{
		AuthorID:        learnerFromContext(r.Context()),
		Name:            req.Name,
		PrerequisiteIDs: req.PrerequisiteIDs,
		DecayHalfLife:   time.Duration(req.DecayHalfDays) * 24 * time.Hour,
		CorrelationID:   getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, competencyView(result.Competency))
}

// handleUpdateCompetency handles PUT /api/v1/competencies/{id}
func (s *Server) handleUpdateCompetency(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompetencyHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Competency authoring not configured")
		return
	}

	var req competencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.CompetencyHandler.HandleUpdate(r.Context(), command.UpdateCompetencyCommand{
		AuthorID:        learnerFromContext(r.Context()),
		CompetencyID:    r.PathValue("id"),
		Name:            req.Name,
		PrerequisiteIDs: req.PrerequisiteIDs,
		DecayHalfLife:   time.Duration(req.DecayHalfDays) * 24 * time.Hour,
		CorrelationID:   getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, competencyView(result.Competency))
}

// handleDeleteCompetency handles DELETE /api/v1/competencies/{id}
func (s *Server) handleDeleteCompetency(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompetencyHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Competency authoring not configured")
		return
	}

	err := s.deps.CompetencyHandler.HandleDelete(r.Context(), command.DeleteCompetencyCommand{
		AuthorID:      learnerFromContext(r.Context()),
		CompetencyID:  r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
