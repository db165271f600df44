package http

import (
	"net/http"

	"github.com/rianlab/rianhub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY & PATH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleMasteryProfile handles GET /api/v1/me/mastery
func (s *Server) handleMasteryProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.MasteryProfileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Mastery profile not configured")
		return
	}

	result, err := s.deps.MasteryProfileHandler.Handle(r.Context(), query.GetMasteryProfileQuery{
		LearnerID: learnerFromContext(r.Context()),
		Language:  getQueryParam(r, "lang", ""),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLearningPath handles GET /api/v1/me/path
func (s *Server) handleLearningPath(w http.ResponseWriter, r *http.Request) {
	if s.deps.LearningPathHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Learning path not configured")
		return
	}

	result, err := s.deps.LearningPathHandler.Handle(r.Context(), query.GetLearningPathQuery{
		LearnerID: learnerFromContext(r.Context()),
		CourseID:  getQueryParam(r, "course_id", ""),
		Language:  getQueryParam(r, "lang", ""),
		MaxSlots:  getQueryParamInt(r, "slots", 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleDailyProgress handles GET /api/v1/me/progress/daily
func (s *Server) handleDailyProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.DailyProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Daily progress not configured")
		return
	}

	result, err := s.deps.DailyProgressHandler.Handle(r.Context(), query.GetDailyProgressQuery{
		LearnerID: learnerFromContext(r.Context()),
		Days:      getQueryParamInt(r, "days", 0),
		Timezone:  getQueryParam(r, "tz", ""),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ─────────────────────────────────────────────────────────────────────────────
// REPORTING
// ─────────────────────────────────────────────────────────────────────────────

// handleCourseFunnel handles GET /api/v1/courses/{id}/funnel
func (s *Server) handleCourseFunnel(w http.ResponseWriter, r *http.Request) {
	if s.deps.CourseFunnelHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course analytics not configured")
		return
	}

	result, err := s.deps.CourseFunnelHandler.Handle(r.Context(), query.GetCourseFunnelQuery{
		RequesterRole: string(roleFromContext(r.Context())),
		CourseID:      r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleMasteryDistribution handles GET /api/v1/competencies/{id}/distribution
func (s *Server) handleMasteryDistribution(w http.ResponseWriter, r *http.Request) {
	if s.deps.MasteryDistHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course analytics not configured")
		return
	}

	result, err := s.deps.MasteryDistHandler.Handle(r.Context(), query.GetMasteryDistributionQuery{
		RequesterRole: string(roleFromContext(r.Context())),
		CompetencyID:  r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.LeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		CourseID: getQueryParam(r, "course_id", ""),
		Limit:    getQueryParamInt(r, "limit", 20),
		Offset:   getQueryParamInt(r, "offset", 0),
	}
	// around_me centers the window on the caller's own rank.
	if getQueryParamBool(r, "around_me") {
		q.AroundLearnerID = learnerFromContext(r.Context())
	}

	result, err := s.deps.LeaderboardHandler.Handle(r.Context(), q)
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
