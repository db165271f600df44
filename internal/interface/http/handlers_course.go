package http

import (
	"net/http"
	"time"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/application/query"
	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListCourses handles GET /api/v1/courses
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListCoursesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course listing not configured")
		return
	}

	q := query.ListCoursesQuery{
		Language:           getQueryParam(r, "lang", ""),
		Level:              getQueryParam(r, "level", ""),
		IncludeUnpublished: roleFromContext(r.Context()).CanAuthor() && getQueryParamBool(r, "include_unpublished"),
		Limit:              getQueryParamInt(r, "limit", 20),
		Offset:             getQueryParamInt(r, "offset", 0),
	}

	result, err := s.deps.ListCoursesHandler.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Courses, &ResponseMeta{
		Page:     result.Page,
		PageSize: result.PageSize,
		HasMore:  result.HasMore,
	})
}

// handleGetCourse handles GET /api/v1/courses/{id}
func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course detail not configured")
		return
	}

	result, err := s.deps.GetCourseHandler.Handle(r.Context(), query.GetCourseQuery{
		CourseID:           r.PathValue("id"),
		Language:           getQueryParam(r, "lang", ""),
		LearnerID:          learnerFromContext(r.Context()),
		IncludeUnpublished: roleFromContext(r.Context()).CanAuthor(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHORING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// lessonPayload is the request body for creating or adding a lesson.
type lessonPayload struct {
	Title            shared.LocalizedText `json:"title"`
	Body             shared.LocalizedText `json:"body"`
	CompetencyIDs    []string             `json:"competency_ids"`
	EstimatedMinutes int                  `json:"estimated_minutes"`
}

func (p lessonPayload) toInput() command.LessonInput {
	return command.LessonInput{
		Title:            p.Title,
		Body:             p.Body,
		CompetencyIDs:    p.CompetencyIDs,
		EstimatedMinutes: p.EstimatedMinutes,
	}
}

// handleCreateCourse handles POST /api/v1/courses
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course authoring not configured")
		return
	}

	var req struct {
		Title       shared.LocalizedText `json:"title"`
		Description shared.LocalizedText `json:"description"`
		Level       string               `json:"level"`
		Lessons     []lessonPayload      `json:"lessons"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	lessons := make([]command.LessonInput, 0, len(req.Lessons))
	for _, l := range req.Lessons {
		lessons = append(lessons, l.toInput())
	}

	result, err := s.deps.CreateCourseHandler.Handle(r.Context(), command.CreateCourseCommand{
		AuthorID:      learnerFromContext(r.Context()),
		Title:         req.Title,
		Description:   req.Description,
		Level:         course.CEFRLevel(req.Level),
		Lessons:       lessons,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, courseSummary(result.Course))
}

// handleUpdateCourse handles PATCH /api/v1/courses/{id}
func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.EditCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course authoring not configured")
		return
	}

	var req struct {
		Title       shared.LocalizedText `json:"title"`
		Description shared.LocalizedText `json:"description"`
		Level       string               `json:"level"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	c, err := s.deps.EditCourseHandler.HandleUpdate(r.Context(), command.UpdateCourseCommand{
		AuthorID:      learnerFromContext(r.Context()),
		CourseID:      r.PathValue("id"),
		Title:         req.Title,
		Description:   req.Description,
		Level:         course.CEFRLevel(req.Level),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, courseSummary(c))
}

// handlePublishCourse handles POST /api/v1/courses/{id}/publish
func (s *Server) handlePublishCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.PublishCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course publishing not configured")
		return
	}

	result, err := s.deps.PublishCourseHandler.Handle(r.Context(), command.PublishCourseCommand{
		AuthorID:      learnerFromContext(r.Context()),
		CourseID:      r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        result.Course.ID,
		"status":    string(result.Course.Status),
		"announced": result.Announced,
	})
}

// handleArchiveCourse handles POST /api/v1/courses/{id}/archive
func (s *Server) handleArchiveCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.PublishCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course publishing not configured")
		return
	}

	c, err := s.deps.PublishCourseHandler.HandleArchive(r.Context(), command.ArchiveCourseCommand{
		AuthorID:      learnerFromContext(r.Context()),
		CourseID:      r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, courseSummary(c))
}

// handleAddLesson handles POST /api/v1/courses/{id}/lessons
func (s *Server) handleAddLesson(w http.ResponseWriter, r *http.Request) {
	if s.deps.EditCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course authoring not configured")
		return
	}

	var req lessonPayload
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	lesson, err := s.deps.EditCourseHandler.HandleAddLesson(r.Context(), command.AddLessonCommand{
		AuthorID:      learnerFromContext(r.Context()),
		CourseID:      r.PathValue("id"),
		Lesson:        req.toInput(),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"lesson_id": lesson.ID,
		"position":  lesson.Position,
	})
}

// handleReorderLessons handles PUT /api/v1/courses/{id}/lessons/order
func (s *Server) handleReorderLessons(w http.ResponseWriter, r *http.Request) {
	if s.deps.EditCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course authoring not configured")
		return
	}

	var req struct {
		LessonIDs []string `json:"lesson_ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	c, err := s.deps.EditCourseHandler.HandleReorder(r.Context(), command.ReorderLessonsCommand{
		AuthorID:      learnerFromContext(r.Context()),
		CourseID:      r.PathValue("id"),
		LessonIDs:     req.LessonIDs,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, courseSummary(c))
}

// handleDeleteLesson handles DELETE /api/v1/courses/{id}/lessons/{lessonID}
func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	if s.deps.EditCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course authoring not configured")
		return
	}

	err := s.deps.EditCourseHandler.HandleDeleteLesson(r.Context(), command.DeleteLessonCommand{
		AuthorID:      learnerFromContext(r.Context()),
		CourseID:      r.PathValue("id"),
		LessonID:      r.PathValue("lessonID"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDY FLOW HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleEnroll handles POST /api/v1/courses/{id}/enroll
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if s.deps.EnrollCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Enrollment not configured")
		return
	}

	result, err := s.deps.EnrollCourseHandler.Handle(r.Context(), command.EnrollCourseCommand{
		LearnerID:     learnerFromContext(r.Context()),
		CourseID:      r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyEnrolled {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"course_id":        result.Enrollment.CourseID,
		"enrolled_at":      result.Enrollment.EnrolledAt,
		"already_enrolled": result.AlreadyEnrolled,
	})
}

// handleLessonProgress handles POST /api/v1/courses/{id}/lessons/{lessonID}/progress
func (s *Server) handleLessonProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.LessonProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress recording not configured")
		return
	}

	var req struct {
		State            string `json:"state"`
		TimeSpentSeconds int    `json:"time_spent_seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.LessonProgressHandler.Handle(r.Context(), command.RecordLessonProgressCommand{
		LearnerID:     learnerFromContext(r.Context()),
		CourseID:      r.PathValue("id"),
		LessonID:      r.PathValue("lessonID"),
		State:         course.ProgressState(req.State),
		TimeSpent:     time.Duration(req.TimeSpentSeconds) * time.Second,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":           string(result.Progress.State),
		"newly_completed": result.NewlyCompleted,
		"current_streak":  result.CurrentStreak,
	})
}

// courseSummary flattens a course into the authoring response shape.
func courseSummary(c *course.Course) map[string]interface{} {
	return map[string]interface{}{
		"id":           c.ID,
		"status":       string(c.Status),
		"level":        string(c.Level),
		"title":        c.Title,
		"lesson_count": len(c.ActiveLessons()),
		"updated_at":   c.UpdatedAt,
	}
}
