package http

import (
	"net/http"
	"time"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/domain/quiz"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// optionPayload carries the answer key, which the domain type never
// serializes back to clients.
type optionPayload struct {
	ID      string               `json:"id"`
	Text    shared.LocalizedText `json:"text"`
	Correct bool                 `json:"correct"`
}

type questionPayload struct {
	Type         string               `json:"type"`
	Prompt       shared.LocalizedText `json:"prompt"`
	CompetencyID string               `json:"competency_id"`
	Points       int                  `json:"points"`
	Difficulty   float64              `json:"difficulty"`

	Options          []optionPayload `json:"options,omitempty"`
	TrueAnswer       bool            `json:"true_answer,omitempty"`
	NumericAnswer    float64         `json:"numeric_answer,omitempty"`
	NumericTolerance float64         `json:"numeric_tolerance,omitempty"`
	TextAnswers      []string        `json:"text_answers,omitempty"`
}

func (p questionPayload) toInput() command.QuestionInput {
	options := make([]quiz.Option, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, quiz.Option{ID: o.ID, Text: o.Text, Correct: o.Correct})
	}
	return command.QuestionInput{
		Type:             quiz.QuestionType(p.Type),
		Prompt:           p.Prompt,
		CompetencyID:     p.CompetencyID,
		Points:           p.Points,
		Difficulty:       p.Difficulty,
		Options:          options,
		TrueAnswer:       p.TrueAnswer,
		NumericAnswer:    p.NumericAnswer,
		NumericTolerance: p.NumericTolerance,
		TextAnswers:      p.TextAnswers,
	}
}

// handleCreateQuiz handles POST /api/v1/quizzes
func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateQuizHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Quiz authoring not configured")
		return
	}

	var req struct {
		CourseID         string               `json:"course_id"`
		LessonID         string               `json:"lesson_id"`
		Title            shared.LocalizedText `json:"title"`
		PassThreshold    float64              `json:"pass_threshold"`
		TimeLimitSeconds int                  `json:"time_limit_seconds"`
		Questions        []questionPayload    `json:"questions"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	questions := make([]command.QuestionInput, 0, len(req.Questions))
	for _, q := range req.Questions {
		questions = append(questions, q.toInput())
	}

	result, err := s.deps.CreateQuizHandler.Handle(r.Context(), command.CreateQuizCommand{
		AuthorID:      learnerFromContext(r.Context()),
		CourseID:      req.CourseID,
		LessonID:      req.LessonID,
		Title:         req.Title,
		PassThreshold: req.PassThreshold,
		TimeLimit:     time.Duration(req.TimeLimitSeconds) * time.Second,
		Questions:     questions,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":             result.Quiz.ID,
		"lesson_id":      result.Quiz.LessonID,
		"course_id":      result.Quiz.CourseID,
		"pass_threshold": result.Quiz.PassThreshold,
		"question_count": len(result.Quiz.Questions),
	})
}

// handleStartAttempt handles POST /api/v1/quizzes/{id}/attempts
func (s *Server) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	if s.deps.StartQuizHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Quiz attempts not configured")
		return
	}

	result, err := s.deps.StartQuizHandler.Handle(r.Context(), command.StartQuizAttemptCommand{
		LearnerID:     learnerFromContext(r.Context()),
		QuizID:        r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"attempt_id": result.Attempt.ID,
		"quiz_id":    result.Attempt.QuizID,
		"number":     result.Attempt.Number,
		"started_at": result.Attempt.StartedAt,
		"resumed":    result.Resumed,
	})
}

// handleSubmitAttempt handles POST /api/v1/attempts/{id}/submit
func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitQuizHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Quiz attempts not configured")
		return
	}

	var req struct {
		Answers []quiz.Answer `json:"answers"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	result, err := s.deps.SubmitQuizHandler.Handle(r.Context(), command.SubmitQuizAttemptCommand{
		LearnerID:     learnerFromContext(r.Context()),
		AttemptID:     r.PathValue("id"),
		Answers:       req.Answers,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	attempt := result.Attempt
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempt_id":     attempt.ID,
		"score":          attempt.Score,
		"max_score":      attempt.MaxScore,
		"score_ratio":    attempt.ScoreRatio,
		"passed":         attempt.Passed,
		"results":        attempt.Results,
		"submitted_at":   attempt.SubmittedAt,
		"current_streak": result.CurrentStreak,
	})
}
