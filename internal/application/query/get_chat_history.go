package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/tutor"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHAT HISTORY QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ListChatSessionsQuery contains the session list parameters.
type ListChatSessionsQuery struct {
	// LearnerID - whose sessions to list (required).
	LearnerID string

	// Limit - sessions to return (default 20, max 50).
	Limit int
}

// Validate checks the query parameters and applies defaults.
func (q *ListChatSessionsQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 50 {
		q.Limit = 50
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	return nil
}

// ChatSessionDTO is one session card.
type ChatSessionDTO struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id,omitempty"`
	Language string `json:"language"`

	// Preview is the first learner message, truncated.
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListChatSessionsResult is the session list.
type ListChatSessionsResult struct {
	Sessions    []ChatSessionDTO `json:"sessions"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// ListChatSessionsHandler handles session list queries.
type ListChatSessionsHandler struct {
	sessionRepo tutor.Repository
}

// NewListChatSessionsHandler creates the handler.
func NewListChatSessionsHandler(sessionRepo tutor.Repository) *ListChatSessionsHandler {
	return &ListChatSessionsHandler{sessionRepo: sessionRepo}
}

// Handle executes the session list query.
func (h *ListChatSessionsHandler) Handle(ctx context.Context, query ListChatSessionsQuery) (*ListChatSessionsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListChatSessions", shared.ErrValidation, err.Error(), err)
	}

	sessions, err := h.sessionRepo.ListByLearner(ctx, query.LearnerID, query.Limit)
	if err != nil {
		return nil, shared.WrapError("query", "ListChatSessions", shared.ErrNotFound, "failed to list sessions", err)
	}

	dtos := make([]ChatSessionDTO, 0, len(sessions))
	for _, s := range sessions {
		dtos = append(dtos, ChatSessionDTO{
			ID:           s.ID,
			CourseID:     s.CourseID,
			Language:     s.Language.String(),
			Preview:      sessionPreview(s),
			MessageCount: len(s.Messages),
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}

	return &ListChatSessionsResult{
		Sessions:    dtos,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// sessionPreview returns the opening learner question, shortened for a
// list card.
func sessionPreview(s *tutor.Session) string {
	const previewLen = 80
	for _, m := range s.Messages {
		if m.Role != tutor.RoleLearner {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > previewLen {
			return string(runes[:previewLen]) + "…"
		}
		return m.Content
	}
	return ""
}

// ──────────────────────────────────────────────────────────────────────────────
// SESSION TRANSCRIPT
// ──────────────────────────────────────────────────────────────────────────────

// GetChatSessionQuery contains the transcript request parameters.
type GetChatSessionQuery struct {
	// SessionID - which session to read (required).
	SessionID string

	// LearnerID - the requesting learner, for ownership (required).
	LearnerID string
}

// Validate checks the query parameters.
func (q *GetChatSessionQuery) Validate() error {
	if q.SessionID == "" {
		return errors.New("session ID is required")
	}
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	return nil
}

// ChatMessageDTO is one transcript turn.
type ChatMessageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Degraded  bool      `json:"degraded,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetChatSessionResult is the full transcript.
type GetChatSessionResult struct {
	ID          string           `json:"id"`
	CourseID    string           `json:"course_id,omitempty"`
	Language    string           `json:"language"`
	Messages    []ChatMessageDTO `json:"messages"`
	CreatedAt   time.Time        `json:"created_at"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// GetChatSessionHandler handles transcript queries.
type GetChatSessionHandler struct {
	sessionRepo tutor.Repository
}

// NewGetChatSessionHandler creates the handler.
func NewGetChatSessionHandler(sessionRepo tutor.Repository) *GetChatSessionHandler {
	return &GetChatSessionHandler{sessionRepo: sessionRepo}
}

// Handle executes the transcript query.
func (h *GetChatSessionHandler) Handle(ctx context.Context, query GetChatSessionQuery) (*GetChatSessionResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetChatSession", shared.ErrValidation, err.Error(), err)
	}

	s, err := h.sessionRepo.GetByID(ctx, query.SessionID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrChatSessionNotFound
		}
		return nil, shared.WrapError("query", "GetChatSession", shared.ErrNotFound, "failed to load session", err)
	}
	if s.LearnerID != query.LearnerID {
		// Do not leak that the session exists.
		return nil, shared.ErrChatSessionNotFound
	}

	messages := make([]ChatMessageDTO, 0, len(s.Messages))
	for _, m := range s.Messages {
		messages = append(messages, ChatMessageDTO{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Degraded:  m.Degraded,
			CreatedAt: m.CreatedAt,
		})
	}

	return &GetChatSessionResult{
		ID:          s.ID,
		CourseID:    s.CourseID,
		Language:    s.Language.String(),
		Messages:    messages,
		CreatedAt:   s.CreatedAt,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
