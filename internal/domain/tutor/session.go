// Package tutor holds the AI-tutor chat domain: sessions, transcripts,
// and conversation windowing. The model call itself lives behind the
// Assistant port in the infrastructure layer.
package tutor

import (
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHAT SESSION
// ══════════════════════════════════════════════════════════════════════════════

// MessageRole is who spoke.
type MessageRole string

const (
	RoleLearner   MessageRole = "learner"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of the transcript.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`

	// Degraded marks canned answers produced while the model was
	// unreachable.
	Degraded bool `json:"degraded,omitempty"`
}

// WindowSize is how many trailing messages are replayed to the model.
const WindowSize = 20

// MaxMessageLength bounds a single learner message.
const MaxMessageLength = 4000

// Session is one learner's conversation thread.
type Session struct {
	ID        string
	LearnerID string

	// CourseID optionally scopes the session to a course.
	CourseID string

	// Language the tutor answers in.
	Language shared.LanguageCode

	Messages []Message

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession opens a thread.
func NewSession(id, learnerID, courseID string, lang shared.LanguageCode) (*Session, error) {
	if id == "" || learnerID == "" {
		return nil, shared.NewDomainError("tutor", "NewSession", shared.ErrEmptyValue, "session and learner IDs are required")
	}
	if !lang.IsValid() {
		lang = shared.LangThai
	}
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		LearnerID: learnerID,
		CourseID:  courseID,
		Language:  lang,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Append adds a turn to the transcript.
func (s *Session) Append(m Message) error {
	if m.Content == "" {
		return shared.NewDomainError("tutor", "Append", shared.ErrEmptyValue, "message content is required")
	}
	if len(m.Content) > MaxMessageLength {
		return shared.NewDomainError("tutor", "Append", shared.ErrValidation, "message too long")
	}
	if m.Role != RoleLearner && m.Role != RoleAssistant {
		return shared.NewDomainError("tutor", "Append", shared.ErrValidation, "unknown message role")
	}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = m.CreatedAt
	return nil
}

// Window returns the last WindowSize messages for the model call.
func (s *Session) Window() []Message {
	if len(s.Messages) <= WindowSize {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-WindowSize:]
}

// LastAssistantMessage returns the newest assistant turn, nil if none.
func (s *Session) LastAssistantMessage() *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return &s.Messages[i]
		}
	}
	return nil
}
