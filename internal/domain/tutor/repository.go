package tutor

import (
	"context"
)

// Repository persists chat sessions and transcripts.
type Repository interface {
	Create(ctx context.Context, s *Session) error

	// GetByID loads a session with its full transcript, returning
	// shared.ErrChatSessionNotFound when absent.
	GetByID(ctx context.Context, id string) (*Session, error)

	// AppendMessage persists one turn without rewriting the session.
	AppendMessage(ctx context.Context, sessionID string, m Message) error

	ListByLearner(ctx context.Context, learnerID string, limit int) ([]*Session, error)
	Delete(ctx context.Context, id string) error
}

// Profile is the mastery summary the prompt builder feeds the model.
type Profile struct {
	LearnerName string
	Language    string

	// Strengths and Weaknesses are competency names in the learner's
	// language, strongest and weakest first respectively.
	Strengths  []string
	Weaknesses []string

	// RustySkills are competencies due for review.
	RustySkills []string

	Level         int
	CurrentStreak int
}
