package postgres

import (
	"context"
	"fmt"

	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/tutor"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHAT SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChatRepository implements tutor.Repository for PostgreSQL. Messages
// live in their own table; a session is loaded with all of them since
// threads are bounded by the conversation window in practice.
type ChatRepository struct {
	conn *Connection
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(conn *Connection) *ChatRepository {
	return &ChatRepository{conn: conn}
}

// Create opens a session.
func (r *ChatRepository) Create(ctx context.Context, s *tutor.Session) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO chat_sessions (id, learner_id, course_id, language, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`,
		s.ID,
		s.LearnerID,
		s.CourseID,
		string(s.Language),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

// GetByID returns a session with its messages in order.
func (r *ChatRepository) GetByID(ctx context.Context, id string) (*tutor.Session, error) {
	s, err := r.scanSessionRow(r.conn.QueryRow(ctx, `
		SELECT id, learner_id, COALESCE(course_id::text, ''), language, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, role, content, degraded, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m    tutor.Message
			role string
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Degraded, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Role = tutor.MessageRole(role)
		s.Messages = append(s.Messages, m)
	}
	return s, rows.Err()
}

// AppendMessage stores one message and bumps the session timestamp.
func (r *ChatRepository) AppendMessage(ctx context.Context, sessionID string, m tutor.Message) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		m.ID,
		sessionID,
		string(m.Role),
		m.Content,
		m.Degraded,
		m.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrChatSessionNotFound
		}
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	_, err = r.conn.Exec(ctx,
		`UPDATE chat_sessions SET updated_at = $1 WHERE id = $2`, m.CreatedAt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch chat session: %w", err)
	}
	return nil
}

// ListByLearner returns the learner's sessions, most recently active
// first, without messages.
func (r *ChatRepository) ListByLearner(ctx context.Context, learnerID string, limit int) ([]*tutor.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, learner_id, COALESCE(course_id::text, ''), language, created_at, updated_at
		FROM chat_sessions
		WHERE learner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*tutor.Session
	for rows.Next() {
		s, err := r.scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes a session and its messages.
func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrChatSessionNotFound
	}
	return nil
}

func (r *ChatRepository) scanSessionRow(row rowScanner) (*tutor.Session, error) {
	var (
		s        tutor.Session
		language string
	)

	err := row.Scan(&s.ID, &s.LearnerID, &s.CourseID, &language, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChatSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan chat session: %w", err)
	}

	s.Language = shared.LanguageCode(language)
	return &s, nil
}
