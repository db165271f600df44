package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN COMMAND
// Verifies email + password and issues an access token. Login does not
// count as learning activity; streaks move only on lessons and quizzes.
// ══════════════════════════════════════════════════════════════════════════════

// TokenIssuer mints signed access tokens. The HTTP layer provides the
// JWT-backed implementation.
type TokenIssuer interface {
	Issue(learnerID string, role learner.Role) (token string, expiresAt time.Time, err error)
}

// LoginCommand carries login credentials.
type LoginCommand struct {
	Email    string
	Password string

	// CorrelationID for request tracing (optional).
	CorrelationID string
}

// Validate checks the command fields.
func (c *LoginCommand) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return errors.New("login: email is required")
	}
	if c.Password == "" {
		return errors.New("login: password is required")
	}
	return nil
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	LearnerID   string
	DisplayName string
	Role        learner.Role
	Language    shared.LanguageCode

	Token     string
	ExpiresAt time.Time
}

// LoginHandler authenticates learners.
type LoginHandler struct {
	learnerRepo learner.Repository
	tokens      TokenIssuer
}

// NewLoginHandler creates the handler.
func NewLoginHandler(learnerRepo learner.Repository, tokens TokenIssuer) *LoginHandler {
	return &LoginHandler{
		learnerRepo: learnerRepo,
		tokens:      tokens,
	}
}

// Handle verifies credentials and issues a token.
func (h *LoginHandler) Handle(ctx context.Context, cmd LoginCommand) (*LoginResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "Login", shared.ErrValidation, err.Error(), err)
	}

	email, err := shared.NewEmail(cmd.Email)
	if err != nil {
		// Do not leak whether the account exists.
		return nil, shared.ErrInvalidCredentials
	}

	l, err := h.learnerRepo.GetByEmail(ctx, email.String())
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: failed to load learner: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(l.PasswordHash), []byte(cmd.Password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	if !l.Status.CanStudy() {
		return nil, shared.ErrLearnerNotActive
	}

	token, expiresAt, err := h.tokens.Issue(l.ID, l.Role)
	if err != nil {
		return nil, fmt.Errorf("login: failed to issue token: %w", err)
	}

	return &LoginResult{
		LearnerID:   l.ID,
		DisplayName: l.DisplayName,
		Role:        l.Role,
		Language:    l.Preferences.Language,
		Token:       token,
		ExpiresAt:   expiresAt,
	}, nil
}
