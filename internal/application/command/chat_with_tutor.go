package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/tutor"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHAT WITH TUTOR COMMAND
// One turn of the AI-tutor conversation. The handler assembles a
// mastery profile so the model knows what the learner is strong and
// weak at, replays the session window, and persists both turns. A
// degraded answer (model unreachable) is still a successful turn.
// ══════════════════════════════════════════════════════════════════════════════

// Assistant is the model port. infrastructure/external/tutor adapts
// the Anthropic client to it.
type Assistant interface {
	Answer(ctx context.Context, profile tutor.Profile, window []tutor.Message, question string) (content string, degraded bool, err error)
}

// profileListLimit caps each strengths/weaknesses/rusty list in the
// prompt profile.
const profileListLimit = 5

// ChatWithTutorCommand carries one learner question.
type ChatWithTutorCommand struct {
	LearnerID string

	// SessionID continues an existing thread; empty opens a new one.
	SessionID string

	// CourseID optionally scopes a new session to a course.
	CourseID string

	Question string

	CorrelationID string
}

// Validate checks the command fields.
func (c *ChatWithTutorCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("chat_with_tutor: learner ID is required")
	}
	q := strings.TrimSpace(c.Question)
	if q == "" {
		return errors.New("chat_with_tutor: question is required")
	}
	if len(q) > tutor.MaxMessageLength {
		return errors.New("chat_with_tutor: question is too long")
	}
	return nil
}

// ChatWithTutorResult reports the assistant's answer.
type ChatWithTutorResult struct {
	SessionID string
	Answer    tutor.Message

	// Degraded is true when the model was unreachable and a canned
	// answer was returned.
	Degraded bool
}

// ChatWithTutorHandler runs tutor conversation turns.
type ChatWithTutorHandler struct {
	sessionRepo    tutor.Repository
	learnerRepo    learner.Repository
	masteryRepo    mastery.Repository
	competencyRepo mastery.CompetencyRepository
	assistant      Assistant
	ids            IDGenerator
}

// NewChatWithTutorHandler creates the handler.
func NewChatWithTutorHandler(
	sessionRepo tutor.Repository,
	learnerRepo learner.Repository,
	masteryRepo mastery.Repository,
	competencyRepo mastery.CompetencyRepository,
	assistant Assistant,
	ids IDGenerator,
) *ChatWithTutorHandler {
	return &ChatWithTutorHandler{
		sessionRepo:    sessionRepo,
		learnerRepo:    learnerRepo,
		masteryRepo:    masteryRepo,
		competencyRepo: competencyRepo,
		assistant:      assistant,
		ids:            ids,
	}
}

// Handle runs one conversation turn.
func (h *ChatWithTutorHandler) Handle(ctx context.Context, cmd ChatWithTutorCommand) (*ChatWithTutorResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "ChatWithTutor", shared.ErrValidation, err.Error(), err)
	}

	l, err := h.learnerRepo.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("chat_with_tutor: failed to load learner: %w", err)
	}
	if !l.Status.CanStudy() {
		return nil, shared.ErrLearnerNotActive
	}

	session, err := h.loadOrOpenSession(ctx, l, cmd)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	question := tutor.Message{
		ID:        h.ids.NewID(),
		Role:      tutor.RoleLearner,
		Content:   strings.TrimSpace(cmd.Question),
		CreatedAt: now,
	}

	// Snapshot the window before appending so the model does not see
	// the question twice.
	window := session.Window()

	if err := session.Append(question); err != nil {
		return nil, err
	}
	if err := h.sessionRepo.AppendMessage(ctx, session.ID, question); err != nil {
		return nil, fmt.Errorf("chat_with_tutor: failed to store question: %w", err)
	}

	profile, err := h.buildProfile(ctx, l)
	if err != nil {
		return nil, err
	}

	content, degraded, err := h.assistant.Answer(ctx, profile, window, question.Content)
	if err != nil {
		return nil, fmt.Errorf("chat_with_tutor: %w", err)
	}

	answer := tutor.Message{
		ID:        h.ids.NewID(),
		Role:      tutor.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Degraded:  degraded,
	}
	if err := session.Append(answer); err != nil {
		return nil, err
	}
	if err := h.sessionRepo.AppendMessage(ctx, session.ID, answer); err != nil {
		return nil, fmt.Errorf("chat_with_tutor: failed to store answer: %w", err)
	}

	return &ChatWithTutorResult{
		SessionID: session.ID,
		Answer:    answer,
		Degraded:  degraded,
	}, nil
}

// loadOrOpenSession resumes the given session or opens a new thread.
func (h *ChatWithTutorHandler) loadOrOpenSession(ctx context.Context, l *learner.Learner, cmd ChatWithTutorCommand) (*tutor.Session, error) {
	if cmd.SessionID != "" {
		session, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
		if err != nil {
			return nil, fmt.Errorf("chat_with_tutor: failed to load session: %w", err)
		}
		if session.LearnerID != l.ID {
			return nil, shared.NewDomainError("command", "ChatWithTutor", shared.ErrForbidden, "session belongs to another learner")
		}
		return session, nil
	}

	session, err := tutor.NewSession(h.ids.NewID(), l.ID, cmd.CourseID, l.Preferences.Language)
	if err != nil {
		return nil, err
	}
	if err := h.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("chat_with_tutor: failed to create session: %w", err)
	}
	return session, nil
}

// buildProfile assembles the mastery summary the prompt builder uses.
func (h *ChatWithTutorHandler) buildProfile(ctx context.Context, l *learner.Learner) (tutor.Profile, error) {
	profile := tutor.Profile{
		LearnerName:   l.DisplayName,
		Language:      l.Preferences.Language.String(),
		Level:         l.Level().Int(),
		CurrentStreak: l.CurrentStreak,
	}

	records, err := h.masteryRepo.GetProfile(ctx, l.ID)
	if err != nil {
		return profile, fmt.Errorf("chat_with_tutor: failed to load mastery profile: %w", err)
	}
	if len(records) == 0 {
		return profile, nil
	}

	competencies, err := h.competencyRepo.ListAll(ctx)
	if err != nil {
		return profile, fmt.Errorf("chat_with_tutor: failed to load competencies: %w", err)
	}
	names := make(map[string]string, len(competencies))
	halfLives := make(map[string]time.Duration, len(competencies))
	for _, c := range competencies {
		names[c.ID] = c.Name.In(l.Preferences.Language)
		halfLives[c.ID] = c.HalfLife()
	}

	practiced := make([]*mastery.Mastery, 0, len(records))
	for _, m := range records {
		if m.Attempts > 0 {
			practiced = append(practiced, m)
		}
	}
	sort.Slice(practiced, func(i, j int) bool { return practiced[i].Value > practiced[j].Value })

	now := time.Now().UTC()
	for _, m := range practiced {
		name := names[m.CompetencyID]
		if name == "" {
			continue
		}
		switch {
		case m.IsRusty() || m.Overdueness(now, halfLives[m.CompetencyID]) > 1:
			if len(profile.RustySkills) < profileListLimit {
				profile.RustySkills = append(profile.RustySkills, name)
			}
		case m.State == mastery.StateProficient || m.State == mastery.StateMastered:
			if len(profile.Strengths) < profileListLimit {
				profile.Strengths = append(profile.Strengths, name)
			}
		}
	}
	// Weakest practiced competencies, lowest value first.
	for i := len(practiced) - 1; i >= 0 && len(profile.Weaknesses) < profileListLimit; i-- {
		m := practiced[i]
		name := names[m.CompetencyID]
		if name == "" || m.State == mastery.StateProficient || m.State == mastery.StateMastered {
			continue
		}
		profile.Weaknesses = append(profile.Weaknesses, name)
	}

	return profile, nil
}
