package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rianlab/rianhub/internal/domain/gamification"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON QUIZ GRADED HANDLER
// The fan-out behind a graded attempt:
//  1. Mastery - each question result feeds the EMA for its competency
//  2. XP      - score-proportional grant plus the perfect bonus
//  3. xAPI    - a passed/failed statement for the attempt
// Grants are idempotent by (learner, reason, attempt), so a redelivered
// event moves nothing twice.
// ══════════════════════════════════════════════════════════════════════════════

// OnQuizGradedHandler reacts to QuizGradedEvent.
type OnQuizGradedHandler struct {
	masteryRepo    mastery.Repository
	competencyRepo mastery.CompetencyRepository
	learnerRepo    learner.Repository
	learnerCache   learner.Cache
	ledgerRepo     gamification.LedgerRepository
	statements     StatementRecorder
	eventPublisher shared.EventPublisher

	logger *slog.Logger
	config QuizGradedConfig
}

// QuizGradedConfig tunes the handler.
type QuizGradedConfig struct {
	// ActorHomePage is the account home page for emitted statements.
	ActorHomePage string

	// EmitStatements toggles xAPI emission.
	EmitStatements bool
}

// DefaultQuizGradedConfig returns the default configuration.
func DefaultQuizGradedConfig() QuizGradedConfig {
	return QuizGradedConfig{
		ActorHomePage:  DefaultActorHomePage,
		EmitStatements: true,
	}
}

// NewOnQuizGradedHandler creates the handler. learnerCache and
// statements may be nil.
func NewOnQuizGradedHandler(
	masteryRepo mastery.Repository,
	competencyRepo mastery.CompetencyRepository,
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	ledgerRepo gamification.LedgerRepository,
	statements StatementRecorder,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config QuizGradedConfig,
) *OnQuizGradedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnQuizGradedHandler{
		masteryRepo:    masteryRepo,
		competencyRepo: competencyRepo,
		learnerRepo:    learnerRepo,
		learnerCache:   learnerCache,
		ledgerRepo:     ledgerRepo,
		statements:     statements,
		eventPublisher: eventPublisher,
		logger:         logger.With("handler", "on_quiz_graded"),
		config:         config,
	}
}

// Handle implements shared.EventHandler.
func (h *OnQuizGradedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	graded, ok := event.(shared.QuizGradedEvent)
	if !ok {
		h.logger.Warn("received non-QuizGradedEvent", "event_type", event.EventType())
		return nil
	}

	if err := h.updateMastery(ctx, graded); err != nil {
		return err
	}
	if err := h.awardXP(ctx, graded); err != nil {
		return err
	}
	if h.config.EmitStatements && h.statements != nil {
		if err := h.emitStatement(ctx, graded); err != nil {
			h.logger.Warn("failed to emit quiz statement",
				"attempt_id", graded.AttemptID,
				"error", err,
			)
		}
	}
	return nil
}

// updateMastery feeds every question result into the mastery engine.
func (h *OnQuizGradedHandler) updateMastery(ctx context.Context, graded shared.QuizGradedEvent) error {
	at := graded.OccurredAt()

	for _, r := range graded.Results {
		if r.CompetencyID == "" {
			continue
		}

		m, err := h.masteryRepo.Get(ctx, graded.LearnerID, r.CompetencyID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return fmt.Errorf("on_quiz_graded: failed to load mastery: %w", err)
			}
			m = mastery.NewMastery(graded.LearnerID, r.CompetencyID)
		}

		before := m.Value
		oldState, newState, err := m.Apply(r.Score, r.Difficulty, at)
		if err != nil {
			return fmt.Errorf("on_quiz_graded: failed to apply evidence: %w", err)
		}

		if err := h.masteryRepo.Upsert(ctx, graded.LearnerID, m); err != nil {
			return fmt.Errorf("on_quiz_graded: failed to persist mastery: %w", err)
		}

		_ = h.eventPublisher.Publish(shared.NewMasteryUpdatedEvent(
			graded.LearnerID, r.CompetencyID, before, m.Value, string(oldState), string(newState)))
	}
	return nil
}

// awardXP grants the quiz XP and the perfect bonus.
func (h *OnQuizGradedHandler) awardXP(ctx context.Context, graded shared.QuizGradedEvent) error {
	total := 0

	amount := gamification.QuizXP(graded.ScoreRatio)
	if amount > 0 {
		granted, err := h.appendGrant(ctx, graded.LearnerID, amount, gamification.ReasonQuizGraded, graded.AttemptID)
		if err != nil {
			return err
		}
		total += granted
	}
	if graded.Perfect {
		granted, err := h.appendGrant(ctx, graded.LearnerID, gamification.XPPerfectBonus, gamification.ReasonPerfectQuiz, graded.AttemptID)
		if err != nil {
			return err
		}
		total += granted
	}
	if total == 0 {
		return nil
	}

	return applyXP(ctx, h.learnerRepo, h.learnerCache, h.eventPublisher, graded.LearnerID, total, string(gamification.ReasonQuizGraded), graded.AttemptID)
}

// appendGrant writes one ledger entry, returning 0 on a duplicate.
func (h *OnQuizGradedHandler) appendGrant(ctx context.Context, learnerID string, amount int, reason gamification.Reason, sourceID string) (int, error) {
	entry := &gamification.LedgerEntry{
		ID:        uuid.New().String(),
		LearnerID: learnerID,
		Amount:    amount,
		Reason:    reason,
		SourceID:  sourceID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.ledgerRepo.Append(ctx, entry); err != nil {
		if errors.Is(err, shared.ErrDuplicateOperation) {
			return 0, nil
		}
		return 0, fmt.Errorf("on_quiz_graded: failed to append ledger entry: %w", err)
	}
	return amount, nil
}

// emitStatement stores the passed/failed statement for the attempt.
func (h *OnQuizGradedHandler) emitStatement(ctx context.Context, graded shared.QuizGradedEvent) error {
	verb := xapi.Verb{ID: xapi.VerbPassed, Display: map[string]string{"en-US": "passed"}}
	if !graded.Passed {
		verb = xapi.Verb{ID: xapi.VerbFailed, Display: map[string]string{"en-US": "failed"}}
	}

	s := &xapi.Statement{
		Actor: actorFor(h.config.ActorHomePage, graded.LearnerID),
		Verb:  verb,
		Object: xapi.Object{
			ID: fmt.Sprintf("%s/quizzes/%s", h.config.ActorHomePage, graded.QuizID),
			Definition: &xapi.ActivityDefinition{
				Type: "http://adlnet.gov/expapi/activities/assessment",
			},
		},
		Result: &xapi.Result{
			Score:    &xapi.ResultScore{Scaled: floatPtr(graded.ScoreRatio)},
			Success:  boolPtr(graded.Passed),
			Duration: isoDuration(int64(graded.Duration.Seconds())),
		},
		Context: &xapi.Context{
			Registration: graded.AttemptID,
			Platform:     "rianhub",
		},
		Timestamp: graded.OccurredAt(),
	}
	s.Prepare(uuid.New().String(), time.Now().UTC())
	return h.statements.Store(ctx, s)
}
