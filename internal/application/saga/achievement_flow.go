package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/gamification"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Re-evaluates the catalog whenever a learner's counters move.
// Flow: Assemble Progress → Evaluate → Award → Grant Bonus XP → Notify →
//
//	Publish Event
//
// Awards and bonus grants are both idempotent, so the saga can run on
// every triggering event without double-paying.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementNotifier creates the achievement notification.
// Implemented by service.NotificationService.
type AchievementNotifier interface {
	NotifyAchievement(ctx context.Context, learnerID, achievementID string, name shared.LocalizedText) error
}

// XPApplier folds a granted bonus into the learner's denormalized
// total. Implemented by the event-handler package's XP application.
type XPApplier interface {
	ApplyXP(ctx context.Context, learnerID string, amount int, reason, refID string) error
}

// ledgerHistoryLimit bounds the ledger scan used to count perfect
// quizzes and completed courses.
const ledgerHistoryLimit = 1000

// AchievementFlowSaga awards catalog achievements.
type AchievementFlowSaga struct {
	learnerRepo  learner.Repository
	progressRepo course.ProgressRepository
	masteryRepo  mastery.Repository
	ledgerRepo   gamification.LedgerRepository
	awardRepo    gamification.AwardRepository
	notifier     AchievementNotifier
	xp           XPApplier
	eventBus     shared.EventPublisher
	idGenerator  IDGenerator
	logger       *slog.Logger
}

// NewAchievementFlowSaga creates the saga. notifier may be nil.
func NewAchievementFlowSaga(
	learnerRepo learner.Repository,
	progressRepo course.ProgressRepository,
	masteryRepo mastery.Repository,
	ledgerRepo gamification.LedgerRepository,
	awardRepo gamification.AwardRepository,
	notifier AchievementNotifier,
	xp XPApplier,
	eventBus shared.EventPublisher,
	idGenerator IDGenerator,
	logger *slog.Logger,
) *AchievementFlowSaga {
	if logger == nil {
		logger = slog.Default()
	}
	return &AchievementFlowSaga{
		learnerRepo:  learnerRepo,
		progressRepo: progressRepo,
		masteryRepo:  masteryRepo,
		ledgerRepo:   ledgerRepo,
		awardRepo:    awardRepo,
		notifier:     notifier,
		xp:           xp,
		eventBus:     eventBus,
		idGenerator:  idGenerator,
		logger:       logger.With("saga", "achievement_flow"),
	}
}

// Handle adapts the saga to the event dispatcher. Every triggering
// event aggregates on the learner, so the aggregate ID is enough.
func (s *AchievementFlowSaga) Handle(event shared.Event) error {
	learnerID := event.AggregateID()
	if learnerID == "" {
		s.logger.Warn("event without aggregate ID", "event_type", event.EventType())
		return nil
	}
	_, err := s.Run(context.Background(), learnerID)
	return err
}

// Run evaluates and awards. It returns the newly earned achievements.
func (s *AchievementFlowSaga) Run(ctx context.Context, learnerID string) ([]gamification.Achievement, error) {
	l, err := s.learnerRepo.GetByID(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: failed to load learner: %w", err)
	}

	progress, err := s.assembleProgress(ctx, l)
	if err != nil {
		return nil, err
	}

	earned, err := s.awardRepo.EarnedSet(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: failed to load earned set: %w", err)
	}

	newly := gamification.Evaluate(progress, earned)
	if len(newly) == 0 {
		return nil, nil
	}

	var awarded []gamification.Achievement
	for _, a := range newly {
		ok, err := s.award(ctx, learnerID, a)
		if err != nil {
			return awarded, err
		}
		if ok {
			awarded = append(awarded, a)
		}
	}
	return awarded, nil
}

// award persists one achievement and pays its bonus. Returns false when
// a concurrent run already awarded it.
func (s *AchievementFlowSaga) award(ctx context.Context, learnerID string, a gamification.Achievement) (bool, error) {
	err := s.awardRepo.Create(ctx, &gamification.Award{
		LearnerID:     learnerID,
		AchievementID: a.ID,
		EarnedAt:      time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyAwarded) {
			return false, nil
		}
		return false, fmt.Errorf("achievement_flow: failed to create award: %w", err)
	}

	if a.BonusXP > 0 {
		if err := s.grantBonus(ctx, learnerID, a); err != nil {
			return true, err
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyAchievement(ctx, learnerID, a.ID, a.Name); err != nil {
			s.logger.Warn("failed to create achievement notification",
				"learner_id", learnerID,
				"achievement_id", a.ID,
				"error", err,
			)
		}
	}

	_ = s.eventBus.Publish(shared.NewAchievementEarnedEvent(learnerID, a.ID, a.BonusXP))

	s.logger.Info("achievement awarded",
		"learner_id", learnerID,
		"achievement_id", a.ID,
		"bonus_xp", a.BonusXP,
	)
	return true, nil
}

func (s *AchievementFlowSaga) grantBonus(ctx context.Context, learnerID string, a gamification.Achievement) error {
	entry := &gamification.LedgerEntry{
		ID:        s.idGenerator.NewID(),
		LearnerID: learnerID,
		Amount:    a.BonusXP,
		Reason:    gamification.ReasonAchievementBonus,
		SourceID:  a.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.ledgerRepo.Append(ctx, entry); err != nil {
		if errors.Is(err, shared.ErrDuplicateOperation) {
			return nil
		}
		return fmt.Errorf("achievement_flow: failed to append bonus entry: %w", err)
	}
	return s.xp.ApplyXP(ctx, learnerID, a.BonusXP, string(gamification.ReasonAchievementBonus), a.ID)
}

// assembleProgress gathers the counters from the owning domains.
func (s *AchievementFlowSaga) assembleProgress(ctx context.Context, l *learner.Learner) (gamification.Progress, error) {
	now := time.Now().UTC()

	lessons, err := s.progressRepo.CountCompletedInWindow(ctx, l.ID, time.Time{}, now)
	if err != nil {
		return gamification.Progress{}, fmt.Errorf("achievement_flow: failed to count lessons: %w", err)
	}

	states, err := s.masteryRepo.CountByState(ctx, l.ID)
	if err != nil {
		return gamification.Progress{}, fmt.Errorf("achievement_flow: failed to count mastery states: %w", err)
	}

	entries, err := s.ledgerRepo.ListByLearner(ctx, l.ID, ledgerHistoryLimit)
	if err != nil {
		return gamification.Progress{}, fmt.Errorf("achievement_flow: failed to list ledger: %w", err)
	}
	perfect, courses := 0, 0
	for _, e := range entries {
		switch e.Reason {
		case gamification.ReasonPerfectQuiz:
			perfect++
		case gamification.ReasonCourseCompleted:
			courses++
		}
	}

	return gamification.Progress{
		LessonsCompleted:     lessons,
		StreakDays:           l.CurrentStreak,
		CompetenciesMastered: states[mastery.StateMastered],
		PerfectQuizzes:       perfect,
		CoursesCompleted:     courses,
		Level:                l.CurrentXP.Level().Int(),
	}, nil
}
