package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/gamification"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON LESSON COMPLETED HANDLER
// Grants the lesson XP, detects course completion for the course bonus,
// and emits the completed statement. Progress merges monotonically, so
// the event fires once per lesson and the grants stay single.
// ══════════════════════════════════════════════════════════════════════════════

// OnLessonCompletedHandler reacts to LessonCompletedEvent.
type OnLessonCompletedHandler struct {
	courseRepo     course.Repository
	progressRepo   course.ProgressRepository
	learnerRepo    learner.Repository
	learnerCache   learner.Cache
	ledgerRepo     gamification.LedgerRepository
	statements     StatementRecorder
	eventPublisher shared.EventPublisher

	logger *slog.Logger
	config LessonCompletedConfig
}

// LessonCompletedConfig tunes the handler.
type LessonCompletedConfig struct {
	ActorHomePage  string
	EmitStatements bool
}

// DefaultLessonCompletedConfig returns the default configuration.
func DefaultLessonCompletedConfig() LessonCompletedConfig {
	return LessonCompletedConfig{
		ActorHomePage:  DefaultActorHomePage,
		EmitStatements: true,
	}
}

// NewOnLessonCompletedHandler creates the handler. learnerCache and
// statements may be nil.
func NewOnLessonCompletedHandler(
	courseRepo course.Repository,
	progressRepo course.ProgressRepository,
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	ledgerRepo gamification.LedgerRepository,
	statements StatementRecorder,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config LessonCompletedConfig,
) *OnLessonCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLessonCompletedHandler{
		courseRepo:     courseRepo,
		progressRepo:   progressRepo,
		learnerRepo:    learnerRepo,
		learnerCache:   learnerCache,
		ledgerRepo:     ledgerRepo,
		statements:     statements,
		eventPublisher: eventPublisher,
		logger:         logger.With("handler", "on_lesson_completed"),
		config:         config,
	}
}

// Handle implements shared.EventHandler.
func (h *OnLessonCompletedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	completed, ok := event.(shared.LessonCompletedEvent)
	if !ok {
		h.logger.Warn("received non-LessonCompletedEvent", "event_type", event.EventType())
		return nil
	}

	total := 0
	granted, err := h.appendGrant(ctx, completed.LearnerID, gamification.XPLessonCompleted, gamification.ReasonLessonCompleted, completed.LessonID)
	if err != nil {
		return err
	}
	total += granted

	courseDone, err := h.courseCompleted(ctx, completed.LearnerID, completed.CourseID)
	if err != nil {
		h.logger.Warn("failed to check course completion",
			"course_id", completed.CourseID,
			"error", err,
		)
	} else if courseDone {
		bonus, err := h.appendGrant(ctx, completed.LearnerID, gamification.XPCourseCompleted, gamification.ReasonCourseCompleted, completed.CourseID)
		if err != nil {
			return err
		}
		total += bonus
	}

	if total > 0 {
		if err := applyXP(ctx, h.learnerRepo, h.learnerCache, h.eventPublisher, completed.LearnerID, total, string(gamification.ReasonLessonCompleted), completed.LessonID); err != nil {
			return err
		}
	}

	if h.config.EmitStatements && h.statements != nil {
		if err := h.emitStatement(ctx, completed); err != nil {
			h.logger.Warn("failed to emit lesson statement",
				"lesson_id", completed.LessonID,
				"error", err,
			)
		}
	}
	return nil
}

// appendGrant writes one ledger entry, returning 0 on a duplicate.
func (h *OnLessonCompletedHandler) appendGrant(ctx context.Context, learnerID string, amount int, reason gamification.Reason, sourceID string) (int, error) {
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
		return 0, fmt.Errorf("on_lesson_completed: failed to append ledger entry: %w", err)
	}
	return amount, nil
}

// courseCompleted reports whether every active lesson of the course is
// now completed.
func (h *OnLessonCompletedHandler) courseCompleted(ctx context.Context, learnerID, courseID string) (bool, error) {
	c, err := h.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return false, err
	}
	active := c.ActiveLessons()
	if len(active) == 0 {
		return false, nil
	}

	progress, err := h.progressRepo.ListByCourse(ctx, learnerID, courseID)
	if err != nil {
		return false, err
	}
	completed := make(map[string]bool, len(progress))
	for _, p := range progress {
		if p.State == course.ProgressCompleted {
			completed[p.LessonID] = true
		}
	}
	for _, lesson := range active {
		if !completed[lesson.ID] {
			return false, nil
		}
	}
	return true, nil
}

// emitStatement stores the completed statement for the lesson.
func (h *OnLessonCompletedHandler) emitStatement(ctx context.Context, completed shared.LessonCompletedEvent) error {
	s := &xapi.Statement{
		Actor: actorFor(h.config.ActorHomePage, completed.LearnerID),
		Verb:  xapi.Verb{ID: xapi.VerbCompleted, Display: map[string]string{"en-US": "completed"}},
		Object: xapi.Object{
			ID: fmt.Sprintf("%s/lessons/%s", h.config.ActorHomePage, completed.LessonID),
			Definition: &xapi.ActivityDefinition{
				Type: "http://adlnet.gov/expapi/activities/lesson",
			},
		},
		Result: &xapi.Result{
			Completion: boolPtr(true),
			Duration:   isoDuration(int64(completed.TimeSpent.Seconds())),
		},
		Context: &xapi.Context{
			Platform: "rianhub",
			Extensions: map[string]string{
				h.config.ActorHomePage + "/extensions/course-id": completed.CourseID,
			},
		},
		Timestamp: completed.OccurredAt(),
	}
	s.Prepare(uuid.New().String(), time.Now().UTC())
	return h.statements.Store(ctx, s)
}
