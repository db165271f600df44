package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/quiz"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC PUSH COMMAND
// Applies a device's offline operation queue. Operations apply in
// sequence order and are idempotent by (device, seq); a replayed batch
// after a dropped response is harmless. Conflicts resolve per data
// class (see sync.Resolve*) and are logged, never surfaced as errors -
// the device always converges.
// ══════════════════════════════════════════════════════════════════════════════

// SyncPushCommand carries one batch of queued operations.
type SyncPushCommand struct {
	LearnerID  string
	DeviceID   string
	Operations []sync.Operation

	// AckCursor confirms changes the device pulled; zero means no ack.
	AckCursor int64

	CorrelationID string
}

// Validate checks the command fields.
func (c *SyncPushCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("sync_push: learner ID is required")
	}
	if c.DeviceID == "" {
		return errors.New("sync_push: device ID is required")
	}
	if len(c.Operations) == 0 && c.AckCursor == 0 {
		return errors.New("sync_push: nothing to push")
	}
	return nil
}

// OpOutcome reports what happened to one pushed operation.
type OpOutcome struct {
	Seq     int64  `json:"seq"`
	Status  string `json:"status"` // "applied", "skipped", "rejected"
	Detail  string `json:"detail,omitempty"`
	Clamped bool   `json:"clamped,omitempty"`
}

// SyncPushResult summarizes the batch.
type SyncPushResult struct {
	Outcomes  []OpOutcome
	Applied   int
	Skipped   int
	Conflicts []sync.Conflict

	// LatestCursor is the learner's newest change-log cursor, so the
	// client knows whether a pull is worthwhile.
	LatestCursor int64

	Events []shared.Event
}

// SyncPushHandler applies offline operation batches.
type SyncPushHandler struct {
	deviceRepo     sync.DeviceRepository
	opLog          sync.OperationLog
	changeLog      sync.ChangeLog
	conflictLog    sync.ConflictLog
	learnerRepo    learner.Repository
	learnerCache   learner.Cache
	courseRepo     course.Repository
	progressRepo   course.ProgressRepository
	quizRepo       quiz.Repository
	attemptRepo    quiz.AttemptRepository
	ids            IDGenerator
	eventPublisher shared.EventPublisher
}

// NewSyncPushHandler creates the handler.
func NewSyncPushHandler(
	deviceRepo sync.DeviceRepository,
	opLog sync.OperationLog,
	changeLog sync.ChangeLog,
	conflictLog sync.ConflictLog,
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	courseRepo course.Repository,
	progressRepo course.ProgressRepository,
	quizRepo quiz.Repository,
	attemptRepo quiz.AttemptRepository,
	ids IDGenerator,
	eventPublisher shared.EventPublisher,
) *SyncPushHandler {
	return &SyncPushHandler{
		deviceRepo:     deviceRepo,
		opLog:          opLog,
		changeLog:      changeLog,
		conflictLog:    conflictLog,
		learnerRepo:    learnerRepo,
		learnerCache:   learnerCache,
		courseRepo:     courseRepo,
		progressRepo:   progressRepo,
		quizRepo:       quizRepo,
		attemptRepo:    attemptRepo,
		ids:            ids,
		eventPublisher: eventPublisher,
	}
}

// Handle applies the batch in sequence order.
func (h *SyncPushHandler) Handle(ctx context.Context, cmd SyncPushCommand) (*SyncPushResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "SyncPush", shared.ErrValidation, err.Error(), err)
	}

	device, err := h.deviceRepo.GetByID(ctx, cmd.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("sync_push: failed to load device: %w", err)
	}
	if device.LearnerID != cmd.LearnerID {
		return nil, shared.NewDomainError("command", "SyncPush", shared.ErrForbidden, "device is registered to another learner")
	}

	l, err := h.learnerRepo.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("sync_push: failed to load learner: %w", err)
	}

	now := time.Now().UTC()

	ops := make([]sync.Operation, len(cmd.Operations))
	copy(ops, cmd.Operations)
	sort.Slice(ops, func(i, j int) bool { return ops[i].Seq < ops[j].Seq })

	result := &SyncPushResult{}
	var latestActivity time.Time

	for i := range ops {
		op := &ops[i]
		op.DeviceID = cmd.DeviceID

		outcome := h.apply(ctx, l, op, now, result)
		result.Outcomes = append(result.Outcomes, outcome)

		switch outcome.Status {
		case "applied":
			result.Applied++
			device.Advance(op.Seq, now)
			if effective, _ := op.EffectiveTime(now); effective.After(latestActivity) {
				latestActivity = effective
			}
		case "skipped":
			result.Skipped++
		}
	}

	if cmd.AckCursor > 0 {
		if err := device.MoveCursor(cmd.AckCursor, now); err != nil {
			return nil, err
		}
	}
	if err := h.deviceRepo.Update(ctx, device); err != nil {
		return nil, fmt.Errorf("sync_push: failed to persist device: %w", err)
	}

	// Offline work counts toward the streak at its effective time, but
	// never moves activity backwards.
	if !latestActivity.IsZero() && latestActivity.After(l.LastActivityAt) {
		prevStreak := l.CurrentStreak
		daysMissed := l.DaysSinceActivity(latestActivity)
		switch l.TouchActivity(latestActivity) {
		case learner.StreakExtended:
			result.Events = append(result.Events, shared.NewDailyStreakUpdatedEvent(l.ID, l.CurrentStreak, l.BestStreak))
		case learner.StreakReset:
			result.Events = append(result.Events, shared.NewDailyStreakBrokenEvent(l.ID, prevStreak, daysMissed))
		}
	}
	if err := h.learnerRepo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("sync_push: failed to persist learner: %w", err)
	}
	if h.learnerCache != nil {
		_ = h.learnerCache.Invalidate(ctx, l.ID)
	}

	if cursor, err := h.changeLog.LatestCursor(ctx, cmd.LearnerID); err == nil {
		result.LatestCursor = cursor
	}

	syncedEvent := shared.NewDeviceSyncedEvent(cmd.LearnerID, cmd.DeviceID, result.Applied, result.Skipped, len(result.Conflicts))
	result.Events = append(result.Events, syncedEvent)
	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// apply processes one operation and returns its outcome.
func (h *SyncPushHandler) apply(ctx context.Context, l *learner.Learner, op *sync.Operation, now time.Time, result *SyncPushResult) OpOutcome {
	if err := op.Validate(); err != nil {
		return OpOutcome{Seq: op.Seq, Status: "rejected", Detail: err.Error()}
	}

	applied, err := h.opLog.IsApplied(ctx, op.DeviceID, op.Seq)
	if err != nil {
		return OpOutcome{Seq: op.Seq, Status: "rejected", Detail: "idempotency check failed"}
	}
	if applied {
		return OpOutcome{Seq: op.Seq, Status: "skipped", Detail: "already applied"}
	}

	effectiveAt, clamped := op.EffectiveTime(now)

	var applyErr error
	switch op.Kind {
	case sync.OpLessonProgress:
		applyErr = h.applyLessonProgress(ctx, l, op, effectiveAt, result)
	case sync.OpQuizAttempt:
		applyErr = h.applyQuizAttempt(ctx, l, op, now, result)
	case sync.OpPreferenceUpdate:
		applyErr = h.applyPreferenceUpdate(ctx, l, op, effectiveAt, result)
	default:
		applyErr = shared.ErrUnknownOperation
	}
	if applyErr != nil {
		return OpOutcome{Seq: op.Seq, Status: "rejected", Detail: applyErr.Error(), Clamped: clamped}
	}

	if err := h.opLog.Record(ctx, op.DeviceID, op.Seq, now); err != nil && !errors.Is(err, shared.ErrDuplicateOperation) {
		return OpOutcome{Seq: op.Seq, Status: "rejected", Detail: "failed to record operation"}
	}
	return OpOutcome{Seq: op.Seq, Status: "applied", Clamped: clamped}
}

func (h *SyncPushHandler) applyLessonProgress(ctx context.Context, l *learner.Learner, op *sync.Operation, effectiveAt time.Time, result *SyncPushResult) error {
	var p sync.LessonProgressPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return fmt.Errorf("bad lesson progress payload: %w", err)
	}
	if p.CourseID == "" || p.LessonID == "" {
		return errors.New("lesson progress needs course and lesson IDs")
	}

	incoming := course.LessonProgress{
		LearnerID: l.ID,
		CourseID:  p.CourseID,
		LessonID:  p.LessonID,
		State:     course.ProgressState(p.State),
		TimeSpent: time.Duration(p.TimeSpentMS) * time.Millisecond,
		StartedAt: effectiveAt,
		UpdatedAt: effectiveAt,
	}
	if incoming.State != course.ProgressStarted && incoming.State != course.ProgressCompleted {
		return errors.New("unknown progress state " + p.State)
	}
	if incoming.State == course.ProgressCompleted {
		incoming.CompletedAt = effectiveAt
	}

	prior, err := h.progressRepo.Get(ctx, l.ID, p.LessonID)
	if err != nil && !shared.IsNotFound(err) {
		return fmt.Errorf("failed to load prior progress: %w", err)
	}
	wasCompleted := prior.State == course.ProgressCompleted

	var priorPtr *course.LessonProgress
	if prior.LessonID != "" {
		priorPtr = &prior
	}
	_, resolution := sync.ResolveProgress(priorPtr, incoming)

	merged, err := h.progressRepo.Upsert(ctx, incoming)
	if err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}

	if resolution == sync.ResolutionServerWon {
		h.logConflict(ctx, l.ID, op, p.LessonID, resolution, "server progress was already ahead", result)
	}

	if !wasCompleted && merged.State == course.ProgressCompleted {
		result.Events = append(result.Events, shared.NewLessonCompletedEvent(l.ID, p.CourseID, p.LessonID, merged.TimeSpent))
	}

	h.appendChange(ctx, l.ID, "lesson_progress", p.LessonID, merged, effectiveAt)
	return nil
}

func (h *SyncPushHandler) applyQuizAttempt(ctx context.Context, l *learner.Learner, op *sync.Operation, now time.Time, result *SyncPushResult) error {
	var p sync.QuizAttemptPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return fmt.Errorf("bad quiz attempt payload: %w", err)
	}
	if p.QuizID == "" {
		return errors.New("quiz attempt needs a quiz ID")
	}

	var answers []quiz.Answer
	if err := json.Unmarshal(p.Answers, &answers); err != nil {
		return fmt.Errorf("bad answers payload: %w", err)
	}

	q, err := h.quizRepo.GetByID(ctx, p.QuizID)
	if err != nil {
		return fmt.Errorf("failed to load quiz: %w", err)
	}

	number, err := h.attemptRepo.CountByQuiz(ctx, l.ID, p.QuizID)
	if err != nil {
		return fmt.Errorf("failed to count attempts: %w", err)
	}

	submittedAt := p.SubmittedAt
	if submittedAt.IsZero() || submittedAt.After(now) {
		submittedAt = now
	}
	startedAt := p.StartedAt
	if startedAt.IsZero() || startedAt.After(submittedAt) {
		startedAt = submittedAt
	}

	a := &quiz.Attempt{
		ID:        h.ids.NewID(),
		QuizID:    p.QuizID,
		LearnerID: l.ID,
		Number:    number + 1,
		Status:    quiz.AttemptInProgress,
		Answers:   answers,
		StartedAt: startedAt,
	}
	if err := quiz.Grade(q, a, submittedAt); err != nil {
		return err
	}

	if err := h.attemptRepo.Create(ctx, a); err != nil {
		if errors.Is(err, shared.ErrAttemptInFlight) {
			// An online attempt is open on another device. Offline
			// attempts are append-only, so log and continue.
			h.logConflict(ctx, l.ID, op, p.QuizID, sync.ResolutionMerged, "graded alongside an open online attempt", result)
		} else {
			return fmt.Errorf("failed to store attempt: %w", err)
		}
	}
	if err := h.attemptRepo.Finalize(ctx, a); err != nil {
		return fmt.Errorf("failed to finalize attempt: %w", err)
	}

	result.Events = append(result.Events, shared.NewQuizGradedEvent(l.ID, q.ID, a.ID, q.CourseID, a.ScoreRatio, a.Passed, a.Perfect(), a.Duration(), a.Results))

	h.appendChange(ctx, l.ID, "quiz_attempt", a.ID, map[string]any{
		"attempt_id":  a.ID,
		"quiz_id":     a.QuizID,
		"score_ratio": a.ScoreRatio,
		"passed":      a.Passed,
	}, submittedAt)
	return nil
}

func (h *SyncPushHandler) applyPreferenceUpdate(ctx context.Context, l *learner.Learner, op *sync.Operation, effectiveAt time.Time, result *SyncPushResult) error {
	var p sync.PreferencePayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return fmt.Errorf("bad preference payload: %w", err)
	}

	next, resolution := sync.ResolvePreferences(l.Preferences, p, effectiveAt)
	if resolution == sync.ResolutionServerWon {
		h.logConflict(ctx, l.ID, op, l.ID, resolution, "server preferences were newer", result)
		return nil
	}

	if err := l.UpdatePreferences(next); err != nil {
		return err
	}
	h.appendChange(ctx, l.ID, "preferences", l.ID, l.Preferences, effectiveAt)
	return nil
}

// logConflict records a resolution in the conflict log and the result.
func (h *SyncPushHandler) logConflict(ctx context.Context, learnerID string, op *sync.Operation, entityID string, res sync.Resolution, detail string, result *SyncPushResult) {
	c := sync.Conflict{
		ID:         h.ids.NewID(),
		LearnerID:  learnerID,
		DeviceID:   op.DeviceID,
		Seq:        op.Seq,
		Kind:       op.Kind,
		EntityID:   entityID,
		Resolution: res,
		Detail:     detail,
		ResolvedAt: time.Now().UTC(),
	}
	result.Conflicts = append(result.Conflicts, c)
	if h.conflictLog != nil {
		_ = h.conflictLog.Record(ctx, &c)
	}
}

// appendChange writes a change-log entry for the learner's other devices.
func (h *SyncPushHandler) appendChange(ctx context.Context, learnerID, entity, entityID string, payload any, at time.Time) {
	if h.changeLog == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = h.changeLog.Append(ctx, &sync.Change{
		LearnerID: learnerID,
		Entity:    entity,
		EntityID:  entityID,
		Payload:   raw,
		ChangedAt: at,
	})
}
