// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Learner events
	EventLearnerRegistered  EventType = "learner.registered"
	EventLearnerUpdated     EventType = "learner.updated"
	EventLearnerDeactivated EventType = "learner.deactivated"

	// Course events
	EventCoursePublished   EventType = "course.published"
	EventCourseArchived    EventType = "course.archived"
	EventLearnerEnrolled   EventType = "course.enrolled"
	EventLessonStarted     EventType = "course.lesson_started"
	EventLessonCompleted   EventType = "course.lesson_completed"

	// Quiz events
	EventQuizGraded EventType = "quiz.graded"

	// Mastery events
	EventMasteryUpdated EventType = "mastery.updated"
	EventMasteryDecayed EventType = "mastery.decayed"
	EventCompetencyMastered EventType = "mastery.competency_mastered"

	// Gamification events
	EventXPGained           EventType = "gamification.xp_gained"
	EventLevelUp            EventType = "gamification.level_up"
	EventDailyStreakUpdated EventType = "gamification.streak_updated"
	EventDailyStreakBroken  EventType = "gamification.streak_broken"
	EventAchievementEarned  EventType = "gamification.achievement_earned"

	// Leaderboard events
	EventRankChanged        EventType = "leaderboard.rank_changed"
	EventEnteredTopN        EventType = "leaderboard.entered_top_n"
	EventLeaderboardUpdated EventType = "leaderboard.updated"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"

	// Sync events
	EventDeviceSynced   EventType = "sync.device_synced"
	EventSyncConflict   EventType = "sync.conflict_resolved"

	// System events
	EventStatementStored  EventType = "system.statement_stored"
	EventLearnerInactive  EventType = "system.learner_inactive"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Learner Events
// ═══════════════════════════════════════════════════════════════════════════

// LearnerRegisteredEvent is emitted when a new learner registers.
type LearnerRegisteredEvent struct {
	BaseEvent
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
}

// Payload implements Event interface.
func (e LearnerRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":        e.Email,
		"display_name": e.DisplayName,
		"language":     e.Language,
	}
}

// NewLearnerRegisteredEvent creates a new LearnerRegisteredEvent.
func NewLearnerRegisteredEvent(learnerID, email, displayName, language string) LearnerRegisteredEvent {
	return LearnerRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventLearnerRegistered, learnerID),
		Email:       email,
		DisplayName: displayName,
		Language:    language,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Course Events
// ═══════════════════════════════════════════════════════════════════════════

// CoursePublishedEvent is emitted when a course becomes visible to learners.
type CoursePublishedEvent struct {
	BaseEvent
	CourseID string `json:"course_id"`
	TitleEN  string `json:"title_en"`
	TitleTH  string `json:"title_th"`
}

// Payload implements Event interface.
func (e CoursePublishedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"title_en":  e.TitleEN,
		"title_th":  e.TitleTH,
	}
}

// NewCoursePublishedEvent creates a new CoursePublishedEvent.
func NewCoursePublishedEvent(courseID, titleEN, titleTH string) CoursePublishedEvent {
	return CoursePublishedEvent{
		BaseEvent: NewBaseEvent(EventCoursePublished, courseID),
		CourseID:  courseID,
		TitleEN:   titleEN,
		TitleTH:   titleTH,
	}
}

// LearnerEnrolledEvent is emitted when a learner joins a course.
type LearnerEnrolledEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	CourseID  string `json:"course_id"`
}

// Payload implements Event interface.
func (e LearnerEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"course_id":  e.CourseID,
	}
}

// NewLearnerEnrolledEvent creates a new LearnerEnrolledEvent.
func NewLearnerEnrolledEvent(learnerID, courseID string) LearnerEnrolledEvent {
	return LearnerEnrolledEvent{
		BaseEvent: NewBaseEvent(EventLearnerEnrolled, learnerID),
		LearnerID: learnerID,
		CourseID:  courseID,
	}
}

// LessonCompletedEvent is emitted when a learner completes a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	LearnerID string        `json:"learner_id"`
	CourseID  string        `json:"course_id"`
	LessonID  string        `json:"lesson_id"`
	TimeSpent time.Duration `json:"time_spent"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"course_id":  e.CourseID,
		"lesson_id":  e.LessonID,
		"time_spent": e.TimeSpent.String(),
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(learnerID, courseID, lessonID string, timeSpent time.Duration) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, learnerID),
		LearnerID: learnerID,
		CourseID:  courseID,
		LessonID:  lessonID,
		TimeSpent: timeSpent,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quiz Events
// ═══════════════════════════════════════════════════════════════════════════

// QuestionResult carries the graded outcome for a single question.
// It is the bridge between the grading pipeline and the mastery engine.
type QuestionResult struct {
	QuestionID   string  `json:"question_id"`
	CompetencyID string  `json:"competency_id"`
	Score        float64 `json:"score"`      // 0..1 (partial credit allowed)
	Difficulty   float64 `json:"difficulty"` // 0..1
	Correct      bool    `json:"correct"`
}

// QuizGradedEvent is emitted after an attempt has been graded.
// Handlers use it to update mastery and award XP.
type QuizGradedEvent struct {
	BaseEvent
	LearnerID  string           `json:"learner_id"`
	QuizID     string           `json:"quiz_id"`
	AttemptID  string           `json:"attempt_id"`
	CourseID   string           `json:"course_id"`
	ScoreRatio float64          `json:"score_ratio"` // 0..1
	Passed     bool             `json:"passed"`
	Perfect    bool             `json:"perfect"`
	Duration   time.Duration    `json:"duration"`
	Results    []QuestionResult `json:"results"`
}

// Payload implements Event interface.
func (e QuizGradedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":  e.LearnerID,
		"quiz_id":     e.QuizID,
		"attempt_id":  e.AttemptID,
		"course_id":   e.CourseID,
		"score_ratio": e.ScoreRatio,
		"passed":      e.Passed,
		"perfect":     e.Perfect,
		"duration":    e.Duration.String(),
	}
}

// NewQuizGradedEvent creates a new QuizGradedEvent.
func NewQuizGradedEvent(learnerID, quizID, attemptID, courseID string, scoreRatio float64, passed, perfect bool, duration time.Duration, results []QuestionResult) QuizGradedEvent {
	return QuizGradedEvent{
		BaseEvent:  NewBaseEvent(EventQuizGraded, learnerID),
		LearnerID:  learnerID,
		QuizID:     quizID,
		AttemptID:  attemptID,
		CourseID:   courseID,
		ScoreRatio: scoreRatio,
		Passed:     passed,
		Perfect:    perfect,
		Duration:   duration,
		Results:    results,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mastery Events
// ═══════════════════════════════════════════════════════════════════════════

// MasteryUpdatedEvent is emitted after a mastery estimate changes.
type MasteryUpdatedEvent struct {
	BaseEvent
	LearnerID    string  `json:"learner_id"`
	CompetencyID string  `json:"competency_id"`
	OldMastery   float64 `json:"old_mastery"`
	NewMastery   float64 `json:"new_mastery"`
	OldState     string  `json:"old_state"`
	NewState     string  `json:"new_state"`
}

// Payload implements Event interface.
func (e MasteryUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":    e.LearnerID,
		"competency_id": e.CompetencyID,
		"old_mastery":   e.OldMastery,
		"new_mastery":   e.NewMastery,
		"old_state":     e.OldState,
		"new_state":     e.NewState,
	}
}

// StateChanged reports whether the mastery state transitioned.
func (e MasteryUpdatedEvent) StateChanged() bool {
	return e.OldState != e.NewState
}

// NewMasteryUpdatedEvent creates a new MasteryUpdatedEvent.
func NewMasteryUpdatedEvent(learnerID, competencyID string, oldMastery, newMastery float64, oldState, newState string) MasteryUpdatedEvent {
	return MasteryUpdatedEvent{
		BaseEvent:    NewBaseEvent(EventMasteryUpdated, learnerID),
		LearnerID:    learnerID,
		CompetencyID: competencyID,
		OldMastery:   oldMastery,
		NewMastery:   newMastery,
		OldState:     oldState,
		NewState:     newState,
	}
}

// MasteryDecayedEvent is emitted when a previously proficient competency
// decays below the rusty threshold.
type MasteryDecayedEvent struct {
	BaseEvent
	LearnerID    string    `json:"learner_id"`
	CompetencyID string    `json:"competency_id"`
	Mastery      float64   `json:"mastery"`
	LastPractice time.Time `json:"last_practice"`
}

// Payload implements Event interface.
func (e MasteryDecayedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":    e.LearnerID,
		"competency_id": e.CompetencyID,
		"mastery":       e.Mastery,
		"last_practice": e.LastPractice.Format(time.RFC3339),
	}
}

// NewMasteryDecayedEvent creates a new MasteryDecayedEvent.
func NewMasteryDecayedEvent(learnerID, competencyID string, mastery float64, lastPractice time.Time) MasteryDecayedEvent {
	return MasteryDecayedEvent{
		BaseEvent:    NewBaseEvent(EventMasteryDecayed, learnerID),
		LearnerID:    learnerID,
		CompetencyID: competencyID,
		Mastery:      mastery,
		LastPractice: lastPractice,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Gamification Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a learner gains XP.
type XPGainedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	Amount    int    `json:"amount"`
	NewTotal  int    `json:"new_total"`
	Reason    string `json:"reason"` // e.g., "quiz_graded", "lesson_completed"
	RefID     string `json:"ref_id,omitempty"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"amount":     e.Amount,
		"new_total":  e.NewTotal,
		"reason":     e.Reason,
		"ref_id":     e.RefID,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(learnerID string, amount, newTotal int, reason, refID string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, learnerID),
		LearnerID: learnerID,
		Amount:    amount,
		NewTotal:  newTotal,
		Reason:    reason,
		RefID:     refID,
	}
}

// LevelUpEvent is emitted when accumulated XP crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	TotalXP   int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
		"total_xp":   e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(learnerID string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, learnerID),
		LearnerID: learnerID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// DailyStreakUpdatedEvent is emitted when a learner's streak is extended.
type DailyStreakUpdatedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	CurrentStreak int    `json:"current_streak"`
	BestStreak    int    `json:"best_streak"`
}

// Payload implements Event interface.
func (e DailyStreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"current_streak": e.CurrentStreak,
		"best_streak":    e.BestStreak,
	}
}

// NewDailyStreakUpdatedEvent creates a new DailyStreakUpdatedEvent.
func NewDailyStreakUpdatedEvent(learnerID string, currentStreak, bestStreak int) DailyStreakUpdatedEvent {
	return DailyStreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventDailyStreakUpdated, learnerID),
		LearnerID:     learnerID,
		CurrentStreak: currentStreak,
		BestStreak:    bestStreak,
	}
}

// DailyStreakBrokenEvent is emitted when a learner's daily streak is broken.
type DailyStreakBrokenEvent struct {
	BaseEvent
	LearnerID      string `json:"learner_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e DailyStreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":      e.LearnerID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewDailyStreakBrokenEvent creates a new DailyStreakBrokenEvent.
func NewDailyStreakBrokenEvent(learnerID string, previousStreak, daysMissed int) DailyStreakBrokenEvent {
	return DailyStreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventDailyStreakBroken, learnerID),
		LearnerID:      learnerID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// AchievementEarnedEvent is emitted when an achievement is awarded.
type AchievementEarnedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	AchievementID string `json:"achievement_id"`
	XPBonus       int    `json:"xp_bonus"`
}

// Payload implements Event interface.
func (e AchievementEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"achievement_id": e.AchievementID,
		"xp_bonus":       e.XPBonus,
	}
}

// NewAchievementEarnedEvent creates a new AchievementEarnedEvent.
func NewAchievementEarnedEvent(learnerID, achievementID string, xpBonus int) AchievementEarnedEvent {
	return AchievementEarnedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementEarned, learnerID),
		LearnerID:     learnerID,
		AchievementID: achievementID,
		XPBonus:       xpBonus,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedEvent is emitted when a learner's rank changes.
type RankChangedEvent struct {
	BaseEvent
	LearnerID  string `json:"learner_id"`
	OldRank    int    `json:"old_rank"`
	NewRank    int    `json:"new_rank"`
	RankChange int    `json:"rank_change"` // Positive = moved up, Negative = moved down
	Scope      string `json:"scope"`       // "global" or a course ID
}

// Payload implements Event interface.
func (e RankChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":  e.LearnerID,
		"old_rank":    e.OldRank,
		"new_rank":    e.NewRank,
		"rank_change": e.RankChange,
		"scope":       e.Scope,
	}
}

// NewRankChangedEvent creates a new RankChangedEvent.
func NewRankChangedEvent(learnerID string, oldRank, newRank int, scope string) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent:  NewBaseEvent(EventRankChanged, learnerID),
		LearnerID:  learnerID,
		OldRank:    oldRank,
		NewRank:    newRank,
		RankChange: oldRank - newRank, // Positive means moved up
		Scope:      scope,
	}
}

// MovedUp returns true if the learner moved up in rank.
func (e RankChangedEvent) MovedUp() bool {
	return e.RankChange > 0
}

// ═══════════════════════════════════════════════════════════════════════════
// Sync Events
// ═══════════════════════════════════════════════════════════════════════════

// DeviceSyncedEvent is emitted after a device push/pull cycle completes.
type DeviceSyncedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	DeviceID  string `json:"device_id"`
	Applied   int    `json:"applied"`
	Skipped   int    `json:"skipped"`
	Conflicts int    `json:"conflicts"`
}

// Payload implements Event interface.
func (e DeviceSyncedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"device_id":  e.DeviceID,
		"applied":    e.Applied,
		"skipped":    e.Skipped,
		"conflicts":  e.Conflicts,
	}
}

// NewDeviceSyncedEvent creates a new DeviceSyncedEvent.
func NewDeviceSyncedEvent(learnerID, deviceID string, applied, skipped, conflicts int) DeviceSyncedEvent {
	return DeviceSyncedEvent{
		BaseEvent: NewBaseEvent(EventDeviceSynced, learnerID),
		LearnerID: learnerID,
		DeviceID:  deviceID,
		Applied:   applied,
		Skipped:   skipped,
		Conflicts: conflicts,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// LearnerInactiveEvent is emitted when a learner has been inactive for too long.
type LearnerInactiveEvent struct {
	BaseEvent
	LearnerID    string    `json:"learner_id"`
	DaysInactive int       `json:"days_inactive"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// Payload implements Event interface.
func (e LearnerInactiveEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":    e.LearnerID,
		"days_inactive": e.DaysInactive,
		"last_seen_at":  e.LastSeenAt.Format(time.RFC3339),
	}
}

// NewLearnerInactiveEvent creates a new LearnerInactiveEvent.
func NewLearnerInactiveEvent(learnerID string, daysInactive int, lastSeenAt time.Time) LearnerInactiveEvent {
	return LearnerInactiveEvent{
		BaseEvent:    NewBaseEvent(EventLearnerInactive, learnerID),
		LearnerID:    learnerID,
		DaysInactive: daysInactive,
		LastSeenAt:   lastSeenAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
