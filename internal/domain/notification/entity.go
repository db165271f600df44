// Package notification holds the in-app notification model: typed
// notifications rendered from bilingual templates, a delivery
// lifecycle with quiet-hours deferral, and read tracking.
package notification

import (
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KIND & PRIORITY
// ══════════════════════════════════════════════════════════════════════════════

// Kind identifies what happened.
type Kind string

const (
	// KindWelcome - sent once after registration.
	KindWelcome Kind = "welcome"
	// KindLevelUp - the learner reached a new level.
	KindLevelUp Kind = "level_up"
	// KindAchievement - an achievement was earned.
	KindAchievement Kind = "achievement"
	// KindStreakReminder - the streak is about to break.
	KindStreakReminder Kind = "streak_reminder"
	// KindStreakMilestone - the streak hit a milestone day.
	KindStreakMilestone Kind = "streak_milestone"
	// KindMasteryRusty - a competency decayed into the rusty state.
	KindMasteryRusty Kind = "mastery_rusty"
	// KindCoursePublished - a new course went live.
	KindCoursePublished Kind = "course_published"
	// KindRankChanged - leaderboard position moved significantly.
	KindRankChanged Kind = "rank_changed"
)

// IsValid checks the kind value.
func (k Kind) IsValid() bool {
	switch k {
	case KindWelcome, KindLevelUp, KindAchievement, KindStreakReminder,
		KindStreakMilestone, KindMasteryRusty, KindCoursePublished, KindRankChanged:
		return true
	default:
		return false
	}
}

// PreferenceGate maps the kind to the learner preference toggle that
// controls it. Welcome has no gate.
func (k Kind) PreferenceGate() string {
	switch k {
	case KindLevelUp:
		return "level_ups"
	case KindAchievement:
		return "achievements"
	case KindStreakReminder, KindStreakMilestone:
		return "streak_reminders"
	case KindMasteryRusty:
		return "mastery_reminders"
	case KindCoursePublished, KindRankChanged:
		return "course_news"
	default:
		return ""
	}
}

// Priority orders delivery within a batch.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
)

// DefaultPriority returns the priority appropriate for the kind.
func (k Kind) DefaultPriority() Priority {
	switch k {
	case KindLevelUp, KindAchievement:
		return PriorityHigh
	case KindStreakReminder:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS LIFECYCLE
// pending -> delivered               (normal path)
// pending -> deferred -> delivered   (quiet hours)
// pending -> skipped                 (preference gate off)
// ══════════════════════════════════════════════════════════════════════════════

// Status is the delivery state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDeferred  Status = "deferred"
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
)

// IsValid checks the status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDeferred, StatusDelivered, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the status terminates the lifecycle.
func (s Status) IsFinal() bool {
	return s == StatusDelivered || s == StatusSkipped
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Data carries the kind-specific payload, stored as JSONB.
type Data struct {
	// Level-up
	OldLevel int `json:"old_level,omitempty"`
	NewLevel int `json:"new_level,omitempty"`

	// Achievement
	AchievementID string `json:"achievement_id,omitempty"`

	// Streak
	StreakDays int `json:"streak_days,omitempty"`

	// Mastery
	CompetencyID string `json:"competency_id,omitempty"`

	// Course
	CourseID string `json:"course_id,omitempty"`

	// Leaderboard
	OldRank int `json:"old_rank,omitempty"`
	NewRank int `json:"new_rank,omitempty"`
}

// Notification is one in-app message for one learner. Title and Body
// are stored bilingually; the interface layer picks the learner's
// language at read time.
type Notification struct {
	ID        string
	LearnerID string
	Kind      Kind
	Priority  Priority

	Title shared.LocalizedText
	Body  shared.LocalizedText
	Data  Data

	Status Status

	// DeferredUntil is set when delivery hit the learner's quiet
	// hours; the delivery job retries after it.
	DeferredUntil *time.Time

	DeliveredAt *time.Time
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// New builds a pending notification.
func New(id, learnerID string, kind Kind, title, body shared.LocalizedText, data Data) (*Notification, error) {
	if learnerID == "" {
		return nil, shared.NewDomainError("notification", "New", shared.ErrEmptyValue, "learner ID is required")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("notification", "New", shared.ErrValidation, fmt.Sprintf("unknown kind %q", kind))
	}
	if !title.IsValid() || !body.IsValid() {
		return nil, shared.ErrMissingTranslation
	}
	return &Notification{
		ID:        id,
		LearnerID: learnerID,
		Kind:      kind,
		Priority:  kind.DefaultPriority(),
		Title:     title,
		Body:      body,
		Data:      data,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MarkDelivered finalizes delivery.
func (n *Notification) MarkDelivered(at time.Time) error {
	if n.Status.IsFinal() {
		return shared.ErrInvalidState
	}
	n.Status = StatusDelivered
	n.DeliveredAt = &at
	n.DeferredUntil = nil
	return nil
}

// Defer postpones delivery until the learner's quiet hours end.
// Deferred means delayed, never dropped.
func (n *Notification) Defer(until time.Time) error {
	if n.Status.IsFinal() {
		return shared.ErrInvalidState
	}
	n.Status = StatusDeferred
	n.DeferredUntil = &until
	return nil
}

// Skip finalizes without delivery, for preference-gated kinds.
func (n *Notification) Skip() error {
	if n.Status.IsFinal() {
		return shared.ErrInvalidState
	}
	n.Status = StatusSkipped
	return nil
}

// MarkRead records the learner opening the notification. Only
// delivered notifications can be read; reading twice keeps the first
// timestamp.
func (n *Notification) MarkRead(at time.Time) error {
	if n.Status != StatusDelivered {
		return shared.ErrInvalidState
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	return nil
}

// IsRead reports read state.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// ReadyAt reports whether the notification is due for delivery.
func (n *Notification) ReadyAt(now time.Time) bool {
	switch n.Status {
	case StatusPending:
		return true
	case StatusDeferred:
		return n.DeferredUntil != nil && !now.Before(*n.DeferredUntil)
	default:
		return false
	}
}
