package sync

import (
	"encoding/json"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEUED OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// OpKind is what the client did while offline.
type OpKind string

const (
	// OpLessonProgress - a lesson was started or completed.
	OpLessonProgress OpKind = "lesson_progress"
	// OpQuizAttempt - a quiz was taken offline.
	OpQuizAttempt OpKind = "quiz_attempt"
	// OpPreferenceUpdate - settings changed on the device.
	OpPreferenceUpdate OpKind = "preference_update"
)

// IsValid checks the kind value.
func (k OpKind) IsValid() bool {
	switch k {
	case OpLessonProgress, OpQuizAttempt, OpPreferenceUpdate:
		return true
	default:
		return false
	}
}

// MaxClockSkew is how far a client timestamp may diverge from server
// time before it is clamped. Offline clients drift; broken clocks lie.
const MaxClockSkew = 24 * time.Hour

// Operation is one queued client action. Seq is assigned by the client
// per device and strictly increases; (DeviceID, Seq) makes replays
// idempotent.
type Operation struct {
	DeviceID string `json:"device_id"`
	Seq      int64  `json:"seq"`
	Kind     OpKind `json:"kind"`

	// ClientTime is when the device says it happened.
	ClientTime time.Time `json:"client_time"`

	// Payload is the kind-specific body, decoded by the applier.
	Payload json.RawMessage `json:"payload"`
}

// Validate checks operation invariants.
func (o *Operation) Validate() error {
	if o.DeviceID == "" {
		return shared.NewDomainError("sync", "Validate", shared.ErrEmptyValue, "device ID is required")
	}
	if o.Seq <= 0 {
		return shared.NewDomainError("sync", "Validate", shared.ErrValidation, "sequence must be positive")
	}
	if !o.Kind.IsValid() {
		return shared.NewDomainError("sync", "Validate", shared.ErrValidation, "unknown operation kind")
	}
	if o.ClientTime.IsZero() {
		return shared.NewDomainError("sync", "Validate", shared.ErrValidation, "client time is required")
	}
	if len(o.Payload) == 0 {
		return shared.NewDomainError("sync", "Validate", shared.ErrEmptyValue, "payload is required")
	}
	return nil
}

// EffectiveTime returns the client timestamp clamped to MaxClockSkew
// around server time, and whether clamping happened.
func (o *Operation) EffectiveTime(serverNow time.Time) (time.Time, bool) {
	diff := serverNow.Sub(o.ClientTime)
	if diff > MaxClockSkew || diff < -MaxClockSkew {
		return serverNow, true
	}
	return o.ClientTime, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Payload bodies
// ─────────────────────────────────────────────────────────────────────────────

// LessonProgressPayload is the body of an OpLessonProgress.
type LessonProgressPayload struct {
	CourseID    string `json:"course_id"`
	LessonID    string `json:"lesson_id"`
	State       string `json:"state"`
	TimeSpentMS int64  `json:"time_spent_ms"`
}

// QuizAttemptPayload is the body of an OpQuizAttempt.
type QuizAttemptPayload struct {
	QuizID      string          `json:"quiz_id"`
	StartedAt   time.Time       `json:"started_at"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Answers     json.RawMessage `json:"answers"`
}

// PreferencePayload is the body of an OpPreferenceUpdate.
type PreferencePayload struct {
	Language         string `json:"language,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	LevelUps         *bool  `json:"level_ups,omitempty"`
	Achievements     *bool  `json:"achievements,omitempty"`
	StreakReminders  *bool  `json:"streak_reminders,omitempty"`
	MasteryReminders *bool  `json:"mastery_reminders,omitempty"`
	CourseNews       *bool  `json:"course_news,omitempty"`
	QuietHoursStart  *int   `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd    *int   `json:"quiet_hours_end,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE LOG (pull side)
// ══════════════════════════════════════════════════════════════════════════════

// Change is one server-side mutation a device pulls. Cursor values
// strictly increase per learner.
type Change struct {
	Cursor    int64           `json:"cursor"`
	LearnerID string          `json:"-"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload"`
	ChangedAt time.Time       `json:"changed_at"`
}
