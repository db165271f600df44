package learner

import (
	"fmt"
	"strings"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status defines the learner's account status.
type Status string

const (
	// StatusActive - the learner is actively studying.
	StatusActive Status = "active"
	// StatusInactive - no activity for more than the inactivity window.
	StatusInactive Status = "inactive"
	// StatusSuspended - the account is temporarily blocked.
	StatusSuspended Status = "suspended"
	// StatusDeleted - soft-deleted account.
	StatusDeleted Status = "deleted"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusDeleted:
		return true
	default:
		return false
	}
}

// CanReceiveNotifications returns true if notifications may be delivered.
func (s Status) CanReceiveNotifications() bool {
	return s == StatusActive || s == StatusInactive
}

// CanStudy returns true if the learner may access learning content.
func (s Status) CanStudy() bool {
	return s == StatusActive || s == StatusInactive
}

// Role defines what a user may do with course content.
type Role string

const (
	// RoleLearner - a regular learner.
	RoleLearner Role = "learner"
	// RoleAuthor - may create and edit courses.
	RoleAuthor Role = "author"
	// RoleAdmin - full access, including xAPI raw queries.
	RoleAdmin Role = "admin"
)

// IsValid checks that the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleLearner, RoleAuthor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanAuthor returns true for roles allowed to manage course content.
func (r Role) CanAuthor() bool {
	return r == RoleAuthor || r == RoleAdmin
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES
// ══════════════════════════════════════════════════════════════════════════════

// Preferences holds per-learner notification and localization settings.
type Preferences struct {
	// Language is the preferred content language (th/en).
	Language shared.LanguageCode `json:"language"`

	// Timezone is the IANA timezone used for streaks and quiet hours.
	Timezone string `json:"timezone"`

	// Notification toggles.
	LevelUps         bool `json:"level_ups"`
	Achievements     bool `json:"achievements"`
	StreakReminders  bool `json:"streak_reminders"`
	MasteryReminders bool `json:"mastery_reminders"`
	CourseNews       bool `json:"course_news"`

	// QuietHoursStart/End define the local hours (0-23) during which
	// notifications are deferred. Start == End disables quiet hours.
	QuietHoursStart int `json:"quiet_hours_start"`
	QuietHoursEnd   int `json:"quiet_hours_end"`

	// UpdatedAt is used by the sync layer for last-write-wins resolution.
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultTimezone is the platform default; most learners are in Thailand.
const DefaultTimezone = "Asia/Bangkok"

// DefaultPreferences returns the preferences assigned at registration.
func DefaultPreferences(lang shared.LanguageCode) Preferences {
	if !lang.IsValid() {
		lang = shared.LangThai
	}
	return Preferences{
		Language:         lang,
		Timezone:         DefaultTimezone,
		LevelUps:         true,
		Achievements:     true,
		StreakReminders:  true,
		MasteryReminders: true,
		CourseNews:       true,
		QuietHoursStart:  22,
		QuietHoursEnd:    8,
	}
}

// IsQuietHour checks whether t (converted to the learner's timezone)
// falls inside the quiet-hours window. The window may wrap midnight.
func (p Preferences) IsQuietHour(t time.Time) bool {
	if p.QuietHoursStart == p.QuietHoursEnd {
		return false
	}
	loc := p.Location()
	hour := t.In(loc).Hour()
	if p.QuietHoursStart < p.QuietHoursEnd {
		return hour >= p.QuietHoursStart && hour < p.QuietHoursEnd
	}
	return hour >= p.QuietHoursStart || hour < p.QuietHoursEnd
}

// Location resolves the learner's timezone, falling back to the default.
func (p Preferences) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	return loc
}

// Validate checks preference invariants.
func (p Preferences) Validate() error {
	if !p.Language.IsValid() {
		return shared.ErrInvalidLanguage
	}
	if p.QuietHoursStart < 0 || p.QuietHoursStart > 23 || p.QuietHoursEnd < 0 || p.QuietHoursEnd > 23 {
		return shared.NewDomainError("learner", "Validate", shared.ErrValueOutOfRange, "quiet hours must be 0-23")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return shared.NewDomainError("learner", "Validate", shared.ErrInvalidInput, "unknown timezone")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Learner is the central aggregate of the platform.
type Learner struct {
	// ID is the internal UUID.
	ID string

	// Email is the unique login identity.
	Email shared.Email

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string

	// DisplayName is shown on leaderboards and in notifications.
	DisplayName string

	// Role controls content-authoring access.
	Role Role

	// Status is the account status.
	Status Status

	// Preferences holds localization and notification settings.
	Preferences Preferences

	// CurrentXP is the accumulated experience total. The authoritative
	// history lives in the XP ledger; this is the denormalized sum.
	CurrentXP shared.XP

	// CurrentStreak / BestStreak count consecutive active local days.
	CurrentStreak int
	BestStreak    int

	// LastActivityAt is the time of the last learning activity.
	LastActivityAt time.Time

	// LastActiveDay is the learner-local calendar day (YYYY-MM-DD) of the
	// last activity; used to extend or reset the streak exactly once per day.
	LastActiveDay string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// NewLearnerParams carries the inputs for NewLearner.
type NewLearnerParams struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Language     shared.LanguageCode
	Role         Role
}

// NewLearner creates a new learner with validation.
func NewLearner(params NewLearnerParams) (*Learner, error) {
	email, err := shared.NewEmail(params.Email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.DisplayName)
	if name == "" || len(name) > 100 {
		return nil, shared.NewDomainError("learner", "New", shared.ErrInvalidInput, "display name must be 1-100 characters")
	}

	if params.PasswordHash == "" {
		return nil, shared.NewDomainError("learner", "New", shared.ErrEmptyValue, "password hash is required")
	}

	role := params.Role
	if role == "" {
		role = RoleLearner
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("learner", "New", shared.ErrInvalidInput, "invalid role")
	}

	now := time.Now()
	return &Learner{
		ID:           params.ID,
		Email:        email,
		PasswordHash: params.PasswordHash,
		DisplayName:  name,
		Role:         role,
		Status:       StatusActive,
		Preferences:  DefaultPreferences(params.Language),
		CurrentXP:    0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Level returns the current level derived from XP.
func (l *Learner) Level() shared.Level {
	return l.CurrentXP.Level()
}

// AddXP adds XP and reports whether a level boundary was crossed.
func (l *Learner) AddXP(amount int) (leveledUp bool, oldLevel, newLevel shared.Level) {
	oldLevel = l.CurrentXP.Level()
	l.CurrentXP = l.CurrentXP.Add(amount)
	newLevel = l.CurrentXP.Level()
	l.UpdatedAt = time.Now()
	return newLevel > oldLevel, oldLevel, newLevel
}

// StreakOutcome describes what TouchActivity did to the streak.
type StreakOutcome int

const (
	// StreakUnchanged - the learner was already active today.
	StreakUnchanged StreakOutcome = iota
	// StreakExtended - the streak grew by one day.
	StreakExtended
	// StreakReset - at least one day was missed; the streak restarted at 1.
	StreakReset
)

// TouchActivity records learning activity at t and maintains the daily
// streak using the learner's local calendar. It is idempotent within a day.
func (l *Learner) TouchActivity(t time.Time) StreakOutcome {
	loc := l.Preferences.Location()
	day := t.In(loc).Format("2006-01-02")

	outcome := StreakUnchanged
	switch {
	case l.LastActiveDay == day:
		// Second activity today; nothing to do for the streak.
	case l.LastActiveDay == t.In(loc).AddDate(0, 0, -1).Format("2006-01-02"):
		l.CurrentStreak++
		outcome = StreakExtended
	default:
		l.CurrentStreak = 1
		if l.LastActiveDay == "" {
			outcome = StreakExtended
		} else {
			outcome = StreakReset
		}
	}
	if l.CurrentStreak > l.BestStreak {
		l.BestStreak = l.CurrentStreak
	}

	l.LastActiveDay = day
	l.LastActivityAt = t
	if l.Status == StatusInactive {
		l.Status = StatusActive
	}
	l.UpdatedAt = time.Now()
	return outcome
}

// DaysSinceActivity returns full days since the last activity.
func (l *Learner) DaysSinceActivity(now time.Time) int {
	if l.LastActivityAt.IsZero() {
		return 0
	}
	return int(now.Sub(l.LastActivityAt).Hours() / 24)
}

// MarkInactive transitions an active learner to inactive.
func (l *Learner) MarkInactive() error {
	if l.Status != StatusActive {
		return shared.ErrLearnerNotActive
	}
	l.Status = StatusInactive
	l.UpdatedAt = time.Now()
	return nil
}

// Suspend blocks the account.
func (l *Learner) Suspend() error {
	if l.Status == StatusDeleted {
		return shared.NewDomainError("learner", "Suspend", shared.ErrStateTransition, "cannot suspend a deleted account")
	}
	l.Status = StatusSuspended
	l.UpdatedAt = time.Now()
	return nil
}

// Reinstate restores a suspended account.
func (l *Learner) Reinstate() error {
	if l.Status != StatusSuspended {
		return shared.NewDomainError("learner", "Reinstate", shared.ErrStateTransition, "account is not suspended")
	}
	l.Status = StatusActive
	l.UpdatedAt = time.Now()
	return nil
}

// UpdatePreferences replaces the preferences after validation.
func (l *Learner) UpdatePreferences(prefs Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	prefs.UpdatedAt = time.Now()
	l.Preferences = prefs
	l.UpdatedAt = prefs.UpdatedAt
	return nil
}

// CanReceiveNotification checks status, per-kind toggles and quiet hours.
func (l *Learner) CanReceiveNotification(kind string, at time.Time) bool {
	if !l.Status.CanReceiveNotifications() {
		return false
	}
	switch kind {
	case "level_up":
		if !l.Preferences.LevelUps {
			return false
		}
	case "achievement":
		if !l.Preferences.Achievements {
			return false
		}
	case "streak_reminder":
		if !l.Preferences.StreakReminders {
			return false
		}
	case "mastery_decayed":
		if !l.Preferences.MasteryReminders {
			return false
		}
	case "course_published":
		if !l.Preferences.CourseNews {
			return false
		}
	}
	return !l.Preferences.IsQuietHour(at)
}

// String returns a short description for logging.
func (l *Learner) String() string {
	return fmt.Sprintf("Learner(%s, %s, xp=%d, streak=%d)", l.ID, l.Email, l.CurrentXP, l.CurrentStreak)
}

// Clone returns a deep copy of the learner.
func (l *Learner) Clone() *Learner {
	c := *l
	return &c
}
