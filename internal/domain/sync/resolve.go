package sync

import (
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFLICT RESOLUTION
// Three strategies, one per data class:
//   preferences     - last write wins on (clamped) client timestamp
//   lesson progress - monotonic merge, completion never regresses
//   quiz attempts   - append only, attempts never conflict
// ══════════════════════════════════════════════════════════════════════════════

// Resolution names the outcome recorded in the conflict log.
type Resolution string

const (
	ResolutionClientWon Resolution = "client_won"
	ResolutionServerWon Resolution = "server_won"
	ResolutionMerged    Resolution = "merged"
)

// Conflict is one logged resolution. The log exists so support can
// answer "where did my progress go".
type Conflict struct {
	ID         string     `json:"id"`
	LearnerID  string     `json:"learner_id"`
	DeviceID   string     `json:"device_id"`
	Seq        int64      `json:"seq"`
	Kind       OpKind     `json:"kind"`
	EntityID   string     `json:"entity_id"`
	Resolution Resolution `json:"resolution"`
	Detail     string     `json:"detail,omitempty"`
	ResolvedAt time.Time  `json:"resolved_at"`
}

// ResolvePreferences applies last-write-wins between the server's
// preferences and a device update. The device wins only when its
// effective timestamp is strictly newer than the server's UpdatedAt.
func ResolvePreferences(current learner.Preferences, p PreferencePayload, effectiveAt time.Time) (learner.Preferences, Resolution) {
	if !effectiveAt.After(current.UpdatedAt) {
		return current, ResolutionServerWon
	}

	next := current
	if p.Language != "" {
		next.Language = shared.LanguageCode(p.Language)
	}
	if p.Timezone != "" {
		next.Timezone = p.Timezone
	}
	if p.LevelUps != nil {
		next.LevelUps = *p.LevelUps
	}
	if p.Achievements != nil {
		next.Achievements = *p.Achievements
	}
	if p.StreakReminders != nil {
		next.StreakReminders = *p.StreakReminders
	}
	if p.MasteryReminders != nil {
		next.MasteryReminders = *p.MasteryReminders
	}
	if p.CourseNews != nil {
		next.CourseNews = *p.CourseNews
	}
	if p.QuietHoursStart != nil {
		next.QuietHoursStart = *p.QuietHoursStart
	}
	if p.QuietHoursEnd != nil {
		next.QuietHoursEnd = *p.QuietHoursEnd
	}
	next.UpdatedAt = effectiveAt
	return next, ResolutionClientWon
}

// ResolveProgress merges an offline lesson-progress update into the
// server record. Completion beats started, time spent takes the max,
// and a merge that changes nothing reports the server winning.
func ResolveProgress(current *course.LessonProgress, incoming course.LessonProgress) (course.LessonProgress, Resolution) {
	if current == nil {
		return incoming, ResolutionClientWon
	}
	merged := *current
	changed := merged.Merge(incoming)
	if !changed {
		return merged, ResolutionServerWon
	}
	return merged, ResolutionMerged
}
