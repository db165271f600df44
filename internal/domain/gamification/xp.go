// Package gamification holds the XP award rules, the append-only XP
// ledger, and the achievement catalog. Pure domain logic; persistence
// and event fan-out live in the outer layers.
package gamification

import (
	"math"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP AWARD RULES
// ══════════════════════════════════════════════════════════════════════════════

// Reason tags every ledger entry with why XP was granted.
type Reason string

const (
	ReasonLessonCompleted  Reason = "lesson_completed"
	ReasonQuizGraded       Reason = "quiz_graded"
	ReasonPerfectQuiz      Reason = "perfect_quiz"
	ReasonStreakMilestone  Reason = "streak_milestone"
	ReasonAchievementBonus Reason = "achievement_bonus"
	ReasonCourseCompleted  Reason = "course_completed"
)

// IsValid checks the reason value.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonLessonCompleted, ReasonQuizGraded, ReasonPerfectQuiz,
		ReasonStreakMilestone, ReasonAchievementBonus, ReasonCourseCompleted:
		return true
	default:
		return false
	}
}

// Base award amounts.
const (
	XPLessonCompleted = 25
	XPQuizMax         = 100
	XPPerfectBonus    = 20
	XPCourseCompleted = 150
)

// streakMilestoneXP maps streak day counts to bonus XP. Only the exact
// day of the milestone pays out.
var streakMilestoneXP = map[int]int{
	3:   15,
	7:   50,
	14:  75,
	30:  200,
	100: 500,
	365: 2000,
}

// QuizXP converts a graded score ratio into XP. Proportional, rounded
// to the nearest point, zero for a zero score.
func QuizXP(scoreRatio float64) int {
	if scoreRatio <= 0 {
		return 0
	}
	if scoreRatio > 1 {
		scoreRatio = 1
	}
	return int(math.Round(scoreRatio * XPQuizMax))
}

// StreakMilestoneXP returns the bonus for reaching the given streak
// length, or 0 when the day is not a milestone.
func StreakMilestoneXP(streakDays int) int {
	return streakMilestoneXP[streakDays]
}

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// LedgerEntry is one append-only XP grant. Entries are never updated
// or deleted; the learner's CurrentXP is the materialized sum.
type LedgerEntry struct {
	ID        string    `json:"id"`
	LearnerID string    `json:"learner_id"`
	Amount    int       `json:"amount"`
	Reason    Reason    `json:"reason"`

	// SourceID points at the triggering aggregate (lesson, attempt,
	// achievement) so duplicate grants can be detected.
	SourceID string `json:"source_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks ledger entry invariants.
func (e *LedgerEntry) Validate() error {
	if e.LearnerID == "" {
		return shared.NewDomainError("gamification", "Validate", shared.ErrEmptyValue, "learner ID is required")
	}
	if e.Amount <= 0 {
		return shared.NewDomainError("gamification", "Validate", shared.ErrValidation, "XP amount must be positive")
	}
	if !e.Reason.IsValid() {
		return shared.NewDomainError("gamification", "Validate", shared.ErrValidation, "unknown XP reason")
	}
	return nil
}
