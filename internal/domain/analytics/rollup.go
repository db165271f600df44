// Package analytics holds the aggregated read models: daily learner
// rollups, course funnels, and mastery distributions. Rows are written
// by the nightly rollup job and read by reporting queries.
package analytics

import (
	"time"

	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ROLLUP
// ══════════════════════════════════════════════════════════════════════════════

// DailyRollup is one learner's aggregated activity for one local day.
// Day is the learner-local date in "2006-01-02" form.
type DailyRollup struct {
	LearnerID string `json:"learner_id"`
	Day       string `json:"day"`

	LessonsCompleted int `json:"lessons_completed"`
	QuizzesTaken     int `json:"quizzes_taken"`
	QuizzesPassed    int `json:"quizzes_passed"`
	XPGained         int `json:"xp_gained"`
	ActiveMinutes    int `json:"active_minutes"`
	Statements       int `json:"statements"`

	ComputedAt time.Time `json:"computed_at"`
}

// Validate checks rollup invariants.
func (r *DailyRollup) Validate() error {
	if r.LearnerID == "" || r.Day == "" {
		return shared.NewDomainError("analytics", "Validate", shared.ErrEmptyValue, "learner ID and day are required")
	}
	if _, err := time.Parse("2006-01-02", r.Day); err != nil {
		return shared.NewDomainError("analytics", "Validate", shared.ErrValidation, "day must be YYYY-MM-DD")
	}
	if r.QuizzesPassed > r.QuizzesTaken {
		return shared.NewDomainError("analytics", "Validate", shared.ErrValidation, "passed cannot exceed taken")
	}
	return nil
}

// IsActive reports whether the learner did anything that day.
func (r *DailyRollup) IsActive() bool {
	return r.LessonsCompleted > 0 || r.QuizzesTaken > 0 || r.Statements > 0 || r.ActiveMinutes > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE FUNNEL & MASTERY DISTRIBUTION
// ══════════════════════════════════════════════════════════════════════════════

// CourseFunnel is the enrollment conversion for one course.
type CourseFunnel struct {
	CourseID  string `json:"course_id"`
	Enrolled  int    `json:"enrolled"`
	Started   int    `json:"started"`
	Completed int    `json:"completed"`
}

// StartRate returns started/enrolled.
func (f CourseFunnel) StartRate() float64 {
	if f.Enrolled == 0 {
		return 0
	}
	return float64(f.Started) / float64(f.Enrolled)
}

// CompletionRate returns completed/enrolled.
func (f CourseFunnel) CompletionRate() float64 {
	if f.Enrolled == 0 {
		return 0
	}
	return float64(f.Completed) / float64(f.Enrolled)
}

// MasteryDistribution counts learners per state for one competency.
type MasteryDistribution struct {
	CompetencyID string                `json:"competency_id"`
	Counts       map[mastery.State]int `json:"counts"`
}

// Total returns the learner count across states.
func (d MasteryDistribution) Total() int {
	total := 0
	for _, c := range d.Counts {
		total += c
	}
	return total
}
