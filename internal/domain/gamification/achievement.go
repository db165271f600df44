package gamification

import (
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// CriterionKind selects how an achievement's threshold is evaluated.
type CriterionKind string

const (
	// CriterionLessonsCompleted - total lessons completed.
	CriterionLessonsCompleted CriterionKind = "lessons_completed"
	// CriterionStreakDays - current streak length in days.
	CriterionStreakDays CriterionKind = "streak_days"
	// CriterionCompetenciesMastered - competencies in the mastered state.
	CriterionCompetenciesMastered CriterionKind = "competencies_mastered"
	// CriterionPerfectQuizzes - quizzes finished with a full score.
	CriterionPerfectQuizzes CriterionKind = "perfect_quizzes"
	// CriterionCoursesCompleted - courses fully completed.
	CriterionCoursesCompleted CriterionKind = "courses_completed"
	// CriterionLevelReached - learner level.
	CriterionLevelReached CriterionKind = "level_reached"
)

// Achievement is one catalog entry. The catalog is static and compiled
// in; learner progress against it lives in Award rows.
type Achievement struct {
	ID          string               `json:"id"`
	Name        shared.LocalizedText `json:"name"`
	Description shared.LocalizedText `json:"description"`

	Criterion CriterionKind `json:"criterion"`
	Threshold int           `json:"threshold"`

	// BonusXP is granted through the ledger when the achievement is
	// awarded.
	BonusXP int `json:"bonus_xp"`
}

// Met reports whether a progress value satisfies the criterion.
func (a *Achievement) Met(value int) bool {
	return value >= a.Threshold
}

// Award records that a learner earned an achievement. One row per
// (learner, achievement); awarding twice is a domain error.
type Award struct {
	LearnerID     string    `json:"learner_id"`
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
}

// Progress is a snapshot of the counters the criteria evaluate against.
// The application layer assembles it from the other domains.
type Progress struct {
	LessonsCompleted     int
	StreakDays           int
	CompetenciesMastered int
	PerfectQuizzes       int
	CoursesCompleted     int
	Level                int
}

// Value extracts the counter an achievement's criterion reads.
func (p Progress) Value(kind CriterionKind) int {
	switch kind {
	case CriterionLessonsCompleted:
		return p.LessonsCompleted
	case CriterionStreakDays:
		return p.StreakDays
	case CriterionCompetenciesMastered:
		return p.CompetenciesMastered
	case CriterionPerfectQuizzes:
		return p.PerfectQuizzes
	case CriterionCoursesCompleted:
		return p.CoursesCompleted
	case CriterionLevelReached:
		return p.Level
	default:
		return 0
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

// Catalog is the built-in achievement set, ordered easiest first.
var Catalog = []Achievement{
	{
		ID:          "first-lesson",
		Name:        shared.LocalizedText{Th: "ก้าวแรก", En: "First Steps"},
		Description: shared.LocalizedText{Th: "เรียนจบบทเรียนแรกของคุณ", En: "Complete your first lesson"},
		Criterion:   CriterionLessonsCompleted,
		Threshold:   1,
		BonusXP:     10,
	},
	{
		ID:          "ten-lessons",
		Name:        shared.LocalizedText{Th: "นักเรียนขยัน", En: "Diligent Learner"},
		Description: shared.LocalizedText{Th: "เรียนจบ 10 บทเรียน", En: "Complete 10 lessons"},
		Criterion:   CriterionLessonsCompleted,
		Threshold:   10,
		BonusXP:     50,
	},
	{
		ID:          "streak-7",
		Name:        shared.LocalizedText{Th: "หนึ่งสัปดาห์เต็ม", En: "Full Week"},
		Description: shared.LocalizedText{Th: "เรียนต่อเนื่อง 7 วัน", En: "Learn 7 days in a row"},
		Criterion:   CriterionStreakDays,
		Threshold:   7,
		BonusXP:     50,
	},
	{
		ID:          "streak-30",
		Name:        shared.LocalizedText{Th: "หนึ่งเดือนไม่หยุด", En: "Unstoppable Month"},
		Description: shared.LocalizedText{Th: "เรียนต่อเนื่อง 30 วัน", En: "Learn 30 days in a row"},
		Criterion:   CriterionStreakDays,
		Threshold:   30,
		BonusXP:     200,
	},
	{
		ID:          "first-perfect",
		Name:        shared.LocalizedText{Th: "คะแนนเต็ม", En: "Perfect Score"},
		Description: shared.LocalizedText{Th: "ทำแบบทดสอบได้คะแนนเต็ม", En: "Finish a quiz with a perfect score"},
		Criterion:   CriterionPerfectQuizzes,
		Threshold:   1,
		BonusXP:     30,
	},
	{
		ID:          "mastered-5",
		Name:        shared.LocalizedText{Th: "ผู้เชี่ยวชาญมือใหม่", En: "Rising Expert"},
		Description: shared.LocalizedText{Th: "เชี่ยวชาญ 5 ทักษะ", En: "Master 5 competencies"},
		Criterion:   CriterionCompetenciesMastered,
		Threshold:   5,
		BonusXP:     100,
	},
	{
		ID:          "mastered-20",
		Name:        shared.LocalizedText{Th: "ปรมาจารย์", En: "Grandmaster"},
		Description: shared.LocalizedText{Th: "เชี่ยวชาญ 20 ทักษะ", En: "Master 20 competencies"},
		Criterion:   CriterionCompetenciesMastered,
		Threshold:   20,
		BonusXP:     300,
	},
	{
		ID:          "first-course",
		Name:        shared.LocalizedText{Th: "จบคอร์สแรก", En: "Course Conqueror"},
		Description: shared.LocalizedText{Th: "เรียนจบคอร์สแรกของคุณ", En: "Complete your first course"},
		Criterion:   CriterionCoursesCompleted,
		Threshold:   1,
		BonusXP:     100,
	},
	{
		ID:          "level-10",
		Name:        shared.LocalizedText{Th: "เลเวล 10", En: "Double Digits"},
		Description: shared.LocalizedText{Th: "ไปถึงเลเวล 10", En: "Reach level 10"},
		Criterion:   CriterionLevelReached,
		Threshold:   10,
		BonusXP:     150,
	},
}

// CatalogByID looks an achievement up in the built-in catalog.
func CatalogByID(id string) (*Achievement, bool) {
	for i := range Catalog {
		if Catalog[i].ID == id {
			return &Catalog[i], true
		}
	}
	return nil, false
}

// Evaluate returns the catalog achievements newly satisfied by the
// progress snapshot, excluding the already-earned set.
func Evaluate(p Progress, earned map[string]bool) []Achievement {
	var out []Achievement
	for _, a := range Catalog {
		if earned[a.ID] {
			continue
		}
		if a.Met(p.Value(a.Criterion)) {
			out = append(out, a)
		}
	}
	return out
}
