package notification

import (
	"fmt"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BILINGUAL TEMPLATES
// Every notification is rendered in both languages at creation time so
// a later language switch re-reads correctly.
// ══════════════════════════════════════════════════════════════════════════════

// TemplateParams feeds the renderers.
type TemplateParams struct {
	LearnerName     string
	Level           int
	AchievementName shared.LocalizedText
	StreakDays      int
	CompetencyName  shared.LocalizedText
	CourseTitle     shared.LocalizedText
	OldRank         int
	NewRank         int
}

// Render produces the bilingual title and body for a kind.
func Render(kind Kind, p TemplateParams) (title, body shared.LocalizedText, err error) {
	switch kind {
	case KindWelcome:
		title = shared.LocalizedText{
			Th: "ยินดีต้อนรับสู่ RianHub",
			En: "Welcome to RianHub",
		}
		body = shared.LocalizedText{
			Th: fmt.Sprintf("สวัสดี %s เริ่มเรียนบทเรียนแรกของคุณได้เลย", p.LearnerName),
			En: fmt.Sprintf("Hi %s, jump into your first lesson whenever you are ready.", p.LearnerName),
		}

	case KindLevelUp:
		title = shared.LocalizedText{
			Th: fmt.Sprintf("เลื่อนขึ้นเลเวล %d แล้ว", p.Level),
			En: fmt.Sprintf("You reached level %d", p.Level),
		}
		body = shared.LocalizedText{
			Th: "เก็บ XP ต่อไปเพื่อปลดล็อกเลเวลถัดไป",
			En: "Keep earning XP to unlock the next level.",
		}

	case KindAchievement:
		title = shared.LocalizedText{
			Th: "ได้รับความสำเร็จใหม่",
			En: "Achievement unlocked",
		}
		body = shared.LocalizedText{
			Th: p.AchievementName.Th,
			En: p.AchievementName.En,
		}

	case KindStreakReminder:
		title = shared.LocalizedText{
			Th: "อย่าให้สตรีคขาด",
			En: "Your streak is at risk",
		}
		body = shared.LocalizedText{
			Th: fmt.Sprintf("เรียนวันนี้เพื่อรักษาสตรีค %d วันของคุณ", p.StreakDays),
			En: fmt.Sprintf("Learn something today to keep your %d-day streak alive.", p.StreakDays),
		}

	case KindStreakMilestone:
		title = shared.LocalizedText{
			Th: fmt.Sprintf("สตรีคครบ %d วัน", p.StreakDays),
			En: fmt.Sprintf("%d-day streak", p.StreakDays),
		}
		body = shared.LocalizedText{
			Th: "สุดยอด ความสม่ำเสมอคือกุญแจสำคัญ",
			En: "Outstanding consistency. Keep it going.",
		}

	case KindMasteryRusty:
		title = shared.LocalizedText{
			Th: "ถึงเวลาทบทวน",
			En: "Time to review",
		}
		body = shared.LocalizedText{
			Th: fmt.Sprintf("ทักษะ %s ของคุณเริ่มเลือนหายแล้ว ทบทวนสักหน่อยไหม", p.CompetencyName.Th),
			En: fmt.Sprintf("Your skill %s is getting rusty. A quick review will bring it back.", p.CompetencyName.En),
		}

	case KindCoursePublished:
		title = shared.LocalizedText{
			Th: "คอร์สใหม่มาแล้ว",
			En: "New course available",
		}
		body = shared.LocalizedText{
			Th: p.CourseTitle.Th,
			En: p.CourseTitle.En,
		}

	case KindRankChanged:
		if p.NewRank < p.OldRank {
			title = shared.LocalizedText{
				Th: fmt.Sprintf("อันดับขึ้นเป็นที่ %d", p.NewRank),
				En: fmt.Sprintf("You climbed to rank %d", p.NewRank),
			}
		} else {
			title = shared.LocalizedText{
				Th: fmt.Sprintf("อันดับลงมาที่ %d", p.NewRank),
				En: fmt.Sprintf("You dropped to rank %d", p.NewRank),
			}
		}
		body = shared.LocalizedText{
			Th: "ดูตารางอันดับเพื่อเทียบกับเพื่อนร่วมคลาส",
			En: "Check the leaderboard to see where you stand.",
		}

	default:
		return title, body, shared.NewDomainError("notification", "Render", shared.ErrValidation,
			fmt.Sprintf("no template for kind %q", kind))
	}

	return title, body, nil
}
