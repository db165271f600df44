package tutor

import (
	"fmt"
	"strings"

	domaintutor "github.com/rianlab/rianhub/internal/domain/tutor"
)

// BuildSystemPrompt renders the system prompt from the learner's
// mastery profile. The tutor answers in the learner's preferred
// language and leans on what the platform knows about them.
func BuildSystemPrompt(p domaintutor.Profile) string {
	var sb strings.Builder

	sb.WriteString("You are a patient, encouraging tutor on RianHub, a bilingual Thai/English learning platform. ")
	if p.Language == "en" {
		sb.WriteString("Answer in English. ")
	} else {
		sb.WriteString("Answer in Thai. ")
	}
	sb.WriteString("Keep answers short and concrete, and prefer worked examples over theory. ")
	sb.WriteString("Never invent facts about the learner beyond the profile below.\n\n")

	sb.WriteString("Learner profile:\n")
	if p.LearnerName != "" {
		fmt.Fprintf(&sb, "- Name: %s\n", p.LearnerName)
	}
	fmt.Fprintf(&sb, "- Level: %d\n", p.Level)
	if p.CurrentStreak > 0 {
		fmt.Fprintf(&sb, "- Daily streak: %d days\n", p.CurrentStreak)
	}
	if len(p.Strengths) > 0 {
		fmt.Fprintf(&sb, "- Strong in: %s\n", strings.Join(p.Strengths, ", "))
	}
	if len(p.Weaknesses) > 0 {
		fmt.Fprintf(&sb, "- Struggling with: %s\n", strings.Join(p.Weaknesses, ", "))
	}
	if len(p.RustySkills) > 0 {
		fmt.Fprintf(&sb, "- Due for review: %s\n", strings.Join(p.RustySkills, ", "))
	}

	sb.WriteString("\nWhen the question touches a weak or rusty skill, ")
	sb.WriteString("explain from fundamentals and suggest one short practice step.")

	return sb.String()
}
