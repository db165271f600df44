package quiz

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADING PIPELINE
// Grading is pure and deterministic: the same quiz and answers always
// produce the same result. Side effects (mastery, XP, notifications)
// happen in event handlers downstream of QuizGraded.
// ══════════════════════════════════════════════════════════════════════════════

// Grade grades the answers against the quiz and returns a graded attempt.
// Answers are matched to questions by ID; unanswered questions score zero.
func Grade(q *Quiz, a *Attempt, submittedAt time.Time) error {
	if a.Status == AttemptGraded {
		return shared.ErrAttemptFinished
	}

	byQuestion := make(map[string]Answer, len(a.Answers))
	for _, ans := range a.Answers {
		if _, dup := byQuestion[ans.QuestionID]; dup {
			return shared.NewDomainError("quiz", "Grade", shared.ErrInvalidInput, "duplicate answer for question "+ans.QuestionID)
		}
		byQuestion[ans.QuestionID] = ans
	}
	for id := range byQuestion {
		if _, err := q.QuestionByID(id); err != nil {
			return shared.NewDomainError("quiz", "Grade", shared.ErrInvalidInput, "answer for unknown question "+id)
		}
	}

	a.Results = a.Results[:0]
	a.Score = 0
	a.MaxScore = q.TotalPoints()

	for _, question := range q.Questions {
		ratio := gradeQuestion(question, byQuestion[question.ID])
		points := int(math.Round(ratio * float64(question.Points)))
		a.Score += points

		a.Results = append(a.Results, shared.QuestionResult{
			QuestionID:   question.ID,
			CompetencyID: question.CompetencyID,
			Score:        ratio,
			Difficulty:   question.Difficulty,
			Correct:      ratio >= 1,
		})
	}

	if a.MaxScore > 0 {
		a.ScoreRatio = float64(a.Score) / float64(a.MaxScore)
	}
	a.Passed = a.ScoreRatio >= q.PassThreshold
	a.Status = AttemptGraded
	a.SubmittedAt = submittedAt
	return nil
}

// gradeQuestion returns the score ratio in [0,1] for a single answer.
func gradeQuestion(q *Question, a Answer) float64 {
	switch q.Type {
	case TypeSingleChoice:
		return gradeSingleChoice(q, a)
	case TypeMultiChoice:
		return gradeMultiChoice(q, a)
	case TypeTrueFalse:
		return gradeTrueFalse(q, a)
	case TypeNumeric:
		return gradeNumeric(q, a)
	case TypeShortText:
		return gradeShortText(q, a)
	default:
		return 0
	}
}

func gradeSingleChoice(q *Question, a Answer) float64 {
	if len(a.SelectedOptions) != 1 {
		return 0
	}
	for _, o := range q.Options {
		if o.ID == a.SelectedOptions[0] {
			if o.Correct {
				return 1
			}
			return 0
		}
	}
	return 0
}

// gradeMultiChoice gives partial credit: (correct selected - incorrect
// selected) / total correct, floored at zero.
func gradeMultiChoice(q *Question, a Answer) float64 {
	totalCorrect := q.correctOptionCount()
	if totalCorrect == 0 || len(a.SelectedOptions) == 0 {
		return 0
	}

	correctByID := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		correctByID[o.ID] = o.Correct
	}

	hits, misses := 0, 0
	seen := make(map[string]struct{}, len(a.SelectedOptions))
	for _, id := range a.SelectedOptions {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		correct, exists := correctByID[id]
		switch {
		case !exists:
			misses++
		case correct:
			hits++
		default:
			misses++
		}
	}

	ratio := float64(hits-misses) / float64(totalCorrect)
	if ratio < 0 {
		return 0
	}
	return ratio
}

func gradeTrueFalse(q *Question, a Answer) float64 {
	if a.BoolAnswer == nil {
		return 0
	}
	if *a.BoolAnswer == q.TrueAnswer {
		return 1
	}
	return 0
}

func gradeNumeric(q *Question, a Answer) float64 {
	if a.NumericAnswer == nil {
		return 0
	}
	if math.Abs(*a.NumericAnswer-q.NumericAnswer) <= q.NumericTolerance {
		return 1
	}
	return 0
}

func gradeShortText(q *Question, a Answer) float64 {
	got := NormalizeAnswer(a.TextAnswer)
	if got == "" {
		return 0
	}
	for _, accepted := range q.TextAnswers {
		if NormalizeAnswer(accepted) == got {
			return 1
		}
	}
	return 0
}

// NormalizeAnswer prepares free-text answers for comparison: lowercases,
// collapses internal whitespace, and strips characters that carry no
// meaning in either language (punctuation, zero-width characters common
// in Thai IME output).
func NormalizeAnswer(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true // trims leading whitespace
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\u200b' || r == '\ufeff':
			// Zero-width space / BOM sneak in from mobile keyboards.
			continue
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r):
			continue
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
