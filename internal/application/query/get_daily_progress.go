package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/analytics"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY PROGRESS QUERY
// A learner's activity series from the nightly rollups. Today is
// usually missing because the rollup runs after midnight; the client
// shows it from live data instead.
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyProgressQuery contains the series request parameters.
type GetDailyProgressQuery struct {
	// LearnerID - whose series to read (required).
	LearnerID string

	// Days - how many days back from today (default 7, max 90).
	Days int

	// Timezone - IANA zone the day boundaries use; defaults to the
	// platform zone Asia/Bangkok.
	Timezone string
}

// Validate checks the query parameters and applies defaults.
func (q *GetDailyProgressQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if q.Days < 0 {
		return errors.New("days cannot be negative")
	}
	if q.Days == 0 {
		q.Days = 7
	}
	if q.Days > 90 {
		q.Days = 90
	}
	return nil
}

// DailyProgressDTO is one day of the series.
type DailyProgressDTO struct {
	Day              string `json:"day"`
	LessonsCompleted int    `json:"lessons_completed"`
	QuizzesTaken     int    `json:"quizzes_taken"`
	QuizzesPassed    int    `json:"quizzes_passed"`
	XPGained         int    `json:"xp_gained"`
	ActiveMinutes    int    `json:"active_minutes"`
	Active           bool   `json:"active"`
}

// GetDailyProgressResult is the assembled series with totals.
type GetDailyProgressResult struct {
	LearnerID string             `json:"learner_id"`
	Days      []DailyProgressDTO `json:"days"`

	TotalLessons    int `json:"total_lessons"`
	TotalQuizzes    int `json:"total_quizzes"`
	TotalXP         int `json:"total_xp"`
	ActiveDays      int `json:"active_days"`
	TotalActiveTime int `json:"total_active_minutes"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetDailyProgressHandler handles activity series queries.
type GetDailyProgressHandler struct {
	analyticsRepo analytics.Repository
}

// NewGetDailyProgressHandler creates the handler.
func NewGetDailyProgressHandler(analyticsRepo analytics.Repository) *GetDailyProgressHandler {
	return &GetDailyProgressHandler{analyticsRepo: analyticsRepo}
}

// Handle executes the series query.
func (h *GetDailyProgressHandler) Handle(ctx context.Context, query GetDailyProgressQuery) (*GetDailyProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetDailyProgress", shared.ErrValidation, err.Error(), err)
	}

	loc, err := time.LoadLocation(query.Timezone)
	if err != nil || query.Timezone == "" {
		loc, _ = time.LoadLocation("Asia/Bangkok")
	}

	now := time.Now().In(loc)
	toDay := now.Format("2006-01-02")
	fromDay := now.AddDate(0, 0, -(query.Days - 1)).Format("2006-01-02")

	rollups, err := h.analyticsRepo.GetSeries(ctx, query.LearnerID, fromDay, toDay)
	if err != nil {
		return nil, shared.WrapError("query", "GetDailyProgress", shared.ErrNotFound, "failed to load series", err)
	}

	byDay := make(map[string]*analytics.DailyRollup, len(rollups))
	for _, r := range rollups {
		byDay[r.Day] = r
	}

	result := &GetDailyProgressResult{
		LearnerID:   query.LearnerID,
		Days:        make([]DailyProgressDTO, 0, query.Days),
		GeneratedAt: time.Now().UTC(),
	}

	// Every day appears in the series; missing rollups become zero
	// rows so charts keep their x-axis.
	for i := query.Days - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format("2006-01-02")
		dto := DailyProgressDTO{Day: day}
		if r, ok := byDay[day]; ok {
			dto.LessonsCompleted = r.LessonsCompleted
			dto.QuizzesTaken = r.QuizzesTaken
			dto.QuizzesPassed = r.QuizzesPassed
			dto.XPGained = r.XPGained
			dto.ActiveMinutes = r.ActiveMinutes
			dto.Active = r.IsActive()

			result.TotalLessons += r.LessonsCompleted
			result.TotalQuizzes += r.QuizzesTaken
			result.TotalXP += r.XPGained
			result.TotalActiveTime += r.ActiveMinutes
			if dto.Active {
				result.ActiveDays++
			}
		}
		result.Days = append(result.Days, dto)
	}

	return result, nil
}
