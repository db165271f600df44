package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/gamification"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/leaderboard"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEARNER PROFILE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// learnerCacheTTL is how long a profile read keeps the learner hot.
const learnerCacheTTL = 10 * time.Minute

// GetLearnerProfileQuery contains the profile request parameters.
type GetLearnerProfileQuery struct {
	// LearnerID - whose profile to read (required).
	LearnerID string
}

// Validate checks the query parameters.
func (q *GetLearnerProfileQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	return nil
}

// AchievementDTO is one earned achievement with its catalog entry.
type AchievementDTO struct {
	ID          string               `json:"id"`
	Name        shared.LocalizedText `json:"name"`
	Description shared.LocalizedText `json:"description"`
	BonusXP     int                  `json:"bonus_xp"`
	EarnedAt    time.Time            `json:"earned_at"`
}

// GetLearnerProfileResult is the assembled profile.
type GetLearnerProfileResult struct {
	LearnerID   string `json:"learner_id"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Role        string `json:"role"`

	XP              int    `json:"xp"`
	Level           int    `json:"level"`
	LevelTitle      string `json:"level_title"`
	XPToNextLevel   int    `json:"xp_to_next_level"`
	CurrentStreak   int    `json:"current_streak"`
	BestStreak      int    `json:"best_streak"`
	GlobalRank      int    `json:"global_rank"`
	GlobalRankDelta int    `json:"global_rank_delta"`

	Achievements []AchievementDTO `json:"achievements"`

	MemberSince    time.Time `json:"member_since"`
	LastActivityAt time.Time `json:"last_activity_at"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetLearnerProfileHandler handles profile queries.
type GetLearnerProfileHandler struct {
	learnerRepo     learner.Repository
	learnerCache    learner.Cache
	awardRepo       gamification.AwardRepository
	leaderboardRepo leaderboard.Repository
}

// NewGetLearnerProfileHandler creates the handler. learnerCache and
// leaderboardRepo may be nil.
func NewGetLearnerProfileHandler(
	learnerRepo learner.Repository,
	learnerCache learner.Cache,
	awardRepo gamification.AwardRepository,
	leaderboardRepo leaderboard.Repository,
) *GetLearnerProfileHandler {
	return &GetLearnerProfileHandler{
		learnerRepo:     learnerRepo,
		learnerCache:    learnerCache,
		awardRepo:       awardRepo,
		leaderboardRepo: leaderboardRepo,
	}
}

// Handle executes the profile query.
func (h *GetLearnerProfileHandler) Handle(ctx context.Context, query GetLearnerProfileQuery) (*GetLearnerProfileResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLearnerProfile", shared.ErrValidation, err.Error(), err)
	}

	l, err := h.loadLearner(ctx, query.LearnerID)
	if err != nil {
		return nil, err
	}

	awards, err := h.awardRepo.ListByLearner(ctx, l.ID)
	if err != nil {
		return nil, shared.WrapError("query", "GetLearnerProfile", shared.ErrNotFound, "failed to list awards", err)
	}

	achievements := make([]AchievementDTO, 0, len(awards))
	for _, a := range awards {
		cat, ok := gamification.CatalogByID(a.AchievementID)
		if !ok {
			// An award for a retired catalog entry still counts; show
			// it with what we know.
			achievements = append(achievements, AchievementDTO{ID: a.AchievementID, EarnedAt: a.EarnedAt})
			continue
		}
		achievements = append(achievements, AchievementDTO{
			ID:          cat.ID,
			Name:        cat.Name,
			Description: cat.Description,
			BonusXP:     cat.BonusXP,
			EarnedAt:    a.EarnedAt,
		})
	}

	result := &GetLearnerProfileResult{
		LearnerID:      l.ID,
		DisplayName:    l.DisplayName,
		Language:       l.Preferences.Language.String(),
		Role:           string(l.Role),
		XP:             l.CurrentXP.Int(),
		Level:          l.Level().Int(),
		LevelTitle:     l.Level().Title(),
		XPToNextLevel:  l.CurrentXP.ProgressToNextLevel(),
		CurrentStreak:  l.CurrentStreak,
		BestStreak:     l.BestStreak,
		Achievements:   achievements,
		MemberSince:    l.CreatedAt,
		LastActivityAt: l.LastActivityAt,
		GeneratedAt:    time.Now().UTC(),
	}

	h.fillRank(ctx, result)
	return result, nil
}

// loadLearner goes through the cache when one is wired.
func (h *GetLearnerProfileHandler) loadLearner(ctx context.Context, id string) (*learner.Learner, error) {
	if h.learnerCache != nil {
		if cached, err := h.learnerCache.Get(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	l, err := h.learnerRepo.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, shared.WrapError("query", "GetLearnerProfile", shared.ErrNotFound, "failed to load learner", err)
	}

	if h.learnerCache != nil {
		_ = h.learnerCache.Set(ctx, l, learnerCacheTTL)
	}
	return l, nil
}

// fillRank is best effort; an unranked or snapshot-less learner shows 0.
func (h *GetLearnerProfileHandler) fillRank(ctx context.Context, result *GetLearnerProfileResult) {
	if h.leaderboardRepo == nil {
		return
	}
	entry, err := h.leaderboardRepo.GetLearnerRank(ctx, result.LearnerID, leaderboard.ScopeGlobal)
	if err != nil || entry == nil {
		return
	}
	result.GlobalRank = int(entry.Rank)
	result.GlobalRankDelta = int(entry.RankChange)
}
