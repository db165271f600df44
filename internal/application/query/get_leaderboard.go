// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/leaderboard"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Serves the global or per-course ranking from the latest snapshot,
// with a Redis hot path for the first pages.
// ══════════════════════════════════════════════════════════════════════════════

// leaderboardCacheTTL bounds how stale the cached top can get between
// rebuild runs.
const leaderboardCacheTTL = 5 * time.Minute

// GetLeaderboardQuery contains the leaderboard request parameters.
type GetLeaderboardQuery struct {
	// CourseID scopes the ranking to one course; empty means global.
	CourseID string

	// Limit - entries per page (default 20, max 100).
	Limit int

	// Offset - pagination offset.
	Offset int

	// AroundLearnerID, when set, returns the learner's neighborhood
	// instead of a page from the top.
	AroundLearnerID string
}

// Validate checks the query parameters and applies defaults.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// LeaderboardEntryDTO is one row of the response.
type LeaderboardEntryDTO struct {
	Rank        int    `json:"rank"`
	LearnerID   string `json:"learner_id"`
	DisplayName string `json:"display_name"`
	XP          int    `json:"xp"`
	Level       int    `json:"level"`

	// RankChange - position delta since the previous snapshot
	// (+ climbed, - dropped, 0 stable).
	RankChange int `json:"rank_change"`

	// RankDirection - "up", "down", "stable" or "new".
	RankDirection string `json:"rank_direction"`
}

// GetLeaderboardResult contains the ranked page.
type GetLeaderboardResult struct {
	Entries []LeaderboardEntryDTO `json:"entries"`

	// Scope - "global" or "course:<id>".
	Scope string `json:"scope"`

	TotalLearners int `json:"total_learners"`
	AverageXP     int `json:"average_xp"`

	// SnapshotAt - when the underlying snapshot was taken.
	SnapshotAt time.Time `json:"snapshot_at"`

	GeneratedAt time.Time `json:"generated_at"`
	HasMore     bool      `json:"has_more"`
	Page        int       `json:"page"`
	PageSize    int       `json:"page_size"`
}

// GetLeaderboardHandler handles leaderboard queries.
type GetLeaderboardHandler struct {
	leaderboardRepo  leaderboard.Repository
	leaderboardCache leaderboard.Cache
}

// NewGetLeaderboardHandler creates the handler. Cache may be nil.
func NewGetLeaderboardHandler(
	leaderboardRepo leaderboard.Repository,
	leaderboardCache leaderboard.Cache,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		leaderboardRepo:  leaderboardRepo,
		leaderboardCache: leaderboardCache,
	}
}

// Handle executes the leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	scope := leaderboard.ScopeGlobal
	if query.CourseID != "" {
		scope = leaderboard.ScopeCourse(query.CourseID)
	}

	// The first-page hot path never touches Postgres.
	if query.AroundLearnerID == "" && query.Offset == 0 {
		if cached := h.tryGetFromCache(ctx, scope, query.Limit); cached != nil {
			return h.buildResult(cached, query, scope, nil), nil
		}
	}

	snapshot, err := h.leaderboardRepo.GetLatestSnapshot(ctx, scope)
	if err != nil {
		if errors.Is(err, leaderboard.ErrSnapshotNotFound) {
			// An empty board, not an error: nothing was ranked yet.
			return h.buildResult(nil, query, scope, nil), nil
		}
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrNotFound, "failed to load snapshot", err)
	}

	var entries []*leaderboard.Entry
	if query.AroundLearnerID != "" {
		entries = h.neighborhood(snapshot, query.AroundLearnerID, query.Limit)
	} else {
		entries = snapshot.Page(query.Offset/query.Limit+1, query.Limit)
		if query.Offset == 0 {
			h.fillCache(ctx, scope, entries)
		}
	}

	return h.buildResult(entries, query, scope, snapshot), nil
}

func (h *GetLeaderboardHandler) tryGetFromCache(ctx context.Context, scope leaderboard.Scope, limit int) []*leaderboard.Entry {
	if h.leaderboardCache == nil {
		return nil
	}
	entries, err := h.leaderboardCache.GetTop(ctx, scope, limit)
	if err != nil || len(entries) == 0 {
		return nil
	}
	return entries
}

func (h *GetLeaderboardHandler) fillCache(ctx context.Context, scope leaderboard.Scope, entries []*leaderboard.Entry) {
	if h.leaderboardCache == nil || len(entries) == 0 {
		return
	}
	_ = h.leaderboardCache.SetTop(ctx, scope, entries, leaderboardCacheTTL)
}

// neighborhood slices the snapshot around one learner so a mid-table
// learner sees their own fight, not the podium.
func (h *GetLeaderboardHandler) neighborhood(snapshot *leaderboard.Snapshot, learnerID string, limit int) []*leaderboard.Entry {
	return snapshot.Neighbors(learnerID, limit/2)
}

func (h *GetLeaderboardHandler) buildResult(
	entries []*leaderboard.Entry,
	query GetLeaderboardQuery,
	scope leaderboard.Scope,
	snapshot *leaderboard.Snapshot,
) *GetLeaderboardResult {
	dtos := make([]LeaderboardEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}

	result := &GetLeaderboardResult{
		Entries:     dtos,
		Scope:       scope.Key(),
		GeneratedAt: time.Now().UTC(),
		Page:        query.Offset/query.Limit + 1,
		PageSize:    query.Limit,
	}
	if snapshot != nil {
		result.TotalLearners = snapshot.TotalLearners
		result.AverageXP = snapshot.AverageXP()
		result.SnapshotAt = snapshot.SnapshotAt
		result.HasMore = query.Offset+len(entries) < snapshot.TotalLearners
	}
	return result
}

func toEntryDTO(e *leaderboard.Entry) LeaderboardEntryDTO {
	direction := e.RankChange.Direction()
	if e.IsNew {
		direction = leaderboard.RankDirectionNew
	}
	return LeaderboardEntryDTO{
		Rank:          int(e.Rank),
		LearnerID:     e.LearnerID,
		DisplayName:   e.DisplayName,
		XP:            int(e.XP),
		Level:         e.Level,
		RankChange:    int(e.RankChange),
		RankDirection: string(direction),
	}
}
