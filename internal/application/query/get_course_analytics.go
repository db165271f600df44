package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/analytics"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE ANALYTICS QUERIES
// Reporting reads for authors and admins: the enrollment funnel of a
// course and the mastery distribution of a competency. Both come from
// aggregates the nightly rollup keeps current.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseFunnelQuery contains the funnel request parameters.
type GetCourseFunnelQuery struct {
	// RequesterRole gates access; authors and admins only.
	RequesterRole string

	// CourseID - which course's funnel to read (required).
	CourseID string
}

// Validate checks the query parameters.
func (q *GetCourseFunnelQuery) Validate() error {
	if q.CourseID == "" {
		return errors.New("course ID is required")
	}
	return nil
}

// GetCourseFunnelResult is the funnel with derived conversion rates.
type GetCourseFunnelResult struct {
	CourseID  string `json:"course_id"`
	Enrolled  int    `json:"enrolled"`
	Started   int    `json:"started"`
	Completed int    `json:"completed"`

	StartRate      float64 `json:"start_rate"`
	CompletionRate float64 `json:"completion_rate"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetCourseFunnelHandler handles funnel queries.
type GetCourseFunnelHandler struct {
	analyticsRepo analytics.Repository
}

// NewGetCourseFunnelHandler creates the handler.
func NewGetCourseFunnelHandler(analyticsRepo analytics.Repository) *GetCourseFunnelHandler {
	return &GetCourseFunnelHandler{analyticsRepo: analyticsRepo}
}

// Handle executes the funnel query.
func (h *GetCourseFunnelHandler) Handle(ctx context.Context, query GetCourseFunnelQuery) (*GetCourseFunnelResult, error) {
	if !authoringRole(query.RequesterRole) {
		return nil, shared.ErrForbidden
	}
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetCourseFunnel", shared.ErrValidation, err.Error(), err)
	}

	funnel, err := h.analyticsRepo.GetFunnel(ctx, query.CourseID)
	if err != nil {
		return nil, shared.WrapError("query", "GetCourseFunnel", shared.ErrNotFound, "failed to load funnel", err)
	}

	return &GetCourseFunnelResult{
		CourseID:       funnel.CourseID,
		Enrolled:       funnel.Enrolled,
		Started:        funnel.Started,
		Completed:      funnel.Completed,
		StartRate:      funnel.StartRate(),
		CompletionRate: funnel.CompletionRate(),
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MASTERY DISTRIBUTION
// ─────────────────────────────────────────────────────────────────────────────

// GetMasteryDistributionQuery contains the distribution request parameters.
type GetMasteryDistributionQuery struct {
	// RequesterRole gates access; authors and admins only.
	RequesterRole string

	// CompetencyID - which competency to aggregate (required).
	CompetencyID string
}

// Validate checks the query parameters.
func (q *GetMasteryDistributionQuery) Validate() error {
	if q.CompetencyID == "" {
		return errors.New("competency ID is required")
	}
	return nil
}

// GetMasteryDistributionResult is the per-state learner breakdown.
type GetMasteryDistributionResult struct {
	CompetencyID string         `json:"competency_id"`
	Counts       map[string]int `json:"counts"`
	Total        int            `json:"total"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetMasteryDistributionHandler handles distribution queries.
type GetMasteryDistributionHandler struct {
	analyticsRepo analytics.Repository
}

// NewGetMasteryDistributionHandler creates the handler.
func NewGetMasteryDistributionHandler(analyticsRepo analytics.Repository) *GetMasteryDistributionHandler {
	return &GetMasteryDistributionHandler{analyticsRepo: analyticsRepo}
}

// Handle executes the distribution query.
func (h *GetMasteryDistributionHandler) Handle(ctx context.Context, query GetMasteryDistributionQuery) (*GetMasteryDistributionResult, error) {
	if !authoringRole(query.RequesterRole) {
		return nil, shared.ErrForbidden
	}
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetMasteryDistribution", shared.ErrValidation, err.Error(), err)
	}

	dist, err := h.analyticsRepo.GetMasteryDistribution(ctx, query.CompetencyID)
	if err != nil {
		return nil, shared.WrapError("query", "GetMasteryDistribution", shared.ErrNotFound, "failed to load distribution", err)
	}

	// Keys flatten to strings so the JSON shape is stable even if the
	// state enum grows.
	counts := make(map[string]int, len(dist.Counts))
	for state, n := range dist.Counts {
		counts[string(state)] = n
	}
	for _, state := range []mastery.State{mastery.StateUntouched, mastery.StateLearning, mastery.StateProficient, mastery.StateMastered, mastery.StateRusty} {
		if _, ok := counts[string(state)]; !ok {
			counts[string(state)] = 0
		}
	}

	return &GetMasteryDistributionResult{
		CompetencyID: dist.CompetencyID,
		Counts:       counts,
		Total:        dist.Total(),
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// authoringRole reports whether the role may read course analytics.
func authoringRole(role string) bool {
	return role == "admin" || role == "author"
}
