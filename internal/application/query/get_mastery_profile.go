package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MASTERY PROFILE QUERY
// The full competency map for one learner: decayed estimates, states,
// and what is still locked behind prerequisites.
// ══════════════════════════════════════════════════════════════════════════════

// GetMasteryProfileQuery contains the profile request parameters.
type GetMasteryProfileQuery struct {
	// LearnerID - whose mastery to read (required).
	LearnerID string

	// Language - render language for competency names; defaults to Thai.
	Language string
}

// Validate checks the query parameters.
func (q *GetMasteryProfileQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	return nil
}

// CompetencyMasteryDTO is one competency row.
type CompetencyMasteryDTO struct {
	CompetencyID string `json:"competency_id"`
	Name         string `json:"name"`

	// Value is the decayed current estimate in [0,1].
	Value float64 `json:"value"`

	// Peak is the highest estimate ever reached.
	Peak float64 `json:"peak"`

	State    string `json:"state"`
	Attempts int    `json:"attempts"`

	// Unlocked reports whether every prerequisite clears the unlock
	// threshold.
	Unlocked bool `json:"unlocked"`

	PrerequisiteIDs []string   `json:"prerequisite_ids,omitempty"`
	LastPracticedAt *time.Time `json:"last_practiced_at,omitempty"`
}

// GetMasteryProfileResult is the assembled competency map.
type GetMasteryProfileResult struct {
	LearnerID    string                 `json:"learner_id"`
	Competencies []CompetencyMasteryDTO `json:"competencies"`

	// Summary counts per state, including untouched competencies the
	// learner never practiced.
	Summary map[string]int `json:"summary"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetMasteryProfileHandler handles mastery profile queries.
type GetMasteryProfileHandler struct {
	masteryRepo    mastery.Repository
	competencyRepo mastery.CompetencyRepository
}

// NewGetMasteryProfileHandler creates the handler.
func NewGetMasteryProfileHandler(
	masteryRepo mastery.Repository,
	competencyRepo mastery.CompetencyRepository,
) *GetMasteryProfileHandler {
	return &GetMasteryProfileHandler{
		masteryRepo:    masteryRepo,
		competencyRepo: competencyRepo,
	}
}

// Handle executes the mastery profile query.
func (h *GetMasteryProfileHandler) Handle(ctx context.Context, query GetMasteryProfileQuery) (*GetMasteryProfileResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetMasteryProfile", shared.ErrValidation, err.Error(), err)
	}

	lang := renderLanguage(query.Language)
	now := time.Now().UTC()

	competencies, err := h.competencyRepo.ListAll(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetMasteryProfile", shared.ErrNotFound, "failed to load competencies", err)
	}
	graph := mastery.NewGraph(competencies)

	records, err := h.masteryRepo.GetProfile(ctx, query.LearnerID)
	if err != nil {
		return nil, shared.WrapError("query", "GetMasteryProfile", shared.ErrNotFound, "failed to load mastery profile", err)
	}
	// Lazy decay: states reflect today's values, not the last write.
	mastery.DecayProfile(graph, records, now)

	decayed := func(id string) float64 {
		rec, ok := records[id]
		if !ok {
			return 0
		}
		halfLife := mastery.DefaultDecayHalfLife
		if comp, err := graph.Get(id); err == nil {
			halfLife = comp.HalfLife()
		}
		return rec.DecayedValue(now, halfLife)
	}

	result := &GetMasteryProfileResult{
		LearnerID:   query.LearnerID,
		Summary:     make(map[string]int),
		GeneratedAt: now,
	}

	for _, comp := range competencies {
		dto := CompetencyMasteryDTO{
			CompetencyID:    comp.ID,
			Name:            comp.Name.In(lang),
			Value:           decayed(comp.ID),
			State:           string(mastery.StateUntouched),
			PrerequisiteIDs: comp.PrerequisiteIDs,
			Unlocked:        true,
		}

		if rec, ok := records[comp.ID]; ok {
			dto.Peak = rec.Peak
			dto.State = string(rec.State)
			dto.Attempts = rec.Attempts
			if !rec.LastPracticedAt.IsZero() {
				t := rec.LastPracticedAt
				dto.LastPracticedAt = &t
			}
		}

		for _, pre := range comp.PrerequisiteIDs {
			if decayed(pre) < mastery.UnlockThreshold {
				dto.Unlocked = false
				break
			}
		}

		result.Summary[dto.State]++
		result.Competencies = append(result.Competencies, dto)
	}

	// Strongest first, then alphabetical for a stable order.
	sort.Slice(result.Competencies, func(i, j int) bool {
		if result.Competencies[i].Value != result.Competencies[j].Value {
			return result.Competencies[i].Value > result.Competencies[j].Value
		}
		return result.Competencies[i].CompetencyID < result.Competencies[j].CompetencyID
	})

	return result, nil
}
