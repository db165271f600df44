package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEARNING PATH QUERY
// The adaptive "study next" recommendation: review slots for rusty
// skills, frontier slots for competencies whose prerequisites cleared.
// ══════════════════════════════════════════════════════════════════════════════

// GetLearningPathQuery contains the recommendation request parameters.
type GetLearningPathQuery struct {
	// LearnerID - for whom to recommend (required).
	LearnerID string

	// CourseID, when set, restricts recommendations to the
	// competencies taught by that course.
	CourseID string

	// Language - render language for competency names; defaults to Thai.
	Language string

	// MaxSlots caps the recommendation length (default 5, max 10).
	MaxSlots int
}

// Validate checks the query parameters and applies defaults.
func (q *GetLearningPathQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if q.MaxSlots < 0 {
		return errors.New("max slots cannot be negative")
	}
	if q.MaxSlots == 0 {
		q.MaxSlots = mastery.DefaultPathLength
	}
	if q.MaxSlots > 10 {
		q.MaxSlots = 10
	}
	return nil
}

// PathSlotDTO is one recommended competency.
type PathSlotDTO struct {
	CompetencyID string `json:"competency_id"`
	Name         string `json:"name"`

	// Kind - "frontier" (new material) or "review" (rusty skill).
	Kind string `json:"kind"`

	Mastery   float64 `json:"mastery"`
	Readiness float64 `json:"readiness"`
}

// GetLearningPathResult is the ordered recommendation.
type GetLearningPathResult struct {
	LearnerID   string        `json:"learner_id"`
	CourseID    string        `json:"course_id,omitempty"`
	Slots       []PathSlotDTO `json:"slots"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// GetLearningPathHandler handles recommendation queries.
type GetLearningPathHandler struct {
	masteryRepo    mastery.Repository
	competencyRepo mastery.CompetencyRepository
	courseRepo     course.Repository
}

// NewGetLearningPathHandler creates the handler. courseRepo is only
// needed for course-scoped paths and may be nil otherwise.
func NewGetLearningPathHandler(
	masteryRepo mastery.Repository,
	competencyRepo mastery.CompetencyRepository,
	courseRepo course.Repository,
) *GetLearningPathHandler {
	return &GetLearningPathHandler{
		masteryRepo:    masteryRepo,
		competencyRepo: competencyRepo,
		courseRepo:     courseRepo,
	}
}

// Handle executes the recommendation query.
func (h *GetLearningPathHandler) Handle(ctx context.Context, query GetLearningPathQuery) (*GetLearningPathResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLearningPath", shared.ErrValidation, err.Error(), err)
	}

	lang := renderLanguage(query.Language)
	now := time.Now().UTC()

	competencies, err := h.competencyRepo.ListAll(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetLearningPath", shared.ErrNotFound, "failed to load competencies", err)
	}
	graph := mastery.NewGraph(competencies)

	records, err := h.masteryRepo.GetProfile(ctx, query.LearnerID)
	if err != nil {
		return nil, shared.WrapError("query", "GetLearningPath", shared.ErrNotFound, "failed to load mastery profile", err)
	}
	// Lazy decay: a competency that went rusty since its last practice
	// surfaces as a review slot now, not after the nightly job.
	mastery.DecayProfile(graph, records, now)

	opts := mastery.PathOptions{MaxSlots: query.MaxSlots}
	if query.CourseID != "" {
		restrict, err := h.courseCompetencies(ctx, query.CourseID)
		if err != nil {
			return nil, err
		}
		opts.Restrict = restrict
	}

	path := mastery.Recommend(graph, records, now, opts)

	names := make(map[string]string, len(competencies))
	for _, comp := range competencies {
		names[comp.ID] = comp.Name.In(lang)
	}

	slots := make([]PathSlotDTO, 0, len(path.Slots))
	for _, s := range path.Slots {
		slots = append(slots, PathSlotDTO{
			CompetencyID: s.CompetencyID,
			Name:         names[s.CompetencyID],
			Kind:         string(s.Kind),
			Mastery:      s.Mastery,
			Readiness:    s.Readiness,
		})
	}

	return &GetLearningPathResult{
		LearnerID:   query.LearnerID,
		CourseID:    query.CourseID,
		Slots:       slots,
		GeneratedAt: now,
	}, nil
}

func (h *GetLearningPathHandler) courseCompetencies(ctx context.Context, courseID string) (map[string]bool, error) {
	if h.courseRepo == nil {
		return nil, shared.WrapError("query", "GetLearningPath", shared.ErrInvalidInput, "course scoping is not available", nil)
	}
	c, err := h.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, shared.WrapError("query", "GetLearningPath", shared.ErrNotFound, "failed to load course", err)
	}
	restrict := make(map[string]bool)
	for _, id := range c.CompetencyIDs() {
		restrict[id] = true
	}
	return restrict, nil
}
