package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE CATALOG QUERIES
// The catalog list and the course detail, both rendered in the
// caller's language with English/Thai fallback.
// ══════════════════════════════════════════════════════════════════════════════

// ListCoursesQuery contains the catalog request parameters.
type ListCoursesQuery struct {
	// Language - render language ("th" or "en"); defaults to Thai.
	Language string

	// Level filters by CEFR band; empty means all.
	Level string

	// IncludeUnpublished widens the listing for authors and admins.
	// The interface layer must gate it on role.
	IncludeUnpublished bool

	// Limit - courses per page (default 20, max 100).
	Limit int

	// Offset - pagination offset.
	Offset int
}

// Validate checks the query parameters and applies defaults.
func (q *ListCoursesQuery) Validate() error {
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
	if q.Level != "" && !course.CEFRLevel(q.Level).IsValid() {
		return errors.New("unknown CEFR level")
	}
	return nil
}

// CourseCardDTO is one catalog row.
type CourseCardDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Level       string `json:"level"`
	Status      string `json:"status"`
	LessonCount int    `json:"lesson_count"`
}

// ListCoursesResult is the catalog page.
type ListCoursesResult struct {
	Courses     []CourseCardDTO `json:"courses"`
	GeneratedAt time.Time       `json:"generated_at"`
	HasMore     bool            `json:"has_more"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
}

// ListCoursesHandler handles catalog queries.
type ListCoursesHandler struct {
	courseRepo course.Repository
}

// NewListCoursesHandler creates the handler.
func NewListCoursesHandler(courseRepo course.Repository) *ListCoursesHandler {
	return &ListCoursesHandler{courseRepo: courseRepo}
}

// Handle executes the catalog query.
func (h *ListCoursesHandler) Handle(ctx context.Context, query ListCoursesQuery) (*ListCoursesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListCourses", shared.ErrValidation, err.Error(), err)
	}

	lang := renderLanguage(query.Language)

	filter := course.ListFilter{
		Level: course.CEFRLevel(query.Level),
		// One extra row tells us whether another page exists.
		Limit:  query.Limit + 1,
		Offset: query.Offset,
	}
	if !query.IncludeUnpublished {
		filter.Status = course.StatusPublished
	}

	courses, err := h.courseRepo.List(ctx, filter)
	if err != nil {
		return nil, shared.WrapError("query", "ListCourses", shared.ErrNotFound, "failed to list courses", err)
	}

	hasMore := len(courses) > query.Limit
	if hasMore {
		courses = courses[:query.Limit]
	}

	cards := make([]CourseCardDTO, 0, len(courses))
	for _, c := range courses {
		localized := c.Localize(lang, false)
		cards = append(cards, CourseCardDTO{
			ID:          localized.ID,
			Title:       localized.Title,
			Description: localized.Description,
			Level:       string(localized.Level),
			Status:      string(localized.Status),
			LessonCount: len(c.ActiveLessons()),
		})
	}

	return &ListCoursesResult{
		Courses:     cards,
		GeneratedAt: time.Now().UTC(),
		HasMore:     hasMore,
		Page:        query.Offset/query.Limit + 1,
		PageSize:    query.Limit,
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// COURSE DETAIL
// ──────────────────────────────────────────────────────────────────────────────

// GetCourseQuery contains the detail request parameters.
type GetCourseQuery struct {
	// CourseID - which course to read (required).
	CourseID string

	// Language - render language; defaults to Thai.
	Language string

	// LearnerID, when set, overlays the learner's enrollment and
	// per-lesson progress.
	LearnerID string

	// IncludeUnpublished lets authors preview drafts.
	IncludeUnpublished bool
}

// Validate checks the query parameters.
func (q *GetCourseQuery) Validate() error {
	if q.CourseID == "" {
		return errors.New("course ID is required")
	}
	return nil
}

// LessonDTO is one lesson row of the detail view.
type LessonDTO struct {
	ID               string   `json:"id"`
	Position         int      `json:"position"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	CompetencyIDs    []string `json:"competency_ids"`
	EstimatedMinutes int      `json:"estimated_minutes"`

	// ProgressState - "", "started" or "completed".
	ProgressState    string `json:"progress_state,omitempty"`
	TimeSpentSeconds int    `json:"time_spent_seconds,omitempty"`
}

// GetCourseResult is the course detail.
type GetCourseResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Level       string `json:"level"`
	Status      string `json:"status"`

	Lessons []LessonDTO `json:"lessons"`

	Enrolled         bool `json:"enrolled"`
	LessonsCompleted int  `json:"lessons_completed"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetCourseHandler handles course detail queries.
type GetCourseHandler struct {
	courseRepo   course.Repository
	progressRepo course.ProgressRepository
}

// NewGetCourseHandler creates the handler.
func NewGetCourseHandler(courseRepo course.Repository, progressRepo course.ProgressRepository) *GetCourseHandler {
	return &GetCourseHandler{
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
	}
}

// Handle executes the detail query.
func (h *GetCourseHandler) Handle(ctx context.Context, query GetCourseQuery) (*GetCourseResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetCourse", shared.ErrValidation, err.Error(), err)
	}

	c, err := h.courseRepo.GetByID(ctx, query.CourseID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, shared.WrapError("query", "GetCourse", shared.ErrNotFound, "failed to load course", err)
	}
	if !c.Status.VisibleToLearners() && !query.IncludeUnpublished {
		// Drafts stay invisible; report them as missing.
		return nil, shared.ErrCourseNotFound
	}

	lang := renderLanguage(query.Language)
	localized := c.Localize(lang, true)

	result := &GetCourseResult{
		ID:          localized.ID,
		Title:       localized.Title,
		Description: localized.Description,
		Level:       string(localized.Level),
		Status:      string(localized.Status),
		GeneratedAt: time.Now().UTC(),
	}

	progress := map[string]course.LessonProgress{}
	if query.LearnerID != "" {
		result.Enrolled, _ = h.progressRepo.IsEnrolled(ctx, query.LearnerID, c.ID)
		rows, err := h.progressRepo.ListByCourse(ctx, query.LearnerID, c.ID)
		if err == nil {
			for _, p := range rows {
				progress[p.LessonID] = p
			}
		}
	}

	for _, l := range localized.Lessons {
		dto := LessonDTO{
			ID:               l.ID,
			Position:         l.Position,
			Title:            l.Title,
			Body:             l.Body,
			CompetencyIDs:    l.CompetencyIDs,
			EstimatedMinutes: l.EstimatedMinutes,
		}
		if p, ok := progress[l.ID]; ok {
			dto.ProgressState = string(p.State)
			dto.TimeSpentSeconds = int(p.TimeSpent.Seconds())
			if p.State == course.ProgressCompleted {
				result.LessonsCompleted++
			}
		}
		result.Lessons = append(result.Lessons, dto)
	}

	return result, nil
}

// renderLanguage parses the requested language, falling back to Thai.
func renderLanguage(raw string) shared.LanguageCode {
	if lang, err := shared.NewLanguageCode(raw); err == nil {
		return lang
	}
	return shared.LangThai
}
