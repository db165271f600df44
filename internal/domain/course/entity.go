// Package course contains the bilingual course and lesson domain model.
// Courses carry Thai/English content; lessons reference the competencies
// they teach, which links finished lessons into the mastery engine.
package course

import (
	"sort"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status defines the lifecycle state of a course.
type Status string

const (
	// StatusDraft - only visible to authors.
	StatusDraft Status = "draft"
	// StatusPublished - visible to learners.
	StatusPublished Status = "published"
	// StatusArchived - hidden from catalogs, progress preserved.
	StatusArchived Status = "archived"
)

// IsValid checks the status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}

// VisibleToLearners returns true if learners may see the course.
func (s Status) VisibleToLearners() bool {
	return s == StatusPublished
}

// CEFRLevel is the difficulty band of a course (A1..C2).
type CEFRLevel string

const (
	LevelA1 CEFRLevel = "A1"
	LevelA2 CEFRLevel = "A2"
	LevelB1 CEFRLevel = "B1"
	LevelB2 CEFRLevel = "B2"
	LevelC1 CEFRLevel = "C1"
	LevelC2 CEFRLevel = "C2"
)

// IsValid checks the level value.
func (l CEFRLevel) IsValid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON
// ══════════════════════════════════════════════════════════════════════════════

// Lesson is a single unit of study inside a course.
type Lesson struct {
	ID       string
	CourseID string

	// Position is the 1-based order within the course.
	Position int

	Title shared.LocalizedText
	Body  shared.LocalizedText

	// CompetencyIDs lists the competencies this lesson teaches.
	CompetencyIDs []string

	// EstimatedMinutes is the expected study time.
	EstimatedMinutes int

	// Archived lessons stay in place for learners with recorded progress
	// but are skipped in the learning path.
	Archived bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks lesson invariants.
func (l *Lesson) Validate() error {
	if !l.Title.IsValid() {
		return shared.ErrMissingTranslation
	}
	if !l.Body.IsValid() {
		return shared.ErrMissingTranslation
	}
	if l.Position < 1 {
		return shared.NewDomainError("course", "ValidateLesson", shared.ErrValueOutOfRange, "lesson position must be >= 1")
	}
	if l.EstimatedMinutes < 0 {
		return shared.NewDomainError("course", "ValidateLesson", shared.ErrNegativeValue, "estimated minutes cannot be negative")
	}
	return nil
}

// LocalizedLesson is a lesson rendered in a single language.
type LocalizedLesson struct {
	ID               string   `json:"id"`
	Position         int      `json:"position"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	CompetencyIDs    []string `json:"competency_ids"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// Localize renders the lesson in the requested language with fallback.
func (l *Lesson) Localize(lang shared.LanguageCode) LocalizedLesson {
	return LocalizedLesson{
		ID:               l.ID,
		Position:         l.Position,
		Title:            l.Title.In(lang),
		Body:             l.Body.In(lang),
		CompetencyIDs:    l.CompetencyIDs,
		EstimatedMinutes: l.EstimatedMinutes,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Course aggregates ordered lessons under a bilingual title.
type Course struct {
	ID          string
	AuthorID    string
	Title       shared.LocalizedText
	Description shared.LocalizedText
	Level       CEFRLevel
	Status      Status
	Lessons     []*Lesson
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewCourseParams carries the inputs for NewCourse.
type NewCourseParams struct {
	ID          string
	AuthorID    string
	Title       shared.LocalizedText
	Description shared.LocalizedText
	Level       CEFRLevel
}

// NewCourse creates a draft course with validation.
func NewCourse(params NewCourseParams) (*Course, error) {
	if !params.Title.IsValid() {
		return nil, shared.ErrMissingTranslation
	}
	if params.AuthorID == "" {
		return nil, shared.NewDomainError("course", "New", shared.ErrEmptyValue, "author ID is required")
	}
	level := params.Level
	if level == "" {
		level = LevelA1
	}
	if !level.IsValid() {
		return nil, shared.NewDomainError("course", "New", shared.ErrInvalidInput, "invalid CEFR level")
	}

	now := time.Now()
	return &Course{
		ID:          params.ID,
		AuthorID:    params.AuthorID,
		Title:       params.Title,
		Description: params.Description,
		Level:       level,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Publish makes the course visible to learners.
// A course needs at least one lesson to be publishable.
func (c *Course) Publish() error {
	if c.Status == StatusArchived {
		return shared.NewDomainError("course", "Publish", shared.ErrStateTransition, "archived course cannot be published")
	}
	if len(c.ActiveLessons()) == 0 {
		return shared.NewDomainError("course", "Publish", shared.ErrInvalidState, "course has no lessons")
	}
	c.Status = StatusPublished
	c.PublishedAt = time.Now()
	c.UpdatedAt = c.PublishedAt
	return nil
}

// Archive hides the course from catalogs.
func (c *Course) Archive() {
	c.Status = StatusArchived
	c.UpdatedAt = time.Now()
}

// AddLesson appends a lesson at the end of the course.
func (c *Course) AddLesson(l *Lesson) error {
	l.CourseID = c.ID
	l.Position = len(c.Lessons) + 1
	if err := l.Validate(); err != nil {
		return err
	}
	c.Lessons = append(c.Lessons, l)
	c.UpdatedAt = time.Now()
	return nil
}

// LessonByID finds a lesson within the course.
func (c *Course) LessonByID(lessonID string) (*Lesson, error) {
	for _, l := range c.Lessons {
		if l.ID == lessonID {
			return l, nil
		}
	}
	return nil, shared.ErrLessonNotFound
}

// ActiveLessons returns non-archived lessons in position order.
func (c *Course) ActiveLessons() []*Lesson {
	out := make([]*Lesson, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		if !l.Archived {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Reorder applies a new lesson order. The slice must contain exactly the
// IDs of the course's non-archived lessons.
func (c *Course) Reorder(lessonIDs []string) error {
	active := c.ActiveLessons()
	if len(lessonIDs) != len(active) {
		return shared.NewDomainError("course", "Reorder", shared.ErrInvalidInput, "order must list every active lesson exactly once")
	}

	byID := make(map[string]*Lesson, len(active))
	for _, l := range active {
		byID[l.ID] = l
	}

	for pos, id := range lessonIDs {
		l, ok := byID[id]
		if !ok {
			return shared.ErrLessonNotFound
		}
		delete(byID, id)
		l.Position = pos + 1
		l.UpdatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	return nil
}

// CompetencyIDs returns the distinct competencies taught anywhere in the course.
func (c *Course) CompetencyIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range c.ActiveLessons() {
		for _, id := range l.CompetencyIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// LocalizedCourse is a course card rendered in a single language.
type LocalizedCourse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Level       CEFRLevel         `json:"level"`
	Status      Status            `json:"status"`
	Lessons     []LocalizedLesson `json:"lessons,omitempty"`
}

// Localize renders the course in the requested language with fallback.
func (c *Course) Localize(lang shared.LanguageCode, withLessons bool) LocalizedCourse {
	out := LocalizedCourse{
		ID:          c.ID,
		Title:       c.Title.In(lang),
		Description: c.Description.In(lang),
		Level:       c.Level,
		Status:      c.Status,
	}
	if withLessons {
		for _, l := range c.ActiveLessons() {
			out.Lessons = append(out.Lessons, l.Localize(lang))
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressState tracks how far a learner got in a lesson.
type ProgressState string

const (
	ProgressStarted   ProgressState = "started"
	ProgressCompleted ProgressState = "completed"
)

// Weight orders progress states for monotonic merges: completed beats started.
func (s ProgressState) Weight() int {
	switch s {
	case ProgressCompleted:
		return 2
	case ProgressStarted:
		return 1
	default:
		return 0
	}
}

// LessonProgress records a learner's progress through one lesson.
type LessonProgress struct {
	LearnerID    string
	CourseID     string
	LessonID     string
	State        ProgressState
	TimeSpent    time.Duration
	StartedAt    time.Time
	CompletedAt  time.Time
	UpdatedAt    time.Time
}

// Merge folds another progress record into this one monotonically:
// the stronger state wins, time spent takes the maximum. Used during
// offline sync where the same lesson may arrive from several devices.
func (p *LessonProgress) Merge(other LessonProgress) bool {
	changed := false
	if other.State.Weight() > p.State.Weight() {
		p.State = other.State
		if other.State == ProgressCompleted {
			p.CompletedAt = other.CompletedAt
		}
		changed = true
	}
	if other.TimeSpent > p.TimeSpent {
		p.TimeSpent = other.TimeSpent
		changed = true
	}
	if changed {
		p.UpdatedAt = time.Now()
	}
	return changed
}

// Enrollment records that a learner joined a course.
type Enrollment struct {
	LearnerID  string
	CourseID   string
	EnrolledAt time.Time
}
