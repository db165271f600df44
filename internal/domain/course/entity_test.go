package course

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func bilingual(th, en string) shared.LocalizedText {
	return shared.LocalizedText{Th: th, En: en}
}

func newTestCourse(t *testing.T) *Course {
	t.Helper()
	c, err := NewCourse(NewCourseParams{
		ID:          "3f0a1f6e-0000-4000-8000-000000000001",
		AuthorID:    "3f0a1f6e-0000-4000-8000-0000000000aa",
		Title:       bilingual("ไวยากรณ์พื้นฐาน", "Basic Grammar"),
		Description: bilingual("", "Grammar for beginners"),
		Level:       LevelA1,
	})
	require.NoError(t, err)
	return c
}

func addLesson(t *testing.T, c *Course, id, titleEN string) *Lesson {
	t.Helper()
	l := &Lesson{
		ID:               id,
		Title:            bilingual("", titleEN),
		Body:             bilingual("เนื้อหา", "Body"),
		CompetencyIDs:    []string{"comp-" + id},
		EstimatedMinutes: 10,
	}
	require.NoError(t, c.AddLesson(l))
	return l
}

func TestNewCourse_RequiresTitle(t *testing.T) {
	_, err := NewCourse(NewCourseParams{
		ID:       "x",
		AuthorID: "a",
		Title:    shared.LocalizedText{},
	})
	assert.ErrorIs(t, err, shared.ErrMissingTranslation)
}

func TestPublish(t *testing.T) {
	c := newTestCourse(t)

	err := c.Publish()
	assert.Error(t, err, "cannot publish without lessons")

	addLesson(t, c, "l1", "Articles")
	require.NoError(t, c.Publish())
	assert.Equal(t, StatusPublished, c.Status)
	assert.False(t, c.PublishedAt.IsZero())

	c.Archive()
	assert.Error(t, c.Publish(), "archived course stays archived")
}

func TestLocalize_Fallback(t *testing.T) {
	c := newTestCourse(t)
	addLesson(t, c, "l1", "Articles")

	th := c.Localize(shared.LangThai, true)
	assert.Equal(t, "ไวยากรณ์พื้นฐาน", th.Title)
	// Description has no Thai; falls back to English.
	assert.Equal(t, "Grammar for beginners", th.Description)
	require.Len(t, th.Lessons, 1)
	// Lesson title has no Thai either.
	assert.Equal(t, "Articles", th.Lessons[0].Title)
	assert.Equal(t, "เนื้อหา", th.Lessons[0].Body)
}

func TestReorder(t *testing.T) {
	c := newTestCourse(t)
	addLesson(t, c, "l1", "One")
	addLesson(t, c, "l2", "Two")
	addLesson(t, c, "l3", "Three")

	require.NoError(t, c.Reorder([]string{"l3", "l1", "l2"}))

	active := c.ActiveLessons()
	assert.Equal(t, []string{"l3", "l1", "l2"}, []string{active[0].ID, active[1].ID, active[2].ID})

	assert.Error(t, c.Reorder([]string{"l1", "l2"}), "must list every lesson")
	assert.Error(t, c.Reorder([]string{"l1", "l2", "nope"}))
}

func TestActiveLessons_SkipsArchived(t *testing.T) {
	c := newTestCourse(t)
	addLesson(t, c, "l1", "One")
	l2 := addLesson(t, c, "l2", "Two")
	l2.Archived = true

	active := c.ActiveLessons()
	require.Len(t, active, 1)
	assert.Equal(t, "l1", active[0].ID)
}

func TestCompetencyIDs_Distinct(t *testing.T) {
	c := newTestCourse(t)
	l1 := addLesson(t, c, "l1", "One")
	l2 := addLesson(t, c, "l2", "Two")
	l1.CompetencyIDs = []string{"a", "b"}
	l2.CompetencyIDs = []string{"b", "c"}

	assert.ElementsMatch(t, []string{"a", "b", "c"}, c.CompetencyIDs())
}

func TestLessonProgress_Merge(t *testing.T) {
	now := time.Now()
	p := LessonProgress{
		LearnerID: "u", LessonID: "l",
		State:     ProgressStarted,
		TimeSpent: 5 * time.Minute,
		StartedAt: now.Add(-time.Hour),
	}

	// Completed beats started; larger time wins.
	changed := p.Merge(LessonProgress{
		State:       ProgressCompleted,
		TimeSpent:   3 * time.Minute,
		CompletedAt: now,
	})
	assert.True(t, changed)
	assert.Equal(t, ProgressCompleted, p.State)
	assert.Equal(t, 5*time.Minute, p.TimeSpent)
	assert.Equal(t, now, p.CompletedAt)

	// A weaker record changes nothing.
	changed = p.Merge(LessonProgress{State: ProgressStarted, TimeSpent: time.Minute})
	assert.False(t, changed)
	assert.Equal(t, ProgressCompleted, p.State)
}
