package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

type fakeCompetencyRepo struct {
	byID map[string]*mastery.Competency
}

func newFakeCompetencyRepo(comps ...*mastery.Competency) *fakeCompetencyRepo {
	r := &fakeCompetencyRepo{byID: make(map[string]*mastery.Competency)}
	for _, c := range comps {
		r.byID[c.ID] = c
	}
	return r
}

func (r *fakeCompetencyRepo) Create(ctx context.Context, c *mastery.Competency) error {
	r.byID[c.ID] = c
	return nil
}

func (r *fakeCompetencyRepo) GetByID(ctx context.Context, id string) (*mastery.Competency, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrCompetencyNotFound
	}
	return c, nil
}

func (r *fakeCompetencyRepo) Update(ctx context.Context, c *mastery.Competency) error {
	r.byID[c.ID] = c
	return nil
}

func (r *fakeCompetencyRepo) Delete(ctx context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

func (r *fakeCompetencyRepo) ListAll(ctx context.Context) ([]*mastery.Competency, error) {
	out := make([]*mastery.Competency, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out, nil
}

type staticLearnerRepo struct {
	byID map[string]*learner.Learner
}

func (r *staticLearnerRepo) Create(ctx context.Context, l *learner.Learner) error { return nil }

func (r *staticLearnerRepo) GetByID(ctx context.Context, id string) (*learner.Learner, error) {
	l, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return l, nil
}

func (r *staticLearnerRepo) GetByEmail(ctx context.Context, email string) (*learner.Learner, error) {
	return nil, shared.ErrLearnerNotFound
}

func (r *staticLearnerRepo) GetByIDs(ctx context.Context, ids []string) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *staticLearnerRepo) Update(ctx context.Context, l *learner.Learner) error { return nil }
func (r *staticLearnerRepo) Delete(ctx context.Context, id string) error          { return nil }

func (r *staticLearnerRepo) List(ctx context.Context, opts learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *staticLearnerRepo) ListByStatus(ctx context.Context, status learner.Status, opts learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *staticLearnerRepo) ListInactiveSince(ctx context.Context, days int, opts learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *staticLearnerRepo) Count(ctx context.Context) (int, error) { return len(r.byID), nil }

type countingIDs struct{ n int }

func (g *countingIDs) NewID() string {
	g.n++
	return fmt.Sprintf("comp-%d", g.n)
}

func graphAuthor(t *testing.T, role learner.Role) *learner.Learner {
	t.Helper()
	l, err := learner.NewLearner(learner.NewLearnerParams{
		ID:           "author-1",
		Email:        "kru@example.com",
		PasswordHash: "x",
		DisplayName:  "Kru Nid",
		Language:     shared.LangThai,
		Role:         role,
	})
	require.NoError(t, err)
	return l
}

func namedCompetency(id string, prereqs ...string) *mastery.Competency {
	return &mastery.Competency{
		ID:              id,
		Name:            shared.LocalizedText{Th: "ทักษะ " + id, En: "skill " + id},
		PrerequisiteIDs: prereqs,
	}
}

func newCompetencyHandler(t *testing.T, repo *fakeCompetencyRepo, role learner.Role) *SaveCompetencyHandler {
	t.Helper()
	learners := &staticLearnerRepo{byID: map[string]*learner.Learner{
		"author-1": graphAuthor(t, role),
	}}
	return NewSaveCompetencyHandler(repo, learners, &countingIDs{})
}

func TestSaveCompetency_Create(t *testing.T) {
	repo := newFakeCompetencyRepo(namedCompetency("consonants"))
	h := newCompetencyHandler(t, repo, learner.RoleAuthor)

	result, err := h.HandleCreate(context.Background(), CreateCompetencyCommand{
		AuthorID:        "author-1",
		Name:            shared.LocalizedText{Th: "วรรณยุกต์", En: "Tones"},
		PrerequisiteIDs: []string{"consonants"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Competency.ID)
	assert.Equal(t, []string{"consonants"}, result.Competency.PrerequisiteIDs)

	stored, err := repo.GetByID(context.Background(), result.Competency.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tones", stored.Name.En)
}

func TestSaveCompetency_CreateRejectsUnknownPrerequisite(t *testing.T) {
	h := newCompetencyHandler(t, newFakeCompetencyRepo(), learner.RoleAuthor)

	_, err := h.HandleCreate(context.Background(), CreateCompetencyCommand{
		AuthorID:        "author-1",
		Name:            shared.LocalizedText{En: "Tones"},
		PrerequisiteIDs: []string{"ghost"},
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestSaveCompetency_UpdateRejectsCycle(t *testing.T) {
	// a <- b <- c, then making c a prerequisite of a closes the loop.
	repo := newFakeCompetencyRepo(
		namedCompetency("a"),
		namedCompetency("b", "a"),
		namedCompetency("c", "b"),
	)
	h := newCompetencyHandler(t, repo, learner.RoleAuthor)

	_, err := h.HandleUpdate(context.Background(), UpdateCompetencyCommand{
		AuthorID:        "author-1",
		CompetencyID:    "a",
		PrerequisiteIDs: []string{"c"},
	})
	assert.ErrorIs(t, err, shared.ErrPrerequisiteCycle)

	// The stored graph is untouched.
	a, getErr := repo.GetByID(context.Background(), "a")
	require.NoError(t, getErr)
	assert.Empty(t, a.PrerequisiteIDs)
}

func TestSaveCompetency_UpdateReplacesPrerequisites(t *testing.T) {
	repo := newFakeCompetencyRepo(
		namedCompetency("a"),
		namedCompetency("b"),
		namedCompetency("c", "a"),
	)
	h := newCompetencyHandler(t, repo, learner.RoleAuthor)

	result, err := h.HandleUpdate(context.Background(), UpdateCompetencyCommand{
		AuthorID:        "author-1",
		CompetencyID:    "c",
		PrerequisiteIDs: []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, result.Competency.PrerequisiteIDs)
}

func TestSaveCompetency_LearnersMayNotEdit(t *testing.T) {
	h := newCompetencyHandler(t, newFakeCompetencyRepo(), learner.RoleLearner)

	_, err := h.HandleCreate(context.Background(), CreateCompetencyCommand{
		AuthorID: "author-1",
		Name:     shared.LocalizedText{En: "Tones"},
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestSaveCompetency_DeleteRefusesWhenRequired(t *testing.T) {
	repo := newFakeCompetencyRepo(
		namedCompetency("a"),
		namedCompetency("b", "a"),
	)
	h := newCompetencyHandler(t, repo, learner.RoleAdmin)

	err := h.HandleDelete(context.Background(), DeleteCompetencyCommand{
		AuthorID:     "author-1",
		CompetencyID: "a",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	// Leaves may go.
	err = h.HandleDelete(context.Background(), DeleteCompetencyCommand{
		AuthorID:     "author-1",
		CompetencyID: "b",
	})
	require.NoError(t, err)
	_, err = repo.GetByID(context.Background(), "b")
	assert.True(t, shared.IsNotFound(err))
}
