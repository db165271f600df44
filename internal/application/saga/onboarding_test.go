package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

type fakeLearnerRepo struct {
	byEmail map[string]*learner.Learner
	created []*learner.Learner

	createErr error
}

func newFakeLearnerRepo() *fakeLearnerRepo {
	return &fakeLearnerRepo{byEmail: make(map[string]*learner.Learner)}
}

func (r *fakeLearnerRepo) Create(_ context.Context, l *learner.Learner) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.byEmail[string(l.Email)] = l
	r.created = append(r.created, l)
	return nil
}

func (r *fakeLearnerRepo) GetByID(_ context.Context, _ string) (*learner.Learner, error) {
	return nil, shared.ErrLearnerNotFound
}

func (r *fakeLearnerRepo) GetByEmail(_ context.Context, email string) (*learner.Learner, error) {
	l, ok := r.byEmail[email]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return l, nil
}

func (r *fakeLearnerRepo) GetByIDs(_ context.Context, _ []string) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *fakeLearnerRepo) Update(_ context.Context, _ *learner.Learner) error { return nil }
func (r *fakeLearnerRepo) Delete(_ context.Context, _ string) error           { return nil }

func (r *fakeLearnerRepo) List(_ context.Context, _ learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *fakeLearnerRepo) ListByStatus(_ context.Context, _ learner.Status, _ learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *fakeLearnerRepo) ListInactiveSince(_ context.Context, _ int, _ learner.ListOptions) ([]*learner.Learner, error) {
	return nil, nil
}

func (r *fakeLearnerRepo) Count(_ context.Context) (int, error) { return len(r.byEmail), nil }

type fakeWelcomeNotifier struct {
	welcomed []string
	err      error
}

func (n *fakeWelcomeNotifier) NotifyWelcome(_ context.Context, l *learner.Learner) error {
	if n.err != nil {
		return n.err
	}
	n.welcomed = append(n.welcomed, l.ID)
	return nil
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

type sequentialIDs struct {
	n int
}

func (g *sequentialIDs) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func validInput() OnboardingInput {
	return OnboardingInput{
		Email:       "somchai@example.com",
		Password:    "correct-horse-battery",
		DisplayName: "Somchai",
		Language:    "th",
	}
}

func newOnboarding(repo *fakeLearnerRepo, notifier *fakeWelcomeNotifier, bus *capturingPublisher) *OnboardingSaga {
	return NewOnboardingSaga(repo, notifier, bus, &sequentialIDs{}, OnboardingSagaConfig{
		BcryptCost:      bcrypt.MinCost,
		DefaultLanguage: shared.LangThai,
	})
}

func TestOnboarding_RegistersLearner(t *testing.T) {
	repo := newFakeLearnerRepo()
	notifier := &fakeWelcomeNotifier{}
	bus := &capturingPublisher{}
	s := newOnboarding(repo, notifier, bus)

	result, err := s.Execute(context.Background(), validInput())
	require.NoError(t, err)

	require.NotNil(t, result.Learner)
	assert.Equal(t, "id-1", result.Learner.ID)
	assert.Equal(t, "Somchai", result.Learner.DisplayName)
	assert.Equal(t, learner.RoleLearner, result.Learner.Role)
	assert.True(t, result.WelcomeSent)
	assert.Equal(t, []string{"id-1"}, notifier.welcomed)
	require.Len(t, repo.created, 1)

	// The stored hash verifies against the original password.
	stored := repo.created[0]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse-battery")))

	require.NotEmpty(t, bus.events)
	assert.Equal(t, shared.EventLearnerRegistered, bus.events[0].EventType())
}

func TestOnboarding_DuplicateEmail(t *testing.T) {
	repo := newFakeLearnerRepo()
	notifier := &fakeWelcomeNotifier{}
	bus := &capturingPublisher{}
	s := newOnboarding(repo, notifier, bus)

	_, err := s.Execute(context.Background(), validInput())
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrLearnerAlreadyExists))
	assert.Len(t, repo.created, 1)
}

func TestOnboarding_WeakPassword(t *testing.T) {
	s := newOnboarding(newFakeLearnerRepo(), &fakeWelcomeNotifier{}, &capturingPublisher{})

	input := validInput()
	input.Password = "short"
	_, err := s.Execute(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrWeakPassword))
}

func TestOnboarding_WelcomeFailureIsNotFatal(t *testing.T) {
	repo := newFakeLearnerRepo()
	notifier := &fakeWelcomeNotifier{err: errors.New("notification store down")}
	s := newOnboarding(repo, notifier, &capturingPublisher{})

	result, err := s.Execute(context.Background(), validInput())
	require.NoError(t, err)
	assert.False(t, result.WelcomeSent)
	assert.Len(t, repo.created, 1)
}

func TestOnboarding_UnknownLanguageFallsBackToDefault(t *testing.T) {
	repo := newFakeLearnerRepo()
	s := newOnboarding(repo, &fakeWelcomeNotifier{}, &capturingPublisher{})

	input := validInput()
	input.Language = "xx"
	result, err := s.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, shared.LangThai, result.Learner.Preferences.Language)
}
