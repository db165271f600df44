// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
// Sagas ensure consistency across operations and handle compensation on failures.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARDING SAGA
// Registration of a new learner.
// Flow: Validate → Check Existence → Hash Password → Create Learner →
//
//	Send Welcome → Publish Event
//
// ══════════════════════════════════════════════════════════════════════════════

// OnboardingInput contains all data required to register a new learner.
type OnboardingInput struct {
	// Email - email for authentication (required).
	Email string

	// Password - plain password, hashed before storage (required).
	Password string

	// DisplayName - the name shown to other learners (required).
	DisplayName string

	// Language - preferred interface language; defaults to Thai.
	Language string
}

// Validate checks if the input is valid for onboarding.
func (i OnboardingInput) Validate() error {
	if strings.TrimSpace(i.Email) == "" {
		return errors.New("onboarding: email is required")
	}
	if i.Password == "" {
		return errors.New("onboarding: password is required")
	}
	if len(i.Password) < learner.MinPasswordLength {
		return shared.ErrWeakPassword
	}
	if strings.TrimSpace(i.DisplayName) == "" {
		return errors.New("onboarding: display name is required")
	}
	return nil
}

// OnboardingResult contains the result of a successful onboarding.
type OnboardingResult struct {
	// Learner - the newly created learner entity.
	Learner *learner.Learner

	// WelcomeSent - whether the welcome notification was queued.
	WelcomeSent bool

	// OnboardedAt - timestamp of successful registration.
	OnboardedAt time.Time
}

// OnboardingStep represents a step in the onboarding process.
type OnboardingStep string

const (
	StepValidateInput  OnboardingStep = "validate_input"
	StepCheckExistence OnboardingStep = "check_existence"
	StepHashPassword   OnboardingStep = "hash_password"
	StepCreateLearner  OnboardingStep = "create_learner"
	StepSendWelcome    OnboardingStep = "send_welcome"
	StepPublishEvent   OnboardingStep = "publish_event"
	StepComplete       OnboardingStep = "complete"
)

// OnboardingState tracks the current state of the onboarding saga.
type OnboardingState struct {
	CurrentStep  OnboardingStep
	Input        OnboardingInput
	Learner      *learner.Learner
	PasswordHash string
	StartedAt    time.Time
	CompletedAt  *time.Time
	Error        error
	FailedStep   OnboardingStep
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// WelcomeNotifier queues the welcome notification.
// Implemented by service.NotificationService.
type WelcomeNotifier interface {
	NotifyWelcome(ctx context.Context, l *learner.Learner) error
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	NewID() string
}

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARDING SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// OnboardingSaga orchestrates the complete learner registration process.
// It follows the Saga pattern to ensure consistency across multiple operations.
type OnboardingSaga struct {
	learnerRepo learner.Repository
	notifier    WelcomeNotifier
	eventBus    shared.EventPublisher
	idGenerator IDGenerator

	bcryptCost      int
	defaultLanguage shared.LanguageCode
}

// OnboardingSagaConfig contains configuration for the onboarding saga.
type OnboardingSagaConfig struct {
	BcryptCost      int
	DefaultLanguage shared.LanguageCode
}

// DefaultOnboardingConfig returns default configuration.
func DefaultOnboardingConfig() OnboardingSagaConfig {
	return OnboardingSagaConfig{
		BcryptCost:      bcrypt.DefaultCost,
		DefaultLanguage: shared.LangThai,
	}
}

// NewOnboardingSaga creates a new onboarding saga with all dependencies.
// notifier may be nil.
func NewOnboardingSaga(
	learnerRepo learner.Repository,
	notifier WelcomeNotifier,
	eventBus shared.EventPublisher,
	idGenerator IDGenerator,
	config OnboardingSagaConfig,
) *OnboardingSaga {
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if !config.DefaultLanguage.IsValid() {
		config.DefaultLanguage = shared.LangThai
	}
	return &OnboardingSaga{
		learnerRepo:     learnerRepo,
		notifier:        notifier,
		eventBus:        eventBus,
		idGenerator:     idGenerator,
		bcryptCost:      config.BcryptCost,
		defaultLanguage: config.DefaultLanguage,
	}
}

// Execute runs the complete onboarding process.
// It returns the result on success or an error with context about the failure.
func (s *OnboardingSaga) Execute(ctx context.Context, input OnboardingInput) (*OnboardingResult, error) {
	state := &OnboardingState{
		CurrentStep: StepValidateInput,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	// Step 1: Validate input
	if err := s.stepValidateInput(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Check the email is not already registered
	state.CurrentStep = StepCheckExistence
	if err := s.stepCheckExistence(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Hash the password
	state.CurrentStep = StepHashPassword
	if err := s.stepHashPassword(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Create the learner
	state.CurrentStep = StepCreateLearner
	if err := s.stepCreateLearner(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 5: Send welcome notification
	// Non-critical - the account exists either way.
	state.CurrentStep = StepSendWelcome
	welcomeSent := s.stepSendWelcome(ctx, state)

	// Step 6: Publish domain event
	// Non-critical - events can be replayed later.
	state.CurrentStep = StepPublishEvent
	s.stepPublishEvent(state)

	state.CurrentStep = StepComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	return &OnboardingResult{
		Learner:     state.Learner,
		WelcomeSent: welcomeSent,
		OnboardedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

func (s *OnboardingSaga) stepValidateInput(state *OnboardingState) error {
	if err := state.Input.Validate(); err != nil {
		state.FailedStep = StepValidateInput
		state.Error = err
		return err
	}
	return nil
}

// stepCheckExistence verifies the email is free. The repository's
// unique index is the real guard; this check only improves the error.
func (s *OnboardingSaga) stepCheckExistence(ctx context.Context, state *OnboardingState) error {
	email, err := shared.NewEmail(state.Input.Email)
	if err != nil {
		state.FailedStep = StepCheckExistence
		state.Error = err
		return err
	}

	_, err = s.learnerRepo.GetByEmail(ctx, string(email))
	switch {
	case err == nil:
		state.FailedStep = StepCheckExistence
		state.Error = shared.ErrLearnerAlreadyExists
		return state.Error
	case shared.IsNotFound(err):
		return nil
	default:
		state.FailedStep = StepCheckExistence
		state.Error = fmt.Errorf("failed to check email existence: %w", err)
		return state.Error
	}
}

func (s *OnboardingSaga) stepHashPassword(state *OnboardingState) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(state.Input.Password), s.bcryptCost)
	if err != nil {
		state.FailedStep = StepHashPassword
		state.Error = fmt.Errorf("failed to hash password: %w", err)
		return state.Error
	}
	state.PasswordHash = string(hash)
	return nil
}

func (s *OnboardingSaga) stepCreateLearner(ctx context.Context, state *OnboardingState) error {
	lang := s.defaultLanguage
	if parsed, err := shared.NewLanguageCode(state.Input.Language); err == nil {
		lang = parsed
	}

	l, err := learner.NewLearner(learner.NewLearnerParams{
		ID:           s.idGenerator.NewID(),
		Email:        state.Input.Email,
		PasswordHash: state.PasswordHash,
		DisplayName:  state.Input.DisplayName,
		Language:     lang,
		Role:         learner.RoleLearner,
	})
	if err != nil {
		state.FailedStep = StepCreateLearner
		state.Error = err
		return err
	}

	if err := s.learnerRepo.Create(ctx, l); err != nil {
		state.FailedStep = StepCreateLearner
		if errors.Is(err, shared.ErrLearnerAlreadyExists) {
			state.Error = shared.ErrLearnerAlreadyExists
		} else {
			state.Error = fmt.Errorf("failed to create learner: %w", err)
		}
		return state.Error
	}

	state.Learner = l
	return nil
}

func (s *OnboardingSaga) stepSendWelcome(ctx context.Context, state *OnboardingState) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.NotifyWelcome(ctx, state.Learner); err != nil {
		return false
	}
	return true
}

func (s *OnboardingSaga) stepPublishEvent(state *OnboardingState) {
	event := shared.NewLearnerRegisteredEvent(
		state.Learner.ID,
		string(state.Learner.Email),
		state.Learner.DisplayName,
		state.Learner.Preferences.Language.String(),
	)
	_ = s.eventBus.Publish(event)
}

func (s *OnboardingSaga) wrapError(state *OnboardingState, err error) error {
	return fmt.Errorf("onboarding failed at step %s: %w", state.CurrentStep, err)
}
