// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "learner", "quiz", "mastery"
	Op      string // Operation that failed, e.g., "Create", "Grade"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Learner domain errors
var (
	ErrLearnerNotFound      = NewDomainError("learner", "Find", ErrNotFound, "learner not found")
	ErrLearnerAlreadyExists = NewDomainError("learner", "Create", ErrAlreadyExists, "learner already exists")
	ErrInvalidEmail         = NewDomainError("learner", "Validate", ErrInvalidInput, "invalid email address")
	ErrInvalidLanguage      = NewDomainError("learner", "Validate", ErrInvalidInput, "unsupported language code")
	ErrInvalidCredentials   = NewDomainError("learner", "Authenticate", ErrUnauthorized, "invalid email or password")
	ErrLearnerNotActive     = NewDomainError("learner", "CheckStatus", ErrInvalidState, "learner is not active")
	ErrWeakPassword         = NewDomainError("learner", "Validate", ErrInvalidInput, "password does not meet requirements")
)

// Course domain errors
var (
	ErrCourseNotFound    = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrLessonNotFound    = NewDomainError("course", "FindLesson", ErrNotFound, "lesson not found")
	ErrCourseNotDraft    = NewDomainError("course", "Update", ErrInvalidState, "course is not in draft state")
	ErrCourseUnpublished = NewDomainError("course", "Access", ErrForbidden, "course is not published")
	ErrLessonHasProgress = NewDomainError("course", "DeleteLesson", ErrInvalidState, "lesson has recorded progress; archive instead")
	ErrMissingTranslation = NewDomainError("course", "Validate", ErrInvalidInput, "content must have at least one language")
)

// Quiz domain errors
var (
	ErrQuizNotFound        = NewDomainError("quiz", "Find", ErrNotFound, "quiz not found")
	ErrQuestionNotFound    = NewDomainError("quiz", "FindQuestion", ErrNotFound, "question not found")
	ErrAttemptNotFound     = NewDomainError("quiz", "FindAttempt", ErrNotFound, "attempt not found")
	ErrAttemptInFlight     = NewDomainError("quiz", "StartAttempt", ErrAlreadyExists, "an attempt is already in progress")
	ErrAttemptFinished     = NewDomainError("quiz", "Submit", ErrInvalidState, "attempt already submitted")
	ErrAnswerCountMismatch = NewDomainError("quiz", "Grade", ErrInvalidInput, "answer count does not match question count")
	ErrInvalidQuestionType = NewDomainError("quiz", "Validate", ErrInvalidInput, "invalid question type")
)

// Mastery domain errors
var (
	ErrCompetencyNotFound = NewDomainError("mastery", "Find", ErrNotFound, "competency not found")
	ErrPrerequisiteCycle  = NewDomainError("mastery", "AddPrerequisite", ErrInvalidState, "prerequisite would create a cycle")
	ErrSelfPrerequisite   = NewDomainError("mastery", "AddPrerequisite", ErrInvalidInput, "competency cannot require itself")
	ErrInvalidScore       = NewDomainError("mastery", "Update", ErrValueOutOfRange, "score must be between 0 and 1")
)

// Leaderboard domain errors
var (
	ErrLeaderboardNotFound = NewDomainError("leaderboard", "Find", ErrNotFound, "leaderboard not found")
	ErrInvalidScope        = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard scope")
	ErrInvalidRank         = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "invalid rank")
	ErrSnapshotNotFound    = NewDomainError("leaderboard", "FindSnapshot", ErrNotFound, "snapshot not found")
	ErrLeaderboardStale    = NewDomainError("leaderboard", "Refresh", ErrExpired, "leaderboard data is stale")
)

// Gamification domain errors
var (
	ErrAchievementNotFound = NewDomainError("gamification", "Find", ErrNotFound, "achievement not found")
	ErrAlreadyAwarded      = NewDomainError("gamification", "Award", ErrAlreadyExists, "achievement already awarded")
	ErrUnknownXPReason     = NewDomainError("gamification", "AwardXP", ErrInvalidInput, "unknown XP award reason")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrNotificationFailed   = NewDomainError("notification", "Send", ErrExternalService, "failed to send notification")
	ErrInvalidChannel       = NewDomainError("notification", "Validate", ErrInvalidInput, "invalid notification channel")
	ErrNotificationDisabled = NewDomainError("notification", "Check", ErrForbidden, "notifications disabled by user")
	ErrTooManyNotifications = NewDomainError("notification", "Send", ErrRateLimited, "too many notifications")
)

// xAPI domain errors
var (
	ErrStatementNotFound = NewDomainError("xapi", "Find", ErrNotFound, "statement not found")
	ErrStatementInvalid  = NewDomainError("xapi", "Validate", ErrValidation, "statement failed validation")
	ErrStatementConflict = NewDomainError("xapi", "Store", ErrAlreadyExists, "statement ID already stored with different content")
	ErrStatementVoided   = NewDomainError("xapi", "Void", ErrInvalidState, "cannot void a voiding statement")
)

// Sync domain errors
var (
	ErrDeviceNotFound     = NewDomainError("sync", "FindDevice", ErrNotFound, "device not registered")
	ErrDeviceLimit        = NewDomainError("sync", "RegisterDevice", ErrValueOutOfRange, "device limit reached for learner")
	ErrDuplicateOperation = NewDomainError("sync", "Push", ErrAlreadyProcessed, "operation already applied")
	ErrUnknownOperation   = NewDomainError("sync", "Push", ErrInvalidInput, "unknown operation kind")
	ErrStaleCursor        = NewDomainError("sync", "Pull", ErrExpired, "sync cursor is older than retained history")
)

// Tutor errors
var (
	ErrTutorUnavailable    = NewDomainError("tutor", "Chat", ErrServiceUnavailable, "tutor service is unavailable")
	ErrTutorRateLimited    = NewDomainError("tutor", "Chat", ErrRateLimited, "tutor rate limit exceeded")
	ErrTutorTimeout        = NewDomainError("tutor", "Chat", ErrTimeout, "tutor request timeout")
	ErrTutorInvalidReply   = NewDomainError("tutor", "Parse", ErrInvalidFormat, "invalid response from tutor model")
	ErrChatSessionNotFound = NewDomainError("tutor", "FindSession", ErrNotFound, "chat session not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
