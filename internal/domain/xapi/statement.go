// Package xapi implements a small xAPI statement store: actors, verbs,
// activity objects, results, validation, and voiding. Statements are
// immutable once stored; corrections happen by voiding.
package xapi

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// WELL-KNOWN IRIS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// VerbVoided voids a previously stored statement.
	VerbVoided = "http://adlnet.gov/expapi/verbs/voided"

	VerbCompleted   = "http://adlnet.gov/expapi/verbs/completed"
	VerbAttempted   = "http://adlnet.gov/expapi/verbs/attempted"
	VerbPassed      = "http://adlnet.gov/expapi/verbs/passed"
	VerbFailed      = "http://adlnet.gov/expapi/verbs/failed"
	VerbExperienced = "http://adlnet.gov/expapi/verbs/experienced"
	VerbMastered    = "http://adlnet.gov/expapi/verbs/mastered"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATEMENT PARTS
// ══════════════════════════════════════════════════════════════════════════════

// Agent identifies the actor, by mbox or by account. Exactly one
// inverse functional identifier must be present.
type Agent struct {
	Name    string   `json:"name,omitempty"`
	Mbox    string   `json:"mbox,omitempty"`
	Account *Account `json:"account,omitempty"`
}

// Account is a home-page scoped actor identifier.
type Account struct {
	HomePage string `json:"homePage"`
	Name     string `json:"name"`
}

// Key returns the canonical identifier used for actor queries.
func (a Agent) Key() string {
	if a.Mbox != "" {
		return a.Mbox
	}
	if a.Account != nil {
		return a.Account.HomePage + "|" + a.Account.Name
	}
	return ""
}

// Verb is the action taken, identified by IRI with display names.
type Verb struct {
	ID      string            `json:"id"`
	Display map[string]string `json:"display,omitempty"`
}

// ActivityDefinition describes the object for display.
type ActivityDefinition struct {
	Name        map[string]string `json:"name,omitempty"`
	Description map[string]string `json:"description,omitempty"`
	Type        string            `json:"type,omitempty"`
}

// Object is what the actor acted on: an activity IRI or a reference
// to another statement (for voiding).
type Object struct {
	// ObjectType defaults to "Activity"; "StatementRef" for voiding.
	ObjectType string              `json:"objectType,omitempty"`
	ID         string              `json:"id"`
	Definition *ActivityDefinition `json:"definition,omitempty"`
}

// IsStatementRef reports whether the object points at a statement.
func (o Object) IsStatementRef() bool {
	return o.ObjectType == "StatementRef"
}

// ResultScore carries the graded outcome.
type ResultScore struct {
	Scaled *float64 `json:"scaled,omitempty"`
	Raw    *float64 `json:"raw,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// Result is the optional outcome of the statement.
type Result struct {
	Score      *ResultScore `json:"score,omitempty"`
	Success    *bool        `json:"success,omitempty"`
	Completion *bool        `json:"completion,omitempty"`

	// Duration is an ISO-8601 duration string (e.g. "PT4M30S").
	Duration string `json:"duration,omitempty"`
}

// Context ties the statement to its surroundings.
type Context struct {
	Registration string            `json:"registration,omitempty"`
	Platform     string            `json:"platform,omitempty"`
	Language     string            `json:"language,omitempty"`
	Extensions   map[string]string `json:"extensions,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// STATEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Statement is one immutable learning record.
type Statement struct {
	// ID is assigned by the server at store time unless the client
	// supplied one.
	ID string `json:"id,omitempty"`

	Actor  Agent   `json:"actor"`
	Verb   Verb    `json:"verb"`
	Object Object  `json:"object"`
	Result *Result `json:"result,omitempty"`

	Context *Context `json:"context,omitempty"`

	// Timestamp is when the experience happened; defaults to Stored.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Stored is assigned by the server.
	Stored time.Time `json:"stored,omitempty"`
}

// IsVoiding reports whether the statement voids another.
func (s *Statement) IsVoiding() bool {
	return s.Verb.ID == VerbVoided && s.Object.IsStatementRef()
}

// VoidedTargetID returns the statement ID a voiding statement targets.
func (s *Statement) VoidedTargetID() string {
	if !s.IsVoiding() {
		return ""
	}
	return s.Object.ID
}

// Prepare assigns server-side fields before storage: ID when absent,
// Stored, and the Timestamp default.
func (s *Statement) Prepare(id string, storedAt time.Time) {
	if s.ID == "" {
		s.ID = id
	}
	s.Stored = storedAt
	if s.Timestamp.IsZero() {
		s.Timestamp = storedAt
	}
}
