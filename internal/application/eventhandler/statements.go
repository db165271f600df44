// Package eventhandler contains the domain event handlers registered on
// the event bus. They carry the side effects the write path publishes
// events for: mastery updates, XP grants, notifications, and xAPI
// statement emission.
package eventhandler

import (
	"context"
	"fmt"

	"github.com/rianlab/rianhub/internal/domain/xapi"
)

// StatementRecorder is the slice of the statement store the handlers
// need to emit pipeline statements.
type StatementRecorder interface {
	Store(ctx context.Context, s *xapi.Statement) error
}

// DefaultActorHomePage identifies internally emitted actors. Must match
// the analytics rollup's actor key derivation.
const DefaultActorHomePage = "https://rianhub.app"

// actorFor builds the account-based agent for a learner.
func actorFor(homePage, learnerID string) xapi.Agent {
	return xapi.Agent{
		Account: &xapi.Account{HomePage: homePage, Name: learnerID},
	}
}

// isoDuration renders an ISO-8601 duration ("PT4M30S") from seconds.
func isoDuration(seconds int64) string {
	if seconds <= 0 {
		return "PT0S"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	out := "PT"
	if h > 0 {
		out += fmt.Sprintf("%dH", h)
	}
	if m > 0 {
		out += fmt.Sprintf("%dM", m)
	}
	if s > 0 || out == "PT" {
		out += fmt.Sprintf("%dS", s)
	}
	return out
}

func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }
