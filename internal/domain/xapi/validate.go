package xapi

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// Shallow checks in the spirit of an LRS: required parts present, IRIs
// shaped like IRIs, scores inside their bounds, durations parseable.
// ══════════════════════════════════════════════════════════════════════════════

var (
	mboxPattern = regexp.MustCompile(`^mailto:[^@\s]+@[^@\s]+$`)

	// ISO-8601 duration, the designator subset xAPI results use.
	durationPattern = regexp.MustCompile(
		`^P(?:\d+Y)?(?:\d+M)?(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+(?:\.\d+)?S)?)?$`)
)

func invalid(format string, args ...any) error {
	return shared.WrapError("xapi", "Validate", shared.ErrStatementInvalid,
		fmt.Sprintf(format, args...), nil)
}

// Validate checks a statement before storage.
func Validate(s *Statement) error {
	if err := validateActor(s.Actor); err != nil {
		return err
	}
	if err := validateVerb(s.Verb); err != nil {
		return err
	}
	if err := validateObject(s.Object); err != nil {
		return err
	}
	if s.Result != nil {
		if err := validateResult(s.Result); err != nil {
			return err
		}
	}
	if s.IsVoiding() && s.Object.ID == "" {
		return invalid("voiding statement requires a target statement ID")
	}
	if s.Verb.ID == VerbVoided && !s.Object.IsStatementRef() {
		return invalid("voided verb requires a StatementRef object")
	}
	return nil
}

func validateActor(a Agent) error {
	hasMbox := a.Mbox != ""
	hasAccount := a.Account != nil
	if !hasMbox && !hasAccount {
		return invalid("actor requires mbox or account")
	}
	if hasMbox && hasAccount {
		return invalid("actor must not carry both mbox and account")
	}
	if hasMbox && !mboxPattern.MatchString(a.Mbox) {
		return invalid("actor mbox %q is not a mailto IRI", a.Mbox)
	}
	if hasAccount {
		if a.Account.HomePage == "" || a.Account.Name == "" {
			return invalid("actor account requires homePage and name")
		}
		if !shared.IsIRI(a.Account.HomePage) {
			return invalid("actor account homePage %q is not an IRI", a.Account.HomePage)
		}
	}
	return nil
}

func validateVerb(v Verb) error {
	if v.ID == "" {
		return invalid("verb ID is required")
	}
	if !shared.IsIRI(v.ID) {
		return invalid("verb ID %q is not an IRI", v.ID)
	}
	return nil
}

func validateObject(o Object) error {
	if o.ID == "" {
		return invalid("object ID is required")
	}
	if o.IsStatementRef() {
		// A StatementRef carries a statement UUID, not an IRI.
		return nil
	}
	if o.ObjectType != "" && o.ObjectType != "Activity" {
		return invalid("unsupported object type %q", o.ObjectType)
	}
	if !shared.IsIRI(o.ID) {
		return invalid("activity ID %q is not an IRI", o.ID)
	}
	return nil
}

func validateResult(r *Result) error {
	if r.Score != nil {
		s := r.Score
		if s.Scaled != nil && (*s.Scaled < -1 || *s.Scaled > 1) {
			return invalid("scaled score %g outside [-1, 1]", *s.Scaled)
		}
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return invalid("score min %g exceeds max %g", *s.Min, *s.Max)
		}
		if s.Raw != nil {
			if s.Min != nil && *s.Raw < *s.Min {
				return invalid("raw score %g below min %g", *s.Raw, *s.Min)
			}
			if s.Max != nil && *s.Raw > *s.Max {
				return invalid("raw score %g above max %g", *s.Raw, *s.Max)
			}
		}
	}
	if r.Duration != "" {
		if !durationPattern.MatchString(r.Duration) || r.Duration == "P" || strings.HasSuffix(r.Duration, "T") {
			return invalid("duration %q is not ISO-8601", r.Duration)
		}
	}
	return nil
}
