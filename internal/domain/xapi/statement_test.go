package xapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func f64(v float64) *float64 { return &v }

func validStatement() *Statement {
	return &Statement{
		Actor: Agent{Name: "Nok", Mbox: "mailto:nok@example.com"},
		Verb: Verb{
			ID:      VerbCompleted,
			Display: map[string]string{"en-US": "completed", "th-TH": "เรียนจบ"},
		},
		Object: Object{
			ID: "https://rianhub.dev/xapi/activities/lesson/lesson-1",
			Definition: &ActivityDefinition{
				Name: map[string]string{"en-US": "Thai Tones", "th-TH": "วรรณยุกต์ไทย"},
			},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(validStatement()))
}

func TestValidate_Actor(t *testing.T) {
	s := validStatement()
	s.Actor = Agent{Name: "Nok"}
	assert.ErrorIs(t, Validate(s), shared.ErrStatementInvalid)

	s.Actor = Agent{Mbox: "nok@example.com"}
	assert.ErrorIs(t, Validate(s), shared.ErrStatementInvalid)

	s.Actor = Agent{
		Mbox:    "mailto:nok@example.com",
		Account: &Account{HomePage: "https://rianhub.dev", Name: "nok"},
	}
	assert.ErrorIs(t, Validate(s), shared.ErrStatementInvalid)

	s.Actor = Agent{Account: &Account{HomePage: "https://rianhub.dev", Name: "nok"}}
	assert.NoError(t, Validate(s))

	s.Actor = Agent{Account: &Account{HomePage: "not-an-iri", Name: "nok"}}
	assert.ErrorIs(t, Validate(s), shared.ErrStatementInvalid)
}

func TestValidate_VerbAndObjectIRIs(t *testing.T) {
	s := validStatement()
	s.Verb.ID = "completed"
	assert.ErrorIs(t, Validate(s), shared.ErrStatementInvalid)

	s = validStatement()
	s.Object.ID = "lesson-1"
	assert.ErrorIs(t, Validate(s), shared.ErrStatementInvalid)

	s = validStatement()
	s.Object.ObjectType = "Group"
	assert.ErrorIs(t, Validate(s), shared.ErrStatementInvalid)
}

func TestValidate_Result(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		wantOK bool
	}{
		{"scaled in range", &Result{Score: &ResultScore{Scaled: f64(0.85)}}, true},
		{"scaled too high", &Result{Score: &ResultScore{Scaled: f64(1.1)}}, false},
		{"scaled negative ok", &Result{Score: &ResultScore{Scaled: f64(-1)}}, true},
		{"raw inside bounds", &Result{Score: &ResultScore{Raw: f64(7), Min: f64(0), Max: f64(10)}}, true},
		{"raw above max", &Result{Score: &ResultScore{Raw: f64(11), Min: f64(0), Max: f64(10)}}, false},
		{"min above max", &Result{Score: &ResultScore{Min: f64(5), Max: f64(1)}}, false},
		{"duration ok", &Result{Duration: "PT4M30S"}, true},
		{"duration days", &Result{Duration: "P1DT2H"}, true},
		{"duration garbage", &Result{Duration: "4m30s"}, false},
		{"duration bare P", &Result{Duration: "P"}, false},
		{"duration trailing T", &Result{Duration: "P1DT"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStatement()
			s.Result = tt.result
			err := Validate(s)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, shared.ErrStatementInvalid)
			}
		})
	}
}

func TestVoiding(t *testing.T) {
	v := &Statement{
		Actor: Agent{Mbox: "mailto:admin@rianhub.dev"},
		Verb:  Verb{ID: VerbVoided},
		Object: Object{
			ObjectType: "StatementRef",
			ID:         "6bd15b4a-9d5c-4a3e-8f50-1b7de9f9a001",
		},
	}
	require.NoError(t, Validate(v))
	assert.True(t, v.IsVoiding())
	assert.Equal(t, "6bd15b4a-9d5c-4a3e-8f50-1b7de9f9a001", v.VoidedTargetID())

	// voided verb with a plain activity object is malformed.
	bad := validStatement()
	bad.Verb.ID = VerbVoided
	assert.ErrorIs(t, Validate(bad), shared.ErrStatementInvalid)

	// A non-voiding statement has no target.
	assert.Empty(t, validStatement().VoidedTargetID())
}

func TestPrepare(t *testing.T) {
	now := time.Now().UTC()

	s := validStatement()
	s.Prepare("server-id", now)
	assert.Equal(t, "server-id", s.ID)
	assert.Equal(t, now, s.Stored)
	assert.Equal(t, now, s.Timestamp, "timestamp defaults to stored")

	// Client-supplied ID and timestamp survive.
	earlier := now.Add(-time.Hour)
	s = validStatement()
	s.ID = "client-id"
	s.Timestamp = earlier
	s.Prepare("server-id", now)
	assert.Equal(t, "client-id", s.ID)
	assert.Equal(t, earlier, s.Timestamp)
}

func TestAgent_Key(t *testing.T) {
	assert.Equal(t, "mailto:nok@example.com", Agent{Mbox: "mailto:nok@example.com"}.Key())
	assert.Equal(t, "https://rianhub.dev|nok",
		Agent{Account: &Account{HomePage: "https://rianhub.dev", Name: "nok"}}.Key())
	assert.Empty(t, Agent{Name: "Nok"}.Key())
}
