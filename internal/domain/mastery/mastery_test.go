package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func TestNewMastery(t *testing.T) {
	m := NewMastery("learner-1", "comp-tones")

	assert.Equal(t, StateUntouched, m.State)
	assert.Zero(t, m.Value)
	assert.Zero(t, m.Attempts)
	assert.Nil(t, m.MasteredAt)
}

func TestApply_FirstAnswer(t *testing.T) {
	m := NewMastery("learner-1", "comp-tones")
	now := time.Now()

	old, next, err := m.Apply(1.0, 0.5, now)
	require.NoError(t, err)

	assert.Equal(t, StateUntouched, old)
	assert.Equal(t, StateLearning, next)
	// w = 0.3 * (1+0.5)/2 = 0.225 on a fresh record.
	assert.InDelta(t, 0.225, m.Value, 1e-9)
	assert.Equal(t, 1, m.Attempts)
	assert.Equal(t, 1, m.CorrectCount)
	assert.Equal(t, now, m.LastPracticedAt)
}

func TestApply_InvalidScore(t *testing.T) {
	m := NewMastery("learner-1", "comp-tones")

	_, _, err := m.Apply(1.5, 0.5, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidScore)

	_, _, err = m.Apply(-0.1, 0.5, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidScore)
	assert.Zero(t, m.Attempts, "rejected evidence must not count")
}

func TestApply_DifficultyClamped(t *testing.T) {
	m := NewMastery("learner-1", "comp-tones")

	_, _, err := m.Apply(1.0, 3.0, time.Now())
	require.NoError(t, err)
	// Clamped to difficulty 1: w = 0.3.
	assert.InDelta(t, 0.3, m.Value, 1e-9)
}

func TestApply_EvidenceWeightShrinks(t *testing.T) {
	m := NewMastery("learner-1", "comp-tones")
	m.Attempts = WeightHalfLifeAttempts

	w := m.evidenceWeight(1.0)
	assert.InDelta(t, 0.15, w, 1e-9, "weight halves after ten attempts")
}

func TestApply_ReachesMastered(t *testing.T) {
	m := NewMastery("learner-1", "comp-tones")
	now := time.Now()

	var states []State
	for i := 0; i < 20; i++ {
		_, next, err := m.Apply(1.0, 1.0, now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		states = append(states, next)
	}

	assert.Equal(t, StateMastered, m.State)
	require.NotNil(t, m.MasteredAt)
	assert.GreaterOrEqual(t, m.Attempts, MasteredMinAttempts)

	// Once per record: the timestamp does not move on later evidence.
	first := *m.MasteredAt
	_, _, err := m.Apply(1.0, 1.0, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, *m.MasteredAt)

	// The learner must pass through learning before proficient.
	assert.Equal(t, StateLearning, states[0])
}

func TestApply_HighValueFewAttemptsIsProficientNotMastered(t *testing.T) {
	m := NewMastery("learner-1", "comp-tones")
	m.Value = 0.95
	m.Peak = 0.95
	m.Attempts = 2
	m.State = StateProficient

	_, next, err := m.Apply(1.0, 1.0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StateProficient, next, "mastered needs %d attempts", MasteredMinAttempts)
}

func TestDecayedValue(t *testing.T) {
	now := time.Now()
	m := NewMastery("learner-1", "comp-tones")
	m.Value = 0.9
	m.Peak = 0.9
	m.Attempts = 10
	m.State = StateMastered
	m.LastPracticedAt = now.Add(-DefaultDecayHalfLife)

	// After one half-life the decayable part (value - floor) halves.
	floor := 0.9 * DecayFloorRatio
	want := floor + (0.9-floor)*0.5
	assert.InDelta(t, want, m.DecayedValue(now, DefaultDecayHalfLife), 1e-6)

	// Original record untouched.
	assert.InDelta(t, 0.9, m.Value, 1e-9)
}

func TestDecayedValue_NeverBelowFloor(t *testing.T) {
	now := time.Now()
	m := NewMastery("learner-1", "comp-tones")
	m.Value = 0.9
	m.Peak = 0.9
	m.Attempts = 10
	m.LastPracticedAt = now.Add(-10 * 365 * 24 * time.Hour)

	floor := 0.9 * DecayFloorRatio
	got := m.DecayedValue(now, DefaultDecayHalfLife)
	assert.GreaterOrEqual(t, got, floor)
	assert.InDelta(t, floor, got, 1e-3)
}

func TestDecayedValue_UntouchedAndFuture(t *testing.T) {
	now := time.Now()

	m := NewMastery("learner-1", "comp-tones")
	assert.Zero(t, m.DecayedValue(now, DefaultDecayHalfLife))

	m.Value = 0.8
	m.Peak = 0.8
	m.Attempts = 3
	m.LastPracticedAt = now.Add(time.Hour)
	assert.InDelta(t, 0.8, m.DecayedValue(now, DefaultDecayHalfLife), 1e-9,
		"clock skew must not inflate the estimate")
}

func TestApplyDecay_BecomesRusty(t *testing.T) {
	now := time.Now()
	m := NewMastery("learner-1", "comp-tones")
	m.Value = 0.8
	m.Peak = 0.8
	m.Attempts = 10
	m.State = StateProficient
	m.LastPracticedAt = now.Add(-3 * DefaultDecayHalfLife)

	becameRusty := m.ApplyDecay(now, DefaultDecayHalfLife)
	assert.True(t, becameRusty)
	assert.Equal(t, StateRusty, m.State)
	assert.Less(t, m.Value, RustyThreshold)

	// Decaying again does not report a second transition.
	assert.False(t, m.ApplyDecay(now.Add(24*time.Hour), DefaultDecayHalfLife))
}

func TestApplyDecay_LearningNeverRusty(t *testing.T) {
	now := time.Now()
	m := NewMastery("learner-1", "comp-tones")
	m.Value = 0.5
	m.Peak = 0.5
	m.Attempts = 3
	m.State = StateLearning
	m.LastPracticedAt = now.Add(-5 * DefaultDecayHalfLife)

	assert.False(t, m.ApplyDecay(now, DefaultDecayHalfLife))
	assert.Equal(t, StateLearning, m.State)
}

func TestApply_RecoversFromRusty(t *testing.T) {
	now := time.Now()
	m := NewMastery("learner-1", "comp-tones")
	m.Value = 0.5
	m.Peak = 0.9
	m.Attempts = 12
	m.State = StateRusty
	m.LastPracticedAt = now.Add(-60 * 24 * time.Hour)

	// A run of correct answers climbs back out.
	for i := 0; i < 15; i++ {
		_, _, err := m.Apply(1.0, 1.0, now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	assert.NotEqual(t, StateRusty, m.State)
	assert.GreaterOrEqual(t, m.Value, ProficientThreshold)
}

func TestOverdueness(t *testing.T) {
	now := time.Now()
	m := NewMastery("learner-1", "comp-tones")
	m.LastPracticedAt = now.Add(-2 * DefaultDecayHalfLife)

	assert.InDelta(t, 2.0, m.Overdueness(now, DefaultDecayHalfLife), 1e-6)
	assert.Zero(t, NewMastery("l", "c").Overdueness(now, DefaultDecayHalfLife))
}

func TestAccuracy(t *testing.T) {
	m := NewMastery("learner-1", "comp-tones")
	assert.Zero(t, m.Accuracy())

	m.Attempts = 4
	m.CorrectCount = 3
	assert.InDelta(t, 0.75, m.Accuracy(), 1e-9)
}
