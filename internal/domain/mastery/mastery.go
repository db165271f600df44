// Package mastery implements the adaptive learning engine: per-competency
// mastery estimation, time decay, the prerequisite graph, and the learning
// path recommendation built on top of them.
//
// The estimate is an exponential moving average over graded evidence.
// New evidence moves the estimate by a weight that grows with question
// difficulty and shrinks as the attempt count grows - an established
// estimate should not be overturned by a single lucky or unlucky answer.
package mastery

import (
	"math"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATES
// ══════════════════════════════════════════════════════════════════════════════

// State describes where a learner stands on one competency.
type State string

const (
	// StateUntouched - no graded evidence yet.
	StateUntouched State = "untouched"
	// StateLearning - below the proficiency threshold.
	StateLearning State = "learning"
	// StateProficient - at or above ProficientThreshold.
	StateProficient State = "proficient"
	// StateMastered - at or above MasteredThreshold with enough attempts.
	StateMastered State = "mastered"
	// StateRusty - was proficient or better, decayed below RustyThreshold.
	StateRusty State = "rusty"
)

// IsValid checks the state value.
func (s State) IsValid() bool {
	switch s {
	case StateUntouched, StateLearning, StateProficient, StateMastered, StateRusty:
		return true
	default:
		return false
	}
}

// Engine thresholds and tuning constants.
const (
	// ProficientThreshold promotes learning -> proficient.
	ProficientThreshold = 0.75
	// MasteredThreshold promotes proficient -> mastered.
	MasteredThreshold = 0.9
	// MasteredMinAttempts guards against mastering off two lucky answers.
	MasteredMinAttempts = 5
	// RustyThreshold demotes a decayed proficient/mastered competency.
	RustyThreshold = 0.6
	// UnlockThreshold is the prerequisite mastery needed to open a
	// dependent competency in the learning path.
	UnlockThreshold = 0.6

	// BaseWeight is the evidence weight for an average-difficulty answer
	// on a fresh competency.
	BaseWeight = 0.3
	// WeightHalfLifeAttempts halves the evidence weight; after 10
	// attempts new evidence moves the estimate half as much.
	WeightHalfLifeAttempts = 10

	// DecayFloorRatio is the fraction of peak mastery that decay
	// asymptotically approaches. Skills fade, they do not vanish.
	DecayFloorRatio = 0.3
	// DefaultDecayHalfLife is the default time for the decayable part
	// of the estimate to halve.
	DefaultDecayHalfLife = 30 * 24 * time.Hour
)

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Mastery holds the learner's estimate for one competency.
type Mastery struct {
	LearnerID    string
	CompetencyID string

	// Value is the current estimate in [0,1], decay not applied.
	Value float64

	// Peak is the highest estimate ever reached; the decay floor is
	// derived from it.
	Peak float64

	State State

	Attempts     int
	CorrectCount int

	// LastPracticedAt anchors decay.
	LastPracticedAt time.Time

	// MasteredAt is set the first time the competency is mastered.
	MasteredAt *time.Time

	UpdatedAt time.Time
}

// NewMastery returns an untouched record.
func NewMastery(learnerID, competencyID string) *Mastery {
	return &Mastery{
		LearnerID:    learnerID,
		CompetencyID: competencyID,
		State:        StateUntouched,
	}
}

// Accuracy returns the lifetime correct ratio.
func (m *Mastery) Accuracy() float64 {
	if m.Attempts == 0 {
		return 0
	}
	return float64(m.CorrectCount) / float64(m.Attempts)
}

// evidenceWeight computes how far one graded answer moves the estimate.
func (m *Mastery) evidenceWeight(difficulty float64) float64 {
	w := BaseWeight * (1 + difficulty) / 2
	// Halve the weight every WeightHalfLifeAttempts attempts.
	w *= math.Pow(0.5, float64(m.Attempts)/float64(WeightHalfLifeAttempts))
	return w
}

// Apply folds one graded answer into the estimate and returns the state
// transition. Score must be in [0,1].
func (m *Mastery) Apply(score, difficulty float64, at time.Time) (oldState, newState State, err error) {
	if score < 0 || score > 1 {
		return m.State, m.State, shared.ErrInvalidScore
	}
	if difficulty < 0 {
		difficulty = 0
	}
	if difficulty > 1 {
		difficulty = 1
	}

	oldState = m.State

	w := m.evidenceWeight(difficulty)
	m.Value = m.Value*(1-w) + score*w
	if m.Value > m.Peak {
		m.Peak = m.Value
	}

	m.Attempts++
	if score >= 1 {
		m.CorrectCount++
	}
	m.LastPracticedAt = at
	m.UpdatedAt = at

	m.State = m.classify()
	if m.State == StateMastered && m.MasteredAt == nil {
		t := at
		m.MasteredAt = &t
	}
	return oldState, m.State, nil
}

// classify maps the current value and history onto a state.
// Rusty is only reachable through decay, never through fresh evidence.
func (m *Mastery) classify() State {
	switch {
	case m.Attempts == 0:
		return StateUntouched
	case m.Value >= MasteredThreshold && m.Attempts >= MasteredMinAttempts:
		return StateMastered
	case m.Value >= ProficientThreshold:
		return StateProficient
	default:
		return StateLearning
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DECAY
// ══════════════════════════════════════════════════════════════════════════════

// DecayedValue returns the estimate with exponential time decay applied,
// without mutating the record. The decayable part of the estimate halves
// every halfLife; the floor (DecayFloorRatio * Peak) never decays.
func (m *Mastery) DecayedValue(now time.Time, halfLife time.Duration) float64 {
	if m.Attempts == 0 || m.LastPracticedAt.IsZero() {
		return m.Value
	}
	elapsed := now.Sub(m.LastPracticedAt)
	if elapsed <= 0 {
		return m.Value
	}
	if halfLife <= 0 {
		halfLife = DefaultDecayHalfLife
	}

	floor := m.Peak * DecayFloorRatio
	if m.Value <= floor {
		return m.Value
	}

	factor := math.Pow(0.5, elapsed.Hours()/halfLife.Hours())
	return floor + (m.Value-floor)*factor
}

// ApplyDecay persists the decayed value and returns true when the record
// newly became rusty. Called lazily on read and by the nightly decay job.
func (m *Mastery) ApplyDecay(now time.Time, halfLife time.Duration) (becameRusty bool) {
	decayed := m.DecayedValue(now, halfLife)
	if decayed >= m.Value {
		return false
	}
	m.Value = decayed
	m.UpdatedAt = now

	wasProficient := m.State == StateProficient || m.State == StateMastered
	if wasProficient && decayed < RustyThreshold {
		m.State = StateRusty
		return true
	}
	if m.State != StateRusty {
		m.State = m.classify()
	}
	return false
}

// IsRusty reports whether the record is in the rusty state.
func (m *Mastery) IsRusty() bool {
	return m.State == StateRusty
}

// Overdueness ranks rusty competencies for review: how far past the
// half-life the competency is. Larger means more urgent.
func (m *Mastery) Overdueness(now time.Time, halfLife time.Duration) float64 {
	if m.LastPracticedAt.IsZero() {
		return 0
	}
	if halfLife <= 0 {
		halfLife = DefaultDecayHalfLife
	}
	return now.Sub(m.LastPracticedAt).Hours() / halfLife.Hours()
}
