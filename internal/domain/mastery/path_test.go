package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record builds a mastery record with a given raw value, practiced
// recently enough that decay is negligible.
func record(learnerID, compID string, value float64, state State, now time.Time) *Mastery {
	return &Mastery{
		LearnerID:       learnerID,
		CompetencyID:    compID,
		Value:           value,
		Peak:            value,
		State:           state,
		Attempts:        10,
		LastPracticedAt: now.Add(-time.Minute),
	}
}

func thaiBasicsGraph() *Graph {
	return NewGraph([]*Competency{
		comp("consonants"),
		comp("vowels"),
		comp("tones", "consonants", "vowels"),
		comp("vocab-food", "consonants"),
		comp("reading", "tones"),
	})
}

func TestRecommend_FrontierOnly(t *testing.T) {
	now := time.Now()
	g := thaiBasicsGraph()
	records := map[string]*Mastery{
		"consonants": record("l1", "consonants", 0.9, StateMastered, now),
		"vowels":     record("l1", "vowels", 0.7, StateLearning, now),
	}

	path := Recommend(g, records, now, PathOptions{})
	require.NotEmpty(t, path.Slots)

	ids := make(map[string]SlotKind, len(path.Slots))
	for _, s := range path.Slots {
		ids[s.CompetencyID] = s.Kind
	}

	// Both prerequisites of tones are above the unlock threshold.
	assert.Contains(t, ids, "tones")
	assert.Contains(t, ids, "vocab-food")
	// reading is gated on tones, which is untouched.
	assert.NotContains(t, ids, "reading")
	// Mastered consonants is not re-recommended.
	assert.NotContains(t, ids, "consonants")
	// vowels is still below proficient with no prerequisites: frontier.
	assert.Equal(t, SlotFrontier, ids["vowels"])
}

func TestRecommend_RankedByReadiness(t *testing.T) {
	now := time.Now()
	g := thaiBasicsGraph()
	records := map[string]*Mastery{
		"consonants": record("l1", "consonants", 0.95, StateMastered, now),
		"vowels":     record("l1", "vowels", 0.8, StateProficient, now),
	}

	path := Recommend(g, records, now, PathOptions{})
	require.NotEmpty(t, path.Slots)

	var frontier []PathSlot
	for _, s := range path.Slots {
		if s.Kind == SlotFrontier {
			frontier = append(frontier, s)
		}
	}
	require.GreaterOrEqual(t, len(frontier), 2)

	// vocab-food has readiness 0.95 (one prerequisite), tones has the
	// mean 0.875. Higher readiness comes first.
	assert.Equal(t, "vocab-food", frontier[0].CompetencyID)
	assert.Equal(t, "tones", frontier[1].CompetencyID)
	assert.InDelta(t, 0.95, frontier[0].Readiness, 1e-2)
	assert.InDelta(t, 0.875, frontier[1].Readiness, 1e-2)
}

func TestRecommend_ReviewSlotsFirstMostOverdue(t *testing.T) {
	now := time.Now()
	g := thaiBasicsGraph()

	rustyOld := record("l1", "consonants", 0.5, StateRusty, now)
	rustyOld.LastPracticedAt = now.Add(-90 * 24 * time.Hour)
	rustyNew := record("l1", "vowels", 0.5, StateRusty, now)
	rustyNew.LastPracticedAt = now.Add(-45 * 24 * time.Hour)

	records := map[string]*Mastery{
		"consonants": rustyOld,
		"vowels":     rustyNew,
	}

	path := Recommend(g, records, now, PathOptions{})
	require.GreaterOrEqual(t, len(path.Slots), 2)

	assert.Equal(t, SlotReview, path.Slots[0].Kind)
	assert.Equal(t, "consonants", path.Slots[0].CompetencyID, "most overdue reviewed first")
	assert.Equal(t, SlotReview, path.Slots[1].Kind)
	assert.Equal(t, "vowels", path.Slots[1].CompetencyID)
}

func TestRecommend_ReviewCapped(t *testing.T) {
	now := time.Now()
	g := NewGraph([]*Competency{
		comp("a"), comp("b"), comp("c"),
	})
	records := map[string]*Mastery{}
	for _, id := range []string{"a", "b", "c"} {
		r := record("l1", id, 0.5, StateRusty, now)
		r.LastPracticedAt = now.Add(-60 * 24 * time.Hour)
		records[id] = r
	}

	path := Recommend(g, records, now, PathOptions{})

	reviews := 0
	for _, s := range path.Slots {
		if s.Kind == SlotReview {
			reviews++
		}
	}
	assert.Equal(t, DefaultReviewSlots, reviews)
}

func TestRecommend_ReviewDefaultsWithExplicitMaxSlots(t *testing.T) {
	now := time.Now()
	g := NewGraph([]*Competency{comp("a"), comp("b")})

	rusty := record("l1", "a", 0.5, StateRusty, now)
	rusty.LastPracticedAt = now.Add(-60 * 24 * time.Hour)

	// Callers that only cap the total size still get review slots.
	path := Recommend(g, map[string]*Mastery{"a": rusty}, now, PathOptions{MaxSlots: 4})

	require.NotEmpty(t, path.Slots)
	assert.Equal(t, SlotReview, path.Slots[0].Kind)
	assert.Equal(t, "a", path.Slots[0].CompetencyID)
}

func TestDecayProfile_SurfacesRustyBeforeNightlyJob(t *testing.T) {
	now := time.Now()
	g := NewGraph([]*Competency{comp("a")})

	// Proficient three half-lives ago; the stored state is stale.
	lapsed := record("l1", "a", 0.96, StateProficient, now)
	lapsed.LastPracticedAt = now.Add(-90 * 24 * time.Hour)
	records := map[string]*Mastery{"a": lapsed}

	DecayProfile(g, records, now)
	assert.Equal(t, StateRusty, lapsed.State)
	assert.Less(t, lapsed.Value, RustyThreshold)

	path := Recommend(g, records, now, PathOptions{})
	require.NotEmpty(t, path.Slots)
	assert.Equal(t, SlotReview, path.Slots[0].Kind, "lapsed competency is a review slot, not frontier")
}

func TestRecommend_MaxSlots(t *testing.T) {
	now := time.Now()
	var comps []*Competency
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		comps = append(comps, comp(id))
	}
	g := NewGraph(comps)

	path := Recommend(g, nil, now, PathOptions{MaxSlots: 3})
	assert.Len(t, path.Slots, 3)
}

func TestRecommend_RestrictToCourse(t *testing.T) {
	now := time.Now()
	g := thaiBasicsGraph()

	path := Recommend(g, nil, now, PathOptions{
		Restrict: map[string]bool{"consonants": true, "vowels": true},
	})

	for _, s := range path.Slots {
		assert.Contains(t, []string{"consonants", "vowels"}, s.CompetencyID)
	}
	assert.Len(t, path.Slots, 2)
}

func TestRecommend_DecayGatesUnlock(t *testing.T) {
	now := time.Now()
	g := NewGraph([]*Competency{
		comp("base"),
		comp("next", "base"),
	})

	// Raw value above the unlock threshold, but practiced long ago so
	// the decayed estimate falls below it.
	stale := record("l1", "base", 0.65, StateProficient, now)
	stale.LastPracticedAt = now.Add(-6 * DefaultDecayHalfLife)

	path := Recommend(g, map[string]*Mastery{"base": stale}, now, PathOptions{})

	for _, s := range path.Slots {
		assert.NotEqual(t, "next", s.CompetencyID, "stale prerequisite must not unlock dependents")
	}
}

func TestRecommend_EmptyGraph(t *testing.T) {
	path := Recommend(NewGraph(nil), nil, time.Now(), PathOptions{})
	assert.Empty(t, path.Slots)
}
