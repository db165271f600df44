package mastery

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING PATH RECOMMENDATION
// The path has two kinds of slots, in the spirit of a study session plan:
// frontier slots (new competencies whose prerequisites are unlocked) and
// review slots (rusty competencies, most-overdue first).
// ══════════════════════════════════════════════════════════════════════════════

// SlotKind distinguishes why a competency was recommended.
type SlotKind string

const (
	// SlotFrontier - a new competency ready to be learned.
	SlotFrontier SlotKind = "frontier"
	// SlotReview - a rusty competency due for refreshing.
	SlotReview SlotKind = "review"
)

// PathSlot is one recommended competency.
type PathSlot struct {
	CompetencyID string   `json:"competency_id"`
	Kind         SlotKind `json:"kind"`

	// Mastery is the decayed current estimate.
	Mastery float64 `json:"mastery"`

	// Readiness is the mean decayed mastery of the prerequisites
	// (1 for competencies without prerequisites).
	Readiness float64 `json:"readiness"`
}

// Path is the ordered recommendation for one learner.
type Path struct {
	LearnerID   string     `json:"learner_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Slots       []PathSlot `json:"slots"`
}

// DefaultPathLength caps the recommendation size.
const DefaultPathLength = 5

// DefaultReviewSlots caps how many of those slots go to review.
const DefaultReviewSlots = 2

// PathOptions tunes Recommend.
type PathOptions struct {
	// MaxSlots caps the total slot count (default DefaultPathLength).
	MaxSlots int

	// MaxReview caps the review slots (default DefaultReviewSlots).
	MaxReview int

	// Restrict, when non-empty, limits recommendations to these
	// competencies (e.g. the competencies of one course).
	Restrict map[string]bool
}

// Recommend builds the learning path for a learner. The mastery map may
// be sparse: missing competencies count as untouched. Decay is applied
// via DecayedValue, so callers pass raw records.
func Recommend(g *Graph, records map[string]*Mastery, now time.Time, opts PathOptions) Path {
	maxSlots := opts.MaxSlots
	if maxSlots <= 0 {
		maxSlots = DefaultPathLength
	}
	maxReview := opts.MaxReview
	if maxReview <= 0 {
		maxReview = DefaultReviewSlots
	}
	if maxReview > maxSlots {
		maxReview = maxSlots
	}

	decayed := func(id string) float64 {
		rec, ok := records[id]
		if !ok {
			return 0
		}
		comp, err := g.Get(id)
		halfLife := DefaultDecayHalfLife
		if err == nil {
			halfLife = comp.HalfLife()
		}
		return rec.DecayedValue(now, halfLife)
	}

	include := func(id string) bool {
		return len(opts.Restrict) == 0 || opts.Restrict[id]
	}

	// Review slots: rusty competencies, most overdue first.
	var review []PathSlot
	for id, rec := range records {
		if !rec.IsRusty() || !include(id) {
			continue
		}
		review = append(review, PathSlot{
			CompetencyID: id,
			Kind:         SlotReview,
			Mastery:      decayed(id),
			Readiness:    1,
		})
	}
	sort.Slice(review, func(i, j int) bool {
		ri := records[review[i].CompetencyID]
		rj := records[review[j].CompetencyID]
		oi := ri.Overdueness(now, halfLifeFor(g, review[i].CompetencyID))
		oj := rj.Overdueness(now, halfLifeFor(g, review[j].CompetencyID))
		if oi != oj {
			return oi > oj
		}
		return review[i].CompetencyID < review[j].CompetencyID
	})
	if len(review) > maxReview {
		review = review[:maxReview]
	}

	// Frontier slots: every prerequisite unlocked, own mastery below
	// proficient, not already picked for review.
	inReview := make(map[string]bool, len(review))
	for _, s := range review {
		inReview[s.CompetencyID] = true
	}

	var frontier []PathSlot
	for _, comp := range g.All() {
		if !include(comp.ID) || inReview[comp.ID] {
			continue
		}
		own := decayed(comp.ID)
		if own >= ProficientThreshold {
			continue
		}

		ready := true
		readiness := 1.0
		if len(comp.PrerequisiteIDs) > 0 {
			sum := 0.0
			for _, pre := range comp.PrerequisiteIDs {
				pm := decayed(pre)
				if pm < UnlockThreshold {
					ready = false
					break
				}
				sum += pm
			}
			if ready {
				readiness = sum / float64(len(comp.PrerequisiteIDs))
			}
		}
		if !ready {
			continue
		}

		frontier = append(frontier, PathSlot{
			CompetencyID: comp.ID,
			Kind:         SlotFrontier,
			Mastery:      own,
			Readiness:    readiness,
		})
	}

	// Highest readiness first; among equals, lowest own mastery - start
	// where the ground is firmest and the need is greatest.
	sort.Slice(frontier, func(i, j int) bool {
		if frontier[i].Readiness != frontier[j].Readiness {
			return frontier[i].Readiness > frontier[j].Readiness
		}
		if frontier[i].Mastery != frontier[j].Mastery {
			return frontier[i].Mastery < frontier[j].Mastery
		}
		return frontier[i].CompetencyID < frontier[j].CompetencyID
	})

	slots := make([]PathSlot, 0, maxSlots)
	slots = append(slots, review...)
	for _, s := range frontier {
		if len(slots) >= maxSlots {
			break
		}
		slots = append(slots, s)
	}

	return Path{GeneratedAt: now, Slots: slots}
}

func halfLifeFor(g *Graph, id string) time.Duration {
	if comp, err := g.Get(id); err == nil {
		return comp.HalfLife()
	}
	return DefaultDecayHalfLife
}

// DecayProfile applies decay to every record in place, so reads see
// current values and rusty transitions without waiting for the nightly
// decay job. Only the job persists the result.
func DecayProfile(g *Graph, records map[string]*Mastery, now time.Time) {
	for id, rec := range records {
		rec.ApplyDecay(now, halfLifeFor(g, id))
	}
}
