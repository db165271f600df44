package leaderboard

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// Snapshots are the read model: the rebuild job writes one per scope,
// queries serve from the latest, and rank changes are computed against
// the previous one.
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is a scoped leaderboard frozen at a point in time.
type Snapshot struct {
	ID    string
	Scope Scope

	SnapshotAt time.Time

	TotalLearners int
	TotalXP       int

	// Entries are sorted by rank.
	Entries []*Entry

	byID map[string]*Entry
}

// NewSnapshot freezes a ranking. The ranking must already be sorted.
func NewSnapshot(id string, scope Scope, ranking *Ranking, at time.Time) *Snapshot {
	s := &Snapshot{
		ID:         id,
		Scope:      scope,
		SnapshotAt: at,
		byID:       make(map[string]*Entry),
	}
	if ranking == nil {
		return s
	}

	s.Entries = ranking.All()
	s.TotalLearners = len(s.Entries)
	for _, e := range s.Entries {
		s.byID[e.LearnerID] = e
		s.TotalXP += int(e.XP)
	}
	return s
}

// GetByID finds a learner's entry in the snapshot.
func (s *Snapshot) GetByID(learnerID string) *Entry {
	if s.byID == nil {
		s.reindex()
	}
	return s.byID[learnerID]
}

// reindex rebuilds the lookup map, needed after loading from storage.
func (s *Snapshot) reindex() {
	s.byID = make(map[string]*Entry, len(s.Entries))
	for _, e := range s.Entries {
		s.byID[e.LearnerID] = e
	}
}

// Top returns the first n entries.
func (s *Snapshot) Top(n int) []*Entry {
	if n <= 0 || len(s.Entries) == 0 {
		return nil
	}
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	out := make([]*Entry, n)
	copy(out, s.Entries[:n])
	return out
}

// Page returns one page of entries; page starts at 1.
func (s *Snapshot) Page(page, pageSize int) []*Entry {
	if page < 1 || pageSize <= 0 {
		return nil
	}
	from := (page - 1) * pageSize
	if from >= len(s.Entries) {
		return nil
	}
	to := from + pageSize
	if to > len(s.Entries) {
		to = len(s.Entries)
	}
	out := make([]*Entry, to-from)
	copy(out, s.Entries[from:to])
	return out
}

// Neighbors returns the learner and up to radius entries on each side.
// Positions are found by scanning, not by rank arithmetic, because
// shared ranks make rank numbers non-positional.
func (s *Snapshot) Neighbors(learnerID string, radius int) []*Entry {
	idx := -1
	for i, e := range s.Entries {
		if e.LearnerID == learnerID {
			idx = i
			break
		}
	}
	if idx < 0 || radius < 0 {
		return nil
	}
	from := idx - radius
	if from < 0 {
		from = 0
	}
	to := idx + radius + 1
	if to > len(s.Entries) {
		to = len(s.Entries)
	}
	out := make([]*Entry, to-from)
	copy(out, s.Entries[from:to])
	return out
}

// AverageXP returns the mean XP over the snapshot.
func (s *Snapshot) AverageXP() int {
	if s.TotalLearners == 0 {
		return 0
	}
	return s.TotalXP / s.TotalLearners
}

// ApplyRankChanges fills RankChange and IsNew on every entry by
// comparing against the previous snapshot of the same scope. A nil
// previous marks every entry new.
func (s *Snapshot) ApplyRankChanges(previous *Snapshot) {
	for _, e := range s.Entries {
		if previous == nil {
			e.IsNew = true
			continue
		}
		old := previous.GetByID(e.LearnerID)
		if old == nil {
			e.IsNew = true
			continue
		}
		// Climbing means the rank number got smaller.
		e.RankChange = RankChange(int(old.Rank) - int(e.Rank))
	}
}

// Movers returns entries whose position changed by at least threshold,
// for rank-change notifications.
func (s *Snapshot) Movers(threshold int) []*Entry {
	if threshold < 1 {
		threshold = 1
	}
	var out []*Entry
	for _, e := range s.Entries {
		if e.RankChange.Abs() >= threshold {
			out = append(out, e)
		}
	}
	return out
}

// SnapshotMeta is the listing row for snapshot history queries.
type SnapshotMeta struct {
	ID            string
	Scope         Scope
	SnapshotAt    time.Time
	TotalLearners int
	TotalXP       int
}
