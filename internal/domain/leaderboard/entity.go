// Package leaderboard holds the ranking model: scoped rankings built
// from learner XP, periodic snapshots, and rank-change tracking
// between snapshots.
package leaderboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Scope selects which ranking a query reads. The global scope ranks
// every active learner; a course scope ranks its enrollees.
type Scope struct {
	// CourseID is empty for the global leaderboard.
	CourseID string
}

// ScopeGlobal is the all-learners leaderboard.
var ScopeGlobal = Scope{}

// ScopeCourse builds a per-course scope.
func ScopeCourse(courseID string) Scope {
	return Scope{CourseID: courseID}
}

// IsGlobal reports whether this is the global scope.
func (s Scope) IsGlobal() bool {
	return s.CourseID == ""
}

// Key returns a stable identifier used in cache keys and snapshot rows.
func (s Scope) Key() string {
	if s.IsGlobal() {
		return "global"
	}
	return "course:" + s.CourseID
}

// RankChange is the position delta since the previous snapshot.
// Positive means the learner climbed.
type RankChange int

// Direction maps the delta onto a display direction.
func (rc RankChange) Direction() RankDirection {
	switch {
	case rc > 0:
		return RankDirectionUp
	case rc < 0:
		return RankDirectionDown
	default:
		return RankDirectionStable
	}
}

// Abs returns the magnitude of the change.
func (rc RankChange) Abs() int {
	if rc < 0 {
		return int(-rc)
	}
	return int(rc)
}

// RankDirection describes which way a learner moved.
type RankDirection string

const (
	RankDirectionUp     RankDirection = "up"
	RankDirectionDown   RankDirection = "down"
	RankDirectionStable RankDirection = "stable"
	RankDirectionNew    RankDirection = "new"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY & RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one row of a ranked leaderboard.
type Entry struct {
	Rank        shared.Rank `json:"rank"`
	LearnerID   string      `json:"learner_id"`
	DisplayName string      `json:"display_name"`
	XP          shared.XP   `json:"xp"`
	Level       int         `json:"level"`
	RankChange  RankChange  `json:"rank_change"`
	IsNew       bool        `json:"is_new"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Clone copies the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// String is the log representation.
func (e *Entry) String() string {
	return fmt.Sprintf("Entry{Rank: %d, Learner: %s, XP: %d, Change: %+d}",
		e.Rank, e.LearnerID, e.XP, int(e.RankChange))
}

// Ranking is a mutable, unsorted collection of entries that SortByXP
// turns into a ranked list. Ties share a rank.
type Ranking struct {
	entries []*Entry
	byID    map[string]*Entry
}

// NewRanking returns an empty ranking.
func NewRanking() *Ranking {
	return &Ranking{byID: make(map[string]*Entry)}
}

// Add appends a learner. Duplicate learners are rejected.
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return ErrNilEntry
	}
	if entry.LearnerID == "" {
		return ErrInvalidLearnerID
	}
	if _, ok := r.byID[entry.LearnerID]; ok {
		return ErrDuplicateLearner
	}
	r.entries = append(r.entries, entry)
	r.byID[entry.LearnerID] = entry
	return nil
}

// SortByXP orders entries by XP descending and assigns ranks.
// Equal XP shares a rank; the next distinct XP resumes at the true
// ordinal (1, 2, 2, 4).
func (r *Ranking) SortByXP() {
	sort.Slice(r.entries, func(i, j int) bool {
		if r.entries[i].XP != r.entries[j].XP {
			return r.entries[i].XP > r.entries[j].XP
		}
		return r.entries[i].LearnerID < r.entries[j].LearnerID
	})

	for i, entry := range r.entries {
		if i > 0 && entry.XP == r.entries[i-1].XP {
			entry.Rank = r.entries[i-1].Rank
		} else {
			entry.Rank = shared.Rank(i + 1)
		}
	}
}

// GetByID finds a learner's entry.
func (r *Ranking) GetByID(learnerID string) *Entry {
	return r.byID[learnerID]
}

// Top copies out the first n entries.
func (r *Ranking) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]*Entry, n)
	copy(out, r.entries[:n])
	return out
}

// Slice copies out entries [from:to).
func (r *Ranking) Slice(from, to int) []*Entry {
	if from < 0 {
		from = 0
	}
	if to > len(r.entries) {
		to = len(r.entries)
	}
	if from >= to {
		return nil
	}
	out := make([]*Entry, to-from)
	copy(out, r.entries[from:to])
	return out
}

// Count returns the entry count.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// All copies out every entry in rank order.
func (r *Ranking) All() []*Entry {
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrInvalidLearnerID = shared.NewDomainError("leaderboard", "Add", shared.ErrEmptyValue, "learner ID cannot be empty")
	ErrNilEntry         = shared.NewDomainError("leaderboard", "Add", shared.ErrValidation, "cannot add nil entry")
	ErrDuplicateLearner = shared.NewDomainError("leaderboard", "Add", shared.ErrAlreadyExists, "learner already in ranking")
	ErrSnapshotNotFound = shared.NewDomainError("leaderboard", "Find", shared.ErrNotFound, "leaderboard snapshot not found")
)
