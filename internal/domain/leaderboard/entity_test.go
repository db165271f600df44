package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func entry(learnerID string, xp int) *Entry {
	return &Entry{
		LearnerID:   learnerID,
		DisplayName: learnerID,
		XP:          shared.XP(xp),
	}
}

func TestScope(t *testing.T) {
	assert.True(t, ScopeGlobal.IsGlobal())
	assert.Equal(t, "global", ScopeGlobal.Key())

	s := ScopeCourse("course-1")
	assert.False(t, s.IsGlobal())
	assert.Equal(t, "course:course-1", s.Key())
}

func TestRanking_Add(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(entry("a", 100)))

	assert.ErrorIs(t, r.Add(entry("a", 200)), ErrDuplicateLearner)
	assert.ErrorIs(t, r.Add(nil), ErrNilEntry)
	assert.ErrorIs(t, r.Add(entry("", 10)), ErrInvalidLearnerID)
}

func TestRanking_SortByXP_SharedRanks(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(entry("a", 300)))
	require.NoError(t, r.Add(entry("b", 500)))
	require.NoError(t, r.Add(entry("c", 300)))
	require.NoError(t, r.Add(entry("d", 100)))

	r.SortByXP()
	all := r.All()
	require.Len(t, all, 4)

	assert.Equal(t, shared.Rank(1), all[0].Rank)
	assert.Equal(t, "b", all[0].LearnerID)

	// a and c tie on 300 and share rank 2.
	assert.Equal(t, shared.Rank(2), all[1].Rank)
	assert.Equal(t, shared.Rank(2), all[2].Rank)

	// The next distinct XP resumes at the true ordinal.
	assert.Equal(t, shared.Rank(4), all[3].Rank)
	assert.Equal(t, "d", all[3].LearnerID)
}

func TestSnapshot_Neighbors(t *testing.T) {
	r := NewRanking()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, r.Add(entry(id, 500-i*100)))
	}
	r.SortByXP()
	s := NewSnapshot("snap-1", ScopeGlobal, r, time.Now())

	n := s.Neighbors("c", 1)
	require.Len(t, n, 3)
	assert.Equal(t, "b", n[0].LearnerID)
	assert.Equal(t, "c", n[1].LearnerID)
	assert.Equal(t, "d", n[2].LearnerID)

	// Clamped at the edges.
	n = s.Neighbors("a", 2)
	require.Len(t, n, 3)
	assert.Equal(t, "a", n[0].LearnerID)

	assert.Nil(t, s.Neighbors("ghost", 1))
}

func TestSnapshot_NeighborsWithSharedRanks(t *testing.T) {
	// Four learners tie on 300, so rank numbers are non-positional
	// (1, 2, 2, 2, 2, 6); the window must still center on the learner.
	r := NewRanking()
	require.NoError(t, r.Add(entry("top", 900)))
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, r.Add(entry(id, 300)))
	}
	require.NoError(t, r.Add(entry("last", 100)))
	r.SortByXP()
	s := NewSnapshot("snap-2", ScopeGlobal, r, time.Now())

	n := s.Neighbors("c", 1)
	require.Len(t, n, 3)
	assert.Equal(t, "c", n[1].LearnerID)
}

func TestRanking_TopAndSlice(t *testing.T) {
	r := NewRanking()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Add(entry(id, 300-i*100)))
	}
	r.SortByXP()

	top := r.Top(2)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].LearnerID)

	assert.Len(t, r.Top(10), 3)
	assert.Nil(t, r.Top(0))
	assert.Nil(t, r.Slice(2, 1))
}

func TestSnapshot_ApplyRankChanges(t *testing.T) {
	now := time.Now()

	prev := NewRanking()
	require.NoError(t, prev.Add(entry("a", 500)))
	require.NoError(t, prev.Add(entry("b", 400)))
	require.NoError(t, prev.Add(entry("c", 300)))
	prev.SortByXP()
	prevSnap := NewSnapshot("s1", ScopeGlobal, prev, now.Add(-24*time.Hour))

	// c overtakes b; d appears.
	next := NewRanking()
	require.NoError(t, next.Add(entry("a", 600)))
	require.NoError(t, next.Add(entry("c", 500)))
	require.NoError(t, next.Add(entry("b", 450)))
	require.NoError(t, next.Add(entry("d", 100)))
	next.SortByXP()
	snap := NewSnapshot("s2", ScopeGlobal, next, now)

	snap.ApplyRankChanges(prevSnap)

	assert.Equal(t, RankChange(0), snap.GetByID("a").RankChange)
	assert.Equal(t, RankChange(1), snap.GetByID("c").RankChange)
	assert.Equal(t, RankChange(-1), snap.GetByID("b").RankChange)
	assert.True(t, snap.GetByID("d").IsNew)
	assert.Equal(t, RankDirectionUp, snap.GetByID("c").RankChange.Direction())
	assert.Equal(t, RankDirectionDown, snap.GetByID("b").RankChange.Direction())
}

func TestSnapshot_ApplyRankChanges_NoPrevious(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(entry("a", 100)))
	r.SortByXP()
	snap := NewSnapshot("s1", ScopeGlobal, r, time.Now())

	snap.ApplyRankChanges(nil)
	assert.True(t, snap.GetByID("a").IsNew)
}

func TestSnapshot_Movers(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(entry("a", 300)))
	require.NoError(t, r.Add(entry("b", 200)))
	r.SortByXP()
	snap := NewSnapshot("s1", ScopeGlobal, r, time.Now())
	snap.GetByID("a").RankChange = 5
	snap.GetByID("b").RankChange = -1

	movers := snap.Movers(3)
	require.Len(t, movers, 1)
	assert.Equal(t, "a", movers[0].LearnerID)
}

func TestSnapshot_PageAndStats(t *testing.T) {
	r := NewRanking()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, r.Add(entry(id, 500-i*100)))
	}
	r.SortByXP()
	snap := NewSnapshot("s1", ScopeCourse("course-1"), r, time.Now())

	page := snap.Page(2, 2)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].LearnerID)

	assert.Nil(t, snap.Page(4, 2))
	assert.Equal(t, 5, snap.TotalLearners)
	assert.Equal(t, 1500, snap.TotalXP)
	assert.Equal(t, 300, snap.AverageXP())
}
