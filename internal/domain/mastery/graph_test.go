package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func comp(id string, prereqs ...string) *Competency {
	return &Competency{
		ID:              id,
		Name:            shared.LocalizedText{Th: "ทักษะ " + id, En: "skill " + id},
		PrerequisiteIDs: prereqs,
	}
}

func TestCompetency_Validate(t *testing.T) {
	c := comp("consonants")
	require.NoError(t, c.Validate())

	assert.Error(t, comp("").Validate())

	c = comp("tones")
	c.Name = shared.LocalizedText{}
	assert.ErrorIs(t, c.Validate(), shared.ErrMissingTranslation)

	c = comp("vowels", "vowels")
	assert.ErrorIs(t, c.Validate(), shared.ErrSelfPrerequisite)
}

func TestCompetency_HalfLife(t *testing.T) {
	c := comp("vocab")
	assert.Equal(t, DefaultDecayHalfLife, c.HalfLife())

	c.DecayHalfLife = 7 * 24 * time.Hour
	assert.Equal(t, 7*24*time.Hour, c.HalfLife())
}

func TestGraph_ValidateAcyclic(t *testing.T) {
	g := NewGraph([]*Competency{
		comp("consonants"),
		comp("vowels"),
		comp("tones", "consonants", "vowels"),
		comp("reading", "tones"),
	})
	assert.NoError(t, g.ValidateAcyclic())
}

func TestGraph_ValidateAcyclic_DetectsCycle(t *testing.T) {
	g := NewGraph([]*Competency{
		comp("a", "c"),
		comp("b", "a"),
		comp("c", "b"),
	})
	err := g.ValidateAcyclic()
	assert.ErrorIs(t, err, shared.ErrPrerequisiteCycle)
}

func TestGraph_ValidateReferences(t *testing.T) {
	g := NewGraph([]*Competency{
		comp("tones", "ghost"),
	})
	assert.Error(t, g.ValidateReferences())

	g = NewGraph([]*Competency{
		comp("consonants"),
		comp("tones", "consonants"),
	})
	assert.NoError(t, g.ValidateReferences())
}

func TestGraph_CanAddPrerequisite(t *testing.T) {
	g := NewGraph([]*Competency{
		comp("consonants"),
		comp("tones", "consonants"),
		comp("reading", "tones"),
	})

	// reading -> consonants is fine, consonants does not depend on reading.
	assert.NoError(t, g.CanAddPrerequisite("reading", "consonants"))

	// consonants -> reading would close a cycle.
	assert.ErrorIs(t, g.CanAddPrerequisite("consonants", "reading"), shared.ErrPrerequisiteCycle)

	// Self edge.
	assert.ErrorIs(t, g.CanAddPrerequisite("tones", "tones"), shared.ErrSelfPrerequisite)
}

func TestGraph_TopoOrder(t *testing.T) {
	g := NewGraph([]*Competency{
		comp("reading", "tones"),
		comp("tones", "consonants", "vowels"),
		comp("consonants"),
		comp("vowels"),
	})

	order, err := g.TopoOrder()
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["consonants"], pos["tones"])
	assert.Less(t, pos["vowels"], pos["tones"])
	assert.Less(t, pos["tones"], pos["reading"])
}

func TestGraph_TopoOrder_Cycle(t *testing.T) {
	g := NewGraph([]*Competency{
		comp("a", "b"),
		comp("b", "a"),
	})
	_, err := g.TopoOrder()
	assert.ErrorIs(t, err, shared.ErrPrerequisiteCycle)
}

func TestGraph_Get(t *testing.T) {
	g := NewGraph([]*Competency{comp("tones")})

	c, err := g.Get("tones")
	require.NoError(t, err)
	assert.Equal(t, "tones", c.ID)

	_, err = g.Get("missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
