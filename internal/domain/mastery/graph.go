package mastery

import (
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCY & PREREQUISITE DAG
// ══════════════════════════════════════════════════════════════════════════════

// Competency is a node in the prerequisite graph.
type Competency struct {
	ID   string
	Name shared.LocalizedText

	// PrerequisiteIDs lists competencies that must be unlocked first.
	PrerequisiteIDs []string

	// DecayHalfLife overrides DefaultDecayHalfLife when positive.
	// Vocabulary fades faster than grammar rules.
	DecayHalfLife time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HalfLife returns the effective decay half-life.
func (c *Competency) HalfLife() time.Duration {
	if c.DecayHalfLife > 0 {
		return c.DecayHalfLife
	}
	return DefaultDecayHalfLife
}

// Validate checks competency invariants.
func (c *Competency) Validate() error {
	if c.ID == "" {
		return shared.NewDomainError("mastery", "Validate", shared.ErrEmptyValue, "competency ID is required")
	}
	if !c.Name.IsValid() {
		return shared.ErrMissingTranslation
	}
	for _, p := range c.PrerequisiteIDs {
		if p == c.ID {
			return shared.ErrSelfPrerequisite
		}
	}
	return nil
}

// Graph is an in-memory view of the competency DAG, loaded once per
// recommendation or validation pass.
type Graph struct {
	nodes map[string]*Competency
}

// NewGraph builds a graph from competencies.
func NewGraph(competencies []*Competency) *Graph {
	g := &Graph{nodes: make(map[string]*Competency, len(competencies))}
	for _, c := range competencies {
		g.nodes[c.ID] = c
	}
	return g
}

// Get returns a competency by ID.
func (g *Graph) Get(id string) (*Competency, error) {
	c, ok := g.nodes[id]
	if !ok {
		return nil, shared.ErrCompetencyNotFound
	}
	return c, nil
}

// All returns every competency in the graph.
func (g *Graph) All() []*Competency {
	out := make([]*Competency, 0, len(g.nodes))
	for _, c := range g.nodes {
		out = append(out, c)
	}
	return out
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// ValidateAcyclic checks the whole graph for prerequisite cycles using
// iterative DFS with three-color marking. Returns ErrPrerequisiteCycle
// with the first cycle found.
func (g *Graph) ValidateAcyclic() error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		node, ok := g.nodes[id]
		if !ok {
			// Dangling prerequisite: treated as a leaf, caught separately
			// by ValidateReferences.
			color[id] = black
			return false
		}
		for _, pre := range node.PrerequisiteIDs {
			switch color[pre] {
			case gray:
				return true
			case white:
				if visit(pre) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range g.nodes {
		if color[id] == white {
			if visit(id) {
				return shared.ErrPrerequisiteCycle
			}
		}
	}
	return nil
}

// ValidateReferences checks that every prerequisite points at an
// existing competency.
func (g *Graph) ValidateReferences() error {
	for _, c := range g.nodes {
		for _, pre := range c.PrerequisiteIDs {
			if _, ok := g.nodes[pre]; !ok {
				return shared.WrapError("mastery", "ValidateReferences", shared.ErrNotFound,
					"prerequisite "+pre+" of "+c.ID+" does not exist", nil)
			}
		}
	}
	return nil
}

// CanAddPrerequisite checks whether adding the edge to -> from (from
// becomes a prerequisite of to) keeps the graph acyclic.
func (g *Graph) CanAddPrerequisite(to, from string) error {
	if to == from {
		return shared.ErrSelfPrerequisite
	}
	target, err := g.Get(to)
	if err != nil {
		return err
	}
	if _, err := g.Get(from); err != nil {
		return err
	}

	for _, pre := range target.PrerequisiteIDs {
		if pre == from {
			return nil // already present, adding again is a no-op
		}
	}

	// A cycle appears iff "to" is already reachable from "from" through
	// prerequisite edges.
	if g.reachable(from, to) {
		return shared.ErrPrerequisiteCycle
	}
	return nil
}

// reachable walks prerequisite edges from start looking for goal.
func (g *Graph) reachable(start, goal string) bool {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == goal {
			return true
		}
		node, ok := g.nodes[id]
		if !ok {
			continue
		}
		for _, pre := range node.PrerequisiteIDs {
			if !seen[pre] {
				seen[pre] = true
				stack = append(stack, pre)
			}
		}
	}
	return false
}

// TopoOrder returns competency IDs in prerequisite-first order.
// The graph must be acyclic.
func (g *Graph) TopoOrder() ([]string, error) {
	if err := g.ValidateAcyclic(); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for id, node := range g.nodes {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, pre := range node.PrerequisiteIDs {
			if _, ok := g.nodes[pre]; !ok {
				continue
			}
			indegree[id]++
			dependents[pre] = append(dependents[pre], id)
		}
	}

	var queue []string
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return order, nil
}
