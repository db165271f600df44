package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE COMPETENCY COMMANDS
// Authoring surface for the prerequisite graph. Every edit revalidates
// against the loaded graph so a cycle can never reach storage; lessons
// and quizzes reject unknown competency IDs, so this is where the
// catalog enters the system.
// ══════════════════════════════════════════════════════════════════════════════

// CreateCompetencyCommand adds a node to the competency graph.
type CreateCompetencyCommand struct {
	AuthorID        string
	Name            shared.LocalizedText
	PrerequisiteIDs []string

	// DecayHalfLife overrides the default when positive.
	DecayHalfLife time.Duration

	CorrelationID string
}

// Validate checks the command fields.
func (c *CreateCompetencyCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("save_competency: author ID is required")
	}
	if !c.Name.IsValid() {
		return errors.New("save_competency: name needs at least one language")
	}
	if c.DecayHalfLife < 0 {
		return errors.New("save_competency: half-life cannot be negative")
	}
	return nil
}

// UpdateCompetencyCommand replaces a node's name and prerequisites.
type UpdateCompetencyCommand struct {
	AuthorID        string
	CompetencyID    string
	Name            shared.LocalizedText
	PrerequisiteIDs []string
	DecayHalfLife   time.Duration

	CorrelationID string
}

// Validate checks the command fields.
func (c *UpdateCompetencyCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("save_competency: author ID is required")
	}
	if c.CompetencyID == "" {
		return errors.New("save_competency: competency ID is required")
	}
	if c.DecayHalfLife < 0 {
		return errors.New("save_competency: half-life cannot be negative")
	}
	return nil
}

// DeleteCompetencyCommand removes a node nothing depends on.
type DeleteCompetencyCommand struct {
	AuthorID     string
	CompetencyID string

	CorrelationID string
}

// SaveCompetencyResult reports the stored competency.
type SaveCompetencyResult struct {
	Competency *mastery.Competency
}

// SaveCompetencyHandler manages the competency graph.
type SaveCompetencyHandler struct {
	competencyRepo mastery.CompetencyRepository
	learnerRepo    learner.Repository
	ids            IDGenerator
}

// NewSaveCompetencyHandler creates the handler.
func NewSaveCompetencyHandler(
	competencyRepo mastery.CompetencyRepository,
	learnerRepo learner.Repository,
	ids IDGenerator,
) *SaveCompetencyHandler {
	return &SaveCompetencyHandler{
		competencyRepo: competencyRepo,
		learnerRepo:    learnerRepo,
		ids:            ids,
	}
}

// HandleCreate adds a competency.
func (h *SaveCompetencyHandler) HandleCreate(ctx context.Context, cmd CreateCompetencyCommand) (*SaveCompetencyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "CreateCompetency", shared.ErrValidation, err.Error(), err)
	}
	if err := h.checkAuthor(ctx, cmd.AuthorID); err != nil {
		return nil, err
	}

	g, err := h.loadGraph(ctx)
	if err != nil {
		return nil, err
	}

	c := &mastery.Competency{
		ID:              h.ids.NewID(),
		Name:            cmd.Name,
		PrerequisiteIDs: cmd.PrerequisiteIDs,
		DecayHalfLife:   cmd.DecayHalfLife,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	// A fresh node has no dependents, so its prerequisite edges cannot
	// close a cycle; they only need to point at real nodes. The full
	// pass still runs so a corrupted graph is caught before it grows.
	candidate := mastery.NewGraph(append(g.All(), c))
	if err := candidate.ValidateReferences(); err != nil {
		return nil, err
	}
	if err := candidate.ValidateAcyclic(); err != nil {
		return nil, err
	}

	if err := h.competencyRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("save_competency: failed to store competency: %w", err)
	}

	return &SaveCompetencyResult{Competency: c}, nil
}

// HandleUpdate replaces a competency's name and prerequisite list.
func (h *SaveCompetencyHandler) HandleUpdate(ctx context.Context, cmd UpdateCompetencyCommand) (*SaveCompetencyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "UpdateCompetency", shared.ErrValidation, err.Error(), err)
	}
	if err := h.checkAuthor(ctx, cmd.AuthorID); err != nil {
		return nil, err
	}

	g, err := h.loadGraph(ctx)
	if err != nil {
		return nil, err
	}
	c, err := g.Get(cmd.CompetencyID)
	if err != nil {
		return nil, err
	}

	// Each edge not already present is checked incrementally; an edge
	// closes a cycle iff the target is reachable from the new
	// prerequisite.
	existing := make(map[string]bool, len(c.PrerequisiteIDs))
	for _, pre := range c.PrerequisiteIDs {
		existing[pre] = true
	}
	for _, pre := range cmd.PrerequisiteIDs {
		if existing[pre] {
			continue
		}
		if err := g.CanAddPrerequisite(cmd.CompetencyID, pre); err != nil {
			return nil, err
		}
	}

	if cmd.Name.IsValid() {
		c.Name = cmd.Name
	}
	c.PrerequisiteIDs = cmd.PrerequisiteIDs
	if cmd.DecayHalfLife > 0 {
		c.DecayHalfLife = cmd.DecayHalfLife
	}
	c.UpdatedAt = time.Now().UTC()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := h.competencyRepo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("save_competency: failed to update competency: %w", err)
	}

	return &SaveCompetencyResult{Competency: c}, nil
}

// HandleDelete removes a competency no other node requires.
func (h *SaveCompetencyHandler) HandleDelete(ctx context.Context, cmd DeleteCompetencyCommand) error {
	if cmd.AuthorID == "" || cmd.CompetencyID == "" {
		return shared.NewDomainError("command", "DeleteCompetency", shared.ErrValidation, "author and competency IDs are required")
	}
	if err := h.checkAuthor(ctx, cmd.AuthorID); err != nil {
		return err
	}

	g, err := h.loadGraph(ctx)
	if err != nil {
		return err
	}
	if _, err := g.Get(cmd.CompetencyID); err != nil {
		return err
	}
	for _, other := range g.All() {
		for _, pre := range other.PrerequisiteIDs {
			if pre == cmd.CompetencyID {
				return shared.NewDomainError("command", "DeleteCompetency", shared.ErrInvalidState,
					"competency is a prerequisite of "+other.ID)
			}
		}
	}

	if err := h.competencyRepo.Delete(ctx, cmd.CompetencyID); err != nil {
		return fmt.Errorf("save_competency: failed to delete competency: %w", err)
	}
	return nil
}

// checkAuthor verifies the caller may edit the graph.
func (h *SaveCompetencyHandler) checkAuthor(ctx context.Context, authorID string) error {
	author, err := h.learnerRepo.GetByID(ctx, authorID)
	if err != nil {
		return fmt.Errorf("save_competency: failed to load author: %w", err)
	}
	if !author.Role.CanAuthor() {
		return shared.NewDomainError("command", "SaveCompetency", shared.ErrForbidden, "role may not edit competencies")
	}
	return nil
}

// loadGraph reads the whole competency graph.
func (h *SaveCompetencyHandler) loadGraph(ctx context.Context) (*mastery.Graph, error) {
	all, err := h.competencyRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("save_competency: failed to load graph: %w", err)
	}
	return mastery.NewGraph(all), nil
}
