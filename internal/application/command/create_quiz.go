package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/course"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/quiz"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE QUIZ COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// QuestionInput is one question in a quiz creation request.
type QuestionInput struct {
	Type         quiz.QuestionType
	Prompt       shared.LocalizedText
	CompetencyID string
	Points       int
	Difficulty   float64

	Options          []quiz.Option
	TrueAnswer       bool
	NumericAnswer    float64
	NumericTolerance float64
	TextAnswers      []string
}

// CreateQuizCommand creates a quiz attached to a lesson.
type CreateQuizCommand struct {
	AuthorID string
	CourseID string
	LessonID string

	Title         shared.LocalizedText
	PassThreshold float64
	TimeLimit     time.Duration
	Questions     []QuestionInput

	CorrelationID string
}

// Validate checks the command fields.
func (c *CreateQuizCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("create_quiz: author ID is required")
	}
	if c.CourseID == "" {
		return errors.New("create_quiz: course ID is required")
	}
	if c.LessonID == "" {
		return errors.New("create_quiz: lesson ID is required")
	}
	if len(c.Questions) == 0 {
		return errors.New("create_quiz: at least one question is required")
	}
	return nil
}

// CreateQuizResult reports the created quiz.
type CreateQuizResult struct {
	Quiz *quiz.Quiz
}

// CreateQuizHandler creates quizzes.
type CreateQuizHandler struct {
	quizRepo       quiz.Repository
	courseRepo     course.Repository
	learnerRepo    learner.Repository
	competencyRepo mastery.CompetencyRepository
	ids            IDGenerator
}

// NewCreateQuizHandler creates the handler.
func NewCreateQuizHandler(
	quizRepo quiz.Repository,
	courseRepo course.Repository,
	learnerRepo learner.Repository,
	competencyRepo mastery.CompetencyRepository,
	ids IDGenerator,
) *CreateQuizHandler {
	return &CreateQuizHandler{
		quizRepo:       quizRepo,
		courseRepo:     courseRepo,
		learnerRepo:    learnerRepo,
		competencyRepo: competencyRepo,
		ids:            ids,
	}
}

// Handle creates the quiz with its questions.
func (h *CreateQuizHandler) Handle(ctx context.Context, cmd CreateQuizCommand) (*CreateQuizResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "CreateQuiz", shared.ErrValidation, err.Error(), err)
	}

	author, err := h.learnerRepo.GetByID(ctx, cmd.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("create_quiz: failed to load author: %w", err)
	}
	if !author.Role.CanAuthor() {
		return nil, shared.NewDomainError("command", "CreateQuiz", shared.ErrForbidden, "role may not author quizzes")
	}

	c, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("create_quiz: failed to load course: %w", err)
	}
	if author.Role != learner.RoleAdmin && c.AuthorID != cmd.AuthorID {
		return nil, shared.NewDomainError("command", "CreateQuiz", shared.ErrForbidden, "course belongs to another author")
	}
	if _, err := c.LessonByID(cmd.LessonID); err != nil {
		return nil, err
	}

	q, err := quiz.NewQuiz(quiz.NewQuizParams{
		ID:            h.ids.NewID(),
		LessonID:      cmd.LessonID,
		CourseID:      cmd.CourseID,
		Title:         cmd.Title,
		PassThreshold: cmd.PassThreshold,
		TimeLimit:     cmd.TimeLimit,
	})
	if err != nil {
		return nil, err
	}

	for _, in := range cmd.Questions {
		if _, err := h.competencyRepo.GetByID(ctx, in.CompetencyID); err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.WrapError("command", "CreateQuiz", shared.ErrInvalidInput, "unknown competency "+in.CompetencyID, err)
			}
			return nil, fmt.Errorf("create_quiz: failed to check competency: %w", err)
		}
		question := &quiz.Question{
			ID:               h.ids.NewID(),
			Type:             in.Type,
			Prompt:           in.Prompt,
			CompetencyID:     in.CompetencyID,
			Points:           in.Points,
			Difficulty:       in.Difficulty,
			Options:          in.Options,
			TrueAnswer:       in.TrueAnswer,
			NumericAnswer:    in.NumericAnswer,
			NumericTolerance: in.NumericTolerance,
			TextAnswers:      in.TextAnswers,
		}
		if err := q.AddQuestion(question); err != nil {
			return nil, err
		}
	}

	if err := h.quizRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create_quiz: failed to store quiz: %w", err)
	}

	return &CreateQuizResult{Quiz: q}, nil
}
