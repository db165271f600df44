package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/quiz"
	"github.com/rianlab/rianhub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// QuizRepository implements quiz.Repository for PostgreSQL.
type QuizRepository struct {
	conn *Connection
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(conn *Connection) *QuizRepository {
	return &QuizRepository{conn: conn}
}

// answerSpec is the type-specific question payload stored as JSONB.
// Correct answers never leave the persistence and grading layers.
type answerSpec struct {
	Options          []specOption `json:"options,omitempty"`
	TrueAnswer       bool         `json:"true_answer,omitempty"`
	NumericAnswer    float64      `json:"numeric_answer,omitempty"`
	NumericTolerance float64      `json:"numeric_tolerance,omitempty"`
	TextAnswers      []string     `json:"text_answers,omitempty"`
}

type specOption struct {
	ID      string               `json:"id"`
	Text    shared.LocalizedText `json:"text"`
	Correct bool                 `json:"correct"`
}

// Create stores a new quiz with its questions.
func (r *QuizRepository) Create(ctx context.Context, q *quiz.Quiz) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		titleJSON, err := json.Marshal(q.Title)
		if err != nil {
			return fmt.Errorf("failed to marshal quiz title: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO quizzes (id, lesson_id, course_id, title, pass_threshold,
								 time_limit_seconds, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			q.ID,
			q.LessonID,
			q.CourseID,
			titleJSON,
			q.PassThreshold,
			int64(q.TimeLimit.Seconds()),
			q.CreatedAt,
			q.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrAlreadyExists
			}
			return fmt.Errorf("failed to create quiz: %w", err)
		}

		for _, question := range q.Questions {
			if err := upsertQuestion(ctx, tx, question); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByID returns a quiz with all questions.
func (r *QuizRepository) GetByID(ctx context.Context, id string) (*quiz.Quiz, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT id, lesson_id, course_id, title, pass_threshold,
			   time_limit_seconds, created_at, updated_at
		FROM quizzes
		WHERE id = $1
	`, id)

	q, err := scanQuiz(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadQuestions(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// GetByLesson returns the quizzes attached to a lesson.
func (r *QuizRepository) GetByLesson(ctx context.Context, lessonID string) ([]*quiz.Quiz, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, lesson_id, course_id, title, pass_threshold,
			   time_limit_seconds, created_at, updated_at
		FROM quizzes
		WHERE lesson_id = $1
		ORDER BY created_at
	`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []*quiz.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, q := range quizzes {
		if err := r.loadQuestions(ctx, q); err != nil {
			return nil, err
		}
	}
	return quizzes, nil
}

// Update persists quiz and question changes.
func (r *QuizRepository) Update(ctx context.Context, q *quiz.Quiz) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		titleJSON, err := json.Marshal(q.Title)
		if err != nil {
			return fmt.Errorf("failed to marshal quiz title: %w", err)
		}

		result, err := tx.Exec(ctx, `
			UPDATE quizzes SET
				title = $1,
				pass_threshold = $2,
				time_limit_seconds = $3,
				updated_at = $4
			WHERE id = $5
		`,
			titleJSON,
			q.PassThreshold,
			int64(q.TimeLimit.Seconds()),
			time.Now().UTC(),
			q.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update quiz: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrQuizNotFound
		}

		for _, question := range q.Questions {
			if err := upsertQuestion(ctx, tx, question); err != nil {
				return err
			}
		}

		return nil
	})
}

// Delete removes a quiz and its questions.
func (r *QuizRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrQuizNotFound
	}
	return nil
}

func (r *QuizRepository) loadQuestions(ctx context.Context, q *quiz.Quiz) error {
	rows, err := r.conn.Query(ctx, `
		SELECT id, quiz_id, position, type, prompt, competency_id,
			   points, difficulty, answer_spec
		FROM questions
		WHERE quiz_id = $1
		ORDER BY position
	`, q.ID)
	if err != nil {
		return fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return err
		}
		q.Questions = append(q.Questions, question)
	}
	return rows.Err()
}

func upsertQuestion(ctx context.Context, tx pgx.Tx, q *quiz.Question) error {
	promptJSON, err := json.Marshal(q.Prompt)
	if err != nil {
		return fmt.Errorf("failed to marshal question prompt: %w", err)
	}

	spec := answerSpec{
		TrueAnswer:       q.TrueAnswer,
		NumericAnswer:    q.NumericAnswer,
		NumericTolerance: q.NumericTolerance,
		TextAnswers:      q.TextAnswers,
	}
	for _, opt := range q.Options {
		spec.Options = append(spec.Options, specOption(opt))
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal answer spec: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO questions (id, quiz_id, position, type, prompt,
							   competency_id, points, difficulty, answer_spec)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			type = EXCLUDED.type,
			prompt = EXCLUDED.prompt,
			competency_id = EXCLUDED.competency_id,
			points = EXCLUDED.points,
			difficulty = EXCLUDED.difficulty,
			answer_spec = EXCLUDED.answer_spec
	`,
		q.ID,
		q.QuizID,
		q.Position,
		string(q.Type),
		promptJSON,
		q.CompetencyID,
		q.Points,
		q.Difficulty,
		specJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert question: %w", err)
	}
	return nil
}

func scanQuiz(row rowScanner) (*quiz.Quiz, error) {
	var (
		q                quiz.Quiz
		titleJSON        []byte
		timeLimitSeconds int64
	)

	err := row.Scan(
		&q.ID,
		&q.LessonID,
		&q.CourseID,
		&titleJSON,
		&q.PassThreshold,
		&timeLimitSeconds,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to scan quiz: %w", err)
	}

	q.TimeLimit = time.Duration(timeLimitSeconds) * time.Second
	if err := json.Unmarshal(titleJSON, &q.Title); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quiz title: %w", err)
	}

	return &q, nil
}

func scanQuestion(row rowScanner) (*quiz.Question, error) {
	var (
		q          quiz.Question
		qType      string
		promptJSON []byte
		specJSON   []byte
	)

	err := row.Scan(
		&q.ID,
		&q.QuizID,
		&q.Position,
		&qType,
		&promptJSON,
		&q.CompetencyID,
		&q.Points,
		&q.Difficulty,
		&specJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}

	q.Type = quiz.QuestionType(qType)
	if err := json.Unmarshal(promptJSON, &q.Prompt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question prompt: %w", err)
	}

	var spec answerSpec
	if err := json.Unmarshal(specJSON, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answer spec: %w", err)
	}
	q.TrueAnswer = spec.TrueAnswer
	q.NumericAnswer = spec.NumericAnswer
	q.NumericTolerance = spec.NumericTolerance
	q.TextAnswers = spec.TextAnswers
	for _, opt := range spec.Options {
		q.Options = append(q.Options, quiz.Option(opt))
	}

	return &q, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AttemptRepository implements quiz.AttemptRepository for PostgreSQL.
// Attempts are append-only: graded attempts are never modified.
type AttemptRepository struct {
	conn *Connection
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(conn *Connection) *AttemptRepository {
	return &AttemptRepository{conn: conn}
}

const attemptColumns = `
	id, quiz_id, learner_id, number, status, answers, score, max_score,
	score_ratio, passed, results, started_at, submitted_at
`

// Create stores a new in-progress attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *quiz.Attempt) error {
	answersJSON, resultsJSON, err := marshalAttemptPayload(a)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO quiz_attempts (
			id, quiz_id, learner_id, number, status, answers, score, max_score,
			score_ratio, passed, results, started_at, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.ID,
		a.QuizID,
		a.LearnerID,
		a.Number,
		string(a.Status),
		answersJSON,
		a.Score,
		a.MaxScore,
		a.ScoreRatio,
		a.Passed,
		resultsJSON,
		a.StartedAt,
		nullTime(a.SubmittedAt),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAttemptInFlight
		}
		return fmt.Errorf("failed to create attempt: %w", err)
	}

	return nil
}

// GetByID returns an attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id string) (*quiz.Attempt, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id)
	return scanAttempt(row)
}

// GetInFlight returns the learner's in-progress attempt for a quiz.
func (r *AttemptRepository) GetInFlight(ctx context.Context, learnerID, quizID string) (*quiz.Attempt, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+attemptColumns+`
		FROM quiz_attempts
		WHERE learner_id = $1 AND quiz_id = $2 AND status = 'in_progress'
	`, learnerID, quizID)
	return scanAttempt(row)
}

// Finalize stores the grading outcome of an attempt.
func (r *AttemptRepository) Finalize(ctx context.Context, a *quiz.Attempt) error {
	answersJSON, resultsJSON, err := marshalAttemptPayload(a)
	if err != nil {
		return err
	}

	result, err := r.conn.Exec(ctx, `
		UPDATE quiz_attempts SET
			status = $1,
			answers = $2,
			score = $3,
			max_score = $4,
			score_ratio = $5,
			passed = $6,
			results = $7,
			submitted_at = $8
		WHERE id = $9 AND status = 'in_progress'
	`,
		string(a.Status),
		answersJSON,
		a.Score,
		a.MaxScore,
		a.ScoreRatio,
		a.Passed,
		resultsJSON,
		nullTime(a.SubmittedAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize attempt: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrAttemptFinished
	}

	return nil
}

// ListByLearner returns the learner's graded attempts, newest first.
func (r *AttemptRepository) ListByLearner(ctx context.Context, learnerID string, limit, offset int) ([]*quiz.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM quiz_attempts
		WHERE learner_id = $1 AND status = 'graded'
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3
	`, learnerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*quiz.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CountByQuiz returns the learner's attempt count for a quiz.
func (r *AttemptRepository) CountByQuiz(ctx context.Context, learnerID, quizID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE learner_id = $1 AND quiz_id = $2`,
		learnerID, quizID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// CountGradedInWindow counts graded attempts submitted in [since, until)
// and how many of them passed.
func (r *AttemptRepository) CountGradedInWindow(ctx context.Context, learnerID string, since, until time.Time) (taken, passed int, err error) {
	err = r.conn.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE passed)
		FROM quiz_attempts
		WHERE learner_id = $1 AND status = 'graded'
		  AND submitted_at >= $2 AND submitted_at < $3`,
		learnerID, since, until,
	).Scan(&taken, &passed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count graded attempts: %w", err)
	}
	return taken, passed, nil
}

// AbandonExpired marks in-progress attempts older than the quiz time
// limit as abandoned. Quizzes without a limit are left alone.
func (r *AttemptRepository) AbandonExpired(ctx context.Context) (int, error) {
	result, err := r.conn.Exec(ctx, `
		UPDATE quiz_attempts a SET status = 'abandoned'
		FROM quizzes q
		WHERE a.quiz_id = q.id
		  AND a.status = 'in_progress'
		  AND q.time_limit_seconds > 0
		  AND a.started_at < NOW() - (q.time_limit_seconds || ' seconds')::interval
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to abandon expired attempts: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func marshalAttemptPayload(a *quiz.Attempt) (answersJSON, resultsJSON []byte, err error) {
	answersJSON, err = json.Marshal(a.Answers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal answers: %w", err)
	}
	resultsJSON, err = json.Marshal(a.Results)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return answersJSON, resultsJSON, nil
}

func scanAttempt(row rowScanner) (*quiz.Attempt, error) {
	var (
		a           quiz.Attempt
		status      string
		answersJSON []byte
		resultsJSON []byte
		submittedAt *time.Time
	)

	err := row.Scan(
		&a.ID,
		&a.QuizID,
		&a.LearnerID,
		&a.Number,
		&status,
		&answersJSON,
		&a.Score,
		&a.MaxScore,
		&a.ScoreRatio,
		&a.Passed,
		&resultsJSON,
		&a.StartedAt,
		&submittedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to scan attempt: %w", err)
	}

	a.Status = quiz.AttemptStatus(status)
	if submittedAt != nil {
		a.SubmittedAt = *submittedAt
	}

	if err := json.Unmarshal(answersJSON, &a.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &a.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	return &a, nil
}
