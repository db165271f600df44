package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// XAPI STATEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StatementRepository implements xapi.Repository for PostgreSQL.
// Statements are stored whole as JSONB next to the columns the query
// API filters on.
type StatementRepository struct {
	conn *Connection
}

// NewStatementRepository creates a new StatementRepository.
func NewStatementRepository(conn *Connection) *StatementRepository {
	return &StatementRepository{conn: conn}
}

// Store persists a statement. Resending an identical statement with
// the same ID is a no-op; a different body under the same ID conflicts.
func (r *StatementRepository) Store(ctx context.Context, s *xapi.Statement) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal statement: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO xapi_statements (id, actor_key, verb_id, activity_id, statement, stored_at, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		s.ID,
		s.Actor.Key(),
		s.Verb.ID,
		activityIDOf(s),
		body,
		s.Stored,
		s.Timestamp,
	)
	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return fmt.Errorf("failed to store statement: %w", err)
	}

	existing, getErr := r.GetByID(ctx, s.ID)
	if getErr != nil {
		return fmt.Errorf("failed to load conflicting statement: %w", getErr)
	}

	existingBody, marshalErr := json.Marshal(existing)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal stored statement: %w", marshalErr)
	}
	if bytes.Equal(existingBody, body) {
		return nil
	}
	return shared.ErrStatementConflict
}

// GetByID returns a statement, voided or not.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*xapi.Statement, error) {
	var body []byte
	err := r.conn.QueryRow(ctx,
		`SELECT statement FROM xapi_statements WHERE id = $1`, id,
	).Scan(&body)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStatementNotFound
		}
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}

	var s xapi.Statement
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statement: %w", err)
	}
	return &s, nil
}

// IsVoided reports whether the statement has been voided.
func (r *StatementRepository) IsVoided(ctx context.Context, id string) (bool, error) {
	var voided bool
	err := r.conn.QueryRow(ctx,
		`SELECT voided FROM xapi_statements WHERE id = $1`, id,
	).Scan(&voided)
	if err != nil {
		if IsNoRows(err) {
			return false, shared.ErrStatementNotFound
		}
		return false, fmt.Errorf("failed to check voided flag: %w", err)
	}
	return voided, nil
}

// MarkVoided flags the target statement. Voiding statements themselves
// cannot be voided.
func (r *StatementRepository) MarkVoided(ctx context.Context, targetID, voidingID string) error {
	target, err := r.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsVoiding() {
		return shared.ErrStatementVoided
	}

	_, err = r.conn.Exec(ctx,
		`UPDATE xapi_statements SET voided = TRUE WHERE id = $1`, targetID)
	if err != nil {
		return fmt.Errorf("failed to mark statement voided: %w", err)
	}
	return nil
}

// Find returns statements matching the query, excluding voided ones.
func (r *StatementRepository) Find(ctx context.Context, q xapi.Query) ([]*xapi.Statement, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	order := "DESC"
	if q.Ascending {
		order = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT statement
		FROM xapi_statements
		WHERE NOT voided
		  AND ($1 = '' OR actor_key = $1)
		  AND ($2 = '' OR verb_id = $2)
		  AND ($3 = '' OR activity_id = $3)
		  AND ($4::timestamptz IS NULL OR stored_at >= $4)
		  AND ($5::timestamptz IS NULL OR stored_at <= $5)
		ORDER BY stored_at %s
		LIMIT $6
	`, order)

	rows, err := r.conn.Query(ctx, query,
		q.ActorKey,
		q.VerbID,
		q.ActivityID,
		nullTime(q.Since),
		nullTime(q.Until),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find statements: %w", err)
	}
	defer rows.Close()

	var statements []*xapi.Statement
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		var s xapi.Statement
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal statement: %w", err)
		}
		statements = append(statements, &s)
	}
	return statements, rows.Err()
}

// CountSince returns the actor's statement count in a time window.
func (r *StatementRepository) CountSince(ctx context.Context, actorKey string, since, until time.Time) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM xapi_statements
		WHERE actor_key = $1 AND NOT voided
		  AND stored_at >= $2 AND stored_at <= $3
	`, actorKey, since, until).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count statements: %w", err)
	}
	return count, nil
}

func activityIDOf(s *xapi.Statement) string {
	if s.Object.IsStatementRef() {
		return ""
	}
	return s.Object.ID
}
