package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompetencyRepository implements mastery.CompetencyRepository for PostgreSQL.
type CompetencyRepository struct {
	conn *Connection
}

// NewCompetencyRepository creates a new CompetencyRepository.
func NewCompetencyRepository(conn *Connection) *CompetencyRepository {
	return &CompetencyRepository{conn: conn}
}

// Create stores a new competency.
func (r *CompetencyRepository) Create(ctx context.Context, c *mastery.Competency) error {
	nameJSON, err := json.Marshal(c.Name)
	if err != nil {
		return fmt.Errorf("failed to marshal competency name: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO competencies (id, name, prerequisite_ids, decay_half_life_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		c.ID,
		nameJSON,
		c.PrerequisiteIDs,
		int64(c.DecayHalfLife.Seconds()),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create competency: %w", err)
	}

	return nil
}

// GetByID returns a competency.
func (r *CompetencyRepository) GetByID(ctx context.Context, id string) (*mastery.Competency, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT id, name, prerequisite_ids, decay_half_life_seconds, created_at, updated_at
		FROM competencies
		WHERE id = $1
	`, id)
	return scanCompetency(row)
}

// Update persists competency changes.
func (r *CompetencyRepository) Update(ctx context.Context, c *mastery.Competency) error {
	nameJSON, err := json.Marshal(c.Name)
	if err != nil {
		return fmt.Errorf("failed to marshal competency name: %w", err)
	}

	result, err := r.conn.Exec(ctx, `
		UPDATE competencies SET
			name = $1,
			prerequisite_ids = $2,
			decay_half_life_seconds = $3,
			updated_at = $4
		WHERE id = $5
	`,
		nameJSON,
		c.PrerequisiteIDs,
		int64(c.DecayHalfLife.Seconds()),
		time.Now().UTC(),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update competency: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrCompetencyNotFound
	}

	return nil
}

// Delete removes a competency and its mastery records.
func (r *CompetencyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM competencies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete competency: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrCompetencyNotFound
	}
	return nil
}

// ListAll returns every competency. The set is small enough to load
// whole when building the prerequisite graph.
func (r *CompetencyRepository) ListAll(ctx context.Context) ([]*mastery.Competency, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, prerequisite_ids, decay_half_life_seconds, created_at, updated_at
		FROM competencies
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query competencies: %w", err)
	}
	defer rows.Close()

	var competencies []*mastery.Competency
	for rows.Next() {
		c, err := scanCompetency(rows)
		if err != nil {
			return nil, err
		}
		competencies = append(competencies, c)
	}
	return competencies, rows.Err()
}

func scanCompetency(row rowScanner) (*mastery.Competency, error) {
	var (
		c               mastery.Competency
		nameJSON        []byte
		halfLifeSeconds int64
	)

	err := row.Scan(
		&c.ID,
		&nameJSON,
		&c.PrerequisiteIDs,
		&halfLifeSeconds,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCompetencyNotFound
		}
		return nil, fmt.Errorf("failed to scan competency: %w", err)
	}

	c.DecayHalfLife = time.Duration(halfLifeSeconds) * time.Second
	if err := json.Unmarshal(nameJSON, &c.Name); err != nil {
		return nil, fmt.Errorf("failed to unmarshal competency name: %w", err)
	}

	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MasteryRepository implements mastery.Repository for PostgreSQL.
type MasteryRepository struct {
	conn *Connection
}

// NewMasteryRepository creates a new MasteryRepository.
func NewMasteryRepository(conn *Connection) *MasteryRepository {
	return &MasteryRepository{conn: conn}
}

const masteryColumns = `
	learner_id, competency_id, value, peak, state, attempts, correct_count,
	last_practiced_at, mastered_at, updated_at
`

// Upsert stores or replaces a mastery record.
func (r *MasteryRepository) Upsert(ctx context.Context, learnerID string, m *mastery.Mastery) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO mastery_records (
			learner_id, competency_id, value, peak, state, attempts,
			correct_count, last_practiced_at, mastered_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (learner_id, competency_id) DO UPDATE SET
			value = EXCLUDED.value,
			peak = EXCLUDED.peak,
			state = EXCLUDED.state,
			attempts = EXCLUDED.attempts,
			correct_count = EXCLUDED.correct_count,
			last_practiced_at = EXCLUDED.last_practiced_at,
			mastered_at = EXCLUDED.mastered_at,
			updated_at = EXCLUDED.updated_at
	`,
		learnerID,
		m.CompetencyID,
		m.Value,
		m.Peak,
		string(m.State),
		m.Attempts,
		m.CorrectCount,
		nullTime(m.LastPracticedAt),
		m.MasteredAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mastery record: %w", err)
	}
	return nil
}

// Get returns the record for one learner and competency.
// Returns a fresh untouched record when none is stored.
func (r *MasteryRepository) Get(ctx context.Context, learnerID, competencyID string) (*mastery.Mastery, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+masteryColumns+`
		FROM mastery_records
		WHERE learner_id = $1 AND competency_id = $2
	`, learnerID, competencyID)

	m, err := scanMastery(row)
	if IsNoRows(err) {
		return mastery.NewMastery(learnerID, competencyID), nil
	}
	return m, err
}

// GetProfile returns all of a learner's records keyed by competency ID.
func (r *MasteryRepository) GetProfile(ctx context.Context, learnerID string) (map[string]*mastery.Mastery, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+masteryColumns+`
		FROM mastery_records
		WHERE learner_id = $1
	`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mastery profile: %w", err)
	}
	defer rows.Close()

	profile := make(map[string]*mastery.Mastery)
	for rows.Next() {
		m, err := scanMastery(rows)
		if err != nil {
			return nil, err
		}
		profile[m.CompetencyID] = m
	}
	return profile, rows.Err()
}

// ListStale returns records whose last practice is older than the
// cutoff, oldest first. Feeds the decay job.
func (r *MasteryRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]mastery.StaleRecord, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+masteryColumns+`
		FROM mastery_records
		WHERE state IN ('learning', 'proficient', 'mastered')
		  AND last_practiced_at IS NOT NULL
		  AND last_practiced_at < $1
		ORDER BY last_practiced_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale records: %w", err)
	}
	defer rows.Close()

	var stale []mastery.StaleRecord
	for rows.Next() {
		m, err := scanMastery(rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, mastery.StaleRecord{LearnerID: m.LearnerID, Record: m})
	}
	return stale, rows.Err()
}

// CountByState returns the learner's record counts per state.
func (r *MasteryRepository) CountByState(ctx context.Context, learnerID string) (map[mastery.State]int, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT state, COUNT(*)
		FROM mastery_records
		WHERE learner_id = $1
		GROUP BY state
	`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count mastery states: %w", err)
	}
	defer rows.Close()

	counts := make(map[mastery.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[mastery.State(state)] = count
	}
	return counts, rows.Err()
}

func scanMastery(row rowScanner) (*mastery.Mastery, error) {
	var (
		m               mastery.Mastery
		state           string
		lastPracticedAt *time.Time
	)

	err := row.Scan(
		&m.LearnerID,
		&m.CompetencyID,
		&m.Value,
		&m.Peak,
		&state,
		&m.Attempts,
		&m.CorrectCount,
		&lastPracticedAt,
		&m.MasteredAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan mastery record: %w", err)
	}

	m.State = mastery.State(state)
	if lastPracticedAt != nil {
		m.LastPracticedAt = *lastPracticedAt
	}

	return &m, nil
}
