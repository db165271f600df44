package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEVICE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// DeviceRepository implements sync.DeviceRepository for PostgreSQL.
type DeviceRepository struct {
	conn *Connection
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(conn *Connection) *DeviceRepository {
	return &DeviceRepository{conn: conn}
}

const deviceColumns = `
	id, learner_id, platform, name, last_seq, cursor, last_sync_at, registered_at
`

// Create registers a device.
func (r *DeviceRepository) Create(ctx context.Context, d *sync.Device) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO sync_devices (id, learner_id, platform, name, last_seq, cursor, last_sync_at, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		d.ID,
		d.LearnerID,
		string(d.Platform),
		d.Name,
		d.LastSeq,
		d.Cursor,
		nullTime(d.LastSyncAt),
		d.RegisteredAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// GetByID returns a device.
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*sync.Device, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM sync_devices WHERE id = $1`, id)
	return scanDevice(row)
}

// Update persists watermark and cursor changes.
func (r *DeviceRepository) Update(ctx context.Context, d *sync.Device) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE sync_devices SET
			name = $1,
			last_seq = $2,
			cursor = $3,
			last_sync_at = $4
		WHERE id = $5
	`,
		d.Name,
		d.LastSeq,
		d.Cursor,
		nullTime(d.LastSyncAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrDeviceNotFound
	}
	return nil
}

// ListByLearner returns the learner's registered devices.
func (r *DeviceRepository) ListByLearner(ctx context.Context, learnerID string) ([]*sync.Device, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+deviceColumns+` FROM sync_devices WHERE learner_id = $1 ORDER BY registered_at`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*sync.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Delete removes a device and its operation log.
func (r *DeviceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM sync_devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row rowScanner) (*sync.Device, error) {
	var (
		d          sync.Device
		platform   string
		lastSyncAt *time.Time
	)

	err := row.Scan(
		&d.ID,
		&d.LearnerID,
		&platform,
		&d.Name,
		&d.LastSeq,
		&d.Cursor,
		&lastSyncAt,
		&d.RegisteredAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	d.Platform = sync.Platform(platform)
	if lastSyncAt != nil {
		d.LastSyncAt = *lastSyncAt
	}

	return &d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATION LOG IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// OperationLog implements sync.OperationLog for PostgreSQL. The
// (device, seq) primary key is what makes pushes idempotent.
type OperationLog struct {
	conn *Connection
}

// NewOperationLog creates a new OperationLog.
func NewOperationLog(conn *Connection) *OperationLog {
	return &OperationLog{conn: conn}
}

// Record marks an operation as applied.
func (l *OperationLog) Record(ctx context.Context, deviceID string, seq int64, appliedAt time.Time) error {
	_, err := l.conn.Exec(ctx, `
		INSERT INTO sync_operations (device_id, seq, applied_at)
		VALUES ($1, $2, $3)
	`, deviceID, seq, appliedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateOperation
		}
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// IsApplied reports whether the operation was already applied.
func (l *OperationLog) IsApplied(ctx context.Context, deviceID string, seq int64) (bool, error) {
	var applied bool
	err := l.conn.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM sync_operations WHERE device_id = $1 AND seq = $2)
	`, deviceID, seq).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("failed to check operation: %w", err)
	}
	return applied, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE LOG IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChangeLog implements sync.ChangeLog for PostgreSQL. Cursors are the
// BIGSERIAL primary key, so ordering is the insert order.
type ChangeLog struct {
	conn *Connection
}

// NewChangeLog creates a new ChangeLog.
func NewChangeLog(conn *Connection) *ChangeLog {
	return &ChangeLog{conn: conn}
}

// Append records a change and fills in its assigned cursor.
func (l *ChangeLog) Append(ctx context.Context, change *sync.Change) error {
	err := l.conn.QueryRow(ctx, `
		INSERT INTO sync_changes (learner_id, entity, entity_id, payload, changed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING cursor
	`,
		change.LearnerID,
		change.Entity,
		change.EntityID,
		[]byte(change.Payload),
		change.ChangedAt,
	).Scan(&change.Cursor)
	if err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}
	return nil
}

// ListSince returns the learner's changes after the cursor, in order.
func (l *ChangeLog) ListSince(ctx context.Context, learnerID string, cursor int64, limit int) ([]*sync.Change, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := l.conn.Query(ctx, `
		SELECT cursor, learner_id, entity, entity_id, payload, changed_at
		FROM sync_changes
		WHERE learner_id = $1 AND cursor > $2
		ORDER BY cursor
		LIMIT $3
	`, learnerID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer rows.Close()

	var changes []*sync.Change
	for rows.Next() {
		var c sync.Change
		var payload []byte
		if err := rows.Scan(&c.Cursor, &c.LearnerID, &c.Entity, &c.EntityID, &payload, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		c.Payload = payload
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}

// LatestCursor returns the learner's newest change cursor, zero when
// there are none.
func (l *ChangeLog) LatestCursor(ctx context.Context, learnerID string) (int64, error) {
	var cursor int64
	err := l.conn.QueryRow(ctx,
		`SELECT COALESCE(MAX(cursor), 0) FROM sync_changes WHERE learner_id = $1`, learnerID,
	).Scan(&cursor)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest cursor: %w", err)
	}
	return cursor, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFLICT LOG IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ConflictLog implements sync.ConflictLog for PostgreSQL.
type ConflictLog struct {
	conn *Connection
}

// NewConflictLog creates a new ConflictLog.
func NewConflictLog(conn *Connection) *ConflictLog {
	return &ConflictLog{conn: conn}
}

// Record stores one resolved conflict.
func (l *ConflictLog) Record(ctx context.Context, c *sync.Conflict) error {
	_, err := l.conn.Exec(ctx, `
		INSERT INTO sync_conflicts (id, learner_id, device_id, seq, kind, entity_id, resolution, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		c.ID,
		c.LearnerID,
		c.DeviceID,
		c.Seq,
		string(c.Kind),
		c.EntityID,
		string(c.Resolution),
		c.Detail,
		c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record conflict: %w", err)
	}
	return nil
}

// ListByLearner returns the learner's conflicts, newest first.
func (l *ConflictLog) ListByLearner(ctx context.Context, learnerID string, limit int) ([]*sync.Conflict, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.conn.Query(ctx, `
		SELECT id, learner_id, device_id, seq, kind, entity_id, resolution, detail, occurred_at
		FROM sync_conflicts
		WHERE learner_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*sync.Conflict
	for rows.Next() {
		var (
			c                sync.Conflict
			kind, resolution string
		)
		if err := rows.Scan(&c.ID, &c.LearnerID, &c.DeviceID, &c.Seq, &kind, &c.EntityID, &resolution, &c.Detail, &c.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		c.Kind = sync.OpKind(kind)
		c.Resolution = sync.Resolution(resolution)
		conflicts = append(conflicts, &c)
	}
	return conflicts, rows.Err()
}
