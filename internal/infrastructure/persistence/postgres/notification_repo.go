package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rianlab/rianhub/internal/domain/notification"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

const notificationColumns = `
	id, learner_id, kind, priority, title, body, data, status,
	deferred_until, delivered_at, read_at, created_at
`

// Create stores a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	titleJSON, bodyJSON, err := marshalTexts(n.Title, n.Body)
	if err != nil {
		return err
	}
	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO notifications (
			id, learner_id, kind, priority, title, body, data, status,
			deferred_until, delivered_at, read_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		n.ID,
		n.LearnerID,
		string(n.Kind),
		int(n.Priority),
		titleJSON,
		bodyJSON,
		dataJSON,
		string(n.Status),
		n.DeferredUntil,
		n.DeliveredAt,
		n.ReadAt,
		n.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByID returns a notification.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return scanNotification(row)
}

// Update persists status and read-state changes.
func (r *NotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE notifications SET
			status = $1,
			deferred_until = $2,
			delivered_at = $3,
			read_at = $4
		WHERE id = $5
	`,
		string(n.Status),
		n.DeferredUntil,
		n.DeliveredAt,
		n.ReadAt,
		n.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrNotificationNotFound
	}

	return nil
}

// ListByLearner returns the learner's notifications, newest first.
func (r *NotificationRepository) ListByLearner(ctx context.Context, learnerID string, filter notification.ListFilter) ([]*notification.Notification, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE learner_id = $1
		  AND ($2 = '' OR kind = $2)
		  AND (NOT $3 OR (status = 'delivered' AND read_at IS NULL))
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	rows, err := r.conn.Query(ctx, query,
		learnerID, string(filter.Kind), filter.UnreadOnly, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnread returns the learner's unread delivered count.
func (r *NotificationRepository) CountUnread(ctx context.Context, learnerID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE learner_id = $1 AND status = 'delivered' AND read_at IS NULL
	`, learnerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAllRead marks every unread delivered notification as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, learnerID string, at time.Time) (int, error) {
	result, err := r.conn.Exec(ctx, `
		UPDATE notifications SET read_at = $1
		WHERE learner_id = $2 AND status = 'delivered' AND read_at IS NULL
	`, at, learnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// ListDue returns pending notifications and deferred ones whose
// deferral has lapsed. Feeds the delivery job.
func (r *NotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = 'pending'
		   OR (status = 'deferred' AND deferred_until <= $1)
		ORDER BY created_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}
	defer rows.Close()

	var due []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, n)
	}
	return due, rows.Err()
}

// DeleteOld removes read notifications older than the cutoff.
func (r *NotificationRepository) DeleteOld(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.conn.Exec(ctx, `
		DELETE FROM notifications
		WHERE created_at < $1 AND (read_at IS NOT NULL OR status = 'skipped')
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	var (
		n                   notification.Notification
		kind, status        string
		priority            int
		titleJSON, bodyJSON []byte
		dataJSON            []byte
	)

	err := row.Scan(
		&n.ID,
		&n.LearnerID,
		&kind,
		&priority,
		&titleJSON,
		&bodyJSON,
		&dataJSON,
		&status,
		&n.DeferredUntil,
		&n.DeliveredAt,
		&n.ReadAt,
		&n.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	n.Kind = notification.Kind(kind)
	n.Priority = notification.Priority(priority)
	n.Status = notification.Status(status)

	if err := unmarshalTexts(titleJSON, bodyJSON, &n.Title, &n.Body); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
	}

	return &n, nil
}
