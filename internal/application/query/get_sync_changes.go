package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SYNC CHANGES QUERY
// The pull half of device sync: changes after the device's cursor,
// oldest first. Reading never moves the cursor; the device acks the
// cursor it persisted on its next push.
// ══════════════════════════════════════════════════════════════════════════════

// GetSyncChangesQuery contains the pull request parameters.
type GetSyncChangesQuery struct {
	// LearnerID - whose stream to read (required).
	LearnerID string

	// DeviceID - the pulling device (required); its stored cursor is
	// the default starting point.
	DeviceID string

	// Cursor, when positive, overrides the device cursor so a client
	// can re-pull after losing local state.
	Cursor int64

	// Limit - changes per page (default 100, max 500).
	Limit int
}

// Validate checks the query parameters and applies defaults.
func (q *GetSyncChangesQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if q.DeviceID == "" {
		return errors.New("device ID is required")
	}
	if q.Cursor < 0 {
		return errors.New("cursor cannot be negative")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	return nil
}

// GetSyncChangesResult is one pull page.
type GetSyncChangesResult struct {
	Changes []*sync.Change `json:"changes"`

	// NextCursor is what the device should ack after persisting the
	// page; equal to the request cursor when nothing changed.
	NextCursor int64 `json:"next_cursor"`

	// LatestCursor is the head of the learner's stream, so clients
	// can show how far behind they are.
	LatestCursor int64 `json:"latest_cursor"`

	HasMore     bool      `json:"has_more"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetSyncChangesHandler handles pull queries.
type GetSyncChangesHandler struct {
	deviceRepo sync.DeviceRepository
	changeLog  sync.ChangeLog
}

// NewGetSyncChangesHandler creates the handler.
func NewGetSyncChangesHandler(deviceRepo sync.DeviceRepository, changeLog sync.ChangeLog) *GetSyncChangesHandler {
	return &GetSyncChangesHandler{
		deviceRepo: deviceRepo,
		changeLog:  changeLog,
	}
}

// Handle executes the pull query.
func (h *GetSyncChangesHandler) Handle(ctx context.Context, query GetSyncChangesQuery) (*GetSyncChangesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetSyncChanges", shared.ErrValidation, err.Error(), err)
	}

	device, err := h.deviceRepo.GetByID(ctx, query.DeviceID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrDeviceNotFound
		}
		return nil, shared.WrapError("query", "GetSyncChanges", shared.ErrNotFound, "failed to load device", err)
	}
	if device.LearnerID != query.LearnerID {
		return nil, shared.ErrForbidden
	}

	cursor := device.Cursor
	if query.Cursor > 0 {
		cursor = query.Cursor
	}

	changes, err := h.changeLog.ListSince(ctx, query.LearnerID, cursor, query.Limit+1)
	if err != nil {
		return nil, shared.WrapError("query", "GetSyncChanges", shared.ErrNotFound, "failed to list changes", err)
	}

	hasMore := len(changes) > query.Limit
	if hasMore {
		changes = changes[:query.Limit]
	}

	next := cursor
	if len(changes) > 0 {
		next = changes[len(changes)-1].Cursor
	}

	latest, err := h.changeLog.LatestCursor(ctx, query.LearnerID)
	if err != nil {
		latest = next
	}

	return &GetSyncChangesResult{
		Changes:      changes,
		NextCursor:   next,
		LatestCursor: latest,
		HasMore:      hasMore,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
