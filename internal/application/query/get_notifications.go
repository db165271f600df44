package query

import (
	"context"
	"errors"
	"time"

	"github.com/rianlab/rianhub/internal/domain/notification"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET NOTIFICATIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// UnreadCounter is the cached unread badge. Implemented by the Redis
// notification cache.
type UnreadCounter interface {
	GetUnreadCount(ctx context.Context, learnerID string) (count int, found bool, err error)
	SetUnreadCount(ctx context.Context, learnerID string, count int) error
}

// GetNotificationsQuery contains the inbox request parameters.
type GetNotificationsQuery struct {
	// LearnerID - whose inbox to read (required).
	LearnerID string

	// Language - render language; defaults to Thai.
	Language string

	// UnreadOnly narrows to unread notifications.
	UnreadOnly bool

	// Kind filters by notification kind; empty means all.
	Kind string

	// Limit - notifications per page (default 20, max 100).
	Limit int

	// Offset - pagination offset.
	Offset int
}

// Validate checks the query parameters and applies defaults.
func (q *GetNotificationsQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	if q.Kind != "" && !notification.Kind(q.Kind).IsValid() {
		return errors.New("unknown notification kind")
	}
	return nil
}

// NotificationDTO is one inbox row, rendered in one language.
type NotificationDTO struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Priority int    `json:"priority"`

	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  notification.Data `json:"data"`

	Read        bool       `json:"read"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GetNotificationsResult is the inbox page.
type GetNotificationsResult struct {
	Notifications []NotificationDTO `json:"notifications"`
	UnreadCount   int               `json:"unread_count"`

	GeneratedAt time.Time `json:"generated_at"`
	HasMore     bool      `json:"has_more"`
	Page        int       `json:"page"`
	PageSize    int       `json:"page_size"`
}

// GetNotificationsHandler handles inbox queries.
type GetNotificationsHandler struct {
	notificationRepo notification.Repository
	unread           UnreadCounter
}

// NewGetNotificationsHandler creates the handler. unread may be nil.
func NewGetNotificationsHandler(notificationRepo notification.Repository, unread UnreadCounter) *GetNotificationsHandler {
	return &GetNotificationsHandler{
		notificationRepo: notificationRepo,
		unread:           unread,
	}
}

// Handle executes the inbox query.
func (h *GetNotificationsHandler) Handle(ctx context.Context, query GetNotificationsQuery) (*GetNotificationsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetNotifications", shared.ErrValidation, err.Error(), err)
	}

	lang := renderLanguage(query.Language)

	filter := notification.ListFilter{
		UnreadOnly: query.UnreadOnly,
		Kind:       notification.Kind(query.Kind),
		Limit:      query.Limit + 1,
		Offset:     query.Offset,
	}
	rows, err := h.notificationRepo.ListByLearner(ctx, query.LearnerID, filter)
	if err != nil {
		return nil, shared.WrapError("query", "GetNotifications", shared.ErrNotFound, "failed to list notifications", err)
	}

	hasMore := len(rows) > query.Limit
	if hasMore {
		rows = rows[:query.Limit]
	}

	dtos := make([]NotificationDTO, 0, len(rows))
	for _, n := range rows {
		dtos = append(dtos, NotificationDTO{
			ID:          n.ID,
			Kind:        string(n.Kind),
			Priority:    int(n.Priority),
			Title:       n.Title.In(lang),
			Body:        n.Body.In(lang),
			Data:        n.Data,
			Read:        n.IsRead(),
			DeliveredAt: n.DeliveredAt,
			CreatedAt:   n.CreatedAt,
		})
	}

	unreadCount, err := h.unreadCount(ctx, query.LearnerID)
	if err != nil {
		return nil, shared.WrapError("query", "GetNotifications", shared.ErrNotFound, "failed to count unread", err)
	}

	return &GetNotificationsResult{
		Notifications: dtos,
		UnreadCount:   unreadCount,
		GeneratedAt:   time.Now().UTC(),
		HasMore:       hasMore,
		Page:          query.Offset/query.Limit + 1,
		PageSize:      query.Limit,
	}, nil
}

// unreadCount serves the badge from Redis when possible and refills the
// cache on a miss.
func (h *GetNotificationsHandler) unreadCount(ctx context.Context, learnerID string) (int, error) {
	if h.unread != nil {
		if count, found, err := h.unread.GetUnreadCount(ctx, learnerID); err == nil && found {
			return count, nil
		}
	}

	count, err := h.notificationRepo.CountUnread(ctx, learnerID)
	if err != nil {
		return 0, err
	}
	if h.unread != nil {
		_ = h.unread.SetUnreadCount(ctx, learnerID, count)
	}
	return count, nil
}
