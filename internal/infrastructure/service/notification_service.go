// Package service contains adapters binding infrastructure pieces to
// the ports the application layer and scheduler jobs define.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/mastery"
	"github.com/rianlab/rianhub/internal/domain/notification"
	"github.com/rianlab/rianhub/internal/domain/shared"
)

// UnreadCountInvalidator drops a learner's cached unread badge after a
// new notification is created. Implemented by the Redis cache.
type UnreadCountInvalidator interface {
	InvalidateUnreadCount(ctx context.Context, learnerID string) error
}

// NotificationService creates notifications from bilingual templates.
// It backs the RankNotifier, RustyNotifier and StreakNotifier ports of
// the scheduler jobs as well as the event handlers.
type NotificationService struct {
	notifications notification.Repository
	unread        UnreadCountInvalidator
	logger        *slog.Logger
}

// NewNotificationService creates the service. unread may be nil when no
// cache is wired.
func NewNotificationService(
	notifications notification.Repository,
	unread UnreadCountInvalidator,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		notifications: notifications,
		unread:        unread,
		logger:        logger,
	}
}

// Notify renders and stores one pending notification. Delivery itself
// happens in the delivery job, which applies preference gates and
// quiet hours.
func (s *NotificationService) Notify(
	ctx context.Context,
	learnerID string,
	kind notification.Kind,
	params notification.TemplateParams,
	data notification.Data,
) (*notification.Notification, error) {
	title, body, err := notification.Render(kind, params)
	if err != nil {
		return nil, fmt.Errorf("failed to render notification: %w", err)
	}

	n, err := notification.New(uuid.New().String(), learnerID, kind, title, body, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build notification: %w", err)
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	if s.unread != nil {
		if err := s.unread.InvalidateUnreadCount(ctx, learnerID); err != nil {
			s.logger.Warn("failed to invalidate unread count",
				"learner_id", learnerID,
				"error", err,
			)
		}
	}

	s.logger.Debug("notification created",
		"notification_id", n.ID,
		"learner_id", learnerID,
		"kind", string(kind),
	)
	return n, nil
}

// NotifyRankChange implements the rebuild job's RankNotifier port.
func (s *NotificationService) NotifyRankChange(ctx context.Context, learnerID string, oldRank, newRank shared.Rank) error {
	_, err := s.Notify(ctx, learnerID, notification.KindRankChanged,
		notification.TemplateParams{
			OldRank: int(oldRank),
			NewRank: int(newRank),
		},
		notification.Data{
			OldRank: int(oldRank),
			NewRank: int(newRank),
		},
	)
	return err
}

// NotifyRusty implements the decay job's RustyNotifier port.
func (s *NotificationService) NotifyRusty(ctx context.Context, learnerID string, competency *mastery.Competency) error {
	_, err := s.Notify(ctx, learnerID, notification.KindMasteryRusty,
		notification.TemplateParams{
			CompetencyName: competency.Name,
		},
		notification.Data{
			CompetencyID: competency.ID,
		},
	)
	return err
}

// NotifyStreakAtRisk implements the reminder job's StreakNotifier port.
func (s *NotificationService) NotifyStreakAtRisk(ctx context.Context, l *learner.Learner) error {
	_, err := s.Notify(ctx, l.ID, notification.KindStreakReminder,
		notification.TemplateParams{
			LearnerName: l.DisplayName,
			StreakDays:  l.CurrentStreak,
		},
		notification.Data{
			StreakDays: l.CurrentStreak,
		},
	)
	return err
}

// NotifyWelcome greets a fresh registration.
func (s *NotificationService) NotifyWelcome(ctx context.Context, l *learner.Learner) error {
	_, err := s.Notify(ctx, l.ID, notification.KindWelcome,
		notification.TemplateParams{LearnerName: l.DisplayName},
		notification.Data{},
	)
	return err
}

// NotifyLevelUp announces a new level.
func (s *NotificationService) NotifyLevelUp(ctx context.Context, learnerID string, oldLevel, newLevel shared.Level) error {
	_, err := s.Notify(ctx, learnerID, notification.KindLevelUp,
		notification.TemplateParams{Level: newLevel.Int()},
		notification.Data{
			OldLevel: oldLevel.Int(),
			NewLevel: newLevel.Int(),
		},
	)
	return err
}

// NotifyAchievement announces an earned achievement.
func (s *NotificationService) NotifyAchievement(ctx context.Context, learnerID, achievementID string, name shared.LocalizedText) error {
	_, err := s.Notify(ctx, learnerID, notification.KindAchievement,
		notification.TemplateParams{AchievementName: name},
		notification.Data{AchievementID: achievementID},
	)
	return err
}

// NotifyStreakMilestone celebrates round streak numbers.
func (s *NotificationService) NotifyStreakMilestone(ctx context.Context, learnerID string, days int) error {
	_, err := s.Notify(ctx, learnerID, notification.KindStreakMilestone,
		notification.TemplateParams{StreakDays: days},
		notification.Data{StreakDays: days},
	)
	return err
}

// NotifyCoursePublished fans a course announcement out to learners.
func (s *NotificationService) NotifyCoursePublished(ctx context.Context, learnerIDs []string, courseID string, title shared.LocalizedText) error {
	var firstErr error
	for _, id := range learnerIDs {
		_, err := s.Notify(ctx, id, notification.KindCoursePublished,
			notification.TemplateParams{CourseTitle: title},
			notification.Data{CourseID: courseID},
		)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
