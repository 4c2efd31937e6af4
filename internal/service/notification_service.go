package service

import (
	"context"
	"errors"

	dom "taskmate/internal/domain"
	"taskmate/internal/repo"

	"github.com/jackc/pgx/v5"
)

// NotificationService is the thin read/ack surface over the notification
// rows; creation happens only through the notifier.
type NotificationService struct {
	notifs repo.NotificationRepo
}

func NewNotificationService(notifs repo.NotificationRepo) *NotificationService {
	return &NotificationService{notifs: notifs}
}

// List returns the caller's notifications newest first, plus the unread count.
func (s *NotificationService) List(ctx context.Context, userID int64, page, size int) ([]dom.Notification, int, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	list, total, err := s.notifs.ListByUser(ctx, userID, page, size)
	if err != nil {
		return nil, 0, 0, err
	}
	unread, err := s.notifs.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return list, total, unread, nil
}

// MarkRead acknowledges one of the caller's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) (dom.Notification, error) {
	n, err := s.notifs.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Notification{}, ErrNotFound
		}
		return dom.Notification{}, err
	}
	return n, nil
}
