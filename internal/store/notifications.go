package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// CreateNotification stores a notification. RefID is taken from the metadata.
func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	n.RefID = n.Metadata.Data().RefID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// NotificationExistsSince reports whether a notification of type t referring
// to refID was created for the user at or after since.
func (s *Store) NotificationExistsSince(ctx context.Context, userID string, t domain.NotificationType, refID string, since time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND type = ? AND ref_id = ? AND created_at >= ?", userID, t, refID, since.UTC()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return n > 0, nil
}

// ListNotifications returns up to limit of the user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}
