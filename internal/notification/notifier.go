// Package notification records user-visible notifications produced by
// background jobs.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification) error
	// NotifyOnce delivers n unless a notification of the same user, type and
	// reference exists since the given time. It reports whether n was sent.
	NotifyOnce(ctx context.Context, n *domain.Notification, since time.Time) (bool, error)
}

// Store persists notifications.
type Store interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	NotificationExistsSince(ctx context.Context, userID string, t domain.NotificationType, refID string, since time.Time) (bool, error)
}

// StoreNotifier delivers by writing to the store; clients read them from there.
type StoreNotifier struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

var _ Notifier = (*StoreNotifier)(nil)

// NewStoreNotifier creates a StoreNotifier.
func NewStoreNotifier(st Store, logger *zap.Logger) (*StoreNotifier, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &StoreNotifier{store: st, logger: logger, now: time.Now}, nil
}

// Notify validates the metadata and persists n.
func (s *StoreNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	if n.UserID == "" {
		return errors.New("notification user id required")
	}
	if err := n.Metadata.Data().Validate(); err != nil {
		return err
	}
	if n.ActorID == "" {
		n.ActorID = domain.SystemActorID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("notify %s: %w", n.UserID, err)
	}
	s.logger.Debug("notification created",
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
		zap.String("ref_id", n.RefID))
	return nil
}

// NotifyOnce implements Notifier.
func (s *StoreNotifier) NotifyOnce(ctx context.Context, n *domain.Notification, since time.Time) (bool, error) {
	exists, err := s.store.NotificationExistsSince(ctx, n.UserID, n.Type, n.Metadata.Data().RefID(), since)
	if err != nil {
		return false, fmt.Errorf("check existing notification: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := s.Notify(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}
