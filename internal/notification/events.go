package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// Publisher sends a payload to a subject. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EventNotifier delivers through another Notifier and then publishes the
// stored notification to {prefix}.notifications.{user_id}.{type} so that
// push gateways can forward it.
//
// Publishing is best effort: the notification is already persisted, so a
// publish failure is logged and not returned.
type EventNotifier struct {
	next   Notifier
	pub    Publisher
	prefix string
	logger *zap.Logger
}

var _ Notifier = (*EventNotifier)(nil)

// NewEventNotifier wraps next.
func NewEventNotifier(next Notifier, pub Publisher, prefix string, logger *zap.Logger) (*EventNotifier, error) {
	if next == nil {
		return nil, errors.New("notifier cannot be nil")
	}
	if pub == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if prefix == "" {
		prefix = "companiond"
	}
	return &EventNotifier{next: next, pub: pub, prefix: prefix, logger: logger}, nil
}

// Notify implements Notifier.
func (e *EventNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	if err := e.next.Notify(ctx, n); err != nil {
		return err
	}
	e.publish(n)
	return nil
}

// NotifyOnce implements Notifier. Only sent notifications are published.
func (e *EventNotifier) NotifyOnce(ctx context.Context, n *domain.Notification, since time.Time) (bool, error) {
	sent, err := e.next.NotifyOnce(ctx, n, since)
	if err != nil || !sent {
		return sent, err
	}
	e.publish(n)
	return true, nil
}

// Subject returns the subject a notification is published on.
func (e *EventNotifier) Subject(n *domain.Notification) string {
	return fmt.Sprintf("%s.notifications.%s.%s", e.prefix, subjectToken(n.UserID), subjectToken(string(n.Type)))
}

func (e *EventNotifier) publish(n *domain.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		e.logger.Warn("failed to encode notification event", zap.String("id", n.ID), zap.Error(err))
		return
	}
	subject := e.Subject(n)
	if err := e.pub.Publish(subject, data); err != nil {
		e.logger.Warn("failed to publish notification event",
			zap.String("subject", subject),
			zap.String("id", n.ID),
			zap.Error(err))
	}
}

// subjectToken makes s safe as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
