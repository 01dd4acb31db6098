package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestEventNotifier_PublishesStoredNotification(t *testing.T) {
	ctx := context.Background()
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("companiond.notifications.>", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	inner, _ := newTestNotifier(t)
	en, err := NewEventNotifier(inner, nc, "", zap.NewNop())
	require.NoError(t, err)

	startOfDay := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	sent, err := en.NotifyOnce(ctx, ratingPrompt("user.1", "box-breathing"), startOfDay)
	require.NoError(t, err)
	require.True(t, sent)

	select {
	case msg := <-ch:
		assert.Equal(t, "companiond.notifications.user_1.intervention_prompt", msg.Subject)
		var got domain.Notification
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "user.1", got.UserID)
		assert.Equal(t, "box-breathing", got.RefID)
		assert.Equal(t, domain.PromptEffectivenessRating, got.Metadata.Data().PromptType)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notification event")
	}

	// A duplicate is neither stored nor published.
	sent, err = en.NotifyOnce(ctx, ratingPrompt("user.1", "box-breathing"), startOfDay)
	require.NoError(t, err)
	assert.False(t, sent)
	require.NoError(t, nc.Flush())
	select {
	case msg := <-ch:
		t.Fatalf("unexpected event on %s", msg.Subject)
	case <-time.After(100 * time.Millisecond):
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(string, []byte) error {
	f.calls++
	return errors.New("nats: connection closed")
}

func TestEventNotifier_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	inner, s := newTestNotifier(t)
	pub := &failingPublisher{}
	en, err := NewEventNotifier(inner, pub, "test", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, en.Notify(ctx, ratingPrompt("u1", "pomodoro")))
	assert.Equal(t, 1, pub.calls)

	got, err := s.ListNotifications(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEventNotifier_InvalidIsNotPublished(t *testing.T) {
	inner, _ := newTestNotifier(t)
	pub := &failingPublisher{}
	en, err := NewEventNotifier(inner, pub, "test", zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, en.Notify(context.Background(), ratingPrompt("", "pomodoro")))
	assert.Zero(t, pub.calls)
}

func TestNewEventNotifier_Validation(t *testing.T) {
	inner, _ := newTestNotifier(t)
	_, err := NewEventNotifier(nil, &failingPublisher{}, "", zap.NewNop())
	assert.Error(t, err)
	_, err = NewEventNotifier(inner, nil, "", zap.NewNop())
	assert.Error(t, err)
	_, err = NewEventNotifier(inner, &failingPublisher{}, "", nil)
	assert.Error(t, err)
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "a_b_c_d", subjectToken("a.b*c>d"))
	assert.Equal(t, "_", subjectToken(""))
	assert.Equal(t, "550e8400-e29b", subjectToken("550e8400-e29b"))
}
