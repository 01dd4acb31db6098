package patterns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

var (
	_ RecordSource = (*store.Store)(nil)
	_ RecordSource = (*fakeSource)(nil)
)

type fakeSource struct {
	user     *domain.User
	moods    []domain.Mood
	journals []domain.JournalEntry
	sessions []domain.ChatSession
	progress []domain.InterventionProgress
	memories []domain.LongTermMemory
	err      error

	gotFrom time.Time
}

func (f *fakeSource) GetUser(context.Context, string) (*domain.User, error) {
	if f.user == nil {
		return nil, errors.New("not found")
	}
	return f.user, nil
}

func (f *fakeSource) MoodsBetween(_ context.Context, _ string, from, _ time.Time) ([]domain.Mood, error) {
	f.gotFrom = from
	return f.moods, f.err
}

func (f *fakeSource) JournalsBetween(context.Context, string, time.Time, time.Time) ([]domain.JournalEntry, error) {
	return f.journals, nil
}

func (f *fakeSource) ChatSessionsBetween(context.Context, string, time.Time, time.Time) ([]domain.ChatSession, error) {
	return f.sessions, nil
}

func (f *fakeSource) ListProgress(context.Context, string, time.Time) ([]domain.InterventionProgress, error) {
	return f.progress, nil
}

func (f *fakeSource) ListMemories(context.Context, string, time.Time) ([]domain.LongTermMemory, error) {
	return f.memories, nil
}

func TestNewAnalyzer_Validation(t *testing.T) {
	_, err := NewAnalyzer(nil, zap.NewNop())
	assert.Error(t, err)
	_, err = NewAnalyzer(&fakeSource{}, nil)
	assert.Error(t, err)
}

func TestAnalyzer_Analyze(t *testing.T) {
	src := &fakeSource{
		user:     &domain.User{ID: "u1", Timezone: "America/New_York"},
		moods:    moodsAt([]int{10, 90, 50, 50, 50}, now.AddDate(0, 0, -5), 24*time.Hour),
		sessions: sessionsWith(10, "ok", now.AddDate(0, 0, -10), 24*time.Hour),
		progress: []domain.InterventionProgress{
			{InterventionType: domain.InterventionSleep, Status: domain.StatusActive},
			{InterventionType: domain.InterventionSleep, Status: domain.StatusCompleted},
		},
	}
	a, err := NewAnalyzer(src, zap.NewNop(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), "u1", 30)
	require.NoError(t, err)

	assert.Equal(t, now.AddDate(0, 0, -30), src.gotFrom)
	assert.Equal(t, "America/New_York", res.Location.String())
	assert.NotEmpty(t, res.Mood)
	assert.NotEmpty(t, res.Chat)
	assert.NotEmpty(t, res.Intervention)
	assert.LessOrEqual(t, len(res.Top), MaxTopPatterns)
	assert.Equal(t, 0.8, res.Top[0].Confidence)
	assert.Equal(t, 17, res.SampleSize())
	assert.Len(t, res.All(), len(res.Mood)+len(res.Journal)+len(res.Intervention)+len(res.Chat)+len(res.Memory))
	assert.Equal(t, 10, res.TimePatterns.SessionsAnalyzed)
	assert.Equal(t, 20, res.Communication.MessageCount)
}

func TestAnalyzer_UnknownUserUsesUTC(t *testing.T) {
	a, err := NewAnalyzer(&fakeSource{}, zap.NewNop(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), "ghost", 30)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, res.Location)
	assert.Empty(t, res.All())
}

func TestAnalyzer_Errors(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	a, err := NewAnalyzer(src, zap.NewNop())
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), "u1", 30)
	assert.ErrorContains(t, err, "db down")

	_, err = a.Analyze(context.Background(), "", 30)
	assert.Error(t, err)

	_, err = a.Analyze(context.Background(), "u1", 0)
	assert.Error(t, err)
}
