package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/llm"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/notification"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
	"github.com/fyrsmithlabs/companiond/internal/personalization"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

var testNow = time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)

func fixedClock() Option { return WithClock(func() time.Time { return testNow }) }

type fakeUsers struct {
	ids   []string
	since time.Time
	err   error
}

func (f *fakeUsers) ActiveUserIDs(_ context.Context, since time.Time) ([]string, error) {
	f.since = since
	return f.ids, f.err
}

type fakeUpdater struct {
	mu      sync.Mutex
	calls   []string
	skip    map[string]bool
	fail    map[string]bool
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeUpdater) UpdateIfDue(_ context.Context, userID string) (*personalization.UpdateOutcome, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	f.calls = append(f.calls, userID)
	f.mu.Unlock()
	if f.fail[userID] {
		return nil, errors.New("analysis failed")
	}
	return &personalization.UpdateOutcome{UserID: userID, Skipped: f.skip[userID]}, nil
}

type fakeSummaries struct{ created atomic.Int32 }

func (f *fakeSummaries) EnsureSummaries(context.Context, string, time.Time) (int, error) {
	f.created.Add(1)
	return 1, nil
}

func userIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%02d", i)
	}
	return ids
}

func TestPersonalizationJob_Run(t *testing.T) {
	users := &fakeUsers{ids: userIDs(25)}
	up := &fakeUpdater{
		skip: map[string]bool{"user-03": true, "user-04": true},
		fail: map[string]bool{"user-07": true},
	}
	sums := &fakeSummaries{}
	var sleeps []time.Duration

	cfg := config.JobsConfig{BatchSize: 10, BatchDelay: config.Duration(time.Second), ActiveWindowDays: 30}
	job, err := NewPersonalizationJob(users, up, sums, cfg, zap.NewNop(), fixedClock(),
		WithSleep(func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}))
	require.NoError(t, err)

	stats, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, stats.Users)
	assert.Equal(t, 22, stats.Analyzed)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 25, stats.Summaries)

	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeps)
	assert.LessOrEqual(t, up.peak.Load(), int32(10))
	assert.Len(t, up.calls, 25)
	assert.Equal(t, testNow.AddDate(0, 0, -30), users.since)
}

func TestPersonalizationJob_LogsCarryRunContext(t *testing.T) {
	logs := logging.NewTestLogger()
	up := &fakeUpdater{fail: map[string]bool{"user-01": true}}
	job, err := NewPersonalizationJob(&fakeUsers{ids: userIDs(3)}, up, nil,
		config.JobsConfig{BatchSize: 10}, logs.Underlying(), fixedClock())
	require.NoError(t, err)

	ctx := logging.WithJobID(context.Background(), "personalization-run-1")
	_, err = job.Run(ctx)
	require.NoError(t, err)

	logs.AssertField(t, "personalization update failed", "user.id", "user-01")
	logs.AssertField(t, "personalization update failed", "job.id", "personalization-run-1")
	logs.AssertField(t, "personalization run finished", "job.id", "personalization-run-1")
}

func TestPersonalizationJob_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	up := &fakeUpdater{}
	job, err := NewPersonalizationJob(&fakeUsers{ids: userIDs(15)}, up, nil,
		config.JobsConfig{BatchSize: 10, BatchDelay: config.Duration(time.Hour)}, zap.NewNop())
	require.NoError(t, err)

	cancel()
	stats, err := job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, up.calls, 10)
	assert.Equal(t, 10, stats.Analyzed)
}

func TestPersonalizationJob_ListError(t *testing.T) {
	job, err := NewPersonalizationJob(&fakeUsers{err: errors.New("db down")}, &fakeUpdater{}, nil, config.JobsConfig{}, zap.NewNop())
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func newNotifier(t *testing.T, s *store.Store) *notification.StoreNotifier {
	t.Helper()
	n, err := notification.NewStoreNotifier(s, zap.NewNop())
	require.NoError(t, err)
	return n
}

func progressRecord(userID, id string, completedAgo time.Duration, rating *int) *domain.InterventionProgress {
	done := testNow.Add(-completedAgo)
	return &domain.InterventionProgress{
		UserID:              userID,
		InterventionID:      id,
		InterventionName:    id,
		InterventionType:    domain.InterventionAnxiety,
		Status:              domain.StatusCompleted,
		TotalSteps:          4,
		Attempts:            1,
		EffectivenessRating: rating,
		StartedAt:           done.Add(-time.Hour),
		LastActiveAt:        done,
		CompletedAt:         &done,
	}
}

func TestReminderJob_Run(t *testing.T) {
	ctx := context.Background()
	s := store.NewTestStore(t)
	rated := 7
	for _, p := range []*domain.InterventionProgress{
		progressRecord("u1", "box-breathing", 48*time.Hour, nil),
		progressRecord("u1", "worry-time", 12*time.Hour, nil),
		progressRecord("u1", "grounding-54321", 10*24*time.Hour, nil),
		progressRecord("u2", "pomodoro", 3*24*time.Hour, &rated),
		progressRecord("u2", "deep-work-block", 5*24*time.Hour, nil),
	} {
		require.NoError(t, s.SaveProgress(ctx, p))
	}

	now := testNow
	job, err := NewReminderJob(s, newNotifier(t, s), zap.NewNop(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	stats, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReminderStats{Candidates: 2, Sent: 2}, stats)

	stats, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReminderStats{Candidates: 2, Duplicates: 2}, stats)

	// A day later the earlier prompts may be repeated and worry-time enters
	// the window.
	now = testNow.Add(24 * time.Hour)
	stats, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReminderStats{Candidates: 3, Sent: 3}, stats)

	got, err := s.ListNotifications(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, n := range got {
		assert.Equal(t, domain.PromptEffectivenessRating, n.Metadata.Data().PromptType)
		assert.Equal(t, domain.NotificationInterventionPrompt, n.Type)
	}
}

type fakeAnalyzer struct{ res *patterns.Result }

func (f fakeAnalyzer) Analyze(_ context.Context, userID string, _ int) (*patterns.Result, error) {
	r := *f.res
	r.UserID = userID
	return &r, nil
}

func weeklyResult() *patterns.Result {
	done := testNow.Add(-24 * time.Hour)
	return &patterns.Result{
		From:     testNow.AddDate(0, 0, -7),
		To:       testNow,
		Moods:    []domain.Mood{{Score: 50}, {Score: 70}},
		Journals: []domain.JournalEntry{{Content: "a"}},
		Progress: []domain.InterventionProgress{
			{InterventionID: "box-breathing", InterventionName: "Box Breathing", Status: domain.StatusCompleted, CompletedAt: &done},
			{InterventionID: "worry-time", InterventionName: "Worry Time", Status: domain.StatusActive},
		},
		Top: []patterns.UserPattern{{Pattern: patterns.PatternMorningMoodBetter, Insight: "Mornings tend to be better for you."}},
	}
}

type stubLLM struct {
	reply string
	err   error
}

func (s stubLLM) Generate(context.Context, []llm.Message) (llm.Response, error) {
	return llm.Response{Content: s.reply}, s.err
}

func TestWeeklyReportJob_Generate(t *testing.T) {
	ctx := context.Background()
	s := store.NewTestStore(t)
	q, err := NewBackgroundQueue(3, zap.NewNop())
	require.NoError(t, err)

	job, err := NewWeeklyReportJob(&fakeUsers{}, fakeAnalyzer{weeklyResult()}, stubLLM{err: errors.New("timeout")},
		newNotifier(t, s), q, 7, zap.NewNop(), fixedClock())
	require.NoError(t, err)

	sent, err := job.Generate(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = job.Generate(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, sent)

	got, err := s.ListNotifications(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.NotificationWeeklyReport, got[0].Type)
	assert.Equal(t, "2026-03-16", got[0].RefID)
	w := got[0].Metadata.Data().Weekly
	require.NotNil(t, w)
	assert.True(t, w.Fallback)
	assert.Equal(t, 1, w.JournalCount)
	assert.Contains(t, got[0].Message, "average mood of 6.0")
	assert.Contains(t, got[0].Message, "You completed Box Breathing.")
	assert.NotContains(t, got[0].Message, "Worry Time")
}

func TestWeeklyReportJob_RunUsesQueue(t *testing.T) {
	ctx := context.Background()
	s := store.NewTestStore(t)
	q, err := NewBackgroundQueue(3, zap.NewNop())
	require.NoError(t, err)

	job, err := NewWeeklyReportJob(&fakeUsers{ids: []string{"u1", "u2"}}, fakeAnalyzer{weeklyResult()},
		stubLLM{reply: "What a week! Keep going."}, newNotifier(t, s), q, 7, zap.NewNop(), fixedClock())
	require.NoError(t, err)

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, q.Shutdown(ctx))

	for _, u := range []string{"u1", "u2"} {
		got, err := s.ListNotifications(ctx, u, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "What a week! Keep going.", got[0].Message)
		assert.False(t, got[0].Metadata.Data().Weekly.Fallback)
	}

	_, err = job.Run(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestFallbackReport_NoMood(t *testing.T) {
	text := fallbackReport(ReportFacts{})
	assert.Contains(t, text, "didn't log your mood")
	assert.NotContains(t, text, "journal")
}
