package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// RecordSource loads the records the extractors read. *store.Store implements it.
type RecordSource interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	MoodsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Mood, error)
	JournalsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.JournalEntry, error)
	ChatSessionsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.ChatSession, error)
	ListProgress(ctx context.Context, userID string, since time.Time) ([]domain.InterventionProgress, error)
	ListMemories(ctx context.Context, userID string, since time.Time) ([]domain.LongTermMemory, error)
}

// Result is the outcome of one analysis.
type Result struct {
	UserID   string
	Location *time.Location
	From     time.Time
	To       time.Time

	Moods    []domain.Mood
	Journals []domain.JournalEntry
	Sessions []domain.ChatSession
	Progress []domain.InterventionProgress
	Memories []domain.LongTermMemory

	Mood         []UserPattern
	Journal      []UserPattern
	Intervention []UserPattern
	Chat         []UserPattern
	Memory       []UserPattern
	Top          []UserPattern

	TimePatterns  domain.TimePatterns
	Engagement    domain.EngagementMetrics
	Communication CommunicationSignals
}

// All returns every extracted pattern in extractor order.
func (r *Result) All() []UserPattern {
	var all []UserPattern
	for _, l := range [][]UserPattern{r.Mood, r.Journal, r.Intervention, r.Chat, r.Memory} {
		all = append(all, l...)
	}
	return all
}

// SampleSize is the number of records the analysis read.
func (r *Result) SampleSize() int {
	return len(r.Moods) + len(r.Journals) + len(r.Sessions) + len(r.Progress) + len(r.Memories)
}

// Analyzer runs every extractor for one user.
type Analyzer struct {
	source RecordSource
	logger *zap.Logger
	now    func() time.Time
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClock overrides the analyzer's clock.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		a.now = now
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(source RecordSource, logger *zap.Logger, opts ...AnalyzerOption) (*Analyzer, error) {
	if source == nil {
		return nil, errors.New("source cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	a := &Analyzer{source: source, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze loads the user's records from the last lookbackDays and extracts
// patterns from them.
func (a *Analyzer) Analyze(ctx context.Context, userID string, lookbackDays int) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if lookbackDays <= 0 {
		return nil, fmt.Errorf("lookback days must be positive, got %d", lookbackDays)
	}

	now := a.now().UTC()
	res := &Result{
		UserID:   userID,
		Location: time.UTC,
		From:     now.AddDate(0, 0, -lookbackDays),
		To:       now,
	}

	// Users may be managed elsewhere; fall back to UTC.
	if user, err := a.source.GetUser(ctx, userID); err == nil {
		res.Location = user.Location()
	} else {
		a.logger.Debug("user lookup failed, using UTC", zap.String("user_id", userID), zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		res.Moods, err = a.source.MoodsBetween(gctx, userID, res.From, res.To)
		return err
	})
	g.Go(func() (err error) {
		res.Journals, err = a.source.JournalsBetween(gctx, userID, res.From, res.To)
		return err
	})
	g.Go(func() (err error) {
		res.Sessions, err = a.source.ChatSessionsBetween(gctx, userID, res.From, res.To)
		return err
	})
	g.Go(func() (err error) {
		res.Progress, err = a.source.ListProgress(gctx, userID, res.From)
		return err
	})
	g.Go(func() (err error) {
		res.Memories, err = a.source.ListMemories(gctx, userID, res.From)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load records for %s: %w", userID, err)
	}

	res.Mood = MoodPatterns(res.Moods, res.Location)
	res.Journal = JournalPatterns(res.Journals, res.Location)
	res.Intervention = InterventionPatterns(res.Progress)
	res.Chat = ChatPatterns(res.Sessions, now)
	res.Memory = MemoryPatterns(res.Memories)
	res.Top = TopPatterns(res.Mood, res.Journal, res.Intervention, res.Chat, res.Memory)

	res.TimePatterns = TimePatternsFrom(res.Sessions, res.Location)
	res.Engagement = EngagementFrom(res.Sessions, now, lookbackDays)
	res.Communication = CommunicationSignalsFrom(res.Sessions)

	a.logger.Debug("patterns extracted",
		zap.String("user_id", userID),
		zap.Int("samples", res.SampleSize()),
		zap.Int("patterns", len(res.All())),
	)
	return res, nil
}
