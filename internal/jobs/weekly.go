package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/llm"
	"github.com/fyrsmithlabs/companiond/internal/notification"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
	"github.com/fyrsmithlabs/companiond/internal/summary"
)

const (
	JobWeeklyReport = "weekly-report"

	reportLookbackDays = 7
	reportTopPatterns  = 3
)

// ReportAnalyzer loads a user's recent data and patterns.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, userID string, lookbackDays int) (*patterns.Result, error)
}

// ReportFacts are the numbers a weekly report is written from.
type ReportFacts struct {
	AverageMood  *float64
	MoodCount    int
	JournalCount int
	Completed    []string
	Insights     []string
	ChatSessions int
	PeriodStart  time.Time
	PeriodEnd    time.Time
}

// WeeklyReportJob generates one report per active user on the background
// queue and delivers it as a weekly_report notification, once per week.
type WeeklyReportJob struct {
	users    ActiveUserLister
	analyzer ReportAnalyzer
	llm      llm.Client
	notifier notification.Notifier
	queue    *BackgroundQueue
	window   int
	logger   *zap.Logger
	metrics  *Metrics
	opts     options
}

// NewWeeklyReportJob creates the job. A nil client always writes the
// deterministic report.
func NewWeeklyReportJob(users ActiveUserLister, analyzer ReportAnalyzer, client llm.Client, notifier notification.Notifier, queue *BackgroundQueue, activeWindowDays int, logger *zap.Logger, opts ...Option) (*WeeklyReportJob, error) {
	switch {
	case users == nil:
		return nil, errors.New("user lister cannot be nil")
	case analyzer == nil:
		return nil, errors.New("analyzer cannot be nil")
	case notifier == nil:
		return nil, errors.New("notifier cannot be nil")
	case queue == nil:
		return nil, errors.New("queue cannot be nil")
	case logger == nil:
		return nil, errors.New("logger cannot be nil")
	}
	if client == nil {
		client = llm.NoopClient{}
	}
	if activeWindowDays <= 0 {
		activeWindowDays = reportLookbackDays
	}
	return &WeeklyReportJob{
		users:    users,
		analyzer: analyzer,
		llm:      client,
		notifier: notifier,
		queue:    queue,
		window:   activeWindowDays,
		logger:   logger,
		metrics:  NewMetrics(),
		opts:     newOptions(opts),
	}, nil
}

// Run enqueues a report for every active user and returns how many were
// enqueued.
func (j *WeeklyReportJob) Run(ctx context.Context) (int, error) {
	now := j.opts.now().UTC()
	ids, err := j.users.ActiveUserIDs(ctx, now.AddDate(0, 0, -j.window))
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, id := range ids {
		err := j.queue.Enqueue(JobWeeklyReport+":"+id, func(ctx context.Context) error {
			_, err := j.Generate(ctx, id)
			return err
		})
		if err != nil {
			return queued, err
		}
		queued++
	}
	runLogger(ctx, j.logger).Info("weekly reports enqueued", zap.Int("users", queued))
	return queued, nil
}

// Generate builds and delivers the report for one user. It reports false
// when this week's report was already delivered.
func (j *WeeklyReportJob) Generate(ctx context.Context, userID string) (bool, error) {
	now := j.opts.now().UTC()
	week := summary.WeekOf(now)

	res, err := j.analyzer.Analyze(ctx, userID, reportLookbackDays)
	if err != nil {
		return false, fmt.Errorf("analyze %s: %w", userID, err)
	}
	facts := reportFacts(res)
	text, fallback := j.write(ctx, userID, facts)

	n := &domain.Notification{
		UserID:    userID,
		ActorID:   domain.SystemActorID,
		Type:      domain.NotificationWeeklyReport,
		Title:     "Your week in review",
		Message:   text,
		CreatedAt: now,
		Metadata: datatypes.NewJSONType(domain.NotificationMetadata{
			PromptType: domain.PromptWeeklyReport,
			Weekly: &domain.WeeklyReport{
				PeriodStart:  week.Start,
				PeriodEnd:    week.End,
				Text:         text,
				AverageMood:  facts.AverageMood,
				JournalCount: facts.JournalCount,
				Fallback:     fallback,
			},
		}),
	}
	sent, err := j.notifier.NotifyOnce(ctx, n, week.Start)
	if err != nil {
		j.metrics.UsersTotal.WithLabelValues(JobWeeklyReport, "error").Inc()
		return false, err
	}
	if sent {
		j.metrics.UsersTotal.WithLabelValues(JobWeeklyReport, "sent").Inc()
	} else {
		j.metrics.UsersTotal.WithLabelValues(JobWeeklyReport, "duplicate").Inc()
	}
	return sent, nil
}

func reportFacts(res *patterns.Result) ReportFacts {
	f := ReportFacts{
		AverageMood:  patterns.AverageMood(res.Moods),
		MoodCount:    len(res.Moods),
		JournalCount: len(res.Journals),
		ChatSessions: len(res.Sessions),
		PeriodStart:  res.From,
		PeriodEnd:    res.To,
	}
	for _, p := range res.Progress {
		if p.IsCompleted() && p.CompletedAt != nil && !p.CompletedAt.Before(res.From) {
			f.Completed = append(f.Completed, displayName(p))
		}
	}
	for i, p := range res.Top {
		if i == reportTopPatterns {
			break
		}
		if p.Insight != "" {
			f.Insights = append(f.Insights, p.Insight)
		}
	}
	return f
}

const reportPrompt = `You write a short, warm weekly check-in for a user of a wellbeing companion app.
Use only the facts given. Keep it under 120 words, speak directly to the user, and end with one gentle suggestion.
Do not diagnose or use clinical language.`

// write returns the report text and whether the deterministic text was used.
func (j *WeeklyReportJob) write(ctx context.Context, userID string, f ReportFacts) (string, bool) {
	resp, err := j.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: reportPrompt},
		{Role: llm.RoleUser, Content: factsText(f)},
	})
	if err == nil && strings.TrimSpace(resp.Content) != "" {
		return strings.TrimSpace(resp.Content), false
	}
	if err != nil && !errors.Is(err, llm.ErrUnavailable) {
		j.logger.Warn("llm report failed, using fallback", zap.String("user_id", userID), zap.Error(err))
	}
	return fallbackReport(f), true
}

func factsText(f ReportFacts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mood check-ins: %d\n", f.MoodCount)
	if f.AverageMood != nil {
		fmt.Fprintf(&b, "Average mood: %.1f/10\n", *f.AverageMood)
	}
	fmt.Fprintf(&b, "Journal entries: %d\n", f.JournalCount)
	fmt.Fprintf(&b, "Conversations: %d\n", f.ChatSessions)
	if len(f.Completed) > 0 {
		fmt.Fprintf(&b, "Completed exercises: %s\n", strings.Join(f.Completed, ", "))
	}
	for _, in := range f.Insights {
		fmt.Fprintf(&b, "Observation: %s\n", in)
	}
	return b.String()
}

func fallbackReport(f ReportFacts) string {
	var parts []string
	switch {
	case f.AverageMood != nil:
		parts = append(parts, fmt.Sprintf("This week you checked in %d times, with an average mood of %.1f out of 10.", f.MoodCount, *f.AverageMood))
	default:
		parts = append(parts, "You didn't log your mood this week. A quick check-in can help spot what lifts you.")
	}
	if f.JournalCount > 0 {
		parts = append(parts, fmt.Sprintf("You wrote %d journal %s.", f.JournalCount, plural(f.JournalCount, "entry", "entries")))
	}
	if len(f.Completed) > 0 {
		parts = append(parts, fmt.Sprintf("You completed %s. Nice work.", strings.Join(f.Completed, ", ")))
	}
	if len(f.Insights) > 0 {
		parts = append(parts, f.Insights[0])
	}
	parts = append(parts, "Be kind to yourself this coming week.")
	return strings.Join(parts, " ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
