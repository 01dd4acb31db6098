package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/personalization"
)

const JobPersonalization = "personalization"

// ActiveUserLister lists users with chat activity since a time.
type ActiveUserLister interface {
	ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)
}

// ScheduledUpdater runs a scheduled personalization update for one user.
type ScheduledUpdater interface {
	UpdateIfDue(ctx context.Context, userID string) (*personalization.UpdateOutcome, error)
}

// SummaryWriter writes missing conversation summaries for one user.
type SummaryWriter interface {
	EnsureSummaries(ctx context.Context, userID string, now time.Time) (int, error)
}

// RunStats summarizes one personalization run.
type RunStats struct {
	Users     int           `json:"users"`
	Analyzed  int           `json:"analyzed"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Summaries int           `json:"summaries"`
	Duration  time.Duration `json:"duration"`
}

func (s *RunStats) add(o RunStats) {
	s.Analyzed += o.Analyzed
	s.Skipped += o.Skipped
	s.Errors += o.Errors
	s.Summaries += o.Summaries
}

// Option configures a job.
type Option func(*options)

type options struct {
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// WithClock overrides a job's clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSleep overrides how a job waits between batches.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, sleep: sleepCtx}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PersonalizationJob re-analyzes recently active users in batches. Users in
// a batch run in parallel; batches run one after another.
type PersonalizationJob struct {
	users     ActiveUserLister
	updater   ScheduledUpdater
	summaries SummaryWriter
	cfg       config.JobsConfig
	logger    *zap.Logger
	metrics   *Metrics
	opts      options
}

// NewPersonalizationJob creates the job. A nil summaries writer skips
// summary generation.
func NewPersonalizationJob(users ActiveUserLister, updater ScheduledUpdater, summaries SummaryWriter, cfg config.JobsConfig, logger *zap.Logger, opts ...Option) (*PersonalizationJob, error) {
	if users == nil {
		return nil, errors.New("user lister cannot be nil")
	}
	if updater == nil {
		return nil, errors.New("updater cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.ActiveWindowDays <= 0 {
		cfg.ActiveWindowDays = 30
	}
	return &PersonalizationJob{
		users:     users,
		updater:   updater,
		summaries: summaries,
		cfg:       cfg,
		logger:    logger,
		metrics:   NewMetrics(),
		opts:      newOptions(opts),
	}, nil
}

// Run processes every active user once. Per-user failures are counted and
// never abort the run; only listing users or cancellation return an error.
func (j *PersonalizationJob) Run(ctx context.Context) (RunStats, error) {
	start := time.Now()
	now := j.opts.now().UTC()
	var stats RunStats

	ids, err := j.users.ActiveUserIDs(ctx, now.AddDate(0, 0, -j.cfg.ActiveWindowDays))
	if err != nil {
		return stats, err
	}
	stats.Users = len(ids)

	for i := 0; i < len(ids); i += j.cfg.BatchSize {
		if i > 0 {
			if err := j.opts.sleep(ctx, j.cfg.BatchDelay.Duration()); err != nil {
				stats.Duration = time.Since(start)
				return stats, err
			}
		}
		batch := ids[i:min(i+j.cfg.BatchSize, len(ids))]

		var mu sync.Mutex
		var g errgroup.Group
		for _, id := range batch {
			g.Go(func() error {
				s := j.processUser(ctx, id, now)
				mu.Lock()
				stats.add(s)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	stats.Duration = time.Since(start)
	runLogger(ctx, j.logger).Info("personalization run finished",
		zap.Int("users", stats.Users),
		zap.Int("analyzed", stats.Analyzed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
		zap.Int("summaries", stats.Summaries),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

func (j *PersonalizationJob) processUser(ctx context.Context, userID string, now time.Time) RunStats {
	var s RunStats
	failed := false
	log := runLogger(logging.WithUserID(ctx, userID), j.logger)

	out, err := j.updater.UpdateIfDue(ctx, userID)
	switch {
	case err != nil:
		failed = true
		log.Warn("personalization update failed", zap.Error(err))
	case out.Skipped:
		s.Skipped++
		j.metrics.UsersTotal.WithLabelValues(JobPersonalization, "skipped").Inc()
	default:
		s.Analyzed++
		j.metrics.UsersTotal.WithLabelValues(JobPersonalization, "analyzed").Inc()
	}

	if j.summaries != nil {
		n, err := j.summaries.EnsureSummaries(ctx, userID, now)
		if err != nil {
			failed = true
			log.Warn("summary generation failed", zap.Error(err))
		}
		s.Summaries += n
	}

	if failed {
		s.Errors++
		j.metrics.UsersTotal.WithLabelValues(JobPersonalization, "error").Inc()
	}
	return s
}
