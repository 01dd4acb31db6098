package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/logging"
)

// Func is a scheduled unit of work.
type Func func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules in UTC. Overlapping runs of
// the same job are skipped and panics are recovered.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logging.Logger
	metrics *Metrics

	mu      sync.Mutex
	jobs    map[string]Func
	startup []string
	wg      sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// RunOnStartup runs the named jobs once when the scheduler starts.
func RunOnStartup(names ...string) SchedulerOption {
	return func(s *Scheduler) { s.startup = append(s.startup, names...) }
}

// NewScheduler creates a Scheduler.
func NewScheduler(logger *logging.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	cl := cronLogger{logger.Underlying().Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		metrics: NewMetrics(),
		jobs:    make(map[string]Func),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add registers fn under name with a cron spec such as "0 9 * * *" or
// "@every 24h".
func (s *Scheduler) Add(name, spec string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunNow(name) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs[name] = fn
	s.logger.Info(s.ctx, "job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start starts the cron loop and the startup runs.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, name := range s.startup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.RunNow(name)
		}()
	}
}

// RunNow runs the named job synchronously and records its metrics. Each run
// gets its own job id in the context, and the scheduler's logger is stored
// there for the job to pick up with logging.FromContext.
func (s *Scheduler) RunNow(name string) (err error) {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	ctx := logging.WithJobID(s.ctx, name+"-"+uuid.NewString())
	ctx = logging.WithLogger(ctx, s.logger)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		status := "ok"
		if err != nil {
			status = "error"
			s.logger.Error(ctx, "job failed", zap.String("job", name), zap.Error(err))
		}
		s.metrics.RunsTotal.WithLabelValues(name, status).Inc()
		s.metrics.RunDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	s.logger.Info(ctx, "job started", zap.String("job", name))
	if err = fn(ctx); err == nil {
		s.logger.Info(ctx, "job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	}
	return err
}

// Stop stops scheduling, cancels running jobs and waits for them until ctx
// ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLogger returns base with the correlation fields carried by ctx.
func runLogger(ctx context.Context, base *zap.Logger) *zap.Logger {
	return base.With(logging.ContextFields(ctx)...)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
