package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/cache"
	"github.com/fyrsmithlabs/companiond/internal/chat"
	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/intervention"
	"github.com/fyrsmithlabs/companiond/internal/jobs"
	"github.com/fyrsmithlabs/companiond/internal/llm"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/notification"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
	"github.com/fyrsmithlabs/companiond/internal/personalization"
	"github.com/fyrsmithlabs/companiond/internal/redact"
	"github.com/fyrsmithlabs/companiond/internal/store"
	"github.com/fyrsmithlabs/companiond/internal/summary"
)

// app holds every long-lived component.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	logger *zap.Logger // log.Underlying()

	store    *store.Store
	cache    cache.Cache
	llm      llm.Client
	nats     *nats.Conn
	redactor *redact.Reloader // nil when built-in rules are used

	analyzer        *patterns.Analyzer
	personalization *personalization.Service
	updater         *personalization.Updater
	summarizer      *summary.Summarizer
	detector        *intervention.Detector
	gate            *intervention.Gate
	recommender     *intervention.Recommender
	tracker         *intervention.Tracker
	responder       *chat.Responder
	notifier        notification.Notifier
	queue           *jobs.BackgroundQueue
}

func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (_ *app, err error) {
	logger := log.Underlying()
	a := &app{cfg: cfg, log: log, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	if a.store, err = store.Open(cfg.Database, logger); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if a.cache, err = cache.New(ctx, cfg.Redis, logger); err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	client, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	var redactor llm.Redactor
	if cfg.LLM.RedactionRules != "" {
		if a.redactor, err = redact.NewReloader(cfg.LLM.RedactionRules, logger); err != nil {
			return nil, fmt.Errorf("failed to load redaction rules: %w", err)
		}
		redactor = a.redactor
	}
	a.llm = llm.WithRedaction(client, redactor, logger)

	if a.analyzer, err = patterns.NewAnalyzer(a.store, logger); err != nil {
		return nil, err
	}
	if a.personalization, err = personalization.NewService(a.store, a.cache, cfg.Personalization.DefaultDecayRate, cfg.Redis.CacheTTL.Duration(), logger); err != nil {
		return nil, err
	}
	if a.updater, err = personalization.NewUpdater(a.store, a.analyzer, cfg.Personalization, logger, personalization.WithUpdaterCache(a.cache)); err != nil {
		return nil, err
	}

	classifier := intervention.NewKeywordClassifier()
	a.detector = intervention.NewDetector(classifier)
	if a.summarizer, err = summary.NewSummarizer(a.store, a.llm, classifier, logger); err != nil {
		return nil, err
	}
	if a.gate, err = intervention.NewGate(a.store, a.cache, logger,
		intervention.WithLocator(a.store.UserLocation),
		intervention.WithGrader(classifier),
	); err != nil {
		return nil, err
	}
	if a.recommender, err = intervention.NewRecommender(a.store, logger); err != nil {
		return nil, err
	}
	if a.tracker, err = intervention.NewTracker(a.store, logger); err != nil {
		return nil, err
	}
	if a.responder, err = chat.NewResponder(chat.Deps{
		Store:        a.store,
		Detector:     a.detector,
		Gate:         a.gate,
		Recommender:  a.recommender,
		Personalizer: a.personalization,
		LLM:          a.llm,
	}, logger); err != nil {
		return nil, err
	}

	if a.notifier, err = a.newNotifier(); err != nil {
		return nil, err
	}
	if a.queue, err = jobs.NewBackgroundQueue(cfg.Jobs.QueueConcurrency, logger); err != nil {
		return nil, err
	}
	return a, nil
}

// newNotifier stores notifications and, when NATS is configured, also
// publishes them.
func (a *app) newNotifier() (notification.Notifier, error) {
	sn, err := notification.NewStoreNotifier(a.store, a.logger)
	if err != nil {
		return nil, err
	}
	if a.cfg.Events.NATSURL == "" {
		return sn, nil
	}
	a.nats, err = nats.Connect(a.cfg.Events.NATSURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", a.cfg.Events.NATSURL, err)
	}
	a.log.Info(context.Background(), "connected to NATS", zap.String("url", a.cfg.Events.NATSURL))
	return notification.NewEventNotifier(sn, a.nats, a.cfg.Events.SubjectPrefix, a.logger)
}

// jobFuncs returns the runnable jobs by name.
func (a *app) jobFuncs() (map[string]jobs.Func, error) {
	pj, err := jobs.NewPersonalizationJob(a.store, a.updater, a.summarizer, a.cfg.Jobs, a.logger)
	if err != nil {
		return nil, err
	}
	rj, err := jobs.NewReminderJob(a.store, a.notifier, a.logger)
	if err != nil {
		return nil, err
	}
	wj, err := jobs.NewWeeklyReportJob(a.store, a.analyzer, a.llm, a.notifier, a.queue, a.cfg.Jobs.ActiveWindowDays, a.logger)
	if err != nil {
		return nil, err
	}
	return map[string]jobs.Func{
		jobs.JobPersonalization: func(ctx context.Context) error {
			_, err := pj.Run(ctx)
			return err
		},
		jobs.JobReminders: func(ctx context.Context) error {
			_, err := rj.Run(ctx)
			return err
		},
		jobs.JobWeeklyReport: func(ctx context.Context) error {
			_, err := wj.Run(ctx)
			return err
		},
	}, nil
}

// newScheduler registers every job on its configured schedule.
func (a *app) newScheduler() (*jobs.Scheduler, error) {
	fns, err := a.jobFuncs()
	if err != nil {
		return nil, err
	}
	var opts []jobs.SchedulerOption
	if a.cfg.Jobs.RunOnStartup {
		opts = append(opts, jobs.RunOnStartup(jobs.JobPersonalization))
	}
	s, err := jobs.NewScheduler(a.log, opts...)
	if err != nil {
		return nil, err
	}
	specs := map[string]string{
		jobs.JobPersonalization: fmt.Sprintf("@every %dh", a.cfg.Jobs.IntervalHours),
		jobs.JobReminders:       a.cfg.Jobs.ReminderSchedule,
		jobs.JobWeeklyReport:    a.cfg.Jobs.WeeklyReportSchedule,
	}
	for _, name := range []string{jobs.JobPersonalization, jobs.JobReminders, jobs.JobWeeklyReport} {
		if err := s.Add(name, specs[name], fns[name]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// close drains the queue and releases connections.
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.queue != nil {
		if err := a.queue.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}
	}
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn(ctx, "shutdown incomplete", zap.Error(err))
	}
}
