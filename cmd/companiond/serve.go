package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/companiond/internal/http"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// serve runs until ctx is cancelled, then shuts down the server, the
// scheduler and the queue in that order.
func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version), logger.Underlying())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := a.store.Migrate(ctx); err != nil {
		a.close(context.Background())
		return fmt.Errorf("failed to migrate: %w", err)
	}

	sched, err := a.newScheduler()
	if err != nil {
		a.close(context.Background())
		return err
	}

	srv, err := httpserver.NewServer(httpserver.Services{
		Store:           a.store,
		Personalization: a.personalization,
		Updater:         a.updater,
		Patterns:        a.analyzer,
		Detector:        a.detector,
		Gate:            a.gate,
		Recommender:     a.recommender,
		Tracker:         a.tracker,
		Chat:            a.responder,
	}, logger, &httpserver.Config{Port: cfg.Server.Port},
		httpserver.WithTracer(tel.Tracer("github.com/fyrsmithlabs/companiond/internal/http")),
		httpserver.WithMetrics(httpserver.NewHTTPMetrics(tel.Meter("github.com/fyrsmithlabs/companiond/internal/http"), logger.Underlying())),
	)
	if err != nil {
		a.close(context.Background())
		return err
	}

	logger.Info(ctx, "starting companiond",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("llm_provider", cfg.LLM.Provider),
		logging.Secret("llm_api_key", cfg.LLM.APIKey),
		zap.Bool("telemetry", tel.Enabled()),
	)

	if a.redactor != nil {
		go func() {
			if err := a.redactor.Watch(ctx); err != nil {
				logger.Warn(ctx, "redaction rules watcher stopped", zap.Error(err))
			}
		}()
	}

	sched.Start()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info(ctx, "shutdown signal received")
	case runErr = <-errCh:
		logger.Error(ctx, "http server stopped", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown failed", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "scheduler shutdown failed", zap.Error(err))
	}
	a.close(shutdownCtx)
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
	}
	logger.Info(shutdownCtx, "shutdown complete")
	return runErr
}
