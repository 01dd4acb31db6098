package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/jobs"
	"github.com/fyrsmithlabs/companiond/internal/logging"
)

// withApp loads configuration, builds the app and runs fn against it.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	return runWithConfig(ctx, cfg, logger, fn)
}

func runWithConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return fn(ctx, a)
}

func newAnalyzeCmd() *cobra.Command {
	var (
		userID string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one user and update their personalization",
		Long: `Analyze runs the pattern extractors for one user and merges the result
into their personalization record. Without --force the usual debounce applies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				out, err := a.updater.Update(ctx, userID, force)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to analyze (required)")
	cmd.Flags().BoolVar(&force, "force", false, "ignore the analysis debounce")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

var jobNames = []string{jobs.JobPersonalization, jobs.JobReminders, jobs.JobWeeklyReport}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <job>",
		Short:     "Run one background job once",
		Long:      "Run executes personalization, reminders or weekly-report once and waits for queued work to finish.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: jobNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return runJob(ctx, a, args[0])
			})
		},
	}
}

func runJob(ctx context.Context, a *app, name string) error {
	if !slices.Contains(jobNames, name) {
		return fmt.Errorf("unknown job %q", name)
	}
	fns, err := a.jobFuncs()
	if err != nil {
		return err
	}
	ctx = logging.WithJobID(ctx, name+"-"+uuid.NewString())
	a.log.Info(ctx, "job started", zap.String("job", name))
	if err := fns[name](ctx); err != nil {
		return err
	}
	// Weekly reports are generated on the queue.
	return a.queue.Shutdown(ctx)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				a.log.Info(ctx, "schema is up to date", zap.String("driver", a.cfg.Database.Driver))
				return nil
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
