package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/notification"
)

const JobReminders = "reminders"

// UnratedLister finds completed interventions still waiting for a rating.
type UnratedLister interface {
	CompletedUnratedBetween(ctx context.Context, from, to time.Time) ([]domain.InterventionProgress, error)
}

// ReminderStats summarizes one reminder run.
type ReminderStats struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// ReminderJob asks users to rate interventions completed one to seven days
// ago, at most once per day per intervention.
type ReminderJob struct {
	progress UnratedLister
	notifier notification.Notifier
	logger   *zap.Logger
	metrics  *Metrics
	opts     options
}

// NewReminderJob creates the job.
func NewReminderJob(progress UnratedLister, notifier notification.Notifier, logger *zap.Logger, opts ...Option) (*ReminderJob, error) {
	if progress == nil {
		return nil, errors.New("progress lister cannot be nil")
	}
	if notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &ReminderJob{
		progress: progress,
		notifier: notifier,
		logger:   logger,
		metrics:  NewMetrics(),
		opts:     newOptions(opts),
	}, nil
}

// Run sends the day's rating prompts.
func (j *ReminderJob) Run(ctx context.Context) (ReminderStats, error) {
	now := j.opts.now().UTC()
	var stats ReminderStats

	records, err := j.progress.CompletedUnratedBetween(ctx, now.AddDate(0, 0, -7), now.Add(-24*time.Hour))
	if err != nil {
		return stats, err
	}
	stats.Candidates = len(records)
	startOfDay := now.Truncate(24 * time.Hour)

	for _, p := range records {
		if p.CompletedAt == nil {
			continue
		}
		n := &domain.Notification{
			UserID:    p.UserID,
			ActorID:   domain.SystemActorID,
			Type:      domain.NotificationInterventionPrompt,
			Title:     "How did it go?",
			CreatedAt: now,
			Message:   fmt.Sprintf("You completed %s recently. On a scale of 1 to 10, how helpful was it?", displayName(p)),
			Metadata: datatypes.NewJSONType(domain.NotificationMetadata{
				PromptType: domain.PromptEffectivenessRating,
				Rating: &domain.RatingPrompt{
					InterventionID:   p.InterventionID,
					InterventionName: p.InterventionName,
					CompletedAt:      *p.CompletedAt,
				},
			}),
		}
		sent, err := j.notifier.NotifyOnce(ctx, n, startOfDay)
		switch {
		case err != nil:
			stats.Errors++
			j.metrics.UsersTotal.WithLabelValues(JobReminders, "error").Inc()
			runLogger(logging.WithUserID(ctx, p.UserID), j.logger).Warn("rating reminder failed",
				zap.String("intervention_id", p.InterventionID),
				zap.Error(err))
		case sent:
			stats.Sent++
			j.metrics.UsersTotal.WithLabelValues(JobReminders, "sent").Inc()
		default:
			stats.Duplicates++
			j.metrics.UsersTotal.WithLabelValues(JobReminders, "duplicate").Inc()
		}
	}

	runLogger(ctx, j.logger).Info("rating reminders finished",
		zap.Int("candidates", stats.Candidates),
		zap.Int("sent", stats.Sent),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

func displayName(p domain.InterventionProgress) string {
	if p.InterventionName != "" {
		return p.InterventionName
	}
	return p.InterventionID
}
