package intervention

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

var (
	ErrUnknownIntervention = errors.New("unknown intervention")
	ErrInvalidStep         = errors.New("invalid step")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidRating       = errors.New("rating must be between 1 and 10")
)

const (
	MinRating     = 1
	MaxRating     = 10
	OutcomeWindow = 7 * 24 * time.Hour
)

// ProgressStore persists progress records and reads mood samples.
type ProgressStore interface {
	GetProgress(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error)
	SaveProgress(ctx context.Context, p *domain.InterventionProgress) error
	LatestCompletedProgress(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error)
	MoodsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Mood, error)
}

// RatingResult is the structured reply to an effectiveness rating.
type RatingResult struct {
	Success              bool    `json:"success"`
	Message              string  `json:"message"`
	AverageEffectiveness float64 `json:"averageEffectiveness,omitempty"`
	RatedCompletions     int     `json:"ratedCompletions,omitempty"`
}

// Outcome compares mood before and after an intervention on the 0-10 scale.
type Outcome struct {
	InterventionID  string   `json:"interventionId"`
	MoodBefore      *float64 `json:"moodBefore"`
	MoodAfter       *float64 `json:"moodAfter"`
	MoodImprovement *float64 `json:"moodImprovement"`
	SamplesBefore   int      `json:"samplesBefore"`
	SamplesAfter    int      `json:"samplesAfter"`
}

// Tracker drives the lifecycle of progress records.
type Tracker struct {
	store  ProgressStore
	logger *zap.Logger
	now    func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerClock overrides the tracker's clock.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker.
func NewTracker(st ProgressStore, logger *zap.Logger, opts ...TrackerOption) (*Tracker, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	t := &Tracker{store: st, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start begins an intervention. An active or paused record is resumed; a
// completed or abandoned one is re-attempted with its steps and current
// rating reset. RatedCompletions and the running average carry over.
func (t *Tracker) Start(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error) {
	iv, ok := Lookup(interventionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntervention, interventionID)
	}
	now := t.now().UTC()

	p, err := t.store.GetProgress(ctx, userID, interventionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = &domain.InterventionProgress{
			UserID:           userID,
			InterventionID:   iv.ID,
			InterventionType: iv.Type,
			InterventionName: iv.Name,
			Status:           domain.StatusActive,
			CurrentStep:      1,
			TotalSteps:       len(iv.Steps),
			CompletedSteps:   []int{},
			Attempts:         1,
			StartedAt:        now,
			LastActiveAt:     now,
		}
	case err != nil:
		return nil, err
	case p.Status == domain.StatusCompleted || p.Status == domain.StatusAbandoned:
		p.Attempts++
		p.Status = domain.StatusActive
		p.CurrentStep = 1
		p.TotalSteps = len(iv.Steps)
		p.CompletedSteps = []int{}
		p.EffectivenessRating = nil
		p.CompletedAt = nil
		p.StartedAt = now
		p.LastActiveAt = now
	default:
		p.Status = domain.StatusActive
		p.LastActiveAt = now
	}

	if err := t.store.SaveProgress(ctx, p); err != nil {
		return nil, err
	}
	t.logger.Info("intervention started",
		zap.String("user_id", userID),
		zap.String("intervention_id", interventionID),
		zap.Int("attempt", p.Attempts))
	return p, nil
}

// CompleteStep marks a 1-based step done on an active record.
func (t *Tracker) CompleteStep(ctx context.Context, userID, interventionID string, step int) (*domain.InterventionProgress, error) {
	p, err := t.store.GetProgress(ctx, userID, interventionID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusActive {
		return nil, fmt.Errorf("%w: cannot complete a step while %s", ErrInvalidTransition, p.Status)
	}
	if step < 1 || step > p.TotalSteps {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidStep, step, p.TotalSteps)
	}
	if !slices.Contains(p.CompletedSteps, step) {
		p.CompletedSteps = append(p.CompletedSteps, step)
		slices.Sort(p.CompletedSteps)
	}
	p.CurrentStep = min(step+1, p.TotalSteps)
	p.LastActiveAt = t.now().UTC()
	if err := t.store.SaveProgress(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Complete finishes an active or paused record.
func (t *Tracker) Complete(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error) {
	return t.transition(ctx, userID, interventionID, domain.StatusCompleted, domain.StatusActive, domain.StatusPaused)
}

// Pause pauses an active record.
func (t *Tracker) Pause(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error) {
	return t.transition(ctx, userID, interventionID, domain.StatusPaused, domain.StatusActive)
}

// Resume reactivates a paused record.
func (t *Tracker) Resume(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error) {
	return t.transition(ctx, userID, interventionID, domain.StatusActive, domain.StatusPaused)
}

// Abandon gives up on an active or paused record.
func (t *Tracker) Abandon(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error) {
	return t.transition(ctx, userID, interventionID, domain.StatusAbandoned, domain.StatusActive, domain.StatusPaused)
}

func (t *Tracker) transition(ctx context.Context, userID, interventionID string, to domain.ProgressStatus, from ...domain.ProgressStatus) (*domain.InterventionProgress, error) {
	p, err := t.store.GetProgress(ctx, userID, interventionID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, p.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, p.Status, to)
	}
	now := t.now().UTC()
	p.Status = to
	p.LastActiveAt = now
	if to == domain.StatusCompleted {
		p.CompletedAt = &now
		p.CurrentStep = p.TotalSteps
	}
	if err := t.store.SaveProgress(ctx, p); err != nil {
		return nil, err
	}
	t.logger.Info("intervention status changed",
		zap.String("user_id", userID),
		zap.String("intervention_id", interventionID),
		zap.String("status", string(to)))
	return p, nil
}

// ProcessEffectivenessRating folds a 1-10 rating into the running average of
// the most recent completion. Invalid input is reported in the result; the
// error is reserved for storage failures.
func (t *Tracker) ProcessEffectivenessRating(ctx context.Context, userID, interventionID string, rating int) (RatingResult, error) {
	if rating < MinRating || rating > MaxRating {
		return RatingResult{Message: ErrInvalidRating.Error()}, nil
	}
	p, err := t.store.LatestCompletedProgress(ctx, userID, interventionID)
	if errors.Is(err, store.ErrNotFound) {
		return RatingResult{Message: "no completed intervention to rate"}, nil
	}
	if err != nil {
		return RatingResult{}, err
	}
	if p.EffectivenessRating != nil {
		return RatingResult{
			Message:              "this completion has already been rated",
			AverageEffectiveness: p.AverageEffectiveness,
			RatedCompletions:     p.RatedCompletions,
		}, nil
	}

	c := float64(p.RatedCompletions)
	p.AverageEffectiveness = (p.AverageEffectiveness*c + float64(rating)) / (c + 1)
	p.RatedCompletions++
	p.EffectivenessRating = &rating
	if err := t.store.SaveProgress(ctx, p); err != nil {
		return RatingResult{}, err
	}
	t.logger.Info("effectiveness rated",
		zap.String("user_id", userID),
		zap.String("intervention_id", interventionID),
		zap.Int("rating", rating),
		zap.Float64("average", p.AverageEffectiveness))
	return RatingResult{
		Success:              true,
		Message:              "thanks for rating this intervention",
		AverageEffectiveness: p.AverageEffectiveness,
		RatedCompletions:     p.RatedCompletions,
	}, nil
}

// MeasureOutcome compares mean mood in the week before the start with the
// week after completion, or the last week when not yet completed.
func (t *Tracker) MeasureOutcome(ctx context.Context, userID, interventionID string) (*Outcome, error) {
	p, err := t.store.GetProgress(ctx, userID, interventionID)
	if err != nil {
		return nil, err
	}
	start := p.StartedAt.UTC()
	before, err := t.store.MoodsBetween(ctx, userID, start.Add(-OutcomeWindow), start)
	if err != nil {
		return nil, err
	}
	before = slices.DeleteFunc(before, func(m domain.Mood) bool { return !m.CreatedAt.Before(start) })

	from, to := t.now().UTC().Add(-OutcomeWindow), t.now().UTC()
	if p.IsCompleted() && p.CompletedAt != nil {
		from = p.CompletedAt.UTC()
		to = from.Add(OutcomeWindow)
	}
	after, err := t.store.MoodsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		InterventionID: interventionID,
		MoodBefore:     patterns.AverageMood(before),
		MoodAfter:      patterns.AverageMood(after),
		SamplesBefore:  len(before),
		SamplesAfter:   len(after),
	}
	if out.MoodBefore != nil && out.MoodAfter != nil {
		d := *out.MoodAfter - *out.MoodBefore
		out.MoodImprovement = &d
	}
	return out, nil
}
