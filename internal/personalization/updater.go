package personalization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fyrsmithlabs/companiond/internal/cache"
	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

// Updater folds pattern analyses into Personalization records.
type Updater struct {
	store    Store
	analyzer PatternAnalyzer
	cache    cache.Cache
	cfg      config.PersonalizationConfig
	logger   *zap.Logger
	now      func() time.Time
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithUpdaterClock overrides the updater's clock.
func WithUpdaterClock(now func() time.Time) UpdaterOption {
	return func(u *Updater) {
		u.now = now
	}
}

// WithUpdaterCache invalidates cached effective personalization after writes.
func WithUpdaterCache(c cache.Cache) UpdaterOption {
	return func(u *Updater) {
		u.cache = c
	}
}

// NewUpdater creates an Updater.
func NewUpdater(st Store, analyzer PatternAnalyzer, cfg config.PersonalizationConfig, logger *zap.Logger, opts ...UpdaterOption) (*Updater, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if analyzer == nil {
		return nil, errors.New("analyzer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	u := &Updater{
		store:    st,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Update analyzes the user and writes the result. Unless force is set, a
// user analyzed less than MinDaysSinceAnalysis days ago is skipped.
func (u *Updater) Update(ctx context.Context, userID string, force bool) (*UpdateOutcome, error) {
	var minGap time.Duration
	if !force {
		minGap = days(u.cfg.MinDaysSinceAnalysis)
	}
	return u.update(ctx, userID, minGap)
}

// UpdateIfDue is the scheduled variant of Update: it skips users analyzed
// less than AnalysisIntervalDays ago, and never less than the debounce.
func (u *Updater) UpdateIfDue(ctx context.Context, userID string) (*UpdateOutcome, error) {
	return u.update(ctx, userID, max(days(u.cfg.AnalysisIntervalDays), days(u.cfg.MinDaysSinceAnalysis)))
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func (u *Updater) update(ctx context.Context, userID string, minGap time.Duration) (*UpdateOutcome, error) {
	now := u.now().UTC()
	out := &UpdateOutcome{UserID: userID}

	p, err := u.store.GetPersonalization(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = domain.NewPersonalization("", userID, u.cfg.DefaultDecayRate)
		out.Created = true
	case err != nil:
		return nil, fmt.Errorf("failed to load personalization: %w", err)
	}

	if minGap > 0 && p.LastAnalysis != nil {
		if since := now.Sub(*p.LastAnalysis); since < minGap {
			out.Skipped = true
			out.Reason = fmt.Sprintf("analyzed %s ago", since.Round(time.Minute))
			out.Version = p.Version
			return out, nil
		}
	}

	res, err := u.analyzer.Analyze(ctx, userID, u.cfg.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze patterns: %w", err)
	}
	observed := res.All()
	out.Patterns = len(observed)

	before := contentFingerprint(p)

	decay := p.DecayRate
	if decay <= 0 {
		decay = u.cfg.DefaultDecayRate
	}
	overrides := p.UserOverrides.Data()

	tendencies := mergeTendencies(p.BehavioralTendencies, observed, decay, now)
	p.BehavioralTendencies = datatypes.NewJSONSlice(tendencies)
	p.AdaptationRules = datatypes.NewJSONSlice(mergeRules(p.AdaptationRules, observed, tendencies, now))
	p.Communication = datatypes.NewJSONType(inferCommunication(p.Communication.Data(), overrides, res))
	p.Intent = datatypes.NewJSONType(inferIntent(p.Intent.Data(), res))
	p.TimePatterns = datatypes.NewJSONType(res.TimePatterns)
	p.Engagement = datatypes.NewJSONType(res.Engagement)
	p.DataQuality = dataQuality(res.SampleSize())
	p.LastAnalysis = &now

	out.Changed = contentFingerprint(p) != before

	expected := p.Version
	p.Version++
	if out.Created {
		err = u.store.CreatePersonalization(ctx, p)
	} else {
		err = u.store.SavePersonalization(ctx, p, expected)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save personalization: %w", err)
	}
	out.Version = p.Version

	invalidate(ctx, u.cache, u.logger, userID)

	u.logger.Info("personalization updated",
		zap.String("user_id", userID),
		zap.Bool("created", out.Created),
		zap.Bool("changed", out.Changed),
		zap.Int("version", out.Version),
		zap.Int("patterns", out.Patterns),
		zap.Int("tendencies", len(tendencies)),
	)
	return out, nil
}

// contentFingerprint covers the fields whose change must bump the version.
func contentFingerprint(p *domain.Personalization) string {
	raw, _ := json.Marshal(struct {
		C any
		T any
		R any
		I any
	}{p.Communication.Data(), p.BehavioralTendencies, p.AdaptationRules, p.Intent.Data()})
	return string(raw)
}

func invalidate(ctx context.Context, c cache.Cache, logger *zap.Logger, userID string) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, cacheKey(userID)); err != nil {
		logger.Warn("failed to invalidate personalization cache", zap.String("user_id", userID), zap.Error(err))
	}
}
