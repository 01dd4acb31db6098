package personalization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fyrsmithlabs/companiond/internal/cache"
	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

const (
	// DefaultCacheTTL bounds how long an effective personalization is cached.
	DefaultCacheTTL = 10 * time.Minute

	maxWriteAttempts = 3
)

// Service reads personalization for request handlers and applies user
// overrides.
type Service struct {
	store     Store
	cache     cache.Cache
	logger    *zap.Logger
	decayRate float64
	ttl       time.Duration
}

// NewService creates a Service. A nil cache disables caching.
func NewService(st Store, c cache.Cache, decayRate float64, ttl time.Duration, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{store: st, cache: c, logger: logger, decayRate: decayRate, ttl: ttl}, nil
}

// Get returns the stored record, or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Personalization, error) {
	return s.store.GetPersonalization(ctx, userID)
}

// Effective returns the user's personalization with overrides applied.
// Users without a record get defaults.
func (s *Service) Effective(ctx context.Context, userID string) (*Effective, error) {
	if s.cache != nil {
		var cached Effective
		ok, err := cache.GetJSON(ctx, s.cache, cacheKey(userID), &cached)
		if err != nil {
			s.logger.Warn("personalization cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	p, err := s.store.GetPersonalization(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load personalization: %w", err)
	}
	eff := toEffective(userID, p)

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, cacheKey(userID), eff, s.ttl); err != nil {
			s.logger.Warn("personalization cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return eff, nil
}

func toEffective(userID string, p *domain.Personalization) *Effective {
	eff := &Effective{
		UserID:        userID,
		Communication: domain.DefaultCommunication(),
	}
	if p == nil {
		return eff
	}
	o := p.UserOverrides.Data()
	eff.Exists = true
	eff.Communication = p.EffectiveCommunication()
	eff.Overrides = o
	eff.Intent = p.Intent.Data()
	eff.Rules = append([]domain.AdaptationRule(nil), p.AdaptationRules...)
	eff.Version = p.Version
	if o.ExperienceLevel != nil {
		eff.ExperienceLevel = *o.ExperienceLevel
	}
	return eff
}

// SetOverrides replaces the user's overrides, creating the record when
// needed. Version conflicts are retried.
func (s *Service) SetOverrides(ctx context.Context, userID string, overrides domain.UserOverrides) (*domain.Personalization, error) {
	if err := overrides.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		p, err := s.writeOverrides(ctx, userID, overrides)
		if err == nil {
			invalidate(ctx, s.cache, s.logger, userID)
			s.logger.Info("user overrides updated",
				zap.String("user_id", userID),
				zap.Int("version", p.Version),
				zap.Bool("empty", overrides.IsEmpty()),
			)
			return p, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("override write conflicted, retrying", zap.String("user_id", userID), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("failed to save overrides after %d attempts: %w", maxWriteAttempts, lastErr)
}

func (s *Service) writeOverrides(ctx context.Context, userID string, overrides domain.UserOverrides) (*domain.Personalization, error) {
	p, err := s.store.GetPersonalization(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = domain.NewPersonalization("", userID, s.decayRate)
		p.UserOverrides = datatypes.NewJSONType(overrides)
		p.Version = 1
		if err := s.store.CreatePersonalization(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load personalization: %w", err)
	}

	expected := p.Version
	p.UserOverrides = datatypes.NewJSONType(overrides)
	p.Version++
	if err := s.store.SavePersonalization(ctx, p, expected); err != nil {
		return nil, err
	}
	return p, nil
}

// ClearOverrides removes every override.
func (s *Service) ClearOverrides(ctx context.Context, userID string) (*domain.Personalization, error) {
	return s.SetOverrides(ctx, userID, domain.UserOverrides{})
}
