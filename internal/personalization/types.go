package personalization

import (
	"context"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
)

// Store persists Personalization records. *store.Store implements it.
type Store interface {
	GetPersonalization(ctx context.Context, userID string) (*domain.Personalization, error)
	CreatePersonalization(ctx context.Context, p *domain.Personalization) error
	SavePersonalization(ctx context.Context, p *domain.Personalization, expectedVersion int) error
}

// PatternAnalyzer runs the pattern extractors for one user.
// *patterns.Analyzer implements it.
type PatternAnalyzer interface {
	Analyze(ctx context.Context, userID string, lookbackDays int) (*patterns.Result, error)
}

// Effective is the personalization a request handler needs, with overrides
// applied.
type Effective struct {
	UserID          string                          `json:"userId"`
	Exists          bool                            `json:"exists"`
	Communication   domain.CommunicationPreferences `json:"communication"`
	ExperienceLevel domain.Difficulty               `json:"experienceLevel,omitempty"`
	Overrides       domain.UserOverrides            `json:"overrides"`
	Intent          domain.Intent                   `json:"intent"`
	Rules           []domain.AdaptationRule         `json:"rules,omitempty"`
	Version         int                             `json:"version"`
}

// UpdateOutcome reports what one Update call did.
type UpdateOutcome struct {
	UserID   string `json:"userId"`
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
	Created  bool   `json:"created"`
	Changed  bool   `json:"changed"`
	Version  int    `json:"version"`
	Patterns int    `json:"patterns"`
}

func cacheKey(userID string) string {
	return "personalization:effective:" + userID
}
