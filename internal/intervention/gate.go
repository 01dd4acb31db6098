package intervention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/cache"
	"github.com/fyrsmithlabs/companiond/internal/domain"
)

const (
	// CooldownWindow is how long a need type stays quiet after activity,
	// a memory mention, or a suggestion.
	CooldownWindow = 7 * 24 * time.Hour

	totalCriteria    = 3
	requiredCriteria = 2
)

// History answers the cooldown questions. *store.Store implements it.
type History interface {
	InterventionActivitySince(ctx context.Context, userID string, t domain.InterventionType, since time.Time) (bool, error)
	MemoryMentionSince(ctx context.Context, userID, term string, since time.Time) (bool, error)
}

// LocationFunc resolves the user's time zone.
type LocationFunc func(ctx context.Context, userID string) (*time.Location, error)

// GatingContext explains a gating decision.
type GatingContext struct {
	TimeAppropriate bool             `json:"timeAppropriate"`
	Hour            int              `json:"hour"`
	Seriousness     SeriousnessLevel `json:"seriousness"`
	CooldownPassed  bool             `json:"cooldownPassed"`
	CooldownReason  string           `json:"cooldownReason,omitempty"`
	FailedOpen      bool             `json:"failedOpen,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// GatingResult is the outcome of ShouldSuggest.
type GatingResult struct {
	ShouldSuggest  bool          `json:"shouldSuggest"`
	PassedCriteria int           `json:"passedCriteria"`
	TotalCriteria  int           `json:"totalCriteria"`
	Context        GatingContext `json:"context"`
}

// Gate decides whether a detected need should be turned into a suggestion.
type Gate struct {
	history History
	cache   cache.Cache
	grader  SeriousnessGrader
	locate  LocationFunc
	now     func() time.Time
	logger  *zap.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides the gate's clock.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithLocator sets how the user's time zone is resolved. The default is UTC.
func WithLocator(f LocationFunc) GateOption {
	return func(g *Gate) { g.locate = f }
}

// WithGrader replaces the seriousness grader.
func WithGrader(s SeriousnessGrader) GateOption {
	return func(g *Gate) { g.grader = s }
}

// NewGate creates a Gate. A nil cache skips the suggestion mark.
func NewGate(history History, c cache.Cache, logger *zap.Logger, opts ...GateOption) (*Gate, error) {
	if history == nil {
		return nil, errors.New("history cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	g := &Gate{
		history: history,
		cache:   c,
		grader:  NewKeywordClassifier(),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.locate == nil {
		g.locate = func(context.Context, string) (*time.Location, error) { return time.UTC, nil }
	}
	return g, nil
}

func suggestionKey(userID string, t domain.InterventionType) string {
	return "suggested:" + userID + ":" + string(t)
}

// ShouldSuggest evaluates time of day, seriousness and cooldown, and passes
// when at least two hold. Any internal error fails open.
func (g *Gate) ShouldSuggest(ctx context.Context, userID string, t domain.InterventionType, message string, recent []string) GatingResult {
	res, err := g.evaluate(ctx, userID, t, message)
	if err != nil {
		g.logger.Warn("gating failed, allowing suggestion",
			zap.String("user_id", userID),
			zap.String("type", string(t)),
			zap.Error(err))
		res.ShouldSuggest = true
		res.Context.FailedOpen = true
		res.Context.Error = err.Error()
		return res
	}
	g.logger.Debug("gating evaluated",
		zap.String("user_id", userID),
		zap.String("type", string(t)),
		zap.Int("passed", res.PassedCriteria),
		zap.Int("recent_messages", len(recent)))
	return res
}

func (g *Gate) evaluate(ctx context.Context, userID string, t domain.InterventionType, message string) (GatingResult, error) {
	res := GatingResult{TotalCriteria: totalCriteria}

	loc, err := g.locate(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("resolve location: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	now := g.now()
	res.Context.Hour = now.In(loc).Hour()
	res.Context.TimeAppropriate = timeAppropriate(t, res.Context.Hour)
	res.Context.Seriousness = g.grader.Seriousness(t, message)

	reason, err := g.cooldown(ctx, userID, t, now)
	if err != nil {
		return res, err
	}
	res.Context.CooldownReason = reason
	res.Context.CooldownPassed = reason == ""

	for _, ok := range []bool{res.Context.TimeAppropriate, res.Context.Seriousness.Passes(), res.Context.CooldownPassed} {
		if ok {
			res.PassedCriteria++
		}
	}
	res.ShouldSuggest = res.PassedCriteria >= requiredCriteria
	return res, nil
}

// cooldown returns a non-empty reason when the type is cooling down.
func (g *Gate) cooldown(ctx context.Context, userID string, t domain.InterventionType, now time.Time) (string, error) {
	since := now.Add(-CooldownWindow)
	active, err := g.history.InterventionActivitySince(ctx, userID, t, since)
	if err != nil {
		return "", fmt.Errorf("check intervention activity: %w", err)
	}
	if active {
		return "recent intervention activity", nil
	}
	mentioned, err := g.history.MemoryMentionSince(ctx, userID, string(t), since)
	if err != nil {
		return "", fmt.Errorf("check memory mentions: %w", err)
	}
	if mentioned {
		return "recently discussed", nil
	}
	if g.cache != nil {
		suggested, err := g.cache.Exists(ctx, suggestionKey(userID, t))
		if err != nil {
			return "", fmt.Errorf("check suggestion mark: %w", err)
		}
		if suggested {
			return "recently suggested", nil
		}
	}
	return "", nil
}

// RecordSuggestion starts the cooldown for a suggested type.
func (g *Gate) RecordSuggestion(ctx context.Context, userID string, t domain.InterventionType) error {
	if g.cache == nil {
		return nil
	}
	if err := g.cache.Set(ctx, suggestionKey(userID, t), []byte(g.now().UTC().Format(time.RFC3339)), CooldownWindow); err != nil {
		return fmt.Errorf("record suggestion: %w", err)
	}
	return nil
}

func timeAppropriate(t domain.InterventionType, hour int) bool {
	switch t {
	case domain.InterventionSleep:
		return hour >= 18 || hour < 2
	case domain.InterventionFocus:
		return hour >= 6 && hour < 22
	default:
		return true
	}
}
