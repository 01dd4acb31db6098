package intervention

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// MaxRecommendations is how many interventions are recommended at once.
const MaxRecommendations = 2

// EffectivenessSource loads per-intervention average effectiveness.
type EffectivenessSource interface {
	EffectivenessByIntervention(ctx context.Context, userID string) (map[string]float64, error)
}

// Recommender ranks catalog entries for a detected need.
type Recommender struct {
	source EffectivenessSource
	logger *zap.Logger
}

// NewRecommender creates a Recommender.
func NewRecommender(source EffectivenessSource, logger *zap.Logger) (*Recommender, error) {
	if source == nil {
		return nil, errors.New("effectiveness source cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Recommender{source: source, logger: logger}, nil
}

// GetRecommendedInterventions ranks the catalog for need using the user's
// recorded effectiveness.
func (r *Recommender) GetRecommendedInterventions(ctx context.Context, userID string, need domain.InterventionType, experience domain.Difficulty) ([]Intervention, error) {
	eff, err := r.source.EffectivenessByIntervention(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommend %s: %w", need, err)
	}
	out := Rank(need, experience, eff)
	r.logger.Debug("ranked interventions",
		zap.String("user_id", userID),
		zap.String("type", string(need)),
		zap.Int("rated", len(eff)),
		zap.Int("recommended", len(out)))
	return out, nil
}

// Rank filters the catalog for need by experience and orders it by
// effectiveness, highest first. Unrated entries score 0 and equal scores
// keep catalog order.
func Rank(need domain.InterventionType, experience domain.Difficulty, effectiveness map[string]float64) []Intervention {
	var candidates []Intervention
	for _, iv := range Catalog(need) {
		if allowed(experience, iv.Difficulty) {
			candidates = append(candidates, iv)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return effectiveness[candidates[i].ID] > effectiveness[candidates[j].ID]
	})
	if len(candidates) > MaxRecommendations {
		candidates = candidates[:MaxRecommendations]
	}
	return candidates
}

func allowed(experience, d domain.Difficulty) bool {
	switch experience {
	case domain.DifficultyAdvanced:
		return true
	case domain.DifficultyIntermediate:
		return d != domain.DifficultyAdvanced
	default:
		return d == domain.DifficultyBeginner
	}
}
