package intervention

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

type fakeEffectiveness struct {
	scores map[string]float64
	err    error
}

func (f fakeEffectiveness) EffectivenessByIntervention(context.Context, string) (map[string]float64, error) {
	return f.scores, f.err
}

func ids(ivs []Intervention) []string {
	out := make([]string, len(ivs))
	for i, iv := range ivs {
		out[i] = iv.ID
	}
	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		name       string
		need       domain.InterventionType
		experience domain.Difficulty
		scores     map[string]float64
		want       []string
	}{
		{
			name:       "unrated beginner keeps catalog order",
			need:       domain.InterventionSleep,
			experience: domain.DifficultyBeginner,
			want:       []string{"sleep-hygiene-basics", "body-scan-for-sleep"},
		},
		{
			name:       "effectiveness reorders",
			need:       domain.InterventionSleep,
			experience: domain.DifficultyIntermediate,
			scores:     map[string]float64{"stimulus-control": 8, "body-scan-for-sleep": 5},
			want:       []string{"stimulus-control", "body-scan-for-sleep"},
		},
		{
			name:       "intermediate excludes advanced",
			need:       domain.InterventionSleep,
			experience: domain.DifficultyIntermediate,
			scores:     map[string]float64{"sleep-restriction": 10},
			want:       []string{"sleep-hygiene-basics", "body-scan-for-sleep"},
		},
		{
			name:       "advanced includes everything",
			need:       domain.InterventionSleep,
			experience: domain.DifficultyAdvanced,
			scores:     map[string]float64{"sleep-restriction": 10},
			want:       []string{"sleep-restriction", "sleep-hygiene-basics"},
		},
		{
			name:       "unknown type",
			need:       domain.InterventionType("boredom"),
			experience: domain.DifficultyAdvanced,
			want:       []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(tt.need, tt.experience, tt.scores)
			assert.Equal(t, tt.want, ids(got))
			for i := 0; i < 5; i++ {
				assert.Equal(t, ids(got), ids(Rank(tt.need, tt.experience, tt.scores)))
			}
		})
	}
}

func TestRecommender_GetRecommendedInterventions(t *testing.T) {
	ctx := context.Background()

	r, err := NewRecommender(fakeEffectiveness{scores: map[string]float64{"worry-time": 9}}, zap.NewNop())
	require.NoError(t, err)
	got, err := r.GetRecommendedInterventions(ctx, "u1", domain.InterventionAnxiety, domain.DifficultyIntermediate)
	require.NoError(t, err)
	assert.Equal(t, []string{"worry-time", "box-breathing"}, ids(got))

	r, err = NewRecommender(fakeEffectiveness{err: errors.New("boom")}, zap.NewNop())
	require.NoError(t, err)
	_, err = r.GetRecommendedInterventions(ctx, "u1", domain.InterventionAnxiety, domain.DifficultyBeginner)
	assert.ErrorContains(t, err, "boom")

	_, err = NewRecommender(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	for _, typ := range domain.InterventionTypes {
		entries := Catalog(typ)
		assert.GreaterOrEqual(t, len(entries), 3, typ)
		for _, iv := range entries {
			assert.Equal(t, typ, iv.Type)
			assert.NotEmpty(t, iv.Steps, iv.ID)
			got, ok := Lookup(iv.ID)
			require.True(t, ok)
			assert.Equal(t, iv.Name, got.Name)
		}
	}
	_, ok := Lookup("nope")
	assert.False(t, ok)
}

func TestRecommender_NoProgressUsesCatalogOrder(t *testing.T) {
	s := store.NewTestStore(t)
	r, err := NewRecommender(s, zap.NewNop())
	require.NoError(t, err)

	got, err := r.GetRecommendedInterventions(context.Background(), "new-user", domain.InterventionSleep, domain.DifficultyBeginner)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"sleep-hygiene-basics", "body-scan-for-sleep"}, ids(got))
	for _, iv := range got {
		assert.Equal(t, domain.DifficultyBeginner, iv.Difficulty)
	}
}
