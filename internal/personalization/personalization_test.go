package personalization

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fyrsmithlabs/companiond/internal/cache"
	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

var testNow = time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)

func testConfig() config.PersonalizationConfig {
	return config.PersonalizationConfig{
		AnalysisIntervalDays: 7,
		MinDaysSinceAnalysis: 3,
		LookbackDays:         30,
		DefaultDecayRate:     0.1,
	}
}

type fakeAnalyzer struct {
	result *patterns.Result
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, userID string, _ int) (*patterns.Result, error) {
	f.calls++
	r := *f.result
	r.UserID = userID
	return &r, nil
}

func resultWith(ps ...patterns.UserPattern) *patterns.Result {
	return &patterns.Result{Mood: ps}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newUpdater(t *testing.T, st Store, an PatternAnalyzer, c *clock, opts ...UpdaterOption) *Updater {
	t.Helper()
	opts = append(opts, WithUpdaterClock(c.now))
	u, err := NewUpdater(st, an, testConfig(), zap.NewNop(), opts...)
	require.NoError(t, err)
	return u
}

func TestNewUpdater_Validation(t *testing.T) {
	st := store.NewTestStore(t)
	_, err := NewUpdater(nil, &fakeAnalyzer{}, testConfig(), zap.NewNop())
	assert.Error(t, err)
	_, err = NewUpdater(st, nil, testConfig(), zap.NewNop())
	assert.Error(t, err)
	_, err = NewUpdater(st, &fakeAnalyzer{}, testConfig(), nil)
	assert.Error(t, err)
}

func TestUpdater_CreatesLazily(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	an := &fakeAnalyzer{result: resultWith(patterns.UserPattern{
		Type: patterns.SourceMood, Pattern: patterns.PatternConsistentlyLowMood, Confidence: 0.8, Frequency: 12,
	})}
	an.result.Moods = make([]domain.Mood, 25)
	u := newUpdater(t, st, an, &clock{testNow})

	out, err := u.Update(ctx, "u1", false)
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.True(t, out.Changed)
	assert.Equal(t, 1, out.Version)

	p, err := st.GetPersonalization(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, p.BehavioralTendencies, 1)
	assert.Equal(t, 12, p.BehavioralTendencies[0].SampleSize)
	require.Len(t, p.AdaptationRules, 1)
	assert.Equal(t, domain.PriorityHigh, p.AdaptationRules[0].Priority)
	assert.Equal(t, domain.StyleGentle, p.Communication.Data().InferredStyle)
	assert.Equal(t, domain.InterventionDepression, p.Intent.Data().PrimaryConcern)
	assert.InDelta(t, 0.5, p.DataQuality, 0.0001)
	require.NotNil(t, p.LastAnalysis)
}

func TestUpdater_Debounce(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	an := &fakeAnalyzer{result: resultWith()}
	c := &clock{testNow}
	u := newUpdater(t, st, an, c)

	_, err := u.Update(ctx, "u1", false)
	require.NoError(t, err)

	c.t = testNow.Add(2 * 24 * time.Hour)
	out, err := u.Update(ctx, "u1", false)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Equal(t, 1, an.calls)

	out, err = u.Update(ctx, "u1", true)
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, 2, an.calls)
	assert.Equal(t, 2, out.Version)

	c.t = testNow.Add(6 * 24 * time.Hour)
	out, err = u.Update(ctx, "u1", false)
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, 3, an.calls)
}

func TestUpdater_UpdateIfDue(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	an := &fakeAnalyzer{result: resultWith()}
	c := &clock{testNow}
	u := newUpdater(t, st, an, c)

	out, err := u.UpdateIfDue(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, out.Created)

	c.t = testNow.Add(5 * 24 * time.Hour)
	out, err = u.UpdateIfDue(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, out.Skipped)

	c.t = testNow.Add(7 * 24 * time.Hour)
	out, err = u.UpdateIfDue(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, 2, an.calls)
}

func TestUpdater_MergeAndDecay(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	c := &clock{testNow}
	variability := patterns.UserPattern{Type: patterns.SourceMood, Pattern: patterns.PatternHighMoodVariability, Confidence: 0.7}
	an := &fakeAnalyzer{result: resultWith(variability)}
	u := newUpdater(t, st, an, c)

	_, err := u.Update(ctx, "u1", true)
	require.NoError(t, err)

	// Seen again: frequency and sample size grow, confidence is the mean.
	an.result = resultWith(patterns.UserPattern{Type: patterns.SourceMood, Pattern: patterns.PatternHighMoodVariability, Confidence: 0.5})
	_, err = u.Update(ctx, "u1", true)
	require.NoError(t, err)

	p, err := st.GetPersonalization(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, p.BehavioralTendencies, 1)
	tend := p.BehavioralTendencies[0]
	assert.Equal(t, 2, tend.Frequency)
	assert.Equal(t, 2, tend.SampleSize)
	assert.InDelta(t, 0.6, tend.Confidence, 0.0001)

	// Not seen: decays by 10% per analysis, dropped below 0.3 along with its rule.
	an.result = resultWith()
	expected := []float64{0.54, 0.486, 0.4374, 0.39366, 0.354294, 0.3188646}
	for _, want := range expected {
		_, err = u.Update(ctx, "u1", true)
		require.NoError(t, err)
		p, err = st.GetPersonalization(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, p.BehavioralTendencies, 1)
		assert.InDelta(t, want, p.BehavioralTendencies[0].Confidence, 0.0001)
		assert.Len(t, p.AdaptationRules, 1)
	}

	_, err = u.Update(ctx, "u1", true)
	require.NoError(t, err)
	p, err = st.GetPersonalization(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, p.BehavioralTendencies)
	assert.Empty(t, p.AdaptationRules)
}

func TestUpdater_OverridesWin(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	svc, err := NewService(st, nil, 0.1, 0, zap.NewNop())
	require.NoError(t, err)

	verbose := domain.VerbosityDetailed
	_, err = svc.SetOverrides(ctx, "u1", domain.UserOverrides{Verbosity: &verbose})
	require.NoError(t, err)

	res := resultWith()
	res.Communication = patterns.CommunicationSignals{MessageCount: 20, AverageLength: 20, EmojiRate: 0.5}
	u := newUpdater(t, st, &fakeAnalyzer{result: res}, &clock{testNow})
	_, err = u.Update(ctx, "u1", false)
	require.NoError(t, err)

	p, err := st.GetPersonalization(ctx, "u1")
	require.NoError(t, err)
	inferred := p.Communication.Data()
	assert.Equal(t, domain.VerbosityModerate, inferred.Verbosity, "overridden field is not re-inferred")
	assert.Equal(t, domain.EmojiFrequent, inferred.EmojiUsage)
	assert.Equal(t, domain.VerbosityDetailed, p.EffectiveCommunication().Verbosity)
}

// racingStore lets another writer bump the record between read and write.
type racingStore struct {
	*store.Store
	race func()
}

func (r *racingStore) SavePersonalization(ctx context.Context, p *domain.Personalization, expected int) error {
	if r.race != nil {
		race := r.race
		r.race = nil
		race()
	}
	return r.Store.SavePersonalization(ctx, p, expected)
}

func TestUpdater_VersionConflict(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	require.NoError(t, st.CreatePersonalization(ctx, domain.NewPersonalization("", "u1", 0.1)))

	svc, err := NewService(st, nil, 0.1, 0, zap.NewNop())
	require.NoError(t, err)
	gentle := domain.StyleGentle
	rs := &racingStore{Store: st, race: func() {
		_, err := svc.SetOverrides(ctx, "u1", domain.UserOverrides{Style: &gentle})
		require.NoError(t, err)
	}}

	u := newUpdater(t, rs, &fakeAnalyzer{result: resultWith()}, &clock{testNow})
	_, err = u.Update(ctx, "u1", true)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	p, err := st.GetPersonalization(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StyleGentle, *p.UserOverrides.Data().Style, "the competing write survives")
	assert.Nil(t, p.LastAnalysis)
}

func TestService_EffectiveDefaults(t *testing.T) {
	svc, err := NewService(store.NewTestStore(t), cache.NewMemoryCache(), 0.1, time.Minute, zap.NewNop())
	require.NoError(t, err)

	eff, err := svc.Effective(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, eff.Exists)
	assert.Equal(t, domain.DefaultCommunication(), eff.Communication)
}

func TestService_SetOverridesInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	svc, err := NewService(store.NewTestStore(t), c, 0.1, time.Minute, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.Effective(ctx, "u1")
	require.NoError(t, err)
	cached, err := c.Exists(ctx, cacheKey("u1"))
	require.NoError(t, err)
	assert.True(t, cached)

	direct := domain.StyleDirect
	level := domain.DifficultyAdvanced
	p, err := svc.SetOverrides(ctx, "u1", domain.UserOverrides{Style: &direct, ExperienceLevel: &level})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)

	eff, err := svc.Effective(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, eff.Exists)
	assert.Equal(t, domain.StyleDirect, eff.Communication.InferredStyle)
	assert.Equal(t, domain.DifficultyAdvanced, eff.ExperienceLevel)

	p, err = svc.ClearOverrides(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Version)
	assert.True(t, p.UserOverrides.Data().IsEmpty())

	eff, err = svc.Effective(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StyleBalanced, eff.Communication.InferredStyle)
}

func TestService_SetOverridesRejectsInvalid(t *testing.T) {
	svc, err := NewService(store.NewTestStore(t), nil, 0.1, 0, zap.NewNop())
	require.NoError(t, err)

	bad := domain.Verbosity("rambling")
	_, err = svc.SetOverrides(context.Background(), "u1", domain.UserOverrides{Verbosity: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidOverrides)
}

// conflictingStore always loses the race.
type conflictingStore struct {
	*store.Store
	saves int
}

func (c *conflictingStore) SavePersonalization(context.Context, *domain.Personalization, int) error {
	c.saves++
	return store.ErrVersionConflict
}

func TestService_SetOverridesRetries(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	require.NoError(t, st.CreatePersonalization(ctx, domain.NewPersonalization("", "u1", 0.1)))
	cs := &conflictingStore{Store: st}

	svc, err := NewService(cs, nil, 0.1, 0, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.SetOverrides(ctx, "u1", domain.UserOverrides{PreferredInterventions: []domain.InterventionType{domain.InterventionFocus}})
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Equal(t, maxWriteAttempts, cs.saves)
}

func TestMergeRules_KeepsOtherSources(t *testing.T) {
	manual := domain.AdaptationRule{Condition: patterns.PatternBriefMessages, Action: "custom", Source: "user"}
	out := mergeRules(
		[]domain.AdaptationRule{manual},
		[]patterns.UserPattern{{Pattern: patterns.PatternBriefMessages, Confidence: 0.7}, {Pattern: "prefers_sleep_interventions", Confidence: 0.7}},
		nil,
		testNow,
	)
	require.Len(t, out, 2)
	assert.Equal(t, "custom", out[0].Action)
	assert.Equal(t, "lead with sleep interventions", out[1].Action)
}

func TestInferIntent_Goals(t *testing.T) {
	res := &patterns.Result{
		Journal: []patterns.UserPattern{{Pattern: patterns.PatternJournalThemePrefix + "anxiety", Confidence: 0.75}},
		Mood:    []patterns.UserPattern{{Pattern: patterns.PatternConsistentlyLowMood, Confidence: 0.8}},
		Memories: []domain.LongTermMemory{
			{Type: domain.MemoryGoal, Content: "sleep by 11pm"},
			{Type: domain.MemoryTrigger, Content: "deadlines"},
		},
	}
	intent := inferIntent(domain.Intent{PrimaryConcern: domain.InterventionFocus}, res)
	assert.Equal(t, domain.InterventionDepression, intent.PrimaryConcern)
	assert.Equal(t, []string{"sleep by 11pm"}, intent.Goals)

	kept := inferIntent(domain.Intent{PrimaryConcern: domain.InterventionFocus, Goals: []string{"x"}}, &patterns.Result{})
	assert.Equal(t, domain.InterventionFocus, kept.PrimaryConcern)
	assert.Equal(t, []string{"x"}, kept.Goals)
}

func TestUpdater_KeepsOverridesOnUpdate(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	p := domain.NewPersonalization("", "u1", 0.1)
	excluded := domain.UserOverrides{ExcludedInterventions: []domain.InterventionType{domain.InterventionGrief}}
	p.UserOverrides = datatypes.NewJSONType(excluded)
	require.NoError(t, st.CreatePersonalization(ctx, p))

	u := newUpdater(t, st, &fakeAnalyzer{result: resultWith()}, &clock{testNow})
	_, err := u.Update(ctx, "u1", false)
	require.NoError(t, err)

	got, err := st.GetPersonalization(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.UserOverrides.Data().Excludes(domain.InterventionGrief))
}
