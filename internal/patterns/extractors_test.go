package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

var now = time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC) // Wednesday

func moodsAt(scores []int, start time.Time, step time.Duration) []domain.Mood {
	out := make([]domain.Mood, len(scores))
	for i, s := range scores {
		out[i] = domain.Mood{UserID: "u1", Score: s, CreatedAt: start.Add(time.Duration(i) * step)}
	}
	return out
}

func findPattern(ps []UserPattern, name string) (UserPattern, bool) {
	for _, p := range ps {
		if p.Pattern == name {
			return p, true
		}
	}
	return UserPattern{}, false
}

func TestMoodPatterns_InsufficientData(t *testing.T) {
	for n := 0; n < 5; n++ {
		t.Run(fmt.Sprintf("%d samples", n), func(t *testing.T) {
			scores := make([]int, n)
			for i := range scores {
				scores[i] = []int{0, 100, 10, 90}[i%4]
			}
			assert.Empty(t, MoodPatterns(moodsAt(scores, now.AddDate(0, 0, -5), time.Hour), time.UTC))
		})
	}
}

func TestMoodPatterns_ConsistentlyLow(t *testing.T) {
	scores := []int{30, 20, 35, 25, 30, 30, 20, 35, 25, 30}
	ps := MoodPatterns(moodsAt(scores, now.AddDate(0, 0, -10), 24*time.Hour), time.UTC)

	p, ok := findPattern(ps, PatternConsistentlyLowMood)
	require.True(t, ok)
	assert.Equal(t, 0.8, p.Confidence)
	assert.Equal(t, SourceMood, p.Type)

	// Nine samples are not enough for the low-mood pattern.
	ps = MoodPatterns(moodsAt(scores[:9], now.AddDate(0, 0, -10), 24*time.Hour), time.UTC)
	_, ok = findPattern(ps, PatternConsistentlyLowMood)
	assert.False(t, ok)
}

func TestMoodPatterns_HighVariability(t *testing.T) {
	ps := MoodPatterns(moodsAt([]int{10, 90, 50, 50, 50}, now.AddDate(0, 0, -5), 24*time.Hour), time.UTC)
	p, ok := findPattern(ps, PatternHighMoodVariability)
	require.True(t, ok)
	assert.Equal(t, 0.7, p.Confidence)

	ps = MoodPatterns(moodsAt([]int{40, 90, 50, 50, 50}, now.AddDate(0, 0, -5), 24*time.Hour), time.UTC)
	_, ok = findPattern(ps, PatternHighMoodVariability)
	assert.False(t, ok, "range of exactly 5 is not high variability")
}

func TestMoodPatterns_TimeOfDay(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	var moods []domain.Mood
	for i := 0; i < 3; i++ {
		d := day.AddDate(0, 0, i)
		moods = append(moods,
			domain.Mood{Score: 80, CreatedAt: d.Add(8 * time.Hour)},
			domain.Mood{Score: 50, CreatedAt: d.Add(20 * time.Hour)},
		)
	}

	p, ok := findPattern(MoodPatterns(moods, time.UTC), PatternMorningMoodBetter)
	require.True(t, ok)
	assert.Equal(t, 0.65, p.Confidence)
	assert.Len(t, p.Evidence, 2)

	// Shifting the location moves every sample into the afternoon.
	loc := time.FixedZone("test", 5*3600)
	_, ok = findPattern(MoodPatterns(moods, loc), PatternMorningMoodBetter)
	assert.False(t, ok)
}

func TestMoodPatterns_LowWeekday(t *testing.T) {
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	var moods []domain.Mood
	for w := 0; w < 3; w++ {
		moods = append(moods, domain.Mood{Score: 20, CreatedAt: monday.AddDate(0, 0, 7*w)})
		for d := 1; d <= 3; d++ {
			moods = append(moods, domain.Mood{Score: 80, CreatedAt: monday.AddDate(0, 0, 7*w+d)})
		}
	}

	p, ok := findPattern(MoodPatterns(moods, time.UTC), PatternLowMoodWeekdayPrefix+"monday")
	require.True(t, ok)
	assert.Equal(t, 0.6, p.Confidence)
	assert.Equal(t, 3, p.Frequency)
}

func TestJournalPatterns_AnxietyTheme(t *testing.T) {
	contents := []string{
		"Felt anxious before the meeting",
		"Nice walk in the park",
		"Still anxious about the exam",
		"Cooked dinner with friends",
		"Woke up anxious again",
		"Read a good book",
	}
	var entries []domain.JournalEntry
	for i, c := range contents {
		entries = append(entries, domain.JournalEntry{
			UserID:    "u1",
			Content:   c,
			CreatedAt: now.AddDate(0, 0, -14+2*i).Add(time.Duration(i) * time.Hour),
		})
	}

	ps := JournalPatterns(entries, time.UTC)
	p, ok := findPattern(ps, PatternJournalThemePrefix+"anxiety")
	require.True(t, ok)
	assert.Equal(t, 0.75, p.Confidence)
	require.Len(t, p.Evidence, 1)
	assert.Contains(t, p.Evidence[0], "3 out of 6")
	assert.Equal(t, 3, p.Frequency)

	_, ok = findPattern(ps, PatternJournalThemePrefix+"sadness")
	assert.False(t, ok)
}

func TestJournalPatterns_ThemeNeedsFiveEntries(t *testing.T) {
	entries := []domain.JournalEntry{
		{Content: "anxious", CreatedAt: now.Add(-1 * time.Hour)},
		{Content: "anxious", CreatedAt: now.Add(-26 * time.Hour)},
		{Content: "anxious", CreatedAt: now.Add(-51 * time.Hour)},
		{Content: "anxious", CreatedAt: now.Add(-76 * time.Hour)},
	}
	for _, p := range JournalPatterns(entries, time.UTC) {
		assert.NotContains(t, p.Pattern, PatternJournalThemePrefix)
	}
}

func TestJournalPatterns_ModalHour(t *testing.T) {
	var entries []domain.JournalEntry
	for i := 0; i < 3; i++ {
		entries = append(entries, domain.JournalEntry{Content: "ok", CreatedAt: time.Date(2026, 3, 10+i, 21, 15, 0, 0, time.UTC)})
		entries = append(entries, domain.JournalEntry{Content: "ok", CreatedAt: time.Date(2026, 3, 10+i, 7, 0, 0, 0, time.UTC)})
	}

	ps := JournalPatterns(entries, time.UTC)
	p, ok := findPattern(ps, PatternJournalHourPrefix+"0700")
	require.True(t, ok, "ties go to the earliest hour")
	assert.Equal(t, 0.7, p.Confidence)
	assert.Equal(t, 3, p.Frequency)
}

func TestJournalPatterns_TriggerWords(t *testing.T) {
	entries := []domain.JournalEntry{
		{Content: "Work deadline made me stressed, the manager kept pushing", CreatedAt: now.Add(-1 * time.Hour)},
		{Content: "Another deadline at work. I feel awful and the manager ignored me", CreatedAt: now.Add(-30 * time.Hour)},
		{Content: "So stressed about the deadline", CreatedAt: now.Add(-55 * time.Hour)},
		{Content: "Deadline deadline deadline, but a calm evening", CreatedAt: now.Add(-80 * time.Hour)},
	}

	p, ok := findPattern(JournalPatterns(entries, time.UTC), PatternRecurringTriggerWord)
	require.True(t, ok)
	assert.Equal(t, 0.6, p.Confidence)
	require.Len(t, p.Evidence, 1, "only words from low-mood entries count")
	assert.Contains(t, p.Evidence[0], `"deadline" appears 3 times`)
}

func TestInterventionPatterns_PreferredTypeEvidence(t *testing.T) {
	mk := func(id string, typ domain.InterventionType, status domain.ProgressStatus) domain.InterventionProgress {
		return domain.InterventionProgress{InterventionID: id, InterventionType: typ, Status: status, StartedAt: now}
	}

	tests := []struct {
		name      string
		records   []domain.InterventionProgress
		wantType  domain.InterventionType
		wantCount int
	}{
		{
			name: "all same type",
			records: []domain.InterventionProgress{
				mk("a", domain.InterventionSleep, domain.StatusActive),
				mk("b", domain.InterventionSleep, domain.StatusCompleted),
			},
			wantType:  domain.InterventionSleep,
			wantCount: 2,
		},
		{
			name: "plurality",
			records: []domain.InterventionProgress{
				mk("a", domain.InterventionStress, domain.StatusActive),
				mk("b", domain.InterventionAnxiety, domain.StatusActive),
				mk("c", domain.InterventionAnxiety, domain.StatusActive),
				mk("d", domain.InterventionAnxiety, domain.StatusPaused),
				mk("e", domain.InterventionFocus, domain.StatusActive),
			},
			wantType:  domain.InterventionAnxiety,
			wantCount: 3,
		},
		{
			name: "tie goes to first seen",
			records: []domain.InterventionProgress{
				mk("a", domain.InterventionGrief, domain.StatusActive),
				mk("b", domain.InterventionFocus, domain.StatusActive),
				mk("c", domain.InterventionFocus, domain.StatusActive),
				mk("d", domain.InterventionGrief, domain.StatusActive),
			},
			wantType:  domain.InterventionGrief,
			wantCount: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := findPattern(InterventionPatterns(tt.records), PatternPreferredTypePrefix+string(tt.wantType)+"_interventions")
			require.True(t, ok)
			assert.Equal(t, 0.7, p.Confidence)
			assert.Len(t, p.Evidence, tt.wantCount)
			assert.Equal(t, tt.wantCount, p.Frequency)
		})
	}
}

func TestInterventionPatterns_Rates(t *testing.T) {
	nine, eight := 9, 8
	records := []domain.InterventionProgress{
		{InterventionType: domain.InterventionSleep, Status: domain.StatusCompleted, EffectivenessRating: &nine},
		{InterventionType: domain.InterventionStress, Status: domain.StatusCompleted, EffectivenessRating: &eight},
		{InterventionType: domain.InterventionFocus, Status: domain.StatusCompleted},
		{InterventionType: domain.InterventionGrief, Status: domain.StatusCompleted, RatedCompletions: 2, AverageEffectiveness: 4},
	}
	ps := InterventionPatterns(records)

	p, ok := findPattern(ps, PatternHighCompletion)
	require.True(t, ok)
	assert.Equal(t, 0.8, p.Confidence)

	p, ok = findPattern(ps, PatternRespondsWell)
	require.True(t, ok)
	assert.Equal(t, 0.75, p.Confidence)
	assert.Equal(t, 2, p.Frequency)

	_, ok = findPattern(ps, PatternPreferredTypePrefix+"sleep_interventions")
	assert.False(t, ok, "no type has two records")

	low := []domain.InterventionProgress{
		{InterventionType: domain.InterventionSleep, Status: domain.StatusAbandoned},
		{InterventionType: domain.InterventionSleep, Status: domain.StatusActive},
		{InterventionType: domain.InterventionSleep, Status: domain.StatusPaused},
		{InterventionType: domain.InterventionSleep, Status: domain.StatusCompleted},
	}
	p, ok = findPattern(InterventionPatterns(low), PatternLowCompletion)
	require.True(t, ok)
	assert.Equal(t, 0.7, p.Confidence)

	assert.Empty(t, InterventionPatterns(low[:1]))
}

func sessionsWith(n int, content string, start time.Time, step time.Duration) []domain.ChatSession {
	out := make([]domain.ChatSession, n)
	for i := range out {
		at := start.Add(time.Duration(i) * step)
		out[i] = domain.ChatSession{
			UserID:        "u1",
			StartedAt:     at,
			LastMessageAt: at.Add(10 * time.Minute),
			Messages: datatypes.NewJSONSlice([]domain.ChatMessage{
				{Role: domain.RoleUser, Content: content},
				{Role: domain.RoleAssistant, Content: "tell me more about that, I'm listening carefully to everything"},
				{Role: domain.RoleUser, Content: content},
			}),
		}
	}
	return out
}

func TestChatPatterns(t *testing.T) {
	assert.Empty(t, ChatPatterns(sessionsWith(4, "hi", now.AddDate(0, 0, -4), 24*time.Hour), now))

	ps := ChatPatterns(sessionsWith(10, "ok fine", now.AddDate(0, 0, -10), 24*time.Hour), now)
	p, ok := findPattern(ps, PatternBriefMessages)
	require.True(t, ok)
	assert.Equal(t, 0.7, p.Confidence)

	p, ok = findPattern(ps, PatternHighlyEngaged)
	require.True(t, ok)
	assert.Equal(t, 0.8, p.Confidence)

	long := make([]byte, 320)
	for i := range long {
		long[i] = 'a'
	}
	ps = ChatPatterns(sessionsWith(5, string(long), now.AddDate(0, 0, -25), 24*time.Hour), now)
	_, ok = findPattern(ps, PatternDetailedMessages)
	assert.True(t, ok)
	_, ok = findPattern(ps, PatternHighlyEngaged)
	assert.False(t, ok)
}

func TestMemoryPatterns(t *testing.T) {
	mems := []domain.LongTermMemory{
		{Type: domain.MemoryEmotionalTheme, Content: "loneliness"},
		{Type: domain.MemoryEmotionalTheme, Content: "self-doubt"},
		{Type: domain.MemoryEmotionalTheme, Content: "guilt"},
		{Type: domain.MemoryTrigger, Content: "family calls"},
		{Type: domain.MemoryCopingPattern, Content: "running"},
		{Type: domain.MemoryCopingPattern, Content: "journaling"},
	}
	ps := MemoryPatterns(mems)
	require.Len(t, ps, 2)
	assert.Equal(t, PatternEmotionalThemes, ps[0].Pattern)
	assert.Len(t, ps[0].Evidence, 3)
	assert.Equal(t, PatternCopingPatterns, ps[1].Pattern)

	assert.Empty(t, MemoryPatterns(mems[:4]))
}

func TestTopPatterns_StableByConfidence(t *testing.T) {
	a := []UserPattern{{Pattern: "a", Confidence: 0.6}, {Pattern: "b", Confidence: 0.8}}
	b := []UserPattern{{Pattern: "c", Confidence: 0.8}, {Pattern: "d", Confidence: 0.7}}
	c := []UserPattern{{Pattern: "e", Confidence: 0.6}, {Pattern: "f", Confidence: 0.75}}

	top := TopPatterns(a, b, c)
	require.Len(t, top, MaxTopPatterns)
	var names []string
	for _, p := range top {
		names = append(names, p.Pattern)
	}
	assert.Equal(t, []string{"b", "c", "f", "d", "a"}, names)
}

func TestTimePatternsAndEngagement(t *testing.T) {
	var sessions []domain.ChatSession
	// Three sessions in the previous week, six in the last week.
	for i := 0; i < 3; i++ {
		at := now.AddDate(0, 0, -13+i).Truncate(24 * time.Hour).Add(9 * time.Hour)
		sessions = append(sessions, domain.ChatSession{StartedAt: at, LastMessageAt: at.Add(20 * time.Minute)})
	}
	for i := 0; i < 6; i++ {
		at := now.AddDate(0, 0, -6+i).Truncate(24 * time.Hour).Add(21 * time.Hour)
		sessions = append(sessions, domain.ChatSession{StartedAt: at, LastMessageAt: at.Add(10 * time.Minute)})
	}

	tp := TimePatternsFrom(sessions, time.UTC)
	assert.Equal(t, []int{21, 9}, tp.PreferredHours)
	assert.Len(t, tp.PreferredDays, 2)
	assert.Equal(t, 10.0, tp.MedianSessionMinutes)
	assert.InDelta(t, 13.33, tp.AverageSessionMinutes, 0.01)
	assert.Equal(t, 9, tp.SessionsAnalyzed)

	eng := EngagementFrom(sessions, now, 14)
	assert.Equal(t, domain.TrendIncreasing, eng.Trend)
	assert.InDelta(t, 4.5, eng.SessionsPerWeek, 0.001)
	require.NotNil(t, eng.LastSessionAt)

	assert.Equal(t, domain.TrendStable, EngagementFrom(nil, now, 30).Trend)
}

func TestCommunicationSignals(t *testing.T) {
	sessions := []domain.ChatSession{{
		Messages: datatypes.NewJSONSlice([]domain.ChatMessage{
			{Role: domain.RoleUser, Content: "great day 😀"},
			{Role: domain.RoleUser, Content: "okay"},
			{Role: domain.RoleAssistant, Content: "lovely 🌟🌟🌟"},
		}),
	}}
	sig := CommunicationSignalsFrom(sessions)
	assert.Equal(t, 2, sig.MessageCount)
	assert.InDelta(t, 0.5, sig.EmojiRate, 0.0001)
	assert.InDelta(t, 7.5, sig.AverageLength, 0.0001)
}
