package patterns

import (
	"sort"
)

// Source identifies the data an extractor read.
type Source string

const (
	SourceMood         Source = "mood"
	SourceJournal      Source = "journal"
	SourceIntervention Source = "intervention"
	SourceChat         Source = "chat"
	SourceMemory       Source = "memory"
)

// Pattern identifiers shared with the personalization rule table.
const (
	PatternConsistentlyLowMood  = "consistently_low_mood"
	PatternHighMoodVariability  = "high_mood_variability"
	PatternMorningMoodBetter    = "morning_mood_better"
	PatternEveningMoodBetter    = "evening_mood_better"
	PatternLowMoodWeekdayPrefix = "low_mood_on_"

	PatternJournalThemePrefix   = "journal_theme_"
	PatternJournalHourPrefix    = "journals_around_"
	PatternRecurringTriggerWord = "recurring_trigger_words"

	PatternPreferredTypePrefix = "prefers_"
	PatternLowCompletion       = "low_completion_rate"
	PatternHighCompletion      = "high_completion_rate"
	PatternRespondsWell        = "responds_well_to_interventions"

	PatternBriefMessages    = "brief_messages"
	PatternDetailedMessages = "detailed_messages"
	PatternHighlyEngaged    = "highly_engaged"

	PatternEmotionalThemes = "recurring_emotional_themes"
	PatternKnownTriggers   = "known_triggers"
	PatternCopingPatterns  = "established_coping_patterns"
)

// UserPattern is one observation about a user.
type UserPattern struct {
	Type       Source   `json:"type"`
	Pattern    string   `json:"pattern"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
	Insight    string   `json:"insight,omitempty"`
	Frequency  int      `json:"frequency,omitempty"`
}

// MaxTopPatterns is the number of patterns TopPatterns keeps.
const MaxTopPatterns = 5

// TopPatterns concatenates lists in order, stable-sorts by confidence
// descending and keeps the first MaxTopPatterns.
func TopPatterns(lists ...[]UserPattern) []UserPattern {
	var all []UserPattern
	for _, l := range lists {
		all = append(all, l...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Confidence > all[j].Confidence
	})
	if len(all) > MaxTopPatterns {
		all = all[:MaxTopPatterns]
	}
	return all
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}
