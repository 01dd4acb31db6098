package personalization

import (
	"strings"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
)

const (
	minMessagesForStyle = 10
	conciseMessageLen   = 50
	detailedMessageLen  = 300
	frequentEmojiRate   = 0.3
	occasionalEmojiRate = 0.05
	maxGoals            = 5
	fullQualitySamples  = 50.0
)

// inferCommunication adjusts the inferred preferences from an analysis.
// Fields the user has overridden are left untouched, and so are fields the
// analysis has too little data for.
func inferCommunication(current domain.CommunicationPreferences, overrides domain.UserOverrides, res *patterns.Result) domain.CommunicationPreferences {
	out := current
	sig := res.Communication

	if overrides.Verbosity == nil && sig.MessageCount >= minMessagesForStyle {
		switch {
		case sig.AverageLength < conciseMessageLen:
			out.Verbosity = domain.VerbosityConcise
		case sig.AverageLength > detailedMessageLen:
			out.Verbosity = domain.VerbosityDetailed
		default:
			out.Verbosity = domain.VerbosityModerate
		}
	}

	if overrides.EmojiUsage == nil && sig.MessageCount >= minMessagesForStyle {
		switch {
		case sig.EmojiRate >= frequentEmojiRate:
			out.EmojiUsage = domain.EmojiFrequent
		case sig.EmojiRate >= occasionalEmojiRate:
			out.EmojiUsage = domain.EmojiOccasional
		default:
			out.EmojiUsage = domain.EmojiNone
		}
	}

	if overrides.Style == nil {
		if style, ok := inferStyle(res.All()); ok {
			out.InferredStyle = style
		}
	}
	return out
}

// inferStyle picks a style from the strongest signal present.
func inferStyle(ps []patterns.UserPattern) (domain.CommunicationStyle, bool) {
	has := make(map[string]bool, len(ps))
	for _, p := range ps {
		has[p.Pattern] = true
	}
	switch {
	case has[patterns.PatternConsistentlyLowMood],
		has[patterns.PatternJournalThemePrefix+"sadness"],
		has[patterns.PatternJournalThemePrefix+"anxiety"],
		has[patterns.PatternJournalThemePrefix+"fear"]:
		return domain.StyleGentle, true
	case has[patterns.PatternDetailedMessages]:
		return domain.StyleReflective, true
	case has[patterns.PatternBriefMessages]:
		return domain.StyleDirect, true
	case has[patterns.PatternRespondsWell], has[patterns.PatternHighCompletion]:
		return domain.StyleEncouraging, true
	}
	return "", false
}

// concernSignals maps patterns to the need they point at.
var concernSignals = map[string]domain.InterventionType{
	patterns.PatternConsistentlyLowMood:            domain.InterventionDepression,
	patterns.PatternJournalThemePrefix + "sadness": domain.InterventionDepression,
	patterns.PatternJournalThemePrefix + "anxiety": domain.InterventionAnxiety,
	patterns.PatternJournalThemePrefix + "fear":    domain.InterventionAnxiety,
	patterns.PatternJournalThemePrefix + "anger":   domain.InterventionStress,
	patterns.PatternRecurringTriggerWord:           domain.InterventionStress,
}

// inferIntent derives the primary concern from the highest-confidence
// signal and goals from goal memories. The previous concern is kept when
// nothing points anywhere.
func inferIntent(current domain.Intent, res *patterns.Result) domain.Intent {
	out := domain.Intent{PrimaryConcern: current.PrimaryConcern}

	best := -1.0
	for _, p := range res.All() {
		t, ok := concernSignals[p.Pattern]
		if !ok && strings.HasPrefix(p.Pattern, patterns.PatternPreferredTypePrefix) {
			t = domain.InterventionType(strings.TrimSuffix(strings.TrimPrefix(p.Pattern, patterns.PatternPreferredTypePrefix), "_interventions"))
			ok = t.Valid()
		}
		if ok && p.Confidence > best {
			best = p.Confidence
			out.PrimaryConcern = t
		}
	}

	for _, m := range res.Memories {
		if m.Type != domain.MemoryGoal {
			continue
		}
		out.Goals = append(out.Goals, m.Content)
		if len(out.Goals) == maxGoals {
			break
		}
	}
	if len(out.Goals) == 0 {
		out.Goals = current.Goals
	}
	return out
}

// dataQuality grows linearly with the number of records analyzed.
func dataQuality(samples int) float64 {
	q := float64(samples) / fullQualitySamples
	if q > 1 {
		return 1
	}
	return q
}
