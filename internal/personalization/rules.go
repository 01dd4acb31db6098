package personalization

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
)

// RuleSourcePatterns marks rules derived from pattern analysis.
const RuleSourcePatterns = "pattern_analysis"

type ruleTemplate struct {
	action   string
	priority domain.RulePriority
}

var exactRules = map[string]ruleTemplate{
	patterns.PatternConsistentlyLowMood:            {"check in gently and offer mood-lifting activities", domain.PriorityHigh},
	patterns.PatternHighMoodVariability:            {"acknowledge ups and downs without judgement", domain.PriorityMedium},
	patterns.PatternMorningMoodBetter:              {"suggest demanding activities in the morning", domain.PriorityLow},
	patterns.PatternEveningMoodBetter:              {"schedule check-ins for the evening", domain.PriorityLow},
	patterns.PatternJournalThemePrefix + "anxiety": {"offer grounding and breathing techniques", domain.PriorityHigh},
	patterns.PatternJournalThemePrefix + "sadness": {"validate feelings and encourage connection", domain.PriorityHigh},
	patterns.PatternJournalThemePrefix + "anger":   {"offer cooling-off strategies", domain.PriorityMedium},
	patterns.PatternJournalThemePrefix + "fear":    {"reassure and break worries into small steps", domain.PriorityMedium},
	patterns.PatternRecurringTriggerWord:           {"gently explore recurring stressors", domain.PriorityMedium},
	patterns.PatternLowCompletion:                  {"suggest shorter, beginner-friendly interventions", domain.PriorityMedium},
	patterns.PatternHighCompletion:                 {"offer more advanced interventions", domain.PriorityLow},
	patterns.PatternRespondsWell:                   {"proactively suggest structured interventions", domain.PriorityMedium},
	patterns.PatternBriefMessages:                  {"keep replies short and ask one question at a time", domain.PriorityMedium},
	patterns.PatternDetailedMessages:               {"give thorough, reflective replies", domain.PriorityMedium},
	patterns.PatternHighlyEngaged:                  {"build on previous conversations", domain.PriorityLow},
	patterns.PatternEmotionalThemes:                {"reference recurring themes with care", domain.PriorityLow},
	patterns.PatternKnownTriggers:                  {"watch for known triggers", domain.PriorityMedium},
	patterns.PatternCopingPatterns:                 {"reinforce existing coping strategies", domain.PriorityMedium},
}

// ruleFor returns the rule template for a pattern identifier.
func ruleFor(pattern string) (ruleTemplate, bool) {
	if t, ok := exactRules[pattern]; ok {
		return t, true
	}
	switch {
	case strings.HasPrefix(pattern, patterns.PatternLowMoodWeekdayPrefix):
		day := strings.TrimPrefix(pattern, patterns.PatternLowMoodWeekdayPrefix)
		return ruleTemplate{fmt.Sprintf("offer extra support on %ss", day), domain.PriorityMedium}, true
	case strings.HasPrefix(pattern, patterns.PatternPreferredTypePrefix):
		t := strings.TrimSuffix(strings.TrimPrefix(pattern, patterns.PatternPreferredTypePrefix), "_interventions")
		return ruleTemplate{fmt.Sprintf("lead with %s interventions", t), domain.PriorityLow}, true
	}
	return ruleTemplate{}, false
}

// mergeRules upserts a rule per observed pattern, keyed by condition, and
// drops analysis rules whose tendency no longer exists. Rules from other
// sources are kept as they are.
func mergeRules(existing []domain.AdaptationRule, observed []patterns.UserPattern, tendencies []domain.BehavioralTendency, now time.Time) []domain.AdaptationRule {
	live := make(map[string]bool, len(tendencies))
	for _, t := range tendencies {
		live[t.Pattern] = true
	}

	out := make([]domain.AdaptationRule, 0, len(existing))
	index := make(map[string]int, len(existing))
	for _, r := range existing {
		if r.Source == RuleSourcePatterns && !live[r.Condition] {
			continue
		}
		index[r.Condition] = len(out)
		out = append(out, r)
	}

	for _, p := range observed {
		tmpl, ok := ruleFor(p.Pattern)
		if !ok {
			continue
		}
		if i, ok := index[p.Pattern]; ok {
			if out[i].Source != RuleSourcePatterns {
				continue
			}
			out[i].Action = tmpl.action
			out[i].Priority = tmpl.priority
			out[i].Confidence = p.Confidence
			out[i].UpdatedAt = now
			continue
		}
		index[p.Pattern] = len(out)
		out = append(out, domain.AdaptationRule{
			Condition:  p.Pattern,
			Action:     tmpl.action,
			Priority:   tmpl.priority,
			Source:     RuleSourcePatterns,
			Confidence: p.Confidence,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return out
}
