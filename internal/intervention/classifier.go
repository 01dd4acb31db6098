package intervention

import (
	"strings"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// Signal is the keyword evidence for one need type found in a text.
type Signal struct {
	Type     domain.InterventionType
	Explicit []string
	Moderate []string
}

// Classifier finds need signals in free text. Signals are returned in
// domain.InterventionTypes order and only for types with at least one hit.
type Classifier interface {
	Classify(text string) []Signal
}

// SeriousnessLevel grades how seriously a message mentions a need.
type SeriousnessLevel string

const (
	SeriousnessExplicit SeriousnessLevel = "explicit"
	SeriousnessSerious  SeriousnessLevel = "serious"
	SeriousnessCasual   SeriousnessLevel = "casual"
)

// Passes reports whether the level counts toward suggesting an intervention.
func (l SeriousnessLevel) Passes() bool {
	return l != SeriousnessCasual
}

// SeriousnessGrader grades a single message for one need type.
type SeriousnessGrader interface {
	Seriousness(t domain.InterventionType, message string) SeriousnessLevel
}

type keywordList struct {
	explicit []string
	moderate []string
}

// KeywordClassifier matches fixed keyword lists as lowercase substrings.
type KeywordClassifier struct {
	lists map[domain.InterventionType]keywordList
}

var (
	_ Classifier        = (*KeywordClassifier)(nil)
	_ SeriousnessGrader = (*KeywordClassifier)(nil)
)

// seriousLength is the message length above which a single moderate hit
// counts as serious.
const seriousLength = 50

// NewKeywordClassifier returns a classifier with the built-in lists.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{lists: map[domain.InterventionType]keywordList{
		domain.InterventionSleep: {
			explicit: []string{"insomnia", "can't sleep", "cannot sleep", "haven't slept", "awake all night", "up all night", "no sleep"},
			moderate: []string{"sleep", "tired", "exhausted", "awake", "bedtime", "nightmare", "restless", "fatigue"},
		},
		domain.InterventionDepression: {
			explicit: []string{"depressed", "depression", "hopeless", "worthless", "empty inside", "nothing matters", "no point in anything"},
			moderate: []string{"sad", "feeling down", "feeling low", "lonely", "unmotivated", "crying", "numb", "miserable"},
		},
		domain.InterventionAnxiety: {
			explicit: []string{"panic attack", "anxiety attack", "can't breathe", "constant worry", "terrified"},
			moderate: []string{"anxious", "anxiety", "worried", "nervous", "panic", "overthinking", "on edge", "uneasy"},
		},
		domain.InterventionStress: {
			explicit: []string{"burned out", "burnt out", "burnout", "breaking point", "can't cope", "too much to handle"},
			moderate: []string{"stress", "pressure", "overwhelmed", "deadline", "workload", "tense", "frazzled", "swamped"},
		},
		domain.InterventionBreakup: {
			explicit: []string{"broke up", "breakup", "break up", "dumped me", "divorce", "left me"},
			moderate: []string{"my ex", "relationship", "heartbroken", "split up", "miss him", "miss her", "single again", "partner"},
		},
		domain.InterventionGrief: {
			explicit: []string{"passed away", "died", "funeral", "grieving", "lost my"},
			moderate: []string{"grief", "loss", "mourning", "miss them", "gone forever", "death", "memorial", "bereavement"},
		},
		domain.InterventionFocus: {
			explicit: []string{"can't focus", "cannot focus", "can't concentrate", "cannot concentrate", "adhd"},
			moderate: []string{"focus", "distracted", "concentrate", "procrastinat", "productivity", "attention", "scattered", "unfocused"},
		},
	}}
}

// normalize lowercases text and folds typographic apostrophes.
func normalize(text string) string {
	return strings.ReplaceAll(strings.ToLower(text), "’", "'")
}

func matches(text string, words []string) []string {
	var hits []string
	for _, w := range words {
		if strings.Contains(text, w) {
			hits = append(hits, w)
		}
	}
	return hits
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(text string) []Signal {
	text = normalize(text)
	var out []Signal
	for _, t := range domain.InterventionTypes {
		l := c.lists[t]
		s := Signal{Type: t, Explicit: matches(text, l.explicit), Moderate: matches(text, l.moderate)}
		if len(s.Explicit) > 0 || len(s.Moderate) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Seriousness implements SeriousnessGrader. Only message is considered.
func (c *KeywordClassifier) Seriousness(t domain.InterventionType, message string) SeriousnessLevel {
	text := normalize(message)
	l := c.lists[t]
	if len(matches(text, l.explicit)) > 0 {
		return SeriousnessExplicit
	}
	switch hits := len(matches(text, l.moderate)); {
	case hits >= 2:
		return SeriousnessSerious
	case hits == 1 && len(message) > seriousLength:
		return SeriousnessSerious
	}
	return SeriousnessCasual
}
