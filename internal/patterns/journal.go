package patterns

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

const (
	minThemeEntries   = 5
	themeRatio        = 0.4
	minSharedHour     = 3
	minTriggerCount   = 3
	minTriggerWordLen = 5
	maxTriggerWords   = 5
)

// journalTheme is a named keyword dictionary.
type journalTheme struct {
	name string
	words map[string]struct{}
}

var journalThemes = []journalTheme{
	{name: "anxiety", words: wordSet("anxious", "anxiety", "worried", "worry", "worrying", "nervous", "panic", "panicking", "overwhelmed", "restless", "tense")},
	{name: "sadness", words: wordSet("sad", "sadness", "depressed", "lonely", "hopeless", "crying", "cried", "empty", "miserable", "unhappy", "down")},
	{name: "anger", words: wordSet("angry", "anger", "furious", "frustrated", "irritated", "annoyed", "mad", "rage", "resentful")},
	{name: "fear", words: wordSet("afraid", "scared", "fear", "terrified", "frightened", "dread", "fearful")},
}

var lowMoodWords = wordSet(
	"sad", "depressed", "anxious", "stressed", "lonely", "hopeless", "upset",
	"down", "awful", "terrible", "miserable", "exhausted", "overwhelmed", "worthless",
)

var stopWords = wordSet(
	"about", "after", "again", "always", "because", "before", "being", "could",
	"didn't", "doesn't", "don't", "every", "feels", "feeling", "going", "really",
	"should", "something", "still", "their", "there", "these", "thing", "things",
	"think", "those", "today", "where", "which", "while", "would", "couldn't",
	"another", "though", "through", "other", "right", "since", "maybe",
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// tokenize lowercases text and splits it into words. Apostrophes stay
// inside words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func containsAny(tokens []string, words map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := words[t]; ok {
			return true
		}
	}
	return false
}

// JournalPatterns extracts recurring themes, a habitual writing hour and
// recurring words in low-mood entries. Hours are taken in loc.
func JournalPatterns(entries []domain.JournalEntry, loc *time.Location) []UserPattern {
	if len(entries) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	tokens := make([][]string, len(entries))
	for i, e := range entries {
		tokens[i] = tokenize(e.Text())
	}

	var out []UserPattern
	n := len(entries)

	// Themes
	if n >= minThemeEntries {
		for _, theme := range journalThemes {
			k := 0
			for _, toks := range tokens {
				if containsAny(toks, theme.words) {
					k++
				}
			}
			ratio := float64(k) / float64(n)
			if ratio <= themeRatio {
				continue
			}
			out = append(out, UserPattern{
				Type:       SourceJournal,
				Pattern:    PatternJournalThemePrefix + theme.name,
				Confidence: 0.75,
				Evidence: []string{
					fmt.Sprintf("%s-related words appear in %d out of %d entries (%.0f%%)", theme.name, k, n, ratio*100),
				},
				Insight:   fmt.Sprintf("%s comes up often in journaling", theme.name),
				Frequency: k,
			})
		}
	}

	// Habitual hour; ties go to the earliest hour.
	var hours [24]int
	for _, e := range entries {
		hours[e.CreatedAt.In(loc).Hour()]++
	}
	bestHour, bestCount := 0, 0
	for h, c := range hours {
		if c > bestCount {
			bestHour, bestCount = h, c
		}
	}
	if bestCount >= minSharedHour {
		out = append(out, UserPattern{
			Type:       SourceJournal,
			Pattern:    fmt.Sprintf("%s%02d00", PatternJournalHourPrefix, bestHour),
			Confidence: 0.7,
			Evidence:   []string{fmt.Sprintf("%d entries written between %02d:00 and %02d:59", bestCount, bestHour, bestHour)},
			Insight:    fmt.Sprintf("Usually journals around %02d:00", bestHour),
			Frequency:  bestCount,
		})
	}

	if p, ok := triggerWords(tokens); ok {
		out = append(out, p)
	}

	return out
}

func triggerWords(tokens [][]string) (UserPattern, bool) {
	counts := make(map[string]int)
	for _, toks := range tokens {
		if !containsAny(toks, lowMoodWords) {
			continue
		}
		for _, t := range toks {
			if len([]rune(t)) < minTriggerWordLen {
				continue
			}
			if _, ok := stopWords[t]; ok {
				continue
			}
			if _, ok := lowMoodWords[t]; ok {
				continue
			}
			counts[t]++
		}
	}

	type wordCount struct {
		word  string
		count int
	}
	var frequent []wordCount
	for w, c := range counts {
		if c >= minTriggerCount {
			frequent = append(frequent, wordCount{w, c})
		}
	}
	if len(frequent) == 0 {
		return UserPattern{}, false
	}
	sort.Slice(frequent, func(i, j int) bool {
		if frequent[i].count != frequent[j].count {
			return frequent[i].count > frequent[j].count
		}
		return frequent[i].word < frequent[j].word
	})
	if len(frequent) > maxTriggerWords {
		frequent = frequent[:maxTriggerWords]
	}

	p := UserPattern{
		Type:       SourceJournal,
		Pattern:    PatternRecurringTriggerWord,
		Confidence: 0.6,
	}
	words := make([]string, 0, len(frequent))
	for _, f := range frequent {
		p.Evidence = append(p.Evidence, fmt.Sprintf("%q appears %d times in low-mood entries", f.word, f.count))
		p.Frequency += f.count
		words = append(words, f.word)
	}
	p.Insight = "Possible triggers: " + strings.Join(words, ", ")
	return p, true
}
