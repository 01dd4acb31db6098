package patterns

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

const (
	maxPreferredHours = 3
	maxPreferredDays  = 2
	trendWindow       = 7 * 24 * time.Hour
	trendMinDelta     = 2
)

// TimePatternsFrom derives preferred hours and days and session length
// statistics from chat sessions. Hours and days are taken in loc.
func TimePatternsFrom(sessions []domain.ChatSession, loc *time.Location) domain.TimePatterns {
	tp := domain.TimePatterns{SessionsAnalyzed: len(sessions)}
	if len(sessions) == 0 {
		return tp
	}
	if loc == nil {
		loc = time.UTC
	}

	hours := make([]int, 24)
	days := make([]int, 7)
	minutes := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		local := s.StartedAt.In(loc)
		hours[local.Hour()]++
		days[int(local.Weekday())]++
		minutes = append(minutes, s.Duration().Minutes())
	}

	tp.PreferredHours = topIndexes(hours, maxPreferredHours)
	tp.PreferredDays = topIndexes(days, maxPreferredDays)
	tp.AverageSessionMinutes = mean(minutes)
	tp.MedianSessionMinutes = median(minutes)
	return tp
}

// topIndexes returns up to n indexes with the highest non-zero counts,
// lower index first on ties.
func topIndexes(counts []int, n int) []int {
	idx := make([]int, 0, len(counts))
	for i, c := range counts {
		if c > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return counts[idx[a]] > counts[idx[b]]
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	return idx
}

// EngagementFrom computes sessions per week over lookbackDays and the trend
// between the last seven days and the seven before them.
func EngagementFrom(sessions []domain.ChatSession, now time.Time, lookbackDays int) domain.EngagementMetrics {
	m := domain.EngagementMetrics{Trend: domain.TrendStable}
	if lookbackDays > 0 {
		m.SessionsPerWeek = float64(len(sessions)) / (float64(lookbackDays) / 7)
	}

	var last, prev int
	for _, s := range sessions {
		age := now.Sub(s.LastMessageAt)
		switch {
		case age < 0:
		case age <= trendWindow:
			last++
		case age <= 2*trendWindow:
			prev++
		}
		if m.LastSessionAt == nil || s.LastMessageAt.After(*m.LastSessionAt) {
			t := s.LastMessageAt
			m.LastSessionAt = &t
		}
	}

	switch d := last - prev; {
	case d >= trendMinDelta:
		m.Trend = domain.TrendIncreasing
	case d <= -trendMinDelta:
		m.Trend = domain.TrendDecreasing
	}
	return m
}

// CommunicationSignals summarize how a user writes.
type CommunicationSignals struct {
	MessageCount  int     `json:"messageCount"`
	AverageLength float64 `json:"averageLength"`
	// EmojiRate is the fraction of messages containing at least one emoji.
	EmojiRate     float64 `json:"emojiRate"`
}

// CommunicationSignalsFrom measures the user's own messages across sessions.
func CommunicationSignalsFrom(sessions []domain.ChatSession) CommunicationSignals {
	var sig CommunicationSignals
	var total, withEmoji int
	for _, s := range sessions {
		for _, msg := range s.UserMessages() {
			sig.MessageCount++
			total += utf8.RuneCountInString(msg.Content)
			if hasEmoji(msg.Content) {
				withEmoji++
			}
		}
	}
	if sig.MessageCount > 0 {
		sig.AverageLength = float64(total) / float64(sig.MessageCount)
		sig.EmojiRate = float64(withEmoji) / float64(sig.MessageCount)
	}
	return sig
}

func hasEmoji(s string) bool {
	for _, r := range s {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF,
			r >= 0x2600 && r <= 0x27BF,
			r >= 0x1F1E6 && r <= 0x1F1FF:
			return true
		}
	}
	return false
}
