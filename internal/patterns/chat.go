package patterns

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

const (
	minChatSessions     = 5
	minChatMessages     = 10
	briefMessageLen     = 50
	detailedMessageLen  = 300
	engagedWindow       = 14 * 24 * time.Hour
	engagedSessionCount = 10
)

// ChatPatterns extracts message length and engagement patterns. It needs at
// least five sessions.
func ChatPatterns(sessions []domain.ChatSession, now time.Time) []UserPattern {
	if len(sessions) < minChatSessions {
		return nil
	}

	var out []UserPattern

	sig := CommunicationSignalsFrom(sessions)
	if sig.MessageCount >= minChatMessages {
		evidence := []string{fmt.Sprintf("average message length %.0f characters over %d messages", sig.AverageLength, sig.MessageCount)}
		switch {
		case sig.AverageLength < briefMessageLen:
			out = append(out, UserPattern{
				Type:       SourceChat,
				Pattern:    PatternBriefMessages,
				Confidence: 0.7,
				Evidence:   evidence,
				Insight:    "Writes short messages",
			})
		case sig.AverageLength > detailedMessageLen:
			out = append(out, UserPattern{
				Type:       SourceChat,
				Pattern:    PatternDetailedMessages,
				Confidence: 0.7,
				Evidence:   evidence,
				Insight:    "Writes long, detailed messages",
			})
		}
	}

	recent := 0
	cutoff := now.Add(-engagedWindow)
	for _, s := range sessions {
		if !s.LastMessageAt.Before(cutoff) {
			recent++
		}
	}
	if recent >= engagedSessionCount {
		out = append(out, UserPattern{
			Type:       SourceChat,
			Pattern:    PatternHighlyEngaged,
			Confidence: 0.8,
			Evidence:   []string{fmt.Sprintf("%d sessions in the last 14 days", recent)},
			Insight:    "Checks in very regularly",
			Frequency:  recent,
		})
	}

	return out
}
