// Package summary compresses a user's chat history into weekly and monthly
// summaries.
package summary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/intervention"
	"github.com/fyrsmithlabs/companiond/internal/llm"
)

const (
	maxTranscriptChars = 12000
	maxExcerpts        = 3
	excerptChars       = 120
)

// Store is the persistence used by the Summarizer.
type Store interface {
	SummaryExists(ctx context.Context, userID string, t domain.SummaryType, periodStart time.Time) (bool, error)
	CreateSummaryIfAbsent(ctx context.Context, cs *domain.ConversationSummary) (bool, error)
	ChatSessionsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.ChatSession, error)
}

// Period is a half-open [Start, End) summary window.
type Period struct {
	Type  domain.SummaryType
	Start time.Time
	End   time.Time
}

// WeekOf returns the ISO week containing t, starting Monday 00:00 UTC.
func WeekOf(t time.Time) Period {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return Period{Type: domain.SummaryWeekly, Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthOf returns the calendar month containing t in UTC.
func MonthOf(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Type: domain.SummaryMonthly, Start: start, End: start.AddDate(0, 1, 0)}
}

// Summarizer writes missing summaries for the current periods.
type Summarizer struct {
	store      Store
	llm        llm.Client
	classifier intervention.Classifier
	logger     *zap.Logger
}

// NewSummarizer creates a Summarizer. A nil client always uses the
// extractive fallback and a nil classifier uses the keyword lists.
func NewSummarizer(st Store, client llm.Client, classifier intervention.Classifier, logger *zap.Logger) (*Summarizer, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if client == nil {
		client = llm.NoopClient{}
	}
	if classifier == nil {
		classifier = intervention.NewKeywordClassifier()
	}
	return &Summarizer{store: st, llm: client, classifier: classifier, logger: logger}, nil
}

// EnsureSummaries creates the weekly and monthly summaries covering now when
// they are missing and the period has messages. It returns how many were
// created.
func (s *Summarizer) EnsureSummaries(ctx context.Context, userID string, now time.Time) (int, error) {
	created := 0
	for _, p := range []Period{WeekOf(now), MonthOf(now)} {
		ok, err := s.ensure(ctx, userID, p)
		if err != nil {
			return created, fmt.Errorf("%s summary for %s: %w", p.Type, userID, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (s *Summarizer) ensure(ctx context.Context, userID string, p Period) (bool, error) {
	exists, err := s.store.SummaryExists(ctx, userID, p.Type, p.Start)
	if err != nil || exists {
		return false, err
	}

	sessions, err := s.store.ChatSessionsBetween(ctx, userID, p.Start, p.End)
	if err != nil {
		return false, err
	}
	msgs := messagesIn(sessions, p)
	if len(msgs) == 0 {
		return false, nil
	}

	cs := s.generate(ctx, userID, p, msgs)
	cs.UserID = userID
	cs.Type = p.Type
	cs.PeriodStart = p.Start
	cs.PeriodEnd = p.End
	cs.MessageCount = len(msgs)
	for _, m := range msgs {
		cs.OriginalLength += len(m.Content)
	}
	cs.SummaryLength = len(cs.Summary)
	if cs.OriginalLength > 0 {
		cs.CompressionRatio = float64(cs.SummaryLength) / float64(cs.OriginalLength)
	}

	ok, err := s.store.CreateSummaryIfAbsent(ctx, cs)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("summary created",
			zap.String("user_id", userID),
			zap.String("type", string(p.Type)),
			zap.Time("period_start", p.Start),
			zap.String("generated_by", string(cs.GeneratedBy)))
	}
	return ok, nil
}

// messagesIn flattens sessions, keeping messages timestamped inside p.
// Messages without a timestamp inherit their session's last message time.
func messagesIn(sessions []domain.ChatSession, p Period) []domain.ChatMessage {
	var out []domain.ChatMessage
	for _, cs := range sessions {
		for _, m := range cs.Messages {
			ts := m.Timestamp
			if ts.IsZero() {
				ts = cs.LastMessageAt
			}
			if !ts.Before(p.Start) && ts.Before(p.End) {
				out = append(out, m)
			}
		}
	}
	return out
}

type generated struct {
	Summary     string   `json:"summary"`
	Topics      []string `json:"topics"`
	Themes      []string `json:"themes"`
	Insights    []string `json:"insights"`
	ActionItems []string `json:"actionItems"`
}

const systemPrompt = `You summarize a user's conversations with a supportive wellbeing companion.
Reply with a single JSON object with these fields:
"summary" (2-4 sentences), "topics" (short strings), "themes" (emotional themes),
"insights" (observations useful for future conversations), "actionItems" (gentle next steps).
Do not include names or identifying details.`

func (s *Summarizer) generate(ctx context.Context, userID string, p Period, msgs []domain.ChatMessage) *domain.ConversationSummary {
	resp, err := s.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: transcript(msgs)},
	})
	if err == nil {
		var g generated
		if err = llm.ParseJSON(resp.Content, &g); err == nil && strings.TrimSpace(g.Summary) != "" {
			return &domain.ConversationSummary{
				Summary:     strings.TrimSpace(g.Summary),
				Topics:      datatypes.NewJSONSlice(g.Topics),
				Themes:      datatypes.NewJSONSlice(g.Themes),
				Insights:    datatypes.NewJSONSlice(g.Insights),
				ActionItems: datatypes.NewJSONSlice(g.ActionItems),
				GeneratedBy: domain.GeneratedByLLM,
			}
		}
		if err == nil {
			err = errors.New("empty summary")
		}
	}
	if !errors.Is(err, llm.ErrUnavailable) {
		s.logger.Warn("llm summary failed, using fallback",
			zap.String("user_id", userID),
			zap.String("type", string(p.Type)),
			zap.Error(err))
	}
	return s.extractive(p, msgs)
}

func transcript(msgs []domain.ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		line := fmt.Sprintf("%s: %s\n", m.Role, m.Content)
		if b.Len()+len(line) > maxTranscriptChars {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

// extractive builds a summary from counts, classifier topics and the longest
// user messages.
func (s *Summarizer) extractive(p Period, msgs []domain.ChatMessage) *domain.ConversationSummary {
	var user []string
	for _, m := range msgs {
		if m.Role == domain.RoleUser && strings.TrimSpace(m.Content) != "" {
			user = append(user, strings.TrimSpace(m.Content))
		}
	}

	hits := map[domain.InterventionType]int{}
	var order []domain.InterventionType
	for _, text := range user {
		for _, sig := range s.classifier.Classify(text) {
			if _, seen := hits[sig.Type]; !seen {
				order = append(order, sig.Type)
			}
			hits[sig.Type] += len(sig.Explicit) + len(sig.Moderate)
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return hits[order[i]] > hits[order[j]] })
	topics := make([]string, len(order))
	for i, t := range order {
		topics[i] = string(t)
	}

	excerpts := append([]string(nil), user...)
	sort.SliceStable(excerpts, func(i, j int) bool { return len(excerpts[i]) > len(excerpts[j]) })
	if len(excerpts) > maxExcerpts {
		excerpts = excerpts[:maxExcerpts]
	}
	for i, e := range excerpts {
		excerpts[i] = truncate(e, excerptChars)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d messages (%d from the user) between %s and %s.",
		len(msgs), len(user), p.Start.Format("Jan 2"), p.End.Add(-time.Second).Format("Jan 2"))
	if len(topics) > 0 {
		fmt.Fprintf(&b, " Topics: %s.", strings.Join(topics, ", "))
	}
	for _, e := range excerpts {
		fmt.Fprintf(&b, " %q", e)
	}

	return &domain.ConversationSummary{
		Summary:     b.String(),
		Topics:      datatypes.NewJSONSlice(topics),
		Themes:      datatypes.NewJSONSlice([]string{}),
		Insights:    datatypes.NewJSONSlice(excerpts),
		ActionItems: datatypes.NewJSONSlice([]string{}),
		GeneratedBy: domain.GeneratedByFallback,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
