// Package chat produces companion replies. A reply runs need detection,
// gating and ranking, and is written in the user's preferred style.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/intervention"
	"github.com/fyrsmithlabs/companiond/internal/llm"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
	"github.com/fyrsmithlabs/companiond/internal/personalization"
)

const (
	recentMessageLimit = 10
	memoryLimit        = 5
	moodWindow         = 7 * 24 * time.Hour
)

// Suppression reasons.
const (
	SuppressedExcluded   = "excluded by user"
	SuppressedQuietHours = "quiet hours"
	SuppressedGate       = "gating criteria not met"
)

// Store is the data a reply reads.
type Store interface {
	MoodsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Mood, error)
	TopMemories(ctx context.Context, userID string, limit int) ([]domain.LongTermMemory, error)
	RecentChatMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Personalizer returns the effective personalization for a user.
type Personalizer interface {
	Effective(ctx context.Context, userID string) (*personalization.Effective, error)
}

// Gate decides whether to suggest and remembers suggestions.
type Gate interface {
	ShouldSuggest(ctx context.Context, userID string, t domain.InterventionType, message string, recent []string) intervention.GatingResult
	RecordSuggestion(ctx context.Context, userID string, t domain.InterventionType) error
}

// Recommender ranks interventions for a need.
type Recommender interface {
	GetRecommendedInterventions(ctx context.Context, userID string, need domain.InterventionType, experience domain.Difficulty) ([]intervention.Intervention, error)
}

// Deps are the collaborators of a Responder.
type Deps struct {
	Store        Store
	Detector     *intervention.Detector
	Gate         Gate
	Recommender  Recommender
	Personalizer Personalizer
	LLM          llm.Client
}

// Reply is the companion's answer to one message.
type Reply struct {
	Message     string                      `json:"message"`
	Need        *intervention.DetectedNeed  `json:"need,omitempty"`
	Gating      *intervention.GatingResult  `json:"gating,omitempty"`
	Suggestions []intervention.Intervention `json:"suggestions,omitempty"`
	Suppressed  string                      `json:"suppressed,omitempty"`
	Fallback    bool                        `json:"fallback"`
}

// Responder writes chat replies.
type Responder struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Responder.
type Option func(*Responder)

// WithClock overrides the responder's clock.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) { r.now = now }
}

// NewResponder creates a Responder. A nil Detector uses the keyword lists
// and a nil LLM always replies with the canned text.
func NewResponder(deps Deps, logger *zap.Logger, opts ...Option) (*Responder, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("store cannot be nil")
	case deps.Gate == nil:
		return nil, errors.New("gate cannot be nil")
	case deps.Recommender == nil:
		return nil, errors.New("recommender cannot be nil")
	case deps.Personalizer == nil:
		return nil, errors.New("personalizer cannot be nil")
	case logger == nil:
		return nil, errors.New("logger cannot be nil")
	}
	if deps.Detector == nil {
		deps.Detector = intervention.NewDetector(nil)
	}
	if deps.LLM == nil {
		deps.LLM = llm.NoopClient{}
	}
	r := &Responder{deps: deps, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Respond answers message. When recent is nil the user's latest stored
// messages are used. Only a blank message is an error; every other failure
// degrades the reply.
func (r *Responder) Respond(ctx context.Context, userID, message string, recent []string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.New("message is required")
	}
	now := r.now().UTC()
	log := r.logger.With(zap.String("user_id", userID))

	if recent == nil {
		recent = r.recentUserMessages(ctx, userID, log)
	}

	var mood intervention.MoodContext
	if moods, err := r.deps.Store.MoodsBetween(ctx, userID, now.Add(-moodWindow), now); err != nil {
		log.Warn("loading moods failed", zap.Error(err))
	} else {
		mood.SevenDayAverage = patterns.AverageMood(moods)
	}

	eff, err := r.deps.Personalizer.Effective(ctx, userID)
	if err != nil {
		log.Warn("loading personalization failed, using defaults", zap.Error(err))
		eff = &personalization.Effective{UserID: userID, Communication: domain.DefaultCommunication()}
	}

	user, err := r.deps.Store.GetUser(ctx, userID)
	if err != nil {
		user = nil
	}

	reply := &Reply{Need: r.deps.Detector.Detect(message, recent, mood)}
	if reply.Need != nil {
		r.suggest(ctx, reply, eff, user, userID, message, recent, now, log)
	}

	memories, err := r.deps.Store.TopMemories(ctx, userID, memoryLimit)
	if err != nil {
		log.Warn("loading memories failed", zap.Error(err))
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt(eff, memories, reply)}}
	for _, m := range recent {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	resp, err := r.deps.LLM.Generate(ctx, msgs)
	if err == nil && strings.TrimSpace(resp.Content) != "" {
		reply.Message = strings.TrimSpace(resp.Content)
		return reply, nil
	}
	if err != nil && !errors.Is(err, llm.ErrUnavailable) {
		log.Warn("llm reply failed, using fallback", zap.Error(err))
	}
	suggestion := ""
	if len(reply.Suggestions) > 0 {
		suggestion = reply.Suggestions[0].Name
	}
	reply.Message = llm.FallbackChatReply(suggestion)
	reply.Fallback = true
	return reply, nil
}

func (r *Responder) suggest(ctx context.Context, reply *Reply, eff *personalization.Effective, user *domain.User, userID, message string, recent []string, now time.Time, log *zap.Logger) {
	need := reply.Need.Type
	if eff.Overrides.Excludes(need) {
		reply.Suppressed = SuppressedExcluded
		return
	}
	if q := eff.Overrides.QuietHours; q != nil && q.Contains(now.In(user.Location()).Hour()) {
		reply.Suppressed = SuppressedQuietHours
		return
	}

	g := r.deps.Gate.ShouldSuggest(ctx, userID, need, message, recent)
	reply.Gating = &g
	if !g.ShouldSuggest {
		reply.Suppressed = SuppressedGate
		return
	}

	experience := eff.ExperienceLevel
	if experience == "" && user != nil {
		experience = user.ExperienceLevel
	}
	if !experience.Valid() {
		experience = domain.DifficultyBeginner
	}
	suggestions, err := r.deps.Recommender.GetRecommendedInterventions(ctx, userID, need, experience)
	if err != nil {
		log.Warn("recommendation failed", zap.Error(err))
		return
	}
	reply.Suggestions = suggestions
	if len(suggestions) > 0 {
		if err := r.deps.Gate.RecordSuggestion(ctx, userID, need); err != nil {
			log.Warn("recording suggestion failed", zap.Error(err))
		}
	}
}

func (r *Responder) recentUserMessages(ctx context.Context, userID string, log *zap.Logger) []string {
	msgs, err := r.deps.Store.RecentChatMessages(ctx, userID, recentMessageLimit)
	if err != nil {
		log.Warn("loading recent messages failed", zap.Error(err))
		return nil
	}
	var out []string
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

var styleGuidance = map[domain.CommunicationStyle]string{
	domain.StyleBalanced:    "Be warm and clear.",
	domain.StyleGentle:      "Be especially gentle and validating. Avoid pressure.",
	domain.StyleDirect:      "Be direct and practical. Get to the point.",
	domain.StyleEncouraging: "Be encouraging and highlight progress.",
	domain.StyleReflective:  "Be reflective. Ask open questions that invite the user to explore.",
}

var verbosityGuidance = map[domain.Verbosity]string{
	domain.VerbosityConcise:  "Keep replies to two or three sentences.",
	domain.VerbosityModerate: "Keep replies to a short paragraph.",
	domain.VerbosityDetailed: "Longer, thoughtful replies are welcome.",
}

var emojiGuidance = map[domain.EmojiUsage]string{
	domain.EmojiNone:       "Do not use emoji.",
	domain.EmojiOccasional: "An occasional emoji is fine.",
	domain.EmojiFrequent:   "Feel free to use emoji.",
}

func systemPrompt(eff *personalization.Effective, memories []domain.LongTermMemory, reply *Reply) string {
	var b strings.Builder
	b.WriteString("You are a supportive wellbeing companion. You are not a therapist and never diagnose. ")
	b.WriteString("If the user may be in danger, encourage them to contact local emergency services.\n")

	c := eff.Communication
	for _, g := range []string{styleGuidance[c.InferredStyle], verbosityGuidance[c.Verbosity], emojiGuidance[c.EmojiUsage]} {
		if g != "" {
			b.WriteString(g)
			b.WriteByte('\n')
		}
	}
	if eff.Intent.PrimaryConcern != "" {
		fmt.Fprintf(&b, "The user most often seeks support with %s.\n", eff.Intent.PrimaryConcern)
	}
	if len(eff.Intent.Goals) > 0 {
		fmt.Fprintf(&b, "Their goals: %s.\n", strings.Join(eff.Intent.Goals, "; "))
	}
	for _, rule := range eff.Rules {
		fmt.Fprintf(&b, "Guideline: %s\n", rule.Action)
	}
	if len(memories) > 0 {
		b.WriteString("What you remember about the user:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}
	if len(reply.Suggestions) > 0 {
		b.WriteString("If it fits naturally, offer one of these exercises:\n")
		for _, iv := range reply.Suggestions {
			fmt.Fprintf(&b, "- %s: %s\n", iv.Name, iv.Description)
		}
	}
	return b.String()
}
