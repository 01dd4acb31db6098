package domain

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// CommunicationPreferences are the inferred communication settings.
type CommunicationPreferences struct {
	InferredStyle CommunicationStyle `json:"inferredStyle"`
	Verbosity     Verbosity          `json:"verbosity"`
	EmojiUsage    EmojiUsage         `json:"emojiUsage"`
}

// DefaultCommunication is used for users without an analysis.
func DefaultCommunication() CommunicationPreferences {
	return CommunicationPreferences{
		InferredStyle: StyleBalanced,
		Verbosity:     VerbosityModerate,
		EmojiUsage:    EmojiNone,
	}
}

// BehavioralTendency is a pattern observed across analyses, keyed by Pattern.
type BehavioralTendency struct {
	Pattern       string    `json:"pattern"`
	Type          string    `json:"type"`
	Frequency     int       `json:"frequency"`
	Confidence    float64   `json:"confidence"`
	SampleSize    int       `json:"sampleSize"`
	FirstObserved time.Time `json:"firstObserved"`
	LastObserved  time.Time `json:"lastObserved"`
}

// TimePatterns describe when the user tends to engage.
type TimePatterns struct {
	PreferredHours        []int   `json:"preferredHours"`
	PreferredDays         []int   `json:"preferredDays"`         // time.Weekday values
	AverageSessionMinutes float64 `json:"averageSessionMinutes"`
	MedianSessionMinutes  float64 `json:"medianSessionMinutes"`
	SessionsAnalyzed      int     `json:"sessionsAnalyzed"`
}

// EngagementTrend is the direction of recent engagement.
type EngagementTrend string

const (
	TrendIncreasing EngagementTrend = "increasing"
	TrendDecreasing EngagementTrend = "decreasing"
	TrendStable     EngagementTrend = "stable"
)

// EngagementMetrics summarize how often the user engages.
type EngagementMetrics struct {
	SessionsPerWeek float64         `json:"sessionsPerWeek"`
	Trend           EngagementTrend `json:"trend"`
	LastSessionAt   *time.Time      `json:"lastSessionAt,omitempty"`
}

// RulePriority orders adaptation rules.
type RulePriority string

const (
	PriorityHigh   RulePriority = "high"
	PriorityMedium RulePriority = "medium"
	PriorityLow    RulePriority = "low"
)

// AdaptationRule maps an observed condition to a companion behavior.
// Rules are keyed by Condition.
type AdaptationRule struct {
	Condition     string       `json:"condition"`
	Action        string       `json:"action"`
	Priority      RulePriority `json:"priority"`
	Source        string       `json:"source"`
	Confidence    float64      `json:"confidence"`
	Effectiveness *float64     `json:"effectiveness,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Intent is what the user appears to be using the companion for.
type Intent struct {
	PrimaryConcern InterventionType `json:"primaryConcern,omitempty"`
	Goals          []string         `json:"goals,omitempty"`
}

// QuietHours is a local-time window in which nothing should be suggested.
type QuietHours struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Contains reports whether hour falls in the window, which may wrap midnight.
func (q QuietHours) Contains(hour int) bool {
	if q.StartHour == q.EndHour {
		return false
	}
	if q.StartHour < q.EndHour {
		return hour >= q.StartHour && hour < q.EndHour
	}
	return hour >= q.StartHour || hour < q.EndHour
}

// UserOverrides are explicit user settings. Every set field wins over the
// corresponding inferred value.
type UserOverrides struct {
	Style                  *CommunicationStyle `json:"style,omitempty"`
	Verbosity              *Verbosity          `json:"verbosity,omitempty"`
	EmojiUsage             *EmojiUsage         `json:"emojiUsage,omitempty"`
	ExperienceLevel        *Difficulty         `json:"experienceLevel,omitempty"`
	PreferredInterventions []InterventionType  `json:"preferredInterventions,omitempty"`
	ExcludedInterventions  []InterventionType  `json:"excludedInterventions,omitempty"`
	QuietHours             *QuietHours         `json:"quietHours,omitempty"`
}

// IsEmpty reports whether no override is set.
func (o UserOverrides) IsEmpty() bool {
	return o.Style == nil && o.Verbosity == nil && o.EmojiUsage == nil &&
		o.ExperienceLevel == nil && len(o.PreferredInterventions) == 0 &&
		len(o.ExcludedInterventions) == 0 && o.QuietHours == nil
}

// ErrInvalidOverrides is returned when an override holds an unknown value.
var ErrInvalidOverrides = errors.New("invalid user overrides")

// Validate checks every set field.
func (o UserOverrides) Validate() error {
	if o.Style != nil && !o.Style.Valid() {
		return fmt.Errorf("%w: unknown style %q", ErrInvalidOverrides, *o.Style)
	}
	if o.Verbosity != nil && !o.Verbosity.Valid() {
		return fmt.Errorf("%w: unknown verbosity %q", ErrInvalidOverrides, *o.Verbosity)
	}
	if o.EmojiUsage != nil && !o.EmojiUsage.Valid() {
		return fmt.Errorf("%w: unknown emoji usage %q", ErrInvalidOverrides, *o.EmojiUsage)
	}
	if o.ExperienceLevel != nil && !o.ExperienceLevel.Valid() {
		return fmt.Errorf("%w: unknown experience level %q", ErrInvalidOverrides, *o.ExperienceLevel)
	}
	for _, t := range append(append([]InterventionType(nil), o.PreferredInterventions...), o.ExcludedInterventions...) {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown intervention type %q", ErrInvalidOverrides, t)
		}
	}
	if q := o.QuietHours; q != nil && (q.StartHour < 0 || q.StartHour > 23 || q.EndHour < 0 || q.EndHour > 23) {
		return fmt.Errorf("%w: quiet hours must be within 0-23", ErrInvalidOverrides)
	}
	return nil
}

// Excludes reports whether the user opted out of type t.
func (o UserOverrides) Excludes(t InterventionType) bool {
	for _, x := range o.ExcludedInterventions {
		if x == t {
			return true
		}
	}
	return false
}

// Personalization is the per-user adaptation record.
//
// Version increments whenever Communication, BehavioralTendencies,
// AdaptationRules or Intent change, and is checked on write.
type Personalization struct {
	ID                   string                                       `gorm:"primaryKey;size:64" json:"id"`
	UserID               string                                       `gorm:"size:64;not null;uniqueIndex" json:"userId"`
	Communication        datatypes.JSONType[CommunicationPreferences] `json:"communication"`
	BehavioralTendencies datatypes.JSONSlice[BehavioralTendency]      `json:"behavioralTendencies"`
	TimePatterns         datatypes.JSONType[TimePatterns]             `json:"timePatterns"`
	Engagement           datatypes.JSONType[EngagementMetrics]        `json:"engagement"`
	AdaptationRules      datatypes.JSONSlice[AdaptationRule]          `json:"adaptationRules"`
	Intent               datatypes.JSONType[Intent]                   `json:"intent"`
	UserOverrides        datatypes.JSONType[UserOverrides]            `json:"userOverrides"`
	DataQuality          float64                                      `json:"dataQuality"`
	DecayRate            float64                                      `json:"decayRate"`
	Version              int                                          `gorm:"not null;default:0" json:"version"`
	LastAnalysis         *time.Time                                   `json:"lastAnalysis,omitempty"`
	CreatedAt            time.Time                                    `json:"createdAt"`
	UpdatedAt            time.Time                                    `json:"updatedAt"`
}

func (Personalization) TableName() string { return "personalizations" }

// NewPersonalization returns an unsaved record with default preferences.
func NewPersonalization(id, userID string, decayRate float64) *Personalization {
	return &Personalization{
		ID:            id,
		UserID:        userID,
		Communication: datatypes.NewJSONType(DefaultCommunication()),
		DecayRate:     decayRate,
	}
}

// EffectiveCommunication returns the inferred preferences with overrides applied.
func (p *Personalization) EffectiveCommunication() CommunicationPreferences {
	if p == nil {
		return DefaultCommunication()
	}
	c := p.Communication.Data()
	o := p.UserOverrides.Data()
	if o.Style != nil {
		c.InferredStyle = *o.Style
	}
	if o.Verbosity != nil {
		c.Verbosity = *o.Verbosity
	}
	if o.EmojiUsage != nil {
		c.EmojiUsage = *o.EmojiUsage
	}
	return c
}

// ExperienceLevel returns the override, else the fallback.
func (p *Personalization) ExperienceLevel(fallback Difficulty) Difficulty {
	if p != nil {
		if lvl := p.UserOverrides.Data().ExperienceLevel; lvl != nil && lvl.Valid() {
			return *lvl
		}
	}
	if !fallback.Valid() {
		return DifficultyBeginner
	}
	return fallback
}
