package domain

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// NotificationType is the user-visible notification category.
type NotificationType string

const (
	NotificationInterventionPrompt NotificationType = "intervention_prompt"
	NotificationWeeklyReport       NotificationType = "weekly_report"
)

// PromptType discriminates NotificationMetadata.
type PromptType string

const (
	PromptEffectivenessRating PromptType = "effectiveness_rating"
	PromptOutcomeReport       PromptType = "outcome_report"
	PromptWeeklyReport        PromptType = "weekly_report"
)

// SystemActorID is the actor of notifications created by background jobs.
const SystemActorID = "system"

// RatingPrompt asks the user to rate a completed intervention.
type RatingPrompt struct {
	InterventionID   string    `json:"interventionId"`
	InterventionName string    `json:"interventionName"`
	CompletedAt      time.Time `json:"completedAt"`
}

// OutcomeReport reports the mood change around an intervention.
type OutcomeReport struct {
	InterventionID string   `json:"interventionId"`
	MoodBefore     *float64 `json:"moodBefore,omitempty"`
	MoodAfter      *float64 `json:"moodAfter,omitempty"`
}

// WeeklyReport carries a generated weekly report.
type WeeklyReport struct {
	PeriodStart  time.Time `json:"periodStart"`
	PeriodEnd    time.Time `json:"periodEnd"`
	Text         string    `json:"text"`
	AverageMood  *float64  `json:"averageMood,omitempty"`
	JournalCount int       `json:"journalCount"`
	Fallback     bool      `json:"fallback"`
}

// NotificationMetadata is a tagged union keyed by PromptType. Exactly the
// payload matching PromptType must be set.
type NotificationMetadata struct {
	PromptType PromptType     `json:"promptType"`
	Rating     *RatingPrompt  `json:"rating,omitempty"`
	Outcome    *OutcomeReport `json:"outcome,omitempty"`
	Weekly     *WeeklyReport  `json:"weekly,omitempty"`
}

// ErrInvalidMetadata is returned when metadata does not match its PromptType.
var ErrInvalidMetadata = errors.New("invalid notification metadata")

// Validate checks that exactly the payload for PromptType is present.
func (m NotificationMetadata) Validate() error {
	set := 0
	for _, present := range []bool{m.Rating != nil, m.Outcome != nil, m.Weekly != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: expected one payload, got %d", ErrInvalidMetadata, set)
	}

	var ok bool
	switch m.PromptType {
	case PromptEffectivenessRating:
		ok = m.Rating != nil && m.Rating.InterventionID != ""
	case PromptOutcomeReport:
		ok = m.Outcome != nil && m.Outcome.InterventionID != ""
	case PromptWeeklyReport:
		ok = m.Weekly != nil
	default:
		return fmt.Errorf("%w: unknown prompt type %q", ErrInvalidMetadata, m.PromptType)
	}
	if !ok {
		return fmt.Errorf("%w: payload does not match prompt type %q", ErrInvalidMetadata, m.PromptType)
	}
	return nil
}

// RefID returns the id the notification refers to, used for deduplication.
func (m NotificationMetadata) RefID() string {
	switch {
	case m.Rating != nil:
		return m.Rating.InterventionID
	case m.Outcome != nil:
		return m.Outcome.InterventionID
	case m.Weekly != nil:
		return m.Weekly.PeriodStart.UTC().Format("2006-01-02")
	}
	return ""
}

// Notification is a user-visible message.
// RefID duplicates the metadata's reference so existence checks can use an index.
type Notification struct {
	ID        string                                   `gorm:"primaryKey;size:64" json:"id"`
	UserID    string                                   `gorm:"size:64;not null;index:idx_notifications_lookup,priority:1" json:"userId"`
	ActorID   string                                   `gorm:"size:64;not null" json:"actorId"`
	Type      NotificationType                         `gorm:"size:32;not null;index:idx_notifications_lookup,priority:2" json:"type"`
	RefID     string                                   `gorm:"size:64;index:idx_notifications_lookup,priority:3" json:"refId"`
	Title     string                                   `gorm:"size:256" json:"title"`
	Message   string                                   `gorm:"type:text" json:"message"`
	Metadata  datatypes.JSONType[NotificationMetadata] `json:"metadata"`
	Read      bool                                     `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time                                `gorm:"not null;index:idx_notifications_lookup,priority:4" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
