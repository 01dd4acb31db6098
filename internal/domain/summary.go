package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SummaryGenerator records how a summary's text was produced.
type SummaryGenerator string

const (
	GeneratedByLLM      SummaryGenerator = "llm"
	GeneratedByFallback SummaryGenerator = "fallback"
)

// ConversationSummary compresses one period of chat for one user. It is
// written once and never updated.
type ConversationSummary struct {
	ID               string                      `gorm:"primaryKey;size:64" json:"id"`
	UserID           string                      `gorm:"size:64;not null;uniqueIndex:idx_summary_period,priority:1" json:"userId"`
	Type             SummaryType                 `gorm:"size:16;not null;uniqueIndex:idx_summary_period,priority:2" json:"type"`
	PeriodStart      time.Time                   `gorm:"not null;uniqueIndex:idx_summary_period,priority:3" json:"periodStart"`
	PeriodEnd        time.Time                   `gorm:"not null" json:"periodEnd"`
	Summary          string                      `gorm:"type:text;not null" json:"summary"`
	Topics           datatypes.JSONSlice[string] `json:"topics"`
	Themes           datatypes.JSONSlice[string] `json:"themes"`
	Insights         datatypes.JSONSlice[string] `json:"insights"`
	ActionItems      datatypes.JSONSlice[string] `json:"actionItems"`
	MessageCount     int                         `json:"messageCount"`
	OriginalLength   int                         `json:"originalLength"`
	SummaryLength    int                         `json:"summaryLength"`
	CompressionRatio float64                     `json:"compressionRatio"`
	GeneratedBy      SummaryGenerator            `gorm:"size:16" json:"generatedBy"`
	CreatedAt        time.Time                   `json:"createdAt"`
}

func (ConversationSummary) TableName() string { return "conversation_summaries" }
