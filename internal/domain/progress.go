package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InterventionProgress tracks one user's work through one catalog
// intervention. There is one record per (user, intervention id); a
// re-attempt reuses it and increments Attempts.
//
// RatedCompletions counts completions whose rating has been folded into
// AverageEffectiveness.
type InterventionProgress struct {
	ID                   string                   `gorm:"primaryKey;size:64" json:"id"`
	UserID               string                   `gorm:"size:64;not null;uniqueIndex:idx_progress_user_intervention,priority:1;index:idx_progress_user_type,priority:1" json:"userId"`
	InterventionID       string                   `gorm:"size:64;not null;uniqueIndex:idx_progress_user_intervention,priority:2" json:"interventionId"`
	InterventionType     InterventionType         `gorm:"size:32;not null;index:idx_progress_user_type,priority:2" json:"interventionType"`
	InterventionName     string                   `gorm:"size:128" json:"interventionName"`
	Status               ProgressStatus           `gorm:"size:16;not null;index" json:"status"`
	CurrentStep          int                      `json:"currentStep"`
	TotalSteps           int                      `json:"totalSteps"`
	CompletedSteps       datatypes.JSONSlice[int] `json:"completedSteps"`
	EffectivenessRating  *int                     `json:"effectivenessRating,omitempty"`
	Attempts             int                      `gorm:"not null;default:1" json:"attempts"`
	RatedCompletions     int                      `gorm:"not null;default:0" json:"ratedCompletions"`
	AverageEffectiveness float64                  `gorm:"not null;default:0" json:"averageEffectiveness"`
	StartedAt            time.Time                `gorm:"not null" json:"startedAt"`
	LastActiveAt         time.Time                `gorm:"not null" json:"lastActiveAt"`
	CompletedAt          *time.Time               `gorm:"index" json:"completedAt,omitempty"`
	DaysSinceStart       int                      `json:"daysSinceStart"`
	CreatedAt            time.Time                `json:"createdAt"`
	UpdatedAt            time.Time                `json:"updatedAt"`
}

func (InterventionProgress) TableName() string { return "intervention_progress" }

// BeforeSave recomputes DaysSinceStart on every write.
func (p *InterventionProgress) BeforeSave(*gorm.DB) error {
	p.RecomputeDaysSinceStart()
	return nil
}

// RecomputeDaysSinceStart sets DaysSinceStart from StartedAt to LastActiveAt.
func (p *InterventionProgress) RecomputeDaysSinceStart() {
	if p.StartedAt.IsZero() || p.LastActiveAt.Before(p.StartedAt) {
		p.DaysSinceStart = 0
		return
	}
	p.DaysSinceStart = int(p.LastActiveAt.Sub(p.StartedAt).Hours() / 24)
}

// IsCompleted reports whether the record is completed.
func (p *InterventionProgress) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// EffectiveRating returns the rating used for analysis: the current rating
// when set, else the running average once any completion was rated.
func (p *InterventionProgress) EffectiveRating() (float64, bool) {
	if p.EffectivenessRating != nil {
		return float64(*p.EffectivenessRating), true
	}
	if p.RatedCompletions > 0 {
		return p.AverageEffectiveness, true
	}
	return 0, false
}
