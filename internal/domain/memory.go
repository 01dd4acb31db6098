package domain

import (
	"time"

	"gorm.io/datatypes"
)

// LongTermMemory is an atomic fact remembered about a user.
// Importance ranges from 1 to 10.
type LongTermMemory struct {
	ID         string                      `gorm:"primaryKey;size:64" json:"id"`
	UserID     string                      `gorm:"size:64;not null;index:idx_memories_user_created,priority:1" json:"userId"`
	Type       MemoryType                  `gorm:"size:32;not null;index" json:"type"`
	Content    string                      `gorm:"type:text;not null" json:"content"`
	Importance int                         `gorm:"not null;default:5" json:"importance"`
	Tags       datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt  time.Time                   `gorm:"not null;index:idx_memories_user_created,priority:2" json:"createdAt"`
}

func (LongTermMemory) TableName() string { return "long_term_memories" }
