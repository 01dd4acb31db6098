package domain

import (
	"time"
	_ "time/tzdata"

	"gorm.io/datatypes"
)

// User is the account a record belongs to. Only the fields this service
// reads are modeled.
type User struct {
	ID              string     `gorm:"primaryKey;size:64" json:"id"`
	DisplayName     string     `gorm:"size:128" json:"displayName"`
	Timezone        string     `gorm:"size:64" json:"timezone"`
	ExperienceLevel Difficulty `gorm:"size:16;default:beginner" json:"experienceLevel"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Location returns the user's timezone, or UTC when unset or unknown.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Mood is a mood check-in. Score is 0-100.
type Mood struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;index:idx_moods_user_created,priority:1" json:"userId"`
	Score     int       `gorm:"not null" json:"score"`
	Note      string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time `gorm:"not null;index:idx_moods_user_created,priority:2" json:"createdAt"`
}

func (Mood) TableName() string { return "moods" }

// Scaled returns the score on the 0-10 scale used by analysis.
func (m Mood) Scaled() float64 {
	return float64(m.Score) / 10
}

// JournalEntry is a free-text journal entry.
type JournalEntry struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;index:idx_journals_user_created,priority:1" json:"userId"`
	Title     string    `gorm:"size:256" json:"title,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	MoodScore *int      `json:"moodScore,omitempty"`
	CreatedAt time.Time `gorm:"not null;index:idx_journals_user_created,priority:2" json:"createdAt"`
}

func (JournalEntry) TableName() string { return "journal_entries" }

// Text returns title and content joined for keyword analysis.
func (j JournalEntry) Text() string {
	if j.Title == "" {
		return j.Content
	}
	return j.Title + "\n" + j.Content
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one message of a ChatSession.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is a conversation with the companion.
type ChatSession struct {
	ID            string                           `gorm:"primaryKey;size:64" json:"id"`
	UserID        string                           `gorm:"size:64;not null;index:idx_chats_user_last,priority:1" json:"userId"`
	Messages      datatypes.JSONSlice[ChatMessage] `json:"messages"`
	StartedAt     time.Time                        `gorm:"not null" json:"startedAt"`
	LastMessageAt time.Time                        `gorm:"not null;index:idx_chats_user_last,priority:2" json:"lastMessageAt"`
	CreatedAt     time.Time                        `json:"createdAt"`
	UpdatedAt     time.Time                        `json:"updatedAt"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

// UserMessages returns the messages authored by the user.
func (s ChatSession) UserMessages() []ChatMessage {
	out := make([]ChatMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// Duration returns the time between the first and last message.
func (s ChatSession) Duration() time.Duration {
	if s.LastMessageAt.Before(s.StartedAt) {
		return 0
	}
	return s.LastMessageAt.Sub(s.StartedAt)
}
