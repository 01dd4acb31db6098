package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// MoodsBetween returns a user's moods created in [from, to], oldest first.
func (s *Store) MoodsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Mood, error) {
	var out []domain.Mood
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, from.UTC(), to.UTC()).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	return out, nil
}

// JournalsBetween returns a user's journal entries created in [from, to], oldest first.
func (s *Store) JournalsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.JournalEntry, error) {
	var out []domain.JournalEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, from.UTC(), to.UTC()).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return out, nil
}

// ChatSessionsBetween returns sessions whose last message falls in [from, to],
// oldest first.
func (s *Store) ChatSessionsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND last_message_at >= ? AND last_message_at <= ?", userID, from.UTC(), to.UTC()).
		Order("started_at").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	return out, nil
}

// RecentChatMessages returns up to limit of the user's latest messages,
// oldest first.
func (s *Store) RecentChatMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	var sessions []domain.ChatSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_message_at DESC").
		Limit(3).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list recent chat sessions: %w", err)
	}

	var msgs []domain.ChatMessage
	for i := len(sessions) - 1; i >= 0; i-- {
		msgs = append(msgs, sessions[i].Messages...)
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// CreateMood stores a mood check-in.
func (s *Store) CreateMood(ctx context.Context, m *domain.Mood) error {
	if m.ID == "" {
		m.ID = newID()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create mood: %w", err)
	}
	return nil
}

// CreateJournal stores a journal entry.
func (s *Store) CreateJournal(ctx context.Context, j *domain.JournalEntry) error {
	if j.ID == "" {
		j.ID = newID()
	}
	j.CreatedAt = j.CreatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(j).Error; err != nil {
		return fmt.Errorf("create journal entry: %w", err)
	}
	return nil
}

// SaveChatSession creates or replaces a chat session.
func (s *Store) SaveChatSession(ctx context.Context, cs *domain.ChatSession) error {
	if cs.ID == "" {
		cs.ID = newID()
	}
	cs.StartedAt = cs.StartedAt.UTC()
	cs.LastMessageAt = cs.LastMessageAt.UTC()
	if err := s.db.WithContext(ctx).Save(cs).Error; err != nil {
		return fmt.Errorf("save chat session: %w", err)
	}
	return nil
}
