package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// CreateMemory stores a long-term memory.
func (s *Store) CreateMemory(ctx context.Context, m *domain.LongTermMemory) error {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create memory: %w", err)
	}
	return nil
}

// ListMemories returns a user's memories created at or after since, newest
// first. A zero since returns every memory.
func (s *Store) ListMemories(ctx context.Context, userID string, since time.Time) ([]domain.LongTermMemory, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	var out []domain.LongTermMemory
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return out, nil
}

// TopMemories returns up to limit memories ordered by importance, then recency.
func (s *Store) TopMemories(ctx context.Context, userID string, limit int) ([]domain.LongTermMemory, error) {
	var out []domain.LongTermMemory
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("importance DESC, created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list top memories: %w", err)
	}
	return out, nil
}

// MemoryMentionSince reports whether a memory created at or after since
// mentions term in its content or tags, case-insensitively.
func (s *Store) MemoryMentionSince(ctx context.Context, userID, term string, since time.Time) (bool, error) {
	mems, err := s.ListMemories(ctx, userID, since)
	if err != nil {
		return false, err
	}
	term = strings.ToLower(term)
	for _, m := range mems {
		if strings.Contains(strings.ToLower(m.Content), term) {
			return true, nil
		}
		for _, tag := range m.Tags {
			if strings.Contains(strings.ToLower(tag), term) {
				return true, nil
			}
		}
	}
	return false, nil
}
