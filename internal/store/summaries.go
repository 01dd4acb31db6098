package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// SummaryExists reports whether a summary exists for the period.
func (s *Store) SummaryExists(ctx context.Context, userID string, t domain.SummaryType, periodStart time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.ConversationSummary{}).
		Where("user_id = ? AND type = ? AND period_start = ?", userID, t, periodStart.UTC()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check summary: %w", err)
	}
	return n > 0, nil
}

// CreateSummaryIfAbsent inserts the summary unless one already exists for the
// same (user, type, period start). It reports whether a row was written.
func (s *Store) CreateSummaryIfAbsent(ctx context.Context, cs *domain.ConversationSummary) (bool, error) {
	if cs.ID == "" {
		cs.ID = newID()
	}
	cs.PeriodStart = cs.PeriodStart.UTC()
	cs.PeriodEnd = cs.PeriodEnd.UTC()
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cs)
	if res.Error != nil {
		return false, fmt.Errorf("create summary: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListSummaries returns a user's summaries of type t, newest period first.
func (s *Store) ListSummaries(ctx context.Context, userID string, t domain.SummaryType) ([]domain.ConversationSummary, error) {
	var out []domain.ConversationSummary
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, t).
		Order("period_start DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return out, nil
}
