package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// GetProgress returns the record for (userID, interventionID), or ErrNotFound.
func (s *Store) GetProgress(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error) {
	var p domain.InterventionProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND intervention_id = ?", userID, interventionID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// SaveProgress creates or updates a progress record.
func (s *Store) SaveProgress(ctx context.Context, p *domain.InterventionProgress) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.StartedAt = p.StartedAt.UTC()
	p.LastActiveAt = p.LastActiveAt.UTC()
	if p.CompletedAt != nil {
		t := p.CompletedAt.UTC()
		p.CompletedAt = &t
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save progress %s/%s: %w", p.UserID, p.InterventionID, err)
	}
	return nil
}

// ListProgress returns a user's records active at or after since. A zero
// since returns every record.
func (s *Store) ListProgress(ctx context.Context, userID string, since time.Time) ([]domain.InterventionProgress, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !since.IsZero() {
		q = q.Where("last_active_at >= ?", since.UTC())
	}
	var out []domain.InterventionProgress
	if err := q.Order("started_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return out, nil
}

// LatestCompletedProgress returns the most recently completed record for
// (userID, interventionID), or ErrNotFound.
func (s *Store) LatestCompletedProgress(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error) {
	var p domain.InterventionProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND intervention_id = ? AND status = ?", userID, interventionID, domain.StatusCompleted).
		Order("completed_at DESC").
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CompletedUnratedBetween returns every user's records completed in
// [from, to] that have no current rating.
func (s *Store) CompletedUnratedBetween(ctx context.Context, from, to time.Time) ([]domain.InterventionProgress, error) {
	var out []domain.InterventionProgress
	err := s.db.WithContext(ctx).
		Where("status = ? AND effectiveness_rating IS NULL AND completed_at >= ? AND completed_at <= ?",
			domain.StatusCompleted, from.UTC(), to.UTC()).
		Order("user_id, completed_at").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list unrated completions: %w", err)
	}
	return out, nil
}

// InterventionActivitySince reports whether the user started or completed an
// intervention of type t at or after since.
func (s *Store) InterventionActivitySince(ctx context.Context, userID string, t domain.InterventionType, since time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.InterventionProgress{}).
		Where("user_id = ? AND intervention_type = ?", userID, t).
		Where("(started_at >= ? OR completed_at >= ?)", since.UTC(), since.UTC()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count intervention activity: %w", err)
	}
	return n > 0, nil
}

// EffectivenessByIntervention maps intervention id to the user's average
// effectiveness, for interventions with at least one rated completion.
func (s *Store) EffectivenessByIntervention(ctx context.Context, userID string) (map[string]float64, error) {
	var rows []domain.InterventionProgress
	err := s.db.WithContext(ctx).
		Select("intervention_id", "average_effectiveness").
		Where("user_id = ? AND rated_completions > 0", userID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load effectiveness: %w", err)
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.InterventionID] = r.AverageEffectiveness
	}
	return out, nil
}
