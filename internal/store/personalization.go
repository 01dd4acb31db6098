package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// GetPersonalization returns the user's record, or ErrNotFound.
func (s *Store) GetPersonalization(ctx context.Context, userID string) (*domain.Personalization, error) {
	var p domain.Personalization
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CreatePersonalization inserts a new record. A concurrent insert for the same
// user yields ErrVersionConflict.
func (s *Store) CreatePersonalization(ctx context.Context, p *domain.Personalization) error {
	if p.ID == "" {
		p.ID = newID()
	}
	err := s.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("create personalization for %s: %w", p.UserID, err)
	}
	return nil
}

// SavePersonalization writes p only if the stored version still equals
// expectedVersion. It returns ErrVersionConflict when another writer got
// there first and ErrNotFound when the record is gone.
func (s *Store) SavePersonalization(ctx context.Context, p *domain.Personalization, expectedVersion int) error {
	res := s.db.WithContext(ctx).
		Model(p).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(p)
	if res.Error != nil {
		return fmt.Errorf("save personalization for %s: %w", p.UserID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.Personalization{}).Where("id = ?", p.ID).Count(&n).Error; err != nil {
		return fmt.Errorf("check personalization for %s: %w", p.UserID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}
