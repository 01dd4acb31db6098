package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// GetUser returns the user with id, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserLocation returns the user's time zone. Unknown users get UTC.
func (s *Store) UserLocation(ctx context.Context, id string) (*time.Location, error) {
	u, err := s.GetUser(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return time.UTC, nil
	}
	if err != nil {
		return nil, err
	}
	return u.Location(), nil
}

// UpsertUser creates or updates a user.
func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "timezone", "experience_level", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// ActiveUserIDs returns users with chat activity at or after since, ordered by id.
func (s *Store) ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("last_message_at >= ?", since.UTC()).
		Distinct().
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return ids, nil
}
