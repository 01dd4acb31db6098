package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// EraseUserData deletes every record owned by userID in one transaction and
// returns the number of rows removed per table.
func (s *Store) EraseUserData(ctx context.Context, userID string) (map[string]int64, error) {
	models := []interface{ TableName() string }{
		&domain.Mood{},
		&domain.JournalEntry{},
		&domain.ChatSession{},
		&domain.InterventionProgress{},
		&domain.Personalization{},
		&domain.ConversationSummary{},
		&domain.LongTermMemory{},
		&domain.Notification{},
	}

	deleted := make(map[string]int64, len(models)+1)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range models {
			res := tx.Where("user_id = ?", userID).Delete(m)
			if res.Error != nil {
				return fmt.Errorf("erase %s: %w", m.TableName(), res.Error)
			}
			deleted[m.TableName()] = res.RowsAffected
		}
		res := tx.Where("id = ?", userID).Delete(&domain.User{})
		if res.Error != nil {
			return fmt.Errorf("erase users: %w", res.Error)
		}
		deleted[domain.User{}.TableName()] = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("erased user data", zap.String("user_id", userID), zap.Any("deleted", deleted))
	return deleted, nil
}
