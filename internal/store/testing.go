package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/config"
)

// NewTestStore opens a migrated in-memory SQLite store private to tb.
func NewTestStore(tb testing.TB) *Store {
	tb.Helper()
	cfg := config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      config.Secret(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())),
		LogLevel: "silent",
	}
	s, err := Open(cfg, zap.NewNop())
	if err != nil {
		tb.Fatalf("open test store: %v", err)
	}
	tb.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		tb.Fatalf("migrate test store: %v", err)
	}
	return s
}
