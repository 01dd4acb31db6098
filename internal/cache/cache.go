// Package cache provides a small key/value cache with expiry, backed by
// Redis or by process memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/config"
)

// Cache stores byte values with a time-to-live. A zero ttl means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// New returns a RedisCache when cfg.Addr is set and a MemoryCache otherwise.
func New(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Addr == "" {
		logger.Info("redis address not set, using in-memory cache")
		return NewMemoryCache(), nil
	}
	c, err := NewRedisCache(ctx, cfg, "companiond:")
	if err != nil {
		return nil, err
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return c, nil
}

// GetJSON decodes the value at key into v. It reports false on a miss.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}
