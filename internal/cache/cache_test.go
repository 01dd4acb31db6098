package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/config"
)

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("value"), time.Minute))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	exists, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Delete(ctx, key))
	exists, err = c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, SetJSON(ctx, c, key, payload{Name: "calm"}, time.Minute))
	var p payload
	ok, err = GetJSON(ctx, c, key, &p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "calm", p.Name)
	require.NoError(t, c.Delete(ctx, key))
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache())
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))

	clock = clock.Add(59 * time.Minute)
	ok, _ := c.Exists(ctx, "k")
	assert.True(t, ok)

	clock = clock.Add(time.Minute)
	ok, _ = c.Exists(ctx, "k")
	assert.False(t, ok)

	clock = clock.AddDate(1, 0, 0)
	ok, _ = c.Exists(ctx, "forever")
	assert.True(t, ok)
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	v := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", v, 0))
	v[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}

func TestNew_WithoutAddrUsesMemory(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{}, zap.NewNop())
	require.NoError(t, err)
	_, ok := c.(*MemoryCache)
	assert.True(t, ok)

	_, err = New(context.Background(), config.RedisConfig{}, nil)
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := NewRedisCache(context.Background(), config.RedisConfig{Addr: addr}, "companiond-test:")
	require.NoError(t, err)
	defer c.Close()

	exerciseCache(t, c)
}
