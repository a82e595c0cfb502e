package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecogen/ecogen/backend/internal/domain/providers"
)

func TestMemoryAdapter_SetGet(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryAdapter(8)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, "facilities:count::eco city", []byte("13"), 120))

	got, err := cache.Get(ctx, "facilities:count::eco city")
	require.NoError(t, err)
	assert.Equal(t, []byte("13"), got)

	exists, err := cache.Exists(ctx, "facilities:count::eco city")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryAdapter_MissAndDelete(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryAdapter(8)
	require.NoError(t, err)

	_, err = cache.Get(ctx, "absent")
	assert.True(t, errors.Is(err, providers.ErrCacheMiss))

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, cache.Delete(ctx, "k"))

	_, err = cache.Get(ctx, "k")
	assert.True(t, errors.Is(err, providers.ErrCacheMiss))
}

func TestMemoryAdapter_Expiry(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryAdapter(8)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), 120))

	now = now.Add(119 * time.Second)
	_, err = cache.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	exists, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = cache.Get(ctx, "k")
	assert.True(t, errors.Is(err, providers.ErrCacheMiss))
}

func TestMemoryAdapter_Eviction(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryAdapter(2)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, cache.Set(ctx, "c", []byte("3"), 0))

	_, err = cache.Get(ctx, "a")
	assert.True(t, errors.Is(err, providers.ErrCacheMiss))
	_, err = cache.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryAdapter_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryAdapter(2)
	require.NoError(t, err)

	value := []byte("abc")
	require.NoError(t, cache.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'y'

	again, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}
