package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))
	require.NoError(t, mc.Set(ctx, "obj", payload{Name: "a", Score: 0.5}, 0))

	var s string
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)

	var p payload
	require.NoError(t, mc.Get(ctx, "obj", &p))
	assert.Equal(t, payload{Name: "a", Score: 0.5}, p)

	require.NoError(t, mc.Delete(ctx, "raw"))
	assert.True(t, errors.Is(mc.Get(ctx, "raw", &s), ErrCacheMiss))
}

func TestMemoryCacheZeroExpirationNeverExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", 0))
	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.Equal(t, 2, mc.Len())
	assert.True(t, errors.Is(mc.Get(ctx, "b", &s), ErrCacheMiss))
	assert.NoError(t, mc.Get(ctx, "a", &s))
}

func TestLayeredCacheFillsFromBacking(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryCache()
	lc := NewLayeredCache(backing)
	defer lc.Close()

	require.NoError(t, backing.Set(ctx, "k", payload{Name: "x", Score: 1}, 0))

	var p payload
	require.NoError(t, lc.Get(ctx, "k", &p))
	assert.Equal(t, "x", p.Name)

	// served from L1 after the backing copy is gone
	require.NoError(t, backing.Delete(ctx, "k"))
	p = payload{}
	require.NoError(t, lc.Get(ctx, "k", &p))
	assert.Equal(t, "x", p.Name)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.True(t, errors.Is(lc.Get(ctx, "k", &p), ErrCacheMiss))
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "snap:abc", GenerateKey("snap", "abc"))
	assert.Equal(t, "abc", GenerateKey("", "abc"))
}

func TestMemoryCacheOverwriteRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(1))
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return clock }

	require.NoError(t, mc.Set(ctx, "k", "old", time.Second))
	clock = clock.Add(900 * time.Millisecond)
	require.NoError(t, mc.Set(ctx, "k", "new", time.Second))
	clock = clock.Add(900 * time.Millisecond)

	var s string
	require.NoError(t, mc.Get(ctx, "k", &s))
	assert.Equal(t, "new", s)
	assert.Equal(t, 1, mc.Len())

	clock = clock.Add(time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}
