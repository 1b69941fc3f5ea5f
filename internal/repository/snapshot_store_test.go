package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheSnapshotStore(mc)

	snap := &models.PolicySnapshot{
		ID:         "s-1",
		Regime:     "TREND_UP",
		CapturedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		Table:      []byte(`{"k#HOLD":{"alpha":2,"beta":1,"visits":1,"cumulative_reward":1}}`),
		Metadata:   map[string]string{"reason": "pre_flush"},
	}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Regime, got.Regime)
	assert.True(t, snap.CapturedAt.Equal(got.CapturedAt))
	assert.JSONEq(t, string(snap.Table), string(got.Table))
	assert.Equal(t, "pre_flush", got.Metadata["reason"])

	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Load(ctx, "s-1")
	assert.True(t, errors.Is(err, models.ErrSnapshotNotFound))
}

func TestCacheSnapshotStoreRejectsMissingID(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	assert.Error(t, NewCacheSnapshotStore(mc).Save(context.Background(), &models.PolicySnapshot{}))
}
