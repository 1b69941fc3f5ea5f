package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/pkg/config"
	pkgkafka "TradeGate/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReward(t *testing.T) {
	assert.InDelta(t, 0.5, Reward(0, 100), 1e-12)
	assert.InDelta(t, 1.0, Reward(100, 100), 1e-12)
	assert.InDelta(t, 0.25, Reward(-50, 100), 1e-12)
	assert.InDelta(t, 1.0, Reward(1e6, 100), 1e-12)
	assert.InDelta(t, 0.0, Reward(-1e6, 100), 1e-12)
}

func newTradeCloseFixture(t *testing.T, batchSize int) (*orchFixture, *Learner, *memStore, *TradeCloseHandler) {
	t.Helper()
	f := newOrchFixture(t, func(c *config.Config) { c.Learning.BatchSize = batchSize })
	store := newMemStore()
	l := NewLearner(f.cfg.Learning, f.policy, store, f.audit, drepo.NoopMetrics{})
	h := NewTradeCloseHandler("closes", f.cfg.Learning.RewardPnLScale, f.orch, l, drepo.NoopMetrics{}, nil)
	return f, l, store, h
}

func TestTradeCloseBuffersOutcome(t *testing.T) {
	f, l, _, h := newTradeCloseFixture(t, 10)
	mc := testContext("RANGE")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterBase)

	_, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)

	res, err := h.Process(context.Background(), models.TradeClose{
		Symbol:    "EURUSD",
		PnL:       50,
		EntryTime: testNow,
		CloseTime: testNow.Add(10 * time.Minute),
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, l.Pending())
}

func TestTradeCloseFlushesAtBatchSize(t *testing.T) {
	f, l, store, h := newTradeCloseFixture(t, 1)
	mc := testContext("RANGE")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterBase)

	dec, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	f.policy.Unfreeze("RANGE")

	res, err := h.Process(context.Background(), models.TradeClose{Symbol: "EURUSD", PnL: 100})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, store.len())
	assert.Zero(t, l.Pending())

	post := f.policy.Stats("RANGE").Entries[models.PolicyEntryKey(dec.State.Key(), models.ActionEnterBase)]
	assert.InDelta(t, 101.0, post.Alpha, 1e-9)
	assert.Equal(t, int64(1), post.Visits)
}

func TestTradeCloseUnknownSymbol(t *testing.T) {
	_, l, _, h := newTradeCloseFixture(t, 1)
	_, err := h.Process(context.Background(), models.TradeClose{Symbol: "XAUUSD", PnL: 5})
	assert.ErrorIs(t, err, models.ErrUnknownDecision)
	assert.Zero(t, l.Pending())

	b, _ := json.Marshal(models.TradeClose{Symbol: "XAUUSD", PnL: 5})
	assert.NoError(t, h.Handle(context.Background(), b))
}

func TestTradeCloseHandleRejectsMalformed(t *testing.T) {
	_, _, _, h := newTradeCloseFixture(t, 1)
	assert.True(t, pkgkafka.IsPermanent(h.Handle(context.Background(), []byte("{"))))
	assert.Equal(t, "closes", h.Topic())
}
