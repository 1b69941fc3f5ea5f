package usecase

import (
	"context"
	"testing"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/internal/services/bandit"
	"TradeGate/internal/services/scalp"
	"TradeGate/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orchFixture struct {
	cfg    *config.Config
	policy *bandit.Policy
	scalps *scalp.Manager
	audit  *recordingAudit
	orch   *Orchestrator
}

func newOrchFixture(t *testing.T, mutate func(*config.Config)) *orchFixture {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	f := &orchFixture{
		cfg:    cfg,
		policy: bandit.NewPolicy(cfg.Learning),
		scalps: scalp.NewManager(cfg.Scalp),
		audit:  &recordingAudit{},
	}
	orch, err := NewOrchestrator(cfg, f.policy, f.scalps, f.audit, drepo.NoopMetrics{})
	require.NoError(t, err)
	f.orch = orch
	return f
}

var eurusdBuy = models.Proposal{Symbol: "EURUSD", Side: models.SideBuy, EntryPriceHint: 1.0850}

func TestDecideHold(t *testing.T) {
	f := newOrchFixture(t, nil)
	mc := testContext("TREND_UP")
	f.policy.Freeze("TREND_UP") // empty frozen table ties to HOLD

	dec, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, dec.Action)
	assert.Zero(t, dec.FinalUnits)
	assert.False(t, dec.IsTrade())

	_, ok := f.orch.TakeDecision("EURUSD")
	assert.False(t, ok)
	require.Len(t, f.orch.CapitalHistory(0), 1)
	assert.Equal(t, "hold", f.orch.CapitalHistory(0)[0].ApprovalReason)
}

func TestDecideBaseAndReduced(t *testing.T) {
	f := newOrchFixture(t, nil)
	mc := testContext("RANGE")

	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterBase)
	dec, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	assert.Equal(t, models.ActionEnterBase, dec.Action)
	assert.Equal(t, 10, dec.BaseUnits)
	assert.Equal(t, 10, dec.FinalUnits)
	assert.Nil(t, dec.DenyReason)

	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterReduced)
	dec, err = f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	assert.Equal(t, models.ActionEnterReduced, dec.Action)
	assert.Equal(t, 5, dec.FinalUnits)

	rec, ok := f.orch.TakeDecision("EURUSD")
	require.True(t, ok)
	assert.Equal(t, models.ActionEnterReduced, rec.Action)
	assert.Equal(t, dec.State.Key(), rec.StateKey)
	assert.Equal(t, "RANGE", rec.Regime)

	_, ok = f.orch.TakeDecision("EURUSD")
	assert.False(t, ok, "ledger entry is consumed")
}

func TestDecideLeveragedApproved(t *testing.T) {
	f := newOrchFixture(t, nil)
	mc := testContext("TREND_UP")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterLeveraged)

	dec, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	assert.Equal(t, models.ActionEnterLeveraged, dec.Action)
	assert.Equal(t, 10, dec.BaseUnits)
	assert.Equal(t, 1, dec.ExtraUnits)
	assert.Equal(t, 11, dec.FinalUnits)
	assert.True(t, dec.ScalpOpened)
	assert.Nil(t, dec.DenyReason)

	pos, err := f.scalps.Position("EURUSD")
	require.NoError(t, err)
	assert.InDelta(t, 1.0930, pos.TPPrice, 1e-9)
	assert.InDelta(t, 1.0810, pos.SLPrice, 1e-9)
	assert.Equal(t, 1, pos.ExtraUnits)

	assert.Len(t, f.audit.byKind(models.AuditGate), 1)
	assert.Len(t, f.audit.byKind(models.AuditDecision), 1)
}

func TestDecideLeveragedDeniedDowngrades(t *testing.T) {
	f := newOrchFixture(t, nil)
	mc := testContext("CRASH")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterLeveraged)

	dec, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	assert.Equal(t, models.ActionEnterBase, dec.Action)
	assert.Equal(t, models.ActionEnterLeveraged, dec.SelectedAction)
	assert.Equal(t, 10, dec.FinalUnits)
	assert.Zero(t, dec.ExtraUnits)
	require.NotNil(t, dec.DenyReason)
	assert.Contains(t, *dec.DenyReason, "forbidden")

	_, err = f.scalps.Position("EURUSD")
	assert.ErrorIs(t, err, models.ErrNoPosition)

	gate := f.audit.byKind(models.AuditGate)
	require.Len(t, gate, 1)
	assert.Equal(t, "forbidden_regime", gate[0].Payload["failed_check"])
}

func TestDecideLeverageDisabled(t *testing.T) {
	f := newOrchFixture(t, func(c *config.Config) { c.Leverage.Enabled = false })
	mc := testContext("TREND_UP")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterLeveraged)

	dec, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	assert.Equal(t, models.ActionEnterBase, dec.Action)
	require.NotNil(t, dec.DenyReason)
	assert.Equal(t, "leverage feature disabled", *dec.DenyReason)
}

func TestDecideScalpAlreadyOpenDowngrades(t *testing.T) {
	f := newOrchFixture(t, nil)
	mc := testContext("TREND_UP")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterLeveraged)

	_, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)

	mc.Time = mc.Time.Add(time.Minute)
	dec, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	assert.Equal(t, models.ActionEnterBase, dec.Action)
	require.NotNil(t, dec.DenyReason)
	assert.Equal(t, "scalp already open", *dec.DenyReason)
	assert.Equal(t, 10, dec.FinalUnits)
}

func TestDecideCooldownDowngrades(t *testing.T) {
	f := newOrchFixture(t, func(c *config.Config) { c.Scalp.ProtectProfit = true })
	mc := testContext("TREND_UP")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterLeveraged)

	_, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	closed, _, err := f.scalps.Update(models.Tick{Symbol: "EURUSD", Price: 1.0931, Time: mc.Time.Add(time.Minute)})
	require.NoError(t, err)
	require.True(t, closed)

	mc.Time = mc.Time.Add(2 * time.Minute)
	dec, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	require.NotNil(t, dec.DenyReason)
	assert.Equal(t, "scalp cooldown active", *dec.DenyReason)
}

func TestDecideWithoutEntryPriceDowngrades(t *testing.T) {
	f := newOrchFixture(t, nil)
	mc := testContext("TREND_UP")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterLeveraged)

	dec, err := f.orch.Decide(context.Background(), models.Proposal{Symbol: "EURUSD", Side: models.SideBuy}, mc)
	require.NoError(t, err)
	assert.Equal(t, models.ActionEnterBase, dec.Action)
	assert.False(t, dec.ScalpOpened)
}

func TestDecideRejectsEmptyInput(t *testing.T) {
	f := newOrchFixture(t, nil)
	_, err := f.orch.Decide(context.Background(), models.Proposal{}, testContext("TREND_UP"))
	assert.Error(t, err)
	_, err = f.orch.Decide(context.Background(), eurusdBuy, models.MarketContext{})
	assert.Error(t, err)
}

func TestNewOrchestratorRejectsBadSizing(t *testing.T) {
	cfg := testConfig()
	cfg.Sizing.MarginPerUnit = 0
	_, err := NewOrchestrator(cfg, bandit.NewPolicy(cfg.Learning), scalp.NewManager(cfg.Scalp), drepo.NoopAudit{}, drepo.NoopMetrics{})
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))
}

func TestCapitalHistoryBounded(t *testing.T) {
	f := newOrchFixture(t, func(c *config.Config) { c.Sizing.HistorySize = 3 })
	mc := testContext("RANGE")
	forceAction(t, f.policy, f.cfg, mc, models.ActionEnterBase)

	for i := 0; i < 5; i++ {
		mc.Time = testNow.Add(time.Duration(i) * time.Second)
		_, err := f.orch.Decide(context.Background(), eurusdBuy, mc)
		require.NoError(t, err)
	}
	h := f.orch.CapitalHistory(0)
	require.Len(t, h, 3)
	assert.Equal(t, testNow.Add(2*time.Second), h[0].RecordedAt)
	assert.Equal(t, 10000.0, h[2].Capital)
	assert.Len(t, f.orch.CapitalHistory(2), 2)
}

func TestDecideStampsClockWhenContextTimeMissing(t *testing.T) {
	cfg := testConfig()
	policy := bandit.NewPolicy(cfg.Learning)
	fixed := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	orch, err := NewOrchestrator(cfg, policy, scalp.NewManager(cfg.Scalp), drepo.NoopAudit{}, drepo.NoopMetrics{},
		WithOrchestratorClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	mc := testContext("RANGE")
	mc.Time = time.Time{}
	forceAction(t, policy, cfg, mc, models.ActionEnterBase)

	dec, err := orch.Decide(context.Background(), eurusdBuy, mc)
	require.NoError(t, err)
	assert.Equal(t, fixed, dec.DecidedAt)

	rec, ok := orch.TakeDecision("EURUSD")
	require.True(t, ok)
	assert.Equal(t, fixed, rec.DecidedAt)
}
