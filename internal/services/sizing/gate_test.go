package sizing

import (
	"errors"
	"testing"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeverageConfig() config.LeverageConfig {
	return config.LeverageConfig{
		Enabled:          true,
		MaxExtraUnits:    2,
		AllowedRegimes:   []string{"TREND_UP", "TREND_DOWN"},
		ForbiddenRegimes: []string{"CHAOS"},
		MinConfidence:    0.65,
		RequireProfit:    true,
		MinProfit:        50,
		MinLiquidity:     0.50,
		MaxDisagreement:  0.40,
	}
}

func passingInput() GateInput {
	return GateInput{
		Regime:            "TREND_UP",
		Confidence:        0.8,
		Disagreement:      0.1,
		LiquidityStrength: 0.9,
		DailyProfit:       100,
		TransitionActive:  false,
		FeatureEnabled:    true,
	}
}

func TestGateApprovesWhenAllChecksPass(t *testing.T) {
	g := NewReleverageGate(testLeverageConfig())
	res := g.Evaluate(passingInput())
	assert.True(t, res.Approved)
	assert.Empty(t, res.FailedCheck)
	assert.NoError(t, res.Denial())
}

func TestGateForbiddenRegimeAlwaysDenied(t *testing.T) {
	cfg := testLeverageConfig()
	cfg.AllowedRegimes = append(cfg.AllowedRegimes, "CHAOS_LITE")
	g := NewReleverageGate(cfg)

	in := passingInput()
	in.Regime = "CHAOS"
	in.Confidence = 1
	in.Disagreement = 0
	in.LiquidityStrength = 1
	in.DailyProfit = 1e6

	res := g.Evaluate(in)
	assert.False(t, res.Approved)
	assert.Equal(t, CheckForbiddenRegime, res.FailedCheck)
	assert.Contains(t, res.Reason, "CHAOS")
}

func TestGateEmptyWhitelistAllowsNothing(t *testing.T) {
	cfg := testLeverageConfig()
	cfg.AllowedRegimes = nil
	res := NewReleverageGate(cfg).Evaluate(passingInput())
	assert.False(t, res.Approved)
	assert.Equal(t, CheckAllowedRegime, res.FailedCheck)
}

func TestGateReportsFirstFailureInOrder(t *testing.T) {
	g := NewReleverageGate(testLeverageConfig())

	cases := []struct {
		name   string
		mutate func(*GateInput)
		want   string
	}{
		{"feature off beats everything", func(in *GateInput) {
			in.FeatureEnabled = false
			in.Regime = "CHAOS"
			in.Confidence = 0
		}, CheckFeatureEnabled},
		{"transition before confidence", func(in *GateInput) {
			in.TransitionActive = true
			in.Confidence = 0.1
		}, CheckTransition},
		{"confidence before profit", func(in *GateInput) {
			in.Confidence = 0.5
			in.DailyProfit = -10
		}, CheckConfidence},
		{"profit before liquidity", func(in *GateInput) {
			in.DailyProfit = 10
			in.LiquidityStrength = 0.1
		}, CheckProfit},
		{"liquidity before disagreement", func(in *GateInput) {
			in.LiquidityStrength = 0.49
			in.Disagreement = 0.9
		}, CheckLiquidity},
		{"disagreement last", func(in *GateInput) {
			in.Disagreement = 0.41
		}, CheckDisagreement},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := passingInput()
			tc.mutate(&in)
			res := g.Evaluate(in)
			require.False(t, res.Approved)
			assert.Equal(t, tc.want, res.FailedCheck)

			var denied *models.ValidationDenied
			require.True(t, errors.As(res.Denial(), &denied))
			assert.Equal(t, tc.want, denied.Check)
		})
	}
}

func TestGateProfitIgnoredWhenNotRequired(t *testing.T) {
	cfg := testLeverageConfig()
	cfg.RequireProfit = false
	in := passingInput()
	in.DailyProfit = -1000
	assert.True(t, NewReleverageGate(cfg).Evaluate(in).Approved)
}

func TestGateBoundariesInclusive(t *testing.T) {
	g := NewReleverageGate(testLeverageConfig())
	in := passingInput()
	in.Confidence = 0.65
	in.LiquidityStrength = 0.50
	in.Disagreement = 0.40
	in.DailyProfit = 50
	assert.True(t, g.Evaluate(in).Approved)
}

func TestGateCheckOrder(t *testing.T) {
	g := NewReleverageGate(testLeverageConfig())
	assert.Equal(t, []string{
		CheckFeatureEnabled, CheckForbiddenRegime, CheckAllowedRegime, CheckTransition,
		CheckConfidence, CheckProfit, CheckLiquidity, CheckDisagreement,
	}, g.CheckOrder())
}
