package sizing

import (
	"fmt"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/config"
)

// Check names, in evaluation order.
const (
	CheckFeatureEnabled  = "feature_enabled"
	CheckForbiddenRegime = "forbidden_regime"
	CheckAllowedRegime   = "allowed_regime"
	CheckTransition      = "transition_active"
	CheckConfidence      = "min_confidence"
	CheckProfit          = "min_profit"
	CheckLiquidity       = "min_liquidity"
	CheckDisagreement    = "max_disagreement"
)

// GateInput is everything the re-leverage gate looks at.
type GateInput struct {
	Regime            string
	Confidence        float64
	Disagreement      float64
	LiquidityStrength float64
	DailyProfit       float64
	TransitionActive  bool
	FeatureEnabled    bool
}

// GateResult carries the verdict and, on denial, the first failing check.
type GateResult struct {
	Approved    bool
	Reason      string
	FailedCheck string
}

// Denial converts a failed result into a ValidationDenied error.
func (r GateResult) Denial() error {
	if r.Approved {
		return nil
	}
	return &models.ValidationDenied{Check: r.FailedCheck, Reason: r.Reason}
}

type predicate struct {
	name string
	fn   func(GateInput) (bool, string)
}

// ReleverageGate validates an additional leveraged allocation.
// It is immutable after construction and safe for concurrent use.
type ReleverageGate struct {
	forbidden map[string]struct{}
	allowed   map[string]struct{}
	checks    []predicate
}

// NewReleverageGate builds the ordered predicate chain from configuration.
func NewReleverageGate(cfg config.LeverageConfig) *ReleverageGate {
	g := &ReleverageGate{
		forbidden: toSet(cfg.ForbiddenRegimes),
		allowed:   toSet(cfg.AllowedRegimes),
	}
	g.checks = []predicate{
		{CheckFeatureEnabled, func(in GateInput) (bool, string) {
			return in.FeatureEnabled, "leverage feature disabled"
		}},
		{CheckForbiddenRegime, func(in GateInput) (bool, string) {
			_, bad := g.forbidden[in.Regime]
			return !bad, fmt.Sprintf("regime %s is forbidden", in.Regime)
		}},
		{CheckAllowedRegime, func(in GateInput) (bool, string) {
			_, ok := g.allowed[in.Regime]
			return ok, fmt.Sprintf("regime %s not in allowed list", in.Regime)
		}},
		{CheckTransition, func(in GateInput) (bool, string) {
			return !in.TransitionActive, "regime transition active"
		}},
		{CheckConfidence, func(in GateInput) (bool, string) {
			return in.Confidence >= cfg.MinConfidence,
				fmt.Sprintf("confidence %.3f < %.3f", in.Confidence, cfg.MinConfidence)
		}},
		{CheckProfit, func(in GateInput) (bool, string) {
			if !cfg.RequireProfit {
				return true, ""
			}
			return in.DailyProfit >= cfg.MinProfit,
				fmt.Sprintf("daily profit %.2f < %.2f", in.DailyProfit, cfg.MinProfit)
		}},
		{CheckLiquidity, func(in GateInput) (bool, string) {
			return in.LiquidityStrength >= cfg.MinLiquidity,
				fmt.Sprintf("liquidity %.3f < %.3f", in.LiquidityStrength, cfg.MinLiquidity)
		}},
		{CheckDisagreement, func(in GateInput) (bool, string) {
			return in.Disagreement <= cfg.MaxDisagreement,
				fmt.Sprintf("disagreement %.3f > %.3f", in.Disagreement, cfg.MaxDisagreement)
		}},
	}
	return g
}

// Evaluate runs the checks in order and stops at the first failure.
func (g *ReleverageGate) Evaluate(in GateInput) GateResult {
	for _, c := range g.checks {
		if ok, reason := c.fn(in); !ok {
			return GateResult{Approved: false, Reason: reason, FailedCheck: c.name}
		}
	}
	return GateResult{Approved: true, Reason: "approved"}
}

// CheckOrder returns the check names in evaluation order.
func (g *ReleverageGate) CheckOrder() []string {
	out := make([]string, len(g.checks))
	for i, c := range g.checks {
		out[i] = c.name
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}
