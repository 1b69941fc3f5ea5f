package models

import (
	"fmt"
	"time"
)

// Action is a coarse trading posture chosen by the bandit policy.
type Action string

const (
	ActionHold           Action = "HOLD"
	ActionEnterBase      Action = "ENTER_BASE"
	ActionEnterReduced   Action = "ENTER_REDUCED"
	ActionEnterLeveraged Action = "ENTER_LEVERAGED"
)

// Actions lists every posture in ordinal order. Ties are broken by this order.
var Actions = []Action{ActionHold, ActionEnterBase, ActionEnterReduced, ActionEnterLeveraged}

// IsValid reports whether a is a known posture.
func (a Action) IsValid() bool {
	switch a {
	case ActionHold, ActionEnterBase, ActionEnterReduced, ActionEnterLeveraged:
		return true
	default:
		return false
	}
}

// Band is a discretized level of a continuous context input.
type Band string

const (
	BandLow  Band = "LOW"
	BandMed  Band = "MED"
	BandHigh Band = "HIGH"
)

// Side is the direction of a proposal or position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Direction returns +1 for long and -1 for short.
func (s Side) Direction() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// DecisionState is the discretized context used as a policy lookup key.
type DecisionState struct {
	Regime           string `json:"regime"`
	TimeBucket       string `json:"time_bucket"`
	ConfidenceBand   Band   `json:"confidence_band"`
	DisagreementBand Band   `json:"disagreement_band"`
}

// Key returns the deterministic hash of the state.
func (s DecisionState) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", s.Regime, s.TimeBucket, s.ConfidenceBand, s.DisagreementBand)
}

// Proposal is a directional trade proposal from upstream signal generators.
type Proposal struct {
	Symbol         string  `json:"symbol"`
	Side           Side    `json:"side"`
	EntryPriceHint float64 `json:"entry_price_hint"`
}

// MarketContext carries the regime and confidence inputs for one proposal.
type MarketContext struct {
	Regime               string    `json:"regime"`
	Hour                 int       `json:"hour"`
	GlobalConfidence     float64   `json:"global_confidence"`
	EnsembleDisagreement float64   `json:"ensemble_disagreement"`
	LiquidityStrength    float64   `json:"liquidity_strength"`
	TransitionActive     bool      `json:"transition_active"`
	DailyProfit          float64   `json:"daily_profit"`
	Time                 time.Time `json:"time"`
}

// SizingDecision is the orchestrator output for one proposal.
type SizingDecision struct {
	Symbol         string        `json:"symbol"`
	Action         Action        `json:"action"`
	SelectedAction Action        `json:"selected_action"`
	FinalUnits     int           `json:"final_units"`
	BaseUnits      int           `json:"base_units"`
	ExtraUnits     int           `json:"extra_units"`
	DenyReason     *string       `json:"deny_reason"`
	State          DecisionState `json:"state"`
	DecidedAt      time.Time     `json:"decided_at"`
	ScalpOpened    bool          `json:"scalp_opened"`
}

// IsTrade reports whether the decision results in a position.
func (d SizingDecision) IsTrade() bool {
	return d.Action != ActionHold && d.FinalUnits > 0
}

// CapitalState records the sizing inputs and result of one decision.
type CapitalState struct {
	Symbol         string    `json:"symbol"`
	Capital        float64   `json:"capital"`
	MarginPerUnit  float64   `json:"margin_per_unit"`
	BaseUnits      int       `json:"base_units"`
	ExtraUnits     int       `json:"extra_units"`
	FinalUnits     int       `json:"final_units"`
	ApprovalReason string    `json:"approval_reason"`
	RecordedAt     time.Time `json:"recorded_at"`
}
