package models

import "time"

// Requests for decision HTTP endpoints. Defined in domain for consistency and reuse.

type DecisionRequest struct {
	Symbol               string    `json:"symbol" validate:"required"`
	Side                 string    `json:"side" default:"BUY" validate:"oneof=BUY SELL"`
	EntryPriceHint       float64   `json:"entry_price_hint" validate:"gte=0"`
	Regime               string    `json:"regime" validate:"required"`
	Hour                 *int      `json:"hour" validate:"omitempty,gte=0,lte=23"`
	GlobalConfidence     float64   `json:"global_confidence" validate:"gte=0,lte=1"`
	EnsembleDisagreement float64   `json:"ensemble_disagreement" validate:"gte=0,lte=1"`
	LiquidityStrength    float64   `json:"liquidity_strength" validate:"gte=0,lte=1"`
	TransitionActive     bool      `json:"transition_active"`
	DailyProfit          float64   `json:"daily_profit"`
	Time                 time.Time `json:"time"`
}

type TickRequest struct {
	Symbol string    `json:"symbol" validate:"required"`
	Price  float64   `json:"current_price" validate:"gt=0"`
	High   float64   `json:"current_high" validate:"gte=0"`
	Low    float64   `json:"current_low" validate:"gte=0"`
	Time   time.Time `json:"current_time"`
}

type TradeCloseRequest struct {
	Symbol    string    `json:"symbol" validate:"required"`
	PnL       float64   `json:"pnl"`
	EntryTime time.Time `json:"entry_time"`
	CloseTime time.Time `json:"close_time"`
}

type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}
