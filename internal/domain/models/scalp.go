package models

import "time"

// ScalpStatus is the lifecycle state of a scalp position.
type ScalpStatus string

const (
	ScalpOpen          ScalpStatus = "OPEN"
	ScalpClosedTP      ScalpStatus = "CLOSED_TP"
	ScalpClosedSL      ScalpStatus = "CLOSED_SL"
	ScalpClosedTimeout ScalpStatus = "CLOSED_TIMEOUT"
)

// ScalpPosition is the leveraged extra allocation of one symbol.
type ScalpPosition struct {
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	EntryPrice float64     `json:"entry_price"`
	TPPrice    float64     `json:"tp_price"`
	SLPrice    float64     `json:"sl_price"`
	ExtraUnits int         `json:"extra_units"`
	OpenedAt   time.Time   `json:"opened_at"`
	Status     ScalpStatus `json:"status"`
	ExitPrice  float64     `json:"exit_price,omitempty"`
	ClosedAt   time.Time   `json:"closed_at,omitempty"`
}

// CooldownWindow blocks new extra allocations for a symbol until Until.
type CooldownWindow struct {
	Symbol string    `json:"symbol"`
	Until  time.Time `json:"until"`
}

// Active reports whether the window still blocks at t.
func (w CooldownWindow) Active(t time.Time) bool {
	return t.Before(w.Until)
}

// Tick is a per-symbol market update for the exit state machine.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"current_price"`
	Time   time.Time `json:"current_time"`
	High   float64   `json:"current_high"`
	Low    float64   `json:"current_low"`
}

// ScalpEventType enumerates scalp lifecycle events.
type ScalpEventType string

const (
	ScalpEventOpened  ScalpEventType = "OPENED"
	ScalpEventTPHit   ScalpEventType = "TP_HIT"
	ScalpEventSLHit   ScalpEventType = "SL_HIT"
	ScalpEventTimeout ScalpEventType = "TIMEOUT"
)

// ScalpEvent is emitted on every scalp transition.
type ScalpEvent struct {
	Symbol      string         `json:"symbol"`
	Type        ScalpEventType `json:"event_type"`
	PnL         float64        `json:"pnl"`
	HoldSeconds float64        `json:"hold_seconds"`
	Price       float64        `json:"price"`
	At          time.Time      `json:"at"`
}
