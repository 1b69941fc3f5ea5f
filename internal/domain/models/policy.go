package models

import "time"

// ActionPosterior is the Beta posterior over an action's success rate.
type ActionPosterior struct {
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	Visits           int64   `json:"visits"`
	CumulativeReward float64 `json:"cumulative_reward"`
}

// NewPosterior returns the uniform Beta(1,1) prior.
func NewPosterior() ActionPosterior {
	return ActionPosterior{Alpha: 1, Beta: 1}
}

// Mean returns alpha/(alpha+beta).
func (p ActionPosterior) Mean() float64 {
	return p.Alpha / (p.Alpha + p.Beta)
}

// PolicyEntryKey joins a state key and an action into a table key.
func PolicyEntryKey(stateKey string, a Action) string {
	return stateKey + "#" + string(a)
}

// PolicyTable maps PolicyEntryKey -> posterior for one regime.
type PolicyTable map[string]ActionPosterior

// Clone returns a deep copy of t.
func (t PolicyTable) Clone() PolicyTable {
	out := make(PolicyTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// PolicySnapshot is a point-in-time backup of one regime's table.
type PolicySnapshot struct {
	ID         string            `json:"id"`
	Regime     string            `json:"regime"`
	CapturedAt time.Time         `json:"captured_at"`
	Table      []byte            `json:"table"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// PendingOutcome is one learning sample waiting for a batch flush.
type PendingOutcome struct {
	Symbol   string        `json:"symbol"`
	Regime   string        `json:"regime"`
	StateKey string        `json:"state_key"`
	Action   Action        `json:"action"`
	Reward   float64       `json:"reward"`
	PnL      float64       `json:"pnl"`
	Duration time.Duration `json:"duration"`
}

// PolicyStats is a read-only view of a regime policy.
type PolicyStats struct {
	Regime      string      `json:"regime"`
	Frozen      bool        `json:"frozen"`
	Baseline    float64     `json:"baseline"`
	HasBaseline bool        `json:"has_baseline"`
	RollingMean float64     `json:"rolling_mean"`
	Samples     int         `json:"samples"`
	Entries     PolicyTable `json:"entries"`
}

// TradeClose is a trade-close event from the execution side.
type TradeClose struct {
	Symbol    string    `json:"symbol"`
	PnL       float64   `json:"pnl"`
	EntryTime time.Time `json:"entry_time"`
	CloseTime time.Time `json:"close_time"`
}
