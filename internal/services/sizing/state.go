package sizing

import (
	"TradeGate/internal/domain/models"
	"TradeGate/pkg/config"
)

// OffHours names hours not covered by any configured time bucket.
const OffHours = "OFF"

// BandTable maps a continuous value to LOW/MED/HIGH by ascending upper bounds.
type BandTable struct {
	LowUpper float64
	MedUpper float64
}

// Band classifies v: v < LowUpper is LOW, v < MedUpper is MED, otherwise HIGH.
func (t BandTable) Band(v float64) models.Band {
	switch {
	case v < t.LowUpper:
		return models.BandLow
	case v < t.MedUpper:
		return models.BandMed
	default:
		return models.BandHigh
	}
}

// StateBuilder discretizes market context into DecisionState keys.
type StateBuilder struct {
	confidence   BandTable
	disagreement BandTable
	buckets      [24]string
}

// NewStateBuilder builds the lookup tables. Bands are validated by config.
func NewStateBuilder(cfg config.StatesConfig) *StateBuilder {
	b := &StateBuilder{
		confidence:   bandTable(cfg.ConfidenceBands),
		disagreement: bandTable(cfg.DisagreementBands),
	}
	for h := range b.buckets {
		b.buckets[h] = OffHours
	}
	// earlier buckets win on overlap
	for i := len(cfg.TimeBuckets) - 1; i >= 0; i-- {
		tb := cfg.TimeBuckets[i]
		for h := tb.FromHour; h < tb.ToHour && h < 24; h++ {
			if h >= 0 {
				b.buckets[h] = tb.Name
			}
		}
	}
	return b
}

// Build returns the DecisionState for a context.
func (b *StateBuilder) Build(mc models.MarketContext) models.DecisionState {
	return models.DecisionState{
		Regime:           mc.Regime,
		TimeBucket:       b.TimeBucket(mc.Hour),
		ConfidenceBand:   b.confidence.Band(mc.GlobalConfidence),
		DisagreementBand: b.disagreement.Band(mc.EnsembleDisagreement),
	}
}

// TimeBucket maps an hour of day to its bucket name.
func (b *StateBuilder) TimeBucket(hour int) string {
	if hour < 0 || hour > 23 {
		return OffHours
	}
	return b.buckets[hour]
}

func bandTable(bounds []float64) BandTable {
	if len(bounds) < 2 {
		return BandTable{LowUpper: 0.4, MedUpper: 0.7}
	}
	return BandTable{LowUpper: bounds[0], MedUpper: bounds[1]}
}
