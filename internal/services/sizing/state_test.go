package sizing

import (
	"testing"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestStateBuilderBands(t *testing.T) {
	b := NewStateBuilder(config.StatesConfig{
		ConfidenceBands:   []float64{0.4, 0.7},
		DisagreementBands: []float64{0.2, 0.4},
		TimeBuckets:       config.DefaultTimeBuckets(),
	})

	s := b.Build(models.MarketContext{Regime: "TREND_UP", Hour: 9, GlobalConfidence: 0.75, EnsembleDisagreement: 0.1})
	assert.Equal(t, models.DecisionState{
		Regime:           "TREND_UP",
		TimeBucket:       "EUROPE",
		ConfidenceBand:   models.BandHigh,
		DisagreementBand: models.BandLow,
	}, s)

	assert.Equal(t, models.BandLow, b.confidence.Band(0.39))
	assert.Equal(t, models.BandMed, b.confidence.Band(0.4))
	assert.Equal(t, models.BandMed, b.confidence.Band(0.69))
	assert.Equal(t, models.BandHigh, b.confidence.Band(0.7))
}

func TestStateBuilderTimeBuckets(t *testing.T) {
	b := NewStateBuilder(config.StatesConfig{
		ConfidenceBands:   []float64{0.4, 0.7},
		DisagreementBands: []float64{0.2, 0.4},
		TimeBuckets: []config.TimeBucket{
			{Name: "OPEN", FromHour: 8, ToHour: 10},
			{Name: "DAY", FromHour: 8, ToHour: 17},
		},
	})
	assert.Equal(t, "OPEN", b.TimeBucket(8))
	assert.Equal(t, "DAY", b.TimeBucket(10))
	assert.Equal(t, OffHours, b.TimeBucket(17))
	assert.Equal(t, OffHours, b.TimeBucket(-1))
	assert.Equal(t, OffHours, b.TimeBucket(24))
}

func TestStateKeyDeterministic(t *testing.T) {
	b := NewStateBuilder(config.StatesConfig{
		ConfidenceBands:   []float64{0.4, 0.7},
		DisagreementBands: []float64{0.2, 0.4},
		TimeBuckets:       config.DefaultTimeBuckets(),
	})
	mc := models.MarketContext{Regime: "RANGE", Hour: 14, GlobalConfidence: 0.5, EnsembleDisagreement: 0.3}
	assert.Equal(t, b.Build(mc).Key(), b.Build(mc).Key())
	assert.Equal(t, "RANGE|US|MED|MED", b.Build(mc).Key())
}
