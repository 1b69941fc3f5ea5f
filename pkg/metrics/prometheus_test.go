package metrics

import (
	"testing"

	"TradeGate/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordDecision("TREND_UP", models.ActionEnterBase)
	r.RecordDecision("TREND_UP", models.ActionEnterBase)
	r.RecordGateDenial("min_confidence")
	r.RecordScalpEvent("EURUSD", models.ScalpEventTPHit)
	r.RecordFlush("TREND_UP", 20)
	r.RecordFrozen("TREND_UP", true)
	r.RecordError("tick")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("TREND_UP", "ENTER_BASE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.gateDenials.WithLabelValues("min_confidence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scalpEvents.WithLabelValues("TP_HIT")))
	assert.Equal(t, 20.0, testutil.ToFloat64(r.outcomes.WithLabelValues("TREND_UP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.frozen.WithLabelValues("TREND_UP")))

	r.RecordFrozen("TREND_UP", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.frozen.WithLabelValues("TREND_UP")))
}
