package metrics

import (
	"TradeGate/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions   *prometheus.CounterVec
	gateDenials *prometheus.CounterVec
	scalpEvents *prometheus.CounterVec
	flushes     *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	frozen      *prometheus.GaugeVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_decisions_total",
				Help: "Sizing decisions by regime and final action",
			},
			[]string{"regime", "action"},
		),
		gateDenials: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_gate_denials_total",
				Help: "Re-leverage gate denials by failing check",
			},
			[]string{"check"},
		),
		scalpEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_scalp_events_total",
				Help: "Scalp lifecycle events by type",
			},
			[]string{"event"},
		),
		flushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_policy_flushes_total",
				Help: "Committed policy flushes by regime",
			},
			[]string{"regime"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_policy_outcomes_total",
				Help: "Outcomes applied to the policy by regime",
			},
			[]string{"regime"},
		),
		frozen: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradegate_policy_frozen",
				Help: "1 when the regime policy is frozen",
			},
			[]string{"regime"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradegate_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordDecision(regime string, action models.Action) {
	r.decisions.WithLabelValues(regime, string(action)).Inc()
}

func (r *Recorder) RecordGateDenial(check string) {
	r.gateDenials.WithLabelValues(check).Inc()
}

// RecordScalpEvent counts by event type only; symbol is left out to bound cardinality.
func (r *Recorder) RecordScalpEvent(_ string, event models.ScalpEventType) {
	r.scalpEvents.WithLabelValues(string(event)).Inc()
}

func (r *Recorder) RecordFlush(regime string, outcomes int) {
	r.flushes.WithLabelValues(regime).Inc()
	r.outcomes.WithLabelValues(regime).Add(float64(outcomes))
}

func (r *Recorder) RecordFrozen(regime string, frozen bool) {
	v := 0.0
	if frozen {
		v = 1
	}
	r.frozen.WithLabelValues(regime).Set(v)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
