package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	pkgkafka "TradeGate/pkg/kafka"
	applogger "TradeGate/pkg/logger"
)

// Reward maps a realized pnl into [0,1] around 0.5.
func Reward(pnl, scale float64) float64 {
	if scale <= 0 {
		scale = 1
	}
	r := 0.5 + pnl/(2*scale)
	return math.Min(1, math.Max(0, r))
}

// TradeCloseHandler converts trade-close events into learning outcomes.
type TradeCloseHandler struct {
	topic   string
	scale   float64
	orch    *Orchestrator
	learner *Learner
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func NewTradeCloseHandler(topic string, scale float64, orch *Orchestrator, learner *Learner, metrics drepo.Metrics, logger *applogger.Logger) *TradeCloseHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &TradeCloseHandler{
		topic:   topic,
		scale:   scale,
		orch:    orch,
		learner: learner,
		metrics: metrics,
		logger:  logger,
	}
}

func (h *TradeCloseHandler) Topic() string { return h.topic }

// Handle decodes one trade-close message. Only malformed payloads are
// returned as errors; everything else is logged and acknowledged.
func (h *TradeCloseHandler) Handle(ctx context.Context, data []byte) error {
	var tc models.TradeClose
	if err := json.Unmarshal(data, &tc); err != nil {
		h.metrics.RecordError("trade_close_decode")
		return pkgkafka.Permanent(fmt.Errorf("decode trade close: %w", err))
	}
	if _, err := h.Process(ctx, tc); err != nil && !errors.Is(err, models.ErrUnknownDecision) {
		h.logger.Error("trade close processing failed", applogger.String("symbol", tc.Symbol), applogger.Error(err))
	}
	return nil
}

// Process buffers the outcome and flushes when the batch is full. The
// returned result is nil when no flush happened.
func (h *TradeCloseHandler) Process(ctx context.Context, tc models.TradeClose) (*FlushResult, error) {
	rec, ok := h.orch.TakeDecision(tc.Symbol)
	if !ok {
		h.metrics.RecordError("unknown_decision")
		h.logger.Warn("trade close without decision dropped",
			applogger.String("symbol", tc.Symbol),
			applogger.Float64("pnl", tc.PnL),
		)
		return nil, fmt.Errorf("trade close %s: %w", tc.Symbol, models.ErrUnknownDecision)
	}

	o := models.PendingOutcome{
		Symbol:   tc.Symbol,
		Regime:   rec.Regime,
		StateKey: rec.StateKey,
		Action:   rec.Action,
		Reward:   Reward(tc.PnL, h.scale),
		PnL:      tc.PnL,
	}
	if !tc.EntryTime.IsZero() && tc.CloseTime.After(tc.EntryTime) {
		o.Duration = tc.CloseTime.Sub(tc.EntryTime)
	}
	h.learner.Add(o)

	if !h.learner.ShouldFlush() {
		return nil, nil
	}
	res, err := h.learner.Flush(ctx)
	if err != nil {
		return nil, fmt.Errorf("flush pending: %w", err)
	}
	return &res, nil
}
