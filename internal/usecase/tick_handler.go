package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/internal/services/scalp"
	pkgkafka "TradeGate/pkg/kafka"
	applogger "TradeGate/pkg/logger"
)

// TickResult is the outcome of feeding one tick to the scalp manager.
type TickResult struct {
	Closed bool               `json:"closed"`
	Event  *models.ScalpEvent `json:"event,omitempty"`
}

// TickHandler routes ticks to their symbol worker and the scalp manager.
type TickHandler struct {
	topic      string
	dispatcher *Dispatcher
	scalps     *scalp.Manager
	metrics    drepo.Metrics
	logger     *applogger.Logger
}

func NewTickHandler(topic string, dispatcher *Dispatcher, scalps *scalp.Manager, metrics drepo.Metrics, logger *applogger.Logger) *TickHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &TickHandler{topic: topic, dispatcher: dispatcher, scalps: scalps, metrics: metrics, logger: logger}
}

func (h *TickHandler) Topic() string { return h.topic }

func (h *TickHandler) Handle(ctx context.Context, data []byte) error {
	var t models.Tick
	if err := json.Unmarshal(data, &t); err != nil {
		h.metrics.RecordError("tick_decode")
		return pkgkafka.Permanent(fmt.Errorf("decode tick: %w", err))
	}
	if _, err := h.Apply(ctx, t); err != nil {
		h.logger.Debug("tick rejected", applogger.String("symbol", t.Symbol), applogger.Error(err))
	}
	return nil
}

// Apply runs the tick on its symbol worker.
func (h *TickHandler) Apply(ctx context.Context, t models.Tick) (TickResult, error) {
	if t.Symbol == "" {
		return TickResult{}, fmt.Errorf("tick: empty symbol")
	}
	if t.Time.IsZero() {
		t.Time = time.Now().UTC()
	}
	var res TickResult
	err := h.dispatcher.Submit(ctx, t.Symbol, func(context.Context) error {
		closed, ev, err := h.scalps.Update(t)
		if err != nil {
			return err
		}
		res = TickResult{Closed: closed, Event: ev}
		return nil
	})
	if err != nil {
		h.metrics.RecordError("tick")
		return TickResult{}, err
	}
	return res, nil
}
