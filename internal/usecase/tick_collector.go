package usecase

import (
	"context"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	applogger "TradeGate/pkg/logger"
)

// TickCollector pumps ticks from a live market stream into the tick handler.
type TickCollector struct {
	stream  drepo.TickStream
	handler *TickHandler
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func NewTickCollector(stream drepo.TickStream, handler *TickHandler, metrics drepo.Metrics, logger *applogger.Logger) *TickCollector {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &TickCollector{stream: stream, handler: handler, metrics: metrics, logger: logger}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
				c.logger.Warn("tick stream error, reconnecting", applogger.Error(err))
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					c.logger.Error("tick stream reconnect failed", applogger.Error(rerr))
					return
				}
				tickCh, errCh = c.stream.Read(ctx)
			}
		case t, ok := <-tickCh:
			if !ok {
				tickCh = nil
				continue
			}
			if t == nil {
				continue
			}
			if _, err := c.handler.Apply(ctx, *t); err != nil {
				c.logger.Debug("tick rejected", applogger.String("symbol", t.Symbol), applogger.Error(err))
			}
		}
	}
}

// Shutdown closes the stream.
func (c *TickCollector) Shutdown(context.Context) error {
	return c.stream.Close()
}
