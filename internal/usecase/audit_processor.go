package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
)

// AuditProcessor writes audit records to the configured backend sink.
type AuditProcessor struct {
	sink    drepo.AuditSink
	metrics drepo.Metrics
	backend string
}

// NewAuditProcessor creates a new AuditProcessor instance.
func NewAuditProcessor(sink drepo.AuditSink, metrics drepo.Metrics, backend string) *AuditProcessor {
	return &AuditProcessor{sink: sink, metrics: metrics, backend: backend}
}

// Process writes a single record.
func (p *AuditProcessor) Process(ctx context.Context, r *models.AuditRecord) error {
	if r == nil {
		return fmt.Errorf("audit record is nil")
	}
	start := time.Now()
	if err := p.sink.Write(ctx, r); err != nil {
		p.metrics.RecordError("audit_process")
		return fmt.Errorf("process audit %s via %s: %w", r.ID, p.backend, err)
	}
	p.metrics.RecordLatency("audit_process_"+p.backend, time.Since(start).Seconds())
	return nil
}

// ProcessBatch writes records in one sink call.
func (p *AuditProcessor) ProcessBatch(ctx context.Context, recs []*models.AuditRecord) error {
	if len(recs) == 0 {
		return nil
	}
	start := time.Now()
	if err := p.sink.WriteBatch(ctx, recs); err != nil {
		p.metrics.RecordError("audit_process_batch")
		return fmt.Errorf("process audit batch via %s: %w", p.backend, err)
	}
	p.metrics.RecordLatency("audit_process_batch_"+p.backend, time.Since(start).Seconds())
	return nil
}

// Close closes the underlying sink.
func (p *AuditProcessor) Close() error {
	if p.sink != nil {
		return p.sink.Close()
	}
	return nil
}
