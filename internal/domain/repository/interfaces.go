package repository

import (
	"context"

	"TradeGate/internal/domain/models"
)

// TickStream delivers per-symbol market updates for the exit state machine.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AuditSink persists audit records outside the decision core.
type AuditSink interface {
	Write(ctx context.Context, rec *models.AuditRecord) error
	WriteBatch(ctx context.Context, recs []*models.AuditRecord) error
	Close() error
}

// SnapshotStore durably records policy snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, snap *models.PolicySnapshot) error
	Load(ctx context.Context, id string) (*models.PolicySnapshot, error)
	Delete(ctx context.Context, id string) error
}

type Metrics interface {
	RecordDecision(regime string, action models.Action)
	RecordGateDenial(check string)
	RecordScalpEvent(symbol string, event models.ScalpEventType)
	RecordFlush(regime string, outcomes int)
	RecordFrozen(regime string, frozen bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) RecordDecision(string, models.Action) {}
func (NoopMetrics) RecordGateDenial(string) {}
func (NoopMetrics) RecordScalpEvent(string, models.ScalpEventType) {}
func (NoopMetrics) RecordFlush(string, int) {}
func (NoopMetrics) RecordFrozen(string, bool) {}
func (NoopMetrics) RecordError(string) {}
func (NoopMetrics) RecordLatency(string, float64) {}

// AuditRecorder accepts audit records without blocking the caller.
type AuditRecorder interface {
	Record(rec *models.AuditRecord)
}

// NoopAudit discards every record.
type NoopAudit struct{}

func (NoopAudit) Record(*models.AuditRecord) {}
