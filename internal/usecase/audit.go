package usecase

import (
	"time"

	"TradeGate/internal/domain/models"

	"github.com/google/uuid"
)

func newAuditRecord(kind models.AuditKind, symbol, regime string, at time.Time, payload map[string]interface{}) *models.AuditRecord {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &models.AuditRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Symbol:    symbol,
		Regime:    regime,
		Timestamp: at,
		Payload:   payload,
	}
}

// ScalpAuditHandler turns scalp lifecycle events into audit records.
func ScalpAuditHandler(audit interface {
	Record(*models.AuditRecord)
}) func(models.ScalpEvent) {
	return func(ev models.ScalpEvent) {
		audit.Record(newAuditRecord(models.AuditScalp, ev.Symbol, "", ev.At, map[string]interface{}{
			"event_type":   string(ev.Type),
			"pnl":          ev.PnL,
			"hold_seconds": ev.HoldSeconds,
			"price":        ev.Price,
		}))
	}
}
