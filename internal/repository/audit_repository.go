package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/domain/repository"
	pkgkafka "TradeGate/pkg/kafka"
	applogger "TradeGate/pkg/logger"
)

// ClickHouseAuditStore implements AuditSink for ClickHouse.
type ClickHouseAuditStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseAuditStore creates the ClickHouse audit sink.
func NewClickHouseAuditStore(db *sql.DB, table string) repository.AuditSink {
	return &ClickHouseAuditStore{db: db, table: table}
}

func (s *ClickHouseAuditStore) Write(ctx context.Context, rec *models.AuditRecord) error {
	return s.WriteBatch(ctx, []*models.AuditRecord{rec})
}

func (s *ClickHouseAuditStore) WriteBatch(ctx context.Context, recs []*models.AuditRecord) error {
	if len(recs) == 0 {
		return nil
	}
	// Multi-row VALUES, chunked to keep statements bounded.
	const chunkSize = 1000
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, r := range recs[start:end] {
			if r == nil || r.ID == "" {
				continue
			}
			payload, err := json.Marshal(r.Payload)
			if err != nil {
				return fmt.Errorf("marshal audit payload %s: %w", r.ID, err)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, r.Timestamp, r.ID, string(r.Kind), r.Symbol, r.Regime, string(payload))
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, id, kind, symbol, regime, payload) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseAuditStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}

// Producer is the part of the Kafka producer the audit publisher uses.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaAuditPublisher implements AuditSink for Kafka. Records are keyed by
// symbol, falling back to regime, so one symbol stays on one partition.
type KafkaAuditPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaAuditPublisher creates the Kafka audit sink.
func NewKafkaAuditPublisher(producer Producer, topic string) repository.AuditSink {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Write(ctx context.Context, rec *models.AuditRecord) error {
	return p.producer.Publish(ctx, p.topic, auditKey(rec), rec)
}

func (p *KafkaAuditPublisher) WriteBatch(ctx context.Context, recs []*models.AuditRecord) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(recs))
	for _, r := range recs {
		if r == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: auditKey(r), Value: r})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAuditPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func auditKey(r *models.AuditRecord) []byte {
	if r.Symbol != "" {
		return []byte(r.Symbol)
	}
	return []byte(r.Regime)
}

// LogAuditSink writes audit records to the structured log.
type LogAuditSink struct {
	l *applogger.Logger
}

func NewLogAuditSink(l *applogger.Logger) repository.AuditSink {
	return &LogAuditSink{l: l}
}

func (s *LogAuditSink) Write(_ context.Context, r *models.AuditRecord) error {
	if r == nil {
		return nil
	}
	s.l.Info("audit",
		applogger.String("id", r.ID),
		applogger.String("kind", string(r.Kind)),
		applogger.String("symbol", r.Symbol),
		applogger.String("regime", r.Regime),
		applogger.Time("ts", r.Timestamp),
		applogger.Any("payload", r.Payload),
	)
	return nil
}

func (s *LogAuditSink) WriteBatch(ctx context.Context, recs []*models.AuditRecord) error {
	for _, r := range recs {
		_ = s.Write(ctx, r)
	}
	return nil
}

func (s *LogAuditSink) Close() error { return nil }
