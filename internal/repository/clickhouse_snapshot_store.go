package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	pkgch "TradeGate/pkg/clickhouse"
	applogger "TradeGate/pkg/logger"
)

// CHSnapshotStore implements SnapshotStore backed by ClickHouse.
type CHSnapshotStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSnapshotStore(ch *pkgch.Client, table string) *CHSnapshotStore {
	return &CHSnapshotStore{db: ch.DB(), table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSnapshotStore) Save(ctx context.Context, snap *models.PolicySnapshot) error {
	start := time.Now()
	meta, err := json.Marshal(snap.Metadata)
	if err != nil {
		return fmt.Errorf("marshal snapshot metadata: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (id, regime, captured_at, tbl, metadata) VALUES (?, ?, ?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, q, snap.ID, snap.Regime, snap.CapturedAt, string(snap.Table), string(meta)); err != nil {
		s.l.Error("clickhouse save_snapshot error",
			applogger.String("table", s.table),
			applogger.String("id", snap.ID),
			applogger.String("regime", snap.Regime),
			applogger.Error(err),
		)
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	s.l.Debug("clickhouse save_snapshot ok",
		applogger.String("id", snap.ID),
		applogger.String("regime", snap.Regime),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHSnapshotStore) Load(ctx context.Context, id string) (*models.PolicySnapshot, error) {
	const qtpl = `
        SELECT id, regime, captured_at, tbl, metadata
        FROM %s
        WHERE id = ?
        LIMIT 1
    `
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(qtpl, s.table), id)

	var (
		snap      models.PolicySnapshot
		tbl, meta string
	)
	if err := row.Scan(&snap.ID, &snap.Regime, &snap.CapturedAt, &tbl, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load snapshot %s: %w", id, models.ErrSnapshotNotFound)
		}
		s.l.Error("clickhouse load_snapshot error",
			applogger.String("table", s.table),
			applogger.String("id", id),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	snap.Table = []byte(tbl)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &snap.Metadata); err != nil {
			return nil, fmt.Errorf("decode snapshot metadata %s: %w", id, err)
		}
	}
	return &snap, nil
}

// Delete issues a lightweight delete; ClickHouse applies it asynchronously.
func (s *CHSnapshotStore) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table)
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}
