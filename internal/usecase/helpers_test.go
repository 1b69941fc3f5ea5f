package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/services/bandit"
	"TradeGate/internal/services/sizing"
	"TradeGate/pkg/config"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	snaps   map[string]models.PolicySnapshot
	deleted []string
	failOn  int // fail the n-th Save (1-based); 0 never fails
	saves   int
	onSave  func(*models.PolicySnapshot)
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]models.PolicySnapshot)}
}

func (s *memStore) Save(_ context.Context, snap *models.PolicySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failOn > 0 && s.saves == s.failOn {
		return errors.New("store unavailable")
	}
	if s.onSave != nil {
		s.onSave(snap)
	}
	s.snaps[snap.ID] = *snap
	return nil
}

func (s *memStore) Load(_ context.Context, id string) (*models.PolicySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", id, models.ErrSnapshotNotFound)
	}
	return &snap, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

type recordingAudit struct {
	mu   sync.Mutex
	recs []*models.AuditRecord
}

func (a *recordingAudit) Record(rec *models.AuditRecord) {
	a.mu.Lock()
	a.recs = append(a.recs, rec)
	a.mu.Unlock()
}

func (a *recordingAudit) kinds() []models.AuditKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditKind, len(a.recs))
	for i, r := range a.recs {
		out[i] = r.Kind
	}
	return out
}

func (a *recordingAudit) byKind(kind models.AuditKind) []*models.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.AuditRecord
	for _, r := range a.recs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Learning.Seed = 7
	cfg.Learning.BatchSize = 4
	cfg.Learning.KeepSnapshots = 3
	cfg.Learning.RollingWindow = 100
	cfg.Leverage.Enabled = true
	cfg.Leverage.AllowedRegimes = []string{"TREND_UP", "RANGE"}
	cfg.Leverage.ForbiddenRegimes = []string{"CRASH"}
	return cfg
}

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func testContext(regime string) models.MarketContext {
	return models.MarketContext{
		Regime:               regime,
		Hour:                 9,
		GlobalConfidence:     0.8,
		EnsembleDisagreement: 0.1,
		LiquidityStrength:    0.7,
		Time:                 testNow,
	}
}

// forceAction makes a frozen regime deterministically pick action for mc.
func forceAction(t *testing.T, p *bandit.Policy, cfg *config.Config, mc models.MarketContext, action models.Action) {
	t.Helper()
	state := sizing.NewStateBuilder(cfg.States).Build(mc)
	table := models.PolicyTable{
		models.PolicyEntryKey(state.Key(), action): {Alpha: 100, Beta: 1},
	}
	data, err := json.Marshal(table)
	require.NoError(t, err)
	require.NoError(t, p.Restore(mc.Regime, data))
	p.Freeze(mc.Regime)
}

func outcome(regime string, action models.Action, reward float64) models.PendingOutcome {
	return models.PendingOutcome{
		Symbol:   "EURUSD",
		Regime:   regime,
		StateKey: regime + "|EUROPE|HIGH|LOW",
		Action:   action,
		Reward:   reward,
	}
}
