package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/internal/services/bandit"
	"TradeGate/pkg/config"
	applogger "TradeGate/pkg/logger"

	"github.com/google/uuid"
)

// FlushResult summarizes one committed flush.
type FlushResult struct {
	Applied   int      `json:"applied"`
	Dropped   int      `json:"dropped"`
	Regimes   []string `json:"regimes"`
	Snapshots []string `json:"snapshots"`
	Frozen    []string `json:"frozen,omitempty"`
}

// Learner buffers outcomes and applies them to the policy in guarded batches.
// Every regime touched by a flush is snapshotted and durably saved before
// the new posteriors are published; a failure leaves the policy and the
// buffer as they were.
type Learner struct {
	cfg     config.LearningConfig
	policy  *bandit.Policy
	store   drepo.SnapshotStore
	audit   drepo.AuditRecorder
	metrics drepo.Metrics
	logger  *applogger.Logger
	now     func() time.Time

	// flushMu serializes Flush and Rollback; mu guards the buffer and index.
	flushMu   sync.Mutex
	mu        sync.Mutex
	pending   []models.PendingOutcome
	snapshots map[string][]models.PolicySnapshot
}

type LearnerOption func(*Learner)

func WithLearnerClock(now func() time.Time) LearnerOption {
	return func(l *Learner) { l.now = now }
}

func WithLearnerLogger(lg *applogger.Logger) LearnerOption {
	return func(l *Learner) { l.logger = lg }
}

func NewLearner(cfg config.LearningConfig, policy *bandit.Policy, store drepo.SnapshotStore, audit drepo.AuditRecorder, metrics drepo.Metrics, opts ...LearnerOption) *Learner {
	l := &Learner{
		cfg:       cfg,
		policy:    policy,
		store:     store,
		audit:     audit,
		metrics:   metrics,
		logger:    applogger.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		snapshots: make(map[string][]models.PolicySnapshot),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add appends an outcome to the pending buffer.
func (l *Learner) Add(o models.PendingOutcome) {
	l.mu.Lock()
	l.pending = append(l.pending, o)
	l.mu.Unlock()
}

// Pending returns the buffered outcome count.
func (l *Learner) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// ShouldFlush reports whether the buffer reached the batch size.
func (l *Learner) ShouldFlush() bool {
	return l.Pending() >= l.cfg.BatchSize
}

// Flush applies every buffered outcome. Invalid outcomes are dropped and
// logged; the remaining ones are committed together or not at all.
func (l *Learner) Flush(ctx context.Context) (FlushResult, error) {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()
	start := time.Now()

	l.mu.Lock()
	taken := l.pending
	l.pending = nil
	l.mu.Unlock()

	var res FlushResult
	valid := make([]models.PendingOutcome, 0, len(taken))
	for _, o := range taken {
		if err := bandit.ValidateOutcome(o); err != nil {
			res.Dropped++
			l.metrics.RecordError("invalid_outcome")
			l.logger.Warn("outcome dropped",
				applogger.String("symbol", o.Symbol),
				applogger.String("regime", o.Regime),
				applogger.Error(err),
			)
			continue
		}
		valid = append(valid, o)
	}
	if len(valid) == 0 {
		return res, nil
	}

	byRegime := make(map[string][]models.PendingOutcome)
	for _, o := range valid {
		byRegime[o.Regime] = append(byRegime[o.Regime], o)
	}
	regimes := make([]string, 0, len(byRegime))
	for r := range byRegime {
		regimes = append(regimes, r)
	}
	sort.Strings(regimes)

	restore := func() {
		l.mu.Lock()
		l.pending = append(valid, l.pending...)
		l.mu.Unlock()
	}

	batch := l.policy.Begin()
	defer batch.Abort()

	at := l.now()
	saved := make([]models.PolicySnapshot, 0, len(regimes))
	for _, regime := range regimes {
		table, err := batch.Export(regime)
		if err != nil {
			restore()
			l.discard(ctx, saved)
			return FlushResult{}, fmt.Errorf("flush: snapshot %s: %w", regime, err)
		}
		snap := models.PolicySnapshot{
			ID:         uuid.NewString(),
			Regime:     regime,
			CapturedAt: at,
			Table:      table,
			Metadata: map[string]string{
				"reason":   "pre_flush",
				"outcomes": strconv.Itoa(len(byRegime[regime])),
			},
		}
		if err := l.store.Save(ctx, &snap); err != nil {
			restore()
			l.discard(ctx, saved)
			l.metrics.RecordError("snapshot_save")
			return FlushResult{}, fmt.Errorf("flush: save snapshot %s: %w", regime, err)
		}
		saved = append(saved, snap)
	}

	for _, regime := range regimes {
		for _, o := range byRegime[regime] {
			if err := batch.Apply(o); err != nil {
				restore()
				l.discard(ctx, saved)
				return FlushResult{}, fmt.Errorf("flush: apply %s: %w", regime, err)
			}
		}
	}
	frozen := batch.Commit()

	res.Applied = len(valid)
	res.Regimes = regimes
	res.Frozen = frozen
	for _, snap := range saved {
		res.Snapshots = append(res.Snapshots, snap.ID)
		l.retain(ctx, snap)
		l.audit.Record(newAuditRecord(models.AuditSnapshot, "", snap.Regime, at, map[string]interface{}{
			"snapshot_id": snap.ID,
			"reason":      snap.Metadata["reason"],
		}))
	}
	for _, regime := range regimes {
		n := len(byRegime[regime])
		l.metrics.RecordFlush(regime, n)
		l.audit.Record(newAuditRecord(models.AuditPolicyUpdate, "", regime, at, map[string]interface{}{
			"outcomes": n,
			"frozen":   l.policy.IsFrozen(regime),
		}))
	}
	for _, regime := range frozen {
		l.audit.Record(newAuditRecord(models.AuditFreeze, "", regime, at, map[string]interface{}{
			"frozen":  true,
			"trigger": "degradation",
		}))
	}
	l.metrics.RecordLatency("learner_flush", time.Since(start).Seconds())
	l.logger.Info("policy flush committed",
		applogger.Int("applied", res.Applied),
		applogger.Int("dropped", res.Dropped),
		applogger.Strings("regimes", regimes),
		applogger.Strings("frozen", frozen),
	)
	return res, nil
}

// discard removes snapshots written by an aborted flush.
func (l *Learner) discard(ctx context.Context, snaps []models.PolicySnapshot) {
	for _, s := range snaps {
		if err := l.store.Delete(ctx, s.ID); err != nil {
			l.logger.Warn("orphan snapshot left in store", applogger.String("id", s.ID), applogger.Error(err))
		}
	}
}

// retain indexes a snapshot and evicts the oldest beyond keep_snapshots.
func (l *Learner) retain(ctx context.Context, snap models.PolicySnapshot) {
	meta := snap
	meta.Table = nil

	l.mu.Lock()
	list := append(l.snapshots[snap.Regime], meta)
	var evicted []models.PolicySnapshot
	if keep := l.cfg.KeepSnapshots; keep > 0 && len(list) > keep {
		evicted = append(evicted, list[:len(list)-keep]...)
		list = append([]models.PolicySnapshot(nil), list[len(list)-keep:]...)
	}
	l.snapshots[snap.Regime] = list
	l.mu.Unlock()

	for _, old := range evicted {
		if err := l.store.Delete(ctx, old.ID); err != nil {
			l.logger.Warn("evict snapshot", applogger.String("id", old.ID), applogger.Error(err))
		}
	}
}

// Snapshots lists retained snapshot metadata for regime, oldest first.
func (l *Learner) Snapshots(regime string) []models.PolicySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.PolicySnapshot(nil), l.snapshots[regime]...)
}

// Rollback overwrites the snapshot's regime table with the snapshot.
// The regime's frozen flag is left as it is.
func (l *Learner) Rollback(ctx context.Context, snapshotID string) (*models.PolicySnapshot, error) {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	snap, err := l.store.Load(ctx, snapshotID)
	if err != nil {
		if errors.Is(err, models.ErrSnapshotNotFound) {
			l.logger.Warn("rollback target missing", applogger.String("snapshot_id", snapshotID))
		}
		return nil, fmt.Errorf("rollback: %w", err)
	}
	if err := l.policy.Restore(snap.Regime, snap.Table); err != nil {
		return nil, fmt.Errorf("rollback %s: %w", snapshotID, err)
	}

	l.audit.Record(newAuditRecord(models.AuditRollback, "", snap.Regime, l.now(), map[string]interface{}{
		"snapshot_id": snap.ID,
		"captured_at": snap.CapturedAt,
	}))
	l.logger.Warn("policy rolled back",
		applogger.String("regime", snap.Regime),
		applogger.String("snapshot_id", snap.ID),
		applogger.Time("captured_at", snap.CapturedAt),
	)
	return snap, nil
}

// Freeze and Unfreeze are the manual controls; both are audited.
func (l *Learner) Freeze(regime string) {
	l.policy.Freeze(regime)
	l.audit.Record(newAuditRecord(models.AuditFreeze, "", regime, l.now(), map[string]interface{}{
		"frozen":  true,
		"trigger": "manual",
	}))
}

func (l *Learner) Unfreeze(regime string) {
	l.policy.Unfreeze(regime)
	l.audit.Record(newAuditRecord(models.AuditFreeze, "", regime, l.now(), map[string]interface{}{
		"frozen":  false,
		"trigger": "manual",
	}))
}

// Stats exposes the policy view of a regime.
func (l *Learner) Stats(regime string) models.PolicyStats {
	return l.policy.Stats(regime)
}
