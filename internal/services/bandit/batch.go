package bandit

import (
	"fmt"
	"math"

	"TradeGate/internal/domain/models"
	applogger "TradeGate/pkg/logger"
)

// Batch stages updates on private copies of the touched regimes and
// publishes them together on Commit. It holds the policy writer lock
// from Begin until Commit or Abort.
type Batch struct {
	p      *Policy
	staged map[string]*regimeState
	frozen []string
	done   bool
}

// Begin acquires the writer lock and starts a batch.
func (p *Policy) Begin() *Batch {
	p.mu.Lock()
	return &Batch{p: p, staged: make(map[string]*regimeState)}
}

func (b *Batch) state(regime string) *regimeState {
	if st, ok := b.staged[regime]; ok {
		return st
	}
	st := b.p.load(regime).clone()
	b.staged[regime] = st
	return st
}

// Export serializes the regime as it is before this batch touched it.
func (b *Batch) Export(regime string) ([]byte, error) {
	return b.p.Export(regime)
}

// Frozen reports the staged frozen flag for a regime.
func (b *Batch) Frozen(regime string) bool {
	if st, ok := b.staged[regime]; ok {
		return st.frozen
	}
	return b.p.load(regime).frozen
}

// Apply stages one outcome. Frozen regimes ignore it.
func (b *Batch) Apply(o models.PendingOutcome) error {
	if err := ValidateOutcome(o); err != nil {
		return err
	}
	st := b.state(o.Regime)
	if st.frozen {
		return nil
	}

	key := models.PolicyEntryKey(o.StateKey, o.Action)
	post := st.posterior(key)
	post.Alpha += o.Reward
	post.Beta += 1 - o.Reward
	post.Visits++
	post.CumulativeReward += o.Reward
	st.entries[key] = post

	b.observe(o.Regime, st, o.Reward)
	return nil
}

// observe feeds the rolling window and auto-freezes on degradation.
func (b *Batch) observe(regime string, st *regimeState, reward float64) {
	size := b.p.cfg.RollingWindow
	if size <= 0 {
		return
	}
	st.window = append(st.window, reward)
	if len(st.window) > size {
		st.window = st.window[len(st.window)-size:]
	}
	if len(st.window) < size {
		return
	}
	mean := st.rollingMean()
	if !st.hasBaseline {
		st.baseline = mean
		st.hasBaseline = true
		return
	}
	if mean < st.baseline*(1-b.p.cfg.FreezeDegradationThreshold) {
		st.frozen = true
		b.frozen = append(b.frozen, regime)
	}
}

// Touched lists the regimes staged by this batch.
func (b *Batch) Touched() []string {
	out := make([]string, 0, len(b.staged))
	for r := range b.staged {
		out = append(out, r)
	}
	return out
}

// Commit publishes every staged regime and releases the writer lock.
// It returns the regimes that auto-froze during the batch.
func (b *Batch) Commit() []string {
	if b.done {
		return nil
	}
	for regime, st := range b.staged {
		b.p.slotFor(regime).cur.Store(st)
	}
	for _, regime := range b.frozen {
		b.p.metrics.RecordFrozen(regime, true)
		st := b.staged[regime]
		b.p.logger.Warn("regime policy auto-frozen",
			applogger.String("regime", regime),
			applogger.Float64("baseline", st.baseline),
			applogger.Float64("rolling_mean", st.rollingMean()),
		)
	}
	b.done = true
	b.p.mu.Unlock()
	return b.frozen
}

// Abort drops staged changes and releases the writer lock. It is safe to
// call after Commit.
func (b *Batch) Abort() {
	if b.done {
		return
	}
	b.done = true
	b.staged = nil
	b.p.mu.Unlock()
}

// ValidateOutcome checks a pending record before it reaches a posterior.
func ValidateOutcome(o models.PendingOutcome) error {
	switch {
	case o.Regime == "":
		return fmt.Errorf("%w: empty regime", models.ErrInvalidOutcome)
	case o.StateKey == "":
		return fmt.Errorf("%w: empty state key", models.ErrInvalidOutcome)
	case !o.Action.IsValid():
		return fmt.Errorf("%w: unknown action %q", models.ErrInvalidOutcome, o.Action)
	case math.IsNaN(o.Reward) || o.Reward < 0 || o.Reward > 1:
		return fmt.Errorf("%w: reward %v outside [0,1]", models.ErrInvalidOutcome, o.Reward)
	}
	return nil
}
