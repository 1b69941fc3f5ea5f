package bandit

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/domain/repository"
	"TradeGate/pkg/config"
	applogger "TradeGate/pkg/logger"

	"gonum.org/v1/gonum/stat/distuv"
)

// regimeState is one immutable version of a regime policy.
// Writers build a new value and swap it in; readers never see a partial write.
type regimeState struct {
	entries     models.PolicyTable
	frozen      bool
	baseline    float64
	hasBaseline bool
	window      []float64
}

func (s *regimeState) clone() *regimeState {
	out := &regimeState{
		entries:     s.entries.Clone(),
		frozen:      s.frozen,
		baseline:    s.baseline,
		hasBaseline: s.hasBaseline,
		window:      make([]float64, len(s.window)),
	}
	copy(out.window, s.window)
	return out
}

func (s *regimeState) posterior(key string) models.ActionPosterior {
	if p, ok := s.entries[key]; ok {
		return p
	}
	return models.NewPosterior()
}

func (s *regimeState) rollingMean() float64 {
	if len(s.window) == 0 {
		return 0
	}
	var sum float64
	for _, r := range s.window {
		sum += r
	}
	return sum / float64(len(s.window))
}

var emptyState = &regimeState{entries: models.PolicyTable{}}

type slot struct {
	cur atomic.Pointer[regimeState]
}

// Policy is a per-regime Thompson-sampling bandit over the trading postures.
// Select is lock-free on the tables; all writes serialize on one mutex.
type Policy struct {
	cfg     config.LearningConfig
	logger  *applogger.Logger
	metrics repository.Metrics

	slots sync.Map // regime -> *slot
	mu    sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Policy.
type Option func(*Policy)

func WithLogger(l *applogger.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(p *Policy) { p.metrics = m }
}

// WithSource overrides the random source used for posterior sampling.
func WithSource(src rand.Source) Option {
	return func(p *Policy) { p.rng = rand.New(src) }
}

// NewPolicy creates an empty policy. A zero Seed seeds from the clock.
func NewPolicy(cfg config.LearningConfig, opts ...Option) *Policy {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	p := &Policy{
		cfg:     cfg,
		logger:  applogger.Nop(),
		metrics: repository.NoopMetrics{},
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) load(regime string) *regimeState {
	if v, ok := p.slots.Load(regime); ok {
		if st := v.(*slot).cur.Load(); st != nil {
			return st
		}
	}
	return emptyState
}

// slotFor lazily creates the regime slot. Callers hold p.mu.
func (p *Policy) slotFor(regime string) *slot {
	v, _ := p.slots.LoadOrStore(regime, &slot{})
	return v.(*slot)
}

// Select picks an action for the state. Frozen regimes are exploited
// deterministically; otherwise one draw per action is taken from its posterior.
func (p *Policy) Select(regime string, state models.DecisionState) models.Action {
	st := p.load(regime)
	key := state.Key()

	if st.frozen {
		return greedy(st, key)
	}

	p.rngMu.Lock()
	defer p.rngMu.Unlock()

	best := models.Actions[0]
	bestDraw := -1.0
	for _, a := range models.Actions {
		post := st.posterior(models.PolicyEntryKey(key, a))
		draw := distuv.Beta{Alpha: post.Alpha, Beta: post.Beta, Src: p.rng}.Rand()
		if draw > bestDraw {
			best, bestDraw = a, draw
		}
	}
	return best
}

// greedy returns the action with the highest posterior mean; ties go to the
// lowest ordinal.
func greedy(st *regimeState, key string) models.Action {
	best := models.Actions[0]
	bestMean := -1.0
	for _, a := range models.Actions {
		m := st.posterior(models.PolicyEntryKey(key, a)).Mean()
		if m > bestMean {
			best, bestMean = a, m
		}
	}
	return best
}

// Update applies one reward. It is a no-op for frozen regimes.
func (p *Policy) Update(regime string, state models.DecisionState, action models.Action, reward float64) error {
	b := p.Begin()
	defer b.Abort()
	if err := b.Apply(models.PendingOutcome{
		Regime:   regime,
		StateKey: state.Key(),
		Action:   action,
		Reward:   reward,
	}); err != nil {
		return err
	}
	b.Commit()
	return nil
}

// Freeze stops learning for a regime. Selection becomes greedy.
func (p *Policy) Freeze(regime string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.load(regime).clone()
	st.frozen = true
	p.slotFor(regime).cur.Store(st)
	p.metrics.RecordFrozen(regime, true)
	p.logger.Warn("regime policy frozen", applogger.String("regime", regime), applogger.String("trigger", "manual"))
}

// Unfreeze resumes learning and resets the degradation baseline.
func (p *Policy) Unfreeze(regime string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.load(regime).clone()
	st.frozen = false
	st.hasBaseline = false
	st.baseline = 0
	st.window = st.window[:0]
	p.slotFor(regime).cur.Store(st)
	p.metrics.RecordFrozen(regime, false)
	p.logger.Info("regime policy unfrozen", applogger.String("regime", regime))
}

// IsFrozen reports the regime's frozen flag.
func (p *Policy) IsFrozen(regime string) bool {
	return p.load(regime).frozen
}

// Export serializes the regime's posterior table.
func (p *Policy) Export(regime string) ([]byte, error) {
	b, err := json.Marshal(p.load(regime).entries)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", regime, err)
	}
	return b, nil
}

// Restore overwrites the regime's posteriors with a previously exported
// table. The frozen flag and baseline are left as they are.
func (p *Policy) Restore(regime string, data []byte) error {
	table := models.PolicyTable{}
	if err := json.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("restore %s: %w", regime, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.load(regime).clone()
	st.entries = table
	p.slotFor(regime).cur.Store(st)
	return nil
}

// Stats returns a copy of the regime's posteriors and freeze bookkeeping.
func (p *Policy) Stats(regime string) models.PolicyStats {
	st := p.load(regime)
	return models.PolicyStats{
		Regime:      regime,
		Frozen:      st.frozen,
		Baseline:    st.baseline,
		HasBaseline: st.hasBaseline,
		RollingMean: st.rollingMean(),
		Samples:     len(st.window),
		Entries:     st.entries.Clone(),
	}
}

// Regimes lists every regime that has been written at least once.
func (p *Policy) Regimes() []string {
	var out []string
	p.slots.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out
}
