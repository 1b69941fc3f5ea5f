package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/internal/service/ratelimit"
	"TradeGate/internal/services/bandit"
	"TradeGate/internal/services/scalp"
	"TradeGate/internal/services/sizing"
	"TradeGate/pkg/config"
	applogger "TradeGate/pkg/logger"
)

// DecisionRecord remembers what was decided for a symbol until the trade closes.
type DecisionRecord struct {
	Symbol    string        `json:"symbol"`
	Regime    string        `json:"regime"`
	StateKey  string        `json:"state_key"`
	Action    models.Action `json:"action"`
	DecidedAt time.Time     `json:"decided_at"`
}

// Orchestrator turns proposals into sizing decisions. Calls for one symbol
// are expected to arrive in order from that symbol's worker.
type Orchestrator struct {
	sizingCfg config.SizingConfig
	levCfg    config.LeverageConfig
	states    *sizing.StateBuilder
	gate      *sizing.ReleverageGate
	policy    *bandit.Policy
	scalps    *scalp.Manager
	audit     drepo.AuditRecorder
	metrics   drepo.Metrics
	logger    *applogger.Logger
	limiter   *ratelimit.Limiter
	now       func() time.Time

	mu      sync.Mutex
	history []models.CapitalState
	ledger  map[string]DecisionRecord
}

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(l *applogger.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithDenialLimiter throttles gate denial logs per regime.
func WithDenialLimiter(l *ratelimit.Limiter) OrchestratorOption {
	return func(o *Orchestrator) { o.limiter = l }
}

// NewOrchestrator validates the sizing parameters and wires the decision core.
func NewOrchestrator(cfg *config.Config, policy *bandit.Policy, scalps *scalp.Manager, audit drepo.AuditRecorder, metrics drepo.Metrics, opts ...OrchestratorOption) (*Orchestrator, error) {
	if err := sizing.ValidateSizing(cfg.Sizing.MarginPerUnit, cfg.Sizing.MinUnits, cfg.Sizing.MaxUnits); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		sizingCfg: cfg.Sizing,
		levCfg:    cfg.Leverage,
		states:    sizing.NewStateBuilder(cfg.States),
		gate:      sizing.NewReleverageGate(cfg.Leverage),
		policy:    policy,
		scalps:    scalps,
		audit:     audit,
		metrics:   metrics,
		logger:    applogger.Nop(),
		limiter:   ratelimit.New(),
		now:       func() time.Time { return time.Now().UTC() },
		ledger:    make(map[string]DecisionRecord),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Decide runs one proposal through state building, policy selection, sizing,
// the re-leverage gate and the scalp manager.
func (o *Orchestrator) Decide(ctx context.Context, p models.Proposal, mc models.MarketContext) (models.SizingDecision, error) {
	if err := ctx.Err(); err != nil {
		return models.SizingDecision{}, err
	}
	if p.Symbol == "" {
		return models.SizingDecision{}, errors.New("decide: empty symbol")
	}
	if mc.Regime == "" {
		return models.SizingDecision{}, fmt.Errorf("decide %s: empty regime", p.Symbol)
	}
	start := time.Now()
	at := mc.Time
	if at.IsZero() {
		at = o.now()
	}

	state := o.states.Build(mc)
	selected := o.policy.Select(mc.Regime, state)
	dec := models.SizingDecision{
		Symbol:         p.Symbol,
		Action:         selected,
		SelectedAction: selected,
		State:          state,
		DecidedAt:      at,
	}

	if selected == models.ActionHold {
		o.finish(&dec, mc, "hold")
		o.metrics.RecordLatency("decide", time.Since(start).Seconds())
		return dec, nil
	}

	base, err := sizing.Size(o.sizingCfg.Capital, o.sizingCfg.MarginPerUnit, o.sizingCfg.MinUnits, o.sizingCfg.MaxUnits)
	if err != nil {
		o.metrics.RecordError("sizing")
		return models.SizingDecision{}, fmt.Errorf("decide %s: %w", p.Symbol, err)
	}
	dec.BaseUnits = base

	reason := "base"
	switch selected {
	case models.ActionEnterBase:
		dec.FinalUnits = base
	case models.ActionEnterReduced:
		dec.FinalUnits = sizing.ReducedUnits(base, o.sizingCfg.ReductionFactor)
		reason = "reduced"
	case models.ActionEnterLeveraged:
		reason = o.leverage(&dec, p, mc, at)
	}

	o.finish(&dec, mc, reason)
	o.metrics.RecordLatency("decide", time.Since(start).Seconds())
	return dec, nil
}

// leverage evaluates the gate and opens the scalp. Any denial or rejection
// downgrades the decision to ENTER_BASE.
func (o *Orchestrator) leverage(dec *models.SizingDecision, p models.Proposal, mc models.MarketContext, at time.Time) string {
	res := o.gate.Evaluate(sizing.GateInput{
		Regime:            mc.Regime,
		Confidence:        mc.GlobalConfidence,
		Disagreement:      mc.EnsembleDisagreement,
		LiquidityStrength: mc.LiquidityStrength,
		DailyProfit:       mc.DailyProfit,
		TransitionActive:  mc.TransitionActive,
		FeatureEnabled:    o.levCfg.Enabled,
	})
	o.audit.Record(newAuditRecord(models.AuditGate, p.Symbol, mc.Regime, at, map[string]interface{}{
		"approved":     res.Approved,
		"reason":       res.Reason,
		"failed_check": res.FailedCheck,
	}))

	if !res.Approved {
		o.metrics.RecordGateDenial(res.FailedCheck)
		if o.limiter.Allow("gate:"+mc.Regime, 5, 1) {
			o.logger.Info("leverage denied",
				applogger.String("symbol", p.Symbol),
				applogger.String("regime", mc.Regime),
				applogger.String("check", res.FailedCheck),
				applogger.String("reason", res.Reason),
			)
		}
		return o.downgrade(dec, res.Reason)
	}

	extra := o.levCfg.MaxExtraUnits
	if extra <= 0 {
		return o.downgrade(dec, "max_extra_units is zero")
	}
	if p.EntryPriceHint <= 0 {
		return o.downgrade(dec, "entry price hint required for scalp levels")
	}
	if _, err := o.scalps.Open(p.Symbol, p.Side, p.EntryPriceHint, extra, at); err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyOpen):
			return o.downgrade(dec, "scalp already open")
		case errors.Is(err, models.ErrCooldownActive):
			return o.downgrade(dec, "scalp cooldown active")
		default:
			o.metrics.RecordError("scalp_open")
			return o.downgrade(dec, err.Error())
		}
	}
	dec.ExtraUnits = extra
	dec.FinalUnits = dec.BaseUnits + extra
	dec.ScalpOpened = true
	return "leverage approved"
}

func (o *Orchestrator) downgrade(dec *models.SizingDecision, reason string) string {
	r := reason
	dec.Action = models.ActionEnterBase
	dec.DenyReason = &r
	dec.ExtraUnits = 0
	dec.FinalUnits = dec.BaseUnits
	return reason
}

// finish appends the capital state, updates the ledger and emits audit records.
func (o *Orchestrator) finish(dec *models.SizingDecision, mc models.MarketContext, reason string) {
	cs := models.CapitalState{
		Symbol:         dec.Symbol,
		Capital:        o.sizingCfg.Capital,
		MarginPerUnit:  o.sizingCfg.MarginPerUnit,
		BaseUnits:      dec.BaseUnits,
		ExtraUnits:     dec.ExtraUnits,
		FinalUnits:     dec.FinalUnits,
		ApprovalReason: reason,
		RecordedAt:     dec.DecidedAt,
	}

	o.mu.Lock()
	o.history = append(o.history, cs)
	if limit := o.sizingCfg.HistorySize; limit > 0 && len(o.history) > limit {
		o.history = append([]models.CapitalState(nil), o.history[len(o.history)-limit:]...)
	}
	if dec.IsTrade() {
		o.ledger[dec.Symbol] = DecisionRecord{
			Symbol:    dec.Symbol,
			Regime:    mc.Regime,
			StateKey:  dec.State.Key(),
			Action:    dec.Action,
			DecidedAt: dec.DecidedAt,
		}
	}
	o.mu.Unlock()

	o.metrics.RecordDecision(mc.Regime, dec.Action)
	payload := map[string]interface{}{
		"action":          string(dec.Action),
		"selected_action": string(dec.SelectedAction),
		"state_key":       dec.State.Key(),
		"base_units":      dec.BaseUnits,
		"extra_units":     dec.ExtraUnits,
		"final_units":     dec.FinalUnits,
	}
	if dec.DenyReason != nil {
		payload["deny_reason"] = *dec.DenyReason
	}
	o.audit.Record(newAuditRecord(models.AuditDecision, dec.Symbol, mc.Regime, dec.DecidedAt, payload))
	o.logger.Debug("decision",
		applogger.String("symbol", dec.Symbol),
		applogger.String("regime", mc.Regime),
		applogger.String("action", string(dec.Action)),
		applogger.Int("final_units", dec.FinalUnits),
	)
}

// TakeDecision removes and returns the recorded decision for symbol.
func (o *Orchestrator) TakeDecision(symbol string) (DecisionRecord, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.ledger[symbol]
	if ok {
		delete(o.ledger, symbol)
	}
	return rec, ok
}

// CapitalHistory returns up to limit most recent capital states, oldest first.
// A non-positive limit returns everything retained.
func (o *Orchestrator) CapitalHistory(limit int) []models.CapitalState {
	o.mu.Lock()
	defer o.mu.Unlock()
	h := o.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]models.CapitalState(nil), h...)
}
