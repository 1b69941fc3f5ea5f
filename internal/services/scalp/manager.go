package scalp

import (
	"fmt"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/domain/repository"
	"TradeGate/pkg/config"
	applogger "TradeGate/pkg/logger"
)

// EventHandler receives every lifecycle event after the transition is applied.
type EventHandler func(models.ScalpEvent)

// Manager owns the leveraged extra allocation of each symbol:
// OPEN -> CLOSED_TP | CLOSED_SL | CLOSED_TIMEOUT.
type Manager struct {
	cfg     config.ScalpConfig
	logger  *applogger.Logger
	metrics repository.Metrics
	onEvent EventHandler

	mu        sync.RWMutex
	open      map[string]*models.ScalpPosition
	cooldowns map[string]models.CooldownWindow
	closed    []models.ScalpPosition
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *applogger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithMetrics(r repository.Metrics) Option {
	return func(m *Manager) { m.metrics = r }
}

func WithEventHandler(h EventHandler) Option {
	return func(m *Manager) { m.onEvent = h }
}

// NewManager creates a manager with no positions.
func NewManager(cfg config.ScalpConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		logger:    applogger.Nop(),
		metrics:   repository.NoopMetrics{},
		open:      make(map[string]*models.ScalpPosition),
		cooldowns: make(map[string]models.CooldownWindow),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Levels returns the side-aware take-profit and stop-loss prices.
func (m *Manager) Levels(side models.Side, entry float64) (tp, sl float64) {
	dir := side.Direction()
	tp = entry + dir*m.cfg.TPPoints*m.cfg.PointValue
	sl = entry - dir*m.cfg.SLPoints*m.cfg.PointValue
	return tp, sl
}

// Open starts a scalp for symbol. It fails with ErrAlreadyOpen or
// ErrCooldownActive.
func (m *Manager) Open(symbol string, side models.Side, entry float64, extraUnits int, openedAt time.Time) (models.ScalpPosition, error) {
	if extraUnits <= 0 {
		return models.ScalpPosition{}, fmt.Errorf("open scalp %s: extra units must be positive, got %d", symbol, extraUnits)
	}

	m.mu.Lock()
	if _, ok := m.open[symbol]; ok {
		m.mu.Unlock()
		m.logger.Warn("scalp open rejected", applogger.String("symbol", symbol), applogger.String("reason", "already_open"))
		return models.ScalpPosition{}, fmt.Errorf("open scalp %s: %w", symbol, models.ErrAlreadyOpen)
	}
	if cd, ok := m.cooldowns[symbol]; ok {
		if cd.Active(openedAt) {
			m.mu.Unlock()
			m.logger.Warn("scalp open rejected",
				applogger.String("symbol", symbol),
				applogger.String("reason", "cooldown"),
				applogger.Time("until", cd.Until),
			)
			return models.ScalpPosition{}, fmt.Errorf("open scalp %s until %s: %w", symbol, cd.Until.Format(time.RFC3339), models.ErrCooldownActive)
		}
		delete(m.cooldowns, symbol)
	}

	tp, sl := m.Levels(side, entry)
	pos := &models.ScalpPosition{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entry,
		TPPrice:    tp,
		SLPrice:    sl,
		ExtraUnits: extraUnits,
		OpenedAt:   openedAt,
		Status:     models.ScalpOpen,
	}
	m.open[symbol] = pos
	out := *pos
	m.mu.Unlock()

	m.logger.Info("scalp opened",
		applogger.String("symbol", symbol),
		applogger.String("side", string(side)),
		applogger.Float64("entry", entry),
		applogger.Float64("tp", tp),
		applogger.Float64("sl", sl),
		applogger.Int("extra_units", extraUnits),
	)
	m.emit(models.ScalpEvent{Symbol: symbol, Type: models.ScalpEventOpened, Price: entry, At: openedAt})
	return out, nil
}

// Update feeds one tick. It reports whether the tick closed the open position.
// A tick for a symbol without an open position is ignored.
func (m *Manager) Update(tick models.Tick) (bool, *models.ScalpEvent, error) {
	if tick.Symbol == "" {
		return false, nil, fmt.Errorf("scalp update: empty symbol")
	}
	if tick.Price <= 0 {
		return false, nil, fmt.Errorf("scalp update %s: non-positive price %v", tick.Symbol, tick.Price)
	}

	m.mu.Lock()
	pos, ok := m.open[tick.Symbol]
	if !ok {
		m.mu.Unlock()
		return false, nil, nil
	}

	status, exit, evType := m.evaluate(pos, tick)
	if status == models.ScalpOpen {
		m.mu.Unlock()
		return false, nil, nil
	}

	pos.Status = status
	pos.ExitPrice = exit
	pos.ClosedAt = tick.Time
	delete(m.open, tick.Symbol)
	m.remember(*pos)

	if status == models.ScalpClosedTP && m.cfg.ProtectProfit && m.cfg.CooldownSeconds > 0 {
		m.cooldowns[tick.Symbol] = models.CooldownWindow{
			Symbol: tick.Symbol,
			Until:  tick.Time.Add(time.Duration(m.cfg.CooldownSeconds) * time.Second),
		}
	}
	closed := *pos
	m.mu.Unlock()

	ev := models.ScalpEvent{
		Symbol:      closed.Symbol,
		Type:        evType,
		PnL:         (closed.ExitPrice - closed.EntryPrice) * closed.Side.Direction() * float64(closed.ExtraUnits),
		HoldSeconds: closed.ClosedAt.Sub(closed.OpenedAt).Seconds(),
		Price:       closed.ExitPrice,
		At:          closed.ClosedAt,
	}
	m.logger.Info("scalp closed",
		applogger.String("symbol", ev.Symbol),
		applogger.String("status", string(closed.Status)),
		applogger.Float64("exit", ev.Price),
		applogger.Float64("pnl", ev.PnL),
		applogger.Float64("hold_seconds", ev.HoldSeconds),
	)
	m.emit(ev)
	return true, &ev, nil
}

// evaluate checks TP, then SL, then the hold timeout. Callers hold m.mu.
func (m *Manager) evaluate(pos *models.ScalpPosition, tick models.Tick) (models.ScalpStatus, float64, models.ScalpEventType) {
	high, low := tick.High, tick.Low
	if high <= 0 {
		high = tick.Price
	}
	if low <= 0 {
		low = tick.Price
	}

	if pos.Side == models.SideSell {
		if low <= pos.TPPrice {
			return models.ScalpClosedTP, pos.TPPrice, models.ScalpEventTPHit
		}
		if high >= pos.SLPrice {
			return models.ScalpClosedSL, pos.SLPrice, models.ScalpEventSLHit
		}
	} else {
		if high >= pos.TPPrice {
			return models.ScalpClosedTP, pos.TPPrice, models.ScalpEventTPHit
		}
		if low <= pos.SLPrice {
			return models.ScalpClosedSL, pos.SLPrice, models.ScalpEventSLHit
		}
	}

	maxHold := time.Duration(m.cfg.MaxHoldSeconds) * time.Second
	if tick.Time.Sub(pos.OpenedAt) >= maxHold {
		return models.ScalpClosedTimeout, tick.Price, models.ScalpEventTimeout
	}
	return models.ScalpOpen, 0, ""
}

// remember appends to the bounded closed history. Callers hold m.mu.
func (m *Manager) remember(pos models.ScalpPosition) {
	m.closed = append(m.closed, pos)
	if limit := m.cfg.HistorySize; limit > 0 && len(m.closed) > limit {
		m.closed = m.closed[len(m.closed)-limit:]
	}
}

func (m *Manager) emit(ev models.ScalpEvent) {
	m.metrics.RecordScalpEvent(ev.Symbol, ev.Type)
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

// Position returns the open position for symbol or ErrNoPosition.
func (m *Manager) Position(symbol string) (models.ScalpPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos, ok := m.open[symbol]; ok {
		return *pos, nil
	}
	return models.ScalpPosition{}, fmt.Errorf("%s: %w", symbol, models.ErrNoPosition)
}

// Cooldown returns the symbol's cooldown window if it is active at t.
func (m *Manager) Cooldown(symbol string, t time.Time) (models.CooldownWindow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cd, ok := m.cooldowns[symbol]
	if !ok || !cd.Active(t) {
		return models.CooldownWindow{}, false
	}
	return cd, true
}

// History returns closed positions for symbol, oldest first. An empty
// symbol returns every closed position.
func (m *Manager) History(symbol string) []models.ScalpPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ScalpPosition, 0, len(m.closed))
	for _, p := range m.closed {
		if symbol == "" || p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}
