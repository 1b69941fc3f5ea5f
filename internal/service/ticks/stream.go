package ticks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	applogger "TradeGate/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements a TickStream backed by a market-data WebSocket.
type Stream struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger
	dialer         *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a tick stream over websocketURL for symbols.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, logger *applogger.Logger) drepo.TickStream {
	if logger == nil {
		logger = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger.Component("tick-stream"),
		dialer:         websocket.DefaultDialer,
	}
}

func (s *Stream) endpoint() (string, error) {
	u, err := url.Parse(s.websocketURL)
	if err != nil {
		return "", fmt.Errorf("tick stream url: %w", err)
	}
	if s.apiKey != "" {
		q := u.Query()
		q.Set("token", s.apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	u, err := s.endpoint()
	if err != nil {
		return err
	}
	conn, _, err := s.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("tick stream connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.logger.Info("connected", applogger.String("url", s.websocketURL))
	return nil
}

// Subscribe subscribes to configured symbols.
func (s *Stream) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return errors.New("tick stream not connected")
	}
	for _, sym := range s.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := s.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
		s.logger.Debug("subscribed", applogger.String("symbol", sym))
	}
	return nil
}

type wireTick struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	T int64   `json:"t"` // ms
}

type wireMessage struct {
	Type string     `json:"type"`
	Data []wireTick `json:"data"`
}

// decodeFrame turns one frame into ticks. Frames that are not price updates
// yield nothing.
func decodeFrame(b []byte) []*models.Tick {
	var m wireMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	if m.Type != "trade" && m.Type != "tick" {
		return nil
	}
	out := make([]*models.Tick, 0, len(m.Data))
	for _, d := range m.Data {
		if d.S == "" || d.P <= 0 {
			continue
		}
		out = append(out, &models.Tick{
			Symbol: d.S,
			Price:  d.P,
			High:   d.H,
			Low:    d.L,
			Time:   time.UnixMilli(d.T).UTC(),
		})
	}
	return out
}

// Read streams ticks and errors until the connection fails or ctx ends.
// Both channels are closed when the read loop exits.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.conn == conn && conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				s.mu.Unlock()
			}
		}
	}()

	go func() {
		defer cancel()
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- errors.New("tick stream conn nil")
			return
		}
		for {
			if loopCtx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if loopCtx.Err() == nil {
					errs <- fmt.Errorf("tick stream read: %w", err)
				}
				return
			}
			for _, t := range decodeFrame(b) {
				select {
				case ticks <- t:
				default:
					s.logger.Warn("tick dropped on backpressure", applogger.String("symbol", t.Symbol))
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes and reconnects after the configured delay.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
