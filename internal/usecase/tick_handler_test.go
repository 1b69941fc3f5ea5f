package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/internal/services/scalp"
	pkgkafka "TradeGate/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickHandlerClosesScalp(t *testing.T) {
	cfg := testConfig()
	audit := &recordingAudit{}
	m := scalp.NewManager(cfg.Scalp, scalp.WithEventHandler(ScalpAuditHandler(audit)))
	d := NewDispatcher(4, nil)
	defer d.Close(context.Background())
	h := NewTickHandler("ticks", d, m, drepo.NoopMetrics{}, nil)

	_, err := m.Open("EURUSD", models.SideBuy, 1.0850, 1, testNow)
	require.NoError(t, err)

	res, err := h.Apply(context.Background(), models.Tick{Symbol: "EURUSD", Price: 1.0860, Time: testNow.Add(time.Minute)})
	require.NoError(t, err)
	assert.False(t, res.Closed)

	res, err = h.Apply(context.Background(), models.Tick{Symbol: "EURUSD", Price: 1.0805, Time: testNow.Add(2 * time.Minute)})
	require.NoError(t, err)
	require.True(t, res.Closed)
	require.NotNil(t, res.Event)
	assert.Equal(t, models.ScalpEventSLHit, res.Event.Type)
	assert.InDelta(t, -0.004, res.Event.PnL, 1e-9)

	assert.Equal(t, []models.AuditKind{models.AuditScalp, models.AuditScalp}, audit.kinds())
	assert.Equal(t, "SL_HIT", audit.byKind(models.AuditScalp)[1].Payload["event_type"])
}

func TestTickHandlerHandle(t *testing.T) {
	cfg := testConfig()
	m := scalp.NewManager(cfg.Scalp)
	d := NewDispatcher(4, nil)
	defer d.Close(context.Background())
	h := NewTickHandler("ticks", d, m, drepo.NoopMetrics{}, nil)

	_, err := m.Open("EURUSD", models.SideSell, 1.0850, 1, testNow)
	require.NoError(t, err)

	b, err := json.Marshal(models.Tick{Symbol: "EURUSD", Price: 1.0769, Time: testNow.Add(time.Minute)})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))

	_, err = m.Position("EURUSD")
	assert.ErrorIs(t, err, models.ErrNoPosition)

	err = h.Handle(context.Background(), []byte("nope"))
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"current_price":-1,"symbol":"EURUSD"}`)))
}

func TestTickHandlerRejectsEmptySymbol(t *testing.T) {
	cfg := testConfig()
	d := NewDispatcher(1, nil)
	defer d.Close(context.Background())
	h := NewTickHandler("ticks", d, scalp.NewManager(cfg.Scalp), drepo.NoopMetrics{}, nil)
	_, err := h.Apply(context.Background(), models.Tick{Price: 1})
	assert.Error(t, err)
}
