package ticks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	ticks := decodeFrame([]byte(`{"type":"tick","data":[{"s":"EURUSD","p":1.085,"h":1.086,"l":1.084,"t":1700000000000},{"s":"","p":1}]}`))
	require.Len(t, ticks, 1)
	assert.Equal(t, "EURUSD", ticks[0].Symbol)
	assert.Equal(t, 1.086, ticks[0].High)
	assert.Equal(t, int64(1700000000), ticks[0].Time.Unix())

	assert.Empty(t, decodeFrame([]byte(`{"type":"ping"}`)))
	assert.Empty(t, decodeFrame([]byte(`not json`)))
}

func TestStreamSubscribeAndRead(t *testing.T) {
	subscribed := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub["symbol"]
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"EURUSD","p":1.09,"t":1700000000000}]}`))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := New("secret", wsURL, []string{"EURUSD"}, 10*time.Millisecond, time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	assert.True(t, s.IsConnected())
	require.NoError(t, s.Subscribe(ctx))
	assert.Equal(t, "EURUSD", <-subscribed)

	ticks, _ := s.Read(ctx)
	select {
	case tk := <-ticks:
		require.NotNil(t, tk)
		assert.Equal(t, 1.09, tk.Price)
	case <-ctx.Done():
		t.Fatal("no tick received")
	}

	_ = s.Close()
	assert.False(t, s.IsConnected())
}

func TestSubscribeRequiresConnection(t *testing.T) {
	s := New("", "ws://127.0.0.1:1", []string{"EURUSD"}, 0, 0, nil)
	assert.Error(t, s.Subscribe(context.Background()))
}
