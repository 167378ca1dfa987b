package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/options-simulator/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type frame struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome struct {
		Event string `json:"event"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, EventWelcome, welcome.Event)
	return conn
}

func TestHubBroadcastsPriceAndSettlement(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.OnPriceUpdate(service.Quote{InstrumentID: 1, Symbol: "EURUSD", Price: decimal.RequireFromString("1.085")})

	var msg frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventPriceUpdate, msg.Event)
	assert.Equal(t, "EURUSD", msg.Data["symbol"])
	assert.Equal(t, "1.085", msg.Data["price"])

	hub.OnTradeSettled(service.SettlementEvent{Credited: decimal.NewFromInt(90), Balance: decimal.NewFromInt(1040)})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventTradeSettled, msg.Event)
	assert.Equal(t, "1040", msg.Data["balance"])
}

func TestHubDropsClientOnDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer*2; i++ {
			hub.Publish(EventPriceUpdate, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}
