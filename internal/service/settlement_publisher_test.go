package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/options-simulator/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type publishedMessage struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	payload, _ := message.([]byte)
	p.messages = append(p.messages, publishedMessage{channel: channel, payload: payload})
	cmd.SetVal(1)
	return cmd
}

func TestSettlementPublisherPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	p := NewSettlementPublisher(pub, zap.NewNop())

	p.OnTradeSettled(SettlementEvent{
		Trade:    models.Trade{ID: 7, Symbol: "EURUSD", Result: models.TradeResultWin},
		Credited: decimal.NewFromInt(90),
		Balance:  decimal.NewFromInt(1040),
	})

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "trade_settled", pub.messages[0].channel)

	var got SettlementEvent
	require.NoError(t, json.Unmarshal(pub.messages[0].payload, &got))
	assert.Equal(t, uint(7), got.Trade.ID)
	assert.Equal(t, models.TradeResultWin, got.Trade.Result)
	assert.True(t, got.Credited.Equal(decimal.NewFromInt(90)))
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1040)))
}

func TestSettlementPublisherLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewSettlementPublisher(&fakePublisher{err: errors.New("connection refused")}, zap.New(core))

	assert.NotPanics(t, func() {
		p.OnTradeSettled(SettlementEvent{Trade: models.Trade{ID: 3}})
	})
	assert.Equal(t, 1, logs.FilterMessage("Failed to publish settlement event").Len())
}

func TestSettlementPublisherWithoutClient(t *testing.T) {
	var nilPublisher *SettlementPublisher
	assert.NotPanics(t, func() {
		nilPublisher.OnTradeSettled(SettlementEvent{})
		NewSettlementPublisher(nil, zap.NewNop()).OnTradeSettled(SettlementEvent{})
	})
}

func TestSettleNotifiesEveryListener(t *testing.T) {
	f := newEngineFixture(t)
	pub := &fakePublisher{}
	f.engine.SetSettlementListener(SettlementListeners{f, nil, NewSettlementPublisher(pub, zap.NewNop())})

	trade := f.open(t, models.TradeTypeSell, "50")
	f.clock.Advance(61 * time.Second)
	f.prices.Set(f.eurusd.ID, "1.0700")
	require.NoError(t, f.engine.Settle(context.Background(), trade.ID))
	require.NoError(t, f.engine.Settle(context.Background(), trade.ID))

	require.Len(t, f.settled, 1)
	require.Len(t, pub.messages, 1)

	var got SettlementEvent
	require.NoError(t, json.Unmarshal(pub.messages[0].payload, &got))
	assert.Equal(t, trade.ID, got.Trade.ID)
	assert.Equal(t, models.TradeStatusCompleted, got.Trade.Status)
	assert.Equal(t, models.TradeResultWin, got.Trade.Result)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1040)))
}
