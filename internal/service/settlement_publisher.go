package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	tradeSettledChannel = "trade_settled"
	publishTimeout      = 2 * time.Second
)

// Publisher is the part of a redis client used to fan events out
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// SettlementPublisher publishes every settlement as JSON on the trade_settled
// redis channel. Publish failures are logged and never reach the engine.
type SettlementPublisher struct {
	client Publisher
	logger *zap.Logger
}

// NewSettlementPublisher creates a new SettlementPublisher
func NewSettlementPublisher(client Publisher, logger *zap.Logger) *SettlementPublisher {
	return &SettlementPublisher{
		client: client,
		logger: logger.Named("settlement_publisher"),
	}
}

// OnTradeSettled implements SettlementListener
func (p *SettlementPublisher) OnTradeSettled(event SettlementEvent) {
	if p == nil || p.client == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to encode settlement event", zap.Uint("trade_id", event.Trade.ID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, tradeSettledChannel, payload).Err(); err != nil {
		p.logger.Warn("Failed to publish settlement event", zap.Uint("trade_id", event.Trade.ID), zap.Error(err))
	}
}

// SettlementListeners fans a settlement event out to several listeners in order
type SettlementListeners []SettlementListener

// OnTradeSettled implements SettlementListener
func (ls SettlementListeners) OnTradeSettled(event SettlementEvent) {
	for _, l := range ls {
		if l != nil {
			l.OnTradeSettled(event)
		}
	}
}
