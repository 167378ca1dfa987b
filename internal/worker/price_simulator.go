package worker

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/options-simulator/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var minSimulatedPrice = decimal.RequireFromString("0.0001")

// PriceStore is the instrument price store the simulator writes to
type PriceStore interface {
	ActiveInstruments(ctx context.Context) ([]models.Instrument, error)
	Update(ctx context.Context, inst *models.Instrument, price decimal.Decimal, at time.Time) error
}

// PriceSimulator moves the price of every active instrument by a random
// step on each tick
type PriceSimulator struct {
	store      PriceStore
	interval   time.Duration
	volatility decimal.Decimal
	precision  int32
	random     func() float64
	now        func() time.Time
	logger     *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewPriceSimulator creates a new price simulator. A volatility of 0.001
// moves each price by at most 0.05% per tick.
func NewPriceSimulator(store PriceStore, interval time.Duration, volatility float64, precision int32, logger *zap.Logger) *PriceSimulator {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &PriceSimulator{
		store:      store,
		interval:   interval,
		volatility: decimal.NewFromFloat(volatility),
		precision:  precision,
		random:     rand.Float64,
		now:        time.Now,
		logger:     logger.Named("simulator"),
		stopChan:   make(chan struct{}),
	}
}

// SetRandom replaces the source of uniform [0,1) values
func (s *PriceSimulator) SetRandom(random func() float64) {
	s.random = random
}

// Start runs the tick loop until ctx is cancelled or Stop is called
func (s *PriceSimulator) Start(ctx context.Context) {
	s.logger.Info("Price simulator started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			s.logger.Info("Price simulator stopped")
			return
		case <-s.stopChan:
			s.logger.Info("Price simulator stopped")
			return
		}
	}
}

// Stop stops the tick loop
func (s *PriceSimulator) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Tick moves every active instrument once and returns how many were updated
func (s *PriceSimulator) Tick(ctx context.Context) int {
	instruments, err := s.store.ActiveInstruments(ctx)
	if err != nil {
		s.logger.Error("Failed to load instruments", zap.Error(err))
		return 0
	}

	at := s.now()
	updated := 0
	for i := range instruments {
		inst := &instruments[i]
		price := s.NextPrice(inst.CurrentPrice)
		if err := s.store.Update(ctx, inst, price, at); err != nil {
			s.logger.Warn("Failed to update price",
				zap.Uint("instrument_id", inst.ID),
				zap.String("symbol", inst.Symbol),
				zap.Error(err),
			)
			continue
		}
		updated++
	}
	return updated
}

// NextPrice returns current * (1 + (r - 0.5) * volatility), rounded to the
// configured precision and never below 0.0001
func (s *PriceSimulator) NextPrice(current decimal.Decimal) decimal.Decimal {
	step := decimal.NewFromFloat(s.random() - 0.5).Mul(s.volatility)
	next := current.Mul(decimal.NewFromInt(1).Add(step)).Round(s.precision)
	if next.LessThan(minSimulatedPrice) {
		return minSimulatedPrice
	}
	return next
}
