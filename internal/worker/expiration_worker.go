package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/options-simulator/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Settler settles a single trade. Settling a trade that is already
// completed must be a no-op.
type Settler interface {
	Settle(ctx context.Context, tradeID uint) error
}

// ExpiredTradeLister lists active trades whose expiration time has passed
type ExpiredTradeLister interface {
	GetExpired(ctx context.Context, now time.Time, limit int) ([]models.Trade, error)
}

// ExpirationWorker periodically settles every active trade past its
// expiration time. It keeps no state besides its ticker: a trade that fails
// to settle stays active and is picked up again on the next tick.
type ExpirationWorker struct {
	settler     Settler
	trades      ExpiredTradeLister
	interval    time.Duration
	concurrency int
	batchSize   int
	now         func() time.Time
	logger      *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

// SweepResult counts the outcome of one sweep
type SweepResult struct {
	Expired int
	Settled int
	Failed  int
}

// NewExpirationWorker creates a new expiration worker
func NewExpirationWorker(
	settler Settler,
	trades ExpiredTradeLister,
	interval time.Duration,
	concurrency int,
	batchSize int,
	logger *zap.Logger,
) *ExpirationWorker {
	if interval <= 0 {
		interval = 1 * time.Second // Default 1 second sweep interval
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ExpirationWorker{
		settler:     settler,
		trades:      trades,
		interval:    interval,
		concurrency: concurrency,
		batchSize:   batchSize,
		now:         time.Now,
		logger:      logger.Named("expiration"),
		stopChan:    make(chan struct{}),
	}
}

// SetClock replaces the time source used to decide expiration
func (w *ExpirationWorker) SetClock(now func() time.Time) {
	w.now = now
}

// Start runs the sweep loop until ctx is cancelled or Stop is called.
// A sweep in progress finishes before Start returns.
func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("Expiration worker started",
		zap.Duration("interval", w.interval),
		zap.Int("concurrency", w.concurrency),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-ctx.Done():
			w.logger.Info("Expiration worker stopped", zap.Error(ctx.Err()))
			return
		case <-w.stopChan:
			w.logger.Info("Expiration worker stopped")
			return
		}
	}
}

// Stop stops the sweep loop. It is safe to call more than once.
func (w *ExpirationWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

// Sweep settles every trade that has expired at the current time.
// Failures are logged per trade and never abort the sweep.
func (w *ExpirationWorker) Sweep(ctx context.Context) SweepResult {
	now := w.now().UTC()

	trades, err := w.trades.GetExpired(ctx, now, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to list expired trades", zap.Error(err))
		return SweepResult{}
	}

	var settled, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(w.concurrency)

	expired := 0
	for i := range trades {
		trade := trades[i]
		if !trade.IsActive() || !trade.IsExpired(now) {
			continue
		}
		expired++

		g.Go(func() error {
			if err := w.settle(ctx, trade.ID); err != nil {
				failed.Add(1)
				w.logger.Error("Failed to settle trade",
					zap.Uint("trade_id", trade.ID),
					zap.Uint("user_id", trade.UserID),
					zap.Uint("instrument_id", trade.InstrumentID),
					zap.Error(err),
				)
				return nil
			}
			settled.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := SweepResult{
		Expired: expired,
		Settled: int(settled.Load()),
		Failed:  int(failed.Load()),
	}
	if result.Settled > 0 || result.Failed > 0 {
		w.logger.Info("Sweep finished",
			zap.Int("expired", result.Expired),
			zap.Int("settled", result.Settled),
			zap.Int("failed", result.Failed),
		)
	}
	return result
}

// settle shields the sweep from a panicking settlement
func (w *ExpirationWorker) settle(ctx context.Context, tradeID uint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("settlement panicked: %v", r)
		}
	}()
	return w.settler.Settle(ctx, tradeID)
}
