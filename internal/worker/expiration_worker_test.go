package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/options-simulator/internal/config"
	"github.com/options-simulator/internal/models"
	"github.com/options-simulator/internal/repository"
	"github.com/options-simulator/internal/service"
	"github.com/options-simulator/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var start = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func TestSweepSettlesStaggeredTrades(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repository.New(db)
	prices := testutil.NewPrices()
	clock := testutil.NewClock(start)
	engine := service.NewTradingService(repos, prices, service.NewLedger(clock.Now), config.Default().Trading, zap.NewNop(), clock.Now)

	user := testutil.CreateUser(t, db, "alice", "1000")
	inst := testutil.CreateInstrument(t, db, "EURUSD", "1.0800", true)
	prices.Set(inst.ID, "1.0800")

	const n = 6
	for i := 1; i <= n; i++ {
		_, err := engine.OpenTrade(context.Background(), &service.OpenTradeRequest{
			UserID:          user.ID,
			InstrumentID:    inst.ID,
			Direction:       models.TradeTypeBuy,
			Amount:          decimal.NewFromInt(10),
			DurationMinutes: i,
		})
		require.NoError(t, err)
	}
	prices.Set(inst.ID, "1.0900")

	sweeper := NewExpirationWorker(engine, repos.Trades, time.Second, 3, 100, zap.NewNop())
	sweeper.SetClock(clock.Now)

	result := sweeper.Sweep(context.Background())
	assert.Zero(t, result.Expired, "nothing has expired yet")

	settled := 0
	for step := 0; step < n*60/15; step++ {
		clock.Advance(15 * time.Second)
		result := sweeper.Sweep(context.Background())
		assert.Zero(t, result.Failed)
		settled += result.Settled
	}
	assert.Equal(t, n, settled)

	var active int64
	require.NoError(t, db.Model(&models.Trade{}).Where("status = ?", models.TradeStatusActive).Count(&active).Error)
	assert.Zero(t, active)

	// each trade: -10 then +18
	assert.True(t, testutil.Balance(t, db, user.ID).Equal(decimal.NewFromInt(1048)))

	var credits int64
	require.NoError(t, db.Model(&models.BalanceRecord{}).Where("amount > 0").Count(&credits).Error)
	assert.Equal(t, int64(n), credits, "no trade is paid twice")
}

type fakeSettler struct {
	mu      sync.Mutex
	calls   map[uint]int
	failFor map[uint]bool
	panicOn uint
}

func (s *fakeSettler) Settle(_ context.Context, tradeID uint) error {
	s.mu.Lock()
	s.calls[tradeID]++
	s.mu.Unlock()
	if tradeID == s.panicOn {
		panic("settle exploded")
	}
	if s.failFor[tradeID] {
		return errors.New("database is locked")
	}
	return nil
}

type fakeLister struct {
	trades []models.Trade
	err    error
}

func (l *fakeLister) GetExpired(_ context.Context, _ time.Time, _ int) ([]models.Trade, error) {
	return l.trades, l.err
}

func activeTrade(id uint, expiration time.Time) models.Trade {
	return models.Trade{ID: id, Status: models.TradeStatusActive, ExpirationTime: expiration}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	settler := &fakeSettler{calls: map[uint]int{}, failFor: map[uint]bool{2: true}, panicOn: 3}
	lister := &fakeLister{trades: []models.Trade{
		activeTrade(1, start),
		activeTrade(2, start),
		activeTrade(3, start),
		activeTrade(4, start),
		activeTrade(5, start.Add(time.Hour)),
		{ID: 6, Status: models.TradeStatusCompleted, ExpirationTime: start},
	}}

	sweeper := NewExpirationWorker(settler, lister, time.Second, 2, 0, zap.NewNop())
	sweeper.SetClock(func() time.Time { return start })

	result := sweeper.Sweep(context.Background())
	assert.Equal(t, SweepResult{Expired: 4, Settled: 2, Failed: 2}, result)
	assert.Equal(t, map[uint]int{1: 1, 2: 1, 3: 1, 4: 1}, settler.calls)

	// The failed trade is retried on the next sweep
	settler.failFor = map[uint]bool{}
	settler.panicOn = 0
	result = sweeper.Sweep(context.Background())
	assert.Equal(t, 4, result.Settled)
	assert.Equal(t, 2, settler.calls[2])
}

func TestSweepSurvivesListError(t *testing.T) {
	settler := &fakeSettler{calls: map[uint]int{}}
	sweeper := NewExpirationWorker(settler, &fakeLister{err: errors.New("connection refused")}, time.Second, 1, 0, zap.NewNop())

	assert.Equal(t, SweepResult{}, sweeper.Sweep(context.Background()))
	assert.Empty(t, settler.calls)
}

func TestStartStopsOnCancel(t *testing.T) {
	settler := &fakeSettler{calls: map[uint]int{}}
	lister := &fakeLister{trades: []models.Trade{activeTrade(1, start)}}
	sweeper := NewExpirationWorker(settler, lister, 10*time.Millisecond, 1, 0, zap.NewNop())
	sweeper.SetClock(func() time.Time { return start })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		settler.mu.Lock()
		defer settler.mu.Unlock()
		return settler.calls[1] > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	sweeper := NewExpirationWorker(&fakeSettler{calls: map[uint]int{}}, &fakeLister{}, time.Hour, 1, 0, zap.NewNop())

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	sweeper.Stop()
	sweeper.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
