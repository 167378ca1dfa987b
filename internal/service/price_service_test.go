package service

import (
	"context"
	"testing"
	"time"

	"github.com/options-simulator/internal/repository"
	"github.com/options-simulator/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPriceListener struct {
	quotes []Quote
}

func (l *recordingPriceListener) OnPriceUpdate(quote Quote) {
	l.quotes = append(l.quotes, quote)
}

func TestSeedDefaultsIsRepeatable(t *testing.T) {
	repos := repository.New(testutil.NewDB(t))
	svc := NewPriceService(repos, nil, time.Minute, zap.NewNop())
	ctx := context.Background()

	created, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultInstruments), created)

	created, err = svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	require.NoError(t, svc.Load(ctx))
	quotes := svc.GetAllPrices()
	require.Len(t, quotes, len(DefaultInstruments))
	assert.Equal(t, "BTCUSD", quotes[0].Symbol, "quotes are sorted by symbol")

	inst, err := svc.GetInstrument(ctx, "eurusd")
	require.NoError(t, err)
	price, err := svc.GetPrice(ctx, inst.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.085")))
}

func TestGetPriceFallsBackToDatabase(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewPriceService(repository.New(db), nil, time.Minute, zap.NewNop())
	inst := testutil.CreateInstrument(t, db, "GBPUSD", "1.2650", true)

	price, err := svc.GetPrice(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.265")))

	_, ok := svc.GetQuote(inst.ID)
	assert.True(t, ok, "database read is cached in memory")

	_, err = svc.GetPrice(context.Background(), 999)
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestUpdateStoresPriceAndCandle(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repository.New(db)
	svc := NewPriceService(repos, nil, time.Minute, zap.NewNop())
	listener := &recordingPriceListener{}
	svc.SetListener(listener)
	ctx := context.Background()

	inst := testutil.CreateInstrument(t, db, "EURUSD", "1.0800", true)
	base := time.Date(2026, 10, 14, 12, 0, 5, 0, time.UTC)

	require.NoError(t, svc.Update(ctx, inst, decimal.RequireFromString("1.0810"), base))
	require.NoError(t, svc.Update(ctx, inst, decimal.RequireFromString("1.0790"), base.Add(20*time.Second)))
	require.NoError(t, svc.Update(ctx, inst, decimal.RequireFromString("1.0805"), base.Add(40*time.Second)))
	require.NoError(t, svc.Update(ctx, inst, decimal.RequireFromString("1.0820"), base.Add(70*time.Second)))

	stored, err := repos.Instruments.GetByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentPrice.Equal(decimal.RequireFromString("1.082")))

	price, err := svc.GetPrice(ctx, inst.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.082")))

	candles, err := svc.GetCandles(ctx, "EURUSD", 10)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.True(t, first.Open.Equal(decimal.RequireFromString("1.081")))
	assert.True(t, first.High.Equal(decimal.RequireFromString("1.081")))
	assert.True(t, first.Low.Equal(decimal.RequireFromString("1.079")))
	assert.True(t, first.Close.Equal(decimal.RequireFromString("1.0805")))
	assert.Equal(t, 3, first.Ticks)
	assert.Equal(t, 60, first.IntervalSeconds)
	assert.Equal(t, 1, candles[1].Ticks)

	require.Len(t, listener.quotes, 4)
	assert.Equal(t, "EURUSD", listener.quotes[3].Symbol)

	assert.ErrorIs(t, svc.Update(ctx, inst, decimal.Zero, base), ErrPriceUnavailable)
}
