package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/options-simulator/internal/models"
	"github.com/options-simulator/internal/repository"
	"github.com/options-simulator/internal/service"
	"github.com/options-simulator/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNextPriceStaysWithinVolatility(t *testing.T) {
	sim := NewPriceSimulator(nil, time.Second, 0.001, 4, zap.NewNop())
	current := decimal.RequireFromString("1.0850")

	tests := []struct {
		name   string
		random float64
		want   string
	}{
		{"midpoint keeps price", 0.5, "1.085"},
		{"max step up", 0.999999, "1.0855"},
		{"max step down", 0, "1.0845"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim.SetRandom(func() float64 { return tt.random })
			got := sim.NextPrice(current)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestNextPriceHasFloor(t *testing.T) {
	sim := NewPriceSimulator(nil, time.Second, 1.5, 4, zap.NewNop())
	sim.SetRandom(func() float64 { return 0 })

	got := sim.NextPrice(decimal.RequireFromString("0.0002"))
	assert.True(t, got.Equal(decimal.RequireFromString("0.0001")), "got %s", got)
}

func TestTickUpdatesActiveInstruments(t *testing.T) {
	db := testutil.NewDB(t)
	prices := service.NewPriceService(repository.New(db), nil, time.Minute, zap.NewNop())
	eurusd := testutil.CreateInstrument(t, db, "EURUSD", "1.0000", true)
	paused := testutil.CreateInstrument(t, db, "XAGUSD", "24.0000", false)

	sim := NewPriceSimulator(prices, time.Second, 0.001, 4, zap.NewNop())
	sim.SetRandom(func() float64 { return 1 })

	assert.Equal(t, 1, sim.Tick(context.Background()))

	price, err := prices.GetPrice(context.Background(), eurusd.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.0005")), "got %s", price)

	price, err = prices.GetPrice(context.Background(), paused.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(24)), "inactive instruments keep their price")
}

type failingStore struct {
	instruments []models.Instrument
	updates     int
}

func (s *failingStore) ActiveInstruments(context.Context) ([]models.Instrument, error) {
	return s.instruments, nil
}

func (s *failingStore) Update(_ context.Context, inst *models.Instrument, _ decimal.Decimal, _ time.Time) error {
	s.updates++
	if inst.Symbol == "BAD" {
		return errors.New("write failed")
	}
	return nil
}

func TestTickSkipsFailedUpdates(t *testing.T) {
	store := &failingStore{instruments: []models.Instrument{
		{ID: 1, Symbol: "BAD", CurrentPrice: decimal.NewFromInt(1)},
		{ID: 2, Symbol: "GOOD", CurrentPrice: decimal.NewFromInt(1)},
	}}
	sim := NewPriceSimulator(store, time.Second, 0.001, 4, zap.NewNop())

	assert.Equal(t, 1, sim.Tick(context.Background()))
	assert.Equal(t, 2, store.updates)
}
