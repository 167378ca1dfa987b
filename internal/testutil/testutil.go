// Package testutil provides an in-memory database and a controllable clock for tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/options-simulator/internal/models"
	"github.com/options-simulator/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a migrated in-memory sqlite database private to the test.
// A single connection serialises all statements, so transactions never
// observe each other half-done.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return db
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock stopped at start
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CreateUser inserts a user holding balance
func CreateUser(t testing.TB, db *gorm.DB, username string, balance string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Balance:  decimal.RequireFromString(balance),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateInstrument inserts an instrument priced at price
func CreateInstrument(t testing.TB, db *gorm.DB, symbol string, price string, active bool) *models.Instrument {
	t.Helper()
	inst := &models.Instrument{
		Symbol:       symbol,
		Name:         symbol,
		CurrentPrice: decimal.RequireFromString(price),
		IsActive:     active,
	}
	require.NoError(t, db.Create(inst).Error)
	if !active {
		require.NoError(t, db.Model(inst).Update("is_active", false).Error)
	}
	return inst
}

// Balance reads the stored balance of a user
func Balance(t testing.TB, db *gorm.DB, userID uint) decimal.Decimal {
	t.Helper()
	var user models.User
	require.NoError(t, db.Select("balance").First(&user, userID).Error)
	return user.Balance
}

// Prices is an in-memory price source
type Prices struct {
	mu     sync.RWMutex
	prices map[uint]decimal.Decimal
}

// NewPrices creates an empty price source
func NewPrices() *Prices {
	return &Prices{prices: make(map[uint]decimal.Decimal)}
}

// Set stores the price of an instrument
func (p *Prices) Set(instrumentID uint, price string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[instrumentID] = decimal.RequireFromString(price)
}

// GetPrice returns the stored price or an error when none is set
func (p *Prices) GetPrice(_ context.Context, instrumentID uint) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.prices[instrumentID]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for instrument %d", instrumentID)
	}
	return price, nil
}
