package repository

import (
	"context"

	"github.com/options-simulator/internal/models"
	"gorm.io/gorm"
)

// Repositories groups every repository bound to the same database handle,
// so a service can run several repository calls inside one transaction.
type Repositories struct {
	db *gorm.DB

	Users       *UserRepository
	Instruments *InstrumentRepository
	Trades      *TradeRepository
	Balances    *BalanceRepository
	Candles     *CandleRepository
}

// New creates all repositories on top of db
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Users:       NewUserRepository(db),
		Instruments: NewInstrumentRepository(db),
		Trades:      NewTradeRepository(db),
		Balances:    NewBalanceRepository(db),
		Candles:     NewCandleRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// AutoMigrate creates or updates the schema for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}
