package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeType is the predicted price direction of a trade
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"  // price will rise
	TradeTypeSell TradeType = "sell" // price will fall
)

// Valid reports whether t is a known trade type
func (t TradeType) Valid() bool {
	return t == TradeTypeBuy || t == TradeTypeSell
}

// TradeStatus represents the lifecycle state of a trade
type TradeStatus string

const (
	TradeStatusActive    TradeStatus = "active"
	TradeStatusCompleted TradeStatus = "completed"
)

// TradeResult represents the settled outcome of a trade
type TradeResult string

const (
	TradeResultPending TradeResult = "pending"
	TradeResultWin     TradeResult = "win"
	TradeResultLoss    TradeResult = "loss"
	// TradeResultDraw is reserved. Settlement treats an unchanged price as a loss.
	TradeResultDraw TradeResult = "draw"
)

// Trade represents a single timed bet on the price direction of an instrument
type Trade struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	Reference       string              `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	UserID          uint                `gorm:"index;not null" json:"user_id"`
	InstrumentID    uint                `gorm:"index;not null" json:"instrument_id"`
	Symbol          string              `gorm:"size:20;not null" json:"symbol"`
	Type            TradeType           `gorm:"size:10;not null" json:"type"`
	Amount          decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"amount"`
	EntryPrice      decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	ExitPrice       decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"exit_price"`
	Profit          decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"profit"`
	Status          TradeStatus         `gorm:"size:20;not null;index:idx_trades_status_expiration,priority:1" json:"status"`
	Result          TradeResult         `gorm:"size:20;not null" json:"result"`
	DurationMinutes int                 `gorm:"not null" json:"duration_minutes"`
	CreatedAt       time.Time           `json:"created_at"`
	ExpirationTime  time.Time           `gorm:"not null;index:idx_trades_status_expiration,priority:2" json:"expiration_time"`
	ClosedAt        *time.Time          `json:"closed_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// TableName specifies the table name for Trade model
func (Trade) TableName() string {
	return "trades"
}

// IsActive returns true while the trade awaits settlement
func (t *Trade) IsActive() bool {
	return t.Status == TradeStatusActive
}

// IsExpired reports whether the trade may be settled at the given instant
func (t *Trade) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpirationTime)
}

// TimeRemaining returns the time left until expiration, clamped at zero
func (t *Trade) TimeRemaining(now time.Time) time.Duration {
	remaining := t.ExpirationTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsWin returns true if the trade settled in the money
func (t *Trade) IsWin() bool {
	return t.Result == TradeResultWin
}
