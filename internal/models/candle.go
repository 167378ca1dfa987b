package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle aggregates simulated price ticks of one instrument over a fixed interval
type Candle struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	InstrumentID    uint            `gorm:"uniqueIndex:idx_candles_instrument_time,priority:1;not null" json:"instrument_id"`
	Time            time.Time       `gorm:"column:open_time;uniqueIndex:idx_candles_instrument_time,priority:2;not null" json:"time"`
	IntervalSeconds int             `gorm:"not null" json:"interval_seconds"`
	Open            decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"open"`
	High            decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"high"`
	Low             decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"low"`
	Close           decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"close"`
	Ticks           int             `gorm:"not null" json:"ticks"`
}

// TableName specifies the table name for Candle model
func (Candle) TableName() string {
	return "candles"
}

// Apply folds a new price tick into the candle
func (c *Candle) Apply(price decimal.Decimal) {
	if price.GreaterThan(c.High) {
		c.High = price
	}
	if price.LessThan(c.Low) {
		c.Low = price
	}
	c.Close = price
	c.Ticks++
}
