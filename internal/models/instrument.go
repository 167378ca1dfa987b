package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument represents a tradable symbol with its latest simulated price
type Instrument struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Symbol          string          `gorm:"uniqueIndex;size:20;not null" json:"symbol"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	Description     string          `gorm:"size:255" json:"description"`
	CurrentPrice    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"current_price"`
	IsActive        bool            `gorm:"not null" json:"is_active"`
	LastPriceUpdate *time.Time      `json:"last_price_update"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Instrument model
func (Instrument) TableName() string {
	return "instruments"
}
