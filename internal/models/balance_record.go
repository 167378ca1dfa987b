package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceRecord is an append-only audit entry written for every balance mutation
type BalanceRecord struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"index:idx_balance_records_user_time,priority:1;not null" json:"user_id"`
	TradeID      *uint           `gorm:"index" json:"trade_id,omitempty"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_after"`
	Description  string          `gorm:"size:200" json:"description"`
	CreatedAt    time.Time       `gorm:"index:idx_balance_records_user_time,priority:2" json:"created_at"`
}

// TableName specifies the table name for BalanceRecord model
func (BalanceRecord) TableName() string {
	return "balance_records"
}
