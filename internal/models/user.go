package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered trader holding a virtual balance
type User struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Username  string          `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string          `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Relations
	Trades []Trade `gorm:"foreignKey:UserID" json:"trades,omitempty"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
