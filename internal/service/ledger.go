package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/options-simulator/internal/models"
	"github.com/options-simulator/internal/repository"
	"github.com/shopspring/decimal"
)

// Ledger is the only writer of user balances. Every mutation changes the
// balance with a single conditional statement and appends a BalanceRecord
// carrying the resulting balance. Callers pass repositories bound to their
// transaction so the mutation commits or rolls back with the rest of the
// operation.
type Ledger struct {
	now func() time.Time
}

// NewLedger creates a new Ledger
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Debit subtracts amount from the user's balance.
// It fails with ErrInsufficientBalance if the balance would become negative.
func (l *Ledger) Debit(ctx context.Context, tx *repository.Repositories, userID uint, amount decimal.Decimal, reason string, tradeID *uint) (*models.BalanceRecord, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return l.apply(ctx, tx, userID, amount.Neg(), reason, tradeID)
}

// Credit adds amount to the user's balance
func (l *Ledger) Credit(ctx context.Context, tx *repository.Repositories, userID uint, amount decimal.Decimal, reason string, tradeID *uint) (*models.BalanceRecord, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return l.apply(ctx, tx, userID, amount, reason, tradeID)
}

func (l *Ledger) apply(ctx context.Context, tx *repository.Repositories, userID uint, delta decimal.Decimal, reason string, tradeID *uint) (*models.BalanceRecord, error) {
	balance, err := tx.Users.AddBalance(ctx, userID, delta)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	record := &models.BalanceRecord{
		UserID:       userID,
		TradeID:      tradeID,
		Amount:       delta,
		BalanceAfter: balance,
		Description:  reason,
		CreatedAt:    l.now().UTC(),
	}
	if err := tx.Balances.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append balance record: %w", err)
	}

	return record, nil
}
