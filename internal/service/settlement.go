package service

import (
	"github.com/options-simulator/internal/models"
	"github.com/shopspring/decimal"
)

// IsWinningMove reports whether the move from entry to exit is in the predicted
// direction. An unchanged price is never a win.
func IsWinningMove(direction models.TradeType, entry, exit decimal.Decimal) bool {
	switch direction {
	case models.TradeTypeBuy:
		return exit.GreaterThan(entry)
	case models.TradeTypeSell:
		return exit.LessThan(entry)
	}
	return false
}

// PotentialProfit returns amount * payoutRate when the current price beats the
// entry price in the trade's direction, zero otherwise.
func PotentialProfit(amount, payoutRate decimal.Decimal, direction models.TradeType, currentPrice, entryPrice decimal.Decimal) decimal.Decimal {
	if !IsWinningMove(direction, entryPrice, currentPrice) {
		return decimal.Zero
	}
	return amount.Mul(payoutRate).Round(8)
}
