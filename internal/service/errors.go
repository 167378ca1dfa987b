package service

import (
	"errors"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInstrumentNotFound  = errors.New("instrument not found")
	ErrTradeNotFound       = errors.New("trade not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrInvalidDirection    = errors.New("invalid direction")
	ErrInstrumentInactive  = errors.New("instrument is not available for trading")
	ErrNotExpired          = errors.New("trade has not expired yet")
	ErrPriceUnavailable    = errors.New("price not available")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrEmailTaken          = errors.New("email already taken")

	// ErrAlreadySettled signals that another caller completed the trade first.
	// Settle absorbs it; it never reaches API callers.
	ErrAlreadySettled = errors.New("trade already settled")
)

// IsNotFound reports whether err means a referenced user, instrument or trade does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrInstrumentNotFound) ||
		errors.Is(err, ErrTradeNotFound)
}

// IsInvalidArgument reports whether err rejects the caller's input
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrInstrumentInactive) ||
		errors.Is(err, ErrNotExpired) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrEmailTaken)
}
