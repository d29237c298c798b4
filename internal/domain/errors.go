package domain

import "errors"

var (
	ErrAdNotFound   = errors.New("ad not found")
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientFunds is returned when the ad owner's balance cannot
	// cover the per-click price. The ad is paused as a side effect; the
	// click is not counted.
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrForbidden         = errors.New("not allowed to manage this ad")
	ErrInvalidAmount     = errors.New("amount must be positive")
)
