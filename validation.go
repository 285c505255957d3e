package dca

import (
	"errors"
	"fmt"

	"github.com/etnz/dca/date"
)

// Validation failures. A *ValidationError wraps exactly one of them.
var (
	ErrFutureDate      = errors.New("purchase date is in the future")
	ErrNonPositiveFiat = errors.New("fiat amount must be greater than zero")
	ErrNonPositiveCoin = errors.New("coin amount must be greater than zero")
	ErrNegativeFee     = errors.New("fee must not be negative")
	ErrMalformed       = errors.New("malformed value")
	ErrRequired        = errors.New("value is required")
	ErrTooLong         = errors.New("value is too long")
)

// ValidationError reports the first field of a transaction that fails a rule.
type ValidationError struct {
	Field string // Field is the name of the offending field.
	Value string // Value is the offending value as entered or stored.
	Err   error  // Err is the rule that failed.
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v, got %s", e.Field, e.Err, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks tx against the integrity rules, in order, and returns the
// first failure as a *ValidationError. today is the evaluation date: a
// purchase on today is valid.
//
// Validate is used both before inserting a new transaction and before
// replacing an existing one.
func Validate(tx Transaction, today date.Date) error {
	if tx.Date.After(today) {
		return &ValidationError{Field: "date", Value: tx.Date.String(), Err: ErrFutureDate}
	}
	if !tx.Fiat.IsPositive() {
		return &ValidationError{Field: "fiat", Value: tx.Fiat.Decimal().String(), Err: ErrNonPositiveFiat}
	}
	if !tx.Coin.IsPositive() {
		return &ValidationError{Field: "coin", Value: tx.Coin.String(), Err: ErrNonPositiveCoin}
	}
	if tx.Fee.IsNegative() {
		return &ValidationError{Field: "fee", Value: tx.Fee.Decimal().String(), Err: ErrNegativeFee}
	}
	return nil
}
