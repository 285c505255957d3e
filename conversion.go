package dca

import (
	"errors"
	"fmt"
)

// ErrPriceUnavailable is returned when a computation needs a price and the
// feed never provided one. It is distinct from a zero amount.
var ErrPriceUnavailable = errors.New("price unavailable")

// ToDisplay converts an amount in the base currency for display d.
//
// Base is the identity and needs no quote. Secondary divides by the quote's
// implied rate and fails with ErrPriceUnavailable if the quote is empty.
func ToDisplay(amount Money, d Display, q Quote) (Money, error) {
	switch d {
	case Base:
		return amount, nil
	case Secondary:
		if !q.Available() {
			return Money{}, ErrPriceUnavailable
		}
		return amount.DivRate(q.Rate).In(q.Secondary.Currency()), nil
	default:
		return Money{}, fmt.Errorf("unknown display %v", d)
	}
}
