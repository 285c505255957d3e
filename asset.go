package dca

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
)

// Asset describes the tracked coin and the two fiat currencies it is valued in.
type Asset struct {
	Coin      string // Coin is the ticker of the tracked coin, e.g. "BTC".
	FeedID    string // FeedID identifies the coin on the price feed, e.g. "bitcoin".
	Base      string // Base is the currency transactions are recorded in, e.g. "IDR".
	Secondary string // Secondary is the alternative display currency, e.g. "USD".
}

// DefaultAsset is bitcoin bought in rupiah and displayed in rupiah or dollars.
var DefaultAsset = Asset{Coin: "BTC", FeedID: "bitcoin", Base: "IDR", Secondary: "USD"}

// Check returns an error if the asset is not fully and correctly defined.
func (a Asset) Check() error {
	if a.Coin == "" || a.FeedID == "" {
		return fmt.Errorf("asset coin and feed id are required, got %q and %q", a.Coin, a.FeedID)
	}
	for _, code := range []string{a.Base, a.Secondary} {
		if money.GetCurrency(code) == nil {
			return fmt.Errorf("unknown currency %q", code)
		}
	}
	if strings.EqualFold(a.Base, a.Secondary) {
		return fmt.Errorf("base and secondary currencies must differ, both are %q", a.Base)
	}
	return nil
}

// Currency returns the currency code used for display d.
func (a Asset) Currency(d Display) string {
	if d == Secondary {
		return a.Secondary
	}
	return a.Base
}

// Zero returns a zero amount in the base currency.
func (a Asset) Zero() Money { return M(0, a.Base) }
