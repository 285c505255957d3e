package dca

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a snapshot of the coin's unit price in the base and secondary
// currencies.
//
// The zero Quote means no price was ever received.
type Quote struct {
	Base      Money           // Base is the unit price in the base currency.
	Secondary Money           // Secondary is the unit price in the secondary currency.
	Rate      decimal.Decimal // Rate is Base/Secondary: base currency units per secondary unit.
	FetchedAt time.Time       // FetchedAt is when the feed returned this snapshot.
}

// NewQuote returns the quote for both unit prices. Both must be positive.
//
// The rate is implied from the two prices of the same snapshot rather than
// quoted independently.
func NewQuote(base, secondary Money, at time.Time) (Quote, error) {
	if !base.IsPositive() || !secondary.IsPositive() {
		return Quote{}, fmt.Errorf("unit prices must be positive, got %s and %s", base.Decimal(), secondary.Decimal())
	}
	return Quote{
		Base:      base,
		Secondary: secondary,
		Rate:      base.ratio(secondary),
		FetchedAt: at,
	}, nil
}

// Available reports whether q holds prices.
func (q Quote) Available() bool { return q.Rate.IsPositive() }

// Price returns the unit price for display d.
func (q Quote) Price(d Display) Money {
	if d == Secondary {
		return q.Secondary
	}
	return q.Base
}

// Quotes holds the latest Quote. One writer replaces it wholesale, any number
// of readers load it; readers never see half of an update. The zero value is
// ready to use and holds the zero Quote.
type Quotes struct {
	p atomic.Pointer[Quote]
}

// Load returns the latest quote, or the zero Quote.
func (h *Quotes) Load() Quote {
	if q := h.p.Load(); q != nil {
		return *q
	}
	return Quote{}
}

// Store replaces the latest quote.
func (h *Quotes) Store(q Quote) { h.p.Store(&q) }

// MarshalJSON implements the json.Marshaler interface for Quote. The zero
// Quote is null.
func (q Quote) MarshalJSON() ([]byte, error) {
	if !q.Available() {
		return []byte("null"), nil
	}
	var w jsonObjectWriter
	w.Append(q.Base.Currency(), q.Base)
	w.Append(q.Secondary.Currency(), q.Secondary)
	w.Append("rate", q.Rate)
	w.Append("fetchedAt", q.FetchedAt)
	return w.MarshalJSON()
}
