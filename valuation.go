package dca

import (
	"errors"
	"fmt"
	"time"
)

// ErrCurrencyMismatch reports transactions of one owner recorded in
// different currencies, usually after the base currency was changed.
var ErrCurrencyMismatch = errors.New("transactions are recorded in different currencies")

// Summary is the aggregate of all transactions of an owner.
type Summary struct {
	Invested Money    // Invested is the sum of fiat amounts, in the base currency.
	Holdings Quantity // Holdings is the sum of coin amounts.
	Count    int      // Count is the number of transactions.
}

// Add returns s with tx accounted. tx must be in the currency of s.
func (s Summary) Add(tx Transaction) (Summary, error) {
	if c := s.Invested.Currency(); s.Count > 0 && c != tx.Fiat.Currency() {
		return s, fmt.Errorf("%w: %s, recorded in %s", ErrCurrencyMismatch, tx.Fiat.Currency(), c)
	}
	return Summary{
		Invested: tx.Fiat.Add(s.Invested.In(tx.Fiat.Currency())),
		Holdings: s.Holdings.Add(tx.Coin),
		Count:    s.Count + 1,
	}, nil
}

// Summarize aggregates txs, all in the same currency.
func Summarize(txs []Transaction) (Summary, error) {
	var s Summary
	for _, tx := range txs {
		var err error
		if s, err = s.Add(tx); err != nil {
			return Summary{}, err
		}
	}
	return s, nil
}

// Metrics are the portfolio figures in one display currency.
type Metrics struct {
	Display    Display   // Display is the currency the amounts are expressed in.
	Invested   Money     // Invested is the total spent.
	Holdings   Quantity  // Holdings is the total coin held.
	AvgCost    Money     // AvgCost is the average price paid per coin.
	Price      Money     // Price is the current unit price.
	Value      Money     // Value is the current market value of the holdings.
	PnL        Money     // PnL is Value minus Invested.
	PnLPercent Percent   // PnLPercent is PnL relative to Invested.
	PricedAt   time.Time // PricedAt is when the price was fetched.
}

// ComputeMetrics values summary s with quote q for display d.
//
// It is a pure function. An owner with no holdings gets a zero average cost
// and a zero percentage, not an error. An empty quote yields
// ErrPriceUnavailable.
func ComputeMetrics(s Summary, q Quote, d Display) (Metrics, error) {
	if !q.Available() {
		return Metrics{}, ErrPriceUnavailable
	}
	base := s.Invested
	switch base.Currency() {
	case "":
		// the zero Summary of an owner without transactions
		base = base.In(q.Base.Currency())
	case q.Base.Currency():
	default:
		return Metrics{}, fmt.Errorf("%w: invested in %s, quoted in %s", ErrCurrencyMismatch, base.Currency(), q.Base.Currency())
	}
	invested, err := ToDisplay(base, d, q)
	if err != nil {
		return Metrics{}, fmt.Errorf("cannot convert invested amount: %w", err)
	}
	price := q.Price(d)
	m := Metrics{
		Display:  d,
		Invested: invested,
		Holdings: s.Holdings,
		AvgCost:  M(0, price.Currency()),
		Price:    price,
		Value:    price.Mul(s.Holdings),
		PricedAt: q.FetchedAt,
	}
	if s.Holdings.IsPositive() {
		m.AvgCost = invested.Div(s.Holdings)
	}
	m.PnL = m.Value.Sub(m.Invested)
	if m.Invested.IsPositive() {
		m.PnLPercent = percentOf(m.PnL, m.Invested)
	}
	return m, nil
}

// MarshalJSON implements the json.Marshaler interface for Summary.
func (s Summary) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("invested", s.Invested)
	w.Optional("currency", s.Invested.Currency())
	w.Append("holdings", s.Holdings)
	w.Append("count", s.Count)
	return w.MarshalJSON()
}

// MarshalJSON implements the json.Marshaler interface for Metrics.
func (m Metrics) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("currency", m.Invested.Currency())
	w.Append("invested", m.Invested)
	w.Append("holdings", m.Holdings)
	w.Append("avgCost", m.AvgCost)
	w.Append("price", m.Price)
	w.Append("value", m.Value)
	w.Append("pnl", m.PnL)
	w.Append("pnlPercent", m.PnLPercent)
	w.Append("pricedAt", m.PricedAt)
	return w.MarshalJSON()
}
