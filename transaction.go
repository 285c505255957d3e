package dca

import (
	"encoding/json"
	"fmt"

	"github.com/etnz/dca/date"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction is one purchase of the tracked coin.
type Transaction struct {
	ID       string    // ID is assigned by the store when the transaction is inserted.
	Owner    string    // Owner is the id of the user who recorded it, it never changes.
	Date     date.Date // Date is the day of the purchase.
	Exchange string    // Exchange is an optional label of where the purchase happened.
	Fiat     Money     // Fiat is the amount spent, in the base currency.
	Coin     Quantity  // Coin is the amount of coin received.
	Fee      Money     // Fee is the fee paid on top, in the base currency.
}

// NewTransaction creates a transaction of owner, not yet stored.
func NewTransaction(owner string, day date.Date, exchange string, fiat Money, coin Quantity, fee Money) Transaction {
	return Transaction{
		Owner:    owner,
		Date:     day,
		Exchange: exchange,
		Fiat:     fiat,
		Coin:     coin,
		Fee:      fee,
	}
}

// Price returns the unit price paid, fee excluded. It is zero when no coin
// was received.
func (t Transaction) Price() Money {
	if !t.Coin.IsPositive() {
		return M(0, t.Fiat.Currency())
	}
	return t.Fiat.Div(t.Coin)
}

// Equal reports whether t and o hold the same values.
func (t Transaction) Equal(o Transaction) bool {
	return t.ID == o.ID && t.Owner == o.Owner && t.Date == o.Date && t.Exchange == o.Exchange &&
		t.Fiat.Equal(o.Fiat) && t.Coin.Equal(o.Coin) && t.Fee.Equal(o.Fee)
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s bought %s for %s", t.Date, t.Coin.Fixed(), t.Fiat)
}

// MarshalJSON implements the json.Marshaler interface for Transaction.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("id", t.ID)
	w.Append("owner", t.Owner)
	w.Append("date", t.Date)
	w.Optional("exchange", t.Exchange)
	w.Append("fiat", t.Fiat)
	w.Append("coin", t.Coin)
	w.Append("fee", t.Fee)
	w.Append("currency", t.Fiat.Currency())
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Transaction.
// Fiat and fee share the single "currency" field.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var temp struct {
		ID       string          `json:"id"`
		Owner    string          `json:"owner"`
		Date     date.Date       `json:"date"`
		Exchange string          `json:"exchange"`
		Fiat     decimal.Decimal `json:"fiat"`
		Coin     Quantity        `json:"coin"`
		Fee      decimal.Decimal `json:"fee"`
		Currency string          `json:"currency"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	*t = Transaction{
		ID:       temp.ID,
		Owner:    temp.Owner,
		Date:     temp.Date,
		Exchange: temp.Exchange,
		Fiat:     M(temp.Fiat, temp.Currency),
		Coin:     temp.Coin,
		Fee:      M(temp.Fee, temp.Currency),
	}
	return nil
}
