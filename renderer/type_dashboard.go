package renderer

import (
	"strings"

	"github.com/etnz/dca"
)

// unavailable stands for a figure that needs a price not known yet.
const unavailable = "n/a"

// Dashboard is the dashboard data for rendering. Every figure is already
// formatted.
type Dashboard struct {
	Coin       string `json:"coin"`
	Owner      string `json:"owner,omitempty"`
	Currency   string `json:"currency"`
	Status     string `json:"status,omitempty"`
	Cards      []Card `json:"cards"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	Total      int    `json:"total"`
	Rows       []Row  `json:"rows"`
}

// Card is one summary figure.
type Card struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Detail string `json:"detail,omitempty"`
}

// Row is one transaction line.
type Row struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Exchange string `json:"exchange"`
	Fiat     string `json:"fiat"`
	Coin     string `json:"coin"`
	Fee      string `json:"fee"`
	Price    string `json:"price"`
}

// NewDashboard formats the view v of asset a.
//
// Amounts in the asset's base currency are rounded to whole units, other
// currencies keep two decimals, and coin amounts keep eight.
func NewDashboard(v dca.View, a dca.Asset) *Dashboard {
	d := &Dashboard{
		Coin:       a.Coin,
		Currency:   a.Currency(v.Display),
		Page:       v.Page.Number,
		TotalPages: v.TotalPages(),
		Total:      v.Total,
	}
	switch v.Phase {
	case dca.SignedOut:
		d.Status = "Signed out. Sign in to see your purchases."
		return d
	case dca.Loading:
		d.Status = "Loading."
	}
	d.Owner = v.Owner.Email
	if d.Owner == "" {
		d.Owner = v.Owner.ID
	}
	if v.Err != nil {
		d.Status = "Error: " + v.Err.Error()
	}
	if v.Quote.Available() {
		d.UpdatedAt = v.Quote.FetchedAt.Format("2006-01-02 15:04:05 MST")
	}
	d.Cards = cards(v, a)
	for _, tx := range v.Rows {
		d.Rows = append(d.Rows, Row{
			ID:       tx.ID,
			Date:     tx.Date.String(),
			Exchange: cell(tx.Exchange),
			Fiat:     amount(tx.Fiat, a),
			Coin:     tx.Coin.Fixed(),
			Fee:      amount(tx.Fee, a),
			Price:    amount(tx.Price(), a),
		})
	}
	return d
}

func cards(v dca.View, a dca.Asset) []Card {
	holdings := Card{Label: "Holdings", Value: v.Summary.Holdings.Fixed() + " " + a.Coin}
	m, err := v.Metrics()
	if err != nil {
		invested := unavailable
		if v.Display == dca.Base {
			invested = amount(v.Summary.Invested.In(a.Base), a)
		}
		return []Card{
			{Label: "Total Invested", Value: invested},
			holdings,
			{Label: "Average Cost", Value: unavailable},
			{Label: "Current Price", Value: unavailable},
			{Label: "Current Value", Value: unavailable},
			{Label: "Profit / Loss", Value: unavailable},
		}
	}
	return []Card{
		{Label: "Total Invested", Value: amount(m.Invested, a)},
		holdings,
		{Label: "Average Cost", Value: amount(m.AvgCost, a)},
		{Label: "Current Price", Value: amount(m.Price, a)},
		{Label: "Current Value", Value: amount(m.Value, a)},
		{Label: "Profit / Loss", Value: signed(m.PnL, a), Detail: m.PnLPercent.SignedString()},
	}
}

// amount formats m, whole units in the base currency.
func amount(m dca.Money, a dca.Asset) string {
	if m.Currency() == a.Base {
		return m.Whole()
	}
	return m.String()
}

func signed(m dca.Money, a dca.Asset) string {
	if m.IsPositive() {
		return "+" + amount(m, a)
	}
	return amount(m, a)
}

// cell escapes s for a markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
