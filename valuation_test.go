package dca

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var fetchedAt = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func quote(t *testing.T, base, secondary float64) Quote {
	t.Helper()
	q, err := NewQuote(M(base, "IDR"), M(secondary, "USD"), fetchedAt)
	if err != nil {
		t.Fatalf("NewQuote(%v, %v) unexpected error: %v", base, secondary, err)
	}
	return q
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		validTx(),
		NewTransaction("alice", today, "", M(500000, "IDR"), Q(0.00000001), M(0, "IDR")),
		NewTransaction("alice", today, "", M(250000, "IDR"), Q(0.00049999), M(0, "IDR")),
	}
	got, err := Summarize(txs)
	if err != nil {
		t.Fatalf("Summarize() unexpected error: %v", err)
	}
	if want := M(1750000, "IDR"); !got.Invested.Equal(want) {
		t.Errorf("Summarize().Invested = %v, want %v", got.Invested, want)
	}
	if want := Q(0.0015); !got.Holdings.Equal(want) {
		t.Errorf("Summarize().Holdings = %v, want %v", got.Holdings, want)
	}
	if got.Count != 3 {
		t.Errorf("Summarize().Count = %d, want 3", got.Count)
	}
}

func TestSummarizeKeepsSatoshis(t *testing.T) {
	// ten thousand purchases of one satoshi are exactly 0.0001 coin
	var s Summary
	tx := NewTransaction("alice", today, "", M(10, "IDR"), Q(0.00000001), M(0, "IDR"))
	for range 10000 {
		var err error
		if s, err = s.Add(tx); err != nil {
			t.Fatalf("Add() unexpected error: %v", err)
		}
	}
	if want := Q(0.0001); !s.Holdings.Equal(want) {
		t.Errorf("Holdings = %v, want %v", s.Holdings, want)
	}
}

func TestSummarizeMixedCurrencies(t *testing.T) {
	// a ledger recorded in IDR, then reopened with EUR as the base currency
	txs := []Transaction{
		validTx(),
		NewTransaction("alice", today, "", M(100, "EUR"), Q(0.001), M(0, "EUR")),
	}
	if _, err := Summarize(txs); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Summarize() of IDR and EUR = %v, want %v", err, ErrCurrencyMismatch)
	}
	if _, err := Summarize(txs[1:]); err != nil {
		t.Errorf("Summarize() of EUR only unexpected error: %v", err)
	}
}

func TestComputeMetrics(t *testing.T) {
	s := Summary{Invested: M(1000, "IDR"), Holdings: Q(0.01), Count: 1}
	q := quote(t, 150000, 100)

	got, err := ComputeMetrics(s, q, Base)
	if err != nil {
		t.Fatalf("ComputeMetrics() unexpected error: %v", err)
	}
	checks := []struct {
		name      string
		got, want Money
	}{
		{"Invested", got.Invested, M(1000, "IDR")},
		{"Price", got.Price, M(150000, "IDR")},
		{"Value", got.Value, M(1500, "IDR")},
		{"PnL", got.PnL, M(500, "IDR")},
		{"AvgCost", got.AvgCost, M(100000, "IDR")},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("ComputeMetrics().%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if want := (Percent{decimal.NewFromInt(50)}); !got.PnLPercent.Equal(want) {
		t.Errorf("ComputeMetrics().PnLPercent = %v, want %v", got.PnLPercent, want)
	}
	if !got.PricedAt.Equal(fetchedAt) {
		t.Errorf("ComputeMetrics().PricedAt = %v, want %v", got.PricedAt, fetchedAt)
	}
}

func TestComputeMetricsSecondary(t *testing.T) {
	s := Summary{Invested: M(15000, "IDR"), Holdings: Q(0.2), Count: 2}
	q := quote(t, 150000, 100) // 1500 IDR per USD

	got, err := ComputeMetrics(s, q, Secondary)
	if err != nil {
		t.Fatalf("ComputeMetrics() unexpected error: %v", err)
	}
	checks := []struct {
		name      string
		got, want Money
	}{
		{"Invested", got.Invested, M(10, "USD")},
		{"Price", got.Price, M(100, "USD")},
		{"Value", got.Value, M(20, "USD")},
		{"PnL", got.PnL, M(10, "USD")},
		{"AvgCost", got.AvgCost, M(50, "USD")},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("ComputeMetrics().%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if want := (Percent{decimal.NewFromInt(100)}); !got.PnLPercent.Equal(want) {
		t.Errorf("ComputeMetrics().PnLPercent = %v, want %v", got.PnLPercent, want)
	}
}

func TestComputeMetricsNoHoldings(t *testing.T) {
	q := quote(t, 150000, 100)
	for _, d := range []Display{Base, Secondary} {
		t.Run(d.String(), func(t *testing.T) {
			got, err := ComputeMetrics(Summary{}, q, d)
			if err != nil {
				t.Fatalf("ComputeMetrics() unexpected error: %v", err)
			}
			if !got.AvgCost.IsZero() {
				t.Errorf("ComputeMetrics().AvgCost = %v, want 0", got.AvgCost)
			}
			if !got.PnLPercent.IsZero() {
				t.Errorf("ComputeMetrics().PnLPercent = %v, want 0", got.PnLPercent)
			}
			if !got.Value.IsZero() || !got.PnL.IsZero() {
				t.Errorf("ComputeMetrics() = value %v pnl %v, want zeros", got.Value, got.PnL)
			}
			if want := DefaultAsset.Currency(d); got.Invested.Currency() != want {
				t.Errorf("ComputeMetrics().Invested currency = %q, want %q", got.Invested.Currency(), want)
			}
		})
	}
}

func TestComputeMetricsPriceUnavailable(t *testing.T) {
	s := Summary{Invested: M(1000, "IDR"), Holdings: Q(0.01), Count: 1}
	for _, d := range []Display{Base, Secondary} {
		if _, err := ComputeMetrics(s, Quote{}, d); !errors.Is(err, ErrPriceUnavailable) {
			t.Errorf("ComputeMetrics(%v) with no quote = %v, want %v", d, err, ErrPriceUnavailable)
		}
	}
}

func TestComputeMetricsCurrencyMismatch(t *testing.T) {
	s := Summary{Invested: M(1000, "EUR"), Holdings: Q(0.01), Count: 1}
	if _, err := ComputeMetrics(s, quote(t, 150000, 100), Base); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("ComputeMetrics() with EUR invested and an IDR quote = %v, want %v", err, ErrCurrencyMismatch)
	}
}

func TestComputeMetricsIsIdempotent(t *testing.T) {
	s := Summary{Invested: M(1234567, "IDR"), Holdings: Q(0.0123), Count: 7}
	q := quote(t, 1650000000, 101234.56)
	for _, d := range []Display{Base, Secondary} {
		first, err1 := ComputeMetrics(s, q, d)
		second, err2 := ComputeMetrics(s, q, d)
		if err1 != nil || err2 != nil {
			t.Fatalf("ComputeMetrics() unexpected errors: %v, %v", err1, err2)
		}
		if !equalMetrics(first, second) {
			t.Errorf("ComputeMetrics(%v) = %+v then %+v, want identical results", d, first, second)
		}
	}
}

func equalMetrics(a, b Metrics) bool {
	return a.Display == b.Display && a.Invested.Equal(b.Invested) && a.Holdings.Equal(b.Holdings) &&
		a.AvgCost.Equal(b.AvgCost) && a.Price.Equal(b.Price) && a.Value.Equal(b.Value) &&
		a.PnL.Equal(b.PnL) && a.PnLPercent.Equal(b.PnLPercent) && a.PricedAt.Equal(b.PricedAt)
}
