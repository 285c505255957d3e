package dca

import (
	"errors"
	"strings"
	"testing"

	"github.com/etnz/dca/date"
)

var today = date.New(2025, 6, 15)

func validTx() Transaction {
	return NewTransaction("alice", today, "Indodax", M(1000000, "IDR"), Q(0.001), M(5000, "IDR"))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Transaction)
		want   error
	}{
		{"valid", func(*Transaction) {}, nil},
		{"purchase today", func(tx *Transaction) { tx.Date = today }, nil},
		{"purchase in the past", func(tx *Transaction) { tx.Date = today.Add(-400) }, nil},
		{"purchase tomorrow", func(tx *Transaction) { tx.Date = today.Add(1) }, ErrFutureDate},
		{"zero fiat", func(tx *Transaction) { tx.Fiat = M(0, "IDR") }, ErrNonPositiveFiat},
		{"smallest fiat", func(tx *Transaction) { tx.Fiat = M(0.01, "IDR") }, nil},
		{"negative fiat", func(tx *Transaction) { tx.Fiat = M(-1, "IDR") }, ErrNonPositiveFiat},
		{"zero coin", func(tx *Transaction) { tx.Coin = Q(0) }, ErrNonPositiveCoin},
		{"one satoshi", func(tx *Transaction) { tx.Coin = Q(0.00000001) }, nil},
		{"zero fee", func(tx *Transaction) { tx.Fee = M(0, "IDR") }, nil},
		{"negative fee", func(tx *Transaction) { tx.Fee = M(-1, "IDR") }, ErrNegativeFee},
		// the checks short-circuit in order: date, fiat, coin, fee
		{"future date first", func(tx *Transaction) {
			tx.Date, tx.Fiat, tx.Coin, tx.Fee = today.Add(2), M(0, "IDR"), Q(0), M(-1, "IDR")
		}, ErrFutureDate},
		{"fiat before coin", func(tx *Transaction) { tx.Fiat, tx.Coin = M(0, "IDR"), Q(0) }, ErrNonPositiveFiat},
		{"coin before fee", func(tx *Transaction) { tx.Coin, tx.Fee = Q(-1), M(-1, "IDR") }, ErrNonPositiveCoin},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTx()
			tc.modify(&tx)
			err := Validate(tx, today)
			if tc.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate() = %T, want a *ValidationError", err)
			}
		})
	}
}

func TestInputTransaction(t *testing.T) {
	testCases := []struct {
		name      string
		in        Input
		wantField string
		wantErr   error
	}{
		{"missing date", Input{Fiat: "100", Coin: "0.1"}, "date", ErrRequired},
		{"missing fiat", Input{Date: "2025-06-01", Coin: "0.1"}, "fiat", ErrRequired},
		{"fiat is not a number", Input{Date: "2025-06-01", Fiat: "lots", Coin: "0.1"}, "fiat", ErrMalformed},
		{"coin is not a number", Input{Date: "2025-06-01", Fiat: "100", Coin: "0,1"}, "coin", ErrMalformed},
		{"fee is not a number", Input{Date: "2025-06-01", Fiat: "100", Coin: "0.1", Fee: "x"}, "fee", ErrMalformed},
		{"exchange too long", Input{Date: "2025-06-01", Fiat: "100", Coin: "0.1", Exchange: strings.Repeat("x", 65)}, "exchange", ErrTooLong},
		{"bad date", Input{Date: "June 1st", Fiat: "100", Coin: "0.1"}, "date", ErrMalformed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.in.Transaction("alice", DefaultAsset)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Transaction() = %v, want a *ValidationError", err)
			}
			if verr.Field != tc.wantField {
				t.Errorf("Transaction() field = %q, want %q", verr.Field, tc.wantField)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Transaction() = %v, want %v", err, tc.wantErr)
			}
		})
	}

	t.Run("parses every field", func(t *testing.T) {
		in := Input{Date: "2025-06-01", Exchange: " <b>Indodax</b> ", Fiat: "1500000.50", Coin: "0.00123456", Fee: "2500"}
		tx, err := in.Transaction("alice", DefaultAsset)
		if err != nil {
			t.Fatalf("Transaction() unexpected error: %v", err)
		}
		want := NewTransaction("alice", date.New(2025, 6, 1), "Indodax", M(1500000.50, "IDR"), Q(0.00123456), M(2500, "IDR"))
		if !tx.Equal(want) {
			t.Errorf("Transaction() = %v, want %v", tx, want)
		}
	})

	t.Run("fee defaults to zero", func(t *testing.T) {
		tx, err := Input{Date: "2025-06-01", Fiat: "100", Coin: "0.1"}.Transaction("alice", DefaultAsset)
		if err != nil {
			t.Fatalf("Transaction() unexpected error: %v", err)
		}
		if !tx.Fee.Equal(M(0, "IDR")) {
			t.Errorf("Transaction().Fee = %v, want 0 IDR", tx.Fee)
		}
	})

	t.Run("edit prefill round trip", func(t *testing.T) {
		want := validTx()
		got, err := InputOf(want).Transaction("alice", DefaultAsset)
		if err != nil {
			t.Fatalf("Transaction() unexpected error: %v", err)
		}
		if !got.Equal(want) {
			t.Errorf("InputOf(tx).Transaction() = %v, want %v", got, want)
		}
	})
}

func TestSanitizeLabel(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"Indodax", "Indodax"},
		{"  Tokocrypto\t", "Tokocrypto"},
		{"<script>alert(1)</script>Binance", "Binance"},
		{"<a href='x'>Pintu</a>", "Pintu"},
		{"Rekeningku & co", "Rekeningku & co"},
	}
	for _, tc := range testCases {
		if got := SanitizeLabel(tc.in); got != tc.want {
			t.Errorf("SanitizeLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
