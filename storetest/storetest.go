// Package storetest checks implementations of dca.Store.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/etnz/dca"
	"github.com/etnz/dca/date"
)

var today = date.New(2025, 6, 15)

// fill inserts n transactions of owner, one per day before today.
func fill(t *testing.T, s dca.Store, owner string, n int) []dca.Transaction {
	t.Helper()
	var txs []dca.Transaction
	for i := range n {
		tx := dca.NewTransaction(owner, today.Add(-i), "", dca.M(100000*(i+1), "IDR"), dca.Q(0.0001), dca.M(0, "IDR"))
		tx, err := s.Insert(context.Background(), tx)
		if err != nil {
			t.Fatalf("Insert() unexpected error: %v", err)
		}
		txs = append(txs, tx)
	}
	return txs
}

// Run checks that the stores returned by newStore honor the dca.Store
// contract. Every call to newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) dca.Store) {
	ctx := context.Background()

	t.Run("pagination", func(t *testing.T) {
		s := newStore(t)
		fill(t, s, "alice", 25)
		fill(t, s, "bob", 3)

		testCases := []struct {
			page     int
			wantRows int
		}{
			{1, 10},
			{2, 10},
			{3, 5},
			{4, 0},
		}
		for _, tc := range testCases {
			r, err := s.Find(ctx, "alice", dca.Page{Number: tc.page, Size: 10})
			if err != nil {
				t.Fatalf("Find(page %d) unexpected error: %v", tc.page, err)
			}
			if len(r.Rows) != tc.wantRows {
				t.Errorf("Find(page %d) returned %d rows, want %d", tc.page, len(r.Rows), tc.wantRows)
			}
			if r.Total != 25 {
				t.Errorf("Find(page %d).Total = %d, want 25", tc.page, r.Total)
			}
			if got := r.TotalPages(); got != 3 {
				t.Errorf("Find(page %d).TotalPages() = %d, want 3", tc.page, got)
			}
		}
	})

	t.Run("most recent first", func(t *testing.T) {
		s := newStore(t)
		for _, day := range []string{"2025-01-10", "2025-03-01", "2025-01-10", "2024-12-31"} {
			tx := dca.NewTransaction("alice", date.MustParse(day), "", dca.M(1000, "IDR"), dca.Q(0.001), dca.M(0, "IDR"))
			if _, err := s.Insert(ctx, tx); err != nil {
				t.Fatalf("Insert() unexpected error: %v", err)
			}
		}
		r, err := s.Find(ctx, "alice", dca.FirstPage(10))
		if err != nil {
			t.Fatalf("Find() unexpected error: %v", err)
		}
		want := []string{"2025-03-01", "2025-01-10", "2025-01-10", "2024-12-31"}
		for i, tx := range r.Rows {
			if got := tx.Date.String(); got != want[i] {
				t.Errorf("Find().Rows[%d].Date = %s, want %s", i, got, want[i])
			}
		}
		if a, b := r.Rows[1].ID, r.Rows[2].ID; a > b {
			t.Errorf("same day rows are not sorted by id: %q before %q", a, b)
		}
	})

	t.Run("summary", func(t *testing.T) {
		s := newStore(t)
		empty, err := s.Summary(ctx, "alice")
		if err != nil {
			t.Fatalf("Summary() unexpected error: %v", err)
		}
		if empty.Count != 0 || !empty.Invested.IsZero() || !empty.Holdings.IsZero() {
			t.Errorf("Summary() of an owner without transactions = %+v, want zeros", empty)
		}

		fill(t, s, "alice", 4) // 100000 + 200000 + 300000 + 400000
		fill(t, s, "bob", 2)
		got, err := s.Summary(ctx, "alice")
		if err != nil {
			t.Fatalf("Summary() unexpected error: %v", err)
		}
		if want := dca.M(1000000, "IDR"); !got.Invested.Equal(want) {
			t.Errorf("Summary().Invested = %v, want %v", got.Invested, want)
		}
		if want := dca.Q(0.0004); !got.Holdings.Equal(want) {
			t.Errorf("Summary().Holdings = %v, want %v", got.Holdings, want)
		}
		if got.Count != 4 {
			t.Errorf("Summary().Count = %d, want 4", got.Count)
		}
	})

	t.Run("update replaces every field", func(t *testing.T) {
		s := newStore(t)
		tx := fill(t, s, "alice", 1)[0]
		edited := dca.NewTransaction("alice", today.Add(-30), "Indodax", dca.M(2500000, "IDR"), dca.Q(0.00123456), dca.M(12500, "IDR"))
		edited.ID = tx.ID
		if _, err := s.Update(ctx, edited); err != nil {
			t.Fatalf("Update() unexpected error: %v", err)
		}
		r, err := s.Find(ctx, "alice", dca.FirstPage(10))
		if err != nil {
			t.Fatalf("Find() unexpected error: %v", err)
		}
		if len(r.Rows) != 1 || !r.Rows[0].Equal(edited) {
			t.Errorf("Find() after Update() = %v, want [%v]", r.Rows, edited)
		}
	})

	t.Run("owners are isolated", func(t *testing.T) {
		s := newStore(t)
		tx := fill(t, s, "alice", 1)[0]

		stolen := tx
		stolen.Owner = "mallory"
		if _, err := s.Update(ctx, stolen); !errors.Is(err, dca.ErrNotFound) {
			t.Errorf("Update() by another owner = %v, want %v", err, dca.ErrNotFound)
		}
		if err := s.Delete(ctx, "mallory", tx.ID); !errors.Is(err, dca.ErrNotFound) {
			t.Errorf("Delete() by another owner = %v, want %v", err, dca.ErrNotFound)
		}
		var serr *dca.StorageError
		if err := s.Delete(ctx, "mallory", tx.ID); !errors.As(err, &serr) {
			t.Errorf("Delete() by another owner = %T, want a *dca.StorageError", err)
		}
		r, _ := s.Find(ctx, "alice", dca.FirstPage(10))
		if r.Total != 1 || !r.Rows[0].Equal(tx) {
			t.Errorf("Find() = %v, want the untouched %v", r.Rows, tx)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		txs := fill(t, s, "alice", 3)
		if err := s.Delete(ctx, "alice", txs[1].ID); err != nil {
			t.Fatalf("Delete() unexpected error: %v", err)
		}
		if err := s.Delete(ctx, "alice", txs[1].ID); !errors.Is(err, dca.ErrNotFound) {
			t.Errorf("second Delete() = %v, want %v", err, dca.ErrNotFound)
		}
		r, _ := s.Find(ctx, "alice", dca.FirstPage(10))
		if r.Total != 2 {
			t.Errorf("Find().Total after Delete() = %d, want 2", r.Total)
		}
		for _, tx := range r.Rows {
			if tx.ID == txs[1].ID {
				t.Errorf("deleted transaction %s still found", tx.ID)
			}
		}
	})
	t.Run("one currency per owner", func(t *testing.T) {
		s := newStore(t)
		fill(t, s, "alice", 2)
		eur := dca.NewTransaction("alice", today, "", dca.M(100, "EUR"), dca.Q(0.001), dca.M(0, "EUR"))
		if _, err := s.Insert(ctx, eur); !errors.Is(err, dca.ErrCurrencyMismatch) {
			t.Errorf("Insert() in EUR = %v, want %v", err, dca.ErrCurrencyMismatch)
		}
		sum, err := s.Summary(ctx, "alice")
		if err != nil {
			t.Fatalf("Summary() unexpected error: %v", err)
		}
		if sum.Count != 2 || sum.Invested.Currency() != "IDR" {
			t.Errorf("Summary() = %d in %s, want 2 in IDR", sum.Count, sum.Invested.Currency())
		}

		// other owners keep their own currency
		bob, err := s.Insert(ctx, dca.NewTransaction("bob", today, "", dca.M(100, "EUR"), dca.Q(0.001), dca.M(0, "EUR")))
		if err != nil {
			t.Fatalf("Insert() of bob in EUR unexpected error: %v", err)
		}
		// and may change it when it is their only purchase
		bob.Fiat, bob.Fee = dca.M(1500000, "IDR"), dca.M(0, "IDR")
		if _, err := s.Update(ctx, bob); err != nil {
			t.Fatalf("Update() of the only purchase unexpected error: %v", err)
		}
		sum, err = s.Summary(ctx, "bob")
		if err != nil {
			t.Fatalf("Summary() unexpected error: %v", err)
		}
		if sum.Count != 1 || !sum.Invested.Equal(dca.M(1500000, "IDR")) {
			t.Errorf("Summary() of bob = %v, want 1 purchase of IDR 1500000", sum)
		}
	})
}
