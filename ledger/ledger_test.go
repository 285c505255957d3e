package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etnz/dca"
	"github.com/etnz/dca/date"
	"github.com/etnz/dca/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) dca.Store {
		s, err := Open(filepath.Join(t.TempDir(), "transactions.jsonl"))
		if err != nil {
			t.Fatalf("Open() unexpected error: %v", err)
		}
		return s
	})
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alice", "transactions.jsonl")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	old, _ := s.Insert(ctx, dca.NewTransaction("alice", date.New(2025, 1, 10), "", dca.M(1000000, "IDR"), dca.Q(0.001), dca.M(0, "IDR")))
	recent, _ := s.Insert(ctx, dca.NewTransaction("alice", date.New(2025, 3, 1), "Indodax", dca.M(2000000, "IDR"), dca.Q(0.002), dca.M(5000, "IDR")))

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], recent.ID) {
		t.Errorf("ledger file = %q, want 2 lines, most recent first", content)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	r, err := reopened.Find(ctx, "alice", dca.FirstPage(10))
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if len(r.Rows) != 2 || !r.Rows[0].Equal(recent) || !r.Rows[1].Equal(old) {
		t.Errorf("Find() after reopen = %v, want [%v %v]", r.Rows, recent, old)
	}
}

func TestOpenInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open() of an invalid ledger succeeded, want an error")
	}
}

func TestFailedSaveRestores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "transactions.jsonl"))
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	tx, err := s.Insert(ctx, dca.NewTransaction("alice", date.New(2025, 1, 10), "", dca.M(1000000, "IDR"), dca.Q(0.001), dca.M(0, "IDR")))
	if err != nil {
		t.Fatalf("Insert() unexpected error: %v", err)
	}

	// a directory in place of the ledger file cannot be replaced
	s.path = filepath.Join(dir, "blocked")
	if err := os.MkdirAll(filepath.Join(s.path, "child"), 0755); err != nil {
		t.Fatal(err)
	}
	err = s.Delete(ctx, "alice", tx.ID)
	var serr *dca.StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("Delete() = %v, want a *dca.StorageError", err)
	}
	r, _ := s.Find(ctx, "alice", dca.FirstPage(10))
	if r.Total != 1 {
		t.Errorf("Find().Total after a failed Delete() = %d, want 1", r.Total)
	}
}
