package dca

import (
	"context"
	"testing"
	"time"
)

func TestCachedStoreReadDuringWrite(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	fill(t, mem, "alice", 1)
	gated := newGatedStore(mem, "alice")
	c := NewCachedStore(gated, time.Minute)

	read := make(chan Summary, 1)
	go func() {
		s, _ := c.Summary(ctx, "alice")
		read <- s
	}()
	<-gated.entered

	// the summary read started before this insert and ends after it
	if _, err := c.Insert(ctx, NewTransaction("alice", today, "", M(1000, "IDR"), Q(0.01), M(0, "IDR"))); err != nil {
		t.Fatalf("Insert() unexpected error: %v", err)
	}
	close(gated.release)
	<-read

	got, err := c.Summary(ctx, "alice")
	if err != nil {
		t.Fatalf("Summary() unexpected error: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("Summary() after Insert() = %d transactions, want 2", got.Count)
	}
}

func TestCachedStorePagesAreCopies(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	fill(t, mem, "alice", 3)
	c := NewCachedStore(mem, time.Minute)

	page := FirstPage(10)
	r, _ := c.Find(ctx, "alice", page)
	want := r.Rows[0]
	r.Rows[0].Exchange = "changed by the caller"

	hit, _ := c.Find(ctx, "alice", page)
	hit.Rows[1].Exchange = "changed by the caller"
	again, _ := c.Find(ctx, "alice", page)
	if !again.Rows[0].Equal(want) {
		t.Errorf("cached row 0 = %v, want %v", again.Rows[0], want)
	}
	if again.Rows[1].Exchange != "" {
		t.Errorf("cached row 1 exchange = %q, want it unchanged", again.Rows[1].Exchange)
	}
}
