package dca

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/etnz/dca/date"
)

// fakeSession is a Session controlled by the test.
type fakeSession struct {
	mu   sync.Mutex
	id   *Identity
	subs map[int]func(Identity, bool)
	next int
}

func signedIn(id Identity) *fakeSession { return &fakeSession{id: &id, subs: map[int]func(Identity, bool){}} }

func (s *fakeSession) CurrentUser(ctx context.Context) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		return Identity{}, ErrSignedOut
	}
	return *s.id, nil
}

func (s *fakeSession) Subscribe(f func(Identity, bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	s.subs[n] = f
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, n)
	}
}

func (s *fakeSession) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *fakeSession) signOut() {
	s.mu.Lock()
	s.id = nil
	subs := make([]func(Identity, bool), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	s.mu.Unlock()
	for _, f := range subs {
		f(Identity{}, false)
	}
}

// failingStore fails every write.
type failingStore struct{ Store }

var errDiskFull = errors.New("disk full")

func (failingStore) Update(ctx context.Context, tx Transaction) (Transaction, error) {
	return Transaction{}, &StorageError{Op: "update", Err: errDiskFull}
}

func newTestDashboard(t *testing.T, store Store, session Session) *Dashboard {
	t.Helper()
	feed := &scriptedFeed{quotes: []Quote{quote(t, 150000, 100)}}
	d := NewDashboard(store, session, NewPoller(feed, time.Hour, discard), DefaultAsset, 10, discard)
	d.Today = func() date.Date { return today }
	t.Cleanup(d.Close)
	return d
}

func TestDashboardOpen(t *testing.T) {
	store := NewMemoryStore()
	fill(t, store, "alice", 12)
	fill(t, store, "bob", 1)
	session := signedIn(alice)
	d := newTestDashboard(t, store, session)

	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	v := d.State()
	if v.Phase != Ready {
		t.Errorf("Phase = %v, want %v", v.Phase, Ready)
	}
	if len(v.Rows) != 10 || v.Total != 12 || v.Summary.Count != 12 {
		t.Errorf("State() = %d rows of %d, summary of %d, want 10 of 12, 12", len(v.Rows), v.Total, v.Summary.Count)
	}
	if session.subscribers() != 1 {
		t.Errorf("session subscribers = %d, want 1", session.subscribers())
	}

	d.Close()
	if session.subscribers() != 0 {
		t.Errorf("session subscribers after Close() = %d, want 0", session.subscribers())
	}
	select {
	case <-d.poll.Done():
	default:
		t.Error("price polling still running after Close()")
	}
}

func TestDashboardSignedOut(t *testing.T) {
	d := newTestDashboard(t, NewMemoryStore(), &fakeSession{})
	if err := d.Open(context.Background()); !errors.Is(err, ErrSignedOut) {
		t.Fatalf("Open() = %v, want %v", err, ErrSignedOut)
	}
	if got := d.State().Phase; got != SignedOut {
		t.Errorf("Phase = %v, want %v", got, SignedOut)
	}
	if _, err := d.Add(context.Background(), InputOf(validTx())); !errors.Is(err, ErrSignedOut) {
		t.Errorf("Add() while signed out = %v, want %v", err, ErrSignedOut)
	}
}

func TestDashboardSignOut(t *testing.T) {
	session := signedIn(alice)
	d := newTestDashboard(t, NewMemoryStore(), session)
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	session.signOut()
	if got := d.State().Phase; got != SignedOut {
		t.Errorf("Phase after sign out = %v, want %v", got, SignedOut)
	}
}

func TestDashboardAdd(t *testing.T) {
	store := NewMemoryStore()
	d := newTestDashboard(t, store, signedIn(alice))
	ctx := context.Background()
	if err := d.Open(ctx); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	tx, err := d.Add(ctx, Input{Date: "2025-06-01", Exchange: "Indodax", Fiat: "1000", Coin: "0.01"})
	if err != nil {
		t.Fatalf("Add() unexpected error: %v", err)
	}
	if tx.ID == "" || tx.Owner != "alice" {
		t.Errorf("Add() = id %q owner %q, want an id and alice", tx.ID, tx.Owner)
	}
	v := d.State()
	if v.Total != 1 || !v.Summary.Invested.Equal(M(1000, "IDR")) {
		t.Errorf("State() after Add() = total %d invested %v, want 1 and 1000 IDR", v.Total, v.Summary.Invested)
	}
}

func TestDashboardAddInvalid(t *testing.T) {
	store := NewMemoryStore()
	d := newTestDashboard(t, store, signedIn(alice))
	ctx := context.Background()
	if err := d.Open(ctx); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	testCases := []struct {
		name string
		in   Input
		want error
	}{
		{"tomorrow", Input{Date: today.Add(1).String(), Fiat: "1000", Coin: "0.01"}, ErrFutureDate},
		{"zero fiat", Input{Date: "2025-06-01", Fiat: "0", Coin: "0.01"}, ErrNonPositiveFiat},
		{"not a number", Input{Date: "2025-06-01", Fiat: "1000", Coin: "a lot"}, ErrMalformed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Add(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Errorf("Add() = %v, want %v", err, tc.want)
			}
			if got := d.State().Err; !errors.Is(got, tc.want) {
				t.Errorf("State().Err = %v, want %v", got, tc.want)
			}
		})
	}
	if all := store.All(); len(all) != 0 {
		t.Errorf("invalid transactions reached the store: %v", all)
	}
}

func TestDashboardFailedEditKeepsRows(t *testing.T) {
	mem := NewMemoryStore()
	tx := fill(t, mem, "alice", 1)[0]
	d := newTestDashboard(t, failingStore{mem}, signedIn(alice))
	ctx := context.Background()
	if err := d.Open(ctx); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	in := InputOf(tx)
	in.Fiat = "999"
	_, err := d.Edit(ctx, tx.ID, in)
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Edit() = %v, want %v", err, errDiskFull)
	}
	v := d.State()
	if len(v.Rows) != 1 || !v.Rows[0].Equal(tx) {
		t.Errorf("Rows after a failed Edit() = %v, want the untouched %v", v.Rows, tx)
	}
	if !errors.Is(v.Err, errDiskFull) {
		t.Errorf("State().Err = %v, want %v", v.Err, errDiskFull)
	}
}

func TestDashboardDeleteLastRowOfLastPage(t *testing.T) {
	store := NewMemoryStore()
	txs := fill(t, store, "alice", 11)
	d := newTestDashboard(t, store, signedIn(alice))
	ctx := context.Background()
	if err := d.Open(ctx); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	if err := d.GoTo(ctx, 2); err != nil {
		t.Fatalf("GoTo(2) unexpected error: %v", err)
	}
	last := d.State().Rows[0]
	if last.ID != txs[10].ID {
		t.Fatalf("page 2 holds %v, want the oldest transaction %v", last, txs[10])
	}

	if err := d.Delete(ctx, last.ID); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	v := d.State()
	if v.Page.Number != 1 || len(v.Rows) != 10 || v.Total != 10 {
		t.Errorf("State() after Delete() = page %d, %d rows of %d, want page 1, 10 of 10", v.Page.Number, len(v.Rows), v.Total)
	}
}

func TestDashboardReceivesQuotes(t *testing.T) {
	d := newTestDashboard(t, NewMemoryStore(), signedIn(alice))
	changes := make(chan View, 16)
	d.OnChange = func(v View) {
		select {
		case changes <- v:
		default:
		}
	}
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for !d.State().Quote.Available() {
		select {
		case <-changes:
		case <-deadline:
			t.Fatal("no quote received after Open()")
		}
	}
	d.Select(Secondary)
	m, err := d.State().Metrics()
	if err != nil {
		t.Fatalf("Metrics() unexpected error: %v", err)
	}
	if m.Invested.Currency() != "USD" {
		t.Errorf("Metrics().Invested currency = %q, want USD", m.Invested.Currency())
	}
}

// signIn switches the session to id and notifies the subscribers.
func (s *fakeSession) signIn(id Identity) {
	s.mu.Lock()
	s.id = &id
	subs := make([]func(Identity, bool), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	s.mu.Unlock()
	for _, f := range subs {
		f(id, true)
	}
}

// gatedStore holds the first Summary read of owner until release is closed.
type gatedStore struct {
	Store
	owner   string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(s Store, owner string) *gatedStore {
	return &gatedStore{Store: s, owner: owner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) Summary(ctx context.Context, owner string) (Summary, error) {
	if owner == s.owner {
		s.once.Do(func() {
			s.entered <- struct{}{}
			<-s.release
		})
	}
	return s.Store.Summary(ctx, owner)
}

func TestDashboardSwitchOwnerWhileLoading(t *testing.T) {
	store := NewMemoryStore()
	fill(t, store, "alice", 7)
	fill(t, store, "bob", 1)
	gated := newGatedStore(store, "alice")
	session := signedIn(alice)
	d := newTestDashboard(t, gated, session)

	opened := make(chan error, 1)
	go func() { opened <- d.Open(context.Background()) }()
	<-gated.entered

	// bob signs in while alice's summary is still being read
	session.signIn(Identity{ID: "bob"})
	close(gated.release)
	if err := <-opened; err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	v := d.State()
	if v.Owner.ID != "bob" {
		t.Fatalf("Owner = %q, want bob", v.Owner.ID)
	}
	if v.Summary.Count != 1 || v.Total != 1 || len(v.Rows) != 1 {
		t.Errorf("bob's view = summary of %d, %d rows of %d, want only bob's transaction", v.Summary.Count, len(v.Rows), v.Total)
	}
	for _, tx := range v.Rows {
		if tx.Owner != "bob" {
			t.Errorf("bob's view shows %v of %s", tx, tx.Owner)
		}
	}
	if v.Phase != Ready {
		t.Errorf("Phase = %v, want %v", v.Phase, Ready)
	}
}
