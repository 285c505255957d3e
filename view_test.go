package dca

import (
	"errors"
	"testing"
)

var alice = Identity{ID: "alice", Email: "alice@example.com"}

func loaded(total int) View {
	v := NewView(alice, 10)
	v = Reduce(v, RowsLoaded{Owner: "alice", Result: PageResult{Page: v.Page, Total: total}})
	return Reduce(v, SummaryLoaded{Owner: "alice", Summary: Summary{Count: total}})
}

func TestReduceLoading(t *testing.T) {
	testCases := []struct {
		name   string
		events []Event
		want   Phase
	}{
		{"nothing arrived", nil, Loading},
		{"rows only", []Event{RowsLoaded{Owner: "alice", Result: PageResult{Page: FirstPage(10)}}}, Loading},
		{"summary only", []Event{SummaryLoaded{Owner: "alice"}}, Loading},
		{"quote only", []Event{QuoteReceived{}}, Loading},
		{"rows then summary", []Event{RowsLoaded{Owner: "alice", Result: PageResult{Page: FirstPage(10)}}, SummaryLoaded{Owner: "alice"}}, Ready},
		{"summary then rows", []Event{SummaryLoaded{Owner: "alice"}, RowsLoaded{Owner: "alice", Result: PageResult{Page: FirstPage(10)}}}, Ready},
		{"signed out", []Event{SummaryLoaded{Owner: "alice"}, SessionChanged{SignedIn: false}}, SignedOut},
		{"late rows after sign out", []Event{SessionChanged{SignedIn: false}, RowsLoaded{Owner: "alice", Result: PageResult{Page: FirstPage(10)}}, SummaryLoaded{Owner: "alice"}}, SignedOut},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := NewView(alice, 10)
			for _, e := range tc.events {
				v = Reduce(v, e)
			}
			if v.Phase != tc.want {
				t.Errorf("Phase = %v, want %v", v.Phase, tc.want)
			}
		})
	}
}

func TestReducePageRequested(t *testing.T) {
	testCases := []struct {
		total     int
		requested int
		want      int
	}{
		{25, 3, 3},
		{25, 4, 3},
		{25, 0, 1},
		{25, -2, 1},
		{0, 2, 1},
		{10, 2, 1},
	}
	for _, tc := range testCases {
		v := Reduce(loaded(tc.total), PageRequested{Number: tc.requested})
		if v.Page.Number != tc.want {
			t.Errorf("PageRequested(%d) with %d rows: page = %d, want %d", tc.requested, tc.total, v.Page.Number, tc.want)
		}
	}
}

func TestReduceIgnoresOutdatedRows(t *testing.T) {
	v := Reduce(loaded(25), PageRequested{Number: 2})
	v = Reduce(v, RowsLoaded{Owner: "alice", Result: PageResult{Page: FirstPage(10), Rows: make([]Transaction, 10), Total: 25}})
	if v.Rows != nil {
		t.Errorf("rows of page 1 were accepted while page 2 is displayed")
	}
	v = Reduce(v, RowsLoaded{Owner: "alice", Result: PageResult{Page: Page{Number: 2, Size: 10}, Rows: make([]Transaction, 10), Total: 25}})
	if len(v.Rows) != 10 {
		t.Errorf("len(Rows) = %d, want 10", len(v.Rows))
	}
}

func TestReduceDoesNotMutate(t *testing.T) {
	before := loaded(25)
	after := Reduce(before, DisplaySelected{Display: Secondary})
	after = Reduce(after, PageRequested{Number: 3})
	if before.Display != Base || before.Page.Number != 1 {
		t.Errorf("Reduce() modified its input: %+v", before)
	}
	if after.Display != Secondary || after.Page.Number != 3 {
		t.Errorf("Reduce() = display %v page %d, want secondary page 3", after.Display, after.Page.Number)
	}
}

func TestReduceErrors(t *testing.T) {
	boom := errors.New("boom")
	v := Reduce(loaded(1), Failed{Err: boom})
	if v.Err != boom {
		t.Fatalf("Err = %v, want %v", v.Err, boom)
	}
	if v = Reduce(v, QuoteReceived{}); v.Err != boom {
		t.Errorf("Err after a quote = %v, want %v", v.Err, boom)
	}
	if v = Reduce(v, SummaryLoaded{Owner: "alice"}); v.Err != nil {
		t.Errorf("Err after a reload = %v, want nil", v.Err)
	}
}

func TestReduceSessionChanged(t *testing.T) {
	v := Reduce(loaded(25), DisplaySelected{Display: Secondary})
	v = Reduce(v, QuoteReceived{Quote: quote(t, 150000, 100)})

	bob := Identity{ID: "bob"}
	got := Reduce(v, SessionChanged{Identity: bob, SignedIn: true})
	if got.Owner != bob || got.Phase != Loading || got.Total != 0 {
		t.Errorf("another owner signed in: owner %v phase %v total %d, want bob loading 0", got.Owner, got.Phase, got.Total)
	}
	if got.Display != Secondary || !got.Quote.Available() {
		t.Errorf("another owner signed in: display and quote were not kept")
	}

	same := Reduce(v, SessionChanged{Identity: alice, SignedIn: true})
	if same.Phase != Ready || same.Total != 25 {
		t.Errorf("same owner refreshed: phase %v total %d, want ready 25", same.Phase, same.Total)
	}
}

func TestViewMetrics(t *testing.T) {
	v := NewView(alice, 10)
	v = Reduce(v, SummaryLoaded{Owner: "alice", Summary: Summary{Invested: M(1000, "IDR"), Holdings: Q(0.01), Count: 1}})
	if _, err := v.Metrics(); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("Metrics() before any quote = %v, want %v", err, ErrPriceUnavailable)
	}
	v = Reduce(v, QuoteReceived{Quote: quote(t, 150000, 100)})
	m, err := v.Metrics()
	if err != nil {
		t.Fatalf("Metrics() unexpected error: %v", err)
	}
	if want := M(1500, "IDR"); !m.Value.Equal(want) {
		t.Errorf("Metrics().Value = %v, want %v", m.Value, want)
	}
}

func TestReduceIgnoresOtherOwner(t *testing.T) {
	bob := Identity{ID: "bob"}
	v := Reduce(loaded(7), SessionChanged{Identity: bob, SignedIn: true})

	// answers to requests made for alice arrive after bob signed in
	v = Reduce(v, SummaryLoaded{Owner: "alice", Summary: Summary{Count: 7}})
	v = Reduce(v, RowsLoaded{Owner: "alice", Result: PageResult{Page: FirstPage(10), Rows: make([]Transaction, 7), Total: 7}})
	if v.Phase != Loading || v.Summary.Count != 0 || v.Rows != nil {
		t.Fatalf("bob's view = phase %v, %d transactions, %d rows, want loading and nothing of alice", v.Phase, v.Summary.Count, len(v.Rows))
	}

	v = Reduce(v, SummaryLoaded{Owner: "bob", Summary: Summary{Count: 1}})
	v = Reduce(v, RowsLoaded{Owner: "bob", Result: PageResult{Page: FirstPage(10), Rows: make([]Transaction, 1), Total: 1}})
	if v.Phase != Ready || v.Summary.Count != 1 || v.Total != 1 {
		t.Errorf("bob's view = phase %v, %d transactions, total %d, want ready 1 and 1", v.Phase, v.Summary.Count, v.Total)
	}
}
