package dca

// Phase is the loading state of a View.
type Phase int

const (
	Loading   Phase = iota // Loading until both the rows and the summary arrived.
	Ready                  // Ready to display.
	SignedOut              // SignedOut needs the login flow.
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case SignedOut:
		return "signed out"
	default:
		return "unknown"
	}
}

// View is the state of a dashboard. It is a value: it is never modified in
// place, Reduce returns a new one.
type View struct {
	Phase   Phase
	Owner   Identity
	Display Display
	Page    Page
	Rows    []Transaction
	Total   int
	Summary Summary
	Quote   Quote
	Err     error // Err is the failure of the last user action, if any.

	rowsLoaded, summaryLoaded bool
}

// NewView returns the initial View of owner, loading the first page of size
// rows.
func NewView(owner Identity, size int) View {
	return View{Phase: Loading, Owner: owner, Display: Base, Page: FirstPage(size).Normalize()}
}

// TotalPages returns the number of pages of the owner's transactions.
func (v View) TotalPages() int { return TotalPages(v.Total, v.Page.Size) }

// Metrics values the loaded summary with the loaded quote.
func (v View) Metrics() (Metrics, error) { return ComputeMetrics(v.Summary, v.Quote, v.Display) }

// Event is a change applied to a View by Reduce.
type Event interface{ event() }

type (
	// SessionChanged is emitted on sign in and sign out.
	SessionChanged struct {
		Identity Identity
		SignedIn bool
	}
	// RowsLoaded carries a page of transactions of Owner.
	RowsLoaded struct {
		Owner  string
		Result PageResult
	}
	// SummaryLoaded carries the summary of Owner.
	SummaryLoaded struct {
		Owner   string
		Summary Summary
	}
	// QuoteReceived carries a new quote from the price feed.
	QuoteReceived struct{ Quote Quote }
	// DisplaySelected changes the display currency.
	DisplaySelected struct{ Display Display }
	// PageRequested moves to another page, clamped to the existing ones.
	PageRequested struct{ Number int }
	// Failed reports the failure of a user action.
	Failed struct{ Err error }
)

func (SessionChanged) event()  {}
func (RowsLoaded) event()      {}
func (SummaryLoaded) event()   {}
func (QuoteReceived) event()   {}
func (DisplaySelected) event() {}
func (PageRequested) event()   {}
func (Failed) event()          {}

// Reduce returns the View resulting from e applied to v.
func Reduce(v View, e Event) View {
	switch e := e.(type) {
	case SessionChanged:
		if !e.SignedIn {
			return View{Phase: SignedOut, Display: v.Display, Page: FirstPage(v.Page.Size).Normalize(), Quote: v.Quote}
		}
		if e.Identity.ID != v.Owner.ID || v.Phase == SignedOut {
			// another owner: nothing loaded is valid anymore
			next := NewView(e.Identity, v.Page.Size)
			next.Display, next.Quote = v.Display, v.Quote
			return next
		}
		v.Owner = e.Identity
	case RowsLoaded:
		if v.Phase == SignedOut || e.Owner != v.Owner.ID || e.Result.Page.Number != v.Page.Number {
			return v // answer to an outdated request
		}
		v.Rows, v.Total, v.rowsLoaded = e.Result.Rows, e.Result.Total, true
	case SummaryLoaded:
		if v.Phase == SignedOut || e.Owner != v.Owner.ID {
			return v
		}
		v.Summary, v.summaryLoaded = e.Summary, true
	case QuoteReceived:
		v.Quote = e.Quote
		return v // keeps Err
	case DisplaySelected:
		v.Display = e.Display
	case PageRequested:
		n := min(max(e.Number, 1), max(v.TotalPages(), 1))
		if n != v.Page.Number {
			v.Page.Number = n
			v.Rows, v.rowsLoaded = nil, false
		}
	case Failed:
		v.Err = e.Err
		return v
	}
	if v.Phase == Loading && v.rowsLoaded && v.summaryLoaded {
		v.Phase = Ready
	}
	v.Err = nil
	return v
}
