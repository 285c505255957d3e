package dca

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/etnz/dca/date"
)

// Dashboard is the live view of an owner's portfolio.
//
// It loads the summary and the current page of transactions concurrently,
// keeps the latest price from a Poller, and sends the owner's changes to the
// Store. Its state is a View, replaced through Reduce for every event.
//
// A Dashboard must be closed, which stops the price polling and the session
// subscription.
type Dashboard struct {
	store   Store
	session Session
	poller  *Poller
	asset   Asset
	log     *slog.Logger

	// Today returns the evaluation date of new transactions. Defaults to date.Today.
	Today func() date.Date
	// OnChange, if set, is called with every new View. It is called with the
	// dashboard locked and must not call back into it.
	OnChange func(View)

	mu     sync.Mutex
	view   View
	ctx    context.Context // ctx lives from Open to Close
	cancel context.CancelFunc
	poll   *Poll
	unsub  func()
}

// NewDashboard returns a Dashboard of asset's transactions in store, for the
// user of session, priced by poller. A nil logger means slog.Default().
func NewDashboard(store Store, session Session, poller *Poller, asset Asset, pageSize int, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		store:   store,
		session: session,
		poller:  poller,
		asset:   asset,
		log:     logger,
		Today:   date.Today,
		view:    NewView(Identity{}, pageSize),
	}
}

// Open resolves the current user, starts the price polling and loads the first
// page. It returns ErrSignedOut if nobody is signed in.
func (d *Dashboard) Open(ctx context.Context) error {
	id, err := d.session.CurrentUser(ctx)
	if errors.Is(err, ErrSignedOut) {
		d.dispatch(SessionChanged{SignedIn: false})
		return err
	}
	if err != nil {
		return err
	}
	d.dispatch(SessionChanged{Identity: id, SignedIn: true})

	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Unlock()

	d.unsub = d.session.Subscribe(d.sessionChanged)
	if d.poller != nil {
		if q := d.poller.Latest(); q.Available() {
			d.dispatch(QuoteReceived{Quote: q})
		}
		d.poller.OnQuote = func(q Quote) { d.dispatch(QuoteReceived{Quote: q}) }
		d.poll = d.poller.Start(d.ctx)
	}
	return d.Refresh(ctx)
}

// Close stops the price polling and the session subscription. It is safe to
// call Close more than once, or on a Dashboard that failed to open.
func (d *Dashboard) Close() {
	if d.poll != nil {
		d.poll.Stop()
	}
	if d.unsub != nil {
		d.unsub()
		d.unsub = nil
	}
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()
}

func (d *Dashboard) sessionChanged(id Identity, ok bool) {
	before := d.State().Owner
	d.dispatch(SessionChanged{Identity: id, SignedIn: ok})
	if !ok || id.ID == before.ID {
		return
	}
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if err := d.Refresh(ctx); err != nil {
		d.log.Warn("cannot load transactions of new user", "owner", id.ID, "error", err)
	}
}

// State returns the current View.
func (d *Dashboard) State() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Asset returns the tracked asset.
func (d *Dashboard) Asset() Asset { return d.asset }

func (d *Dashboard) dispatch(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view = Reduce(d.view, e)
	if d.OnChange != nil {
		d.OnChange(d.view)
	}
}

// Select changes the display currency.
func (d *Dashboard) Select(display Display) { d.dispatch(DisplaySelected{Display: display}) }

// GoTo moves to page n, clamped to the existing pages, and loads it.
func (d *Dashboard) GoTo(ctx context.Context, n int) error {
	d.dispatch(PageRequested{Number: n})
	v := d.State()
	r, err := d.store.Find(ctx, v.Owner.ID, v.Page)
	if err != nil {
		d.dispatch(Failed{Err: err})
		return err
	}
	d.dispatch(RowsLoaded{Owner: v.Owner.ID, Result: r})
	return nil
}

// Refresh loads the summary and the current page concurrently. The View
// becomes Ready once both arrived, in any order.
func (d *Dashboard) Refresh(ctx context.Context) error {
	v := d.State()
	if v.Phase == SignedOut {
		return ErrSignedOut
	}
	var (
		wg                 sync.WaitGroup
		findErr, summaryErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		r, err := d.store.Find(ctx, v.Owner.ID, v.Page)
		if err != nil {
			findErr = err
			return
		}
		d.dispatch(RowsLoaded{Owner: v.Owner.ID, Result: r})
	}()
	go func() {
		defer wg.Done()
		s, err := d.store.Summary(ctx, v.Owner.ID)
		if err != nil {
			summaryErr = err
			return
		}
		d.dispatch(SummaryLoaded{Owner: v.Owner.ID, Summary: s})
	}()
	wg.Wait()
	if err := errors.Join(findErr, summaryErr); err != nil {
		d.dispatch(Failed{Err: err})
		return err
	}
	// the page may be past the end after a delete
	if v := d.State(); v.Page.Number > max(v.TotalPages(), 1) {
		return d.GoTo(ctx, v.TotalPages())
	}
	return nil
}

// Add validates in and records it as a new transaction of the owner.
func (d *Dashboard) Add(ctx context.Context, in Input) (Transaction, error) {
	tx, err := d.candidate(in)
	if err != nil {
		return Transaction{}, err
	}
	tx, err = d.store.Insert(ctx, tx)
	if err != nil {
		d.dispatch(Failed{Err: err})
		return Transaction{}, err
	}
	d.log.Info("transaction added", "id", tx.ID, "owner", tx.Owner)
	return tx, d.Refresh(ctx)
}

// Edit validates in and replaces every field of the owner's transaction id.
func (d *Dashboard) Edit(ctx context.Context, id string, in Input) (Transaction, error) {
	tx, err := d.candidate(in)
	if err != nil {
		return Transaction{}, err
	}
	tx.ID = id
	tx, err = d.store.Update(ctx, tx)
	if err != nil {
		d.dispatch(Failed{Err: err})
		return Transaction{}, err
	}
	d.log.Info("transaction updated", "id", tx.ID, "owner", tx.Owner)
	return tx, d.Refresh(ctx)
}

// Delete removes the owner's transaction id for good.
func (d *Dashboard) Delete(ctx context.Context, id string) error {
	owner := d.State().Owner.ID
	if err := d.store.Delete(ctx, owner, id); err != nil {
		d.dispatch(Failed{Err: err})
		return err
	}
	d.log.Info("transaction deleted", "id", id, "owner", owner)
	return d.Refresh(ctx)
}

// candidate returns the transaction of the owner described by in, if valid.
func (d *Dashboard) candidate(in Input) (Transaction, error) {
	v := d.State()
	if v.Phase == SignedOut {
		return Transaction{}, ErrSignedOut
	}
	tx, err := in.Transaction(v.Owner.ID, d.asset)
	if err == nil {
		err = Validate(tx, d.Today())
	}
	if err != nil {
		d.dispatch(Failed{Err: err})
		return Transaction{}, err
	}
	return tx, nil
}
