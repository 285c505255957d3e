package dca

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is the delay between two price polls.
const DefaultPollInterval = 30 * time.Second

// Feed fetches the current Quote from a price source.
type Feed interface {
	Fetch(ctx context.Context) (Quote, error)
}

// FeedFunc adapts a function to the Feed interface.
type FeedFunc func(ctx context.Context) (Quote, error)

func (f FeedFunc) Fetch(ctx context.Context) (Quote, error) { return f(ctx) }

// FeedError reports a failed price fetch: network, status or payload.
type FeedError struct {
	Source string // Source names the feed, usually its host.
	Err    error
}

func (e *FeedError) Error() string { return fmt.Sprintf("price feed %s: %v", e.Source, e.Err) }
func (e *FeedError) Unwrap() error { return e.Err }

// Poller keeps the latest Quote of a Feed.
//
// A failed poll keeps the previous quote, including its FetchedAt, so that
// stale prices remain usable. Failures are logged and retried on the next
// tick.
type Poller struct {
	feed     Feed
	interval time.Duration
	log      *slog.Logger
	quotes   Quotes

	// OnQuote, if set, is called after every successful poll with the new
	// quote. It is called from the polling goroutine.
	OnQuote func(Quote)
}

// NewPoller returns a Poller of feed every interval. A zero interval means
// DefaultPollInterval, a nil logger means slog.Default().
func NewPoller(feed Feed, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{feed: feed, interval: interval, log: logger}
}

// Latest returns the latest successfully fetched quote, or the zero Quote.
func (p *Poller) Latest() Quote { return p.quotes.Load() }

// Poll fetches a quote once. On success it replaces the latest quote. On
// failure the latest quote is left untouched and the error is returned.
func (p *Poller) Poll(ctx context.Context) error {
	q, err := p.feed.Fetch(ctx)
	if err != nil {
		return err
	}
	p.quotes.Store(q)
	if p.OnQuote != nil {
		p.OnQuote(q)
	}
	return nil
}

// Start polls once immediately, then every interval, in a new goroutine,
// until ctx is done or the returned handle is stopped.
func (p *Poller) Start(ctx context.Context) *Poll {
	ctx, cancel := context.WithCancel(ctx)
	h := &Poll{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			p.tick(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return h
}

func (p *Poller) tick(ctx context.Context) {
	err := p.Poll(ctx)
	if err == nil {
		p.log.Debug("price updated", "base", p.Latest().Base.Decimal(), "secondary", p.Latest().Secondary.Decimal())
		return
	}
	if ctx.Err() != nil {
		return // stopping
	}
	latest := p.Latest()
	p.log.Warn("price poll failed, keeping last quote", "error", err, "fetchedAt", latest.FetchedAt)
}

// Poll is the handle of a running Poller. It must be stopped when its owner
// is torn down.
type Poll struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the polling and waits for the polling goroutine to return.
// It is safe to call Stop more than once.
func (h *Poll) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the polling goroutine has returned.
func (h *Poll) Done() <-chan struct{} { return h.done }
