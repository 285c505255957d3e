package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/dca"
	"github.com/etnz/dca/renderer"
	"github.com/google/subcommands"
)

// summaryCmd holds the flags for the 'summary' subcommand.
type summaryCmd struct {
	currency string
	page     int
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the portfolio value and a page of purchases" }
func (*summaryCmd) Usage() string {
	return `dcat summary [-c <currency>] [-p <page>]

  Displays the total invested, the holdings, the average cost and the current
  value and profit at the latest price, followed by a page of purchases.
  Figures that need a price are not available if the price feed cannot be
  reached.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "base", "Display currency: base, secondary, or one of their codes.")
	f.IntVar(&c.page, "p", 1, "Page number, from 1.")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, release, owner, a, err := session(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()
	display, err := dca.ParseDisplay(c.currency, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	// the price is fetched while the store is read
	quotes := make(chan dca.Quote, 1)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		q, err := NewFeed(a).Fetch(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		quotes <- q
	}()

	r, err := findPage(ctx, store, owner, dca.Page{Number: c.page, Size: *pageSize})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	sum, err := store.Summary(ctx, owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	v := dca.View{
		Phase:   dca.Ready,
		Owner:   dca.Identity{ID: owner},
		Display: display,
		Page:    r.Page,
		Rows:    r.Rows,
		Total:   r.Total,
		Summary: sum,
		Quote:   <-quotes,
	}
	printMarkdown(renderer.RenderDashboard(renderer.NewDashboard(v, a)))
	return subcommands.ExitSuccess
}

// --- Watch Command ---

type watchCmd struct {
	currency string
	page     int
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "display a live dashboard updated on every price change" }
func (*watchCmd) Usage() string {
	return `dcat watch [-c <currency>] [-p <page>] [-poll <interval>]

  Displays the summary like 'dcat summary' and refreshes it every time a new
  price is received, until interrupted. When a price request fails the last
  price is kept, the "last updated" time shows its age.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "base", "Display currency: base, secondary, or one of their codes.")
	f.IntVar(&c.page, "p", 1, "Page number, from 1.")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger()
	a, err := Asset()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	display, err := dca.ParseDisplay(c.currency, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	sess, err := NewSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	store, release, err := OpenStore(ctx, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()

	d := dca.NewDashboard(store, sess, dca.NewPoller(NewFeed(a), *pollEvery, log), a, *pageSize, log)
	changed := make(chan struct{}, 1)
	d.OnChange = func(dca.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	if err := d.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer d.Close()
	d.Select(display)
	if err := d.GoTo(ctx, c.page); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	for {
		fmt.Print("\033[H\033[2J")
		printMarkdown(renderer.RenderDashboard(renderer.NewDashboard(d.State(), a)))
		select {
		case <-ctx.Done():
			return subcommands.ExitSuccess
		case <-changed:
		}
	}
}

// --- Price Command ---

type priceCmd struct{}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "display the current coin price" }
func (*priceCmd) Usage() string {
	return `dcat price

  Fetches and displays the current unit price of the coin in both currencies.
`
}

func (*priceCmd) SetFlags(f *flag.FlagSet) {}

func (*priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := Asset()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	q, err := NewFeed(a).Fetch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("1 %s = %s = %s (rate %s), fetched at %s\n",
		a.Coin, q.Base.Whole(), q.Secondary.String(), q.Rate.StringFixed(2), q.FetchedAt.Format(time.DateTime))
	return subcommands.ExitSuccess
}
