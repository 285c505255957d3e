package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/dca"
	"github.com/etnz/dca/date"
	"github.com/etnz/dca/renderer"
	"github.com/google/subcommands"
)

// purchaseFlags are the fields of a transaction input.
type purchaseFlags struct {
	date     string
	exchange string
	fiat     string
	coin     string
	fee      string
}

func (p *purchaseFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.date, "d", date.Today().String(), "Purchase date (YYYY-MM-DD), not in the future.")
	f.StringVar(&p.exchange, "x", "", "Exchange or place of purchase.")
	f.StringVar(&p.fiat, "fiat", "", "Amount spent, in the base currency.")
	f.StringVar(&p.coin, "coin", "", "Amount of coin received.")
	f.StringVar(&p.fee, "fee", "0", "Fee paid, in the base currency.")
}

// apply overrides in with the flags set on the command line.
func (p *purchaseFlags) apply(f *flag.FlagSet, in dca.Input) dca.Input {
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "d":
			in.Date = p.date
		case "x":
			in.Exchange = p.exchange
		case "fiat":
			in.Fiat = json.Number(p.fiat)
		case "coin":
			in.Coin = json.Number(p.coin)
		case "fee":
			in.Fee = json.Number(p.fee)
		}
	})
	return in
}

func (p *purchaseFlags) input() dca.Input {
	return dca.Input{Date: p.date, Exchange: p.exchange, Fiat: json.Number(p.fiat), Coin: json.Number(p.coin), Fee: json.Number(p.fee)}
}

// candidate parses and validates in as a transaction of owner.
func candidate(in dca.Input, owner string, a dca.Asset) (dca.Transaction, error) {
	tx, err := in.Transaction(owner, a)
	if err != nil {
		return dca.Transaction{}, err
	}
	return tx, dca.Validate(tx, date.Today())
}

// session opens everything a transaction command needs.
func session(ctx context.Context) (store dca.Store, release func(), owner string, a dca.Asset, err error) {
	if a, err = Asset(); err != nil {
		return
	}
	if owner, err = currentOwner(ctx); err != nil {
		return
	}
	store, release, err = OpenStore(ctx, logger())
	return
}

// --- Add Command ---

type addCmd struct {
	purchaseFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a purchase" }
func (*addCmd) Usage() string {
	return `dcat add [-d <date>] [-x <exchange>] -fiat <amount> -coin <amount> [-fee <amount>]

  Records a purchase of coin. Amounts are decimal numbers, the fiat amount and
  the fee are in the base currency.

Usage Examples:
$ dcat add -d 2025-06-01 -x Indodax -fiat 1500000 -coin 0.00098 -fee 2500
`
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.fiat == "" || c.coin == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	store, release, owner, a, err := session(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()

	tx, err := candidate(c.input(), owner, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid purchase: %v\n", err)
		return subcommands.ExitUsageError
	}
	if tx, err = store.Insert(ctx, tx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Recorded %s\n", tx.ID)
	return subcommands.ExitSuccess
}

// --- Edit Command ---

type editCmd struct {
	purchaseFlags
	id string
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "replace the fields of a recorded purchase" }
func (*editCmd) Usage() string {
	return `dcat edit -id <id> [-d <date>] [-x <exchange>] [-fiat <amount>] [-coin <amount>] [-fee <amount>]

  Changes the given fields of a purchase, the others are kept. The edited
  purchase is validated like a new one.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	c.purchaseFlags.SetFlags(f)
	f.StringVar(&c.id, "id", "", "Id of the purchase, as listed by 'dcat list'.")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	store, release, owner, a, err := session(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()

	old, err := lookup(ctx, store, owner, c.id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	tx, err := candidate(c.apply(f, dca.InputOf(old)), owner, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid purchase: %v\n", err)
		return subcommands.ExitUsageError
	}
	tx.ID = old.ID
	if _, err := store.Update(ctx, tx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Updated %s\n", tx.ID)
	return subcommands.ExitSuccess
}

// lookupPageSize is the page size used to scan for a transaction.
const lookupPageSize = 100

// lookup returns the owner's transaction id.
func lookup(ctx context.Context, store dca.Store, owner, id string) (dca.Transaction, error) {
	page := dca.FirstPage(lookupPageSize)
	for {
		r, err := store.Find(ctx, owner, page)
		if err != nil {
			return dca.Transaction{}, err
		}
		for _, tx := range r.Rows {
			if tx.ID == id {
				return tx, nil
			}
		}
		if !r.HasNext() {
			return dca.Transaction{}, fmt.Errorf("%w: %s", dca.ErrNotFound, id)
		}
		page.Number++
	}
}

// --- Delete Command ---

type deleteCmd struct {
	id  string
	yes bool
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete a recorded purchase" }
func (*deleteCmd) Usage() string {
	return `dcat delete -id <id> -y

  Deletes a purchase. This cannot be undone, -y confirms it.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the purchase, as listed by 'dcat list'.")
	f.BoolVar(&c.yes, "y", false, "Confirm the deletion.")
}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	store, release, owner, _, err := session(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()

	tx, err := lookup(ctx, store, owner, c.id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if !c.yes {
		fmt.Fprintf(os.Stderr, "Not deleted: %v. Use -y to confirm.\n", tx)
		return subcommands.ExitUsageError
	}
	if err := store.Delete(ctx, owner, tx.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted %s\n", tx.ID)
	return subcommands.ExitSuccess
}

// --- List Command ---

type listCmd struct {
	page int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list recorded purchases, most recent first" }
func (*listCmd) Usage() string {
	return `dcat list [-p <page>]

  Lists one page of purchases, most recent first. A page past the end shows
  the last one.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.page, "p", 1, "Page number, from 1.")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, release, owner, a, err := session(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()

	r, err := findPage(ctx, store, owner, dca.Page{Number: c.page, Size: *pageSize})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	v := dca.View{Phase: dca.Ready, Owner: dca.Identity{ID: owner}, Page: r.Page, Rows: r.Rows, Total: r.Total}
	printMarkdown(renderer.RenderTransactions(renderer.NewDashboard(v, a)))
	return subcommands.ExitSuccess
}

// findPage returns the page, or the last one if page is past the end.
func findPage(ctx context.Context, store dca.Store, owner string, page dca.Page) (dca.PageResult, error) {
	r, err := store.Find(ctx, owner, page.Normalize())
	if err != nil {
		return r, err
	}
	if last := r.TotalPages(); last > 0 && r.Page.Number > last {
		return store.Find(ctx, owner, dca.Page{Number: last, Size: r.Page.Size})
	}
	return r, nil
}
