package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/dca"
	"github.com/etnz/dca/server"
	"github.com/google/subcommands"
	"golang.org/x/time/rate"
)

type serveCmd struct {
	addr  string
	burst int
	every time.Duration
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the JSON API" }
func (*serveCmd) Usage() string {
	return `dcat serve [-addr <address>] [-rate <interval>] [-burst <n>]

  Serves the JSON API over HTTP until interrupted. Requests must carry a
  bearer token signed with -jwt-secret, see 'dcat token'. The price is polled
  every -poll.

  GET    /api/price
  GET    /api/summary?currency=<currency>
  GET    /api/transactions?page=<n>
  POST   /api/transactions
  PUT    /api/transactions/{id}
  DELETE /api/transactions/{id}
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", ":8080", "Address to listen on.")
	f.DurationVar(&c.every, "rate", 100*time.Millisecond, "Sustained request rate, one request per interval.")
	f.IntVar(&c.burst, "burst", 30, "Maximum burst of requests.")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger()
	a, err := Asset()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	v, err := verifier()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	store, release, err := OpenStore(ctx, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()

	poller := dca.NewPoller(NewFeed(a), *pollEvery, log)
	poll := poller.Start(ctx)
	defer poll.Stop()

	api := server.New(store, poller, a, v, log)
	api.PageSize = *pageSize
	api.Limiter = rate.NewLimiter(rate.Every(c.every), c.burst)

	hs := &http.Server{
		Addr:         c.addr,
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdown); err != nil {
			log.Warn("server shutdown", "error", err)
		}
	}()

	log.Info("server starting", "address", c.addr, "store", *storeDriver)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- Token Command ---

type tokenCmd struct {
	subject string
	email   string
	ttl     time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue a bearer token for an owner" }
func (*tokenCmd) Usage() string {
	return `dcat token -sub <owner> [-email <email>] [-ttl <duration>]

  Prints a token identifying the owner, signed with -jwt-secret. Use it as
  -token, or as the bearer token of API requests.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subject, "sub", "", "Owner id.")
	f.StringVar(&c.email, "email", "", "Owner email.")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "Validity of the token.")
}

func (c *tokenCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.subject == "" || c.ttl <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	v, err := verifier()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	t, err := v.Sign(dca.Identity{ID: c.subject, Email: c.email}, c.ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(t)
	return subcommands.ExitSuccess
}
