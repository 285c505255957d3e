// Package cmd implements the CLI application to track dollar cost averaging
// purchases of a coin.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/dca"
	"github.com/etnz/dca/auth"
	"github.com/etnz/dca/coingecko"
	"github.com/etnz/dca/ledger"
	"github.com/etnz/dca/sqlstore"
	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "transactions")
	c.Register(&editCmd{}, "transactions")
	c.Register(&deleteCmd{}, "transactions")
	c.Register(&listCmd{}, "transactions")

	c.Register(&summaryCmd{}, "reports")
	c.Register(&watchCmd{}, "reports")
	c.Register(&priceCmd{}, "reports")

	c.Register(&serveCmd{}, "server")
	c.Register(&tokenCmd{}, "server")

	c.Register(&topicCmd{}, "")
}

// Store drivers.
const (
	driverLedger = "ledger"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	storeDriver = flag.String("store", driverLedger, "Storage driver: ledger, sqlite or postgres.")
	storeDB     = flag.String("db", "", "Ledger file, sqlite file or postgres DSN. Defaults to dca.jsonl for the ledger and dca.db for sqlite.")
	cacheTTL    = flag.Duration("cache-ttl", dca.DefaultCacheTTL, "How long reads are cached, 0 disables the cache.")
	owner       = flag.String("owner", "local", "Owner of the transactions when no token is given.")
	token       = flag.String("token", "", "Bearer token identifying the owner, verified with -jwt-secret.")
	jwtSecret   = flag.String("jwt-secret", "", "Secret used to sign and verify tokens.")
	coin        = flag.String("coin", dca.DefaultAsset.Coin, "Ticker of the tracked coin.")
	feedID      = flag.String("feed-id", dca.DefaultAsset.FeedID, "Identifier of the coin on the price feed.")
	base        = flag.String("base", dca.DefaultAsset.Base, "Currency purchases are recorded in.")
	secondary   = flag.String("secondary", dca.DefaultAsset.Secondary, "Alternative display currency.")
	apiKey      = flag.String("api-key", "", "CoinGecko demo API key.")
	pollEvery   = flag.Duration("poll", dca.DefaultPollInterval, "Price polling interval.")
	pageSize    = flag.Int("page-size", dca.DefaultPageSize, "Number of transactions per page.")
	logLevel    = flag.String("log-level", "warn", "Log level: debug, info, warn or error.")
)

// EnvName returns the environment variable that provides the default of the
// global flag name.
func EnvName(name string) string {
	return "DCA_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// FromEnv sets every flag of fs that was not set on the command line from its
// environment variable, if defined.
func FromEnv(fs *flag.FlagSet) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		v, ok := os.LookupEnv(EnvName(f.Name))
		if !ok {
			return
		}
		if err := f.Value.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s=%q: %w", EnvName(f.Name), v, err))
		}
	})
	return errors.Join(errs...)
}

// NewLogger returns the application logger, writing text to w at the -log-level.
func NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", *logLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// logger returns the application logger, falling back to warnings only if
// the level is invalid.
func logger() *slog.Logger {
	l, err := NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using warn\n", err)
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return l
}

// Asset returns the tracked asset from the global flags.
func Asset() (dca.Asset, error) {
	a := dca.Asset{
		Coin:      strings.ToUpper(*coin),
		FeedID:    *feedID,
		Base:      strings.ToUpper(*base),
		Secondary: strings.ToUpper(*secondary),
	}
	return a, a.Check()
}

// OpenStore opens the store selected by -store and -db, cached for -cache-ttl.
// The returned function releases it.
func OpenStore(ctx context.Context, log *slog.Logger) (dca.Store, func(), error) {
	var (
		s       dca.Store
		release = func() {}
	)
	switch *storeDriver {
	case driverLedger:
		l, err := ledger.Open(orDefault(*storeDB, "dca.jsonl"))
		if err != nil {
			return nil, nil, err
		}
		s = l
	case sqlstore.SQLite, sqlstore.Postgres:
		dsn := *storeDB
		if dsn == "" && *storeDriver == sqlstore.SQLite {
			dsn = "dca.db"
		}
		if dsn == "" {
			return nil, nil, fmt.Errorf("-db is required for the %s store", *storeDriver)
		}
		db, err := sqlstore.Open(ctx, *storeDriver, dsn, log)
		if err != nil {
			return nil, nil, err
		}
		s = db
		release = func() {
			if err := db.Close(); err != nil {
				log.Warn("cannot close database", "error", err)
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown store %q, want %s, %s or %s", *storeDriver, driverLedger, sqlstore.SQLite, sqlstore.Postgres)
	}
	if *cacheTTL > 0 {
		s = dca.NewCachedStore(s, *cacheTTL)
	}
	return s, release, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// verifier returns the token verifier, -jwt-secret is required.
func verifier() (*auth.Verifier, error) {
	if *jwtSecret == "" {
		return nil, errors.New("-jwt-secret (or " + EnvName("jwt-secret") + ") is required")
	}
	return auth.NewVerifier(*jwtSecret)
}

// NewSession returns the session of the current user: the -token holder if
// a token is given, the -owner otherwise.
func NewSession() (dca.Session, error) {
	if *token == "" {
		return auth.Local{ID: *owner}, nil
	}
	v, err := verifier()
	if err != nil {
		return nil, err
	}
	s := auth.NewSession(v)
	if err := s.SignIn(*token); err != nil {
		return nil, err
	}
	return s, nil
}

// currentOwner returns the id of the current user.
func currentOwner(ctx context.Context) (string, error) {
	s, err := NewSession()
	if err != nil {
		return "", err
	}
	id, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return id.ID, nil
}

// NewFeed returns the price feed of asset a.
func NewFeed(a dca.Asset) dca.Feed {
	return coingecko.New(a, *apiKey)
}

// printMarkdown renders md for the terminal, or prints it raw if it cannot.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// fetchTimeout bounds one-shot price requests.
const fetchTimeout = 15 * time.Second
