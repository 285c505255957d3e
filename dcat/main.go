// Command dcat tracks the dollar-cost averaging of a single coin.
//
// Purchases are recorded in a store, and valued at the latest price fetched
// from CoinGecko. Run 'dcat help' for the list of subcommands.
//
// Every global flag can also be set with a DCA_* environment variable, for
// instance DCA_JWT_SECRET for -jwt-secret, or in a .env file in the working
// directory. Unknown subcommands are looked up as dcat-<name> executables on
// the PATH.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/etnz/dca/cmd"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

const name = "dcat"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: cannot read .env: %v\n", err)
	}

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	completion().Complete(name)

	flag.Parse()
	if err := cmd.FromEnv(flag.CommandLine); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	if sub := flag.Arg(0); sub != "" && !registered(commander, sub) {
		if found, code := cmd.RunExtension(sub, flag.Args()[1:]); found {
			os.Exit(code)
		}
	}
	os.Exit(int(commander.Execute(context.Background())))
}

// registered reports whether the subcommand exists in c.
func registered(c *subcommands.Commander, sub string) bool {
	found := false
	c.VisitCommands(func(_ *subcommands.CommandGroup, command subcommands.Command) {
		if command.Name() == sub {
			found = true
		}
	})
	return found
}

// completion describes the command line for shell completion.
func completion() *complete.Command {
	currency := predict.Set{"base", "secondary", "IDR", "USD"}
	page := predict.Something
	id := predict.Something
	purchase := map[string]complete.Predictor{
		"d":    predict.Something,
		"x":    predict.Something,
		"fiat": predict.Something,
		"coin": predict.Something,
		"fee":  predict.Something,
	}
	with := func(flags map[string]complete.Predictor, more map[string]complete.Predictor) map[string]complete.Predictor {
		m := make(map[string]complete.Predictor, len(flags)+len(more))
		for k, v := range flags {
			m[k] = v
		}
		for k, v := range more {
			m[k] = v
		}
		return m
	}

	return &complete.Command{
		Sub: map[string]*complete.Command{
			"add":     {Flags: purchase},
			"edit":    {Flags: with(purchase, map[string]complete.Predictor{"id": id})},
			"delete":  {Flags: map[string]complete.Predictor{"id": id, "y": predict.Nothing}},
			"list":    {Flags: map[string]complete.Predictor{"p": page}},
			"summary": {Flags: map[string]complete.Predictor{"c": currency, "p": page}},
			"watch":   {Flags: map[string]complete.Predictor{"c": currency, "p": page}},
			"price":   {},
			"serve": {Flags: map[string]complete.Predictor{
				"addr":  predict.Something,
				"rate":  predict.Something,
				"burst": predict.Something,
			}},
			"token": {Flags: map[string]complete.Predictor{
				"sub":   predict.Something,
				"email": predict.Something,
				"ttl":   predict.Something,
			}},
			"topic":    {Flags: map[string]complete.Predictor{"l": predict.Nothing}, Args: predict.Set{"*", "purchases", "reports", "configuration", "api"}},
			"help":     {},
			"flags":    {},
			"commands": {},
		},
		Flags: map[string]complete.Predictor{
			"store":      predict.Set{"ledger", "sqlite", "postgres"},
			"db":         predict.Files("*"),
			"cache-ttl":  predict.Something,
			"owner":      predict.Something,
			"token":      predict.Something,
			"jwt-secret": predict.Something,
			"coin":       predict.Something,
			"feed-id":    predict.Something,
			"base":       predict.Something,
			"secondary":  predict.Something,
			"api-key":    predict.Something,
			"poll":       predict.Something,
			"page-size":  predict.Something,
			"log-level":  predict.Set{"debug", "info", "warn", "error"},
		},
	}
}
