// Package main provides ledgerctl, an offline tool to inspect and edit a
// gold portfolio ledger file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/gold-portfolio/internal/config"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/storage"
)

var (
	ledgerPath = flag.String("ledger", config.DefaultLedgerPath("main"), "Path of the ledger file")
	verbose    = flag.Bool("v", false, "Log ledger store activity")
)

// commands lists every ledgerctl subcommand
var commands = []subcommands.Command{
	&listCmd{},
	&addCmd{},
	&updateCmd{},
	&removeCmd{},
	&valueCmd{},
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "ledger")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// openLedger loads the ledger named by -ledger
func openLedger() *storage.LedgerStore {
	level := logging.LevelWarn
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(level, logging.FormatText)
	logger.SetOutput(os.Stderr)
	return storage.NewLedgerStore(*ledgerPath, logger)
}

// openLedgerForUpdate is openLedger for commands that rewrite the file. It
// refuses to go on when an existing file could not be loaded, since saving
// would replace it.
func openLedgerForUpdate() (*storage.LedgerStore, subcommands.ExitStatus) {
	ledger := openLedger()
	if err := ledger.LoadError(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nRefusing to modify the ledger; repair or move the file first.\n", err)
		return nil, subcommands.ExitFailure
	}
	return ledger, subcommands.ExitSuccess
}
