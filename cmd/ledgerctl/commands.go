package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/service"
	"github.com/gold-portfolio/internal/storage"
)

// saved reports a failed write of the ledger file
func saved(ledger *storage.LedgerStore) subcommands.ExitStatus {
	if err := ledger.LastPersistError(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving ledger %s: %v\n", ledger.Path(), err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type listCmd struct{}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list the entries of the ledger" }
func (*listCmd) Usage() string {
	return `ledgerctl [-ledger <file>] list

  Prints every purchase lot in insertion order.
`
}
func (*listCmd) SetFlags(*flag.FlagSet) {}

func (*listCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger := openLedger()
	printEntries(os.Stdout, ledger.List())
	if ledger.Len() > 0 {
		printTotals(os.Stdout, ledger.TotalGrams(), ledger.TotalInvestmentEUR())
	}
	return subcommands.ExitSuccess
}

type addCmd struct {
	date    string
	grams   float64
	price   float64
	perGram float64
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a purchase lot" }
func (*addCmd) Usage() string {
	return `ledgerctl add -date <YYYY-MM-DD> -grams <g> (-price <eur> | -per-gram <eur>)

  Records a purchase. Give either the total paid or the price per gram.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "Purchase date, YYYY-MM-DD (required)")
	f.Float64Var(&c.grams, "grams", 0, "Amount in grams (required)")
	f.Float64Var(&c.price, "price", 0, "Total price paid in EUR")
	f.Float64Var(&c.perGram, "per-gram", 0, "Price paid per gram in EUR")
}

func (c *addCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	in := storage.AddEntryInput{PurchaseDate: c.date, AmountGrams: c.grams}
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "price":
			in.PurchasePriceEUR = &c.price
		case "per-gram":
			in.PurchasePricePerGram = &c.perGram
		}
	})
	if in.PurchasePriceEUR == nil && in.PurchasePricePerGram == nil {
		fmt.Fprintln(os.Stderr, "Error: one of -price or -per-gram is required.")
		return subcommands.ExitUsageError
	}

	ledger, status := openLedgerForUpdate()
	if status != subcommands.ExitSuccess {
		return status
	}
	entry, err := ledger.Add(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if status := saved(ledger); status != subcommands.ExitSuccess {
		return status
	}

	fmt.Printf("Added entry %s: %s for %s\n", entry.ID, grams(entry.AmountGrams), eur(entry.PurchasePriceEUR))
	return subcommands.ExitSuccess
}

type updateCmd struct {
	id    string
	date  string
	grams float64
	price float64
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "change fields of a purchase lot" }
func (*updateCmd) Usage() string {
	return `ledgerctl update -id <entry> [-date <YYYY-MM-DD>] [-grams <g>] [-price <eur>]

  Changes only the fields given on the command line.
`
}

func (c *updateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Entry identifier (required)")
	f.StringVar(&c.date, "date", "", "New purchase date, YYYY-MM-DD")
	f.Float64Var(&c.grams, "grams", 0, "New amount in grams")
	f.Float64Var(&c.price, "price", 0, "New total price paid in EUR")
}

func (c *updateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}

	var in storage.UpdateEntryInput
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "date":
			in.PurchaseDate = &c.date
		case "grams":
			in.AmountGrams = &c.grams
		case "price":
			in.PurchasePriceEUR = &c.price
		}
	})

	ledger, status := openLedgerForUpdate()
	if status != subcommands.ExitSuccess {
		return status
	}
	entry, err := ledger.Update(c.id, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if status := saved(ledger); status != subcommands.ExitSuccess {
		return status
	}

	printEntries(os.Stdout, []models.Entry{entry})
	return subcommands.ExitSuccess
}

type removeCmd struct {
	id string
}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "delete a purchase lot" }
func (*removeCmd) Usage() string {
	return `ledgerctl remove -id <entry>
`
}

func (c *removeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Entry identifier (required)")
}

func (c *removeCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}

	ledger, status := openLedgerForUpdate()
	if status != subcommands.ExitSuccess {
		return status
	}
	if !ledger.Remove(c.id) {
		fmt.Fprintf(os.Stderr, "Error: no entry %q in %s\n", c.id, ledger.Path())
		return subcommands.ExitFailure
	}
	if status := saved(ledger); status != subcommands.ExitSuccess {
		return status
	}

	fmt.Printf("Removed entry %s\n", c.id)
	return subcommands.ExitSuccess
}

type valueCmd struct {
	price float64
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "value the ledger at a given gold price" }
func (*valueCmd) Usage() string {
	return `ledgerctl value -price <eur per troy ounce>

  Prints the portfolio totals and per-entry gains at the given price.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.price, "price", 0, "Gold price in EUR per troy ounce (required)")
}

func (c *valueCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.price <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -price must be a positive number.")
		return subcommands.ExitUsageError
	}

	entries := openLedger().List()
	perGram := service.PricePerGram(c.price)

	valuations := make([]models.EntryValuation, 0, len(entries))
	for _, e := range entries {
		valuations = append(valuations, service.EntryValue(e, perGram))
	}

	printValuation(os.Stdout, c.price, service.PortfolioValue(entries, perGram), valuations)
	return subcommands.ExitSuccess
}
