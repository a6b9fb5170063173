package main

import (
	"fmt"
	"io"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/gold-portfolio/internal/models"
)

// eur renders an amount in euros using the currency's display rules
func eur(amount float64) string {
	cur := money.GetCurrency(money.EUR)
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, money.EUR).Display()
}

// signedEUR is eur with an explicit sign; zero renders as "-"
func signedEUR(amount float64) string {
	switch {
	case decimal.NewFromFloat(amount).Round(2).IsZero():
		return "-"
	case amount > 0:
		return "+" + eur(amount)
	default:
		return eur(amount)
	}
}

// percent renders a two-decimal percentage with a sign
func percent(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(2) + "%"
}

func grams(g float64) string {
	return decimal.NewFromFloat(g).String() + " g"
}

func printEntries(w io.Writer, entries []models.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-10s  %12s  %14s\n", "ID", "DATE", "GRAMS", "PAID")
	for _, e := range entries {
		fmt.Fprintf(w, "%-36s  %-10s  %12s  %14s\n", e.ID, e.PurchaseDate, grams(e.AmountGrams), eur(e.PurchasePriceEUR))
	}
}

func printTotals(w io.Writer, totalGrams, invested float64) {
	fmt.Fprintf(w, "%-36s  %-10s  %12s  %14s\n", "TOTAL", "", grams(totalGrams), eur(invested))
}

func printValuation(w io.Writer, pricePerOunce float64, pv models.PortfolioValuation, entries []models.EntryValuation) {
	fmt.Fprintf(w, "Gold price:     %s/oz (%s/g)\n", eur(pricePerOunce), decimal.NewFromFloat(pv.CurrentPricePerGram).StringFixed(4))
	fmt.Fprintf(w, "Holdings:       %s in %d entries\n", grams(pv.TotalGrams), pv.EntryCount)
	fmt.Fprintf(w, "Invested:       %s\n", eur(pv.TotalInvestmentEUR))
	fmt.Fprintf(w, "Current value:  %s\n", eur(pv.CurrentValueEUR))
	fmt.Fprintf(w, "Gain:           %s (%s)\n", signedEUR(pv.GainEUR), percent(pv.GainPercent))

	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-36s  %12s  %14s  %14s  %9s\n", "ID", "GRAMS", "VALUE", "GAIN", "GAIN %")
	for _, v := range entries {
		fmt.Fprintf(w, "%-36s  %12s  %14s  %14s  %9s\n",
			v.EntryID, grams(v.AmountGrams), eur(v.CurrentValueEUR), signedEUR(v.GainEUR), percent(v.GainPercent))
	}
}
