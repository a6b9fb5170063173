package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gold-portfolio/internal/models"
)

// GramsPerTroyOunce converts the source's per-ounce quote to per-gram
const GramsPerTroyOunce = 31.1035

const (
	moneyPlaces   = 2
	perGramPlaces = 4
	percentFactor = 100
)

// PricePerGram converts a per-troy-ounce price to a per-gram price
func PricePerGram(pricePerOunce float64) float64 {
	return pricePerOunce / GramsPerTroyOunce
}

// round applies output rounding; inputs are never pre-rounded
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func gainPercent(gain, investment float64) float64 {
	if investment <= 0 {
		return 0
	}
	return gain / investment * percentFactor
}

// EntryValue values a single entry at pricePerGram
func EntryValue(entry models.Entry, pricePerGram float64) models.EntryValuation {
	current := entry.AmountGrams * pricePerGram
	gain := current - entry.PurchasePriceEUR

	return models.EntryValuation{
		EntryID:             entry.ID,
		AmountGrams:         entry.AmountGrams,
		PurchaseDate:        entry.PurchaseDate,
		PurchasePriceEUR:    entry.PurchasePriceEUR,
		CurrentPricePerGram: round(pricePerGram, perGramPlaces),
		CurrentValueEUR:     round(current, moneyPlaces),
		GainEUR:             round(gain, moneyPlaces),
		GainPercent:         round(gainPercent(gain, entry.PurchasePriceEUR), moneyPlaces),
	}
}

// PortfolioValue values the sums over entries at pricePerGram
func PortfolioValue(entries []models.Entry, pricePerGram float64) models.PortfolioValuation {
	var grams, investment float64
	for _, e := range entries {
		grams += e.AmountGrams
		investment += e.PurchasePriceEUR
	}

	current := grams * pricePerGram
	gain := current - investment

	return models.PortfolioValuation{
		TotalGrams:          round(grams, moneyPlaces),
		TotalInvestmentEUR:  round(investment, moneyPlaces),
		CurrentPricePerGram: round(pricePerGram, perGramPlaces),
		CurrentValueEUR:     round(current, moneyPlaces),
		GainEUR:             round(gain, moneyPlaces),
		GainPercent:         round(gainPercent(gain, investment), moneyPlaces),
		EntryCount:          len(entries),
	}
}

// NewValuationRecord builds the time-series row for one refresh
func NewValuationRecord(instanceID string, snap models.PriceSnapshot, entries []models.Entry) models.ValuationRecord {
	perGram := PricePerGram(snap.Price)
	pv := PortfolioValue(entries, perGram)

	recordedAt := snap.FetchedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	return models.ValuationRecord{
		InstanceID:         instanceID,
		RecordedAt:         recordedAt.UTC(),
		PricePerOunce:      snap.Price,
		PricePerGram:       pv.CurrentPricePerGram,
		TotalGrams:         pv.TotalGrams,
		TotalInvestmentEUR: pv.TotalInvestmentEUR,
		CurrentValueEUR:    pv.CurrentValueEUR,
		GainEUR:            pv.GainEUR,
		EntryCount:         uint32(pv.EntryCount), // #nosec G115 - ledger sizes are small
	}
}
