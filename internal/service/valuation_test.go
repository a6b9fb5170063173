package service

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/gold-portfolio/internal/models"
)

func tenGramLot() models.Entry {
	return models.Entry{
		ID:               "lot-1",
		PurchaseDate:     "2024-01-01",
		AmountGrams:      10,
		PurchasePriceEUR: 600,
	}
}

func TestPricePerGram(t *testing.T) {
	assert.InDelta(t, 64.3014, PricePerGram(2000), 1e-4)
	assert.Equal(t, 0.0, PricePerGram(0))
	assert.InDelta(t, 1.0, PricePerGram(GramsPerTroyOunce), 1e-12)
}

func TestEntryValue_TenGramLot(t *testing.T) {
	v := EntryValue(tenGramLot(), PricePerGram(2000))

	assert.Equal(t, "lot-1", v.EntryID)
	assert.Equal(t, 643.01, v.CurrentValueEUR)
	assert.Equal(t, 43.01, v.GainEUR)
	assert.Equal(t, 7.17, v.GainPercent)
	assert.Equal(t, 64.3014, v.CurrentPricePerGram)
}

func TestEntryValue_ZeroInvestment(t *testing.T) {
	e := tenGramLot()
	e.PurchasePriceEUR = 0

	v := EntryValue(e, 50)
	assert.Equal(t, 500.0, v.CurrentValueEUR)
	assert.Equal(t, 500.0, v.GainEUR)
	assert.Equal(t, 0.0, v.GainPercent)
}

func TestEntryValue_Loss(t *testing.T) {
	v := EntryValue(tenGramLot(), 50)
	assert.Equal(t, 500.0, v.CurrentValueEUR)
	assert.Equal(t, -100.0, v.GainEUR)
	assert.Equal(t, -16.67, v.GainPercent)
}

func TestPortfolioValue(t *testing.T) {
	entries := []models.Entry{
		tenGramLot(),
		{ID: "lot-2", PurchaseDate: "2024-02-01", AmountGrams: 5.5, PurchasePriceEUR: 350},
	}

	pv := PortfolioValue(entries, PricePerGram(2000))
	assert.Equal(t, 15.5, pv.TotalGrams)
	assert.Equal(t, 950.0, pv.TotalInvestmentEUR)
	assert.Equal(t, 996.67, pv.CurrentValueEUR)
	assert.Equal(t, 46.67, pv.GainEUR)
	assert.Equal(t, 4.91, pv.GainPercent)
	assert.Equal(t, 2, pv.EntryCount)
}

func TestPortfolioValue_Empty(t *testing.T) {
	pv := PortfolioValue(nil, 64)
	assert.Equal(t, models.PortfolioValuation{CurrentPricePerGram: 64}, pv)
}

func TestNewValuationRecord(t *testing.T) {
	fetched := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := NewValuationRecord("main", models.PriceSnapshot{Price: 2000, Currency: "EUR", FetchedAt: fetched},
		[]models.Entry{tenGramLot()})

	assert.Equal(t, "main", rec.InstanceID)
	assert.Equal(t, fetched, rec.RecordedAt)
	assert.Equal(t, 2000.0, rec.PricePerOunce)
	assert.Equal(t, 643.01, rec.CurrentValueEUR)
	assert.Equal(t, uint32(1), rec.EntryCount)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func TestValuationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("entry formulas hold", prop.ForAll(
		func(grams, paid, perGram float64) bool {
			e := models.Entry{ID: "x", AmountGrams: grams, PurchasePriceEUR: paid}
			v := EntryValue(e, perGram)

			current := grams * perGram
			gain := current - paid
			pct := 0.0
			if paid > 0 {
				pct = gain / paid * 100
			}
			return v.CurrentValueEUR == round2(current) &&
				v.GainEUR == round2(gain) &&
				v.GainPercent == round2(pct)
		},
		gen.Float64Range(0.001, 10000),
		gen.Float64Range(0, 1000000),
		gen.Float64Range(0, 500),
	))

	properties.Property("portfolio uses sums of grams and investment", prop.ForAll(
		func(grams []float64, perGram float64) bool {
			entries := make([]models.Entry, len(grams))
			var totalGrams, totalPaid float64
			for i, g := range grams {
				entries[i] = models.Entry{ID: string(rune('a' + i%26)), AmountGrams: g, PurchasePriceEUR: g * 60}
				totalGrams += g
				totalPaid += g * 60
			}

			pv := PortfolioValue(entries, perGram)
			return pv.EntryCount == len(entries) &&
				pv.TotalGrams == round2(totalGrams) &&
				pv.TotalInvestmentEUR == round2(totalPaid) &&
				pv.CurrentValueEUR == round2(totalGrams*perGram) &&
				math.Abs(pv.GainEUR-round2(totalGrams*perGram-totalPaid)) < 1e-9
		},
		gen.SliceOf(gen.Float64Range(0.01, 1000)),
		gen.Float64Range(0, 500),
	))

	properties.TestingRun(t)
}
