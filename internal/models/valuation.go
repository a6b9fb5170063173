package models

import (
	"time"
)

// EntryValuation holds the derived metrics for one entry
type EntryValuation struct {
	EntryID             string  `json:"entry_id"`
	AmountGrams         float64 `json:"amount_grams"`
	PurchaseDate        string  `json:"purchase_date"`
	PurchasePriceEUR    float64 `json:"purchase_price_eur"`
	CurrentPricePerGram float64 `json:"current_price_per_gram"`
	CurrentValueEUR     float64 `json:"current_value_eur"`
	GainEUR             float64 `json:"gain_eur"`
	GainPercent         float64 `json:"gain_percent"`
}

// PortfolioValuation holds the aggregate metrics for a ledger
type PortfolioValuation struct {
	TotalGrams          float64 `json:"total_grams"`
	TotalInvestmentEUR  float64 `json:"total_investment_eur"`
	CurrentPricePerGram float64 `json:"current_price_per_gram"`
	CurrentValueEUR     float64 `json:"current_value_eur"`
	GainEUR             float64 `json:"gain_eur"`
	GainPercent         float64 `json:"gain_percent"`
	EntryCount          int     `json:"entry_count"`
}

// ValuationRecord is one row of the valuation time series
type ValuationRecord struct {
	InstanceID         string    `json:"instanceId" ch:"instance_id"`
	RecordedAt         time.Time `json:"recordedAt" ch:"recorded_at"`
	PricePerOunce      float64   `json:"pricePerOunce" ch:"price_per_ounce"`
	PricePerGram       float64   `json:"pricePerGram" ch:"price_per_gram"`
	TotalGrams         float64   `json:"totalGrams" ch:"total_grams"`
	TotalInvestmentEUR float64   `json:"totalInvestmentEur" ch:"total_investment_eur"`
	CurrentValueEUR    float64   `json:"currentValueEur" ch:"current_value_eur"`
	GainEUR            float64   `json:"gainEur" ch:"gain_eur"`
	EntryCount         uint32    `json:"entryCount" ch:"entry_count"`
}

// Metric is one flattened value fed to the presentation layer
type Metric struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}
