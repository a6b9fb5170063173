package models

import (
	"time"
)

// Entry is one recorded purchase lot
type Entry struct {
	ID               string    `json:"id"`
	PurchaseDate     string    `json:"purchase_date"`
	AmountGrams      float64   `json:"amount_grams"`
	PurchasePriceEUR float64   `json:"purchase_price_eur"`
	CreatedAt        time.Time `json:"created_at"`
}

// LedgerDocument is the on-disk shape of a ledger file
type LedgerDocument struct {
	Entries []Entry `json:"entries"`
}
