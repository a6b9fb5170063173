package models

import (
	"time"
)

// Quote is a current price as reported by the price source
type Quote struct {
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceSnapshot is the cached market price owned by a price refresher.
// Price is per troy ounce in Currency.
type PriceSnapshot struct {
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// PriceHistoryRecord is a persisted snapshot for one instance
type PriceHistoryRecord struct {
	ID         int64     `json:"id" db:"id"`
	InstanceID string    `json:"instanceId" db:"instance_id"`
	Price      float64   `json:"price" db:"price"`
	Currency   string    `json:"currency" db:"currency"`
	QuotedAt   time.Time `json:"quotedAt" db:"quoted_at"`
	FetchedAt  time.Time `json:"fetchedAt" db:"fetched_at"`
}
