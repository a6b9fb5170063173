package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/gold-portfolio/internal/models"
)

// ValuationHistoryRepository appends portfolio valuations to ClickHouse
type ValuationHistoryRepository struct {
	db *ClickHouseDB
}

// NewValuationHistoryRepository creates a new valuation history repository
func NewValuationHistoryRepository(db *ClickHouseDB) *ValuationHistoryRepository {
	return &ValuationHistoryRepository{db: db}
}

// InsertBatch appends records in one round trip
func (r *ValuationHistoryRepository) InsertBatch(ctx context.Context, records []models.ValuationRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO portfolio_valuations (
			instance_id, recorded_at, price_per_ounce, price_per_gram,
			total_grams, total_investment_eur, current_value_eur, gain_eur, entry_count
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, rec := range records {
		if err := batch.Append(
			rec.InstanceID,
			rec.RecordedAt,
			rec.PricePerOunce,
			rec.PricePerGram,
			rec.TotalGrams,
			rec.TotalInvestmentEUR,
			rec.CurrentValueEUR,
			rec.GainEUR,
			rec.EntryCount,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// ListRange returns an instance's valuations in [from, to], oldest first
func (r *ValuationHistoryRepository) ListRange(ctx context.Context, instanceID string, from, to time.Time) ([]models.ValuationRecord, error) {
	query := `
		SELECT instance_id, recorded_at, price_per_ounce, price_per_gram,
			   total_grams, total_investment_eur, current_value_eur, gain_eur, entry_count
		FROM portfolio_valuations
		WHERE instance_id = ? AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.Conn().Query(ctx, query, instanceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuation history: %w", err)
	}
	defer rows.Close()

	var records []models.ValuationRecord
	for rows.Next() {
		var rec models.ValuationRecord
		if err := rows.Scan(
			&rec.InstanceID,
			&rec.RecordedAt,
			&rec.PricePerOunce,
			&rec.PricePerGram,
			&rec.TotalGrams,
			&rec.TotalInvestmentEUR,
			&rec.CurrentValueEUR,
			&rec.GainEUR,
			&rec.EntryCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan valuation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate valuation history: %w", err)
	}

	return records, nil
}
