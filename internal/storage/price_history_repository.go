package storage

import (
	"context"
	"fmt"

	"github.com/gold-portfolio/internal/models"
)

// MaxPriceHistoryLimit caps a single history read
const MaxPriceHistoryLimit = 1000

// PriceHistoryRepository records every successful price snapshot in Postgres
type PriceHistoryRepository struct {
	db *PostgresDB
}

// NewPriceHistoryRepository creates a new price history repository
func NewPriceHistoryRepository(db *PostgresDB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// Record inserts a snapshot and sets rec.ID
func (r *PriceHistoryRepository) Record(ctx context.Context, rec *models.PriceHistoryRecord) error {
	query := `
		INSERT INTO price_snapshots (instance_id, price, currency, quoted_at, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.Pool().QueryRow(ctx, query,
		rec.InstanceID,
		rec.Price,
		rec.Currency,
		rec.QuotedAt,
		rec.FetchedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to record price snapshot: %w", err)
	}

	return nil
}

// ListRecent returns the newest snapshots for an instance, newest first
func (r *PriceHistoryRepository) ListRecent(ctx context.Context, instanceID string, limit int) ([]models.PriceHistoryRecord, error) {
	if limit <= 0 || limit > MaxPriceHistoryLimit {
		limit = MaxPriceHistoryLimit
	}

	query := `
		SELECT id, instance_id, price, currency, quoted_at, fetched_at
		FROM price_snapshots
		WHERE instance_id = $1
		ORDER BY fetched_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	records := make([]models.PriceHistoryRecord, 0, limit)
	for rows.Next() {
		var rec models.PriceHistoryRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.InstanceID,
			&rec.Price,
			&rec.Currency,
			&rec.QuotedAt,
			&rec.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan price snapshot: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price history: %w", err)
	}

	return records, nil
}
