package service

import (
	"context"
	"errors"
	"time"

	"github.com/gold-portfolio/internal/circuitbreaker"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/models"
)

// DefaultListenerTimeout bounds a single history write
const DefaultListenerTimeout = 5 * time.Second

// PriceHistoryRecorder persists fetched snapshots
type PriceHistoryRecorder interface {
	Record(ctx context.Context, rec *models.PriceHistoryRecord) error
}

// ValuationRecorder persists portfolio valuation rows
type ValuationRecorder interface {
	InsertBatch(ctx context.Context, records []models.ValuationRecord) error
}

// guardedWrite runs write behind the breaker with its own deadline.
// Failures are logged and dropped; the refresh path never sees them.
func guardedWrite(
	ctx context.Context,
	breaker *circuitbreaker.CircuitBreaker,
	timeout time.Duration,
	logger *logging.Logger,
	write func(ctx context.Context) error,
) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := breaker.Execute(writeCtx, write)
	switch {
	case err == nil:
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		logger.Debug("history write skipped, circuit open")
	default:
		logger.WithError(err).Warn("history write failed")
	}
}

// PriceHistoryListener records every successful refresh in Postgres
type PriceHistoryListener struct {
	repo    PriceHistoryRecorder
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *logging.Logger
}

// NewPriceHistoryListener creates a new price history listener
func NewPriceHistoryListener(repo PriceHistoryRecorder, breaker *circuitbreaker.CircuitBreaker, logger *logging.Logger) *PriceHistoryListener {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &PriceHistoryListener{
		repo:    repo,
		breaker: breaker,
		timeout: DefaultListenerTimeout,
		logger:  logger.WithField("component", "price_history"),
	}
}

// OnRefreshSuccess records the new snapshot
func (l *PriceHistoryListener) OnRefreshSuccess(ctx context.Context, instanceID string, snap models.PriceSnapshot) {
	rec := &models.PriceHistoryRecord{
		InstanceID: instanceID,
		Price:      snap.Price,
		Currency:   snap.Currency,
		QuotedAt:   snap.Timestamp,
		FetchedAt:  snap.FetchedAt,
	}
	guardedWrite(ctx, l.breaker, l.timeout, l.logger.WithInstance(instanceID), func(ctx context.Context) error {
		return l.repo.Record(ctx, rec)
	})
}

// OnRefreshFailure is a no-op; failed fetches have no price to record
func (l *PriceHistoryListener) OnRefreshFailure(context.Context, string, error) {}

// ValuationHistoryListener appends a portfolio valuation row to ClickHouse
// on every successful refresh
type ValuationHistoryListener struct {
	repo    ValuationRecorder
	ledger  Ledger
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *logging.Logger
}

// NewValuationHistoryListener creates a new valuation history listener for one ledger
func NewValuationHistoryListener(
	repo ValuationRecorder,
	ledger Ledger,
	breaker *circuitbreaker.CircuitBreaker,
	logger *logging.Logger,
) *ValuationHistoryListener {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &ValuationHistoryListener{
		repo:    repo,
		ledger:  ledger,
		breaker: breaker,
		timeout: DefaultListenerTimeout,
		logger:  logger.WithField("component", "valuation_history"),
	}
}

// OnRefreshSuccess values the ledger at the new price and stores the row
func (l *ValuationHistoryListener) OnRefreshSuccess(ctx context.Context, instanceID string, snap models.PriceSnapshot) {
	rec := NewValuationRecord(instanceID, snap, l.ledger.List())
	guardedWrite(ctx, l.breaker, l.timeout, l.logger.WithInstance(instanceID), func(ctx context.Context) error {
		return l.repo.InsertBatch(ctx, []models.ValuationRecord{rec})
	})
}

// OnRefreshFailure is a no-op
func (l *ValuationHistoryListener) OnRefreshFailure(context.Context, string, error) {}
