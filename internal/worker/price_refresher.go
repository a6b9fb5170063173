package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gold-portfolio/internal/adapter"
	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/types"
)

const (
	minFetchesPerDay = 1
	maxFetchesPerDay = 24
	dateLayout       = "2006-01-02"
)

// ErrRefreshInFlight is returned by Start when another fetch was already
// running, so no initial price was obtained by this call.
var ErrRefreshInFlight = apperrors.NewServiceUnavailableError("price refresh already in flight")

// RefreshListener observes refresh outcomes. Calls happen on the refresh
// goroutine after the snapshot has been replaced, so implementations must
// not block for long.
type RefreshListener interface {
	OnRefreshSuccess(ctx context.Context, instanceID string, snap models.PriceSnapshot)
	OnRefreshFailure(ctx context.Context, instanceID string, err error)
}

// HistoricalPriceCache stores past-date prices
type HistoricalPriceCache interface {
	Get(ctx context.Context, instanceID, date string) (float64, bool, error)
	Set(ctx context.Context, instanceID, date string, price float64) error
}

// PriceRefresherConfig holds configuration for a price refresher
type PriceRefresherConfig struct {
	InstanceID    string
	Source        adapter.PriceSource
	FetchesPerDay int
	// Period overrides FetchesPerDay when set
	Period          time.Duration
	HistoricalCache HistoricalPriceCache
	Listeners       []RefreshListener
	Logger          *logging.Logger
	Now             func() time.Time
}

// PriceRefresher owns one instance's refresh schedule and its single
// current price snapshot.
type PriceRefresher struct {
	instanceID string
	source     adapter.PriceSource
	period     time.Duration
	cache      HistoricalPriceCache
	logger     *logging.Logger
	now        func() time.Time

	snapshot atomic.Pointer[models.PriceSnapshot]
	inFlight atomic.Bool
	state    atomic.Value

	mu        sync.Mutex
	listeners []RefreshListener
	cron      *cron.Cron
	cancel    context.CancelFunc
}

// PeriodForFetchesPerDay returns 24h/n for n in [1, 24]
func PeriodForFetchesPerDay(n int) (time.Duration, error) {
	if n < minFetchesPerDay || n > maxFetchesPerDay {
		return 0, fmt.Errorf("fetches per day must be between %d and %d, got %d", minFetchesPerDay, maxFetchesPerDay, n)
	}
	return 24 * time.Hour / time.Duration(n), nil
}

// NewPriceRefresher creates a new price refresher
func NewPriceRefresher(cfg *PriceRefresherConfig) (*PriceRefresher, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("price source cannot be nil")
	}
	if cfg.InstanceID == "" {
		return nil, fmt.Errorf("instance id cannot be empty")
	}

	period := cfg.Period
	if period <= 0 {
		p, err := PeriodForFetchesPerDay(cfg.FetchesPerDay)
		if err != nil {
			return nil, err
		}
		period = p
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := &PriceRefresher{
		instanceID: cfg.InstanceID,
		source:     cfg.Source,
		period:     period,
		cache:      cfg.HistoricalCache,
		logger:     logger.WithInstance(cfg.InstanceID).WithField("component", "price_refresher"),
		now:        now,
		listeners:  append([]RefreshListener(nil), cfg.Listeners...),
	}
	r.state.Store(types.RefreshUninitialized)
	return r, nil
}

// InstanceID returns the owning instance id
func (r *PriceRefresher) InstanceID() string {
	return r.instanceID
}

// Period returns the interval between scheduled fetches
func (r *PriceRefresher) Period() time.Duration {
	return r.period
}

// State returns the current refresh state
func (r *PriceRefresher) State() types.RefreshState {
	return r.state.Load().(types.RefreshState)
}

// Current returns the last good snapshot, if one has ever been fetched
func (r *PriceRefresher) Current() (models.PriceSnapshot, bool) {
	snap := r.snapshot.Load()
	if snap == nil {
		return models.PriceSnapshot{}, false
	}
	return *snap, true
}

// Start performs the initial fetch synchronously and, only if it succeeds,
// schedules periodic refreshes. The initial fetch error is returned with
// its source classification intact.
func (r *PriceRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return fmt.Errorf("price refresher for %s is already running", r.instanceID)
	}
	r.mu.Unlock()

	r.logger.Infof("starting price refresher with period %v", r.period)

	fetched, err := r.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("initial price fetch for instance %s: %w", r.instanceID, err)
	}
	if !fetched {
		return fmt.Errorf("initial price fetch for instance %s: %w", r.instanceID, ErrRefreshInFlight)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cronLogger := logging.CronLogger(r.logger)
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(cron.Every(r.period), cron.FuncJob(func() {
		r.tick(runCtx)
	}))

	r.mu.Lock()
	r.cron = c
	r.cancel = cancel
	r.mu.Unlock()

	c.Start()
	return nil
}

// Stop halts scheduling and waits for a running refresh to finish
func (r *PriceRefresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()

	if c == nil {
		return nil
	}

	stopped := c.Stop()
	cancel()

	select {
	case <-stopped.Done():
		r.logger.Info("price refresher stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("price refresher stop timed out")
		return ctx.Err()
	}
}

// tick is the scheduled refresh; failures are contained here
func (r *PriceRefresher) tick(ctx context.Context) {
	_, _ = r.Refresh(ctx)
}

// Refresh fetches a new price now. It returns false without fetching when
// another fetch is already in flight. On failure the previous snapshot is
// kept and the error is reported to listeners and returned.
func (r *PriceRefresher) Refresh(ctx context.Context) (bool, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.logger.Debug("refresh skipped, fetch already in flight")
		return false, nil
	}
	defer r.inFlight.Store(false)

	r.state.Store(types.RefreshFetching)
	defer func() {
		if r.snapshot.Load() != nil {
			r.state.Store(types.RefreshIdle)
		} else {
			r.state.Store(types.RefreshUninitialized)
		}
	}()

	quote, err := r.source.GetCurrentPrice(ctx)
	if err != nil {
		r.reportFailure(ctx, err)
		return true, err
	}

	snap := &models.PriceSnapshot{
		Price:     quote.Price,
		Currency:  quote.Currency,
		Timestamp: quote.Timestamp,
		FetchedAt: r.now().UTC(),
	}
	r.snapshot.Store(snap)

	r.logger.WithFields(map[string]interface{}{
		"price":    snap.Price,
		"currency": snap.Currency,
	}).Info("price refreshed")

	for _, l := range r.currentListeners() {
		l.OnRefreshSuccess(ctx, r.instanceID, *snap)
	}
	return true, nil
}

func (r *PriceRefresher) reportFailure(ctx context.Context, err error) {
	logger := r.logger.WithError(err)
	if kind, ok := apperrors.KindOf(err); ok {
		logger = logger.WithField("kind", string(kind))
		if !kind.Transient() {
			logger.Error("price source rejected credentials, keeping last price")
		} else {
			logger.Warn("price refresh failed, keeping last price")
		}
	} else {
		logger.Warn("price refresh failed, keeping last price")
	}

	for _, l := range r.currentListeners() {
		l.OnRefreshFailure(ctx, r.instanceID, err)
	}
}

func (r *PriceRefresher) currentListeners() []RefreshListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RefreshListener(nil), r.listeners...)
}

// HistoricalPrice looks up the price on date directly at the source,
// through the cache when one is configured. It never touches the current
// snapshot. Absence is reported as false, never as an error.
func (r *PriceRefresher) HistoricalPrice(ctx context.Context, date string) (float64, bool) {
	logger := r.logger.WithField("date", date)

	// only strictly past dates are immutable
	cacheable := r.cache != nil && date < r.now().UTC().Format(dateLayout)

	if cacheable {
		price, ok, err := r.cache.Get(ctx, r.instanceID, date)
		if err != nil {
			logger.WithError(err).Warn("historical price cache read failed")
		} else if ok {
			logger.Debug("historical price served from cache")
			return price, true
		}
	}

	price, ok := r.source.GetHistoricalPrice(ctx, date)
	if !ok {
		return 0, false
	}

	if cacheable {
		if err := r.cache.Set(ctx, r.instanceID, date, price); err != nil {
			logger.WithError(err).Warn("historical price cache write failed")
		}
	}
	return price, true
}
