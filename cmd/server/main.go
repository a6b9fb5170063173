// Package main provides the API server entry point for the gold portfolio service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gold-portfolio/internal/adapter"
	"github.com/gold-portfolio/internal/api"
	"github.com/gold-portfolio/internal/circuitbreaker"
	"github.com/gold-portfolio/internal/config"
	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/retry"
	"github.com/gold-portfolio/internal/service"
	"github.com/gold-portfolio/internal/storage"
	"github.com/gold-portfolio/internal/worker"
)

// stores holds the optional history backends; nil fields are disabled
type stores struct {
	postgres   *storage.PostgresDB
	clickhouse *storage.ClickHouseDB
	redis      *storage.RedisCache
}

func (s *stores) close(logger *logging.Logger) {
	if s.postgres != nil {
		s.postgres.Close()
	}
	if s.clickhouse != nil {
		if err := s.clickhouse.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.WithError(err).Warn("Error closing Redis connection")
		}
	}
}

func main() {
	fmt.Println("Gold Portfolio Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":     cfg.Logging.Level,
		"format":    cfg.Logging.Format,
		"instances": len(cfg.Instances),
	}).Info("Structured logging initialized")

	ctx := logging.WithLogger(context.Background(), logger)

	db := connectStores(ctx, cfg, logger)
	defer db.close(logger)

	breakers := circuitbreaker.NewManager(logger)
	registry := service.NewRegistry()
	refreshers := make([]*worker.PriceRefresher, 0, len(cfg.Instances))

	for _, instCfg := range cfg.Instances {
		refresher, inst, err := setupInstance(ctx, cfg, instCfg, db, breakers, logger)
		if err != nil {
			instLogger := logger.WithInstance(instCfg.ID).WithError(err)
			if kind, ok := apperrors.KindOf(err); ok {
				instLogger = instLogger.WithField("kind", string(kind))
			}
			instLogger.Fatal("Failed to set up instance")
		}
		if err := registry.Register(inst); err != nil {
			logger.WithInstance(instCfg.ID).WithError(err).Fatal("Failed to register instance")
		}
		refreshers = append(refreshers, refresher)
	}

	commands := service.NewCommandService(registry, logger)

	deps := api.Dependencies{
		Registry: registry,
		Commands: commands,
		Breakers: breakers,
		Logger:   logger,
	}
	if db.postgres != nil {
		deps.PriceHistory = storage.NewPriceHistoryRepository(db.postgres)
	}
	if db.clickhouse != nil {
		deps.Valuations = storage.NewValuationHistoryRepository(db.clickhouse)
	}

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}
	server := api.NewServer(serverConfig, deps)

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("Starting API server")
		serverErr <- server.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("API server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	for _, r := range refreshers {
		if err := r.Stop(shutdownCtx); err != nil {
			logger.WithInstance(r.InstanceID()).WithError(err).Warn("Price refresher did not stop cleanly")
		}
	}

	logger.Info("Server exited")
}

// connectStores opens each enabled history backend. A backend that cannot
// be reached after retrying is disabled rather than failing startup.
func connectStores(ctx context.Context, cfg *config.Config, logger *logging.Logger) *stores {
	db := &stores{}
	retryConfig := retry.DefaultRetryConfig()

	if cfg.Database.Postgres.Enabled {
		err := retry.Do(ctx, retryConfig, func(ctx context.Context, _ int) error {
			conn, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
			if err != nil {
				return err
			}
			db.postgres = conn
			return nil
		})
		switch {
		case err != nil:
			logger.WithError(err).Warn("Postgres unavailable, price history disabled")
		default:
			if err := storage.RunMigrations(storage.PostgresURL(&cfg.Database.Postgres), storage.DefaultPostgresMigrationsPath); err != nil {
				logger.WithError(err).Warn("Postgres migrations failed, price history disabled")
				db.postgres.Close()
				db.postgres = nil
			} else {
				logger.Info("Connected to Postgres")
			}
		}
	}

	if cfg.Database.ClickHouse.Enabled {
		err := retry.Do(ctx, retryConfig, func(ctx context.Context, _ int) error {
			conn, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
			if err != nil {
				return err
			}
			db.clickhouse = conn
			return nil
		})
		switch {
		case err != nil:
			logger.WithError(err).Warn("ClickHouse unavailable, valuation history disabled")
		default:
			if err := storage.RunClickHouseMigrations(ctx, db.clickhouse, storage.DefaultClickHouseMigrationsPath, logger); err != nil {
				logger.WithError(err).Warn("ClickHouse migrations failed, valuation history disabled")
				_ = db.clickhouse.Close()
				db.clickhouse = nil
			} else {
				logger.Info("Connected to ClickHouse")
			}
		}
	}

	if cfg.Database.Redis.Enabled {
		err := retry.Do(ctx, retryConfig, func(ctx context.Context, _ int) error {
			conn, err := storage.NewRedisCache(ctx, &cfg.Database.Redis)
			if err != nil {
				return err
			}
			db.redis = conn
			return nil
		})
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, historical prices will not be cached")
		} else {
			logger.Info("Connected to Redis")
		}
	}

	return db
}

// setupInstance builds one instance's ledger, price client and refresher
// and performs the first fetch. Transient first-fetch failures are retried;
// a rejected credential is returned at once.
func setupInstance(
	ctx context.Context,
	cfg *config.Config,
	instCfg config.InstanceConfig,
	db *stores,
	breakers *circuitbreaker.Manager,
	logger *logging.Logger,
) (*worker.PriceRefresher, *service.Instance, error) {
	instLogger := logger.WithInstance(instCfg.ID)

	ledger := storage.NewLedgerStore(instCfg.LedgerPath, instLogger)
	client := adapter.NewGoldAPIClient(adapter.GoldAPIConfig{
		APIKey:   instCfg.APIKey,
		BaseURL:  instCfg.BaseURL,
		AuthMode: instCfg.AuthMode,
		Timeout:  instCfg.Timeout,
		Logger:   instLogger,
	})
	health := worker.NewRefreshHealth(instCfg.ID)

	listeners := []worker.RefreshListener{health}
	if db.postgres != nil {
		listeners = append(listeners, service.NewPriceHistoryListener(
			storage.NewPriceHistoryRepository(db.postgres),
			breakers.GetOrCreate("postgres", nil),
			instLogger,
		))
	}
	if db.clickhouse != nil {
		listeners = append(listeners, service.NewValuationHistoryListener(
			storage.NewValuationHistoryRepository(db.clickhouse),
			ledger,
			breakers.GetOrCreate("clickhouse", nil),
			instLogger,
		))
	}

	refresherConfig := &worker.PriceRefresherConfig{
		InstanceID:    instCfg.ID,
		Source:        client,
		FetchesPerDay: instCfg.FetchesPerDay,
		Listeners:     listeners,
		Logger:        instLogger,
	}
	if db.redis != nil {
		refresherConfig.HistoricalCache = storage.NewHistoricalPriceCache(db.redis, cfg.Cache.HistoricalTTL)
	}

	refresher, err := worker.NewPriceRefresher(refresherConfig)
	if err != nil {
		return nil, nil, err
	}

	retryConfig := retry.DefaultRetryConfig()
	retryConfig.ShouldRetry = apperrors.IsRetryable
	err = retry.Do(ctx, retryConfig, func(ctx context.Context, _ int) error {
		return refresher.Start(ctx)
	})
	if err != nil {
		return nil, nil, err
	}

	instLogger.WithFields(map[string]interface{}{
		"period":       refresher.Period().String(),
		"entries":      ledger.Len(),
		"total_grams":  ledger.TotalGrams(),
		"invested_eur": ledger.TotalInvestmentEUR(),
	}).Info("Instance ready")

	return refresher, &service.Instance{
		ID:     instCfg.ID,
		Ledger: ledger,
		Prices: refresher,
		Health: health,
	}, nil
}
