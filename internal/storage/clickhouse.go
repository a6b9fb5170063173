package storage

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/gold-portfolio/internal/config"
)

const (
	clickHouseDialTimeout = 10 * time.Second
	clickHousePingTimeout = 5 * time.Second
	// valuation range reads must not hold the API handler for long
	clickHouseMaxExecutionSeconds = 10
)

// ClickHouseDB holds the connection used for the portfolio valuation
// series. Writes are one small batch per instance refresh, reads are
// ordered range scans for the history endpoint.
type ClickHouseDB struct {
	conn driver.Conn
}

// clickHouseOptions sizes the pool for a handful of instances. Inserts
// are tiny, so the server buffers them (async_insert) and the call still
// waits for the flush so a failed write reaches the listener.
func clickHouseOptions(cfg *config.ClickHouseConfig) *clickhouse.Options {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 2
	}
	return &clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time":    clickHouseMaxExecutionSeconds,
			"async_insert":          1,
			"wait_for_async_insert": 1,
		},
		Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout:     clickHouseDialTimeout,
		MaxOpenConns:    maxConns,
		MaxIdleConns:    maxConns,
		ConnMaxLifetime: time.Hour,
	}
}

// NewClickHouseDB connects to the valuation store and checks it answers
func NewClickHouseDB(ctx context.Context, cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(clickHouseOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse %s/%s: %w", cfg.Host, cfg.Database, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, clickHousePingTimeout)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse %s/%s: %w", cfg.Host, cfg.Database, err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

func (db *ClickHouseDB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn is used by the valuation repository for batches and range queries
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Exec runs a statement without rows; it makes ClickHouseDB a migration
// executor.
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	return db.conn.Exec(ctx, query, args...)
}
