// Package config provides configuration management for the gold portfolio tracker.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gold-portfolio/internal/types"
)

const (
	// DefaultGoldAPIBaseURL is the public GoldAPI endpoint root
	DefaultGoldAPIBaseURL = "https://www.goldapi.io/api"
	// DefaultFetchesPerDay matches two refreshes a day
	DefaultFetchesPerDay = 2
	// MinFetchesPerDay and MaxFetchesPerDay bound the refresh frequency
	MinFetchesPerDay = 1
	MaxFetchesPerDay = 24
	// DefaultStorageDir holds ledger files unless an instance overrides its path
	DefaultStorageDir = ".storage"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Instances []InstanceConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the optional history stores
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	// HistoricalTTL bounds how long a past-date price stays in Redis.
	// Past prices do not change, so the default is long.
	HistoricalTTL time.Duration
}

// RateLimitConfig holds per-client API throttling
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// InstanceConfig holds one independently configured portfolio
type InstanceConfig struct {
	ID            string
	APIKey        string
	BaseURL       string
	AuthMode      types.AuthMode
	FetchesPerDay int
	LedgerPath    string
	Timeout       time.Duration
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Enabled:        getEnvAsBool("POSTGRES_ENABLED", false),
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "gold_portfolio"),
				User:           getEnv("POSTGRES_USER", "gold"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:        getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:           getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:           getEnv("CLICKHOUSE_PORT", "9000"),
				Database:       getEnv("CLICKHOUSE_DB", "gold_portfolio"),
				User:           getEnv("CLICKHOUSE_USER", "default"),
				Password:       getEnv("CLICKHOUSE_PASSWORD", ""),
				MaxConnections: getEnvAsInt("CLICKHOUSE_MAX_CONNECTIONS", 2),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Cache: CacheConfig{
			HistoricalTTL: getEnvAsDuration("CACHE_HISTORICAL_TTL", 30*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	config.Instances = loadInstanceConfigs()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadInstanceConfigs loads the per-instance sections named by GOLD_INSTANCES
func loadInstanceConfigs() []InstanceConfig {
	ids := strings.Split(getEnv("GOLD_INSTANCES", "main"), ",")

	instances := make([]InstanceConfig, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		prefix := strings.ToUpper(id) + "_"
		instances = append(instances, InstanceConfig{
			ID:            id,
			APIKey:        getEnv(prefix+"API_KEY", ""),
			BaseURL:       strings.TrimRight(getEnv(prefix+"BASE_URL", DefaultGoldAPIBaseURL), "/"),
			AuthMode:      types.AuthMode(strings.ToLower(getEnv(prefix+"AUTH_MODE", string(types.AuthModeHeader)))),
			FetchesPerDay: getEnvAsInt(prefix+"FETCHES_PER_DAY", DefaultFetchesPerDay),
			LedgerPath:    getEnv(prefix+"LEDGER_PATH", DefaultLedgerPath(id)),
			Timeout:       getEnvAsDuration(prefix+"TIMEOUT", 10*time.Second),
		})
	}
	return instances
}

// DefaultLedgerPath returns the per-instance ledger location
func DefaultLedgerPath(instanceID string) string {
	return filepath.Join(DefaultStorageDir, fmt.Sprintf("gold_portfolio_%s.json", instanceID))
}

// Validate rejects configuration the service cannot run with
func (c *Config) Validate() error {
	if len(c.Instances) == 0 {
		return fmt.Errorf("no instances configured: set GOLD_INSTANCES")
	}

	ledgers := make(map[string]string, len(c.Instances))
	for _, inst := range c.Instances {
		if err := inst.Validate(); err != nil {
			return err
		}
		abs, err := filepath.Abs(inst.LedgerPath)
		if err != nil {
			abs = inst.LedgerPath
		}
		if other, ok := ledgers[abs]; ok {
			return fmt.Errorf("instances %q and %q share ledger file %s", other, inst.ID, inst.LedgerPath)
		}
		ledgers[abs] = inst.ID
	}
	return nil
}

// Validate checks one instance section
func (c InstanceConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("instance %q: %sAPI_KEY is required", c.ID, strings.ToUpper(c.ID)+"_")
	}
	if c.FetchesPerDay < MinFetchesPerDay || c.FetchesPerDay > MaxFetchesPerDay {
		return fmt.Errorf("instance %q: fetches per day must be between %d and %d, got %d",
			c.ID, MinFetchesPerDay, MaxFetchesPerDay, c.FetchesPerDay)
	}
	if !c.AuthMode.Valid() {
		return fmt.Errorf("instance %q: unknown auth mode %q", c.ID, c.AuthMode)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("instance %q: timeout must be positive", c.ID)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
