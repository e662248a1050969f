// Package config defines the top-level configuration for the marketplace
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SPACEMARKET_* environment variables.
type Config struct {
	Market    MarketConfig    `toml:"market"`
	Valuation ValuationConfig `toml:"valuation"`
	Registry  RegistryConfig  `toml:"registry"`
	Storage   StorageConfig   `toml:"storage"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// MarketConfig holds marketplace rules and fee parameters. Rates are in
// basis points.
type MarketConfig struct {
	FeeRateBps         int      `toml:"fee_rate_bps"`
	MaxFeeRateBps      int      `toml:"max_fee_rate_bps"`
	MinIncrementBps    int      `toml:"min_increment_bps"`
	VerifiedPremiumBps int      `toml:"verified_premium_bps"`
	MinAuctionDuration duration `toml:"min_auction_duration"`
	MaxAuctionDuration duration `toml:"max_auction_duration"`
	Operator           string   `toml:"operator"`
	RateLimitWrites    int      `toml:"rate_limit_writes"`
	RateLimitWindow    duration `toml:"rate_limit_window"`
}

// ValuationConfig holds appraisal parameters. Monetary values are in cents.
type ValuationConfig struct {
	BasePrice int64 `toml:"base_price"`
	MinValue  int64 `toml:"min_value"`
}

// RegistryConfig holds asset registry connection parameters. When Embedded is
// true the engine runs against an in-process registry instead of the HTTP
// client, which is useful for local development.
type RegistryConfig struct {
	BaseURL  string   `toml:"base_url"`
	ApiKey   string   `toml:"api_key"`
	Timeout  duration `toml:"timeout"`
	Embedded bool     `toml:"embedded"`
}

// StorageConfig selects the persistence driver.
type StorageConfig struct {
	// Driver is "memory" or "postgres". The memory driver needs no external
	// services; the postgres driver also requires Redis.
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds transaction archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token"`
	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// the HTTP-level limit; per-actor write limits still apply.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			FeeRateBps:         250,
			MaxFeeRateBps:      500,
			MinIncrementBps:    500,
			VerifiedPremiumBps: 1000,
			MinAuctionDuration: duration{time.Hour},
			MaxAuctionDuration: duration{7 * 24 * time.Hour},
			Operator:           "operator",
			RateLimitWrites:    30,
			RateLimitWindow:    duration{time.Minute},
		},
		Valuation: ValuationConfig{
			BasePrice: 100_000,
			MinValue:  1_000,
		},
		Registry: RegistryConfig{
			BaseURL:  "http://localhost:9200",
			Timeout:  duration{5 * time.Second},
			Embedded: true,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "spacemarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "spacemarket-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{time.Hour},
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"listing_settled", "auction_settled", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validDrivers enumerates the accepted values for StorageConfig.Driver.
var validDrivers = map[string]bool{
	"memory":   true,
	"postgres": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Market
	if c.Market.FeeRateBps < 0 {
		errs = append(errs, "market: fee_rate_bps must be >= 0")
	}
	if c.Market.MaxFeeRateBps < c.Market.FeeRateBps {
		errs = append(errs, "market: max_fee_rate_bps must be >= fee_rate_bps")
	}
	if c.Market.MinIncrementBps <= 0 {
		errs = append(errs, "market: min_increment_bps must be > 0")
	}
	if c.Market.VerifiedPremiumBps < 0 {
		errs = append(errs, "market: verified_premium_bps must be >= 0")
	}
	if c.Market.MinAuctionDuration.Duration <= 0 {
		errs = append(errs, "market: min_auction_duration must be > 0")
	}
	if c.Market.MaxAuctionDuration.Duration < c.Market.MinAuctionDuration.Duration {
		errs = append(errs, "market: max_auction_duration must be >= min_auction_duration")
	}
	if c.Market.Operator == "" {
		errs = append(errs, "market: operator must not be empty")
	}

	// Valuation
	if c.Valuation.BasePrice <= 0 {
		errs = append(errs, "valuation: base_price must be > 0")
	}
	if c.Valuation.MinValue <= 0 {
		errs = append(errs, "valuation: min_value must be > 0")
	}

	// Registry
	if !c.Registry.Embedded {
		if c.Registry.BaseURL == "" {
			errs = append(errs, "registry: base_url must not be empty (or set registry.embedded)")
		}
		if c.Registry.Timeout.Duration <= 0 {
			errs = append(errs, "registry: timeout must be > 0")
		}
	}

	// Storage
	driver := strings.ToLower(c.Storage.Driver)
	if !validDrivers[driver] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: memory, postgres)", c.Storage.Driver))
	}

	// Postgres, only when selected.
	if driver == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}

		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when storage.driver is postgres")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Archive
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
