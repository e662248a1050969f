package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SPACEMARKET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SPACEMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Market ──
	setInt(&cfg.Market.FeeRateBps, "SPACEMARKET_MARKET_FEE_RATE_BPS")
	setInt(&cfg.Market.MaxFeeRateBps, "SPACEMARKET_MARKET_MAX_FEE_RATE_BPS")
	setInt(&cfg.Market.MinIncrementBps, "SPACEMARKET_MARKET_MIN_INCREMENT_BPS")
	setInt(&cfg.Market.VerifiedPremiumBps, "SPACEMARKET_MARKET_VERIFIED_PREMIUM_BPS")
	setDuration(&cfg.Market.MinAuctionDuration, "SPACEMARKET_MARKET_MIN_AUCTION_DURATION")
	setDuration(&cfg.Market.MaxAuctionDuration, "SPACEMARKET_MARKET_MAX_AUCTION_DURATION")
	setStr(&cfg.Market.Operator, "SPACEMARKET_MARKET_OPERATOR")
	setInt(&cfg.Market.RateLimitWrites, "SPACEMARKET_MARKET_RATE_LIMIT_WRITES")
	setDuration(&cfg.Market.RateLimitWindow, "SPACEMARKET_MARKET_RATE_LIMIT_WINDOW")

	// ── Valuation ──
	setInt64(&cfg.Valuation.BasePrice, "SPACEMARKET_VALUATION_BASE_PRICE")
	setInt64(&cfg.Valuation.MinValue, "SPACEMARKET_VALUATION_MIN_VALUE")

	// ── Registry ──
	setStr(&cfg.Registry.BaseURL, "SPACEMARKET_REGISTRY_BASE_URL")
	setStr(&cfg.Registry.ApiKey, "SPACEMARKET_REGISTRY_API_KEY")
	setDuration(&cfg.Registry.Timeout, "SPACEMARKET_REGISTRY_TIMEOUT")
	setBool(&cfg.Registry.Embedded, "SPACEMARKET_REGISTRY_EMBEDDED")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "SPACEMARKET_STORAGE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SPACEMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SPACEMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SPACEMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SPACEMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SPACEMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SPACEMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SPACEMARKET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SPACEMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SPACEMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SPACEMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SPACEMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SPACEMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SPACEMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SPACEMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SPACEMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SPACEMARKET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SPACEMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SPACEMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "SPACEMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SPACEMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SPACEMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SPACEMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SPACEMARKET_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SPACEMARKET_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "SPACEMARKET_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "SPACEMARKET_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SPACEMARKET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SPACEMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SPACEMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AuthToken, "SPACEMARKET_SERVER_AUTH_TOKEN")
	setInt(&cfg.Server.RateLimit, "SPACEMARKET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SPACEMARKET_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SPACEMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SPACEMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SPACEMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SPACEMARKET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SPACEMARKET_MODE")
	setStr(&cfg.LogLevel, "SPACEMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
