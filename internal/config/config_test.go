package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Storage.Driver = "postgres"
	cfg.Postgres.Host = ""
	cfg.Postgres.DSN = ""
	cfg.Redis.Addr = ""
	cfg.Archive.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`unknown mode "turbo"`,
		"postgres: host must not be empty",
		"redis: addr must not be empty",
		"s3: bucket must not be empty",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got:\n%v", want, err)
		}
	}
}

func TestValidateFeeRateOrdering(t *testing.T) {
	cfg := Defaults()
	cfg.Market.FeeRateBps = 600
	cfg.Market.MaxFeeRateBps = 500

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "max_fee_rate_bps") {
		t.Fatalf("expected max_fee_rate_bps error, got %v", err)
	}
}

func TestValidateExternalRegistryNeedsURL(t *testing.T) {
	cfg := Defaults()
	cfg.Registry.Embedded = false
	cfg.Registry.BaseURL = ""

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "registry: base_url") {
		t.Fatalf("expected registry base_url error, got %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "server"
log_level = "debug"

[market]
fee_rate_bps = 300
min_auction_duration = "30m"

[server]
port = 9100
rate_limit = 50
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "server" || cfg.LogLevel != "debug" {
		t.Fatalf("expected file values, got mode=%s log_level=%s", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Market.FeeRateBps != 300 {
		t.Fatalf("expected fee_rate_bps 300, got %d", cfg.Market.FeeRateBps)
	}
	if cfg.Market.MinAuctionDuration.Duration != 30*time.Minute {
		t.Fatalf("expected 30m min auction duration, got %s", cfg.Market.MinAuctionDuration.Duration)
	}
	if cfg.Server.Port != 9100 || cfg.Server.RateLimit != 50 {
		t.Fatalf("expected server 9100/50, got %d/%d", cfg.Server.Port, cfg.Server.RateLimit)
	}
	// Values absent from the file keep their defaults.
	if cfg.Market.MaxFeeRateBps != 500 {
		t.Fatalf("expected default max_fee_rate_bps 500, got %d", cfg.Market.MaxFeeRateBps)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected merged config to validate, got %v", err)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[market]\noperator = \"file-op\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SPACEMARKET_MARKET_OPERATOR", "env-op")
	t.Setenv("SPACEMARKET_SERVER_RATE_WINDOW", "30s")
	t.Setenv("SPACEMARKET_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Market.Operator != "env-op" {
		t.Fatalf("expected env override, got %s", cfg.Market.Operator)
	}
	if cfg.Server.RateWindow.Duration != 30*time.Second {
		t.Fatalf("expected 30s rate window, got %s", cfg.Server.RateWindow.Duration)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, cfg.Server.CORSOrigins)
	}
}
