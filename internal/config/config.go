// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARB_* environment variables.
type Config struct {
	Solana      SolanaConfig      `toml:"solana"`
	DexScreener DexScreenerConfig `toml:"dexscreener"`
	Verifier    VerifierConfig    `toml:"verifier"`
	Detector    DetectorConfig    `toml:"detector"`
	Scanner     ScannerConfig     `toml:"scanner"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// SolanaConfig holds RPC endpoint parameters.
type SolanaConfig struct {
	PrimaryRPCURL  string   `toml:"primary_rpc_url"`
	FallbackRPCURL string   `toml:"fallback_rpc_url"`
	RequestTimeout duration `toml:"request_timeout"`
	Commitment     string   `toml:"commitment"`
}

// DexScreenerConfig holds market data aggregator parameters.
type DexScreenerConfig struct {
	BaseURL         string   `toml:"base_url"`
	RequestTimeout  duration `toml:"request_timeout"`
	SearchPairs     []string `toml:"search_pairs"`
	MinLiquidityUsd float64  `toml:"min_liquidity_usd"`
}

// VerifierConfig holds on-chain verification pacing and failover parameters.
type VerifierConfig struct {
	RateWindow  duration `toml:"rate_window"`
	RateBudget  int      `toml:"rate_budget"`
	PacingDelay duration `toml:"pacing_delay"`
	Cooldown    duration `toml:"cooldown"`
	MaxRetries  int      `toml:"max_retries"`
	RetryDelay  duration `toml:"retry_delay"`
	MaxPerCycle int      `toml:"max_per_cycle"`
}

// DetectorConfig holds opportunity detection thresholds.
type DetectorConfig struct {
	MinProfitPercent float64  `toml:"min_profit_percent"`
	MinTVLUsd        float64  `toml:"min_tvl_usd"`
	MaxPriceAge      duration `toml:"max_price_age"`
	TradeSizeUsd     float64  `toml:"trade_size_usd"`
}

// ScannerConfig holds scan cycle scheduling parameters.
type ScannerConfig struct {
	Enabled              bool     `toml:"enabled"`
	Interval             duration `toml:"interval"`
	CycleTimeout         duration `toml:"cycle_timeout"`
	OpportunityTTL       duration `toml:"opportunity_ttl"`
	PoolStaleAfter       duration `toml:"pool_stale_after"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
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
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	PriceTTL   duration `toml:"price_ttl"`
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			PrimaryRPCURL:  "https://api.mainnet-beta.solana.com",
			FallbackRPCURL: "",
			RequestTimeout: duration{15 * time.Second},
			Commitment:     "confirmed",
		},
		DexScreener: DexScreenerConfig{
			BaseURL:         "https://api.dexscreener.com",
			RequestTimeout:  duration{10 * time.Second},
			SearchPairs:     []string{"SOL/USDC", "SOL/USDT", "USDC/USDT"},
			MinLiquidityUsd: 10_000,
		},
		Verifier: VerifierConfig{
			RateWindow:  duration{10 * time.Second},
			RateBudget:  35,
			PacingDelay: duration{2 * time.Second},
			Cooldown:    duration{10 * time.Second},
			MaxRetries:  3,
			RetryDelay:  duration{500 * time.Millisecond},
			MaxPerCycle: 5,
		},
		Detector: DetectorConfig{
			MinProfitPercent: 0.3,
			MinTVLUsd:        10_000,
			MaxPriceAge:      duration{5 * time.Minute},
			TradeSizeUsd:     1_000,
		},
		Scanner: ScannerConfig{
			Enabled:              true,
			Interval:             duration{5 * time.Minute},
			CycleTimeout:         duration{2 * time.Minute},
			OpportunityTTL:       duration{5 * time.Minute},
			PoolStaleAfter:       duration{24 * time.Hour},
			ArchiveRetentionDays: 30,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbitrage",
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
			PriceTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arb-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"once":    true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, once, monitor, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Solana
	if c.Solana.PrimaryRPCURL == "" {
		errs = append(errs, "solana: primary_rpc_url must not be empty")
	}
	if c.Solana.RequestTimeout.Duration <= 0 {
		errs = append(errs, "solana: request_timeout must be positive")
	}

	// DexScreener
	if c.DexScreener.BaseURL == "" {
		errs = append(errs, "dexscreener: base_url must not be empty")
	}
	if len(c.DexScreener.SearchPairs) == 0 {
		errs = append(errs, "dexscreener: search_pairs must not be empty")
	}
	if c.DexScreener.MinLiquidityUsd < 0 {
		errs = append(errs, "dexscreener: min_liquidity_usd must not be negative")
	}

	// Verifier
	if c.Verifier.RateBudget < 1 {
		errs = append(errs, "verifier: rate_budget must be >= 1")
	}
	if c.Verifier.RateWindow.Duration <= 0 {
		errs = append(errs, "verifier: rate_window must be positive")
	}
	if c.Verifier.PacingDelay.Duration < 0 {
		errs = append(errs, "verifier: pacing_delay must not be negative")
	}
	if c.Verifier.MaxRetries < 1 {
		errs = append(errs, "verifier: max_retries must be >= 1")
	}
	if c.Verifier.MaxPerCycle < 1 {
		errs = append(errs, "verifier: max_per_cycle must be >= 1")
	}

	// Detector
	if c.Detector.MinProfitPercent <= 0 {
		errs = append(errs, "detector: min_profit_percent must be > 0")
	}
	if c.Detector.MaxPriceAge.Duration <= 0 {
		errs = append(errs, "detector: max_price_age must be positive")
	}

	// Scanner
	if c.Scanner.Enabled {
		if c.Scanner.Interval.Duration <= 0 {
			errs = append(errs, "scanner: interval must be positive")
		}
		if c.Scanner.CycleTimeout.Duration <= 0 {
			errs = append(errs, "scanner: cycle_timeout must be positive")
		}
		if c.Scanner.OpportunityTTL.Duration <= 0 {
			errs = append(errs, "scanner: opportunity_ttl must be positive")
		}
	}

	// Postgres
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

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
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
