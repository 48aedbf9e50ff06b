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
// built-in defaults, applies ARB_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Solana ──
	setStr(&cfg.Solana.PrimaryRPCURL, "ARB_SOLANA_PRIMARY_RPC_URL")
	setStr(&cfg.Solana.FallbackRPCURL, "ARB_SOLANA_FALLBACK_RPC_URL")
	setDuration(&cfg.Solana.RequestTimeout, "ARB_SOLANA_REQUEST_TIMEOUT")
	setStr(&cfg.Solana.Commitment, "ARB_SOLANA_COMMITMENT")

	// ── DexScreener ──
	setStr(&cfg.DexScreener.BaseURL, "ARB_DEXSCREENER_BASE_URL")
	setDuration(&cfg.DexScreener.RequestTimeout, "ARB_DEXSCREENER_REQUEST_TIMEOUT")
	setStringSlice(&cfg.DexScreener.SearchPairs, "ARB_DEXSCREENER_SEARCH_PAIRS")
	setFloat64(&cfg.DexScreener.MinLiquidityUsd, "ARB_DEXSCREENER_MIN_LIQUIDITY_USD")

	// ── Verifier ──
	setDuration(&cfg.Verifier.RateWindow, "ARB_VERIFIER_RATE_WINDOW")
	setInt(&cfg.Verifier.RateBudget, "ARB_VERIFIER_RATE_BUDGET")
	setDuration(&cfg.Verifier.PacingDelay, "ARB_VERIFIER_PACING_DELAY")
	setDuration(&cfg.Verifier.Cooldown, "ARB_VERIFIER_COOLDOWN")
	setInt(&cfg.Verifier.MaxRetries, "ARB_VERIFIER_MAX_RETRIES")
	setDuration(&cfg.Verifier.RetryDelay, "ARB_VERIFIER_RETRY_DELAY")
	setInt(&cfg.Verifier.MaxPerCycle, "ARB_VERIFIER_MAX_PER_CYCLE")

	// ── Detector ──
	setFloat64(&cfg.Detector.MinProfitPercent, "ARB_DETECTOR_MIN_PROFIT_PERCENT")
	setFloat64(&cfg.Detector.MinTVLUsd, "ARB_DETECTOR_MIN_TVL_USD")
	setDuration(&cfg.Detector.MaxPriceAge, "ARB_DETECTOR_MAX_PRICE_AGE")
	setFloat64(&cfg.Detector.TradeSizeUsd, "ARB_DETECTOR_TRADE_SIZE_USD")

	// ── Scanner ──
	setBool(&cfg.Scanner.Enabled, "ARB_SCANNER_ENABLED")
	setDuration(&cfg.Scanner.Interval, "ARB_SCANNER_INTERVAL")
	setDuration(&cfg.Scanner.CycleTimeout, "ARB_SCANNER_CYCLE_TIMEOUT")
	setDuration(&cfg.Scanner.OpportunityTTL, "ARB_SCANNER_OPPORTUNITY_TTL")
	setDuration(&cfg.Scanner.PoolStaleAfter, "ARB_SCANNER_POOL_STALE_AFTER")
	setInt(&cfg.Scanner.ArchiveRetentionDays, "ARB_SCANNER_ARCHIVE_RETENTION_DAYS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARB_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.PriceTTL, "ARB_REDIS_PRICE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARB_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARB_MODE")
	setStr(&cfg.LogLevel, "ARB_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
