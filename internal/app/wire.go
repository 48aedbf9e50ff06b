package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/arbitrage"
	s3blob "github.com/qajybay/offchain-arbitrage/internal/blob/s3"
	"github.com/qajybay/offchain-arbitrage/internal/cache/redis"
	"github.com/qajybay/offchain-arbitrage/internal/config"
	"github.com/qajybay/offchain-arbitrage/internal/dex"
	"github.com/qajybay/offchain-arbitrage/internal/domain"
	"github.com/qajybay/offchain-arbitrage/internal/lifecycle"
	"github.com/qajybay/offchain-arbitrage/internal/market"
	"github.com/qajybay/offchain-arbitrage/internal/pipeline"
	"github.com/qajybay/offchain-arbitrage/internal/solana"
	"github.com/qajybay/offchain-arbitrage/internal/store/postgres"
	"github.com/qajybay/offchain-arbitrage/internal/verifier"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PoolStore        domain.PoolStore
	OpportunityStore domain.OpportunityStore

	// Redis
	PriceCache  domain.PriceCache
	SignalBus   domain.SignalBus
	LockManager domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Pipeline
	MarketSource domain.MarketSource
	Verifier     *verifier.Verifier
	Lifecycle    *lifecycle.Manager
	Scanner      *pipeline.Scanner
	Orchestrator *pipeline.Orchestrator
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PoolStore = postgres.NewPoolStore(pool)
	deps.OpportunityStore = postgres.NewOpportunityStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Redis.PriceTTL.Duration)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- S3 blob storage ---
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	closers = append(closers, func() { _ = s3Client.Close() })

	deps.BlobWriter = s3blob.NewWriter(s3Client)
	deps.BlobReader = s3blob.NewReader(s3Client)
	deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.OpportunityStore, logger)

	// --- Market data ---
	deps.MarketSource = market.NewDexScreenerClient(
		cfg.DexScreener.BaseURL,
		cfg.DexScreener.SearchPairs,
		logger,
		market.WithMinLiquidity(cfg.DexScreener.MinLiquidityUsd),
		market.WithHTTPClient(&http.Client{Timeout: cfg.DexScreener.RequestTimeout.Duration}),
	)

	// --- Chain verification ---
	primary := solana.NewClient(cfg.Solana.PrimaryRPCURL,
		solana.WithTimeout(cfg.Solana.RequestTimeout.Duration),
		solana.WithCommitment(cfg.Solana.Commitment),
	)
	// A typed nil *solana.Client must not reach the verifier's interface
	// field, so the fallback stays a plain nil when unconfigured.
	var fallback verifier.AccountFetcher
	var fallbackClient *solana.Client
	if cfg.Solana.FallbackRPCURL != "" {
		fallbackClient = solana.NewClient(cfg.Solana.FallbackRPCURL,
			solana.WithTimeout(cfg.Solana.RequestTimeout.Duration),
			solana.WithCommitment(cfg.Solana.Commitment),
		)
		fallback = fallbackClient
	}
	probeRPC(ctx, logger, primary, fallbackClient)

	gate := verifier.NewRateGate(cfg.Verifier.RateBudget, cfg.Verifier.RateWindow.Duration)
	deps.Verifier = verifier.New(primary, fallback, dex.DefaultRegistry(), gate, verifier.Config{
		PacingDelay: cfg.Verifier.PacingDelay.Duration,
		Cooldown:    cfg.Verifier.Cooldown.Duration,
		MaxRetries:  cfg.Verifier.MaxRetries,
		RetryDelay:  cfg.Verifier.RetryDelay.Duration,
	}, logger)

	// --- Detection and lifecycle ---
	scorer := arbitrage.NewScorer()
	detector := arbitrage.NewDetector(arbitrage.DetectorConfig{
		MinProfitPercent: cfg.Detector.MinProfitPercent,
		TradeSizeUsd:     cfg.Detector.TradeSizeUsd,
		OpportunityTTL:   cfg.Scanner.OpportunityTTL.Duration,
	}, scorer)

	deps.Lifecycle = lifecycle.NewManager(
		deps.OpportunityStore,
		deps.SignalBus,
		cfg.Scanner.OpportunityTTL.Duration,
		logger,
	)

	// --- Pipeline ---
	deps.Scanner = pipeline.NewScanner(
		deps.MarketSource,
		deps.PoolStore,
		deps.Lifecycle,
		detector,
		scorer,
		deps.Verifier,
		deps.PriceCache,
		pipeline.ScannerConfig{
			MinTVLUsd:         cfg.Detector.MinTVLUsd,
			MinProfitPercent:  cfg.Detector.MinProfitPercent,
			MaxPriceAge:       cfg.Detector.MaxPriceAge.Duration,
			MaxVerifyPerCycle: cfg.Verifier.MaxPerCycle,
			CycleTimeout:      cfg.Scanner.CycleTimeout.Duration,
		},
		logger,
	)

	deps.Orchestrator = pipeline.NewOrchestrator(
		deps.Scanner,
		deps.PoolStore,
		deps.Archiver,
		deps.LockManager,
		pipeline.OrchestratorConfig{
			ScanInterval: cfg.Scanner.Interval.Duration,
			// The lock must outlive a full cycle, deadline included.
			LockTTL:          2 * cfg.Scanner.CycleTimeout.Duration,
			PoolStaleAfter:   cfg.Scanner.PoolStaleAfter.Duration,
			ArchiveRetention: time.Duration(cfg.Scanner.ArchiveRetentionDays) * 24 * time.Hour,
		},
		logger,
	)

	return deps, cleanup, nil
}

// probeRPC checks slot height on each configured endpoint at startup. A dead
// endpoint is logged and tolerated; the verifier handles failures at runtime.
func probeRPC(ctx context.Context, logger *slog.Logger, primary, fallback *solana.Client) {
	probe := func(role string, c *solana.Client) {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		slot, err := c.GetSlot(probeCtx)
		if err != nil {
			logger.WarnContext(ctx, "rpc endpoint unreachable at startup",
				slog.String("role", role),
				slog.String("endpoint", c.Endpoint()),
				slog.String("error", err.Error()),
			)
			return
		}
		logger.InfoContext(ctx, "rpc endpoint reachable",
			slog.String("role", role),
			slog.String("endpoint", c.Endpoint()),
			slog.Uint64("slot", slot),
		)
	}

	probe("primary", primary)
	if fallback != nil {
		probe("fallback", fallback)
	}
}
