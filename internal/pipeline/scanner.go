// Package pipeline coordinates the scan cycle: snapshot refresh, detection,
// on-chain verification, and lifecycle maintenance.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/arbitrage"
	"github.com/qajybay/offchain-arbitrage/internal/domain"
	"github.com/qajybay/offchain-arbitrage/internal/lifecycle"
)

// BatchVerifier checks pools against the chain. Implemented by
// verifier.Verifier.
type BatchVerifier interface {
	VerifyBatch(ctx context.Context, pools []domain.Pool, maxCount int) []domain.VerificationResult
}

// ScannerConfig holds per-cycle thresholds.
type ScannerConfig struct {
	// MinTVLUsd filters the pool universe before detection.
	MinTVLUsd float64
	// MinProfitPercent is the spread an opportunity must still show against
	// fresh on-chain data to be marked verified.
	MinProfitPercent float64
	// MaxPriceAge marks a pool's prices stale for re-verification purposes.
	MaxPriceAge time.Duration
	// MaxVerifyPerCycle caps on-chain lookups per cycle.
	MaxVerifyPerCycle int
	// CycleTimeout bounds a whole cycle. Zero means no deadline.
	CycleTimeout time.Duration
}

// CycleStats summarizes one scan cycle.
type CycleStats struct {
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration_ns"`
	SnapshotsFetched int           `json:"snapshots_fetched"`
	PoolsScanned     int           `json:"pools_scanned"`
	Candidates       int           `json:"candidates"`
	Discovered       int           `json:"discovered"`
	Verified         int           `json:"verified"`
	VerifyFailed     int           `json:"verify_failed"`
	Expired          int           `json:"expired"`
}

// Scanner executes scan cycles. Cycles are strictly sequential; the
// orchestrator is responsible for never running two at once.
type Scanner struct {
	source   domain.MarketSource
	pools    domain.PoolStore
	life     *lifecycle.Manager
	detector *arbitrage.Detector
	scorer   *arbitrage.Scorer
	verifier BatchVerifier
	cache    domain.PriceCache // optional
	cfg      ScannerConfig
	logger   *slog.Logger

	now func() time.Time
}

// NewScanner creates a Scanner. cache may be nil when no shared price cache
// is configured.
func NewScanner(
	source domain.MarketSource,
	pools domain.PoolStore,
	life *lifecycle.Manager,
	detector *arbitrage.Detector,
	scorer *arbitrage.Scorer,
	chainVerifier BatchVerifier,
	cache domain.PriceCache,
	cfg ScannerConfig,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		source:   source,
		pools:    pools,
		life:     life,
		detector: detector,
		scorer:   scorer,
		verifier: chainVerifier,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scanner")),
		now:      time.Now,
	}
}

// RunCycle executes one full scan cycle: refresh snapshots, detect rate
// divergences, verify the most promising pools on-chain, and sweep expired
// opportunities. The cycle degrades rather than aborts: a failed snapshot
// fetch falls back to stored pools, and a partially verified cycle still
// counts.
func (s *Scanner) RunCycle(ctx context.Context) (CycleStats, error) {
	start := s.now()
	stats := CycleStats{StartedAt: start}

	if s.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CycleTimeout)
		defer cancel()
	}

	s.refreshSnapshots(ctx, &stats)

	pools, err := s.pools.ListActive(ctx, s.cfg.MinTVLUsd)
	if err != nil {
		return stats, fmt.Errorf("pipeline: list active pools: %w", err)
	}
	stats.PoolsScanned = len(pools)

	candidates := s.detector.Detect(pools, s.now())
	stats.Candidates = len(candidates)

	discovered := s.discover(ctx, candidates, &stats)
	s.verify(ctx, discovered, pools, &stats)

	// Expiry runs last so that opportunities verified moments ago within
	// their TTL are not swept by the same cycle that confirmed them.
	if swept, err := s.life.SweepExpired(ctx, s.now()); err != nil {
		s.logger.WarnContext(ctx, "expiry sweep failed", slog.String("error", err.Error()))
	} else {
		stats.Expired = swept
	}

	stats.Duration = s.now().Sub(start)
	s.logger.InfoContext(ctx, "scan cycle complete",
		slog.Int("pools", stats.PoolsScanned),
		slog.Int("candidates", stats.Candidates),
		slog.Int("discovered", stats.Discovered),
		slog.Int("verified", stats.Verified),
		slog.Int("expired", stats.Expired),
		slog.Duration("took", stats.Duration))
	return stats, nil
}

// refreshSnapshots pulls the pool universe from the market source and upserts
// it. Failures are logged, not fatal: detection proceeds on stored pools.
func (s *Scanner) refreshSnapshots(ctx context.Context, stats *CycleStats) {
	snapshots, err := s.source.FetchPoolSnapshots(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "snapshot fetch failed, using stored pools",
			slog.String("error", err.Error()))
		return
	}
	stats.SnapshotsFetched = len(snapshots)

	for i := range snapshots {
		if err := s.pools.Upsert(ctx, snapshots[i]); err != nil {
			s.logger.WarnContext(ctx, "pool upsert failed",
				slog.String("address", snapshots[i].Address),
				slog.String("error", err.Error()))
		}
	}
}

// discover persists detector candidates that are not already active. The
// same pool pair may be re-detected every cycle while the first opportunity
// is still open; those repeats are dropped.
func (s *Scanner) discover(ctx context.Context, candidates []domain.Opportunity, stats *CycleStats) []domain.Opportunity {
	open := make(map[string]struct{})
	if active, err := s.life.ListActive(ctx); err != nil {
		s.logger.WarnContext(ctx, "listing open opportunities failed",
			slog.String("error", err.Error()))
	} else {
		for i := range active {
			open[active[i].DedupKey()] = struct{}{}
		}
	}

	var discovered []domain.Opportunity
	for i := range candidates {
		if _, dup := open[candidates[i].DedupKey()]; dup {
			continue
		}
		opp, err := s.life.Discover(ctx, candidates[i])
		if err != nil {
			s.logger.WarnContext(ctx, "discover failed",
				slog.String("pair", candidates[i].PairKey),
				slog.String("error", err.Error()))
			continue
		}
		open[opp.DedupKey()] = struct{}{}
		discovered = append(discovered, opp)
	}
	stats.Discovered = len(discovered)
	return discovered
}

// verify checks the freshest opportunities against the chain. Pools backing
// discovered opportunities go first, ordered by opportunity priority; any
// remaining budget re-verifies stale high-value pools to keep prices warm.
func (s *Scanner) verify(ctx context.Context, discovered []domain.Opportunity, pools []domain.Pool, stats *CycleStats) {
	byAddr := make(map[string]domain.Pool, len(pools))
	for i := range pools {
		byAddr[pools[i].Address] = pools[i]
	}

	targets := s.verifyTargets(discovered, pools, byAddr)
	if len(targets) == 0 {
		return
	}

	results := s.verifier.VerifyBatch(ctx, targets, s.cfg.MaxVerifyPerCycle)

	verified := make(map[string]domain.VerificationResult, len(results))
	for _, res := range results {
		verified[res.PoolAddress] = res
		if !res.OK() {
			continue
		}
		if err := s.pools.UpdatePrices(ctx, res.PoolAddress, res); err != nil {
			s.logger.WarnContext(ctx, "price update failed",
				slog.String("address", res.PoolAddress),
				slog.String("error", err.Error()))
		}
		if s.cache != nil {
			if err := s.cache.SetPoolPrices(ctx, res); err != nil {
				s.logger.WarnContext(ctx, "price cache write failed",
					slog.String("address", res.PoolAddress),
					slog.String("error", err.Error()))
			}
		}
	}

	for i := range discovered {
		s.settle(ctx, discovered[i], byAddr, verified, stats)
	}
}

// verifyTargets builds the ordered verification list: opportunity pools by
// priority first, then stale pools by score.
func (s *Scanner) verifyTargets(discovered []domain.Opportunity, pools []domain.Pool, byAddr map[string]domain.Pool) []domain.Pool {
	seen := make(map[string]struct{})
	var targets []domain.Pool

	add := func(address string) {
		if _, dup := seen[address]; dup {
			return
		}
		if p, ok := byAddr[address]; ok {
			seen[address] = struct{}{}
			targets = append(targets, p)
		}
	}

	for i := range discovered {
		add(discovered[i].BuyPool)
		add(discovered[i].SellPool)
	}

	budget := s.cfg.MaxVerifyPerCycle
	if budget <= 0 || len(targets) >= budget {
		return targets
	}

	now := s.now()
	var stale []domain.Pool
	for i := range pools {
		if _, dup := seen[pools[i].Address]; dup {
			continue
		}
		if !pools[i].HasFreshPrices(now, s.cfg.MaxPriceAge) {
			stale = append(stale, pools[i])
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return s.scorer.ScorePool(stale[i], now) > s.scorer.ScorePool(stale[j], now)
	})
	for i := range stale {
		if len(targets) >= budget {
			break
		}
		targets = append(targets, stale[i])
	}
	return targets
}

// settle advances one opportunity based on this cycle's verification results.
// Opportunities whose pools were not both attempted stay DISCOVERED; rate
// limiting also leaves them untouched since nothing was learned.
func (s *Scanner) settle(ctx context.Context, opp domain.Opportunity, byAddr map[string]domain.Pool, verified map[string]domain.VerificationResult, stats *CycleStats) {
	buyRes, buyOK := verified[opp.BuyPool]
	sellRes, sellOK := verified[opp.SellPool]
	if !buyOK || !sellOK {
		return
	}
	if buyRes.Failure == domain.FailureRateLimited || sellRes.Failure == domain.FailureRateLimited {
		return
	}

	if !buyRes.OK() || !sellRes.OK() {
		if err := s.life.RecordVerificationFailure(ctx, opp.ID); err != nil {
			s.logger.WarnContext(ctx, "recording verification failure failed",
				slog.String("id", opp.ID), slog.String("error", err.Error()))
			return
		}
		stats.VerifyFailed++
		return
	}

	profit, ok := onChainSpread(opp, byAddr, buyRes, sellRes)
	if ok && profit > s.cfg.MinProfitPercent {
		note := fmt.Sprintf("on-chain spread %.4f%% (slots %d/%d)", profit, buyRes.Slot, sellRes.Slot)
		if err := s.life.MarkVerified(ctx, opp.ID, note); err != nil {
			s.logger.WarnContext(ctx, "mark verified failed",
				slog.String("id", opp.ID), slog.String("error", err.Error()))
			return
		}
		stats.Verified++
		return
	}

	if err := s.life.RecordVerificationFailure(ctx, opp.ID); err != nil {
		s.logger.WarnContext(ctx, "recording verification failure failed",
			slog.String("id", opp.ID), slog.String("error", err.Error()))
		return
	}
	stats.VerifyFailed++
}

// onChainSpread recomputes the cross-venue divergence from freshly observed
// reserves.
func onChainSpread(opp domain.Opportunity, byAddr map[string]domain.Pool, buyRes, sellRes domain.VerificationResult) (float64, bool) {
	buyRate, okA := freshRate(byAddr[opp.BuyPool], buyRes)
	sellRate, okB := freshRate(byAddr[opp.SellPool], sellRes)
	if !okA || !okB {
		return 0, false
	}

	maxRate := buyRate
	if sellRate > maxRate {
		maxRate = sellRate
	}
	if maxRate <= 0 {
		return 0, false
	}
	diff := sellRate - buyRate
	if diff < 0 {
		diff = -diff
	}
	return diff / maxRate * 100, true
}

// freshRate overlays a verification result onto the pool snapshot and
// returns its canonical rate.
func freshRate(pool domain.Pool, res domain.VerificationResult) (float64, bool) {
	pool.PriceA = res.PriceA
	pool.PriceB = res.PriceB
	pool.BalanceA = res.BalanceA
	pool.BalanceB = res.BalanceB
	return pool.Rate()
}
