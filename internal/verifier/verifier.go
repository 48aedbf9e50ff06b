package verifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/dex"
	"github.com/qajybay/offchain-arbitrage/internal/domain"
	"github.com/qajybay/offchain-arbitrage/internal/solana"
)

// AccountFetcher is the chain transport the verifier reads through. Two
// endpoints are configured: primary and an optional fallback.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, address string) (solana.Account, error)
	Endpoint() string
}

// Config holds verification pacing and failover parameters.
type Config struct {
	// PacingDelay is the minimum fixed delay between successive RPC calls,
	// independent of the rate gate. RPC providers enforce burst limits
	// tighter than any rolling window can express.
	PacingDelay time.Duration
	// Cooldown is how long the verifier refuses new batches after a
	// rate-limit hit.
	Cooldown time.Duration
	// MaxRetries bounds attempts per endpoint for transient transport
	// errors.
	MaxRetries int
	// RetryDelay is the base delay between retries; it grows linearly
	// with the attempt number.
	RetryDelay time.Duration
}

// Defaults returns the standard verification pacing parameters.
func Defaults() Config {
	return Config{
		PacingDelay: 2 * time.Second,
		Cooldown:    10 * time.Second,
		MaxRetries:  3,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Verifier confirms pool reserves against chain state. It owns the rate
// gate and the primary/fallback failover state; all verification in a cycle
// is serialized through it.
type Verifier struct {
	primary  AccountFetcher
	fallback AccountFetcher
	decoders *dex.Registry
	gate     *RateGate
	cfg      Config
	logger   *slog.Logger

	mu            sync.Mutex
	usingFallback bool
	cooldownUntil time.Time
	totalCalls    int64
	successCalls  int64
	fallbackCalls int64
	rateLimitHits int64
	verifiedPools int64
	lastRateLimit time.Time
	lastSuccess   time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Verifier. fallback may be nil when only one endpoint is
// configured.
func New(primary, fallback AccountFetcher, decoders *dex.Registry, gate *RateGate, cfg Config, logger *slog.Logger) *Verifier {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Verifier{
		primary:  primary,
		fallback: fallback,
		decoders: decoders,
		gate:     gate,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "verifier")),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// VerifyBatch verifies up to maxCount pools, serially, with the configured
// pacing delay between calls. It returns the results produced so far when
// the context is cancelled, the rate gate denies admission, or a rate limit
// with no remaining failover interrupts the batch. A verifier in cooldown
// refuses the batch outright.
func (v *Verifier) VerifyBatch(ctx context.Context, pools []domain.Pool, maxCount int) []domain.VerificationResult {
	if maxCount > 0 && len(pools) > maxCount {
		pools = pools[:maxCount]
	}
	if len(pools) == 0 {
		return nil
	}
	if v.InCooldown() {
		v.logger.WarnContext(ctx, "skipping verification batch: in cooldown",
			slog.Int("pools", len(pools)))
		return nil
	}

	results := make([]domain.VerificationResult, 0, len(pools))
	for i, pool := range pools {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := v.sleep(ctx, v.cfg.PacingDelay); err != nil {
				break
			}
		}
		if !v.gate.TryAcquire() {
			v.logger.WarnContext(ctx, "rate gate budget exhausted, stopping batch",
				slog.Int("verified", len(results)), slog.Int("remaining", len(pools)-i))
			break
		}

		wasFallback := v.UsingFallback()
		res := v.Verify(ctx, pool)
		results = append(results, res)

		// A rate limit that could not fail over ends the batch; after a
		// failover the remaining pools proceed through the fallback.
		if res.Failure == domain.FailureRateLimited && v.UsingFallback() == wasFallback {
			v.logger.WarnContext(ctx, "rate limited with no failover available, stopping batch",
				slog.Int("verified", len(results)), slog.Int("remaining", len(pools)-i-1))
			break
		}
	}
	return results
}

// Verify performs a single pool verification: one account fetch through the
// current endpoint (with retries and failover for transient errors) followed
// by a venue-specific decode. Failures are reported in the result, never
// fabricated into prices.
func (v *Verifier) Verify(ctx context.Context, pool domain.Pool) domain.VerificationResult {
	res := domain.VerificationResult{
		PoolAddress: pool.Address,
		Venue:       pool.Venue,
	}

	acct, failure := v.fetch(ctx, pool.Address)
	if failure != domain.FailureNone {
		res.Failure = failure
		return res
	}

	state, err := v.decoders.Decode(pool.Venue, acct.Data)
	if err != nil {
		v.logger.WarnContext(ctx, "pool account decode failed",
			slog.String("pool", pool.Address),
			slog.String("venue", pool.Venue),
			slog.String("error", err.Error()))
		res.Failure = domain.FailureDecode
		return res
	}

	balA, balB := state.ReserveA, state.ReserveB
	switch {
	case state.MintA == pool.MintA && state.MintB == pool.MintB:
	case state.MintA == pool.MintB && state.MintB == pool.MintA:
		balA, balB = balB, balA
	default:
		v.logger.WarnContext(ctx, "decoded mints do not match pool snapshot",
			slog.String("pool", pool.Address),
			slog.String("venue", pool.Venue))
		res.Failure = domain.FailureDecode
		return res
	}

	res.BalanceA = balA
	res.BalanceB = balB
	res.PriceA = balB / balA
	res.PriceB = balA / balB
	res.Slot = acct.Slot
	res.ObservedAt = v.now()

	v.mu.Lock()
	v.verifiedPools++
	v.lastSuccess = res.ObservedAt
	v.mu.Unlock()

	return res
}

// fetch reads the account through the current endpoint. Transient transport
// errors are retried with linearly increasing delay; once the primary's
// retries are exhausted the verifier fails over and retries on the fallback.
// A rate-limit signal is never retried: it arms the cooldown, fails over if
// possible, and fails the current pool.
func (v *Verifier) fetch(ctx context.Context, address string) (solana.Account, domain.FailureKind) {
	for {
		client := v.current()
		onFallback := client == v.fallback && v.fallback != nil

		var lastErr error
		for attempt := 1; attempt <= v.cfg.MaxRetries; attempt++ {
			if attempt > 1 {
				if err := v.sleep(ctx, v.cfg.RetryDelay*time.Duration(attempt-1)); err != nil {
					return solana.Account{}, domain.FailureTransport
				}
			}

			v.countCall(onFallback)
			acct, err := client.GetAccountInfo(ctx, address)
			if err == nil {
				v.mu.Lock()
				v.successCalls++
				v.mu.Unlock()
				return acct, domain.FailureNone
			}

			switch {
			case errors.Is(err, domain.ErrRateLimited):
				v.noteRateLimit(ctx, client.Endpoint())
				return solana.Account{}, domain.FailureRateLimited
			case errors.Is(err, domain.ErrAccountNotFound):
				return solana.Account{}, domain.FailureNotFound
			case ctx.Err() != nil:
				return solana.Account{}, domain.FailureTransport
			default:
				lastErr = err
			}
		}

		if v.failOver(ctx, "retries exhausted") {
			continue
		}

		v.logger.WarnContext(ctx, "account fetch failed after retries",
			slog.String("address", address),
			slog.String("endpoint", client.Endpoint()),
			slog.String("error", lastErr.Error()))
		return solana.Account{}, domain.FailureTransport
	}
}

// current returns the endpoint in use.
func (v *Verifier) current() AccountFetcher {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.usingFallback && v.fallback != nil {
		return v.fallback
	}
	return v.primary
}

// noteRateLimit records a rate-limit hit, arms the cooldown, and fails over
// to the fallback endpoint if one is available.
func (v *Verifier) noteRateLimit(ctx context.Context, endpoint string) {
	v.mu.Lock()
	now := v.now()
	v.rateLimitHits++
	v.lastRateLimit = now
	v.cooldownUntil = now.Add(v.cfg.Cooldown)
	v.mu.Unlock()

	v.logger.WarnContext(ctx, "rpc rate limited, entering cooldown",
		slog.String("endpoint", endpoint),
		slog.Duration("cooldown", v.cfg.Cooldown))

	v.failOver(ctx, "rate limited")
}

// failOver switches to the fallback endpoint. Returns false when already on
// the fallback or none is configured; the verifier never auto-recovers to
// primary (see ResetToPrimary).
func (v *Verifier) failOver(ctx context.Context, reason string) bool {
	v.mu.Lock()
	if v.fallback == nil || v.usingFallback {
		v.mu.Unlock()
		return false
	}
	v.usingFallback = true
	v.mu.Unlock()

	v.logger.WarnContext(ctx, "failing over to fallback rpc endpoint",
		slog.String("reason", reason),
		slog.String("fallback", v.fallback.Endpoint()))
	return true
}

// ResetToPrimary is the explicit, operator-triggered transition back to the
// primary endpoint. It also clears any pending cooldown.
func (v *Verifier) ResetToPrimary() {
	v.mu.Lock()
	wasFallback := v.usingFallback
	v.usingFallback = false
	v.cooldownUntil = time.Time{}
	v.mu.Unlock()

	if wasFallback {
		v.logger.Info("reset to primary rpc endpoint",
			slog.String("primary", v.primary.Endpoint()))
	}
}

// UsingFallback reports whether the verifier currently routes through the
// fallback endpoint.
func (v *Verifier) UsingFallback() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.usingFallback && v.fallback != nil
}

// InCooldown reports whether the verifier is refusing new work after a
// rate-limit hit.
func (v *Verifier) InCooldown() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now().Before(v.cooldownUntil)
}

// Stats returns a snapshot of the verifier's counters.
func (v *Verifier) Stats() domain.VerifierStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return domain.VerifierStats{
		TotalCalls:    v.totalCalls,
		SuccessCalls:  v.successCalls,
		FallbackCalls: v.fallbackCalls,
		RateLimitHits: v.rateLimitHits,
		VerifiedPools: v.verifiedPools,
		UsingFallback: v.usingFallback && v.fallback != nil,
		InCooldown:    v.now().Before(v.cooldownUntil),
		WindowUsed:    v.gate.Used(),
		WindowBudget:  v.gate.Budget(),
		LastRateLimit: v.lastRateLimit,
		LastSuccess:   v.lastSuccess,
	}
}

func (v *Verifier) countCall(onFallback bool) {
	v.mu.Lock()
	v.totalCalls++
	if onFallback {
		v.fallbackCalls++
	}
	v.mu.Unlock()
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
