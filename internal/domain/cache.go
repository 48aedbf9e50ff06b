package domain

import (
	"context"
	"time"
)

// PriceCache is a short-lived cache of verified pool prices shared between
// processes.
type PriceCache interface {
	// SetPoolPrices stores the verified prices for a pool with the cache's
	// configured TTL.
	SetPoolPrices(ctx context.Context, res VerificationResult) error

	// GetPoolPrices returns the cached prices for a pool, or ErrNotFound
	// when missing or expired.
	GetPoolPrices(ctx context.Context, address string) (VerificationResult, error)
}

// Signal is an event published on the signal bus when the pipeline finds or
// advances an opportunity.
type Signal struct {
	Kind          string    `json:"kind"`
	OpportunityID string    `json:"opportunity_id"`
	PairKey       string    `json:"pair_key"`
	ProfitPercent float64   `json:"profit_percent"`
	PriorityScore float64   `json:"priority_score"`
	At            time.Time `json:"at"`
}

// Signal kinds.
const (
	SignalDiscovered = "opportunity.discovered"
	SignalVerified   = "opportunity.verified"
	SignalExpired    = "opportunity.expired"
	SignalExecuted   = "opportunity.executed"
	SignalFailed     = "opportunity.failed"
)

// SignalBus broadcasts lifecycle signals to interested consumers. Publishing
// is fire-and-forget: a bus error never blocks the pipeline.
type SignalBus interface {
	Publish(ctx context.Context, sig Signal) error
	Subscribe(ctx context.Context) (<-chan Signal, error)
}

// LockManager provides distributed locks so that only one process runs a
// given critical section, such as a scan cycle, at a time.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL and returns an
	// unlock function. It returns ErrLockHeld when another party holds the
	// lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
