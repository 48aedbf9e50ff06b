package domain

import (
	"context"
	"time"
)

// PoolStore persists liquidity pool snapshots and their verified prices.
type PoolStore interface {
	// Upsert inserts the pool or refreshes its snapshot fields if it
	// already exists. Verified prices are left untouched by snapshot
	// refreshes.
	Upsert(ctx context.Context, pool Pool) error

	// GetByAddress returns the pool with the given address, or ErrNotFound.
	GetByAddress(ctx context.Context, address string) (Pool, error)

	// ListActive returns active pools with TVL at or above minTVL,
	// ordered by TVL descending.
	ListActive(ctx context.Context, minTVL float64) ([]Pool, error)

	// UpdatePrices records a verified price observation for the pool.
	UpdatePrices(ctx context.Context, address string, res VerificationResult) error

	// DeactivateStale marks pools not refreshed since cutoff as inactive
	// and returns how many rows changed.
	DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error)

	// CountActiveByVenue returns the number of active pools per venue.
	CountActiveByVenue(ctx context.Context) (map[string]int64, error)
}

// OpportunityStore persists arbitrage opportunities across scan cycles.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	Update(ctx context.Context, opp Opportunity) error

	// GetByID returns the opportunity, or ErrNotFound.
	GetByID(ctx context.Context, id string) (Opportunity, error)

	// ListActive returns non-terminal opportunities ordered by priority
	// score descending.
	ListActive(ctx context.Context) ([]Opportunity, error)

	// ListRecent returns the most recently created opportunities in any
	// status, newest first.
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)

	// ListTerminalBefore returns terminal opportunities closed before the
	// cutoff, oldest first, for archival.
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]Opportunity, error)

	// DeleteTerminalBefore removes terminal opportunities closed before
	// the cutoff and returns how many rows were deleted.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// CountByStatus returns opportunity counts grouped by status.
	CountByStatus(ctx context.Context) (map[OpportunityStatus]int64, error)
}

// MarketSource produces pool snapshots from an off-chain market data
// aggregator.
type MarketSource interface {
	// FetchPoolSnapshots returns the current pool universe. Snapshots
	// carry TVL and metadata but no verified prices.
	FetchPoolSnapshots(ctx context.Context) ([]Pool, error)
}
