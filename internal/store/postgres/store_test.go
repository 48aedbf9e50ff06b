package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// setupTestDB starts a disposable PostgreSQL container and applies the
// embedded migrations. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*Client, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed store tests in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err, "failed to connect")
	require.NoError(t, client.RunMigrations(ctx), "failed to run migrations")

	cleanup := func() {
		client.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return client, cleanup
}

func testPool(address, venue string, tvl float64) domain.Pool {
	return domain.Pool{
		Address: address,
		Venue:   venue,
		MintA:   domain.MintWSOL,
		MintB:   domain.MintUSDC,
		SymbolA: "SOL",
		SymbolB: "USDC",
		TVLUsd:  tvl,
		FeeRate: domain.DefaultFeeRate(venue),
		Active:  true,
	}
}

func testOpportunity(id string, created time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID:            id,
		PairKey:       domain.PairKey(domain.MintWSOL, domain.MintUSDC),
		Symbols:       "SOL/USDC",
		BuyVenue:      domain.VenueRaydium,
		SellVenue:     domain.VenueOrca,
		BuyPool:       "poolA",
		SellPool:      "poolB",
		BuyRate:       0.00631,
		SellRate:      0.00635,
		ProfitPercent: 0.63,
		PriorityScore: 12.5,
		Status:        domain.StatusDiscovered,
		CreatedAt:     created,
		UpdatedAt:     created,
		ExpiresAt:     created.Add(5 * time.Minute),
	}
}

func TestPoolStore(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(client.Pool())

	ray := testPool("ray-pool", domain.VenueRaydium, 250_000)
	orca := testPool("orca-pool", domain.VenueOrca, 90_000)
	small := testPool("small-pool", domain.VenueOrca, 1_000)

	require.NoError(t, store.Upsert(ctx, ray))
	require.NoError(t, store.Upsert(ctx, orca))
	require.NoError(t, store.Upsert(ctx, small))

	t.Run("get by address", func(t *testing.T) {
		got, err := store.GetByAddress(ctx, "ray-pool")
		require.NoError(t, err)
		assert.Equal(t, domain.VenueRaydium, got.Venue)
		assert.Equal(t, 250_000.0, got.TVLUsd)
		assert.True(t, got.PriceUpdatedAt.IsZero())

		_, err = store.GetByAddress(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("upsert validates", func(t *testing.T) {
		err := store.Upsert(ctx, domain.Pool{Address: "bad"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("list active respects tvl floor and ordering", func(t *testing.T) {
		pools, err := store.ListActive(ctx, 10_000)
		require.NoError(t, err)
		require.Len(t, pools, 2)
		assert.Equal(t, "ray-pool", pools[0].Address)
		assert.Equal(t, "orca-pool", pools[1].Address)
	})

	t.Run("update prices survives snapshot refresh", func(t *testing.T) {
		observed := time.Now().UTC().Truncate(time.Millisecond)
		res := domain.VerificationResult{
			PoolAddress: "ray-pool",
			PriceA:      158.42,
			PriceB:      1.0 / 158.42,
			BalanceA:    1000,
			BalanceB:    158_420,
			ObservedAt:  observed,
		}
		require.NoError(t, store.UpdatePrices(ctx, "ray-pool", res))

		// A snapshot refresh must not clobber the verified prices.
		refreshed := ray
		refreshed.TVLUsd = 260_000
		require.NoError(t, store.Upsert(ctx, refreshed))

		got, err := store.GetByAddress(ctx, "ray-pool")
		require.NoError(t, err)
		assert.Equal(t, 260_000.0, got.TVLUsd)
		assert.Equal(t, 158.42, got.PriceA)
		assert.Equal(t, 1000.0, got.BalanceA)
		assert.Equal(t, observed, got.PriceUpdatedAt.UTC())

		err = store.UpdatePrices(ctx, "missing", res)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("count active by venue", func(t *testing.T) {
		counts, err := store.CountActiveByVenue(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[domain.VenueRaydium])
		assert.Equal(t, int64(2), counts[domain.VenueOrca])
	})

	t.Run("deactivate stale", func(t *testing.T) {
		// Everything was written moments ago, a past cutoff touches nothing.
		n, err := store.DeactivateStale(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = store.DeactivateStale(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		pools, err := store.ListActive(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, pools)
	})
}

func TestOpportunityStore(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOpportunityStore(client.Pool())

	now := time.Now().UTC().Truncate(time.Millisecond)
	first := testOpportunity("opp-1", now.Add(-2*time.Hour))
	second := testOpportunity("opp-2", now)
	second.PriorityScore = 99

	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	t.Run("round trip", func(t *testing.T) {
		got, err := store.GetByID(ctx, "opp-1")
		require.NoError(t, err)
		assert.Equal(t, first.PairKey, got.PairKey)
		assert.Equal(t, domain.StatusDiscovered, got.Status)
		assert.Nil(t, got.VerifiedAt)
		assert.Nil(t, got.ClosedAt)

		_, err = store.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list active ordered by priority", func(t *testing.T) {
		opps, err := store.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, opps, 2)
		assert.Equal(t, "opp-2", opps[0].ID)
	})

	t.Run("list recent newest first", func(t *testing.T) {
		opps, err := store.ListRecent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, opps, 1)
		assert.Equal(t, "opp-2", opps[0].ID)
	})

	t.Run("update transitions", func(t *testing.T) {
		closed := now.Add(-time.Hour)
		expired := first
		expired.Status = domain.StatusExpired
		expired.ClosedAt = &closed
		expired.UpdatedAt = now
		require.NoError(t, store.Update(ctx, expired))

		got, err := store.GetByID(ctx, "opp-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusExpired, got.Status)
		require.NotNil(t, got.ClosedAt)
		assert.Equal(t, closed, got.ClosedAt.UTC())

		missing := testOpportunity("missing", now)
		assert.ErrorIs(t, store.Update(ctx, missing), domain.ErrNotFound)
	})

	t.Run("terminal archival window", func(t *testing.T) {
		opps, err := store.ListTerminalBefore(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, opps, 1)
		assert.Equal(t, "opp-1", opps[0].ID)

		n, err := store.DeleteTerminalBefore(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = store.GetByID(ctx, "opp-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("count by status", func(t *testing.T) {
		counts, err := store.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[domain.StatusDiscovered])
	})
}
