package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKey_Symmetric(t *testing.T) {
	forward := PairKey(MintWSOL, MintUSDC)
	reverse := PairKey(MintUSDC, MintWSOL)

	assert.Equal(t, forward, reverse)
	// USDC sorts before WSOL lexicographically.
	assert.Equal(t, MintUSDC+"-"+MintWSOL, forward)
}

func TestPool_Rate_CanonicalOrientation(t *testing.T) {
	// Listed SOL-first: the canonical ordering puts USDC first, so the rate
	// is SOL reserves per USDC reserve.
	solFirst := Pool{
		MintA:    MintWSOL,
		MintB:    MintUSDC,
		BalanceA: 1000,
		BalanceB: 158_000,
	}
	usdcFirst := Pool{
		MintA:    MintUSDC,
		MintB:    MintWSOL,
		BalanceA: 158_000,
		BalanceB: 1000,
	}

	r1, ok := solFirst.Rate()
	require.True(t, ok)
	r2, ok := usdcFirst.Rate()
	require.True(t, ok)

	assert.InDelta(t, 1000.0/158_000.0, r1, 1e-12)
	assert.Equal(t, r1, r2)
}

func TestPool_Rate_BalancesBeatPrices(t *testing.T) {
	p := Pool{
		MintA:    MintUSDC,
		MintB:    MintWSOL,
		BalanceA: 200_000,
		BalanceB: 1000,
		PriceA:   1,
		PriceB:   150,
	}

	r, ok := p.Rate()
	require.True(t, ok)
	assert.InDelta(t, 200_000.0/1000.0, r, 1e-9)
}

func TestPool_Rate_FallsBackToPrices(t *testing.T) {
	p := Pool{
		MintA:  MintUSDC,
		MintB:  MintWSOL,
		PriceA: 1,
		PriceB: 158,
	}

	r, ok := p.Rate()
	require.True(t, ok)
	assert.InDelta(t, 1.0/158.0, r, 1e-12)
}

func TestPool_Rate_NoData(t *testing.T) {
	p := Pool{MintA: MintUSDC, MintB: MintWSOL}

	_, ok := p.Rate()
	assert.False(t, ok)
}

func TestPool_HasFreshPrices(t *testing.T) {
	now := time.Now()

	fresh := Pool{PriceUpdatedAt: now.Add(-time.Minute)}
	stale := Pool{PriceUpdatedAt: now.Add(-10 * time.Minute)}
	never := Pool{}

	assert.True(t, fresh.HasFreshPrices(now, 5*time.Minute))
	assert.False(t, stale.HasFreshPrices(now, 5*time.Minute))
	assert.False(t, never.HasFreshPrices(now, 5*time.Minute))
}

func TestPool_Classification(t *testing.T) {
	solUsdc := Pool{MintA: MintWSOL, MintB: MintUSDC}
	usdcUsdt := Pool{MintA: MintUSDC, MintB: MintUSDT}

	assert.True(t, solUsdc.ContainsSOL())
	assert.True(t, solUsdc.ContainsStablecoin())
	assert.False(t, solUsdc.IsStablePair())

	assert.False(t, usdcUsdt.ContainsSOL())
	assert.True(t, usdcUsdt.IsStablePair())
}

func TestPool_Validate(t *testing.T) {
	good := Pool{
		Address: "pool1",
		Venue:   VenueRaydium,
		MintA:   MintWSOL,
		MintB:   MintUSDC,
		TVLUsd:  100_000,
	}
	require.NoError(t, good.Validate())

	cases := map[string]Pool{
		"missing address": {Venue: VenueOrca, MintA: MintWSOL, MintB: MintUSDC},
		"missing mint":    {Address: "p", Venue: VenueOrca, MintA: MintWSOL},
		"same mints":      {Address: "p", Venue: VenueOrca, MintA: MintWSOL, MintB: MintWSOL},
		"missing venue":   {Address: "p", MintA: MintWSOL, MintB: MintUSDC},
		"negative tvl":    {Address: "p", Venue: VenueOrca, MintA: MintWSOL, MintB: MintUSDC, TVLUsd: -1},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestDefaultFeeRate(t *testing.T) {
	assert.Equal(t, 0.0025, DefaultFeeRate(VenueRaydium))
	assert.Equal(t, 0.003, DefaultFeeRate(VenueOrca))
	assert.Equal(t, 0.002, DefaultFeeRate(VenueMeteora))
	assert.Equal(t, 0.003, DefaultFeeRate("unknown"))
}
