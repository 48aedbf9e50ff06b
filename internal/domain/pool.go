package domain

import (
	"fmt"
	"strings"
	"time"
)

// Well-known Solana mint addresses.
const (
	MintWSOL = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// Venue identifiers for the DEXes the scanner understands.
const (
	VenueRaydium = "raydium"
	VenueOrca    = "orca"
	VenueMeteora = "meteora"
)

// DefaultFeeRate returns the venue's swap fee used when a snapshot does not
// carry one.
func DefaultFeeRate(venue string) float64 {
	switch venue {
	case VenueRaydium:
		return 0.0025
	case VenueOrca:
		return 0.003
	case VenueMeteora:
		return 0.002
	default:
		return 0.003
	}
}

// Pool is a liquidity pool on a Solana DEX. Snapshots come from the market
// data source; prices and balances are filled in by on-chain verification.
type Pool struct {
	Address string  `json:"address"`
	Venue   string  `json:"venue"`
	MintA   string  `json:"mint_a"`
	MintB   string  `json:"mint_b"`
	SymbolA string  `json:"symbol_a"`
	SymbolB string  `json:"symbol_b"`
	TVLUsd  float64 `json:"tvl_usd"`
	FeeRate float64 `json:"fee_rate"`
	Active  bool    `json:"active"`

	PriceA   float64 `json:"price_a"`
	PriceB   float64 `json:"price_b"`
	BalanceA float64 `json:"balance_a"`
	BalanceB float64 `json:"balance_b"`

	PriceUpdatedAt time.Time `json:"price_updated_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// PairKey returns the canonical token-pair identifier for the pool. It is
// symmetric: pools holding the same two mints map to the same key regardless
// of which side the snapshot listed first.
func (p Pool) PairKey() string {
	return PairKey(p.MintA, p.MintB)
}

// PairKey builds the canonical key for a mint pair.
func PairKey(mintA, mintB string) string {
	if strings.Compare(mintA, mintB) > 0 {
		mintA, mintB = mintB, mintA
	}
	return mintA + "-" + mintB
}

// Symbols returns a human-readable pair label such as "SOL/USDC".
func (p Pool) Symbols() string {
	return fmt.Sprintf("%s/%s", p.SymbolA, p.SymbolB)
}

// HasFreshPrices reports whether the pool carries price data newer than
// maxAge relative to now.
func (p Pool) HasFreshPrices(now time.Time, maxAge time.Duration) bool {
	if p.PriceUpdatedAt.IsZero() {
		return false
	}
	return now.Sub(p.PriceUpdatedAt) <= maxAge
}

// Rate returns the implied A-per-B exchange rate. Vault balances take
// precedence over quoted prices because they reflect the live reserves. The
// second return value is false when neither source can produce a rate.
func (p Pool) Rate() (float64, bool) {
	// Orient balances to the canonical mint ordering so pools listing the
	// same pair in opposite order produce comparable rates.
	balA, balB := p.BalanceA, p.BalanceB
	priceA, priceB := p.PriceA, p.PriceB
	if strings.Compare(p.MintA, p.MintB) > 0 {
		balA, balB = balB, balA
		priceA, priceB = priceB, priceA
	}
	if balA > 0 && balB > 0 {
		return balB / balA, true
	}
	if priceA > 0 && priceB > 0 {
		return priceA / priceB, true
	}
	return 0, false
}

// ContainsSOL reports whether one side of the pool is wrapped SOL.
func (p Pool) ContainsSOL() bool {
	return p.MintA == MintWSOL || p.MintB == MintWSOL
}

// ContainsStablecoin reports whether one side is USDC or USDT.
func (p Pool) ContainsStablecoin() bool {
	return isStableMint(p.MintA) || isStableMint(p.MintB)
}

// IsStablePair reports whether both sides are stablecoins.
func (p Pool) IsStablePair() bool {
	return isStableMint(p.MintA) && isStableMint(p.MintB)
}

func isStableMint(mint string) bool {
	return mint == MintUSDC || mint == MintUSDT
}

// Validate checks the fields every pool must carry before it can be stored.
func (p Pool) Validate() error {
	var problems []string
	if p.Address == "" {
		problems = append(problems, "address is required")
	}
	if p.MintA == "" || p.MintB == "" {
		problems = append(problems, "both mints are required")
	}
	if p.MintA == p.MintB {
		problems = append(problems, "mints must differ")
	}
	if p.Venue == "" {
		problems = append(problems, "venue is required")
	}
	if p.TVLUsd < 0 {
		problems = append(problems, "tvl must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: pool %s: %s", ErrInvalidInput, p.Address, strings.Join(problems, "; "))
	}
	return nil
}
