// Package arbitrage detects cross-venue price discrepancies and scores
// pools and opportunities for verification priority.
package arbitrage

import (
	"math"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// Pool scoring weights. TVL dominates; pair composition, venue depth and
// metadata freshness adjust the ranking.
const (
	tvlWeight       = 1000.0
	stablePairBonus = 10000.0
	solPairBonus    = 5000.0
	stableSideBonus = 2000.0
	freshnessWeight = 1000.0
	freshnessCutoff = 60 * time.Minute
)

// venueBonus reflects typical venue depth.
var venueBonus = map[string]float64{
	domain.VenueRaydium: 1000,
	domain.VenueOrca:    800,
	domain.VenueMeteora: 600,
}

// Scorer ranks pools and opportunities. All methods are pure functions of
// their inputs.
type Scorer struct{}

// NewScorer returns a Scorer.
func NewScorer() *Scorer { return &Scorer{} }

// ScorePool ranks a pool for verification priority at the given time.
func (s *Scorer) ScorePool(pool domain.Pool, now time.Time) float64 {
	score := 0.0

	if pool.TVLUsd > 0 {
		score += math.Log10(pool.TVLUsd) * tvlWeight
	}

	switch {
	case pool.IsStablePair():
		score += stablePairBonus
	case pool.ContainsSOL():
		score += solPairBonus
	case pool.ContainsStablecoin():
		score += stableSideBonus
	}

	score += venueBonus[pool.Venue]

	if !pool.UpdatedAt.IsZero() {
		age := now.Sub(pool.UpdatedAt)
		if age < 0 {
			age = 0
		}
		if age < freshnessCutoff {
			score += freshnessWeight * (1 - float64(age)/float64(freshnessCutoff))
		}
	}

	return score
}

// ScoreOpportunity ranks an opportunity by profit weighted by combined
// liquidity, so a high-percentage but illiquid discrepancy does not outrank
// a lower-percentage one backed by deep liquidity.
func (s *Scorer) ScoreOpportunity(profitPercent, totalTVLUsd float64) float64 {
	if profitPercent <= 0 {
		return 0
	}
	if totalTVLUsd < 0 {
		totalTVLUsd = 0
	}
	return profitPercent * math.Log10(totalTVLUsd+1)
}
