package arbitrage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// DetectorConfig holds detection thresholds.
type DetectorConfig struct {
	// MinProfitPercent is the minimum cross-venue rate divergence, in
	// percent, for a pair of pools to become an opportunity.
	MinProfitPercent float64
	// TradeSizeUsd is the notional used to estimate dollar profit.
	TradeSizeUsd float64
	// OpportunityTTL bounds how long a discovered opportunity stays
	// actionable.
	OpportunityTTL time.Duration
}

// Detector finds same-pair pools priced differently on different venues.
// It is pure: no I/O, no clock reads beyond the now argument.
type Detector struct {
	cfg    DetectorConfig
	scorer *Scorer
}

// NewDetector creates a Detector.
func NewDetector(cfg DetectorConfig, scorer *Scorer) *Detector {
	return &Detector{cfg: cfg, scorer: scorer}
}

// Detect groups priced pools by token pair and emits one DISCOVERED
// opportunity per unordered pool pair whose implied rates diverge beyond the
// profit threshold. Results are sorted by priority score descending.
func (d *Detector) Detect(pools []domain.Pool, now time.Time) []domain.Opportunity {
	groups := make(map[string][]domain.Pool)
	for _, p := range pools {
		if !p.Active || p.TVLUsd <= 0 {
			continue
		}
		if _, ok := p.Rate(); !ok {
			continue
		}
		groups[p.PairKey()] = append(groups[p.PairKey()], p)
	}

	// Dedup by unordered pool pair, keeping the higher-profit computation.
	best := make(map[string]domain.Opportunity)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.Venue == b.Venue || a.Address == b.Address {
					continue
				}
				opp, ok := d.compare(a, b, now)
				if !ok {
					continue
				}
				key := opp.DedupKey()
				if prev, seen := best[key]; !seen || opp.ProfitPercent > prev.ProfitPercent {
					best[key] = opp
				}
			}
		}
	}

	opps := make([]domain.Opportunity, 0, len(best))
	for _, opp := range best {
		opps = append(opps, opp)
	}
	sort.Slice(opps, func(i, j int) bool {
		return opps[i].PriorityScore > opps[j].PriorityScore
	})
	return opps
}

// compare evaluates one cross-venue pool pair. The pool with the lower
// implied rate is the buy side.
func (d *Detector) compare(a, b domain.Pool, now time.Time) (domain.Opportunity, bool) {
	rateA, okA := a.Rate()
	rateB, okB := b.Rate()
	if !okA || !okB {
		return domain.Opportunity{}, false
	}

	maxRate := rateA
	if rateB > maxRate {
		maxRate = rateB
	}
	if maxRate <= 0 {
		return domain.Opportunity{}, false
	}

	diff := rateA - rateB
	if diff < 0 {
		diff = -diff
	}
	profitPercent := diff / maxRate * 100
	if profitPercent <= d.cfg.MinProfitPercent {
		return domain.Opportunity{}, false
	}

	buy, sell := a, b
	buyRate, sellRate := rateA, rateB
	if rateA > rateB {
		buy, sell = b, a
		buyRate, sellRate = rateB, rateA
	}

	totalTVL := a.TVLUsd + b.TVLUsd
	gross := d.cfg.TradeSizeUsd * profitPercent / 100
	fees := d.cfg.TradeSizeUsd * (feeRate(a) + feeRate(b))

	opp := domain.Opportunity{
		ID:                 uuid.NewString(),
		PairKey:            a.PairKey(),
		Symbols:            buy.Symbols(),
		BuyVenue:           buy.Venue,
		SellVenue:          sell.Venue,
		BuyPool:            buy.Address,
		SellPool:           sell.Address,
		BuyRate:            buyRate,
		SellRate:           sellRate,
		ProfitPercent:      profitPercent,
		EstimatedProfitUsd: gross - fees,
		TotalTVLUsd:        totalTVL,
		PriorityScore:      d.scorer.ScoreOpportunity(profitPercent, totalTVL),
		Status:             domain.StatusDiscovered,
		CreatedAt:          now,
		UpdatedAt:          now,
		ExpiresAt:          now.Add(d.cfg.OpportunityTTL),
		TradingPath: fmt.Sprintf("buy %s on %s @ %.6f, sell on %s @ %.6f",
			buy.Symbols(), buy.Venue, buyRate, sell.Venue, sellRate),
	}
	return opp, true
}

func feeRate(p domain.Pool) float64 {
	if p.FeeRate > 0 {
		return p.FeeRate
	}
	return domain.DefaultFeeRate(p.Venue)
}
