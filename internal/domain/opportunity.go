package domain

import (
	"fmt"
	"time"
)

// OpportunityStatus is the lifecycle state of an arbitrage opportunity.
type OpportunityStatus string

const (
	StatusDiscovered OpportunityStatus = "DISCOVERED"
	StatusVerified   OpportunityStatus = "VERIFIED"
	StatusExpired    OpportunityStatus = "EXPIRED"
	StatusExecuted   OpportunityStatus = "EXECUTED"
	StatusFailed     OpportunityStatus = "FAILED"
)

// Terminal reports whether the status is final. Terminal opportunities never
// transition again.
func (s OpportunityStatus) Terminal() bool {
	switch s {
	case StatusExpired, StatusExecuted, StatusFailed:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known lifecycle status.
func (s OpportunityStatus) Valid() bool {
	switch s {
	case StatusDiscovered, StatusVerified, StatusExpired, StatusExecuted, StatusFailed:
		return true
	default:
		return false
	}
}

// Opportunity is a price discrepancy between two pools holding the same
// token pair on different venues.
type Opportunity struct {
	ID      string `json:"id"`
	PairKey string `json:"pair_key"`
	Symbols string `json:"symbols"`

	BuyVenue    string  `json:"buy_venue"`
	SellVenue   string  `json:"sell_venue"`
	BuyPool     string  `json:"buy_pool"`
	SellPool    string  `json:"sell_pool"`
	BuyRate     float64 `json:"buy_rate"`
	SellRate    float64 `json:"sell_rate"`
	TradingPath string  `json:"trading_path"`

	ProfitPercent      float64 `json:"profit_percent"`
	EstimatedProfitUsd float64 `json:"estimated_profit_usd"`
	TotalTVLUsd        float64 `json:"total_tvl_usd"`
	PriorityScore      float64 `json:"priority_score"`

	Status               OpportunityStatus `json:"status"`
	VerificationAttempts int               `json:"verification_attempts"`
	VerificationNote     string            `json:"verification_note,omitempty"`
	ExecutionTx          string            `json:"execution_tx,omitempty"`
	ActualProfitUsd      float64           `json:"actual_profit_usd,omitempty"`
	FailureReason        string            `json:"failure_reason,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// DedupKey identifies the opportunity for within-cycle deduplication: the
// same pair arbitraged between the same two pools is one opportunity no
// matter how many times the comparison loop visits it.
func (o Opportunity) DedupKey() string {
	a, b := o.BuyPool, o.SellPool
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s|%s", o.PairKey, a, b)
}

// Expired reports whether the opportunity's TTL has elapsed at now.
// Terminal opportunities are never considered expired again.
func (o Opportunity) Expired(now time.Time) bool {
	return !o.Status.Terminal() && now.After(o.ExpiresAt)
}

// RemainingTTL returns how long the opportunity stays actionable from now,
// clamped at zero.
func (o Opportunity) RemainingTTL(now time.Time) time.Duration {
	if d := o.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
