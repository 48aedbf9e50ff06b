package domain

import "time"

// FailureKind classifies why an on-chain verification attempt produced no
// usable price.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureRateLimited FailureKind = "rate_limited"
	FailureNotFound    FailureKind = "not_found"
	FailureDecode      FailureKind = "decode"
	FailureTransport   FailureKind = "transport"
)

// VerificationResult is the outcome of verifying a single pool against the
// chain. On success it carries the decoded reserves; a failed verification
// carries only the failure classification. Prices are never synthesized: a
// pool that could not be decoded simply has no result.
type VerificationResult struct {
	PoolAddress string      `json:"pool_address"`
	Venue       string      `json:"venue"`
	PriceA      float64     `json:"price_a"`
	PriceB      float64     `json:"price_b"`
	BalanceA    float64     `json:"balance_a"`
	BalanceB    float64     `json:"balance_b"`
	Slot        uint64      `json:"slot"`
	ObservedAt  time.Time   `json:"observed_at"`
	Failure     FailureKind `json:"failure,omitempty"`
}

// OK reports whether the verification produced usable data.
func (r VerificationResult) OK() bool { return r.Failure == FailureNone }

// VerifierStats is a point-in-time snapshot of the chain verifier's
// counters, exposed over the status API.
type VerifierStats struct {
	TotalCalls     int64     `json:"total_calls"`
	SuccessCalls   int64     `json:"success_calls"`
	FallbackCalls  int64     `json:"fallback_calls"`
	RateLimitHits  int64     `json:"rate_limit_hits"`
	VerifiedPools  int64     `json:"verified_pools"`
	UsingFallback  bool      `json:"using_fallback"`
	InCooldown     bool      `json:"in_cooldown"`
	WindowUsed     int       `json:"window_used"`
	WindowBudget   int       `json:"window_budget"`
	LastRateLimit  time.Time `json:"last_rate_limit,omitzero"`
	LastSuccess    time.Time `json:"last_success,omitzero"`
}
