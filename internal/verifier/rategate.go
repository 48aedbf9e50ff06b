// Package verifier confirms candidate pools against authoritative chain
// state under strict request-rate limits, with primary/fallback endpoint
// failover.
package verifier

import (
	"sync"
	"time"
)

// RateGate default limits. The budget sits deliberately below the public
// mainnet RPC hard limit of 40 requests per 10 seconds.
const (
	DefaultRateWindow = 10 * time.Second
	DefaultRateBudget = 35
)

// RateGate is a sliding-window admission gate for outbound RPC calls. It
// never blocks: TryAcquire either records a request and admits it, or
// refuses without side effects.
type RateGate struct {
	mu     sync.Mutex
	window time.Duration
	budget int
	stamps []time.Time

	now func() time.Time
}

// NewRateGate creates a gate admitting at most budget acquisitions in any
// trailing window. Non-positive arguments fall back to the defaults.
func NewRateGate(budget int, window time.Duration) *RateGate {
	if budget <= 0 {
		budget = DefaultRateBudget
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateGate{
		window: window,
		budget: budget,
		stamps: make([]time.Time, 0, budget),
		now:    time.Now,
	}
}

// TryAcquire evicts timestamps older than the window and, if the budget is
// not exhausted, records the call and returns true. Returns false without
// recording anything otherwise.
func (g *RateGate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)

	if len(g.stamps) >= g.budget {
		return false
	}
	g.stamps = append(g.stamps, now)
	return true
}

// Used returns how many acquisitions are currently counted in the window.
func (g *RateGate) Used() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evict(g.now())
	return len(g.stamps)
}

// Budget returns the configured window budget.
func (g *RateGate) Budget() int { return g.budget }

// evict drops timestamps that have left the window. Caller holds mu.
func (g *RateGate) evict(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.stamps) && !g.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.stamps = append(g.stamps[:0], g.stamps[i:]...)
	}
}
