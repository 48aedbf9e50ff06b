package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

type fakeLockManager struct {
	err      error
	acquired []string
	released int
}

func (f *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired = append(f.acquired, key)
	return func() { f.released++ }, nil
}

func newTestOrchestrator(t *testing.T, locks domain.LockManager) (*Orchestrator, *fixture) {
	t.Helper()
	ray := solPool("ray-pool", domain.VenueRaydium, 158_420)
	orca := solPool("orca-pool", domain.VenueOrca, 163_000)
	chain := &fakeVerifier{results: map[string]domain.VerificationResult{
		"ray-pool":  okResult(ray),
		"orca-pool": okResult(orca),
	}}
	f := newFixture(t, &fakeSource{pools: []domain.Pool{ray, orca}}, chain)

	o := NewOrchestrator(f.scanner, f.pools, nil, locks, OrchestratorConfig{
		ScanInterval:     time.Hour,
		LockTTL:          time.Minute,
		PoolStaleAfter:   time.Hour,
		ArchiveRetention: 24 * time.Hour,
	}, testLogger)
	return o, f
}

func TestOrchestrator_RunScansUnderLock(t *testing.T) {
	locks := &fakeLockManager{}
	o, f := newTestOrchestrator(t, locks)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// The first cycle runs immediately on start.
	require.Eventually(t, func() bool {
		_, _, cycles := o.LastCycle()
		return cycles >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	stats, lastErr, cycles := o.LastCycle()
	assert.Empty(t, lastErr)
	assert.Equal(t, int64(1), cycles)
	assert.Equal(t, 1, stats.Discovered)
	assert.Equal(t, []string{"scan-cycle"}, locks.acquired)
	assert.Equal(t, 1, locks.released)
	assert.Len(t, f.opps.opps, 1)
}

func TestOrchestrator_TriggerScan(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, _, cycles := o.LastCycle()
		return cycles >= 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, o.TriggerScan())
	require.Eventually(t, func() bool {
		_, _, cycles := o.LastCycle()
		return cycles >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestOrchestrator_LockHeldSkipsCycle(t *testing.T) {
	locks := &fakeLockManager{err: domain.ErrLockHeld}
	o, f := newTestOrchestrator(t, locks)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, o.Run(ctx))

	_, _, cycles := o.LastCycle()
	assert.Zero(t, cycles, "a held lock means another replica is scanning")
	assert.Empty(t, f.opps.opps)
}

func TestOrchestrator_LockErrorRunsUnlocked(t *testing.T) {
	locks := &fakeLockManager{err: errors.New("redis: connection refused")}
	o, _ := newTestOrchestrator(t, locks)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, _, cycles := o.LastCycle()
		return cycles >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, locks.released)
}
