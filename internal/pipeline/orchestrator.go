package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// scanLockKey is the distributed lock guarding scan cycles across replicas.
const scanLockKey = "scan-cycle"

// OrchestratorConfig holds background scheduling parameters.
type OrchestratorConfig struct {
	// ScanInterval is the period between scan cycles.
	ScanInterval time.Duration
	// LockTTL bounds how long a replica may hold the scan lock; it should
	// exceed the scanner's cycle timeout.
	LockTTL time.Duration
	// PoolStaleAfter is the snapshot age past which pools are deactivated.
	PoolStaleAfter time.Duration
	// ArchiveRetention is how long terminal opportunities stay in the
	// primary store before moving to cold storage.
	ArchiveRetention time.Duration
}

// Orchestrator runs the scanner and its maintenance chores as long-lived
// goroutines. Scan cycles are serialized: the ticker, manual triggers, and
// other replicas (via the lock manager) all funnel through one loop.
type Orchestrator struct {
	scanner  *Scanner
	pools    domain.PoolStore
	archiver domain.Archiver    // optional
	locks    domain.LockManager // optional
	cfg      OrchestratorConfig
	logger   *slog.Logger

	trigger chan struct{}

	mu      sync.Mutex
	last    CycleStats
	lastErr string
	cycles  int64
}

// NewOrchestrator creates an Orchestrator. archiver and locks may be nil when
// object storage or Redis are not configured.
func NewOrchestrator(
	scanner *Scanner,
	pools domain.PoolStore,
	archiver domain.Archiver,
	locks domain.LockManager,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Orchestrator{
		scanner:  scanner,
		pools:    pools,
		archiver: archiver,
		locks:    locks,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "orchestrator")),
		trigger:  make(chan struct{}, 1),
	}
}

// Run starts the scan loop and maintenance chores and blocks until the
// context is cancelled or a loop fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "orchestrator starting",
		slog.Duration("scan_interval", o.cfg.ScanInterval))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.scanLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("scan loop: %w", err)
	})

	g.Go(func() error {
		err := o.maintenanceLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("maintenance loop: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiveLoop(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archive loop: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("orchestrator stopped cleanly")
	return nil
}

// TriggerScan requests an immediate scan cycle. It reports false when a
// trigger is already pending.
func (o *Orchestrator) TriggerScan() bool {
	select {
	case o.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// LastCycle returns the most recent cycle's stats, the error it ended with
// (empty when clean), and how many cycles have run.
func (o *Orchestrator) LastCycle() (CycleStats, string, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last, o.lastErr, o.cycles
}

func (o *Orchestrator) scanLoop(ctx context.Context) error {
	// First cycle immediately on start.
	o.runScan(ctx)

	ticker := time.NewTicker(o.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.runScan(ctx)
		case <-o.trigger:
			o.runScan(ctx)
		}
	}
}

// runScan executes one cycle under the distributed lock, if configured.
func (o *Orchestrator) runScan(ctx context.Context) {
	if o.locks != nil {
		unlock, err := o.locks.Acquire(ctx, scanLockKey, o.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			o.logger.InfoContext(ctx, "scan cycle skipped, another replica holds the lock")
			return
		case err != nil:
			// Redis trouble must not stall the pipeline.
			o.logger.WarnContext(ctx, "scan lock unavailable, running unlocked",
				slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}
	o.doScan(ctx)
}

func (o *Orchestrator) doScan(ctx context.Context) {
	stats, err := o.scanner.RunCycle(ctx)

	o.mu.Lock()
	o.last = stats
	o.cycles++
	o.lastErr = ""
	if err != nil {
		o.lastErr = err.Error()
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.ErrorContext(ctx, "scan cycle failed", slog.String("error", err.Error()))
	}
}

// maintenanceLoop deactivates pools whose snapshots have gone stale.
func (o *Orchestrator) maintenanceLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-o.cfg.PoolStaleAfter)
			n, err := o.pools.DeactivateStale(ctx, cutoff)
			if err != nil {
				o.logger.WarnContext(ctx, "stale pool sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				o.logger.InfoContext(ctx, "stale pools deactivated", slog.Int64("count", n))
			}
		}
	}
}

// archiveLoop moves old terminal opportunities to cold storage once a day.
func (o *Orchestrator) archiveLoop(ctx context.Context) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-o.cfg.ArchiveRetention)
			n, err := o.archiver.ArchiveOpportunities(ctx, cutoff)
			if err != nil {
				o.logger.WarnContext(ctx, "archive run failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				o.logger.InfoContext(ctx, "opportunities archived", slog.Int64("count", n))
			}
		}
	}
}
