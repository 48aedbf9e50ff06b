// Package lifecycle owns the opportunity state machine: discovery,
// verification marking, expiry sweep, and execution/failure recording.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// DefaultTTL bounds how long a discovered opportunity stays actionable.
const DefaultTTL = 5 * time.Minute

// Manager is the sole mutator of opportunity status. All transitions flow
// through a single critical section, so concurrent calls for the same
// opportunity serialize here rather than racing at the store.
type Manager struct {
	store  domain.OpportunityStore
	bus    domain.SignalBus
	ttl    time.Duration
	logger *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates a Manager. bus may be nil when no signal consumers are
// wired.
func NewManager(store domain.OpportunityStore, bus domain.SignalBus, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		bus:    bus,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "lifecycle")),
		now:    time.Now,
	}
}

// Discover persists a candidate as a DISCOVERED opportunity. Missing
// identity and timing fields are stamped here; a candidate whose expiry
// would not exceed its creation time is rejected.
func (m *Manager) Discover(ctx context.Context, opp domain.Opportunity) (domain.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	opp.Status = domain.StatusDiscovered
	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = now
	}
	if opp.ExpiresAt.IsZero() {
		opp.ExpiresAt = opp.CreatedAt.Add(m.ttl)
	}
	opp.UpdatedAt = now

	if !opp.ExpiresAt.After(opp.CreatedAt) {
		return domain.Opportunity{}, fmt.Errorf("lifecycle: discover %s: expiry %s not after creation %s: %w",
			opp.ID, opp.ExpiresAt, opp.CreatedAt, domain.ErrInvalidInput)
	}

	if err := m.store.Insert(ctx, opp); err != nil {
		return domain.Opportunity{}, fmt.Errorf("lifecycle: discover %s: %w", opp.ID, err)
	}

	m.logger.InfoContext(ctx, "opportunity discovered",
		slog.String("id", opp.ID),
		slog.String("pair", opp.PairKey),
		slog.Float64("profit_percent", opp.ProfitPercent),
		slog.Float64("priority", opp.PriorityScore))
	m.publish(ctx, domain.SignalDiscovered, opp)
	return opp, nil
}

// MarkVerified transitions DISCOVERED → VERIFIED, stamping verifiedAt and
// counting the attempt. Any other current status is rejected.
func (m *Manager) MarkVerified(ctx context.Context, id, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	opp, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if opp.Status.Terminal() {
		return fmt.Errorf("lifecycle: mark verified %s (%s): %w", id, opp.Status, domain.ErrTerminalStatus)
	}
	if opp.Status != domain.StatusDiscovered {
		return fmt.Errorf("lifecycle: mark verified %s (%s): %w", id, opp.Status, domain.ErrInvalidTransition)
	}

	now := m.now()
	opp.Status = domain.StatusVerified
	opp.VerifiedAt = &now
	opp.VerificationAttempts++
	opp.VerificationNote = note
	opp.UpdatedAt = now

	if err := m.store.Update(ctx, opp); err != nil {
		return fmt.Errorf("lifecycle: mark verified %s: %w", id, err)
	}

	m.logger.InfoContext(ctx, "opportunity verified",
		slog.String("id", id),
		slog.Int("attempts", opp.VerificationAttempts))
	m.publish(ctx, domain.SignalVerified, opp)
	return nil
}

// RecordVerificationFailure counts a failed verification attempt without
// changing status. Only time or execution ends an opportunity.
func (m *Manager) RecordVerificationFailure(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	opp, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if opp.Status.Terminal() {
		return fmt.Errorf("lifecycle: record verification failure %s (%s): %w", id, opp.Status, domain.ErrTerminalStatus)
	}

	opp.VerificationAttempts++
	opp.UpdatedAt = m.now()

	if err := m.store.Update(ctx, opp); err != nil {
		return fmt.Errorf("lifecycle: record verification failure %s: %w", id, err)
	}
	return nil
}

// ListActive returns the currently open (non-terminal) opportunities.
func (m *Manager) ListActive(ctx context.Context) ([]domain.Opportunity, error) {
	opps, err := m.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: list active: %w", err)
	}
	return opps, nil
}

// SweepExpired transitions every non-terminal opportunity whose expiry has
// passed to EXPIRED. Idempotent: a second sweep with no new data changes
// nothing.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("lifecycle: sweep expired: %w", err)
	}

	swept := 0
	for _, opp := range active {
		if !opp.Expired(now) {
			continue
		}
		closed := now
		opp.Status = domain.StatusExpired
		opp.ClosedAt = &closed
		opp.UpdatedAt = now
		if err := m.store.Update(ctx, opp); err != nil {
			return swept, fmt.Errorf("lifecycle: sweep expired %s: %w", opp.ID, err)
		}
		swept++
		m.publish(ctx, domain.SignalExpired, opp)
	}

	if swept > 0 {
		m.logger.InfoContext(ctx, "expired opportunities swept", slog.Int("count", swept))
	}
	return swept, nil
}

// MarkExecuted transitions any non-terminal opportunity to EXECUTED,
// recording the transaction reference and realized profit.
func (m *Manager) MarkExecuted(ctx context.Context, id, txRef string, actualProfitUsd float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	opp, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if opp.Status.Terminal() {
		return fmt.Errorf("lifecycle: mark executed %s (%s): %w", id, opp.Status, domain.ErrTerminalStatus)
	}

	now := m.now()
	opp.Status = domain.StatusExecuted
	opp.ExecutionTx = txRef
	opp.ActualProfitUsd = actualProfitUsd
	opp.ClosedAt = &now
	opp.UpdatedAt = now

	if err := m.store.Update(ctx, opp); err != nil {
		return fmt.Errorf("lifecycle: mark executed %s: %w", id, err)
	}

	m.logger.InfoContext(ctx, "opportunity executed",
		slog.String("id", id),
		slog.String("tx", txRef),
		slog.Float64("actual_profit_usd", actualProfitUsd))
	m.publish(ctx, domain.SignalExecuted, opp)
	return nil
}

// MarkFailed transitions any non-terminal opportunity to FAILED.
func (m *Manager) MarkFailed(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	opp, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if opp.Status.Terminal() {
		return fmt.Errorf("lifecycle: mark failed %s (%s): %w", id, opp.Status, domain.ErrTerminalStatus)
	}

	now := m.now()
	opp.Status = domain.StatusFailed
	opp.FailureReason = reason
	opp.ClosedAt = &now
	opp.UpdatedAt = now

	if err := m.store.Update(ctx, opp); err != nil {
		return fmt.Errorf("lifecycle: mark failed %s: %w", id, err)
	}

	m.logger.WarnContext(ctx, "opportunity failed",
		slog.String("id", id),
		slog.String("reason", reason))
	m.publish(ctx, domain.SignalFailed, opp)
	return nil
}

// TTL returns the configured opportunity lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) load(ctx context.Context, id string) (domain.Opportunity, error) {
	opp, err := m.store.GetByID(ctx, id)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("lifecycle: load %s: %w", id, err)
	}
	return opp, nil
}

// publish emits a lifecycle signal; bus errors degrade to a log line, never
// a failed transition.
func (m *Manager) publish(ctx context.Context, kind string, opp domain.Opportunity) {
	if m.bus == nil {
		return
	}
	sig := domain.Signal{
		Kind:          kind,
		OpportunityID: opp.ID,
		PairKey:       opp.PairKey,
		ProfitPercent: opp.ProfitPercent,
		PriorityScore: opp.PriorityScore,
		At:            m.now(),
	}
	if err := m.bus.Publish(ctx, sig); err != nil {
		m.logger.WarnContext(ctx, "signal publish failed",
			slog.String("kind", kind),
			slog.String("id", opp.ID),
			slog.String("error", err.Error()))
	}
}
