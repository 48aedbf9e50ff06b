package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityCols = `id, pair_key, symbols,
	buy_venue, sell_venue, buy_pool, sell_pool, buy_rate, sell_rate, trading_path,
	profit_percent, estimated_profit_usd, total_tvl_usd, priority_score,
	status, verification_attempts, verification_note,
	execution_tx, actual_profit_usd, failure_reason,
	created_at, updated_at, expires_at, verified_at, closed_at`

// Insert stores a newly discovered opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, o domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (` + opportunityCols + `)
		VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20,
			$21, $22, $23, $24, $25
		)`

	_, err := s.pool.Exec(ctx, query, opportunityArgs(o)...)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", o.ID, err)
	}
	return nil
}

// Update replaces the stored opportunity row.
func (s *OpportunityStore) Update(ctx context.Context, o domain.Opportunity) error {
	const query = `
		UPDATE opportunities SET
			pair_key              = $2,
			symbols               = $3,
			buy_venue             = $4,
			sell_venue            = $5,
			buy_pool              = $6,
			sell_pool             = $7,
			buy_rate              = $8,
			sell_rate             = $9,
			trading_path          = $10,
			profit_percent        = $11,
			estimated_profit_usd  = $12,
			total_tvl_usd         = $13,
			priority_score        = $14,
			status                = $15,
			verification_attempts = $16,
			verification_note     = $17,
			execution_tx          = $18,
			actual_profit_usd     = $19,
			failure_reason        = $20,
			created_at            = $21,
			updated_at            = $22,
			expires_at            = $23,
			verified_at           = $24,
			closed_at             = $25
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, opportunityArgs(o)...)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update opportunity %s: %w", o.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves an opportunity by its primary key.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+opportunityCols+` FROM opportunities WHERE id = $1`, id)
	o, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, domain.ErrNotFound
		}
		return domain.Opportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return o, nil
}

// ListActive returns non-terminal opportunities, highest priority first.
func (s *OpportunityStore) ListActive(ctx context.Context) ([]domain.Opportunity, error) {
	return s.list(ctx,
		`SELECT `+opportunityCols+` FROM opportunities
		 WHERE status IN ($1, $2)
		 ORDER BY priority_score DESC`,
		string(domain.StatusDiscovered), string(domain.StatusVerified))
}

// ListRecent returns the most recently created opportunities in any status.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx,
		`SELECT `+opportunityCols+` FROM opportunities
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
}

// ListTerminalBefore returns terminal opportunities closed before the cutoff,
// oldest first, for archival.
func (s *OpportunityStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.list(ctx,
		`SELECT `+opportunityCols+` FROM opportunities
		 WHERE status IN ($1, $2, $3) AND closed_at IS NOT NULL AND closed_at < $4
		 ORDER BY closed_at ASC
		 LIMIT $5`,
		string(domain.StatusExpired), string(domain.StatusExecuted), string(domain.StatusFailed),
		cutoff, limit)
}

// DeleteTerminalBefore removes terminal opportunities closed before the
// cutoff.
func (s *OpportunityStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunities
		 WHERE status IN ($1, $2, $3) AND closed_at IS NOT NULL AND closed_at < $4`,
		string(domain.StatusExpired), string(domain.StatusExecuted), string(domain.StatusFailed),
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete terminal opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus returns opportunity counts grouped by status.
func (s *OpportunityStore) CountByStatus(ctx context.Context) (map[domain.OpportunityStatus]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM opportunities GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("postgres: count opportunities by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OpportunityStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan status count: %w", err)
		}
		counts[domain.OpportunityStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count opportunities rows: %w", err)
	}
	return counts, nil
}

func (s *OpportunityStore) list(ctx context.Context, query string, args ...any) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return opps, nil
}

// opportunityArgs lays out the row values in opportunityCols order.
func opportunityArgs(o domain.Opportunity) []any {
	return []any{
		o.ID, o.PairKey, o.Symbols,
		o.BuyVenue, o.SellVenue, o.BuyPool, o.SellPool, o.BuyRate, o.SellRate, o.TradingPath,
		o.ProfitPercent, o.EstimatedProfitUsd, o.TotalTVLUsd, o.PriorityScore,
		string(o.Status), o.VerificationAttempts, o.VerificationNote,
		o.ExecutionTx, o.ActualProfitUsd, o.FailureReason,
		o.CreatedAt, o.UpdatedAt, o.ExpiresAt, o.VerifiedAt, o.ClosedAt,
	}
}

// scanOpportunity scans a single opportunity row.
func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var o domain.Opportunity
	var status string
	err := row.Scan(
		&o.ID, &o.PairKey, &o.Symbols,
		&o.BuyVenue, &o.SellVenue, &o.BuyPool, &o.SellPool, &o.BuyRate, &o.SellRate, &o.TradingPath,
		&o.ProfitPercent, &o.EstimatedProfitUsd, &o.TotalTVLUsd, &o.PriorityScore,
		&status, &o.VerificationAttempts, &o.VerificationNote,
		&o.ExecutionTx, &o.ActualProfitUsd, &o.FailureReason,
		&o.CreatedAt, &o.UpdatedAt, &o.ExpiresAt, &o.VerifiedAt, &o.ClosedAt,
	)
	if err != nil {
		return domain.Opportunity{}, err
	}
	o.Status = domain.OpportunityStatus(status)
	return o, nil
}
