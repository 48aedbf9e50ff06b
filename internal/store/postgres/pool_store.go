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

// PoolStore implements domain.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given connection pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Upsert inserts or refreshes a pool snapshot. Verified price columns are
// deliberately not part of the conflict update: a snapshot refresh must not
// clobber on-chain observations.
func (s *PoolStore) Upsert(ctx context.Context, p domain.Pool) error {
	if err := p.Validate(); err != nil {
		return err
	}

	const query = `
		INSERT INTO pools (
			address, venue, mint_a, mint_b, symbol_a, symbol_b,
			tvl_usd, fee_rate, active,
			price_a, price_b, balance_a, balance_b, price_updated_at,
			updated_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13, $14,
			NOW(), NOW()
		)
		ON CONFLICT (address) DO UPDATE SET
			venue      = EXCLUDED.venue,
			mint_a     = EXCLUDED.mint_a,
			mint_b     = EXCLUDED.mint_b,
			symbol_a   = EXCLUDED.symbol_a,
			symbol_b   = EXCLUDED.symbol_b,
			tvl_usd    = EXCLUDED.tvl_usd,
			fee_rate   = EXCLUDED.fee_rate,
			active     = EXCLUDED.active,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.Address, p.Venue, p.MintA, p.MintB, p.SymbolA, p.SymbolB,
		p.TVLUsd, p.FeeRate, p.Active,
		p.PriceA, p.PriceB, p.BalanceA, p.BalanceB, nullTime(p.PriceUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert pool %s: %w", p.Address, err)
	}
	return nil
}

const poolCols = `address, venue, mint_a, mint_b, symbol_a, symbol_b,
	tvl_usd, fee_rate, active,
	price_a, price_b, balance_a, balance_b, price_updated_at,
	updated_at, created_at`

// scanPool scans a single pool row.
func scanPool(row pgx.Row) (domain.Pool, error) {
	var p domain.Pool
	var priceUpdatedAt *time.Time
	err := row.Scan(
		&p.Address, &p.Venue, &p.MintA, &p.MintB, &p.SymbolA, &p.SymbolB,
		&p.TVLUsd, &p.FeeRate, &p.Active,
		&p.PriceA, &p.PriceB, &p.BalanceA, &p.BalanceB, &priceUpdatedAt,
		&p.UpdatedAt, &p.CreatedAt,
	)
	if err != nil {
		return domain.Pool{}, err
	}
	if priceUpdatedAt != nil {
		p.PriceUpdatedAt = *priceUpdatedAt
	}
	return p, nil
}

// GetByAddress retrieves a pool by its on-chain address.
func (s *PoolStore) GetByAddress(ctx context.Context, address string) (domain.Pool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+poolCols+` FROM pools WHERE address = $1`, address)
	p, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pool{}, domain.ErrNotFound
		}
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", address, err)
	}
	return p, nil
}

// ListActive returns active pools with TVL at or above minTVL, largest first.
func (s *PoolStore) ListActive(ctx context.Context, minTVL float64) ([]domain.Pool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+poolCols+` FROM pools
		 WHERE active AND tvl_usd >= $1
		 ORDER BY tvl_usd DESC`, minTVL)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active pools: %w", err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan active pool: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active pools rows: %w", err)
	}
	return pools, nil
}

// UpdatePrices records a verified on-chain price observation for the pool.
func (s *PoolStore) UpdatePrices(ctx context.Context, address string, res domain.VerificationResult) error {
	const query = `
		UPDATE pools SET
			price_a          = $2,
			price_b          = $3,
			balance_a        = $4,
			balance_b        = $5,
			price_updated_at = $6,
			updated_at       = NOW()
		WHERE address = $1`

	tag, err := s.pool.Exec(ctx, query,
		address, res.PriceA, res.PriceB, res.BalanceA, res.BalanceB, res.ObservedAt)
	if err != nil {
		return fmt.Errorf("postgres: update pool prices %s: %w", address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update pool prices %s: %w", address, domain.ErrNotFound)
	}
	return nil
}

// DeactivateStale marks pools whose snapshot has not been refreshed since
// cutoff as inactive.
func (s *PoolStore) DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pools SET active = FALSE, updated_at = NOW()
		 WHERE active AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: deactivate stale pools: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountActiveByVenue returns the number of active pools per venue.
func (s *PoolStore) CountActiveByVenue(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT venue, COUNT(*) FROM pools WHERE active GROUP BY venue`)
	if err != nil {
		return nil, fmt.Errorf("postgres: count pools by venue: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var venue string
		var n int64
		if err := rows.Scan(&venue, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan venue count: %w", err)
		}
		counts[venue] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count pools by venue rows: %w", err)
	}
	return counts, nil
}

// nullTime maps a zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
