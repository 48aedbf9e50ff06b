package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each verified
// pool observation is stored at key "arb:price:{address}" with one field per
// value and a TTL, so stale observations expire instead of lingering.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. Entries
// expire after ttl.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(address string) string {
	return "arb:price:" + address
}

// SetPoolPrices stores a verified price observation for the pool.
func (pc *PriceCache) SetPoolPrices(ctx context.Context, res domain.VerificationResult) error {
	key := priceKey(res.PoolAddress)
	fields := map[string]interface{}{
		"venue":     res.Venue,
		"price_a":   strconv.FormatFloat(res.PriceA, 'f', -1, 64),
		"price_b":   strconv.FormatFloat(res.PriceB, 'f', -1, 64),
		"balance_a": strconv.FormatFloat(res.BalanceA, 'f', -1, 64),
		"balance_b": strconv.FormatFloat(res.BalanceB, 'f', -1, 64),
		"slot":      strconv.FormatUint(res.Slot, 10),
		"ts":        strconv.FormatInt(res.ObservedAt.UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, pc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set pool prices %s: %w", res.PoolAddress, err)
	}
	return nil
}

// GetPoolPrices retrieves the cached observation for a pool. It returns
// domain.ErrNotFound when the key is missing or already expired.
func (pc *PriceCache) GetPoolPrices(ctx context.Context, address string) (domain.VerificationResult, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(address)).Result()
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("redis: get pool prices %s: %w", address, err)
	}
	if len(vals) == 0 {
		return domain.VerificationResult{}, domain.ErrNotFound
	}

	res := domain.VerificationResult{
		PoolAddress: address,
		Venue:       vals["venue"],
	}
	if res.PriceA, err = strconv.ParseFloat(vals["price_a"], 64); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("redis: parse price_a %s: %w", address, err)
	}
	if res.PriceB, err = strconv.ParseFloat(vals["price_b"], 64); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("redis: parse price_b %s: %w", address, err)
	}
	if res.BalanceA, err = strconv.ParseFloat(vals["balance_a"], 64); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("redis: parse balance_a %s: %w", address, err)
	}
	if res.BalanceB, err = strconv.ParseFloat(vals["balance_b"], 64); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("redis: parse balance_b %s: %w", address, err)
	}
	if res.Slot, err = strconv.ParseUint(vals["slot"], 10, 64); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("redis: parse slot %s: %w", address, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("redis: parse ts %s: %w", address, err)
	}
	res.ObservedAt = time.Unix(0, tsNano)

	return res, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
