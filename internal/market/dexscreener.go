package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
	"github.com/qajybay/offchain-arbitrage/internal/solana"
)

// DexScreenerClient is the REST client for the DexScreener aggregator API,
// which provides pool discovery and liquidity metadata across Solana DEXes.
// It implements domain.MarketSource.
type DexScreenerClient struct {
	baseURL         string
	searchPairs     []string
	minLiquidityUsd float64
	httpClient      *http.Client
	logger          *slog.Logger

	now func() time.Time
}

// Option customizes a DexScreenerClient.
type Option func(*DexScreenerClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *DexScreenerClient) { c.httpClient = hc }
}

// WithMinLiquidity sets the USD liquidity floor below which pairs are dropped.
func WithMinLiquidity(usd float64) Option {
	return func(c *DexScreenerClient) { c.minLiquidityUsd = usd }
}

// NewDexScreenerClient creates a new DexScreener client.
//
// baseURL is the API root, e.g. "https://api.dexscreener.com". searchPairs
// are the queries issued per fetch, e.g. "SOL/USDC".
func NewDexScreenerClient(baseURL string, searchPairs []string, logger *slog.Logger, opts ...Option) *DexScreenerClient {
	c := &DexScreenerClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		searchPairs: searchPairs,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("component", "dexscreener")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiPair mirrors one entry of the DexScreener search response.
type apiPair struct {
	ChainID     string   `json:"chainId"`
	DexID       string   `json:"dexId"`
	PairAddress string   `json:"pairAddress"`
	BaseToken   apiToken `json:"baseToken"`
	QuoteToken  apiToken `json:"quoteToken"`
	PriceNative string   `json:"priceNative"`
	PriceUsd    string   `json:"priceUsd"`
	Liquidity   struct {
		Usd   float64 `json:"usd"`
		Base  float64 `json:"base"`
		Quote float64 `json:"quote"`
	} `json:"liquidity"`
}

type apiToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

type searchResponse struct {
	Pairs []apiPair `json:"pairs"`
}

// FetchPoolSnapshots queries every configured search pair and returns the
// merged, deduplicated set of Solana pools on supported venues. Individual
// query failures are logged and skipped; the call fails only when no query
// succeeds.
func (c *DexScreenerClient) FetchPoolSnapshots(ctx context.Context) ([]domain.Pool, error) {
	seen := make(map[string]struct{})
	var pools []domain.Pool
	var lastErr error
	succeeded := 0

	for _, query := range c.searchPairs {
		pairs, err := c.search(ctx, query)
		if err != nil {
			lastErr = err
			c.logger.WarnContext(ctx, "search query failed",
				slog.String("query", query),
				slog.String("error", err.Error()))
			continue
		}
		succeeded++

		for i := range pairs {
			pool, ok := c.toPool(&pairs[i])
			if !ok {
				continue
			}
			if _, dup := seen[pool.Address]; dup {
				continue
			}
			seen[pool.Address] = struct{}{}
			pools = append(pools, pool)
		}
	}

	if succeeded == 0 && lastErr != nil {
		return nil, fmt.Errorf("market: fetch pool snapshots: %w", lastErr)
	}

	c.logger.InfoContext(ctx, "fetched pool snapshots",
		slog.Int("queries", succeeded),
		slog.Int("pools", len(pools)))
	return pools, nil
}

// search issues one query against the search endpoint.
func (c *DexScreenerClient) search(ctx context.Context, query string) ([]apiPair, error) {
	params := url.Values{}
	params.Set("q", query)

	path := "/latest/dex/search?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("market: search %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("market: decode search response: %w", err)
	}
	return resp.Pairs, nil
}

// toPool converts an API pair into a domain pool, filtering out anything the
// scanner cannot verify: non-Solana chains, unsupported venues, malformed
// addresses, and thin liquidity.
func (c *DexScreenerClient) toPool(p *apiPair) (domain.Pool, bool) {
	if p.ChainID != "solana" {
		return domain.Pool{}, false
	}
	venue, ok := normalizeVenue(p.DexID)
	if !ok {
		return domain.Pool{}, false
	}
	if p.Liquidity.Usd < c.minLiquidityUsd {
		return domain.Pool{}, false
	}
	if !solana.IsValidAddress(p.PairAddress) ||
		!solana.IsValidAddress(p.BaseToken.Address) ||
		!solana.IsValidAddress(p.QuoteToken.Address) {
		return domain.Pool{}, false
	}
	if p.BaseToken.Address == p.QuoteToken.Address {
		return domain.Pool{}, false
	}

	now := c.now()
	pool := domain.Pool{
		Address:   p.PairAddress,
		Venue:     venue,
		MintA:     p.BaseToken.Address,
		MintB:     p.QuoteToken.Address,
		SymbolA:   p.BaseToken.Symbol,
		SymbolB:   p.QuoteToken.Symbol,
		TVLUsd:    p.Liquidity.Usd,
		FeeRate:   domain.DefaultFeeRate(venue),
		Active:    true,
		BalanceA:  p.Liquidity.Base,
		BalanceB:  p.Liquidity.Quote,
		UpdatedAt: now,
	}
	// The aggregator quotes the base token in units of the quote token.
	if rate, err := strconv.ParseFloat(p.PriceNative, 64); err == nil && rate > 0 {
		pool.PriceA = rate
		pool.PriceB = 1
		pool.PriceUpdatedAt = now
	}
	return pool, true
}

// normalizeVenue maps aggregator dex identifiers onto the scanner's venue
// names. DexScreener suffixes some venues with the AMM variant, e.g.
// "raydium-clmm".
func normalizeVenue(dexID string) (string, bool) {
	id := strings.ToLower(dexID)
	switch {
	case strings.HasPrefix(id, domain.VenueRaydium):
		return domain.VenueRaydium, true
	case strings.HasPrefix(id, domain.VenueOrca):
		return domain.VenueOrca, true
	case strings.HasPrefix(id, domain.VenueMeteora):
		return domain.VenueMeteora, true
	default:
		return "", false
	}
}

// doGet sends an unauthenticated GET request to the aggregator.
func (c *DexScreenerClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
