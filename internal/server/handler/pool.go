package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// PoolReader defines the methods the pool handler requires from the store. It
// is declared locally so the handler package does not depend on the concrete
// postgres implementation.
type PoolReader interface {
	GetByAddress(ctx context.Context, address string) (domain.Pool, error)
	ListActive(ctx context.Context, minTVL float64) ([]domain.Pool, error)
	CountActiveByVenue(ctx context.Context) (map[string]int64, error)
}

// PoolHandler serves pool-related HTTP endpoints.
type PoolHandler struct {
	pools  PoolReader
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler with the given store and logger.
func NewPoolHandler(pools PoolReader, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{pools: pools, logger: logger}
}

// listPoolsResponse wraps the list endpoint output.
type listPoolsResponse struct {
	Pools []domain.Pool `json:"pools"`
	Total int           `json:"total"`
}

// ListPools returns active pools above an optional TVL floor, ordered by TVL
// descending.
// GET /api/pools?min_tvl=50000
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	minTVL := parseFloat(r, "min_tvl", 0)

	pools, err := h.pools.ListActive(r.Context(), minTVL)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list pools failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list pools")
		return
	}
	if pools == nil {
		pools = []domain.Pool{}
	}

	writeJSON(w, http.StatusOK, listPoolsResponse{Pools: pools, Total: len(pools)})
}

// GetPool returns a single pool by its on-chain address.
// GET /api/pools/{address}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing pool address")
		return
	}

	pool, err := h.pools.GetByAddress(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get pool failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get pool")
		return
	}

	writeJSON(w, http.StatusOK, pool)
}

// PoolStats returns active pool counts grouped by venue.
// GET /api/pools/stats
func (h *PoolHandler) PoolStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.pools.CountActiveByVenue(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: pool stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count pools")
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"by_venue": counts,
		"total":    total,
	})
}
