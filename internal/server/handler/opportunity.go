package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// OpportunityReader defines the methods the opportunity handler requires.
type OpportunityReader interface {
	GetByID(ctx context.Context, id string) (domain.Opportunity, error)
	ListActive(ctx context.Context) ([]domain.Opportunity, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
	CountByStatus(ctx context.Context) (map[domain.OpportunityStatus]int64, error)
}

// OpportunityHandler serves opportunity-related HTTP endpoints.
type OpportunityHandler struct {
	opps   OpportunityReader
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps OpportunityReader, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{opps: opps, logger: logger}
}

// listOpportunitiesResponse wraps list endpoint output.
type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
}

// ListActive returns open opportunities ordered by priority score descending.
// GET /api/opportunities
func (h *OpportunityHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	opps, err := h.opps.ListActive(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list active opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps, Total: len(opps)})
}

// ListRecent returns the most recently discovered opportunities in any status.
// GET /api/opportunities/recent?limit=50
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	opps, err := h.opps.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list recent opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps, Total: len(opps)})
}

// GetOpportunity returns a single opportunity by its ID.
// GET /api/opportunities/{id}
func (h *OpportunityHandler) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing opportunity id")
		return
	}

	opp, err := h.opps.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "opportunity not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get opportunity failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get opportunity")
		return
	}

	writeJSON(w, http.StatusOK, opp)
}

// StatusCounts returns opportunity counts grouped by lifecycle status.
// GET /api/opportunities/stats
func (h *OpportunityHandler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.opps.CountByStatus(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: opportunity stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count opportunities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"by_status": counts})
}
