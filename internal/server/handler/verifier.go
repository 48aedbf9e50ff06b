package handler

import (
	"log/slog"
	"net/http"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// ChainVerifier defines the observability surface the verifier handler needs.
type ChainVerifier interface {
	Stats() domain.VerifierStats
	ResetToPrimary()
}

// VerifierHandler exposes the chain verifier's counters and failover control.
type VerifierHandler struct {
	verifier ChainVerifier
	logger   *slog.Logger
}

// NewVerifierHandler creates a VerifierHandler.
func NewVerifierHandler(verifier ChainVerifier, logger *slog.Logger) *VerifierHandler {
	return &VerifierHandler{verifier: verifier, logger: logger}
}

// GetStats returns the verifier's counters and endpoint state.
// GET /api/verifier/stats
func (h *VerifierHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.verifier.Stats())
}

// ResetToPrimary switches the verifier back to its primary RPC endpoint.
// Failback is never automatic; this endpoint is the only way to leave the
// fallback once failover has happened.
// POST /api/verifier/reset
func (h *VerifierHandler) ResetToPrimary(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: verifier reset to primary requested")
	h.verifier.ResetToPrimary()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats":  h.verifier.Stats(),
	})
}
