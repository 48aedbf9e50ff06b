package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/pipeline"
)

// ScanController defines what the scan handler needs from the orchestrator.
type ScanController interface {
	TriggerScan() bool
	LastCycle() (stats pipeline.CycleStats, lastErr string, cycles int64)
}

// ScanHandler serves scan trigger and status endpoints.
type ScanHandler struct {
	orch   ScanController
	logger *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(orch ScanController, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{orch: orch, logger: logger}
}

// TriggerScan requests an immediate scan cycle. A non-blocking trigger is
// used, so a pending trigger reports as already queued.
// POST /api/scan
func (h *ScanHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: scan trigger requested")

	queued := h.orch.TriggerScan()
	status := "accepted"
	if !queued {
		status = "already queued"
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       status,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// ScanStatus returns the most recent cycle's statistics.
// GET /api/scan/status
func (h *ScanHandler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	stats, lastErr, cycles := h.orch.LastCycle()
	writeJSON(w, http.StatusOK, map[string]any{
		"last_cycle": stats,
		"last_error": lastErr,
		"cycles":     cycles,
	})
}
