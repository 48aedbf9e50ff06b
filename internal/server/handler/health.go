package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler answers liveness probes for the API.
type HealthHandler struct {
	logger  *slog.Logger
	started time.Time
}

func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		started: time.Now().UTC(),
	}
}

// HealthCheck reports that the process is up and for how long.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": now.Format(time.RFC3339),
		"uptime":    now.Sub(h.started).Round(time.Second).String(),
	})
}
