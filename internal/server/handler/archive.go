package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// archivePrefix is where the archiver writes opportunity batches.
const archivePrefix = "archive/opportunities/"

// BlobLister defines the read surface the archive handler needs.
type BlobLister interface {
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
}

// ArchiveHandler lists archived opportunity batches in object storage.
type ArchiveHandler struct {
	reader BlobLister // optional; when nil, endpoints return 501
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler. reader may be nil when object
// storage is not configured.
func NewArchiveHandler(reader BlobLister, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

// ListArchives returns the archived opportunity files.
// GET /api/archives
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusNotImplemented, "object storage not configured")
		return
	}

	blobs, err := h.reader.List(r.Context(), archivePrefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	if blobs == nil {
		blobs = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"archives": blobs,
		"total":    len(blobs),
	})
}
