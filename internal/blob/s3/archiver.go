package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// archiveBatchSize caps how many opportunities go into one archive part.
const archiveBatchSize = 1000

// Archiver implements domain.Archiver. It pages terminal opportunities out
// of the primary store, serializes each page to JSONL, uploads it to object
// storage, and only then deletes the archived rows.
type Archiver struct {
	writer domain.BlobWriter
	opps   domain.OpportunityStore
	logger *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, opps domain.OpportunityStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		opps:   opps,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOpportunities uploads terminal opportunities closed before the
// cutoff to archive/opportunities/ and removes them from the store. Each page
// is deleted only after its upload succeeded, so a failed run leaves the
// remaining rows in place for the next attempt.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for part := 1; ; part++ {
		page, err := a.opps.ListTerminalBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive opportunities query: %w", err)
		}
		if len(page) == 0 {
			break
		}

		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		for i := range page {
			if err := enc.Encode(page[i]); err != nil {
				return total, fmt.Errorf("s3blob: archive opportunities marshal %s: %w", page[i].ID, err)
			}
		}

		path := archivePath(before, part)
		if err := a.upload(ctx, path, &buf); err != nil {
			return total, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
		}

		// Pages come back oldest first, so deleting up to the last close
		// time removes exactly the rows just uploaded.
		pageCutoff := before
		last := page[len(page)-1]
		if last.ClosedAt != nil && last.ClosedAt.Add(time.Nanosecond).Before(before) {
			pageCutoff = last.ClosedAt.Add(time.Nanosecond)
		}
		deleted, err := a.opps.DeleteTerminalBefore(ctx, pageCutoff)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive opportunities delete: %w", err)
		}

		total += int64(len(page))
		a.logger.InfoContext(ctx, "archived opportunity page",
			slog.String("path", path),
			slog.Int("records", len(page)),
			slog.Int64("deleted", deleted))

		if len(page) < archiveBatchSize {
			break
		}
	}
	return total, nil
}

// upload picks single-shot or multipart depending on payload size.
func (a *Archiver) upload(ctx context.Context, path string, buf *bytes.Buffer) error {
	if int64(buf.Len()) >= minPartSize {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf.Bytes()), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson")
}

// archivePath builds the object key for one archive part, partitioned by the
// cutoff date:
//
//	archive/opportunities/2025-01-31-001.jsonl
func archivePath(before time.Time, part int) string {
	return fmt.Sprintf("archive/opportunities/%s-%03d.jsonl", before.Format("2006-01-02"), part)
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
