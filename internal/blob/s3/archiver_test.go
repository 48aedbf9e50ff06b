package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

type capturedObject struct {
	path        string
	contentType string
	body        []byte
	multipart   bool
}

type fakeWriter struct {
	objects []capturedObject
	fail    bool
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if w.fail {
		return fmt.Errorf("upload refused")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects = append(w.objects, capturedObject{path: path, contentType: contentType, body: body})
	return nil
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	if w.fail {
		return fmt.Errorf("upload refused")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects = append(w.objects, capturedObject{path: path, body: body, multipart: true})
	return nil
}

// fakeTerminalStore implements the two OpportunityStore methods the archiver
// exercises; the rest are unused.
type fakeTerminalStore struct {
	terminal []domain.Opportunity
}

func (s *fakeTerminalStore) ListTerminalBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for _, o := range s.terminal {
		if o.ClosedAt != nil && o.ClosedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTerminalStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []domain.Opportunity
	var deleted int64
	for _, o := range s.terminal {
		if o.ClosedAt != nil && o.ClosedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	s.terminal = kept
	return deleted, nil
}

func (s *fakeTerminalStore) Insert(context.Context, domain.Opportunity) error { return nil }
func (s *fakeTerminalStore) Update(context.Context, domain.Opportunity) error { return nil }
func (s *fakeTerminalStore) GetByID(context.Context, string) (domain.Opportunity, error) {
	return domain.Opportunity{}, domain.ErrNotFound
}
func (s *fakeTerminalStore) ListActive(context.Context) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *fakeTerminalStore) ListRecent(context.Context, int) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *fakeTerminalStore) CountByStatus(context.Context) (map[domain.OpportunityStatus]int64, error) {
	return nil, nil
}

func terminalOpp(id string, closedAt time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID:       id,
		PairKey:  "mintA-mintB",
		Status:   domain.StatusExpired,
		ClosedAt: &closedAt,
	}
}

func TestArchiveOpportunities(t *testing.T) {
	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeTerminalStore{terminal: []domain.Opportunity{
		terminalOpp("old-1", base.Add(-48*time.Hour)),
		terminalOpp("old-2", base.Add(-24*time.Hour)),
		terminalOpp("fresh", base.Add(-time.Minute)),
	}}
	writer := &fakeWriter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cutoff := base.Add(-12 * time.Hour)
	n, err := NewArchiver(writer, store, logger).ArchiveOpportunities(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, writer.objects, 1)
	obj := writer.objects[0]
	assert.Equal(t, "archive/opportunities/2025-01-10-001.jsonl", obj.path)
	assert.Equal(t, "application/x-ndjson", obj.contentType)

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(obj.body))
	for scanner.Scan() {
		var o domain.Opportunity
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &o))
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"old-1", "old-2"}, ids)

	// Archived rows are gone, the fresh one stays.
	require.Len(t, store.terminal, 1)
	assert.Equal(t, "fresh", store.terminal[0].ID)
}

func TestArchiveOpportunities_NothingToArchive(t *testing.T) {
	store := &fakeTerminalStore{}
	writer := &fakeWriter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	n, err := NewArchiver(writer, store, logger).ArchiveOpportunities(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.objects)
}

func TestArchiveOpportunities_UploadFailureKeepsRows(t *testing.T) {
	closed := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)
	store := &fakeTerminalStore{terminal: []domain.Opportunity{terminalOpp("old-1", closed)}}
	writer := &fakeWriter{fail: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewArchiver(writer, store, logger).ArchiveOpportunities(context.Background(), closed.Add(time.Hour))
	require.Error(t, err)
	assert.Len(t, store.terminal, 1, "rows must survive a failed upload")
}
