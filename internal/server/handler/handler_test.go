package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
	"github.com/qajybay/offchain-arbitrage/internal/pipeline"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePoolReader struct {
	pools map[string]domain.Pool
	err   error
}

func (f *fakePoolReader) GetByAddress(_ context.Context, address string) (domain.Pool, error) {
	if f.err != nil {
		return domain.Pool{}, f.err
	}
	p, ok := f.pools[address]
	if !ok {
		return domain.Pool{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePoolReader) ListActive(_ context.Context, minTVL float64) ([]domain.Pool, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Pool
	for _, p := range f.pools {
		if p.TVLUsd >= minTVL {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePoolReader) CountActiveByVenue(context.Context) (map[string]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]int64)
	for _, p := range f.pools {
		out[p.Venue]++
	}
	return out, nil
}

type fakeOppReader struct {
	opps []domain.Opportunity
	err  error
}

func (f *fakeOppReader) GetByID(_ context.Context, id string) (domain.Opportunity, error) {
	for _, o := range f.opps {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Opportunity{}, domain.ErrNotFound
}

func (f *fakeOppReader) ListActive(context.Context) ([]domain.Opportunity, error) {
	return f.opps, f.err
}

func (f *fakeOppReader) ListRecent(_ context.Context, limit int) ([]domain.Opportunity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.opps) {
		return f.opps[:limit], nil
	}
	return f.opps, nil
}

func (f *fakeOppReader) CountByStatus(context.Context) (map[domain.OpportunityStatus]int64, error) {
	out := make(map[domain.OpportunityStatus]int64)
	for _, o := range f.opps {
		out[o.Status]++
	}
	return out, nil
}

func TestListPools(t *testing.T) {
	pools := &fakePoolReader{pools: map[string]domain.Pool{
		"big":   {Address: "big", Venue: domain.VenueRaydium, TVLUsd: 900_000},
		"small": {Address: "small", Venue: domain.VenueOrca, TVLUsd: 20_000},
	}}
	h := NewPoolHandler(pools, testLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/pools?min_tvl=100000", nil)
	rec := httptest.NewRecorder()
	h.ListPools(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Pools []domain.Pool `json:"pools"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "big", resp.Pools[0].Address)
}

func TestListPools_StoreError(t *testing.T) {
	h := NewPoolHandler(&fakePoolReader{err: errors.New("db down")}, testLogger)

	rec := httptest.NewRecorder()
	h.ListPools(rec, httptest.NewRequest(http.MethodGet, "/api/pools", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to list pools")
}

func TestGetPool_NotFound(t *testing.T) {
	h := NewPoolHandler(&fakePoolReader{pools: map[string]domain.Pool{}}, testLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/pools/missing", nil)
	req.SetPathValue("address", "missing")
	rec := httptest.NewRecorder()
	h.GetPool(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPoolStats(t *testing.T) {
	pools := &fakePoolReader{pools: map[string]domain.Pool{
		"a": {Address: "a", Venue: domain.VenueRaydium, TVLUsd: 1},
		"b": {Address: "b", Venue: domain.VenueRaydium, TVLUsd: 1},
		"c": {Address: "c", Venue: domain.VenueOrca, TVLUsd: 1},
	}}
	h := NewPoolHandler(pools, testLogger)

	rec := httptest.NewRecorder()
	h.PoolStats(rec, httptest.NewRequest(http.MethodGet, "/api/pools/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ByVenue map[string]int64 `json:"by_venue"`
		Total   int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, int64(2), resp.ByVenue[domain.VenueRaydium])
}

func TestListOpportunities_EmptyIsArray(t *testing.T) {
	h := NewOpportunityHandler(&fakeOppReader{}, testLogger)

	rec := httptest.NewRecorder()
	h.ListActive(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"opportunities":[]`)
}

func TestListRecent_LimitClamped(t *testing.T) {
	opps := make([]domain.Opportunity, 3)
	for i := range opps {
		opps[i] = domain.Opportunity{ID: string(rune('a' + i)), Status: domain.StatusDiscovered}
	}
	h := NewOpportunityHandler(&fakeOppReader{opps: opps}, testLogger)

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/recent?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestGetOpportunity(t *testing.T) {
	h := NewOpportunityHandler(&fakeOppReader{opps: []domain.Opportunity{
		{ID: "opp-1", Status: domain.StatusVerified},
	}}, testLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities/opp-1", nil)
	req.SetPathValue("id", "opp-1")
	rec := httptest.NewRecorder()
	h.GetOpportunity(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Opportunity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.StatusVerified, got.Status)
}

type fakeScanController struct {
	queued bool
	stats  pipeline.CycleStats
	cycles int64
}

func (f *fakeScanController) TriggerScan() bool { return f.queued }
func (f *fakeScanController) LastCycle() (pipeline.CycleStats, string, int64) {
	return f.stats, "", f.cycles
}

func TestTriggerScan(t *testing.T) {
	h := NewScanHandler(&fakeScanController{queued: true}, testLogger)

	rec := httptest.NewRecorder()
	h.TriggerScan(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"accepted"`)
}

func TestTriggerScan_AlreadyQueued(t *testing.T) {
	h := NewScanHandler(&fakeScanController{queued: false}, testLogger)

	rec := httptest.NewRecorder()
	h.TriggerScan(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "already queued")
}

func TestScanStatus(t *testing.T) {
	ctrl := &fakeScanController{
		stats:  pipeline.CycleStats{PoolsScanned: 42, Discovered: 2},
		cycles: 7,
	}
	h := NewScanHandler(ctrl, testLogger)

	rec := httptest.NewRecorder()
	h.ScanStatus(rec, httptest.NewRequest(http.MethodGet, "/api/scan/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		LastCycle pipeline.CycleStats `json:"last_cycle"`
		Cycles    int64               `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.LastCycle.PoolsScanned)
	assert.Equal(t, int64(7), resp.Cycles)
}

type fakeChainVerifier struct {
	stats  domain.VerifierStats
	resets int
}

func (f *fakeChainVerifier) Stats() domain.VerifierStats { return f.stats }
func (f *fakeChainVerifier) ResetToPrimary()             { f.resets++; f.stats.UsingFallback = false }

func TestVerifierReset(t *testing.T) {
	v := &fakeChainVerifier{stats: domain.VerifierStats{UsingFallback: true}}
	h := NewVerifierHandler(v, testLogger)

	rec := httptest.NewRecorder()
	h.ResetToPrimary(rec, httptest.NewRequest(http.MethodPost, "/api/verifier/reset", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, v.resets)
	assert.Contains(t, rec.Body.String(), `"using_fallback":false`)
}

type fakeBlobLister struct {
	blobs []domain.BlobInfo
}

func (f *fakeBlobLister) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	return f.blobs, nil
}

func TestListArchives(t *testing.T) {
	h := NewArchiveHandler(&fakeBlobLister{blobs: []domain.BlobInfo{
		{Path: "archive/opportunities/2025-01-10-001.jsonl", Size: 1024, LastModified: time.Now()},
	}}, testLogger)

	rec := httptest.NewRecorder()
	h.ListArchives(rec, httptest.NewRequest(http.MethodGet, "/api/archives", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2025-01-10-001.jsonl")
}

func TestListArchives_NotConfigured(t *testing.T) {
	h := NewArchiveHandler(nil, testLogger)

	rec := httptest.NewRecorder()
	h.ListArchives(rec, httptest.NewRequest(http.MethodGet, "/api/archives", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
