package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qajybay/offchain-arbitrage/internal/server/handler"
)

func newTestServer(apiKey string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(Config{Port: 0, APIKey: apiKey}, Handlers{
		Health:        handler.NewHealthHandler(logger),
		Pools:         handler.NewPoolHandler(nil, logger),
		Opportunities: handler.NewOpportunityHandler(nil, logger),
		Scan:          handler.NewScanHandler(nil, logger),
		Verifier:      handler.NewVerifierHandler(nil, logger),
		Archives:      handler.NewArchiveHandler(nil, logger),
	}, logger)
}

func TestHealthRoute(t *testing.T) {
	srv := newTestServer("")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer("secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer("")

	req := httptest.NewRequest(http.MethodOptions, "/api/pools", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestArchivesNotConfigured(t *testing.T) {
	srv := newTestServer("")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archives", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
