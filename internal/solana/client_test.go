package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// testAddress is a syntactically valid base58 32-byte public key.
const testAddress = "So11111111111111111111111111111111111111112"

func TestClient_GetAccountInfo(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getAccountInfo", req.Method)

		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"context": map[string]any{"slot": 987654},
				"value": map[string]any{
					"lamports": 2039280,
					"owner":    "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
					"data":     []string{base64.StdEncoding.EncodeToString(raw), "base64"},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	acct, err := client.GetAccountInfo(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, raw, acct.Data)
	assert.Equal(t, uint64(987654), acct.Slot)
	assert.Equal(t, "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8", acct.Owner)
}

func TestClient_GetAccountInfo_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"context": map[string]any{"slot": 987654},
				"value":   nil,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.GetAccountInfo(context.Background(), testAddress)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestClient_GetAccountInfo_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.GetAccountInfo(context.Background(), testAddress)
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestClient_GetAccountInfo_InvalidAddress(t *testing.T) {
	client := NewClient("http://unused")

	_, err := client.GetAccountInfo(context.Background(), "not-base58-0OIl")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClient_GetSlot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "getSlot", req.Method)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": 123456789}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	slot, err := client.GetSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), slot)
}

func TestValidateAddress(t *testing.T) {
	assert.True(t, IsValidAddress(testAddress))
	assert.True(t, IsValidAddress(domain.MintUSDC))
	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("short"))
	assert.False(t, IsValidAddress("0x1234567890abcdef1234567890abcdef12345678"))
}
