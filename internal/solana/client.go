// Package solana provides a minimal JSON-RPC 2.0 client for the Solana RPC
// API, covering the account reads the scanner needs.
package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// DefaultTimeout bounds a single RPC round trip.
const DefaultTimeout = 15 * time.Second

// Account is the decoded state of an on-chain account at a slot.
type Account struct {
	Data     []byte
	Owner    string
	Lamports uint64
	Slot     uint64
}

// Client is an HTTP JSON-RPC 2.0 client bound to a single RPC endpoint.
// It performs exactly one round trip per call; retry and failover policy
// belong to the caller.
type Client struct {
	endpoint   string
	commitment string
	httpClient *http.Client
	requestID  atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithCommitment sets the commitment level sent with account reads.
func WithCommitment(level string) ClientOption {
	return func(c *Client) { c.commitment = level }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the given RPC endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		commitment: "confirmed",
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the RPC endpoint URL the client talks to.
func (c *Client) Endpoint() string { return c.endpoint }

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC round trip. HTTP 429 is surfaced as
// domain.ErrRateLimited so callers can apply their own backoff.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("solana: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("solana: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solana: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("solana: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("solana: %s: %w", c.endpoint, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solana: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("solana: unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("solana: %w", rpcResp.Error)
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("solana: unmarshal result: %w", err)
		}
	}
	return nil
}

type getAccountInfoResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
}

// GetAccountInfo fetches the raw account state for a base58 address.
// Returns domain.ErrAccountNotFound when the account does not exist and
// domain.ErrRateLimited when the endpoint throttled the request.
func (c *Client) GetAccountInfo(ctx context.Context, address string) (Account, error) {
	if err := ValidateAddress(address); err != nil {
		return Account{}, err
	}

	params := []any{
		address,
		map[string]any{
			"encoding":   "base64",
			"commitment": c.commitment,
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return Account{}, err
	}
	if result.Value == nil {
		return Account{}, fmt.Errorf("solana: account %s: %w", address, domain.ErrAccountNotFound)
	}

	acct := Account{
		Owner:    result.Value.Owner,
		Lamports: result.Value.Lamports,
		Slot:     result.Context.Slot,
	}
	if len(result.Value.Data) >= 1 {
		data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
		if err != nil {
			return Account{}, fmt.Errorf("solana: account %s: decode data: %w", address, err)
		}
		acct.Data = data
	}
	return acct, nil
}

// GetSlot retrieves the current slot at the client's commitment level.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	params := []any{map[string]any{"commitment": c.commitment}}
	var result uint64
	if err := c.call(ctx, "getSlot", params, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// GetHealth reports whether the RPC node considers itself healthy.
func (c *Client) GetHealth(ctx context.Context) error {
	var result string
	if err := c.call(ctx, "getHealth", nil, &result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("solana: node unhealthy: %s", result)
	}
	return nil
}
