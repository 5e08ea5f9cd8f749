// Package wallet reads spendable balances from the wallet service.
// Key management and signing stay on the wallet side; this package only asks
// what is spendable.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// Reader reports the current spendable balance of one denomination.
type Reader interface {
	// GetBalance returns the balance for accountRef in denom, or nil when the
	// account holds none of it.
	GetBalance(ctx context.Context, accountRef, denom string) (*domain.Balance, error)
}

// Default configuration values.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
)

// RPCReader implements Reader over HTTP JSON-RPC 2.0.
type RPCReader struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	requestID  atomic.Uint64
}

// ReaderOption configures RPCReader.
type ReaderOption func(*RPCReader)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ReaderOption {
	return func(r *RPCReader) { r.client = client }
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ReaderOption {
	return func(r *RPCReader) { r.maxRetries = n }
}

// WithRetryDelay sets the delay between retries.
func WithRetryDelay(d time.Duration) ReaderOption {
	return func(r *RPCReader) { r.retryDelay = d }
}

// NewRPCReader creates a balance reader against a JSON-RPC endpoint.
func NewRPCReader(endpoint string, opts ...ReaderOption) *RPCReader {
	r := &RPCReader{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compile-time interface check.
var _ Reader = (*RPCReader)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

type balanceResult struct {
	Amount float64 `json:"amount"`
	Denom  string  `json:"denom"`
}

// GetBalance returns the balance for accountRef in denom.
func (r *RPCReader) GetBalance(ctx context.Context, accountRef, denom string) (*domain.Balance, error) {
	var result *balanceResult
	if err := r.call(ctx, "getBalance", []interface{}{accountRef, denom}, &result); err != nil {
		return nil, fmt.Errorf("get balance for %s/%s: %w", accountRef, denom, err)
	}
	if result == nil {
		// Wallet reports no holdings for this denom.
		return &domain.Balance{Amount: 0, Denom: denom}, nil
	}
	return &domain.Balance{Amount: result.Amount, Denom: result.Denom}, nil
}

// call performs a JSON-RPC call with simple fixed-delay retries.
func (r *RPCReader) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      r.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}

		lastErr = r.doCall(ctx, body, result)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (r *RPCReader) doCall(ctx context.Context, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
