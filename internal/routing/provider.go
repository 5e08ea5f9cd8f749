// Package routing quotes cross-chain swap routes from the routing backend.
// The returned route payload is opaque: it is handed to the execution driver
// unmodified and nothing beyond the documented quote fields is inspected.
package routing

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// ErrNoRoute is returned when the backend cannot route the requested pair.
var ErrNoRoute = errors.New("no route found")

// QuoteRequest describes the swap to route.
type QuoteRequest struct {
	SourceDenom    string  `json:"sourceDenom"`
	SourceChain    string  `json:"sourceChain"`
	DestDenom      string  `json:"destDenom"`
	DestChain      string  `json:"destChain"`
	Amount         float64 `json:"amount"` // native units of the source denom
	MaxSlippageBps int     `json:"maxSlippageBps"`
}

// Provider quotes routes for source → dest swaps.
type Provider interface {
	// QuoteRoute returns a quoted route, or ErrNoRoute when the backend has none.
	QuoteRoute(ctx context.Context, req QuoteRequest) (*domain.RouteQuote, error)
}

// DefaultTimeout bounds a single quote request.
const DefaultTimeout = 20 * time.Second

// HTTPProvider implements Provider against the routing backend's REST API.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// ProviderOption configures HTTPProvider.
type ProviderOption func(*HTTPProvider)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *HTTPProvider) { p.client = client }
}

// NewHTTPProvider creates a route provider against baseURL.
func NewHTTPProvider(baseURL string, opts ...ProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compile-time interface check.
var _ Provider = (*HTTPProvider)(nil)

type quoteResponse struct {
	QuotedDestAmount float64                    `json:"quotedDestAmount"`
	FeeUSD           float64                    `json:"feeUsd"`
	RequiredSigners  []domain.SignerRequirement `json:"requiredSigners"`
	Route            json.RawMessage            `json:"route"`
}

// QuoteRoute requests a route from the backend.
func (p *HTTPProvider) QuoteRoute(ctx context.Context, req QuoteRequest) (*domain.RouteQuote, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/route", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request route: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, ErrNoRoute
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("routing backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}
	if len(qr.Route) == 0 || string(qr.Route) == "null" || qr.QuotedDestAmount <= 0 {
		return nil, ErrNoRoute
	}

	for _, signer := range qr.RequiredSigners {
		if err := ValidateAddress(signer.Address); err != nil {
			return nil, fmt.Errorf("route signer for chain %s: %w", signer.ChainID, err)
		}
	}

	return &domain.RouteQuote{
		SourceAmount:     req.Amount,
		QuotedDestAmount: qr.QuotedDestAmount,
		FeeUSD:           qr.FeeUSD,
		RequiredSigners:  qr.RequiredSigners,
		Payload:          qr.Route,
	}, nil
}

// ValidateAddress checks that a signer address has a recognizable shape:
// 0x-prefixed 20-byte hex, or base58-encoded 32 bytes.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty signer address")
	}
	if strings.HasPrefix(addr, "0x") {
		raw, err := hex.DecodeString(addr[2:])
		if err != nil {
			return fmt.Errorf("malformed hex address %q", addr)
		}
		if len(raw) != 20 {
			return fmt.Errorf("hex address %q is %d bytes, want 20", addr, len(raw))
		}
		return nil
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("malformed base58 address %q", addr)
	}
	if len(raw) != 32 {
		return fmt.Errorf("base58 address %q is %d bytes, want 32", addr, len(raw))
	}
	return nil
}
