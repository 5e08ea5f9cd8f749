package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// DefaultHTTPTimeout bounds a single price request.
const DefaultHTTPTimeout = 10 * time.Second

// HTTPSource fetches prices from a JSON REST endpoint of the form
// GET {baseURL}/prices/{symbol} returning {"symbol": "...", "usd": 0.0123,
// "updated_at": "RFC3339"}.
type HTTPSource struct {
	name    string
	baseURL string
	client  *http.Client
}

// HTTPSourceOption configures HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) { s.client = client }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) HTTPSourceOption {
	return func(s *HTTPSource) { s.client.Timeout = d }
}

// NewHTTPSource creates a price source against baseURL.
func NewHTTPSource(name, baseURL string, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ Source = (*HTTPSource)(nil)

// Name identifies the feed.
func (s *HTTPSource) Name() string {
	return s.name
}

type priceResponse struct {
	Symbol    string  `json:"symbol"`
	USD       float64 `json:"usd"`
	UpdatedAt string  `json:"updated_at"`
}

// FetchPrice returns the current USD price for symbol.
func (s *HTTPSource) FetchPrice(ctx context.Context, symbol string) (*domain.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/prices/%s", s.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("price source %s rate limited", s.name)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("price source %s returned %d: %s", s.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}
	if pr.USD <= 0 {
		return nil, fmt.Errorf("price source %s returned non-positive price %v for %s", s.name, pr.USD, symbol)
	}

	asOf := time.Now().UTC()
	if pr.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, pr.UpdatedAt); err == nil {
			asOf = t.UTC()
		}
	}

	return &domain.PricePoint{
		Symbol: strings.ToUpper(symbol),
		Price:  pr.USD,
		AsOf:   asOf,
		Source: s.name,
	}, nil
}
