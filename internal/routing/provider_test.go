package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

func validBase58Addr() string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return base58.Encode(raw)
}

func TestQuoteRoute(t *testing.T) {
	var captured QuoteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/route" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprintf(w, `{
			"quotedDestAmount": 995.5,
			"feeUsd": 2.25,
			"requiredSigners": [
				{"chainId": "mainnet", "address": %q},
				{"chainId": "base", "address": "0x00112233445566778899aabbccddeeff00112233"}
			],
			"route": {"hops": 2}
		}`, validBase58Addr())
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL)
	quote, err := provider.QuoteRoute(context.Background(), QuoteRequest{
		SourceDenom:    "ARIO",
		SourceChain:    "mainnet",
		DestDenom:      "USDC",
		DestChain:      "base",
		Amount:         100000,
		MaxSlippageBps: 100,
	})
	if err != nil {
		t.Fatalf("QuoteRoute: %v", err)
	}

	if captured.SourceDenom != "ARIO" || captured.Amount != 100000 {
		t.Errorf("request not forwarded: %+v", captured)
	}
	if quote.SourceAmount != 100000 {
		t.Errorf("sourceAmount = %v", quote.SourceAmount)
	}
	if quote.QuotedDestAmount != 995.5 {
		t.Errorf("quotedDestAmount = %v", quote.QuotedDestAmount)
	}
	if quote.FeeUSD != 2.25 {
		t.Errorf("feeUsd = %v", quote.FeeUSD)
	}
	if len(quote.RequiredSigners) != 2 {
		t.Errorf("requiredSigners = %+v", quote.RequiredSigners)
	}
	if string(quote.Payload) == "" || !strings.Contains(string(quote.Payload), "hops") {
		t.Errorf("payload not preserved: %s", quote.Payload)
	}
}

func TestQuoteRoute_NoRoute(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"backend 404", http.StatusNotFound, `{"error":"no route"}`, ErrNoRoute},
		{"null route", http.StatusOK, `{"quotedDestAmount": 100, "route": null}`, ErrNoRoute},
		{"missing route", http.StatusOK, `{"quotedDestAmount": 100}`, ErrNoRoute},
		{"zero dest amount", http.StatusOK, `{"quotedDestAmount": 0, "route": {"hops":1}}`, ErrNoRoute},
		{"negative dest amount", http.StatusOK, `{"quotedDestAmount": -5, "route": {"hops":1}}`, ErrNoRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			provider := NewHTTPProvider(server.URL)
			_, err := provider.QuoteRoute(context.Background(), QuoteRequest{Amount: 100})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuoteRoute_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL)
	_, err := provider.QuoteRoute(context.Background(), QuoteRequest{Amount: 100})
	if err == nil || errors.Is(err, ErrNoRoute) {
		t.Fatalf("a 500 is not a missing route: %v", err)
	}
}

func TestQuoteRoute_RejectsBadSigner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"quotedDestAmount": 100,
			"requiredSigners": [{"chainId": "mainnet", "address": "not-an-address!"}],
			"route": {"hops": 1}
		}`)
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL)
	_, err := provider.QuoteRoute(context.Background(), QuoteRequest{Amount: 100})
	if err == nil {
		t.Fatal("expected signer validation error")
	}
	if !strings.Contains(err.Error(), "mainnet") {
		t.Errorf("error should name the chain: %v", err)
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid hex", "0x00112233445566778899aabbccddeeff00112233", false},
		{"valid base58", validBase58Addr(), false},
		{"empty", "", true},
		{"hex wrong length", "0x0011223344", true},
		{"hex bad chars", "0x00112233445566778899aabbccddeeff0011223z", true},
		{"base58 wrong length", base58.Encode([]byte{1, 2, 3}), true},
		{"base58 bad chars", "0OIl+/=", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}
