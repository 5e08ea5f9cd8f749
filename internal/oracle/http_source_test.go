package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPSource_FetchPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices/ARIO" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"symbol":"ARIO","usd":0.0123,"updated_at":"2026-03-01T12:00:00Z"}`)
	}))
	defer server.Close()

	src := NewHTTPSource("testfeed", server.URL)
	p, err := src.FetchPrice(context.Background(), "ARIO")
	if err != nil {
		t.Fatalf("FetchPrice: %v", err)
	}

	if p.Symbol != "ARIO" {
		t.Errorf("symbol = %s", p.Symbol)
	}
	if p.Price != 0.0123 {
		t.Errorf("price = %v", p.Price)
	}
	if p.Source != "testfeed" {
		t.Errorf("source = %s", p.Source)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !p.AsOf.Equal(want) {
		t.Errorf("asOf = %v, want %v", p.AsOf, want)
	}
}

func TestHTTPSource_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	src := NewHTTPSource("testfeed", server.URL)
	_, err := src.FetchPrice(context.Background(), "ARIO")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected rate limited error, got %v", err)
	}
}

func TestHTTPSource_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewHTTPSource("testfeed", server.URL)
	_, err := src.FetchPrice(context.Background(), "ARIO")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestHTTPSource_RejectsNonPositivePrice(t *testing.T) {
	for _, body := range []string{
		`{"symbol":"ARIO","usd":0}`,
		`{"symbol":"ARIO","usd":-1}`,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, body)
		}))

		src := NewHTTPSource("testfeed", server.URL)
		_, err := src.FetchPrice(context.Background(), "ARIO")
		server.Close()
		if err == nil {
			t.Errorf("expected error for body %s", body)
		}
	}
}

func TestHTTPSource_MissingUpdatedAtDefaultsToNow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"symbol":"ARIO","usd":0.01}`)
	}))
	defer server.Close()

	src := NewHTTPSource("testfeed", server.URL)
	before := time.Now().UTC()
	p, err := src.FetchPrice(context.Background(), "ARIO")
	if err != nil {
		t.Fatalf("FetchPrice: %v", err)
	}
	if p.AsOf.Before(before.Add(-time.Second)) || p.AsOf.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("asOf %v not near now", p.AsOf)
	}
}
