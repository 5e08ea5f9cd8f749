package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vilenarios/token-swapper/internal/domain"
)

var testUpgrader = websocket.Upgrader{}

// wsEndpoint converts an httptest server URL to a ws:// URL.
func wsEndpoint(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func staticSigners(addrs map[string]string) SignerResolver {
	return func(chainID string) (string, error) {
		addr, ok := addrs[chainID]
		if !ok {
			return "", &unknownChainError{chainID}
		}
		return addr, nil
	}
}

type unknownChainError struct{ chainID string }

func (e *unknownChainError) Error() string { return "unknown chain " + e.chainID }

func testRoute() *domain.RouteQuote {
	return &domain.RouteQuote{
		SourceAmount:     100000,
		QuotedDestAmount: 1000,
		RequiredSigners: []domain.SignerRequirement{
			{ChainID: "mainnet", Address: "addr-1"},
		},
		Payload: json.RawMessage(`{"hops":1}`),
	}
}

func TestWSDriver_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req executeRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read execute request: %v", err)
			return
		}
		if string(req.Route) != `{"hops":1}` {
			t.Errorf("route payload = %s", req.Route)
		}
		if req.Signers["mainnet"] != "signer-addr" {
			t.Errorf("signers = %+v", req.Signers)
		}

		events := []executeEvent{
			{Type: "ping"},
			{Type: "broadcast", HopID: "mainnet", TxRef: "tx-1"},
			{Type: "completed", HopID: "mainnet", TxRef: "tx-1", SettledAmount: 990},
			{Type: "settled", SettledAmount: 990, PrimaryRef: "tx-1"},
		}
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				t.Errorf("write event: %v", err)
				return
			}
		}
	}))
	defer server.Close()

	driver := NewWSDriver(wsEndpoint(server), nil, nil)
	signers := staticSigners(map[string]string{"mainnet": "signer-addr"})

	var broadcasts, completions []LegEvent
	result, err := driver.Execute(context.Background(), testRoute(), signers,
		func(ev LegEvent) { broadcasts = append(broadcasts, ev) },
		func(ev LegEvent) { completions = append(completions, ev) },
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.SettledDestAmount != 990 {
		t.Errorf("settledDestAmount = %v", result.SettledDestAmount)
	}
	if result.PrimaryRef != "tx-1" {
		t.Errorf("primaryRef = %s", result.PrimaryRef)
	}
	if len(broadcasts) != 1 || broadcasts[0].TxRef != "tx-1" {
		t.Errorf("broadcasts = %+v", broadcasts)
	}
	if len(completions) != 1 || completions[0].SettledAmount != 990 {
		t.Errorf("completions = %+v", completions)
	}
}

func TestWSDriver_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req executeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(executeEvent{Type: "error", Message: "insufficient liquidity"})
	}))
	defer server.Close()

	driver := NewWSDriver(wsEndpoint(server), nil, nil)
	signers := staticSigners(map[string]string{"mainnet": "signer-addr"})

	_, err := driver.Execute(context.Background(), testRoute(), signers, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "insufficient liquidity") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestWSDriver_UnresolvableSigner(t *testing.T) {
	driver := NewWSDriver("ws://127.0.0.1:0", nil, nil)
	signers := staticSigners(map[string]string{})

	_, err := driver.Execute(context.Background(), testRoute(), signers, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "mainnet") {
		t.Fatalf("expected signer resolution error before dialing, got %v", err)
	}
}

func TestWSDriver_ContextCancelUnblocksRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req executeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// Send nothing more; the client hangs in its read loop.
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	driver := NewWSDriver(wsEndpoint(server), nil, nil)
	signers := staticSigners(map[string]string{"mainnet": "signer-addr"})

	start := time.Now()
	_, err := driver.Execute(ctx, testRoute(), signers, nil, nil)
	if err == nil {
		t.Fatal("expected error after cancel")
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancel took too long to unblock the read loop")
	}
}

func TestSimulatedDriver(t *testing.T) {
	driver := NewSimulatedDriver("simnet", 0, nil)
	signers := staticSigners(map[string]string{"mainnet": "signer-addr"})

	var broadcasts, completions []LegEvent
	result, err := driver.Execute(context.Background(), testRoute(), signers,
		func(ev LegEvent) { broadcasts = append(broadcasts, ev) },
		func(ev LegEvent) { completions = append(completions, ev) },
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.SettledDestAmount != 1000 {
		t.Errorf("simulated settlement should match the quote, got %v", result.SettledDestAmount)
	}
	if len(broadcasts) != 1 || len(completions) != 1 {
		t.Fatalf("expected one synthetic leg, got %d broadcasts %d completions", len(broadcasts), len(completions))
	}
	if broadcasts[0].HopID != "simnet" {
		t.Errorf("hopId = %s", broadcasts[0].HopID)
	}
	if broadcasts[0].TxRef != result.PrimaryRef {
		t.Errorf("primary ref %s should match the emitted leg %s", result.PrimaryRef, broadcasts[0].TxRef)
	}

	// References are unique across executions.
	second, err := driver.Execute(context.Background(), testRoute(), signers, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if second.PrimaryRef == result.PrimaryRef {
		t.Error("expected a fresh reference per execution")
	}
}

func TestSimulatedDriver_SignerFailure(t *testing.T) {
	driver := NewSimulatedDriver("simnet", 0, nil)
	signers := staticSigners(map[string]string{})

	_, err := driver.Execute(context.Background(), testRoute(), signers, nil, nil)
	if err == nil {
		t.Fatal("expected signer resolution error")
	}
}
