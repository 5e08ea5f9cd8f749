package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// WSDriverConfig configures WebSocket driver behavior.
type WSDriverConfig struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds sending the execute request.
	WriteTimeout time.Duration
	// ReadTimeout bounds waiting for each event frame. The backend sends
	// keepalive frames, so a silent stream past this window means trouble.
	ReadTimeout time.Duration
}

// DefaultWSDriverConfig returns default WebSocket driver configuration.
func DefaultWSDriverConfig() WSDriverConfig {
	return WSDriverConfig{
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      5 * time.Minute,
	}
}

// WSDriver implements Driver over a WebSocket stream. Each execution opens a
// fresh connection, submits the route, then consumes lifecycle events until
// the backend reports settlement or failure.
type WSDriver struct {
	endpoint string
	config   WSDriverConfig
	logger   *zap.Logger
}

// NewWSDriver creates a driver against the execution backend endpoint.
func NewWSDriver(endpoint string, config *WSDriverConfig, logger *zap.Logger) *WSDriver {
	cfg := DefaultWSDriverConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSDriver{endpoint: endpoint, config: cfg, logger: logger}
}

// Compile-time interface check.
var _ Driver = (*WSDriver)(nil)

type executeRequest struct {
	Route   json.RawMessage   `json:"route"`
	Signers map[string]string `json:"signers"` // chain id → signing address
}

type executeEvent struct {
	Type          string  `json:"type"` // broadcast | completed | settled | error | ping
	HopID         string  `json:"hopId,omitempty"`
	TxRef         string  `json:"txRef,omitempty"`
	SettledAmount float64 `json:"settledAmount,omitempty"`
	PrimaryRef    string  `json:"primaryRef,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// Execute submits the route and streams lifecycle events until settlement.
func (d *WSDriver) Execute(
	ctx context.Context,
	route *domain.RouteQuote,
	signers SignerResolver,
	onBroadcast func(LegEvent),
	onCompleted func(LegEvent),
) (*Result, error) {
	signerMap := make(map[string]string, len(route.RequiredSigners))
	for _, req := range route.RequiredSigners {
		addr, err := signers(req.ChainID)
		if err != nil {
			return nil, fmt.Errorf("resolve signer for chain %s: %w", req.ChainID, err)
		}
		signerMap[req.ChainID] = addr
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, d.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial execution backend: %w", err)
	}
	defer conn.Close()

	// Close the connection when ctx is cancelled so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(d.config.WriteTimeout))
	req := executeRequest{Route: route.Payload, Signers: signerMap}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("submit route: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read execution event: %w", err)
		}

		var ev executeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			d.logger.Debug("skipping malformed execution event", zap.ByteString("frame", data))
			continue
		}

		switch ev.Type {
		case "broadcast":
			if onBroadcast != nil {
				onBroadcast(LegEvent{HopID: ev.HopID, TxRef: ev.TxRef})
			}
		case "completed":
			if onCompleted != nil {
				onCompleted(LegEvent{HopID: ev.HopID, TxRef: ev.TxRef, SettledAmount: ev.SettledAmount})
			}
		case "settled":
			return &Result{SettledDestAmount: ev.SettledAmount, PrimaryRef: ev.PrimaryRef}, nil
		case "error":
			return nil, fmt.Errorf("execution backend: %s", ev.Message)
		default:
			// Keepalives and unknown event types are ignored.
		}
	}
}
