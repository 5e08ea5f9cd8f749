// Package notify delivers human-readable swap events. Delivery is best
// effort: notification failures are logged and never affect the cycle.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// Level classifies a notification.
type Level string

// Notification levels.
const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier delivers events. Implementations swallow their own errors.
type Notifier interface {
	// Notify sends one event. record may be nil for skip outcomes.
	Notify(ctx context.Context, level Level, message string, record *domain.SwapRecord)
}

// DefaultTimeout bounds a single webhook delivery.
const DefaultTimeout = 10 * time.Second

// WebhookNotifier posts events as JSON to a webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NotifierOption configures WebhookNotifier.
type NotifierOption func(*WebhookNotifier)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) NotifierOption {
	return func(n *WebhookNotifier) { n.client = client }
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, logger *zap.Logger, opts ...NotifierOption) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Compile-time interface check.
var _ Notifier = (*WebhookNotifier)(nil)

type webhookPayload struct {
	Level     Level              `json:"level"`
	Message   string             `json:"message"`
	Record    *domain.SwapRecord `json:"record,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Notify posts the event. Failures are logged, never returned.
func (n *WebhookNotifier) Notify(ctx context.Context, level Level, message string, record *domain.SwapRecord) {
	if n.url == "" {
		return
	}

	body, err := json.Marshal(webhookPayload{
		Level:     level,
		Message:   message,
		Record:    record,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		n.logger.Warn("marshal notification failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("create notification request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("deliver notification failed", zap.String("level", string(level)), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= 300 {
		n.logger.Warn("notification rejected",
			zap.String("level", string(level)),
			zap.String("status", fmt.Sprintf("%d", resp.StatusCode)))
	}
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, Level, string, *domain.SwapRecord) {}

// Compile-time interface check.
var _ Notifier = NopNotifier{}
