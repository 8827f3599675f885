package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"algopilot-panel/pkg/utils"
)

// WebhookChannel posts notifications as JSON to a configured URL. Deliveries
// are retried with backoff; an emergency that fails to post once should
// still reach the other end.
type WebhookChannel struct {
	url        string
	enabled    bool
	httpClient *http.Client
	retry      utils.RetryConfig
}

// NewWebhookChannel creates a webhook channel.
func NewWebhookChannel(url string, enabled bool) *WebhookChannel {
	return &WebhookChannel{
		url:     url,
		enabled: enabled && url != "",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: utils.DefaultRetryConfig(),
	}
}

// Name returns the channel name.
func (w *WebhookChannel) Name() string { return "webhook" }

// IsEnabled reports whether the channel is configured and enabled.
func (w *WebhookChannel) IsEnabled() bool { return w.enabled }

// Send posts the notification payload, retrying transient failures.
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]interface{}{
		"type":      string(n.Type),
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	return utils.Retry(ctx, w.retry, func() error {
		return w.post(ctx, body)
	})
}

func (w *WebhookChannel) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
