// internal/alerting/notifier.go
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPNotifier delivers alerts as JSON over HTTP. Webhooks go to the
// per-action target; email goes through a relay endpoint that accepts
// {recipient, alert} payloads.
type HTTPNotifier struct {
	client        *http.Client
	emailEndpoint string
}

// NewHTTPNotifier creates a notifier with a bounded client.
func NewHTTPNotifier(emailEndpoint string) *HTTPNotifier {
	return &HTTPNotifier{
		client:        &http.Client{Timeout: 10 * time.Second},
		emailEndpoint: emailEndpoint,
	}
}

// SendWebhook posts the alert to the target endpoint.
func (n *HTTPNotifier) SendWebhook(ctx context.Context, endpoint string, alert *Alert) error {
	if endpoint == "" {
		return fmt.Errorf("alerting: webhook endpoint is required")
	}
	return n.post(ctx, endpoint, alert)
}

// SendEmail posts the alert to the relay for the given recipient.
func (n *HTTPNotifier) SendEmail(ctx context.Context, recipient string, alert *Alert) error {
	if n.emailEndpoint == "" {
		return fmt.Errorf("alerting: email relay not configured")
	}
	payload := struct {
		Recipient string `json:"recipient"`
		Alert     *Alert `json:"alert"`
	}{Recipient: recipient, Alert: alert}
	return n.post(ctx, n.emailEndpoint, payload)
}

func (n *HTTPNotifier) post(ctx context.Context, endpoint string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alerting: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerting: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerting: delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alerting: delivery rejected with status %d", resp.StatusCode)
	}
	return nil
}
