// Package notify delivers notifications and owns the per-source dedup
// state machine that decides when to deliver them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
)

// WebhookChannel posts plain-text messages to a webhook endpoint as a small
// JSON payload. An empty URL makes every send a logged no-op, which is how
// an unconfigured channel behaves.
type WebhookChannel struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookChannel builds a channel for the given endpoint.
func NewWebhookChannel(url string, logger *zap.Logger) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

// Send posts the message, retrying transient failures a few times. The
// caller treats any returned error as best-effort delivery failure.
func (w *WebhookChannel) Send(ctx context.Context, message string) error {
	if w.url == "" {
		w.logger.Info("Webhook channel not configured, skipping send")
		return nil
	}
	body, err := json.Marshal(webhookPayload{Text: message})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := w.client.Do(req)
			if err != nil {
				return fmt.Errorf("post webhook: %w", err)
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("webhook returned status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			w.logger.Warn("Webhook send failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}
