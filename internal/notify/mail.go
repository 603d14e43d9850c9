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

const mailEndpoint = "https://api.brevo.com/v3/smtp/email"

// MailChannel is the optional secondary channel: it delivers
// (subject, body) to a recipient list through a transactional mail HTTP
// API. Missing credentials or an empty recipient list make sends a logged
// no-op.
type MailChannel struct {
	apiKey   string
	fromAddr string
	fromName string
	client   *http.Client
	logger   *zap.Logger
}

// NewMailChannel builds the mail channel.
func NewMailChannel(apiKey, fromAddr, fromName string, logger *zap.Logger) *MailChannel {
	return &MailChannel{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type mailContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailSendRequest struct {
	Sender  mailContact   `json:"sender"`
	To      []mailContact `json:"to"`
	Subject string        `json:"subject"`
	Text    string        `json:"textContent"`
}

// Send delivers one message to every recipient in a single API call.
func (m *MailChannel) Send(ctx context.Context, subject, body string, recipients []string) error {
	if m.apiKey == "" || m.fromAddr == "" || len(recipients) == 0 {
		m.logger.Info("Mail channel not configured, skipping send")
		return nil
	}

	to := make([]mailContact, 0, len(recipients))
	for _, addr := range recipients {
		to = append(to, mailContact{Email: addr})
	}
	payload, err := json.Marshal(mailSendRequest{
		Sender:  mailContact{Email: m.fromAddr, Name: m.fromName},
		To:      to,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, mailEndpoint, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api-key", m.apiKey)

			resp, err := m.client.Do(req)
			if err != nil {
				return fmt.Errorf("post mail: %w", err)
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("mail API returned status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			m.logger.Warn("Mail send failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}
