package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/notification-worker/internal/domain"
)

// SendRequest is the JSON body posted to the external provider.
type SendRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Content string `json:"content"`
}

// WebhookSender delivers by POSTing to a provider gateway.
// The base URL is injected from config so tests can point to a local mock.
type WebhookSender struct {
	baseURL    string
	channel    domain.Channel
	httpClient *http.Client
}

func NewWebhookSender(baseURL string, ch domain.Channel, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		baseURL: baseURL,
		channel: ch,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts {to, channel, content} and treats any 2xx status as delivered.
func (s *WebhookSender) Send(ctx context.Context, destination, content string) error {
	body, err := json.Marshal(SendRequest{
		To:      destination,
		Channel: string(s.channel),
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected provider status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookSender implements Sender
var _ Sender = (*WebhookSender)(nil)
