// Package feishu delivers interactive cards to a Feishu/Lark group bot webhook.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/ports"
)

// Notifier posts cards to a group bot webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier binds the webhook; timeout bounds each POST.
func NewNotifier(webhookURL string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// NotifyItem sends one lead card.
func (n *Notifier) NotifyItem(ctx context.Context, item domain.Item) error {
	return n.post(ctx, itemCard(item))
}

// NotifySummary sends the end-of-run card.
func (n *Notifier) NotifySummary(ctx context.Context, summary domain.RunSummary) error {
	return n.post(ctx, summaryCard(summary))
}

type webhookResponse struct {
	Code       *int   `json:"code"`
	Msg        string `json:"msg"`
	StatusCode *int   `json:"StatusCode"`
}

func (n *Notifier) post(ctx context.Context, msg message) error {
	if n.webhookURL == "" || n.client == nil {
		return fmt.Errorf("feishu notifier misconfigured")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var decoded webhookResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("feishu error %s: unreadable body", resp.Status)
	}
	if (decoded.Code != nil && *decoded.Code == 0) || (decoded.StatusCode != nil && *decoded.StatusCode == 0) {
		return nil
	}
	return fmt.Errorf("feishu rejected card (%s): %s", resp.Status, bytes.TrimSpace(raw))
}
