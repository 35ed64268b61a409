package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/ports"
)

const defaultAPIURL = "https://api.telegram.org"

// Notifier sends leads and summaries to a Telegram chat via bot API.
type Notifier struct {
	apiURL   string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. apiURL may be empty.
func NewNotifier(apiURL, botToken, chatID string, timeout time.Duration) *Notifier {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		apiURL:   strings.TrimRight(apiURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: timeout},
	}
}

// NotifyItem posts one lead as a Markdown message.
func (n *Notifier) NotifyItem(ctx context.Context, item domain.Item) error {
	return n.send(ctx, formatItem(item))
}

// NotifySummary posts the end-of-run counters.
func (n *Notifier) NotifySummary(ctx context.Context, summary domain.RunSummary) error {
	return n.send(ctx, formatSummary(summary))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func formatItem(item domain.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Reddit lead* r/%s (%s)\n", markdownEscaper.Replace(item.Subreddit), item.Type)
	fmt.Fprintf(&sb, "[%s](%s)\n", markdownEscaper.Replace(item.Title), item.Link)
	if item.Analysis != nil {
		if item.Analysis.Reason != "" {
			fmt.Fprintf(&sb, "\n_Why:_ %s\n", markdownEscaper.Replace(item.Analysis.Reason))
		}
		if item.Analysis.ReplyDraft != "" {
			fmt.Fprintf(&sb, "\n_Suggested reply:_\n%s\n", markdownEscaper.Replace(item.Analysis.ReplyDraft))
		}
	}
	return sb.String()
}

func formatSummary(summary domain.RunSummary) string {
	return fmt.Sprintf("*Reddit monitor run*\nScanned: %d\nRelevant: %d\nDelivered: %d",
		summary.Fetched, summary.Relevant, summary.Sent)
}
