// Package console provides a Notifier that only logs, used for dry runs.
package console

import (
	"context"
	"log/slog"

	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/ports"
)

// Notifier writes leads and summaries to the logger instead of a chat.
type Notifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) NotifyItem(_ context.Context, item domain.Item) error {
	attrs := []any{
		"id", item.ID,
		"type", item.Type,
		"subreddit", item.Subreddit,
		"title", item.Title,
		"link", item.Link,
	}
	if item.Analysis != nil {
		attrs = append(attrs, "reason", item.Analysis.Reason, "reply_draft", item.Analysis.ReplyDraft)
	}
	n.logger.Info("relevant item", attrs...)
	return nil
}

func (n *Notifier) NotifySummary(_ context.Context, summary domain.RunSummary) error {
	n.logger.Info("run summary",
		"run_id", summary.RunID,
		"fetched", summary.Fetched,
		"relevant", summary.Relevant,
		"sent", summary.Sent,
	)
	return nil
}
