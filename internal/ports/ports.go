package ports

import (
	"context"
	"time"

	"RedditMonitor/internal/domain"
)

// ItemSource pulls new, not yet processed content from upstream feeds.
type ItemSource interface {
	FetchAll(ctx context.Context) []domain.Item
}

// Ledger remembers which item ids were already handled.
type Ledger interface {
	// Load returns a snapshot of the known ids. It never fails; unreadable
	// state is treated as empty.
	Load(ctx context.Context) map[string]struct{}
	// Record appends ids that are not yet known, keeping insertion order.
	Record(ids ...string)
	// Save persists the current state, evicting the oldest ids past the bound.
	Save(ctx context.Context) error
	Len() int
}

// PreFilter is the cheap keyword gate applied before any LLM call.
type PreFilter interface {
	Filter(items []domain.Item) []domain.Item
	Prioritize(items []domain.Item) []domain.Item
}

// Classifier judges a batch of items in a single model call.
type Classifier interface {
	ClassifyBatch(ctx context.Context, items []domain.Item) ([]domain.ClassificationResult, error)
}

// Completer is a text-in/text-out LLM backend.
type Completer interface {
	Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error)
}

// Notifier delivers relevant items and run summaries to a chat channel.
type Notifier interface {
	NotifyItem(ctx context.Context, item domain.Item) error
	NotifySummary(ctx context.Context, summary domain.RunSummary) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
