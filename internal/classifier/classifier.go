// Package classifier asks a language model which items in a batch are worth a reply.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"RedditMonitor/internal/config"
	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/infrastructure/llm"
	"RedditMonitor/internal/ports"
)

const (
	defaultTemperature = 0.3
	baseOutputTokens   = 256
	tokensPerItem      = 200
	maxOutputTokens    = 8192
	batchContentChars  = 500
	singleContentChars = 2000
)

// Options tunes generation and throttling behaviour. A nil Temperature means
// the default; MaxContentChars only lowers the per-item batch budget.
type Options struct {
	Temperature     *float64
	MaxContentChars int
	ThrottleWait    time.Duration
}

// OptionsFromConfig picks the classifier settings out of the LLM config.
func OptionsFromConfig(cfg config.LLMConfig) Options {
	temperature := cfg.Temperature
	return Options{
		Temperature:     &temperature,
		MaxContentChars: cfg.MaxContentChars,
		ThrottleWait:    cfg.ThrottleWait,
	}
}

// BatchClassifier implements ports.Classifier with one completion per batch.
type BatchClassifier struct {
	completer ports.Completer
	product   config.ProductConfig
	opts      Options
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ ports.Classifier = (*BatchClassifier)(nil)

// New wires a completer with the product description used in prompts.
func New(completer ports.Completer, product config.ProductConfig, opts Options, log *slog.Logger) *BatchClassifier {
	if opts.Temperature == nil || *opts.Temperature < 0 {
		temperature := defaultTemperature
		opts.Temperature = &temperature
	}
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = batchContentChars
	}
	opts.MaxContentChars = min(opts.MaxContentChars, batchContentChars)
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &BatchClassifier{
		completer: completer,
		product:   product,
		opts:      opts,
		logger:    log,
		sleep:     sleepContext,
	}
}

// GenerationParams sizes the output budget to the batch length.
func (c *BatchClassifier) GenerationParams(n int) domain.GenerationParams {
	tokens := baseOutputTokens + tokensPerItem*n
	if tokens > maxOutputTokens {
		tokens = maxOutputTokens
	}
	return domain.GenerationParams{Temperature: *c.opts.Temperature, MaxOutputTokens: tokens}
}

// ClassifyBatch returns results whose indices are valid positions in items.
// A non-nil error means the provider call failed, including after one
// throttling retry. An unparseable reply yields no results and no error.
func (c *BatchClassifier) ClassifyBatch(ctx context.Context, items []domain.Item) ([]domain.ClassificationResult, error) {
	return c.classify(ctx, items, c.opts.MaxContentChars)
}

// ClassifyItem classifies a single item as a batch of one with a larger content budget.
func (c *BatchClassifier) ClassifyItem(ctx context.Context, item domain.Item) (*domain.Analysis, bool) {
	results, err := c.classify(ctx, []domain.Item{item}, singleContentChars)
	if err != nil {
		c.logger.Warn("classify item failed", "id", item.ID, "error", err)
		return nil, false
	}
	for _, r := range results {
		if r.Index == 0 {
			return &domain.Analysis{IsRelevant: r.IsRelevant, Reason: r.Reason, ReplyDraft: r.ReplyDraft}, true
		}
	}
	return nil, false
}

func (c *BatchClassifier) classify(ctx context.Context, items []domain.Item, maxChars int) ([]domain.ClassificationResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt, err := RenderPrompt(c.product, PromptItems(items, maxChars))
	if err != nil {
		return nil, err
	}
	params := c.GenerationParams(len(items))

	text, err := c.completer.Complete(ctx, prompt, params)
	if err != nil && llm.IsRateLimited(err) {
		c.logger.Warn("model throttled, waiting before retry", "wait", c.opts.ThrottleWait, "error", err)
		if sleepErr := c.sleep(ctx, c.opts.ThrottleWait); sleepErr != nil {
			return nil, sleepErr
		}
		text, err = c.completer.Complete(ctx, prompt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("classify batch of %d: %w", len(items), err)
	}

	parsed, ok := ParseResults(text)
	if !ok {
		c.logger.Warn("unparseable model reply", "items", len(items), "reply", truncate(text, 200))
		return nil, nil
	}

	results := make([]domain.ClassificationResult, 0, len(parsed))
	seen := make(map[int]struct{}, len(parsed))
	for _, r := range parsed {
		if r.Index < 0 || r.Index >= len(items) {
			c.logger.Debug("dropping result with invalid index", "index", r.Index, "items", len(items))
			continue
		}
		if _, dup := seen[r.Index]; dup {
			continue
		}
		seen[r.Index] = struct{}{}
		results = append(results, r)
	}
	return results, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
