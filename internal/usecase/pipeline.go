package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/metrics"
	"RedditMonitor/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ItemSource
	Filter     ports.PreFilter
	Classifier ports.Classifier
	Notifier   ports.Notifier
	Ledger     ports.Ledger
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// PipelineOptions tunes the batch loop.
type PipelineOptions struct {
	BatchSize  int
	BatchDelay time.Duration

	// RetryFailedBatches leaves ids of batches whose classification call
	// failed out of the ledger so the next run picks them up again.
	RetryFailedBatches bool
}

// Pipeline implements the monitor workflow: fetch, filter, prioritize, then
// classify and notify batch by batch with a ledger checkpoint after each batch.
type Pipeline struct {
	source     ports.ItemSource
	filter     ports.PreFilter
	classifier ports.Classifier
	notifier   ports.Notifier
	ledger     ports.Ledger
	metrics    *metrics.Metrics
	logger     *slog.Logger
	opts       PipelineOptions

	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	newRunID func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source:     deps.Source,
		filter:     deps.Filter,
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		ledger:     deps.Ledger,
		metrics:    deps.Metrics,
		logger:     logger,
		opts:       opts,
		sleep:      sleepContext,
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
}

// Run executes one pass. Only context cancellation is returned as an error;
// every other failure is logged and absorbed.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	started := p.now()
	summary := domain.RunSummary{
		RunID:          p.newRunID(),
		RelevantByType: domain.TypeCounts{},
	}
	log := p.logger.With("run_id", summary.RunID)
	defer func() {
		p.metrics.ObserveRun(started, p.now())
	}()

	items := p.source.FetchAll(ctx)
	summary.Fetched = len(items)
	summary.FetchedByType = domain.CountByType(items)
	p.metrics.ObserveFetched(items)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if len(items) == 0 {
		log.Info("nothing to do")
		return summary, nil
	}

	filtered := items
	if p.filter != nil {
		filtered = p.filter.Filter(items)
	}
	summary.Filtered = len(filtered)
	if excluded := excludedKeys(items, filtered); len(excluded) > 0 {
		p.metrics.ObserveExcluded(len(excluded))
		p.ledger.Record(excluded...)
	}
	if len(filtered) == 0 {
		log.Info("everything excluded by keywords", "fetched", len(items))
		p.checkpoint(ctx, log)
		return summary, nil
	}

	if p.filter != nil {
		filtered = p.filter.Prioritize(filtered)
	}

	batches := chunk(filtered, p.opts.BatchSize)
	log.Info("classifying", "items", len(filtered), "batches", len(batches), "batch_size", p.opts.BatchSize)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p.runBatch(ctx, log.With("batch", i+1), batch, &summary)

		if i < len(batches)-1 {
			if err := p.sleep(ctx, p.opts.BatchDelay); err != nil {
				return summary, err
			}
		}
	}

	if summary.Relevant > 0 {
		if err := p.notifier.NotifySummary(ctx, summary); err != nil {
			log.Warn("summary notification failed", "error", err)
		}
	}

	log.Info("run complete",
		"fetched", summary.Fetched,
		"filtered", summary.Filtered,
		"relevant", summary.Relevant,
		"sent", summary.Sent,
		"failed_batches", summary.FailedBatches,
	)
	return summary, nil
}

func (p *Pipeline) runBatch(ctx context.Context, log *slog.Logger, batch []domain.Item, summary *domain.RunSummary) {
	summary.Batches++

	results, err := p.classifier.ClassifyBatch(ctx, batch)
	failed := err != nil
	if failed {
		summary.FailedBatches++
		log.Warn("batch classification failed", "items", len(batch), "error", err)
	}
	p.metrics.ObserveBatch(failed)

	relevant := domain.RelevantItems(batch, results)
	for _, item := range relevant {
		nerr := p.notifier.NotifyItem(ctx, item)
		p.metrics.ObserveNotification(nerr)
		if nerr != nil {
			log.Warn("notification failed", "id", item.ID, "error", nerr)
			continue
		}
		summary.Sent++
	}
	summary.Relevant += len(relevant)
	for t, n := range domain.CountByType(relevant) {
		summary.RelevantByType[t] += n
	}
	p.metrics.ObserveRelevant(relevant)

	if failed && p.opts.RetryFailedBatches {
		log.Info("leaving failed batch unrecorded for retry", "items", len(batch))
	} else {
		keys := make([]string, 0, len(batch))
		for _, item := range batch {
			keys = append(keys, item.LedgerKey())
		}
		p.ledger.Record(keys...)
	}
	p.checkpoint(ctx, log)

	log.Info("batch done", "items", len(batch), "relevant", len(relevant))
}

// checkpoint persists the ledger even when ctx is already cancelled.
func (p *Pipeline) checkpoint(ctx context.Context, log *slog.Logger) {
	if err := p.ledger.Save(context.WithoutCancel(ctx)); err != nil {
		log.Error("ledger checkpoint failed", "error", err)
	}
	p.metrics.SetLedgerSize(p.ledger.Len())
}

func excludedKeys(all, kept []domain.Item) []string {
	if len(all) == len(kept) {
		return nil
	}
	keep := make(map[string]struct{}, len(kept))
	for _, item := range kept {
		keep[item.LedgerKey()] = struct{}{}
	}
	var out []string
	for _, item := range all {
		if _, ok := keep[item.LedgerKey()]; !ok {
			out = append(out, item.LedgerKey())
		}
	}
	return out
}

func chunk(items []domain.Item, size int) [][]domain.Item {
	var out [][]domain.Item
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
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
