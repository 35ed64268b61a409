package reddit

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"RedditMonitor/internal/config"
	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/ports"
	"RedditMonitor/internal/scanner"
)

// Job is one feed fetch: a registered scanner applied to a target.
type Job struct {
	Scanner string
	Target  string
	Limit   int
}

// PlanFromConfig expands the configured subreddits and search terms into jobs:
// posts for every subreddit, then comments, then keyword searches.
func PlanFromConfig(cfg config.RedditConfig) []Job {
	var jobs []Job
	for _, sub := range cfg.Subreddits {
		jobs = append(jobs, Job{Scanner: ScannerPosts, Target: sub, Limit: cfg.PostsPerSubreddit})
	}
	if cfg.MonitorComments {
		for _, sub := range cfg.Subreddits {
			jobs = append(jobs, Job{Scanner: ScannerComments, Target: sub, Limit: cfg.CommentsPerSubreddit})
		}
	}
	if cfg.EnableKeywordSearch {
		for _, kw := range cfg.SearchKeywords {
			jobs = append(jobs, Job{Scanner: ScannerSearch, Target: kw, Limit: cfg.SearchResultsPerKeyword})
		}
	}
	return jobs
}

// SourceOptions tunes retries and ledger behaviour of a Source.
type SourceOptions struct {
	MaxAttempts int
	RetryDelay  time.Duration

	// RecordOnFetch records and saves new ids before FetchAll returns.
	RecordOnFetch bool
}

// Source implements ports.ItemSource over registered scanner strategies.
type Source struct {
	registry *scanner.Registry
	jobs     []Job
	ledger   ports.Ledger
	opts     SourceOptions
	logger   *slog.Logger
}

var _ ports.ItemSource = (*Source)(nil)

// NewSource wires the scanner registry with a fetch plan and the ledger.
func NewSource(reg *scanner.Registry, jobs []Job, ledger ports.Ledger, opts SourceOptions, log *slog.Logger) *Source {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Source{
		registry: reg,
		jobs:     jobs,
		ledger:   ledger,
		opts:     opts,
		logger:   log,
	}
}

// FetchAll runs every job and returns items whose id is absent from the ledger
// snapshot taken at the start of the call. Failed jobs contribute nothing.
func (s *Source) FetchAll(ctx context.Context) []domain.Item {
	known := s.ledger.Load(ctx)
	seen := make(map[string]struct{})

	var fresh []domain.Item
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			s.logger.Warn("fetch interrupted", "error", ctx.Err())
			break
		}

		items := s.runJob(ctx, job)
		added := 0
		for _, item := range items {
			key := item.LedgerKey()
			if key == "" {
				continue
			}
			if _, ok := known[key]; ok {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fresh = append(fresh, item)
			added++
		}
		s.logger.Debug("job done", "scanner", job.Scanner, "target", job.Target, "fetched", len(items), "new", added)
	}

	if s.opts.RecordOnFetch && len(fresh) > 0 {
		ids := make([]string, 0, len(fresh))
		for _, item := range fresh {
			ids = append(ids, item.LedgerKey())
		}
		s.ledger.Record(ids...)
		if err := s.ledger.Save(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("ledger save after fetch failed", "error", err)
		}
	}

	counts := domain.CountByType(fresh)
	s.logger.Info("fetch complete",
		"posts", counts[domain.TypePost],
		"comments", counts[domain.TypeComment],
		"search", counts[domain.TypeSearch],
		"total", len(fresh),
	)
	return fresh
}

func (s *Source) runJob(ctx context.Context, job Job) []domain.Item {
	strategy, err := s.registry.Resolve(job.Scanner)
	if err != nil {
		s.logger.Error("skip job", "scanner", job.Scanner, "target", job.Target, "registered", s.registry.Names(), "error", err)
		return nil
	}

	req := scanner.Request{Target: job.Target, Limit: job.Limit}
	var items []domain.Item
	operation := func() error {
		var scanErr error
		items, scanErr = strategy.Scan(ctx, req)
		if scanErr != nil && ctx.Err() != nil {
			return backoff.Permanent(scanErr)
		}
		return scanErr
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.RetryDelay), uint64(s.opts.MaxAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		s.logger.Debug("retry feed", "scanner", job.Scanner, "target", job.Target, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		s.logger.Warn("feed failed, skipping", "scanner", job.Scanner, "target", job.Target, "attempts", s.opts.MaxAttempts, "error", err)
		return nil
	}
	return items
}
