package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"RedditMonitor/internal/classifier"
	"RedditMonitor/internal/config"
	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/infrastructure/console"
	"RedditMonitor/internal/infrastructure/feishu"
	"RedditMonitor/internal/infrastructure/llm"
	"RedditMonitor/internal/infrastructure/reddit"
	"RedditMonitor/internal/infrastructure/scheduler"
	"RedditMonitor/internal/infrastructure/storage"
	"RedditMonitor/internal/infrastructure/telegram"
	"RedditMonitor/internal/ledger"
	"RedditMonitor/internal/logging"
	"RedditMonitor/internal/metrics"
	"RedditMonitor/internal/ports"
	"RedditMonitor/internal/prefilter"
	"RedditMonitor/internal/scanner"
	"RedditMonitor/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	ledger     ports.Ledger
	classifier *classifier.BatchClassifier
	pipeline   *usecase.Pipeline
	metrics    *metrics.Metrics
	closers    []func() error
}

// New builds every adapter from cfg. The caller must Close the application.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New()}

	led, err := a.buildLedger(ctx)
	if err != nil {
		return nil, err
	}
	a.ledger = led

	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build llm client: %w", err)
	}
	a.classifier = classifier.New(completer, cfg.Product, classifier.OptionsFromConfig(cfg.LLM),
		baseLogger.With("component", "classifier", "provider", cfg.LLM.Provider))

	notifier, err := a.buildNotifier()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	source := reddit.NewSource(
		a.buildRegistry(),
		reddit.PlanFromConfig(cfg.Reddit),
		led,
		reddit.SourceOptions{
			MaxAttempts:   cfg.Reddit.MaxAttempts,
			RetryDelay:    cfg.Reddit.RequestDelay,
			RecordOnFetch: !cfg.Ledger.RetryFailedBatches,
		},
		baseLogger.With("component", "source"),
	)

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Filter:     prefilter.New(cfg.Filter.ExcludeKeywords, cfg.Filter.RelevanceKeywords, baseLogger.With("component", "prefilter")),
		Classifier: a.classifier,
		Notifier:   notifier,
		Ledger:     led,
		Metrics:    a.metrics,
		Logger:     baseLogger.With("component", "pipeline"),
	}, usecase.PipelineOptions{
		BatchSize:          cfg.Pipeline.BatchSize,
		BatchDelay:         cfg.Pipeline.BatchDelay,
		RetryFailedBatches: cfg.Ledger.RetryFailedBatches,
	})

	return a, nil
}

func (a *Application) buildRegistry() *scanner.Registry {
	client := reddit.NewFeedClient(
		&http.Client{Timeout: a.cfg.Reddit.RequestTimeout},
		a.cfg.Reddit.UserAgent,
		a.cfg.Reddit.RequestDelay,
	)
	registry := scanner.NewRegistry()
	registry.Register(reddit.NewPostsScanner(client, a.cfg.Reddit.BaseURL))
	registry.Register(reddit.NewCommentsScanner(client, a.cfg.Reddit.BaseURL))
	registry.Register(reddit.NewSearchScanner(client, a.cfg.Reddit.BaseURL))
	return registry
}

// buildLedger opens the configured backend. Dry runs read it once and then
// work on an in-memory copy so nothing is persisted.
func (a *Application) buildLedger(ctx context.Context) (ports.Ledger, error) {
	cfg := a.cfg.Ledger
	log := a.logger.With("component", "ledger", "backend", cfg.Backend)

	var backing ports.Ledger
	switch cfg.Backend {
	case config.LedgerSQLite, config.LedgerPostgres:
		driver := storage.DriverSQLite
		if cfg.Backend == config.LedgerPostgres {
			driver = storage.DriverPostgres
		}
		sqlLedger, err := storage.OpenSQLLedger(ctx, driver, cfg.DSN, cfg.MaxEntries, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqlLedger.Close)
		backing = sqlLedger
	default:
		backing = ledger.NewFileLedger(cfg.Path, cfg.MaxEntries, log)
	}

	if !a.cfg.Pipeline.DryRun {
		return backing, nil
	}

	backing.Load(ctx)
	var seed []string
	if lister, ok := backing.(interface{ IDs() []string }); ok {
		seed = lister.IDs()
	}
	log.Info("dry run: ledger changes stay in memory", "entries", len(seed))
	return ledger.NewMemoryLedger(cfg.MaxEntries, seed...), nil
}

func (a *Application) buildNotifier() (ports.Notifier, error) {
	cfg := a.cfg.Notifications
	if a.cfg.Pipeline.DryRun {
		return console.NewNotifier(a.logger.With("component", "notifier", "kind", "console")), nil
	}
	switch cfg.Kind {
	case config.NotifierFeishu:
		return feishu.NewNotifier(cfg.Feishu.WebhookURL, cfg.Timeout), nil
	case config.NotifierTelegram:
		return telegram.NewNotifier(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Kind)
	}
}

// RunOnce performs a single pipeline execution.
func (a *Application) RunOnce(ctx context.Context) (domain.RunSummary, error) {
	return a.pipeline.Run(ctx)
}

// Watch runs the pipeline on the configured cron schedule until ctx is
// cancelled. The metrics endpoint is served alongside when configured.
func (a *Application) Watch(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(
		a.cfg.Scheduler.CronExpression,
		a.cfg.Scheduler.Location(),
		a.logger.With("component", "scheduler"),
	)
	if err := driver.Validate(); err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if a.cfg.Metrics.Addr != "" {
		server := metrics.NewServer(a.cfg.Metrics.Addr, a.metrics, a.logger.With("component", "metrics"))
		go func() { errCh <- server.Run(ctx) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler did not stop cleanly", "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("metrics server: %w", runErr)
	}
	return nil
}

// ClassifyItem judges a single hand-written item without touching the ledger.
func (a *Application) ClassifyItem(ctx context.Context, item domain.Item) (*domain.Analysis, bool) {
	return a.classifier.ClassifyItem(ctx, item)
}

// LedgerStats describes the persisted ledger.
type LedgerStats struct {
	Backend     string
	Entries     int
	MaxEntries  int
	LastUpdated time.Time
}

// LedgerStats loads the ledger and reports its size.
func (a *Application) LedgerStats(ctx context.Context) LedgerStats {
	a.ledger.Load(ctx)
	stats := LedgerStats{
		Backend:    a.cfg.Ledger.Backend,
		Entries:    a.ledger.Len(),
		MaxEntries: a.cfg.Ledger.MaxEntries,
	}
	if stamped, ok := a.ledger.(interface{ LastUpdated() time.Time }); ok {
		stats.LastUpdated = stamped.LastUpdated()
	}
	return stats
}

// ReadLedgerStats opens only the ledger backend, so no credentials are needed.
func ReadLedgerStats(ctx context.Context, cfg config.Config, logger *slog.Logger) (LedgerStats, error) {
	if logger == nil {
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: logger}
	defer a.Close()

	led, err := a.buildLedger(ctx)
	if err != nil {
		return LedgerStats{}, err
	}
	a.ledger = led
	return a.LedgerStats(ctx), nil
}

// Close releases database handles.
func (a *Application) Close() error {
	var errs []error
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
