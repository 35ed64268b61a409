package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"RedditMonitor/internal/app"
	"RedditMonitor/internal/config"
	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	dryRun     bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "redditmonitor",
		Short:         "Watch Reddit for people who could use the product and notify the team",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default $REDDIT_MONITOR_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "log notifications instead of sending them and keep the ledger in memory")

	root.AddCommand(
		newRunCommand(opts),
		newWatchCommand(opts),
		newClassifyCommand(opts),
		newLedgerCommand(opts),
	)
	return root
}

// load resolves configuration and flag overrides; validate=false skips credential checks.
func (o *rootOptions) load(validate bool) (config.Config, *slog.Logger, error) {
	cfg := config.LoadPath(o.configPath)
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.dryRun {
		cfg.Pipeline.DryRun = true
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if validate {
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", "error", err)
			return cfg, logger, err
		}
	}
	return cfg, logger, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, classify and notify once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(true)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.RunOnce(ctx)
			if err != nil {
				logger.Warn("run interrupted", "error", err, "relevant", summary.Relevant)
				return err
			}
			return nil
		},
	}
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(true)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Watch(ctx)
		},
	}
}

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	var item domain.Item
	var itemType string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single piece of content and print the verdict as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.dryRun = true
			cfg, logger, err := opts.load(true)
			if err != nil {
				return err
			}
			item.Type = domain.ItemType(strings.ToLower(itemType))
			if item.Title == "" && item.Content == "" {
				return fmt.Errorf("classify: --title or --content is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.LLM.Timeout+cfg.LLM.ThrottleWait+10*time.Second)
			defer cancel()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			analysis, ok := application.ClassifyItem(ctx, item)
			if !ok {
				return fmt.Errorf("classify: the model reply could not be used")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		},
	}

	cmd.Flags().StringVar(&item.Title, "title", "", "post title or comment context")
	cmd.Flags().StringVar(&item.Content, "content", "", "post or comment body")
	cmd.Flags().StringVar(&item.Subreddit, "subreddit", "gamedev", "community the content came from")
	cmd.Flags().StringVar(&item.SearchKeyword, "keyword", "", "search keyword that surfaced the content")
	cmd.Flags().StringVar(&itemType, "type", string(domain.TypePost), "content type: post, comment or search")
	return cmd
}

func newLedgerCommand(opts *rootOptions) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the processed-item ledger",
	}
	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print ledger size and last update",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(false)
			if err != nil {
				return err
			}
			stats, err := app.ReadLedgerStats(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend: %s\nentries: %d/%d\n", stats.Backend, stats.Entries, stats.MaxEntries)
			if !stats.LastUpdated.IsZero() {
				fmt.Fprintf(out, "last updated: %s\n", stats.LastUpdated.Format(time.RFC3339))
			}
			return nil
		},
	})
	return ledgerCmd
}
