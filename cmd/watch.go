package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedwatch/feedwatch/internal/clock/system"
	"github.com/feedwatch/feedwatch/internal/config"
	"github.com/feedwatch/feedwatch/internal/feed"
	"github.com/feedwatch/feedwatch/internal/fetcher/headless"
	"github.com/feedwatch/feedwatch/internal/fetcher/static"
	"github.com/feedwatch/feedwatch/internal/logging"
	"github.com/feedwatch/feedwatch/internal/metrics"
	"github.com/feedwatch/feedwatch/internal/notify"
	"github.com/feedwatch/feedwatch/internal/state"
	"github.com/feedwatch/feedwatch/internal/watch"
)

// newWatchCmd creates the 'watch' subcommand, which runs one complete pass
// over the configured sources and exits.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Runs one watch pass over all configured sources",
		Long: `Fetches every configured feed page once, in order, and evaluates the
newest post of each against the configured keyword. Notifications go out
for novel matches only; a rate-limited aggregate notice covers the
all-sources-missed case.`,
		RunE: runWatchCommand,
	}
}

func runWatchCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				logger.Warn("Metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	store, err := state.NewFileStore(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("init state store: %w", err)
	}
	st, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	fetcher, cleanup, err := buildFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	defer cleanup()

	machine := notify.NewMachine(
		notify.Config{
			Keyword:         cfg.Watch.Keyword,
			MinNoMatchHours: cfg.Watch.NoMatchMinHours,
			SnippetMaxChars: cfg.Watch.SnippetMaxChars,
		},
		st,
		notify.NewWebhookChannel(cfg.Notify.MatchWebhookURL, logger),
		notify.NewWebhookChannel(cfg.Notify.NoMatchWebhookURL, logger),
		notify.NewMailChannel(cfg.Notify.Mail.APIKey, cfg.Notify.Mail.FromAddr, cfg.Notify.Mail.FromName, logger),
		cfg.Notify.Mail.Recipients,
		system.New(),
		logger,
	)

	sources := make([]feed.Source, 0, len(cfg.Watch.Sources))
	for _, s := range cfg.Watch.Sources {
		sources = append(sources, feed.Source(s))
	}
	runner := watch.NewRunner(
		watch.Config{
			Sources:   sources,
			Keyword:   cfg.Watch.Keyword,
			Marker:    cfg.Extract.Marker,
			PostLimit: cfg.Watch.PostLimit,
		},
		fetcher,
		machine,
		store,
		logger,
	)

	return runner.Run(ctx, st)
}

func buildFetcher(cfg config.Config, logger *zap.Logger) (feed.Fetcher, func(), error) {
	switch cfg.Fetch.Mode {
	case "static":
		return static.New(static.Config{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.NavTimeout(),
		}, logger), func() {}, nil
	default:
		f, err := headless.New(headless.Config{
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
			MaxParallel:       cfg.Fetch.MaxParallel,
			DomainQPS:         cfg.Fetch.DomainQPS,
			Marker:            cfg.Extract.Marker,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
