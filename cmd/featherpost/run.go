package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pevans/featherpost"
	"github.com/pevans/featherpost/config"
	"github.com/pevans/featherpost/history"
	"github.com/pevans/featherpost/ledger"
	"github.com/pevans/featherpost/publish"
	"github.com/pevans/featherpost/retry"
	"github.com/pevans/featherpost/selector"
	"github.com/pevans/featherpost/site"
)

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", getEnv("FEATHERPOST_CONFIG", ""), "Path to config file (FEATHERPOST_CONFIG)")
	once := fs.Bool("once", false, "Publish a single submission and exit")
	dryRun := fs.Bool("dry-run", false, "Log statuses instead of publishing them")
	fs.Parse(args)

	cfg, logger := loadConfig(*configPath)
	if *dryRun {
		cfg.Publish.Backend = publish.BackendLog
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	client := newSiteClient(cfg, logger)

	logger.Info("Opening ledger", "path", cfg.Files.Ledger)
	l, err := ledger.Open(cfg.Files.Ledger)
	if err != nil {
		fatal(logger, "Failed to open ledger", err)
	}
	defer l.Close()

	logger.Info("Opening history", "path", cfg.Files.History)
	store, err := history.NewStore(cfg.Files.History)
	if err != nil {
		fatal(logger, "Failed to open history", err)
	}
	defer store.Close()

	publisher, err := publish.New(ctx, cfg.Publish, logger)
	if err != nil {
		fatal(logger, "Failed to configure publisher", err)
	}

	selectPolicy := retry.Forever(cfg.Retry.Delay)
	sel := selector.New(selector.Options{
		Site:             client,
		Ledger:           l,
		Discoverer:       newDiscoverer(cfg, client),
		MaxCollisions:    cfg.Discovery.MaxCollisions,
		MaxFetchFailures: cfg.Discovery.MaxFetchFailures,
		Retry:            &selectPolicy,
		Logger:           logger,
	})

	bot := featherpost.NewBot(featherpost.BotOptions{
		Site:            client,
		Selector:        sel,
		Publisher:       publisher,
		History:         store,
		BlockPath:       cfg.Files.Block,
		RequirePath:     cfg.Files.Require,
		Pacer:           featherpost.NewPacer(cfg.Pacing.Window, cfg.Pacing.MinDelay, cfg.Pacing.MaxDelay),
		RetryDelay:      cfg.Retry.Delay,
		PublishAttempts: cfg.Retry.PublishAttempts,
		Logger:          logger,
	})

	if *once {
		if err := client.Login(ctx); err != nil {
			fatal(logger, "Failed to log in", err)
		}
		post, err := bot.RunOnce(ctx)
		if err != nil {
			fatal(logger, "Failed to publish", err)
		}
		fmt.Println(post.Status)
		return
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal(logger, "Bot stopped", err)
	}
	logger.Info("Bot stopped", "ledger_size", l.Len())
}

// newSiteClient builds the site client from the config.
func newSiteClient(cfg *config.Config, logger *slog.Logger) *site.Client {
	client, err := site.NewClient(site.Options{
		BaseURL:   cfg.Site.BaseURL,
		Username:  cfg.Site.Username,
		Password:  cfg.Site.Password,
		CookieA:   cfg.Site.CookieA,
		CookieB:   cfg.Site.CookieB,
		UserAgent: cfg.Site.UserAgent,
		Timeout:   cfg.Site.Timeout,
		Logger:    logger,
	})
	if err != nil {
		fatal(logger, "Failed to create site client", err)
	}
	return client
}

// newDiscoverer uses the configured feed when there is one and the landing
// page otherwise.
func newDiscoverer(cfg *config.Config, client *site.Client) selector.Discoverer {
	if cfg.Discovery.FeedURL == "" {
		return selector.LandingPage{Site: client}
	}
	return selector.Feed{Fetcher: client, URL: cfg.Discovery.FeedURL}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
