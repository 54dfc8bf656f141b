package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lysyi3m/podcast-posts/app/cfg"
	"github.com/lysyi3m/podcast-posts/app/feed"
	"github.com/lysyi3m/podcast-posts/app/tasks"
)

func main() {
	if err := cfg.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	appCfg, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting podcast import",
		"version", appCfg.Version,
		"feed", appCfg.FeedURL,
		"output", appCfg.OutputDir,
		"ledger", appCfg.LedgerPath)
	if appCfg.Author != "" {
		slog.Debug("Author is accepted but not written to posts", "author", appCfg.Author)
	}

	task, err := newImportTask(appCfg)
	if err != nil {
		slog.Error("Failed to initialize importer", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := task.Execute(ctx)
	if err != nil {
		slog.Error("Import failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Import complete. %d new episodes written. DB saved to %s\n", result.New, appCfg.LedgerPath)
}

func newImportTask(appCfg *cfg.Cfg) (*tasks.ImportFeedTask, error) {
	var templateText string
	if appCfg.TemplatePath != "" {
		data, err := os.ReadFile(appCfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read template: %w", err)
		}
		templateText = string(data)
	}

	renderer, err := feed.NewRenderer(templateText, appCfg.Location)
	if err != nil {
		return nil, err
	}

	extractor, err := feed.NewEpisodeExtractorWithPattern(appCfg.EpisodePattern)
	if err != nil {
		return nil, err
	}

	fetcher := feed.NewFetcher(&http.Client{}, appCfg.UserAgent, appCfg.Timeout)

	settings := tasks.ImportSettings{
		OutputDir:  appCfg.OutputDir,
		LedgerPath: appCfg.LedgerPath,
		Lang:       appCfg.Lang,
		MaxItems:   appCfg.MaxItems,
	}

	return tasks.NewImportFeedTask(appCfg.FeedURL, settings, fetcher, feed.NewParser(), extractor, renderer), nil
}
