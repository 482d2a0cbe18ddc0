package app

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"horse.fit/presslate/internal/batch"
	"horse.fit/presslate/internal/cli"
	"horse.fit/presslate/internal/config"
	"horse.fit/presslate/internal/logging"
	"horse.fit/presslate/internal/manifest"
	"horse.fit/presslate/internal/store"
	"horse.fit/presslate/internal/translation"
	"horse.fit/presslate/internal/wordpress"
)

// runBatch translates a set of items and republishes them, either from a
// manifest file or from item ids given on the command line.
func runBatch(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	manifestPath := fs.String("manifest", "", "Path to a run manifest JSON file")
	lang := fs.String("lang", "", "Target language code (when item ids are given directly)")
	timeout := fs.Duration("timeout", 45*time.Minute, "Overall run deadline")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := envLoader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return 1
	}

	m, err := resolveManifest(*manifestPath, fs.Args(), *lang)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	client, err := wordpress.NewClient(wordpress.Options{
		BaseURL:      cfg.WPBaseURL,
		Username:     cfg.WPUsername,
		AppPassword:  cfg.WPAppPassword,
		ReadTimeout:  cfg.WPReadTimeout,
		WriteTimeout: cfg.WPWriteTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Content host error: %v\n", err)
		return 1
	}

	invoker, err := translation.NewInvokerFromConfig(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translation error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	items := make([]wordpress.Item, 0, len(m.ItemIDs))
	for _, id := range m.ItemIDs {
		item, err := client.FetchItem(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: fetch item %d: %v\n", id, err)
			return 1
		}
		items = append(items, *item)
	}

	opts := batch.Options{
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		MaxChunkLen: cfg.MaxChunkLen,
		Logger:      logger,
	}
	if m.MaxChunkLen > 0 {
		opts.MaxChunkLen = m.MaxChunkLen
	}
	if m.MaxRetries > 0 {
		opts.MaxRetries = m.MaxRetries
	}

	observers := batch.MultiObserver{&consoleObserver{total: len(items)}}

	history, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Run history store unavailable, continuing without it")
	}
	runUUID := ""
	if history != nil {
		runUUID = fmt.Sprintf("cli-%d", time.Now().UnixNano())
		if err := history.CreateRun(runUUID, m.TargetLang, len(items)); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run start")
		} else {
			observers = append(observers, history.Observer(runUUID, logger))
		}
	}
	opts.Observer = observers

	orchestrator, err := batch.New(invoker, client, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "Interrupt received, finishing the current item...")
		orchestrator.Cancel()
	}()

	summary, err := orchestrator.Run(ctx, items, m.TargetLang)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	printSummary(summary, orchestrator.Results())
	if summary.Failed > 0 || summary.State == batch.StateAborted {
		return 1
	}
	return 0
}

func resolveManifest(path string, ids []string, lang string) (*manifest.Manifest, error) {
	if path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		return manifest.Validate(json.RawMessage(payload))
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("either --manifest or item ids are required")
	}
	if strings.TrimSpace(lang) == "" {
		return nil, fmt.Errorf("--lang is required when item ids are given directly")
	}
	if !translation.IsSupportedLanguage(lang) {
		return nil, fmt.Errorf("unsupported target language: %s", lang)
	}

	m := &manifest.Manifest{TargetLang: lang}
	for _, raw := range ids {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id: %s", raw)
		}
		m.ItemIDs = append(m.ItemIDs, id)
	}
	return m, nil
}

// consoleObserver prints run progress as plain lines on stderr.
type consoleObserver struct {
	total int
}

func (c *consoleObserver) Progress(e batch.ProgressEvent) {
	fmt.Fprintf(os.Stderr, "[%3.0f%%] item %d/%d (#%d) %s\n",
		e.Percent, e.ItemIndex+1, c.total, e.ItemID, e.ItemStatus)
}

func (c *consoleObserver) ItemResolved(r batch.ItemResult) {
	switch r.Status {
	case batch.ItemDone:
		fmt.Fprintf(os.Stderr, "Item %d done after %d attempt(s), published as %d\n",
			r.ItemID, r.Attempts, r.PublishedID)
	default:
		fmt.Fprintf(os.Stderr, "Item %d failed after %d attempt(s): %s\n",
			r.ItemID, r.Attempts, r.ErrMessage)
	}
}

func (c *consoleObserver) RunFinished(batch.Summary) {}

func printSummary(summary batch.Summary, results []batch.ItemResult) {
	fmt.Printf("Run %s: %d succeeded, %d failed of %d\n",
		summary.State, summary.Succeeded, summary.Failed, summary.Total)
	for _, r := range results {
		if r.Status == batch.ItemDone {
			fmt.Printf("  %d -> %d  %s\n", r.ItemID, r.PublishedID, r.TranslatedTitle)
		} else {
			fmt.Printf("  %d FAILED  %s\n", r.ItemID, r.ErrMessage)
		}
	}
}
