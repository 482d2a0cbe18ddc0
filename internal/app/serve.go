package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"horse.fit/presslate/internal/batch"
	"horse.fit/presslate/internal/cli"
	"horse.fit/presslate/internal/config"
	"horse.fit/presslate/internal/httpapi"
	"horse.fit/presslate/internal/logging"
	"horse.fit/presslate/internal/store"
	"horse.fit/presslate/internal/translation"
	"horse.fit/presslate/internal/wordpress"
)

// runServe starts the HTTP API and blocks until SIGINT/SIGTERM.
func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Listen host (overrides HOST)")
	port := fs.Int("port", 0, "Listen port (overrides PORT)")
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

	history, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Run history store unavailable, continuing without it")
	}

	listenHost := cfg.Host
	if *host != "" {
		listenHost = *host
	}
	listenPort := cfg.Port
	if *port > 0 {
		listenPort = *port
	}

	server := httpapi.NewServer(client, invoker, client, history, batch.Options{
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		MaxChunkLen: cfg.MaxChunkLen,
		Logger:      logger,
	}, logger, httpapi.Options{
		Host:         listenHost,
		Port:         listenPort,
		Username:     cfg.APIUser,
		PasswordHash: cfg.APIPasswordHash,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Server terminated with error")
		return 1
	}
	return 0
}
