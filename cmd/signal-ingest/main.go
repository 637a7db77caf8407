package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-ingest/internal/app"
	"github.com/lueurxax/signal-ingest/internal/platform/config"
)

func main() {
	mode := flag.String("mode", "serve", "Service mode (serve, once)")
	out := flag.String("out", "", "Snapshot output file for once mode (default stdout)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	if err := runMode(ctx, application, &logger, *mode, *out); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv, level string) zerolog.Logger {
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, logger *zerolog.Logger, mode, out string) error {
	switch mode {
	case "serve":
		// Start HTTP server in background
		go func() {
			if err := application.StartHTTPServer(ctx); err != nil {
				logger.Error().Err(err).Msg("http server error")
			}
		}()

		return application.RunServe(ctx)
	case "once":
		return application.RunOnce(ctx, out, os.Stdout)
	default:
		log.Fatalf("Usage: %s --mode=[serve|once] [--out=snapshot.json]", os.Args[0])

		return nil
	}
}
