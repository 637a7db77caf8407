package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	logFieldWorker = "worker"

	// errFmtSingleTickerLoop is the error format for single ticker loop context errors.
	errFmtSingleTickerLoop = "single ticker loop %s: %w"
)

// SingleTickerConfig configures a single-ticker loop with optional secondary ticker.
type SingleTickerConfig struct {
	// Name identifies the worker for logging.
	Name string

	// Interval is the main ticker interval.
	Interval time.Duration

	// OnTick is called when the main ticker fires.
	OnTick func(ctx context.Context)

	// RunOnStart runs OnTick immediately when starting.
	RunOnStart bool

	// SecondaryInterval is the interval for secondary periodic tasks (0 to disable).
	SecondaryInterval time.Duration

	// OnSecondaryTick is called when the secondary ticker fires.
	OnSecondaryTick func(ctx context.Context)

	// Logger for the worker.
	Logger *zerolog.Logger
}

// SingleTickerLoop runs one main ticker and an optional secondary ticker.
// Callbacks run on the loop goroutine, so a tick never overlaps another.
// Returns a wrapped context error when the context is canceled.
func SingleTickerLoop(ctx context.Context, cfg SingleTickerConfig) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("single ticker loop %s: interval must be positive", cfg.Name)
	}

	logger := getLogger(cfg.Logger)
	logger.Info().Str(logFieldWorker, cfg.Name).Dur("interval", cfg.Interval).Msg("starting single ticker loop")

	defer func() {
		logger.Info().Str(logFieldWorker, cfg.Name).Msg("single ticker loop stopped")
	}()

	if cfg.RunOnStart && cfg.OnTick != nil {
		cfg.OnTick(ctx)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// A nil channel never fires, which disables the secondary case.
	var secondary <-chan time.Time

	if cfg.SecondaryInterval > 0 && cfg.OnSecondaryTick != nil {
		secondaryTicker := time.NewTicker(cfg.SecondaryInterval)
		defer secondaryTicker.Stop()

		secondary = secondaryTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf(errFmtSingleTickerLoop, cfg.Name, ctx.Err())
		case <-ticker.C:
			if cfg.OnTick != nil {
				cfg.OnTick(ctx)
			}
		case <-secondary:
			cfg.OnSecondaryTick(ctx)
		}
	}
}

// getLogger returns the provided logger or a nop logger if nil.
func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}
