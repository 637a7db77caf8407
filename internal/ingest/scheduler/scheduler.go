// Package scheduler drives the ingestion engine: periodic full refreshes,
// coalesced manual refreshes and the failed/stale retry side channel.
//
// Full refresh cycles never overlap. A refresh request joins the running
// cycle, unless it forces a cache bypass the running cycle does not; then it
// queues one forced follow-up cycle that later forced requests also join.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
	"github.com/lueurxax/signal-ingest/internal/ingest/engine"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
	"github.com/lueurxax/signal-ingest/internal/platform/worker"
)

// State is the refresh state of the scheduler.
type State string

// Refresh states. Retry passes are tracked separately and may overlap Idle.
const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateReconciling State = "reconciling"
)

// Retry side channel states.
const (
	RetryNone      = ""
	RetryingFailed = "retrying_failed"
	RetryingStale  = "retrying_stale"
)

// Refresh triggers.
const (
	TriggerTimer   = "timer"
	TriggerManual  = "manual"
	TriggerStartup = "startup"
)

const (
	defaultInterval      = 10 * time.Minute
	defaultRetryInterval = 30 * time.Second

	logFieldTrigger  = "trigger"
	logFieldForce    = "force"
	logFieldKind     = "kind"
	logFieldAdded    = "added"
	logFieldItems    = "items"
	logFieldDuration = "duration"
)

// Engine is the state owner the scheduler drives.
type Engine interface {
	Feeds() []domain.FeedDescriptor
	Static() bool
	FetchAll(ctx context.Context, feeds []domain.FeedDescriptor, force bool) []engine.FeedOutcome
	Reconcile(ctx context.Context, outcomes []engine.FeedOutcome) *engine.Snapshot
	RetryFailed(ctx context.Context) (int, error)
	RetryStale(ctx context.Context) (int, error)
}

// Config tunes the scheduler.
type Config struct {
	// Interval is the full refresh period.
	Interval time.Duration
	// RetryInterval is how often the retry passes are checked.
	RetryInterval time.Duration
	// CycleTimeout bounds one timer refresh. Zero uses Interval.
	CycleTimeout time.Duration
	// SkipInitialRefresh disables the refresh at loop start, used when a
	// snapshot was preloaded.
	SkipInitialRefresh bool
}

// cycle is one full refresh; done closes once snap is set.
type cycle struct {
	ctx     context.Context
	trigger string
	force   bool
	done    chan struct{}
	snap    *engine.Snapshot
}

// Scheduler owns refresh triggering.
type Scheduler struct {
	engine        Engine
	interval      time.Duration
	retryInterval time.Duration
	cycleTimeout  time.Duration
	runOnStart    bool

	mu       sync.RWMutex
	state    State
	retrying string
	lastRun  time.Time
	current  *cycle
	pending  *cycle

	logger *zerolog.Logger
}

// New creates a Scheduler.
func New(cfg Config, eng Engine, logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}

	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = cfg.Interval
	}

	return &Scheduler{
		engine:        eng,
		interval:      cfg.Interval,
		retryInterval: cfg.RetryInterval,
		cycleTimeout:  cfg.CycleTimeout,
		runOnStart:    !cfg.SkipInitialRefresh,
		state:         StateIdle,
		logger:        logger,
	}
}

// State returns the current refresh state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Retrying returns the active retry pass, or RetryNone.
func (s *Scheduler) Retrying() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.retrying
}

// LastRefresh returns when the last full refresh completed.
func (s *Scheduler) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastRun
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) setRetrying(kind string) {
	s.mu.Lock()
	s.retrying = kind
	s.mu.Unlock()
}

// Run blocks running timer refreshes and retry checks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	return worker.SingleTickerLoop(ctx, worker.SingleTickerConfig{
		Name:              "refresh-scheduler",
		Interval:          s.interval,
		RunOnStart:        s.runOnStart,
		OnTick:            s.tick,
		SecondaryInterval: s.retryInterval,
		OnSecondaryTick:   s.Retry,
		Logger:            s.logger,
	})
}

func (s *Scheduler) tick(ctx context.Context) {
	defer worker.RecoverPanic(s.logger, "scheduled refresh")

	if s.engine.Static() {
		s.logger.Debug().Msg("serving static snapshot, timer refresh skipped")
		return
	}

	_ = worker.RunWithTimeout(ctx, s.cycleTimeout, func(ctx context.Context) error {
		_, err := s.Refresh(ctx, TriggerTimer, false)
		return err
	})
}

// Refresh runs a full refresh cycle, or joins the one already running.
// Manual refreshes are detached from the caller's cancellation so a dropped
// request does not abort a shared cycle. Other callers stop waiting when
// ctx is done.
func (s *Scheduler) Refresh(ctx context.Context, trigger string, force bool) (*engine.Snapshot, error) {
	if trigger == TriggerManual {
		ctx = context.WithoutCancel(ctx)
	}

	s.mu.Lock()
	c, joined := s.enqueue(ctx, trigger, force)
	s.mu.Unlock()

	if joined {
		s.logger.Debug().Str(logFieldTrigger, trigger).Bool(logFieldForce, force).Msg("refresh coalesced")
	}

	select {
	case <-c.done:
		if c.snap == nil {
			return nil, apperrors.ErrRefreshAborted
		}

		return c.snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue picks the cycle a request waits on. Callers hold s.mu.
func (s *Scheduler) enqueue(ctx context.Context, trigger string, force bool) (*cycle, bool) {
	switch {
	case s.current == nil:
		s.current = newCycle(ctx, trigger, force)
		go s.runCycles(s.current)

		return s.current, false
	case !force || s.current.force:
		return s.current, true
	case s.pending == nil:
		s.pending = newCycle(ctx, trigger, true)
		return s.pending, false
	default:
		return s.pending, true
	}
}

func newCycle(ctx context.Context, trigger string, force bool) *cycle {
	return &cycle{ctx: ctx, trigger: trigger, force: force, done: make(chan struct{})}
}

// runCycles runs c and then any queued follow-up, one at a time.
func (s *Scheduler) runCycles(c *cycle) {
	for c != nil {
		s.runCycle(c)

		s.mu.Lock()
		s.current, s.pending = s.pending, nil
		c = s.current
		s.mu.Unlock()
	}
}

func (s *Scheduler) runCycle(c *cycle) {
	defer close(c.done)
	defer worker.RecoverPanic(s.logger, "refresh cycle")

	// A queued cycle whose requester already gave up is not run.
	if c.ctx.Err() != nil {
		return
	}

	c.snap = s.refresh(c.ctx, c.trigger, c.force)
}

func (s *Scheduler) refresh(ctx context.Context, trigger string, force bool) *engine.Snapshot {
	start := time.Now()

	observability.RefreshTotal.WithLabelValues(trigger).Inc()

	s.setState(StateFetching)
	defer s.setState(StateIdle)

	outcomes := s.engine.FetchAll(ctx, s.engine.Feeds(), force)

	s.setState(StateReconciling)

	snap := s.engine.Reconcile(ctx, outcomes)

	elapsed := time.Since(start)
	observability.RefreshDuration.Observe(elapsed.Seconds())

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	s.logger.Info().
		Str(logFieldTrigger, trigger).
		Bool(logFieldForce, force).
		Int(logFieldItems, len(snap.Items)).
		Dur(logFieldDuration, elapsed).
		Msg("refresh complete")

	return snap
}

// Retry runs the failed-feed pass and then the stale pass. Passes that are
// disabled, gated or already running are skipped quietly.
func (s *Scheduler) Retry(ctx context.Context) {
	defer worker.RecoverPanic(s.logger, "retry pass")

	s.retryPass(ctx, RetryingFailed, s.engine.RetryFailed)
	s.retryPass(ctx, RetryingStale, s.engine.RetryStale)
}

func (s *Scheduler) retryPass(ctx context.Context, kind string, pass func(context.Context) (int, error)) {
	s.setRetrying(kind)
	defer s.setRetrying(RetryNone)

	added, err := pass(ctx)

	switch {
	case err == nil:
		if added > 0 {
			s.logger.Info().Str(logFieldKind, kind).Int(logFieldAdded, added).Msg("retry pass added items")
		}
	case errors.Is(err, apperrors.ErrRetryDisabled),
		errors.Is(err, apperrors.ErrRetryGated),
		errors.Is(err, apperrors.ErrRetryInProgress):
		s.logger.Debug().Err(err).Str(logFieldKind, kind).Msg("retry pass skipped")
	default:
		s.logger.Warn().Err(err).Str(logFieldKind, kind).Msg("retry pass failed")
	}
}
