// Package watchdog supervises capture sessions: it starts sessions that should
// be running but are not, and force-restarts sessions whose last accepted
// frame is older than the stale window.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"camwatch/internal/logging"
	"camwatch/internal/services"
)

// Target is a supervised session.
type Target interface {
	Name() string
	ShouldRun() bool
	Alive() bool
	LastSuccess() time.Time
	Start(ctx context.Context) error
	Restart(ctx context.Context, reason string) error
}

// Action is a corrective step the watchdog issued.
type Action struct {
	Camera string
	Reason string
	// Age is the time since the last accepted frame for stale restarts.
	Age time.Duration
}

const (
	ReasonNotRunning = "not_running"
	ReasonStale      = "stale"
)

// Options configures a Watchdog.
type Options struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
	// OnAction is called after an action completes, with its error if any.
	OnAction func(Action, error)
}

// Watchdog polls all registered targets on one goroutine.
type Watchdog struct {
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
	onAction   func(Action, error)

	mu      sync.Mutex
	targets map[string]Target

	wg sync.WaitGroup
}

func New(opts Options) *Watchdog {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Watchdog{
		interval:   opts.Interval,
		staleAfter: opts.StaleAfter,
		logger:     logging.NewComponentLogger(opts.Logger, "watchdog"),
		now:        opts.Now,
		onAction:   opts.OnAction,
		targets:    make(map[string]Target),
	}
}

// Add registers a target, replacing any target with the same name.
func (w *Watchdog) Add(t Target) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targets[t.Name()] = t
}

// Run polls until ctx is done, then waits for in-flight actions.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check evaluates every target once and launches the actions it needs. The
// actions run concurrently so a slow restart never delays supervision of
// another camera; Wait joins them.
func (w *Watchdog) Check(ctx context.Context) []Action {
	w.mu.Lock()
	targets := make([]Target, 0, len(w.targets))
	for _, t := range w.targets {
		targets = append(targets, t)
	}
	w.mu.Unlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name() < targets[j].Name() })

	now := w.now()
	var actions []Action
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		var action Action
		switch {
		case t.Alive():
			if w.staleAfter <= 0 {
				continue
			}
			age := now.Sub(t.LastSuccess())
			if age <= w.staleAfter {
				continue
			}
			action = Action{Camera: t.Name(), Reason: ReasonStale, Age: age}
			logging.WarnWithContext(w.logger, "camera stale, forcing restart", "camera_stale",
				logging.String(logging.FieldCamera, t.Name()),
				logging.Duration("since_last_frame", age),
				logging.Error(services.Wrap(services.ErrStaleConnection, t.Name(), "watchdog", "", nil)),
				logging.String(logging.FieldImpact, "live view frozen until restart completes"),
			)
		case t.ShouldRun():
			action = Action{Camera: t.Name(), Reason: ReasonNotRunning}
			w.logger.Info("camera should be running, starting",
				logging.String(logging.FieldCamera, t.Name()),
			)
		default:
			continue
		}
		actions = append(actions, action)
		w.wg.Add(1)
		go w.apply(ctx, t, action)
	}
	return actions
}

// Wait blocks until every launched action has finished.
func (w *Watchdog) Wait() {
	w.wg.Wait()
}

func (w *Watchdog) apply(ctx context.Context, t Target, action Action) {
	defer w.wg.Done()
	var err error
	if action.Reason == ReasonStale {
		err = t.Restart(ctx, action.Reason)
	} else {
		err = t.Start(ctx)
	}
	switch {
	case err == nil:
	case errors.Is(err, services.ErrBusy):
		w.logger.Debug("transition already in progress",
			logging.String(logging.FieldCamera, action.Camera),
			logging.String("reason", action.Reason),
		)
	default:
		logging.WarnWithContext(w.logger, "watchdog action failed", "watchdog_action_failed",
			logging.String(logging.FieldCamera, action.Camera),
			logging.String("reason", action.Reason),
			logging.Error(err),
		)
	}
	if w.onAction != nil {
		w.onAction(action, err)
	}
}
