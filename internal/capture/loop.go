// Package capture runs the per-camera producer loop: it owns the device
// handle, paces reads, gates frames on quality, publishes accepted frames
// into the frame buffer, and recovers from device failures with backoff.
package capture

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"camwatch/internal/device"
	"camwatch/internal/framebuf"
	"camwatch/internal/logging"
	"camwatch/internal/quality"
	"camwatch/internal/services"
)

// Config holds the tunables for one capture loop.
type Config struct {
	Camera string
	Params device.Params
	Gate   quality.Gate

	ProbeAttempts int
	ProbeInterval time.Duration

	MaxFailures int
	ReadRetry   time.Duration
	SkipWait    time.Duration

	MaxInitAttempts int
	InitCooldown    time.Duration
	BackoffStep     time.Duration
	BackoffCap      time.Duration
}

// Backoff is the loop's recovery bookkeeping. Only the loop mutates it.
type Backoff struct {
	Failures      int           `json:"failures"`
	InitAttempts  int           `json:"init_attempts"`
	LastError     time.Time     `json:"last_error"`
	LastErrorKind string        `json:"last_error_kind,omitempty"`
	Delay         time.Duration `json:"delay"`
}

// next returns the reconnect delay for the current failure run and whether
// the longer init cooldown applies.
func (b Backoff) next(cfg Config) (time.Duration, bool) {
	if cfg.MaxInitAttempts > 0 && b.InitAttempts >= cfg.MaxInitAttempts {
		return cfg.InitCooldown, true
	}
	failures := b.Failures
	if failures < 1 {
		failures = 1
	}
	delay := time.Duration(failures) * cfg.BackoffStep
	if cfg.BackoffCap > 0 && delay > cfg.BackoffCap {
		delay = cfg.BackoffCap
	}
	return delay, false
}

// Status is a snapshot of the loop for status reporting and the watchdog.
type Status struct {
	State       State
	Available   bool
	Stable      bool
	StableCount int
	LastSuccess time.Time
	Backoff     Backoff
}

// Options wires a loop's collaborators. Source and Buffer are required.
type Options struct {
	Source    device.Source
	Buffer    *framebuf.Buffer
	Counters  *Counters
	Pacer     Pacer
	Processor FrameProcessor
	Observer  Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// Loop is one capture cycle. A loop runs once; restarts build a new loop.
type Loop struct {
	cfg       Config
	source    device.Source
	buffer    *framebuf.Buffer
	counters  *Counters
	pacer     Pacer
	processor FrameProcessor
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time

	state atomic.Int32

	mu          sync.Mutex
	backoff     Backoff
	lastSuccess time.Time
	negotiator  *quality.Negotiator
	handle      device.Handle
	lastRead    time.Time
}

// New builds a loop. The last-success timestamp is seeded with the current
// time so a fresh cycle is not immediately considered stale.
func New(cfg Config, opts Options) *Loop {
	if opts.Counters == nil {
		opts.Counters = &Counters{}
	}
	if opts.Pacer == nil {
		opts.Pacer = FixedPacer{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.ProbeAttempts < 1 {
		cfg.ProbeAttempts = 1
	}
	return &Loop{
		cfg:         cfg,
		source:      opts.Source,
		buffer:      opts.Buffer,
		counters:    opts.Counters,
		pacer:       opts.Pacer,
		processor:   opts.Processor,
		observer:    opts.Observer,
		logger:      logging.NewCameraLogger(opts.Logger, "capture", cfg.Camera),
		now:         opts.Now,
		lastSuccess: opts.Now(),
		negotiator:  quality.NewNegotiator(cfg.Gate),
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Status returns a consistent snapshot of the loop.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	stable := l.negotiator.Stable()
	return Status{
		State:       l.State(),
		Available:   l.handle != nil,
		Stable:      l.handle != nil && stable >= l.negotiator.Gate().Required,
		StableCount: stable,
		LastSuccess: l.lastSuccess,
		Backoff:     l.backoff,
	}
}

// LastSuccess returns the time of the last published frame.
func (l *Loop) LastSuccess() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSuccess
}

// ReleaseHandle releases the device handle if the loop still holds one. The
// session calls it after a join timeout to free a handle left behind by a
// loop stuck in a device read.
func (l *Loop) ReleaseHandle() error {
	l.mu.Lock()
	h := l.handle
	l.handle = nil
	l.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Release()
}

// Run drives the state machine until ctx is cancelled. It returns nil on a
// cooperative stop and the configuration error when the source cannot be
// used at all.
func (l *Loop) Run(ctx context.Context) error {
	defer l.shutdown()

	state := StateConnecting
	for {
		if ctx.Err() != nil {
			return nil
		}
		l.setState(state)

		var err error
		switch state {
		case StateConnecting:
			state, err = l.connect(ctx)
		case StateQualityProbing:
			state = l.probe(ctx)
		case StateStreaming:
			state = l.stream(ctx)
		case StateBackoff:
			state = l.wait(ctx)
		default:
			return nil
		}
		if err != nil {
			return err
		}
		if state == StateShuttingDown {
			return nil
		}
	}
}

func (l *Loop) setState(s State) {
	if prev := State(l.state.Swap(int32(s))); prev != s {
		l.logger.Debug("capture state changed",
			logging.String(logging.FieldState, s.String()),
			logging.String("previous", prev.String()),
		)
	}
}

func (l *Loop) shutdown() {
	l.setState(StateShuttingDown)
	if err := l.ReleaseHandle(); err != nil {
		l.logger.Warn("release on shutdown failed", logging.Error(err))
	}
	l.setState(StateUninitialized)
}

func (l *Loop) connect(ctx context.Context) (State, error) {
	h, err := l.source.Open(ctx, l.cfg.Params)
	if err != nil {
		if ctx.Err() != nil {
			return StateShuttingDown, nil
		}
		if errors.Is(err, services.ErrConfiguration) {
			l.recordError(services.Wrap(services.ErrConfiguration, l.cfg.Camera, "open", "", err))
			logging.ErrorWithContext(l.logger, "camera source is not usable", "capture_config",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the camera source in config.toml"),
			)
			return StateShuttingDown, services.Wrap(services.ErrConfiguration, l.cfg.Camera, "open", "", err)
		}
		l.mu.Lock()
		l.backoff.Failures++
		l.backoff.InitAttempts++
		l.mu.Unlock()
		l.recordError(services.Wrap(services.ErrDeviceOpen, l.cfg.Camera, "open", "", err))
		logging.WarnWithContext(l.logger, "device open failed", "device_open_failed",
			logging.Error(err),
			logging.String("source", l.cfg.Params.Locator.String()),
			logging.String(logging.FieldImpact, "camera offline until reconnect"),
		)
		return StateBackoff, nil
	}

	l.mu.Lock()
	l.handle = h
	l.backoff.Failures = 0
	l.negotiator.Reset()
	l.lastRead = time.Time{}
	l.mu.Unlock()

	if ctx.Err() != nil {
		return StateShuttingDown, nil
	}
	l.logger.Info("device opened", logging.String("source", l.cfg.Params.Locator.String()))
	if l.cfg.Gate.Enabled {
		return StateQualityProbing, nil
	}
	return StateStreaming, nil
}

func (l *Loop) probe(ctx context.Context) State {
	gate := l.cfg.Gate
	var lastW, lastH int
	for attempt := 0; attempt < l.cfg.ProbeAttempts; attempt++ {
		if attempt > 0 && !sleep(ctx, l.cfg.ProbeInterval) {
			return StateShuttingDown
		}
		img, err := l.read(ctx)
		if ctx.Err() != nil {
			return StateShuttingDown
		}
		if err != nil {
			continue
		}
		b := img.Bounds()
		lastW, lastH = b.Dx(), b.Dy()
		if gate.Qualifies(lastW, lastH) {
			l.logger.Info("quality probe passed",
				logging.Int("width", lastW),
				logging.Int("height", lastH),
				logging.Int("attempts", attempt+1),
			)
			return StateStreaming
		}
	}

	_ = l.ReleaseHandle()
	l.mu.Lock()
	l.backoff.Failures++
	l.backoff.InitAttempts++
	l.mu.Unlock()
	l.recordError(services.Wrap(services.ErrDeviceQuality, l.cfg.Camera, "probe", "", nil))
	logging.WarnWithContext(l.logger, "device never reached required resolution", "device_quality",
		logging.Int("width", lastW),
		logging.Int("height", lastH),
		logging.Int("min_width", gate.MinWidth),
		logging.Int("min_height", gate.MinHeight),
		logging.String(logging.FieldErrorHint, "check the camera's stream profile"),
	)
	return StateBackoff
}

func (l *Loop) stream(ctx context.Context) State {
	for {
		if ctx.Err() != nil {
			return StateShuttingDown
		}
		if l.pacer.SkipTick() {
			l.counters.skipped.Add(1)
			l.observer.TickSkipped()
			if !sleep(ctx, l.cfg.SkipWait) {
				return StateShuttingDown
			}
			continue
		}

		if wait := l.untilNextRead(); wait > 0 {
			if !sleep(ctx, wait) {
				return StateShuttingDown
			}
		}

		l.counters.total.Add(1)
		img, err := l.read(ctx)
		if ctx.Err() != nil {
			return StateShuttingDown
		}
		if err != nil {
			if next, done := l.readFailed(ctx, err); done {
				return next
			}
			continue
		}

		b := img.Bounds()
		l.mu.Lock()
		l.backoff.Failures = 0
		accept := l.negotiator.Observe(b.Dx(), b.Dy())
		l.mu.Unlock()
		if !accept {
			l.counters.dropped.Add(1)
			l.observer.FrameDropped()
			continue
		}

		raw := framebuf.ToRGBA(img)
		var processed *image.RGBA
		if l.processor != nil {
			processed = l.processor.Process(raw)
		}
		if ctx.Err() != nil {
			return StateShuttingDown
		}
		now := l.now()
		l.buffer.Publish(raw, processed, now)
		l.counters.accepted.Add(1)
		l.observer.FrameAccepted()

		l.mu.Lock()
		l.lastSuccess = now
		l.backoff.InitAttempts = 0
		l.mu.Unlock()
	}
}

// readFailed records a failed read. It reports done with the next state when
// the failure run reached the configured maximum or the loop is stopping.
func (l *Loop) readFailed(ctx context.Context, err error) (State, bool) {
	l.counters.dropped.Add(1)
	l.observer.FrameDropped()

	l.mu.Lock()
	l.backoff.Failures++
	failures := l.backoff.Failures
	l.negotiator.Reset()
	l.mu.Unlock()

	if failures >= l.cfg.MaxFailures {
		_ = l.ReleaseHandle()
		l.recordError(services.Wrap(services.ErrFrameRead, l.cfg.Camera, "read", "consecutive failure limit reached", err))
		logging.WarnWithContext(l.logger, "too many consecutive read failures, reconnecting", "read_failures",
			logging.Int("failures", failures),
			logging.Error(err),
			logging.String(logging.FieldImpact, "frames paused until reconnect"),
		)
		return StateBackoff, true
	}
	l.logger.Debug("frame read failed", logging.Int("failures", failures), logging.Error(err))
	if !sleep(ctx, l.cfg.ReadRetry) {
		return StateShuttingDown, true
	}
	return StateStreaming, false
}

func (l *Loop) wait(ctx context.Context) State {
	l.mu.Lock()
	delay, cooldown := l.backoff.next(l.cfg)
	if cooldown {
		l.backoff.InitAttempts = 0
	}
	l.backoff.Delay = delay
	l.mu.Unlock()

	if cooldown {
		l.logger.Info("init attempts exhausted, cooling down", logging.Duration("delay", delay))
	} else {
		l.logger.Debug("backing off before reconnect", logging.Duration("delay", delay))
	}
	if !sleep(ctx, delay) {
		return StateShuttingDown
	}
	return StateConnecting
}

func (l *Loop) read(ctx context.Context) (image.Image, error) {
	l.mu.Lock()
	h := l.handle
	l.lastRead = l.now()
	l.mu.Unlock()
	if h == nil {
		return nil, services.Wrap(services.ErrFrameRead, l.cfg.Camera, "read", "no open handle", nil)
	}
	img, err := h.Read(ctx)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, services.Wrap(services.ErrFrameRead, l.cfg.Camera, "read", "no data", nil)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, services.Wrap(services.ErrFrameRead, l.cfg.Camera, "read", "zero-size frame", nil)
	}
	return img, nil
}

func (l *Loop) untilNextRead() time.Duration {
	interval := l.pacer.Interval()
	if interval <= 0 {
		return 0
	}
	l.mu.Lock()
	last := l.lastRead
	l.mu.Unlock()
	if last.IsZero() {
		return 0
	}
	return last.Add(interval).Sub(l.now())
}

func (l *Loop) recordError(err error) {
	l.mu.Lock()
	l.backoff.LastError = l.now()
	l.backoff.LastErrorKind = services.ErrorKind(err)
	l.mu.Unlock()
}

// sleep waits for d or until ctx is done. It reports false when ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
