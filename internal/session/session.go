// Package session ties one camera's capture loop, frame buffer, view state and
// pending capture together behind the lifecycle and capture operations the
// daemon exposes. All start, stop and restart requests for a camera funnel
// through a single transition flag, so at most one capture loop per camera is
// ever alive.
package session

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"camwatch/internal/capture"
	"camwatch/internal/device"
	"camwatch/internal/display"
	"camwatch/internal/framebuf"
	"camwatch/internal/logging"
	"camwatch/internal/resources"
	"camwatch/internal/services"
	"camwatch/internal/snapshot"
)

// Settings are the per-camera tunables.
type Settings struct {
	Name    string
	Locator device.Locator
	Loop    capture.Config

	JoinTimeout     time.Duration
	StopTimeout     time.Duration
	RestartCooldown time.Duration

	ZoomMin   float64
	ZoomMax   float64
	ZoomStep  float64
	SmoothMin int
}

// Pacer is the capture pacing source plus the rate it currently targets.
type Pacer interface {
	capture.Pacer
	TargetFPS() float64
}

// LoadReporter returns the latest host load sample.
type LoadReporter interface {
	Last() resources.Sample
}

// Deps are the collaborators a session uses.
type Deps struct {
	Source    device.Source
	Pacer     Pacer
	Load      LoadReporter
	Saver     *snapshot.Saver
	Processor capture.FrameProcessor
	Observer  capture.Observer
	Listener  Listener
	Logger    *slog.Logger
	Now       func() time.Time
}

// Session supervises one camera.
type Session struct {
	settings Settings
	deps     Deps
	logger   *slog.Logger
	now      func() time.Time

	buffer   *framebuf.Buffer
	view     *display.View
	consumer *display.Consumer
	pending  snapshot.Pending
	counters capture.Counters

	shouldRun atomic.Bool
	restarts  atomic.Uint64

	mu         sync.Mutex
	cond       *sync.Cond
	restarting bool
	current    *cycle
	lastCycle  *capture.Loop
	lastErr    error
	seeded     time.Time
}

type cycle struct {
	id      string
	loop    *capture.Loop
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

func (c *cycle) alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// New builds an idle session.
func New(settings Settings, deps Deps) *Session {
	if deps.Pacer == nil {
		deps.Pacer = fixedPacer{}
	}
	if deps.Listener == nil {
		deps.Listener = NopListener{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Saver == nil {
		deps.Saver = snapshot.NewSaver(snapshot.Options{Logger: deps.Logger})
	}
	if settings.Loop.Camera == "" {
		settings.Loop.Camera = settings.Name
	}
	settings.Loop.Params.Locator = settings.Locator

	buffer := framebuf.New()
	view := display.NewView(settings.ZoomMin, settings.ZoomMax, settings.ZoomStep)
	s := &Session{
		settings: settings,
		deps:     deps,
		logger:   logging.NewCameraLogger(deps.Logger, "session", settings.Name),
		now:      deps.Now,
		buffer:   buffer,
		view:     view,
		consumer: display.NewConsumer(buffer, view, settings.SmoothMin),
		seeded:   deps.Now(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Name returns the camera name.
func (s *Session) Name() string { return s.settings.Name }

// Locator returns the parsed camera source.
func (s *Session) Locator() device.Locator { return s.settings.Locator }

// ShouldRun reports whether the session is meant to be capturing.
func (s *Session) ShouldRun() bool { return s.shouldRun.Load() }

// Alive reports whether a capture loop goroutine is currently running.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.alive()
}

// LastSuccess returns the time of the last published frame, seeded with the
// start time of the current cycle.
func (s *Session) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return s.current.loop.LastSuccess()
	}
	return s.seeded
}

// begin claims the transition flag, failing with ErrBusy when another
// transition holds it.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restarting {
		return services.Wrap(services.ErrBusy, s.settings.Name, "transition", "", nil)
	}
	s.restarting = true
	return nil
}

// beginWait claims the transition flag, waiting for any in-flight transition.
func (s *Session) beginWait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.restarting {
		s.cond.Wait()
	}
	s.restarting = true
}

func (s *Session) end() {
	s.mu.Lock()
	s.restarting = false
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Start marks the session as wanted and launches a capture loop unless one
// is already alive.
func (s *Session) Start(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()
	s.shouldRun.Store(true)
	if s.Alive() {
		return nil
	}
	s.reap()
	s.startCycle()
	return nil
}

// Stop clears the wanted flag and stops the capture loop.
func (s *Session) Stop(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()
	s.shouldRun.Store(false)
	s.stopCycle()
	return nil
}

// Restart stops the current loop, waits the cooldown, clears the counters
// and starts a fresh loop.
func (s *Session) Restart(ctx context.Context, reason string) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()
	return s.restartLocked(ctx, reason)
}

func (s *Session) restartLocked(ctx context.Context, reason string) error {
	s.logger.Info("restarting camera", logging.String("reason", reason))
	s.stopCycle()

	if d := s.settings.RestartCooldown; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.counters.Reset()
	s.consumer.Forget()
	s.shouldRun.Store(true)
	s.restarts.Add(1)
	s.startCycle()
	s.deps.Listener.Restarted(s.settings.Name, reason)
	return nil
}

// Toggle stops a session that should be running and starts one that should not.
func (s *Session) Toggle(ctx context.Context) (bool, error) {
	if s.ShouldRun() {
		return false, s.Stop(ctx)
	}
	return true, s.Start(ctx)
}

// Close stops the session, waiting for any in-flight transition to finish.
func (s *Session) Close() {
	s.beginWait()
	defer s.end()
	s.shouldRun.Store(false)
	s.stopCycle()
}

func (s *Session) startCycle() {
	id := uuid.NewString()
	base := services.WithCycleID(services.WithCamera(context.Background(), s.settings.Name), id)
	ctx, cancel := context.WithCancel(base)

	started := s.now()
	loop := capture.New(s.settings.Loop, capture.Options{
		Source:    s.deps.Source,
		Buffer:    s.buffer,
		Counters:  &s.counters,
		Pacer:     s.deps.Pacer,
		Processor: s.deps.Processor,
		Observer:  s.deps.Observer,
		Logger:    logging.WithContext(ctx, s.deps.Logger),
		Now:       s.now,
	})
	c := &cycle{id: id, loop: loop, cancel: cancel, done: make(chan struct{}), started: started}

	s.mu.Lock()
	s.current = c
	s.lastCycle = loop
	s.seeded = started
	s.mu.Unlock()

	s.logger.Info("capture cycle started",
		logging.String(logging.FieldCycleID, id),
		logging.String("source", s.settings.Locator.String()),
	)
	s.deps.Listener.CycleStarted(s.settings.Name, id)

	go func() {
		defer close(c.done)
		err := loop.Run(ctx)
		if err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			if errors.Is(err, services.ErrConfiguration) {
				s.shouldRun.Store(false)
			}
		}
		s.deps.Listener.CycleEnded(s.settings.Name, id, err)
	}()
}

// stopCycle cancels the current loop and joins it. A loop still stuck in a
// device read after the join timeout has its handle released from here; if
// even that does not return within the stop timeout the cycle is abandoned.
func (s *Session) stopCycle() {
	s.mu.Lock()
	c := s.current
	s.current = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	c.cancel()

	if wait(c.done, s.settings.JoinTimeout) {
		return
	}
	logging.WarnWithContext(s.logger, "capture loop did not stop in time, releasing device", "join_timeout",
		logging.String(logging.FieldCycleID, c.id),
		logging.Duration("timeout", s.settings.JoinTimeout),
	)
	released := make(chan struct{})
	go func() {
		defer close(released)
		if err := c.loop.ReleaseHandle(); err != nil {
			s.logger.Warn("residual handle release failed", logging.Error(err))
		}
	}()
	if !wait(released, s.settings.StopTimeout) {
		logging.ErrorWithContext(s.logger, "device release hung, abandoning capture cycle", "release_timeout",
			logging.String(logging.FieldCycleID, c.id),
			logging.String(logging.FieldErrorHint, "the device driver is unresponsive; replug the camera"),
		)
	}
}

// reap drops a cycle whose loop already exited on its own.
func (s *Session) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && !s.current.alive() {
		s.current = nil
	}
}

func wait(done <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		<-done
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Capture holds the current raw frame for a later Save.
func (s *Session) Capture(label string) bool {
	ok := s.pending.Capture(s.buffer, label)
	if ok {
		s.logger.Info("frame captured", logging.String("label", label))
	}
	return ok
}

// Save writes the pending capture.
func (s *Session) Save(ctx context.Context) (snapshot.Result, error) {
	res, err := s.deps.Saver.Save(ctx, &s.pending, s.settings.Name)
	switch {
	case err == nil:
		s.deps.Listener.Saved(s.settings.Name, res)
	case errors.Is(err, services.ErrNothingToSave):
	default:
		logging.WarnWithContext(s.logger, "capture save failed", "save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "capture kept in memory for retry"),
		)
		s.deps.Listener.SaveFailed(s.settings.Name, err)
	}
	return res, err
}

// SetZoom adjusts the live view zoom by delta and returns the new level.
func (s *Session) SetZoom(delta float64) float64 { return s.view.Zoom(delta) }

// SetPan moves the live view.
func (s *Session) SetPan(dx, dy float64) display.ViewState { return s.view.Pan(dx, dy) }

// ResetView returns the live view to no zoom and no pan.
func (s *Session) ResetView() { s.view.Reset() }

// View returns the live view state.
func (s *Session) View() display.ViewState { return s.view.State() }

// DisplayFrame renders the latest frame for a viewport. fresh reports whether
// the image differs from what cur last received; pass nil for one-off reads.
func (s *Session) DisplayFrame(vw, vh int, cur *display.Cursor) (img *image.RGBA, fresh bool) {
	return s.consumer.Frame(vw, vh, cur)
}

// Live sends each new display frame to sink at the refresh cadence until ctx
// ends or sink returns an error.
func (s *Session) Live(ctx context.Context, vw, vh int, refresh time.Duration, sink func(*image.RGBA) error) error {
	return s.consumer.Run(ctx, vw, vh, refresh, sink)
}

// RawFrame copies the latest full-resolution frame.
func (s *Session) RawFrame() (*framebuf.Frame, bool) {
	return s.buffer.CopyRaw()
}

type fixedPacer struct{ capture.FixedPacer }

func (p fixedPacer) TargetFPS() float64 { return p.FPS }
