package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"camwatch/internal/config"
	"camwatch/internal/device"
	"camwatch/internal/journal"
	"camwatch/internal/logging"
	"camwatch/internal/metrics"
	"camwatch/internal/notifications"
	"camwatch/internal/resources"
	"camwatch/internal/session"
	"camwatch/internal/snapshot"
	"camwatch/internal/watchdog"
	"camwatch/internal/watermark"
)

// Options carries the collaborators New cannot build from configuration alone.
type Options struct {
	// Source opens every camera; daemonrun routes it to the gocv and HTTP adapters.
	Source device.Source
	// Provider feeds the resource monitor. Nil disables adaptive pacing.
	Provider resources.Provider
	Journal  *journal.Store
	Notifier notifications.Service
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// DisableHotplug skips the udev netlink monitor.
	DisableHotplug bool
}

// Daemon supervises every configured camera and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	journal  *journal.Store
	notifier notifications.Service
	metrics  *metrics.Metrics

	monitor  *resources.Monitor
	watchdog *watchdog.Watchdog
	hotplug  *hotplugMonitor
	api      *apiServer

	sessions map[string]*session.Session
	pacers   map[string]*resources.Pacer
	order    []string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool             `json:"running"`
	PID         int              `json:"pid"`
	LockPath    string           `json:"lock_path"`
	JournalPath string           `json:"journal_path,omitempty"`
	APIAddress  string           `json:"api_address,omitempty"`
	Hotplug     bool             `json:"hotplug"`
	Host        resources.Sample `json:"host"`
	Cameras     []session.Status `json:"cameras"`
}

// New builds the daemon and one idle session per configured camera.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if opts.Source == nil {
		return nil, errors.New("daemon requires a device source")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(cfg)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		journal:  opts.Journal,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		sessions: make(map[string]*session.Session),
		pacers:   make(map[string]*resources.Pacer),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	d.monitor = resources.NewMonitor(resources.Options{
		Provider:   opts.Provider,
		Interval:   cfg.Pacing.SampleInterval(),
		Thresholds: thresholds(cfg.Pacing),
		Logger:     logger,
		OnSample:   d.observeSample,
	})
	d.watchdog = watchdog.New(watchdog.Options{
		Interval:   cfg.Watchdog.Interval(),
		StaleAfter: cfg.Watchdog.StaleAfter(),
		Logger:     logger,
		OnAction:   d.watchdogAction,
	})

	var hook snapshot.Hook
	if cfg.Save.Watermark {
		hook = watermark.Overlay{Site: cfg.Save.WatermarkSite}
	}
	saver := snapshot.NewSaver(snapshot.Options{
		Dir:     cfg.Paths.CaptureDir,
		Prefix:  cfg.Save.Prefix,
		Quality: cfg.Save.JPEGQuality,
		Hook:    hook,
		Logger:  logger,
	})
	listener := &eventListener{daemon: d, logger: logging.NewComponentLogger(logger, "events")}

	for _, cam := range cfg.Cameras {
		key := sessionKey(cam.Name)
		if _, dup := d.sessions[key]; dup {
			return nil, fmt.Errorf("duplicate camera name %q", cam.Name)
		}
		s := d.buildSession(cam, opts.Source, saver, listener, logger)
		d.sessions[key] = s
		d.order = append(d.order, key)
		d.watchdog.Add(s)
	}
	sort.Strings(d.order)

	if !opts.DisableHotplug {
		d.hotplug = newHotplugMonitor(logger, d.handleHotplug)
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

func thresholds(p config.Pacing) resources.Thresholds {
	return resources.Thresholds{
		TargetFPS:  p.TargetFPS,
		MinFPS:     p.MinFPS,
		MaxFPS:     p.MaxFPS,
		StepDown:   p.FPSStepDown,
		StepUp:     p.FPSStepUp,
		CPUHigh:    p.CPUHigh,
		CPULow:     p.CPULow,
		SkipCPU:    p.SkipCPUThreshold,
		MemoryHigh: p.MemoryHigh,
	}
}

// Start acquires the daemon lock, launches the shared monitor and watchdog,
// starts every auto-start camera, and brings up hotplug and the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another camwatch daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.monitor.Run(runCtx)
	}()
	go func() {
		defer d.wg.Done()
		d.watchdog.Run(runCtx)
	}()

	for _, cam := range d.cfg.Cameras {
		if !cam.StartsAutomatically() {
			continue
		}
		s := d.sessions[sessionKey(cam.Name)]
		if err := s.Start(runCtx); err != nil {
			d.logger.Warn("auto start failed",
				logging.String(logging.FieldCamera, cam.Name),
				logging.Error(err),
			)
		}
	}

	if err := d.hotplug.Start(runCtx); err != nil {
		d.logger.Warn("hotplug monitor unavailable", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("camwatch daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("cameras", len(d.order)),
	)
	return nil
}

// Stop stops every session and background loop and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	d.hotplug.Stop()
	d.api.stop()
	d.wg.Wait()

	var wg sync.WaitGroup
	for _, key := range d.order {
		s := d.sessions[key]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("camwatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	st := Status{
		Running:  d.running.Load(),
		PID:      os.Getpid(),
		LockPath: d.lockPath,
		Hotplug:  d.hotplug.Running(),
		Host:     d.monitor.Last(),
		Cameras:  make([]session.Status, 0, len(d.order)),
	}
	if d.journal != nil {
		st.JournalPath = d.journal.Path()
	}
	st.APIAddress = d.api.address()
	for _, key := range d.order {
		st.Cameras = append(st.Cameras, d.sessions[key].Status())
	}
	return st
}

// Metrics returns the daemon's metric collectors.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Captures lists journaled captures, newest first.
func (d *Daemon) Captures(ctx context.Context, camera string, limit int) ([]journal.Capture, error) {
	if d.journal == nil {
		return nil, errors.New("capture journal unavailable")
	}
	camera, err := d.journalCamera(camera)
	if err != nil {
		return nil, err
	}
	return d.journal.ListCaptures(ctx, camera, limit)
}

// Events lists journaled lifecycle events, newest first.
func (d *Daemon) Events(ctx context.Context, camera string, limit int) ([]journal.Event, error) {
	if d.journal == nil {
		return nil, errors.New("event journal unavailable")
	}
	camera, err := d.journalCamera(camera)
	if err != nil {
		return nil, err
	}
	return d.journal.ListEvents(ctx, camera, limit)
}

// journalCamera maps a user-supplied camera name to the configured spelling.
func (d *Daemon) journalCamera(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	s, err := d.Session(name)
	if err != nil {
		return "", err
	}
	return s.Name(), nil
}

func (d *Daemon) observeSample(s resources.Sample) {
	d.metrics.ObserveSample(s)
	for _, key := range d.order {
		d.metrics.TargetFPS.WithLabelValues(d.sessions[key].Name()).Set(d.pacers[key].TargetFPS())
	}
}
