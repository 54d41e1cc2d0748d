package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"camwatch/internal/capture"
	"camwatch/internal/device"
	"camwatch/internal/device/devicetest"
	"camwatch/internal/services"
	"camwatch/internal/session"
	"camwatch/internal/snapshot"
)

func newSession(t *testing.T, src device.Source, opts ...func(*session.Settings, *session.Deps)) *session.Session {
	t.Helper()
	settings := session.Settings{
		Name:    "bench",
		Locator: device.Locator{Kind: device.KindDevice},
		Loop: capture.Config{
			MaxFailures:  15,
			ReadRetry:    time.Millisecond,
			SkipWait:     time.Millisecond,
			BackoffStep:  time.Hour,
			BackoffCap:   time.Hour,
			InitCooldown: time.Hour,
		},
		JoinTimeout:     time.Second,
		StopTimeout:     time.Second,
		RestartCooldown: 10 * time.Millisecond,
		ZoomMin:         1,
		ZoomMax:         5,
		ZoomStep:        0.2,
		SmoothMin:       400,
	}
	deps := session.Deps{
		Source: src,
		Saver:  snapshot.NewSaver(snapshot.Options{Dir: t.TempDir()}),
	}
	for _, opt := range opts {
		opt(&settings, &deps)
	}
	s := session.New(settings, deps)
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDoubleStartRunsOneLoop(t *testing.T) {
	src := devicetest.Scripted(devicetest.Frame(64, 48))
	s := newSession(t, src)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	waitFor(t, "frames", func() bool { return s.Status().Accepted > 0 })
	if src.Opens() != 1 {
		t.Fatalf("expected exactly one capture loop, got %d opens", src.Opens())
	}
	if !s.Alive() || !s.ShouldRun() {
		t.Fatalf("session should be alive and wanted")
	}
}

func TestConcurrentRestartsRunOneCycle(t *testing.T) {
	src := devicetest.Scripted(devicetest.Frame(64, 48))
	s := newSession(t, src, func(st *session.Settings, _ *session.Deps) {
		st.RestartCooldown = 200 * time.Millisecond
	})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "first open", func() bool { return src.Opens() == 1 })

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Restart(ctx, "test")
		}(i)
	}
	wg.Wait()

	busy := 0
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, services.ErrBusy):
			busy++
		default:
			t.Fatalf("unexpected restart error %v", err)
		}
	}
	if busy != 1 {
		t.Fatalf("expected exactly one restart to be rejected as busy, got %d", busy)
	}
	waitFor(t, "reopen", func() bool { return src.Opens() == 2 })
	if src.MaxLive() != 1 {
		t.Fatalf("two device handles were open at once")
	}
	if got := s.Status().Restarts; got != 1 {
		t.Fatalf("expected one restart, got %d", got)
	}
}

func TestRestartClearsCounters(t *testing.T) {
	src := devicetest.Scripted(devicetest.Frame(64, 48))
	s := newSession(t, src)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "frames", func() bool { return s.Status().Accepted > 5 })

	// Hold the loop in backoff so the counters stay put after the restart.
	src.SetOpenFunc(func(int) error { return errors.New("unplugged") })
	before := time.Now()
	if err := s.Restart(ctx, "manual"); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	st := s.Status()
	if st.Accepted != 0 || st.Total != 0 {
		t.Fatalf("counters not cleared: %+v", st)
	}
	if st.LastSuccess.Before(before) {
		t.Fatalf("last success not seeded by restart")
	}
}

func TestStopHaltsLoop(t *testing.T) {
	src := devicetest.Scripted(devicetest.Frame(64, 48))
	s := newSession(t, src)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "frames", func() bool { return s.Status().Accepted > 0 })
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Alive() || s.ShouldRun() {
		t.Fatalf("session still running after stop")
	}
	if src.Live() != 0 {
		t.Fatalf("device handle leaked")
	}

	running, err := s.Toggle(ctx)
	if err != nil || !running {
		t.Fatalf("Toggle: running=%v err=%v", running, err)
	}
	waitFor(t, "toggle start", func() bool { return src.Opens() == 2 })
}

func TestConfigurationErrorClearsShouldRun(t *testing.T) {
	src := &devicetest.Source{OpenFunc: func(int) error {
		return services.Wrap(services.ErrConfiguration, "", "open", "bad source", nil)
	}}
	s := newSession(t, src)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "loop exit", func() bool { return !s.Alive() })
	if s.ShouldRun() {
		t.Fatalf("configuration error should clear should-run")
	}
	if kind := s.Status().LastErrorKind; kind != "configuration" {
		t.Fatalf("unexpected last error kind %q", kind)
	}
}

func TestCaptureAndSave(t *testing.T) {
	src := devicetest.Scripted(devicetest.Frame(320, 240))
	s := newSession(t, src)
	ctx := context.Background()

	if _, err := s.Save(ctx); !errors.Is(err, services.ErrNothingToSave) {
		t.Fatalf("expected nothing to save, got %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "frames", func() bool { return s.Status().Accepted > 0 })
	if !s.Capture("T-7") {
		t.Fatalf("capture failed with a published frame")
	}
	res, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Meta.Width != 320 || res.Meta.Label != "T-7" {
		t.Fatalf("unexpected save metadata %+v", res.Meta)
	}
	if s.Status().PendingCapture {
		t.Fatalf("pending capture should clear after save")
	}
}

func TestDisplayFrameAppliesView(t *testing.T) {
	src := devicetest.Scripted(devicetest.Frame(640, 480))
	s := newSession(t, src)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "frames", func() bool { return s.Status().Accepted > 0 })

	s.SetZoom(1)
	s.SetPan(50, -20)
	img, _ := s.DisplayFrame(320, 320, nil)
	if img == nil || img.Bounds().Dx() != 320 || img.Bounds().Dy() != 240 {
		t.Fatalf("unexpected display frame %v", img)
	}
	s.ResetView()
	if v := s.View(); v.Zoom != 1 || v.PanX != 0 {
		t.Fatalf("view not reset: %+v", v)
	}
}
