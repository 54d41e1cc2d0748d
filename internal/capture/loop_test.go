package capture_test

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"camwatch/internal/capture"
	"camwatch/internal/device"
	"camwatch/internal/device/devicetest"
	"camwatch/internal/framebuf"
	"camwatch/internal/quality"
	"camwatch/internal/services"
)

func baseConfig() capture.Config {
	return capture.Config{
		Camera:          "bench",
		Params:          device.Params{Locator: device.Locator{Kind: device.KindDevice}},
		ProbeAttempts:   3,
		ProbeInterval:   time.Millisecond,
		MaxFailures:     15,
		ReadRetry:       time.Millisecond,
		SkipWait:        time.Millisecond,
		MaxInitAttempts: 3,
		InitCooldown:    time.Hour,
		BackoffStep:     time.Hour,
		BackoffCap:      time.Hour,
	}
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

func startLoop(t *testing.T, loop *capture.Loop) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("loop did not exit")
		}
	})
	return cancel, done
}

func TestFailureLimitReleasesExactlyAtMaximum(t *testing.T) {
	src := devicetest.Scripted(devicetest.Fail())
	loop := capture.New(baseConfig(), capture.Options{Source: src, Buffer: framebuf.New()})
	startLoop(t, loop)

	waitFor(t, "backoff", func() bool { return loop.State() == capture.StateBackoff })

	if got := src.Reads(); got != 15 {
		t.Fatalf("expected 15 reads before backoff, got %d", got)
	}
	if got := src.Releases(); got != 1 {
		t.Fatalf("expected handle released once, got %d", got)
	}
	status := loop.Status()
	if status.Available {
		t.Fatalf("expected handle to be gone in backoff")
	}
	if status.Backoff.Failures != 15 {
		t.Fatalf("expected 15 recorded failures, got %d", status.Backoff.Failures)
	}
	if status.Backoff.LastErrorKind != "frame_read" {
		t.Fatalf("unexpected last error kind %q", status.Backoff.LastErrorKind)
	}
	time.Sleep(20 * time.Millisecond)
	if got := src.Reads(); got != 15 {
		t.Fatalf("reads continued during backoff: %d", got)
	}
}

func TestBackoffDelayGrowsLinearlyToCap(t *testing.T) {
	const (
		step  = 2 * time.Second
		limit = 10 * time.Second
	)
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{3, 6 * time.Second},
		{15, 10 * time.Second},
	}
	for _, tc := range tests {
		cfg := baseConfig()
		cfg.MaxFailures = tc.failures
		cfg.BackoffStep = step
		cfg.BackoffCap = limit
		src := devicetest.Scripted(devicetest.Fail())
		loop := capture.New(cfg, capture.Options{Source: src, Buffer: framebuf.New()})
		cancel, _ := startLoop(t, loop)

		waitFor(t, "backoff delay", func() bool { return loop.Status().Backoff.Delay > 0 })
		status := loop.Status()
		if status.Backoff.Failures != tc.failures {
			t.Fatalf("failures = %d, want %d", status.Backoff.Failures, tc.failures)
		}
		if status.Backoff.Delay != tc.want {
			t.Fatalf("after %d failures: delay = %v, want %v", tc.failures, status.Backoff.Delay, tc.want)
		}
		cancel()
	}
}

func TestNoPublishAfterStop(t *testing.T) {
	buf := framebuf.New()
	src := devicetest.Scripted(devicetest.Frame(64, 48))
	loop := capture.New(baseConfig(), capture.Options{Source: src, Buffer: buf})
	cancel, done := startLoop(t, loop)

	waitFor(t, "first publish", func() bool { return buf.Seq() > 0 })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not stop")
	}

	seq := buf.Seq()
	time.Sleep(20 * time.Millisecond)
	if buf.Seq() != seq {
		t.Fatalf("publish after stop: %d -> %d", seq, buf.Seq())
	}
	if src.Live() != 0 {
		t.Fatalf("handle still open after stop")
	}
	if loop.State() != capture.StateUninitialized {
		t.Fatalf("unexpected final state %s", loop.State())
	}
}

func TestQualityProbeFailureBacksOff(t *testing.T) {
	cfg := baseConfig()
	cfg.Params.Locator = device.Locator{Kind: device.KindStream, URL: "rtsp://cam/s"}
	cfg.Gate = quality.Gate{Enabled: true, MinWidth: 1280, MinHeight: 720, Required: 3}
	src := devicetest.Scripted(devicetest.Frame(640, 480))
	loop := capture.New(cfg, capture.Options{Source: src, Buffer: framebuf.New()})
	startLoop(t, loop)

	waitFor(t, "backoff", func() bool { return loop.State() == capture.StateBackoff })
	if src.Reads() != 3 {
		t.Fatalf("expected 3 probe reads, got %d", src.Reads())
	}
	if src.Releases() != 1 {
		t.Fatalf("expected probe failure to release handle")
	}
	if kind := loop.Status().Backoff.LastErrorKind; kind != "device_quality" {
		t.Fatalf("unexpected error kind %q", kind)
	}
}

func TestGateRequiresStableRun(t *testing.T) {
	cfg := baseConfig()
	cfg.Gate = quality.Gate{Enabled: true, MinWidth: 100, MinHeight: 100, Required: 3}
	buf := framebuf.New()
	// The probe consumes the first qualifying frame, then streaming sees
	// low, high, high, high and must publish only on the last one.
	src := devicetest.Scripted(
		devicetest.Frame(200, 200),
		devicetest.Frame(50, 50),
		devicetest.Frame(200, 200),
		devicetest.Frame(200, 200),
		devicetest.Frame(200, 200),
	)
	counters := &capture.Counters{}
	loop := capture.New(cfg, capture.Options{Source: src, Buffer: buf, Counters: counters})
	startLoop(t, loop)

	waitFor(t, "first publish", func() bool { return buf.Seq() > 0 })
	snap := counters.Snapshot()
	if snap.Dropped != 3 {
		t.Fatalf("expected 3 gate-rejected reads before publish, got %+v", snap)
	}
}

func TestOpenFailuresCoolDownAfterMaxInitAttempts(t *testing.T) {
	cfg := baseConfig()
	cfg.BackoffStep = time.Millisecond
	cfg.BackoffCap = 5 * time.Millisecond
	src := &devicetest.Source{OpenFunc: func(int) error { return errors.New("no device") }}
	loop := capture.New(cfg, capture.Options{Source: src, Buffer: framebuf.New()})
	startLoop(t, loop)

	waitFor(t, "cooldown", func() bool {
		return loop.State() == capture.StateBackoff && loop.Status().Backoff.Delay == time.Hour
	})
	if got := src.Opens(); got != 3 {
		t.Fatalf("expected cooldown after 3 open attempts, got %d", got)
	}
	if loop.Status().Backoff.InitAttempts != 0 {
		t.Fatalf("expected init attempts reset on cooldown")
	}
}

func TestConfigurationErrorEndsLoop(t *testing.T) {
	src := &devicetest.Source{OpenFunc: func(int) error {
		return services.Wrap(services.ErrConfiguration, "", "open", "missing url", nil)
	}}
	loop := capture.New(baseConfig(), capture.Options{Source: src, Buffer: framebuf.New()})
	err := loop.Run(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if src.Opens() != 1 {
		t.Fatalf("configuration error must not be retried, opens=%d", src.Opens())
	}
}

type skipPacer struct{ skip atomic.Bool }

func (p *skipPacer) Interval() time.Duration { return 0 }
func (p *skipPacer) SkipTick() bool          { return p.skip.Load() }

func TestSkippedTicksDoNotRead(t *testing.T) {
	pacer := &skipPacer{}
	pacer.skip.Store(true)
	src := devicetest.Scripted(devicetest.Frame(64, 48))
	counters := &capture.Counters{}
	loop := capture.New(baseConfig(), capture.Options{Source: src, Buffer: framebuf.New(), Counters: counters, Pacer: pacer})
	startLoop(t, loop)

	waitFor(t, "skips", func() bool { return counters.Snapshot().Skipped >= 5 })
	if src.Reads() != 0 {
		t.Fatalf("expected no reads while skipping, got %d", src.Reads())
	}
	pacer.skip.Store(false)
	waitFor(t, "reads resume", func() bool { return counters.Snapshot().Accepted > 0 })
}

func TestProcessorOutputIsPublished(t *testing.T) {
	buf := framebuf.New()
	src := devicetest.Scripted(devicetest.Frame(64, 48))
	var calls atomic.Int32
	proc := capture.ProcessorFunc(func(raw *image.RGBA) *image.RGBA {
		calls.Add(1)
		return image.NewRGBA(image.Rect(0, 0, 32, 24))
	})
	loop := capture.New(baseConfig(), capture.Options{Source: src, Buffer: buf, Processor: proc})
	startLoop(t, loop)

	waitFor(t, "publish", func() bool { return buf.Seq() > 0 })
	slot, ok := buf.Take()
	if !ok || slot.Processed == nil {
		t.Fatalf("expected processed frame in slot")
	}
	if slot.Raw.Width() != 64 || slot.Processed.Width() != 32 {
		t.Fatalf("unexpected sizes raw=%d processed=%d", slot.Raw.Width(), slot.Processed.Width())
	}
}
