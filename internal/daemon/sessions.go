package daemon

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"strings"

	"camwatch/internal/capture"
	"camwatch/internal/config"
	"camwatch/internal/device"
	"camwatch/internal/display"
	"camwatch/internal/quality"
	"camwatch/internal/services"
	"camwatch/internal/session"
	"camwatch/internal/snapshot"
)

func sessionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (d *Daemon) buildSession(cam config.Camera, src device.Source, saver *snapshot.Saver, listener session.Listener, logger *slog.Logger) *session.Session {
	cfg := d.cfg
	loc, err := device.ParseLocator(cam.ResolvedSource(), cam.Kind)
	if err != nil {
		// The session still exists so status and the journal can report the
		// configuration error; its first cycle fails without retrying.
		parseErr := services.Wrap(services.ErrConfiguration, cam.Name, "parse source", "", err)
		src = device.SourceFunc(func(context.Context, device.Params) (device.Handle, error) {
			return nil, parseErr
		})
	}

	pacer := d.monitor.Register(cam.Name)
	d.pacers[sessionKey(cam.Name)] = pacer

	settings := session.Settings{
		Name:    cam.Name,
		Locator: loc,
		Loop: capture.Config{
			Camera: cam.Name,
			Params: device.Params{
				Width:      cfg.Capture.PreferredWidth,
				Height:     cfg.Capture.PreferredHeight,
				FPS:        cfg.Pacing.TargetFPS,
				BufferSize: cfg.Capture.BufferSize,
				Warmup:     cfg.Capture.Warmup(),
				Timeout:    cfg.Capture.HTTPTimeout(),
			},
			Gate:            gateFor(cfg.Capture, cam, loc),
			ProbeAttempts:   cfg.Capture.ProbeAttempts,
			ProbeInterval:   cfg.Capture.ProbeInterval(),
			MaxFailures:     cfg.Capture.MaxConsecutiveFailures,
			ReadRetry:       cfg.Capture.ReadRetry(),
			SkipWait:        cfg.Capture.SkipWait(),
			MaxInitAttempts: cfg.Capture.MaxInitAttempts,
			InitCooldown:    cfg.Capture.InitCooldown(),
			BackoffStep:     cfg.Capture.BackoffStep(),
			BackoffCap:      cfg.Capture.BackoffCap(),
		},
		JoinTimeout:     cfg.Watchdog.JoinTimeout(),
		StopTimeout:     cfg.Watchdog.StopTimeout(),
		RestartCooldown: cfg.Watchdog.RestartCooldown(),
		ZoomMin:         cfg.Display.ZoomMin,
		ZoomMax:         cfg.Display.ZoomMax,
		ZoomStep:        cfg.Display.ZoomStep,
		SmoothMin:       cfg.Display.SmoothMinViewport,
	}
	return session.New(settings, session.Deps{
		Source:   src,
		Pacer:    pacer,
		Load:     d.monitor,
		Saver:    saver,
		Observer: d.metrics.Observer(cam.Name),
		Listener: listener,
		Logger:   logger,
	})
}

// gateFor resolves a camera's quality gate. "auto" gates network streams
// only; HTTP snapshot polls and local devices pass every frame.
func gateFor(c config.Capture, cam config.Camera, loc device.Locator) quality.Gate {
	gate := quality.Gate{
		MinWidth:  c.MinWidth,
		MinHeight: c.MinHeight,
		Required:  c.StableFrames,
	}
	if cam.MinWidth > 0 {
		gate.MinWidth = cam.MinWidth
	}
	if cam.MinHeight > 0 {
		gate.MinHeight = cam.MinHeight
	}
	switch strings.ToLower(strings.TrimSpace(cam.QualityGate)) {
	case "on":
		gate.Enabled = true
	case "off":
		gate.Enabled = false
	default:
		gate.Enabled = loc.Kind == device.KindStream
	}
	return gate
}

// Session returns the named camera session.
func (d *Daemon) Session(name string) (*session.Session, error) {
	s, ok := d.sessions[sessionKey(name)]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, name, "lookup", "unknown camera", nil)
	}
	return s, nil
}

// Cameras returns the configured camera names in sorted order.
func (d *Daemon) Cameras() []string {
	names := make([]string, 0, len(d.order))
	for _, key := range d.order {
		names = append(names, d.sessions[key].Name())
	}
	return names
}

// CameraStatus returns one camera's status.
func (d *Daemon) CameraStatus(name string) (session.Status, error) {
	s, err := d.Session(name)
	if err != nil {
		return session.Status{}, err
	}
	return s.Status(), nil
}

// StartCamera marks a camera as wanted and starts its capture loop.
func (d *Daemon) StartCamera(ctx context.Context, name string) error {
	s, err := d.Session(name)
	if err != nil {
		return err
	}
	return s.Start(ctx)
}

// StopCamera stops a camera's capture loop and keeps it stopped.
func (d *Daemon) StopCamera(ctx context.Context, name string) error {
	s, err := d.Session(name)
	if err != nil {
		return err
	}
	return s.Stop(ctx)
}

// RestartCamera restarts a camera's capture loop with fresh counters.
func (d *Daemon) RestartCamera(ctx context.Context, name, reason string) error {
	s, err := d.Session(name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "manual"
	}
	return s.Restart(ctx, reason)
}

// ToggleCamera flips a camera between running and stopped and reports the new state.
func (d *Daemon) ToggleCamera(ctx context.Context, name string) (bool, error) {
	s, err := d.Session(name)
	if err != nil {
		return false, err
	}
	return s.Toggle(ctx)
}

// ViewChange adjusts a camera's live view. Reset is applied first.
type ViewChange struct {
	ZoomDelta float64 `json:"zoom_delta"`
	PanDX     float64 `json:"pan_dx"`
	PanDY     float64 `json:"pan_dy"`
	Reset     bool    `json:"reset"`
}

// UpdateView applies a view change and returns the resulting state.
func (d *Daemon) UpdateView(name string, change ViewChange) (display.ViewState, error) {
	s, err := d.Session(name)
	if err != nil {
		return display.ViewState{}, err
	}
	if change.Reset {
		s.ResetView()
	}
	if change.ZoomDelta != 0 {
		s.SetZoom(change.ZoomDelta)
	}
	if change.PanDX != 0 || change.PanDY != 0 {
		s.SetPan(change.PanDX, change.PanDY)
	}
	return s.View(), nil
}

// Capture holds the camera's current frame for a later save.
func (d *Daemon) Capture(name, label string) (bool, error) {
	s, err := d.Session(name)
	if err != nil {
		return false, err
	}
	return s.Capture(label), nil
}

// Save writes the camera's pending capture.
func (d *Daemon) Save(ctx context.Context, name string) (snapshot.Result, error) {
	s, err := d.Session(name)
	if err != nil {
		return snapshot.Result{}, err
	}
	return s.Save(ctx)
}

// Frame renders the camera's latest frame as JPEG. A positive viewport returns
// the zoomed display frame fitted to it; otherwise the raw frame is encoded.
func (d *Daemon) Frame(name string, vw, vh int) ([]byte, error) {
	s, err := d.Session(name)
	if err != nil {
		return nil, err
	}
	var img image.Image
	if vw > 0 && vh > 0 {
		if rgba, _ := s.DisplayFrame(vw, vh, nil); rgba != nil {
			img = rgba
		}
	} else if frame, ok := s.RawFrame(); ok {
		img = frame.Image
	}
	if img == nil {
		return nil, services.Wrap(services.ErrNotFound, s.Name(), "frame", "no frame captured yet", nil)
	}
	var buf bytes.Buffer
	if err := display.EncodeJPEG(&buf, img, d.cfg.Display.JPEGQuality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
