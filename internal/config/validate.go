package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validatePacing(); err != nil {
		return err
	}
	if err := c.validateWatchdog(); err != nil {
		return err
	}
	if err := c.validateDisplay(); err != nil {
		return err
	}
	if err := c.validateSave(); err != nil {
		return err
	}
	return c.validateCameras()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateCapture() error {
	cp := c.Capture
	if cp.MinWidth < 0 || cp.MinHeight < 0 {
		return errors.New("capture.min_width and capture.min_height must be >= 0")
	}
	if cp.PreferredWidth < 0 || cp.PreferredHeight < 0 {
		return errors.New("capture.preferred_width and capture.preferred_height must be >= 0")
	}
	if cp.StableFrames < 1 {
		return errors.New("capture.stable_frames must be at least 1")
	}
	if cp.ProbeAttempts < 1 {
		return errors.New("capture.probe_attempts must be at least 1")
	}
	if cp.MaxConsecutiveFailures < 1 {
		return errors.New("capture.max_consecutive_failures must be at least 1")
	}
	if cp.MaxInitAttempts < 1 {
		return errors.New("capture.max_init_attempts must be at least 1")
	}
	if cp.BackoffStepSeconds < 0 || cp.BackoffCapSeconds < cp.BackoffStepSeconds {
		return errors.New("capture.backoff_cap_seconds must be >= capture.backoff_step_seconds >= 0")
	}
	if cp.ProbeIntervalMS < 0 || cp.WarmupMS < 0 || cp.ReadRetryMS < 0 || cp.SkipWaitMS < 0 || cp.InitCooldownSeconds < 0 {
		return errors.New("capture timing values must be >= 0")
	}
	if cp.HTTPTimeoutMS <= 0 {
		return errors.New("capture.http_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validatePacing() error {
	p := c.Pacing
	if p.MinFPS <= 0 {
		return errors.New("pacing.min_fps must be positive")
	}
	if p.MaxFPS < p.MinFPS {
		return errors.New("pacing.max_fps must be >= pacing.min_fps")
	}
	if p.TargetFPS < p.MinFPS || p.TargetFPS > p.MaxFPS {
		return errors.New("pacing.target_fps must be within [min_fps, max_fps]")
	}
	if p.FPSStepDown <= 0 || p.FPSStepUp <= 0 {
		return errors.New("pacing.fps_step_down and pacing.fps_step_up must be positive")
	}
	if p.CPULow >= p.CPUHigh {
		return errors.New("pacing.cpu_low must be below pacing.cpu_high")
	}
	if p.SampleIntervalSeconds < 2 {
		return errors.New("pacing.sample_interval_seconds must be at least 2")
	}
	return nil
}

func (c *Config) validateWatchdog() error {
	w := c.Watchdog
	if w.IntervalSeconds <= 0 {
		return errors.New("watchdog.interval_seconds must be positive")
	}
	if w.StaleSeconds <= w.IntervalSeconds {
		return errors.New("watchdog.stale_seconds must be greater than watchdog.interval_seconds")
	}
	if w.JoinTimeoutSeconds <= 0 || w.StopTimeoutSeconds <= 0 {
		return errors.New("watchdog join and stop timeouts must be positive")
	}
	if w.RestartCooldownSeconds < 0 {
		return errors.New("watchdog.restart_cooldown_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateDisplay() error {
	d := c.Display
	if d.RefreshMS <= 0 {
		return errors.New("display.refresh_ms must be positive")
	}
	if d.ZoomMin < 1 {
		return errors.New("display.zoom_min must be at least 1.0")
	}
	if d.ZoomMax < d.ZoomMin {
		return errors.New("display.zoom_max must be >= display.zoom_min")
	}
	if d.ZoomStep <= 0 {
		return errors.New("display.zoom_step must be positive")
	}
	if d.JPEGQuality < 1 || d.JPEGQuality > 100 {
		return errors.New("display.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateSave() error {
	if c.Save.JPEGQuality < 1 || c.Save.JPEGQuality > 100 {
		return errors.New("save.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateCameras() error {
	seen := make(map[string]struct{}, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("cameras[%d].name must be set", i)
		}
		key := strings.ToLower(cam.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("cameras[%d].name %q is duplicated", i, cam.Name)
		}
		seen[key] = struct{}{}
		if cam.Source == "" && cam.SourceEnv == "" {
			return fmt.Errorf("cameras[%d] (%s): source or source_env must be set", i, cam.Name)
		}
		switch cam.Kind {
		case "auto", "device", "stream", "http":
		default:
			return fmt.Errorf("cameras[%d].kind must be auto, device, stream, or http, got %q", i, cam.Kind)
		}
		switch cam.QualityGate {
		case "auto", "on", "off":
		default:
			return fmt.Errorf("cameras[%d].quality_gate must be auto, on, or off, got %q", i, cam.QualityGate)
		}
		if cam.MinWidth < 0 || cam.MinHeight < 0 {
			return fmt.Errorf("cameras[%d] minimum resolution must be >= 0", i)
		}
	}
	return nil
}
