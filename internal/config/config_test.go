package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camwatch/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "camwatch")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.CaptureDir != filepath.Join(tempHome, "camwatch", "captures") {
		t.Fatalf("unexpected capture dir: %q", cfg.Paths.CaptureDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.SocketPath() != filepath.Join(wantState, "camwatch.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
	if cfg.Capture.MaxConsecutiveFailures != 15 || cfg.Capture.StableFrames != 3 {
		t.Fatalf("unexpected capture defaults: %+v", cfg.Capture)
	}
	if cfg.Watchdog.StaleAfter() != 2*time.Minute {
		t.Fatalf("unexpected stale window: %s", cfg.Watchdog.StaleAfter())
	}
	if cfg.Display.Refresh() != 66*time.Millisecond {
		t.Fatalf("unexpected refresh: %s", cfg.Display.Refresh())
	}
	if len(cfg.Cameras) != 0 {
		t.Fatalf("expected no cameras by default, got %d", len(cfg.Cameras))
	}
}

func TestLoadCamerasWithEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("GATE_URL=rtsp://user:pw@gate.local/stream\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("GATE_URL") })

	configPath := filepath.Join(dir, "config.toml")
	content := `
[paths]
state_dir = "` + filepath.Join(dir, "state") + `"
env_file = "` + envPath + `"

[[cameras]]
name = " Gate "
source_env = "GATE_URL"
kind = "STREAM"

[[cameras]]
name = "bench"
source = "0"
auto_start = false
quality_gate = "off"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if len(cfg.Cameras) != 2 {
		t.Fatalf("expected 2 cameras, got %d", len(cfg.Cameras))
	}
	gate, ok := cfg.Camera("gate")
	if !ok {
		t.Fatal("expected case-insensitive camera lookup")
	}
	if gate.Kind != "stream" || gate.QualityGate != "auto" {
		t.Fatalf("unexpected normalization: %+v", gate)
	}
	if got := gate.ResolvedSource(); got != "rtsp://user:pw@gate.local/stream" {
		t.Fatalf("expected env-file source, got %q", got)
	}
	if !gate.StartsAutomatically() {
		t.Fatal("expected auto_start default true")
	}
	bench, _ := cfg.Camera("bench")
	if bench.StartsAutomatically() {
		t.Fatal("expected bench auto_start false")
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"fps outside range", func(c *config.Config) { c.Pacing.TargetFPS = 60 }, "pacing.target_fps"},
		{"sample interval", func(c *config.Config) { c.Pacing.SampleIntervalSeconds = 1 }, "sample_interval_seconds"},
		{"cpu watermarks", func(c *config.Config) { c.Pacing.CPULow = 90 }, "cpu_low"},
		{"stale window", func(c *config.Config) { c.Watchdog.StaleSeconds = 10 }, "stale_seconds"},
		{"zoom", func(c *config.Config) { c.Display.ZoomMin = 0.5 }, "zoom_min"},
		{"jpeg", func(c *config.Config) { c.Save.JPEGQuality = 0 }, "save.jpeg_quality"},
		{"stable frames", func(c *config.Config) { c.Capture.StableFrames = 0 }, "stable_frames"},
		{"camera without source", func(c *config.Config) {
			c.Cameras = []config.Camera{{Name: "x", Kind: "auto", QualityGate: "auto"}}
		}, "source"},
		{"duplicate camera", func(c *config.Config) {
			c.Cameras = []config.Camera{
				{Name: "x", Source: "0", Kind: "auto", QualityGate: "auto"},
				{Name: "X", Source: "1", Kind: "auto", QualityGate: "auto"},
			}
		}, "duplicated"},
		{"camera kind", func(c *config.Config) {
			c.Cameras = []config.Camera{{Name: "x", Source: "0", Kind: "usb", QualityGate: "auto"}}
		}, "kind"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Cameras) != 2 {
		t.Fatalf("expected sample cameras, got %d", len(cfg.Cameras))
	}
}
