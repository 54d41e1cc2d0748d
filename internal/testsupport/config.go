package testsupport

import (
	"path/filepath"
	"testing"

	"camwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Timings are shortened so lifecycle tests finish quickly, the API is bound
// to an ephemeral port and no cameras are configured.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CaptureDir = filepath.Join(base, "captures")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.EnvFile = ""
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Capture.WarmupMS = 0
	cfgVal.Capture.ReadRetryMS = 1
	cfgVal.Capture.SkipWaitMS = 1
	cfgVal.Watchdog.RestartCooldownSeconds = 0
	cfgVal.Watchdog.JoinTimeoutSeconds = 1
	cfgVal.Watchdog.StopTimeoutSeconds = 1
	cfgVal.Watchdog.IntervalSeconds = 3600

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithCamera appends a camera with the given source.
func WithCamera(name, source string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cameras = append(b.cfg.Cameras, config.Camera{Name: name, Source: source, Kind: "auto"})
	}
}

// WithManualCamera appends a camera that does not start with the daemon.
func WithManualCamera(name, source string) ConfigOption {
	return func(b *configBuilder) {
		off := false
		b.cfg.Cameras = append(b.cfg.Cameras, config.Camera{Name: name, Source: source, Kind: "auto", AutoStart: &off})
	}
}

// WithoutAPI disables the HTTP API.
func WithoutAPI() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIBind = ""
	}
}

// WithAPIToken requires a bearer token on the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithWatermark enables the capture watermark.
func WithWatermark(site string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Save.Watermark = true
		b.cfg.Save.WatermarkSite = site
	}
}
