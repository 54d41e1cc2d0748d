package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	CaptureDir string `toml:"capture_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	EnvFile    string `toml:"env_file"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Capture holds device, quality gate, and recovery tunables shared by every camera.
type Capture struct {
	MinWidth               int `toml:"min_width"`
	MinHeight              int `toml:"min_height"`
	PreferredWidth         int `toml:"preferred_width"`
	PreferredHeight        int `toml:"preferred_height"`
	BufferSize             int `toml:"buffer_size"`
	StableFrames           int `toml:"stable_frames"`
	ProbeAttempts          int `toml:"probe_attempts"`
	ProbeIntervalMS        int `toml:"probe_interval_ms"`
	WarmupMS               int `toml:"warmup_ms"`
	MaxConsecutiveFailures int `toml:"max_consecutive_failures"`
	ReadRetryMS            int `toml:"read_retry_ms"`
	SkipWaitMS             int `toml:"skip_wait_ms"`
	HTTPTimeoutMS          int `toml:"http_timeout_ms"`
	MaxInitAttempts        int `toml:"max_init_attempts"`
	InitCooldownSeconds    int `toml:"init_cooldown_seconds"`
	BackoffStepSeconds     int `toml:"backoff_step_seconds"`
	BackoffCapSeconds      int `toml:"backoff_cap_seconds"`
}

// Pacing contains the resource-adaptive frame rate tunables.
type Pacing struct {
	TargetFPS             float64 `toml:"target_fps"`
	MinFPS                float64 `toml:"min_fps"`
	MaxFPS                float64 `toml:"max_fps"`
	FPSStepDown           float64 `toml:"fps_step_down"`
	FPSStepUp             float64 `toml:"fps_step_up"`
	CPUHigh               float64 `toml:"cpu_high"`
	CPULow                float64 `toml:"cpu_low"`
	SkipCPUThreshold      float64 `toml:"skip_cpu_threshold"`
	MemoryHigh            float64 `toml:"memory_high"`
	SampleIntervalSeconds int     `toml:"sample_interval_seconds"`
}

// Watchdog contains supervisor polling and restart timing.
type Watchdog struct {
	IntervalSeconds        int `toml:"interval_seconds"`
	StaleSeconds           int `toml:"stale_seconds"`
	JoinTimeoutSeconds     int `toml:"join_timeout_seconds"`
	StopTimeoutSeconds     int `toml:"stop_timeout_seconds"`
	RestartCooldownSeconds int `toml:"restart_cooldown_seconds"`
}

// Display contains the live view cadence and zoom bounds.
type Display struct {
	RefreshMS         int     `toml:"refresh_ms"`
	SmoothMinViewport int     `toml:"smooth_min_viewport"`
	ZoomMin           float64 `toml:"zoom_min"`
	ZoomMax           float64 `toml:"zoom_max"`
	ZoomStep          float64 `toml:"zoom_step"`
	JPEGQuality       int     `toml:"jpeg_quality"`
}

// Save contains capture persistence settings.
type Save struct {
	JPEGQuality   int    `toml:"jpeg_quality"`
	Prefix        string `toml:"prefix"`
	Watermark     bool   `toml:"watermark"`
	WatermarkSite string `toml:"watermark_site"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Restarts       bool   `toml:"restarts"`
	Stale          bool   `toml:"stale"`
	Captures       bool   `toml:"captures"`
}

// Camera describes one supervised image source.
type Camera struct {
	Name        string `toml:"name"`
	Source      string `toml:"source"`
	SourceEnv   string `toml:"source_env"`
	Kind        string `toml:"kind"`
	AutoStart   *bool  `toml:"auto_start"`
	QualityGate string `toml:"quality_gate"`
	MinWidth    int    `toml:"min_width"`
	MinHeight   int    `toml:"min_height"`
}

// Config encapsulates all configuration values for camwatch.
//
// Configuration sections by subsystem:
//   - Paths: capture, state, and log directories plus the API bind address
//   - Logging: log format, level, and retention
//   - Capture: device parameters, quality gate, and recovery backoff
//   - Pacing: resource-adaptive frame rate and skip thresholds
//   - Watchdog: supervisor polling and restart timing
//   - Display: live view cadence and zoom bounds
//   - Save: capture encoding and watermarking
//   - Notifications: ntfy push notification settings
//   - Cameras: the supervised sources
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Capture       Capture       `toml:"capture"`
	Pacing        Pacing        `toml:"pacing"`
	Watchdog      Watchdog      `toml:"watchdog"`
	Display       Display       `toml:"display"`
	Save          Save          `toml:"save"`
	Notifications Notifications `toml:"notifications"`
	Cameras       []Camera      `toml:"cameras"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("camwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CaptureDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "camwatch.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "camwatch.lock")
}

// PIDPath returns where the running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "camwatch.pid")
}

// JournalPath returns the capture journal database location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// Camera returns the named camera definition.
func (c *Config) Camera(name string) (Camera, bool) {
	for _, cam := range c.Cameras {
		if strings.EqualFold(cam.Name, name) {
			return cam, true
		}
	}
	return Camera{}, false
}

// StartsAutomatically reports whether the daemon should start the camera at launch.
func (c Camera) StartsAutomatically() bool {
	return c.AutoStart == nil || *c.AutoStart
}

// ResolvedSource returns the configured source, preferring the environment
// variable named by source_env when it is set.
func (c Camera) ResolvedSource() string {
	if env := strings.TrimSpace(c.SourceEnv); env != "" {
		if value, ok := os.LookupEnv(env); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(c.Source)
}

func (c Capture) ProbeInterval() time.Duration { return ms(c.ProbeIntervalMS) }
func (c Capture) Warmup() time.Duration        { return ms(c.WarmupMS) }
func (c Capture) ReadRetry() time.Duration     { return ms(c.ReadRetryMS) }
func (c Capture) SkipWait() time.Duration      { return ms(c.SkipWaitMS) }
func (c Capture) HTTPTimeout() time.Duration   { return ms(c.HTTPTimeoutMS) }
func (c Capture) InitCooldown() time.Duration  { return seconds(c.InitCooldownSeconds) }
func (c Capture) BackoffStep() time.Duration   { return seconds(c.BackoffStepSeconds) }
func (c Capture) BackoffCap() time.Duration    { return seconds(c.BackoffCapSeconds) }

func (p Pacing) SampleInterval() time.Duration { return seconds(p.SampleIntervalSeconds) }

func (w Watchdog) Interval() time.Duration        { return seconds(w.IntervalSeconds) }
func (w Watchdog) StaleAfter() time.Duration      { return seconds(w.StaleSeconds) }
func (w Watchdog) JoinTimeout() time.Duration     { return seconds(w.JoinTimeoutSeconds) }
func (w Watchdog) StopTimeout() time.Duration     { return seconds(w.StopTimeoutSeconds) }
func (w Watchdog) RestartCooldown() time.Duration { return seconds(w.RestartCooldownSeconds) }

func (d Display) Refresh() time.Duration { return ms(d.RefreshMS) }

// NotifyTimeout returns the ntfy request timeout.
func (n Notifications) NotifyTimeout() time.Duration {
	if n.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return seconds(n.RequestTimeout)
}

func ms(v int) time.Duration      { return time.Duration(v) * time.Millisecond }
func seconds(v int) time.Duration { return time.Duration(v) * time.Second }

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
