package config

const (
	defaultConfigPath = "~/.config/camwatch/config.toml"
	defaultEnvFile    = "~/.config/camwatch/.env"
	defaultCaptureDir = "~/camwatch/captures"
	defaultStateDir   = "~/.local/share/camwatch"
	defaultLogDir     = "~/.local/share/camwatch/logs"
	defaultAPIBind    = "127.0.0.1:7490"

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30

	defaultMinWidth               = 1280
	defaultMinHeight              = 720
	defaultPreferredWidth         = 1920
	defaultPreferredHeight        = 1080
	defaultBufferSize             = 3
	defaultStableFrames           = 3
	defaultProbeAttempts          = 10
	defaultProbeIntervalMS        = 100
	defaultWarmupMS               = 2000
	defaultMaxConsecutiveFailures = 15
	defaultReadRetryMS            = 100
	defaultSkipWaitMS             = 20
	defaultHTTPTimeoutMS          = 2000
	defaultMaxInitAttempts        = 3
	defaultInitCooldownSeconds    = 30
	defaultBackoffStepSeconds     = 2
	defaultBackoffCapSeconds      = 10

	defaultTargetFPS             = 25
	defaultMinFPS                = 15
	defaultMaxFPS                = 30
	defaultFPSStepDown           = 1
	defaultFPSStepUp             = 0.5
	defaultCPUHigh               = 85
	defaultCPULow                = 50
	defaultSkipCPUThreshold      = 80
	defaultMemoryHigh            = 85
	defaultSampleIntervalSeconds = 2

	defaultWatchdogIntervalSeconds = 30
	defaultStaleSeconds            = 120
	defaultJoinTimeoutSeconds      = 3
	defaultStopTimeoutSeconds      = 5
	defaultRestartCooldownSeconds  = 2

	defaultRefreshMS         = 66
	defaultSmoothMinViewport = 400
	defaultZoomMin           = 1.0
	defaultZoomMax           = 5.0
	defaultZoomStep          = 0.2
	defaultDisplayJPEG       = 80

	defaultSaveJPEGQuality = 95
	defaultSavePrefix      = "camera"

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CaptureDir: defaultCaptureDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			EnvFile:    defaultEnvFile,
			APIBind:    defaultAPIBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Capture: Capture{
			MinWidth:               defaultMinWidth,
			MinHeight:              defaultMinHeight,
			PreferredWidth:         defaultPreferredWidth,
			PreferredHeight:        defaultPreferredHeight,
			BufferSize:             defaultBufferSize,
			StableFrames:           defaultStableFrames,
			ProbeAttempts:          defaultProbeAttempts,
			ProbeIntervalMS:        defaultProbeIntervalMS,
			WarmupMS:               defaultWarmupMS,
			MaxConsecutiveFailures: defaultMaxConsecutiveFailures,
			ReadRetryMS:            defaultReadRetryMS,
			SkipWaitMS:             defaultSkipWaitMS,
			HTTPTimeoutMS:          defaultHTTPTimeoutMS,
			MaxInitAttempts:        defaultMaxInitAttempts,
			InitCooldownSeconds:    defaultInitCooldownSeconds,
			BackoffStepSeconds:     defaultBackoffStepSeconds,
			BackoffCapSeconds:      defaultBackoffCapSeconds,
		},
		Pacing: Pacing{
			TargetFPS:             defaultTargetFPS,
			MinFPS:                defaultMinFPS,
			MaxFPS:                defaultMaxFPS,
			FPSStepDown:           defaultFPSStepDown,
			FPSStepUp:             defaultFPSStepUp,
			CPUHigh:               defaultCPUHigh,
			CPULow:                defaultCPULow,
			SkipCPUThreshold:      defaultSkipCPUThreshold,
			MemoryHigh:            defaultMemoryHigh,
			SampleIntervalSeconds: defaultSampleIntervalSeconds,
		},
		Watchdog: Watchdog{
			IntervalSeconds:        defaultWatchdogIntervalSeconds,
			StaleSeconds:           defaultStaleSeconds,
			JoinTimeoutSeconds:     defaultJoinTimeoutSeconds,
			StopTimeoutSeconds:     defaultStopTimeoutSeconds,
			RestartCooldownSeconds: defaultRestartCooldownSeconds,
		},
		Display: Display{
			RefreshMS:         defaultRefreshMS,
			SmoothMinViewport: defaultSmoothMinViewport,
			ZoomMin:           defaultZoomMin,
			ZoomMax:           defaultZoomMax,
			ZoomStep:          defaultZoomStep,
			JPEGQuality:       defaultDisplayJPEG,
		},
		Save: Save{
			JPEGQuality: defaultSaveJPEGQuality,
			Prefix:      defaultSavePrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Restarts:       true,
			Stale:          true,
		},
	}
}
