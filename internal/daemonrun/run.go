// Package daemonrun wires the camwatch daemon process: logging, the journal,
// the device stack, the daemon itself and the IPC socket.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/daemon"
	"camwatch/internal/device"
	"camwatch/internal/device/httppoll"
	"camwatch/internal/device/opencv"
	"camwatch/internal/ipc"
	"camwatch/internal/journal"
	"camwatch/internal/logging"
	"camwatch/internal/notifications"
	"camwatch/internal/preflight"
	"camwatch/internal/resources"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// NoHotplug disables the udev listener, e.g. inside containers without
	// netlink access.
	NoHotplug bool
	// SocketPath overrides the configured IPC socket location.
	SocketPath string
}

// Run starts the camwatch daemon and blocks until a signal or an IPC
// shutdown request ends it.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, stopSignals := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	runCtx, shutdown := context.WithCancel(signalCtx)
	defer shutdown()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("camwatch-%s.log", runID))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("camwatch-%s.events", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Files:       []string{logPath},
		EventsPath:  eventsPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update camwatch.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, time.Now(), logPath, eventsPath)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(runCtx, logger, cfg)

	store, err := journal.Open(cfg.JournalPath())
	if err != nil {
		logger.Error("open capture journal", logging.Error(err))
		return err
	}
	pruneJournal(runCtx, logger, store, cfg.Logging.RetentionDays)

	provider, err := resources.NewProcProvider("")
	if err != nil {
		logging.WarnWithContext(logger, "procfs unavailable, adaptive pacing disabled", "procfs_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "cameras run at their target rate regardless of host load"),
		)
	}
	var hostLoad resources.Provider
	if provider != nil {
		hostLoad = provider
	}

	cameras := opencv.New(logger)
	source := device.Router{
		Device: cameras,
		Stream: cameras,
		HTTP:   httppoll.Source{Client: httppoll.NewClient(cfg.Capture.HTTPTimeout())},
	}

	d, err := daemon.New(cfg, daemon.Options{
		Source:         source,
		Provider:       hostLoad,
		Journal:        store,
		Notifier:       notifications.NewService(cfg),
		Logger:         logger,
		DisableHotplug: opts.NoHotplug,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(runCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	socketPath := cfg.SocketPath()
	if opts.SocketPath != "" {
		socketPath = opts.SocketPath
	}
	ipcServer, err := ipc.NewServer(runCtx, socketPath, d, shutdown, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("camwatch daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", socketPath),
		logging.String("log_path", logPath),
		logging.Int("cameras", len(cfg.Cameras)),
	)

	<-runCtx.Done()
	logger.Info("camwatch daemon shutting down")
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "affected cameras will retry with backoff"),
		)
	}
}

func pruneJournal(ctx context.Context, logger *slog.Logger, store *journal.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := store.PruneEvents(ctx, cutoff)
	if err != nil {
		logger.Warn("journal prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("pruned journal events",
			logging.Int64("removed", removed),
			logging.Int("retention_days", retentionDays),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "camwatch.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
