package logging_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camwatch/internal/config"
	"camwatch/internal/logging"
	"camwatch/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("hello")
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "camwatch.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestConsoleLoggerLiftsComponentAndCamera(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Console: io.Discard,
		Files:   []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewCameraLogger(logger, "capture", "gate").Info("stream stable", logging.Int("width", 1920))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO capture[gate]: stream stable") {
		t.Fatalf("unexpected console prefix: %q", line)
	}
	if !strings.Contains(line, "width=1920") {
		t.Fatalf("expected attribute in console output: %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestEventsPathReceivesJSON(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log")
	eventsPath := filepath.Join(dir, "run.events")
	logger, err := logging.New(logging.Options{
		Format:     "console",
		Level:      "info",
		Console:    io.Discard,
		Files:      []string{logPath},
		EventsPath: eventsPath,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("device released", logging.String(logging.FieldEventType, "device_released"))

	data, err := os.ReadFile(eventsPath)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &payload); err != nil {
		t.Fatalf("decode event line %q: %v", data, err)
	}
	if payload["msg"] != "device released" || payload["level"] != "warn" {
		t.Fatalf("unexpected event payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key in %v", payload)
	}
}

func TestConsoleRecordAttrsNameCamera(t *testing.T) {
	var buf strings.Builder
	logger, err := logging.New(logging.Options{Console: &buf, Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := logging.NewComponentLogger(logger, "watchdog")
	base.Info("camera frames are stale", logging.String(logging.FieldCamera, "dock"), logging.Int("age_seconds", 130))
	base.WithGroup("view").Debug("zoom", logging.Float64("level", 1.4))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "INFO watchdog[dock]: camera frames are stale") || !strings.Contains(lines[0], "age_seconds=130") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "DEBUG watchdog: zoom") || !strings.Contains(lines[1], "view.level=1.4") {
		t.Fatalf("unexpected grouped line %q", lines[1])
	}

	// The per-record camera must not leak into later records.
	buf.Reset()
	base.Info("tick")
	if strings.Contains(buf.String(), "dock") {
		t.Fatalf("camera leaked into shared handler: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsCameraFields(t *testing.T) {
	ctx := services.WithCamera(context.Background(), "yard")
	ctx = services.WithCycleID(ctx, "cycle-1")
	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected two fields, got %v", fields)
	}
	if fields[0].Key != logging.FieldCamera || fields[1].Key != logging.FieldCycleID {
		t.Fatalf("unexpected field keys: %v", fields)
	}
}
