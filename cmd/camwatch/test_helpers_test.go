package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/daemon"
	"camwatch/internal/device/devicetest"
	"camwatch/internal/ipc"
	"camwatch/internal/logging"
	"camwatch/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	shutdowns  chan struct{}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithCamera("gate", "0"), testsupport.WithoutAPI())
	configPath := filepath.Join(homeDir, ".config", "camwatch", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	logger := logging.NewNop()
	d, err := daemon.New(cfg, daemon.Options{
		Source:         devicetest.Scripted(devicetest.Frame(320, 240)),
		Journal:        testsupport.MustOpenJournal(t, cfg),
		Logger:         logger,
		DisableHotplug: true,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon Start: %v", err)
	}

	shutdowns := make(chan struct{}, 1)
	socketPath := cfg.SocketPath()
	var srv *ipc.Server
	srv, err = ipc.NewServer(ctx, socketPath, d, func() {
		shutdowns <- struct{}{}
		srv.Close()
	}, logger)
	if err != nil {
		cancel()
		d.Stop()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		shutdowns:  shutdowns,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeTestConfig writes only paths and cameras so the loaded file validates
// with production timings while pointing at the test directories.
func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ncapture_dir = %q\nstate_dir = %q\nlog_dir = %q\nenv_file = \"\"\napi_bind = \"\"\n",
		cfg.Paths.CaptureDir, cfg.Paths.StateDir, cfg.Paths.LogDir)
	for _, cam := range cfg.Cameras {
		fmt.Fprintf(&b, "\n[[cameras]]\nname = %q\nsource = %q\n", cam.Name, cam.Source)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
