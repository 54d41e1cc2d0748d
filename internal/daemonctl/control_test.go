package daemonctl_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"testing"
	"time"

	"camwatch/internal/daemonctl"
)

func TestLaunchArgs(t *testing.T) {
	args := daemonctl.LaunchOptions{
		SocketPath: "/run/camwatch.sock",
		ConfigPath: "/etc/camwatch.toml",
		LogLevel:   "debug",
		NoHotplug:  true,
	}.Args()
	want := []string{"daemon", "--socket", "/run/camwatch.sock", "--config", "/etc/camwatch.toml", "--log-level", "debug", "--no-hotplug"}
	if !slices.Equal(args, want) {
		t.Fatalf("unexpected args %v", args)
	}
	if got := (daemonctl.LaunchOptions{}).Args(); !slices.Equal(got, []string{"daemon"}) {
		t.Fatalf("unexpected bare args %v", got)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	dir := t.TempDir()
	_, err := daemonctl.StopAndTerminate(filepath.Join(dir, "camwatch.sock"), filepath.Join(dir, "camwatch.pid"), time.Second, true)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if err := daemonctl.WaitForShutdown(filepath.Join(dir, "camwatch.sock"), time.Second); err != nil {
		t.Fatalf("missing socket should count as stopped: %v", err)
	}
}

func TestForceKillProcess(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "camwatch.pid")

	if _, err := daemonctl.ForceKillProcess(pidPath, 0); err == nil {
		t.Fatal("expected error without pid")
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}

	child := exec.Command("sleep", "30")
	if err := child.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	waited := make(chan error, 1)
	go func() { waited <- child.Wait() }()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(child.Process.Pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}

	pid, err := daemonctl.ForceKillProcess(pidPath, 0)
	if err != nil {
		t.Fatalf("ForceKillProcess: %v", err)
	}
	if pid != child.Process.Pid {
		t.Fatalf("killed pid %d, want %d", pid, child.Process.Pid)
	}
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("child survived SIGKILL")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, stat err=%v", err)
	}
}
