package main

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"camwatch/internal/session"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Camwatch", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Camwatch:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Camwatch", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestCameraHealth(t *testing.T) {
	tests := []struct {
		name   string
		status session.Status
		kind   statusKind
		detail string
	}{
		{"stopped", session.Status{}, statusInfo, "Stopped"},
		{"config", session.Status{ShouldRun: true, LastErrorKind: "configuration", LastError: "bad url"}, statusError, "bad url"},
		{"dead", session.Status{ShouldRun: true}, statusWarn, "not running"},
		{"stable", session.Status{ShouldRun: true, Running: true, Stable: true, EffectiveFPS: 24.5}, statusOK, "24.5 fps"},
		{"backoff", session.Status{ShouldRun: true, Running: true, State: "backoff", LastErrorKind: "frame_read"}, statusWarn, "Backoff after Frame Read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, detail := cameraHealth(tt.status)
			if kind != tt.kind || !strings.Contains(detail, tt.detail) {
				t.Fatalf("cameraHealth = %v %q", kind, detail)
			}
		})
	}
}

func TestCameraRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := cameraRows([]session.Status{{
		Name:         "gate",
		Kind:         "stream",
		State:        "streaming",
		EffectiveFPS: 12.04,
		TargetFPS:    15,
		Accepted:     42,
		DropRate:     0.125,
		Restarts:     2,
		LastSuccess:  now.Add(-90 * time.Second),
	}}, now)
	want := []string{"gate", "Stream", "Streaming", "12.0/15.0", "42", "12.5%", "2", "1m30s ago"}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Fatalf("column %d: got %q want %q", i, rows[0][i], cell)
		}
	}
}

func TestFrameAge(t *testing.T) {
	now := time.Now()
	if got := frameAge(time.Time{}, now); got != "never" {
		t.Fatalf("zero time: %q", got)
	}
	if got := frameAge(now.Add(-200*time.Millisecond), now); got != "now" {
		t.Fatalf("sub-second age: %q", got)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable([]string{"Camera", "Frames"}, [][]string{{"gate", "7"}, {"dock"}}, []columnAlignment{alignLeft, alignRight})
	requireContains(t, out, "Camera")
	requireContains(t, out, "gate")
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("table should end with a newline")
	}
}
