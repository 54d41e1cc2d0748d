package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestHotplugMonitorNilSafety(t *testing.T) {
	var m *hotplugMonitor
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got: %v", err)
	}
}

func TestHotplugMonitorStopIdempotent(t *testing.T) {
	m := newHotplugMonitor(nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("expected Running() to return false after Stop on unstarted monitor")
	}
}

func TestBuildHotplugMatcher(t *testing.T) {
	matcher := buildHotplugMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	tests := []struct {
		name  string
		event netlink.UEvent
		want  bool
	}{
		{
			name: "video add",
			event: netlink.UEvent{
				Action: netlink.ADD,
				Env:    map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "/dev/video0"},
			},
			want: true,
		},
		{
			name: "video remove",
			event: netlink.UEvent{
				Action: netlink.REMOVE,
				Env:    map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "/dev/video0"},
			},
			want: true,
		},
		{
			name: "block add",
			event: netlink.UEvent{
				Action: netlink.ADD,
				Env:    map[string]string{"SUBSYSTEM": "block", "DEVNAME": "/dev/sda"},
			},
			want: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := matcher.Evaluate(tc.event); got != tc.want {
				t.Fatalf("Evaluate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVideoIndex(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want int
		ok   bool
	}{
		{env: map[string]string{"DEVNAME": "/dev/video2"}, want: 2, ok: true},
		{env: map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-1/video4linux/video4"}, want: 4, ok: true},
		{env: map[string]string{"DEVNAME": "/dev/sda"}, ok: false},
		{env: map[string]string{}, ok: false},
	}
	for _, tc := range tests {
		got, ok := videoIndex(netlink.UEvent{Env: tc.env})
		if ok != tc.ok || got != tc.want {
			t.Fatalf("videoIndex(%v) = %d, %v; want %d, %v", tc.env, got, ok, tc.want, tc.ok)
		}
	}
}

func TestHandleEventCallsHandler(t *testing.T) {
	var gotIndex int
	var gotAction string
	m := newHotplugMonitor(nil, func(_ context.Context, index int, action string) {
		gotIndex, gotAction = index, action
	})
	m.handleEvent(context.Background(), netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "/dev/video3"},
	})
	if gotIndex != 3 || gotAction != "add" {
		t.Fatalf("handler got index=%d action=%q", gotIndex, gotAction)
	}
}
