package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"camwatch/internal/journal"
	"camwatch/internal/logging"
)

func TestEnsureCurrentLogPointerReplacesLink(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "camwatch-a.log")
	second := filepath.Join(dir, "camwatch-b.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "camwatch.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "camwatch-b.log" {
		t.Fatalf("pointer targets %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camwatch.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be ignored: %v", err)
	}
}

func TestPruneJournalHonorsRetention(t *testing.T) {
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if err := store.RecordEvent(ctx, "gate", journal.EventRestarted, "manual", ""); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	pruneJournal(ctx, logging.NewNop(), store, 0)
	pruneJournal(ctx, logging.NewNop(), store, 30)
	events, err := store.ListEvents(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("fresh event should survive pruning, got %d", len(events))
	}
	if events[0].CreatedAt.After(time.Now().Add(time.Minute)) {
		t.Fatalf("unexpected event timestamp %v", events[0].CreatedAt)
	}
}
