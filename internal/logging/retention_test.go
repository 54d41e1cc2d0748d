package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"camwatch/internal/logging"
)

func TestPruneRunLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -40)

	files := map[string]time.Time{
		"camwatch-old.log":    old,
		"camwatch-old.events": old,
		"camwatch-live.log":   old,
		"camwatch-fresh.log":  now.Add(-time.Hour),
		"notes.txt":           old,
	}
	for name, mtime := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}

	removed := logging.PruneRunLogs(nil, dir, 30, now, filepath.Join(dir, "camwatch-live.log"))
	if removed != 2 {
		t.Fatalf("expected 2 files removed, got %d", removed)
	}
	for name, wantGone := range map[string]bool{
		"camwatch-old.log":    true,
		"camwatch-old.events": true,
		"camwatch-live.log":   false,
		"camwatch-fresh.log":  false,
		"notes.txt":           false,
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		if gone := os.IsNotExist(err); gone != wantGone {
			t.Fatalf("%s: gone=%v want %v", name, gone, wantGone)
		}
	}

	if got := logging.PruneRunLogs(nil, dir, 0, now); got != 0 {
		t.Fatalf("retention 0 should disable pruning, removed %d", got)
	}
}
