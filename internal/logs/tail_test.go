package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"camwatch/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camwatch.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestReadLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	chunk, err := logs.Read(path, logs.Options{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(chunk.Lines) != 2 || chunk.Lines[0] != "b" || chunk.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
	if chunk.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", chunk.Offset)
	}
}

func TestReadFromOffsetSkipsPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthr")

	chunk, err := logs.Read(path, logs.Options{Offset: 4})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "two" || chunk.Offset != 8 {
		t.Fatalf("unexpected chunk %#v", chunk)
	}

	chunk, err = logs.Read(path, logs.Options{Offset: 100})
	if err != nil {
		t.Fatalf("Read past end: %v", err)
	}
	if len(chunk.Lines) != 2 {
		t.Fatalf("truncated file should restart from the top, got %#v", chunk.Lines)
	}
}

func TestReadMissingFile(t *testing.T) {
	chunk, err := logs.Read(filepath.Join(t.TempDir(), "absent.log"), logs.Options{Offset: -1, Limit: 5})
	if err != nil || len(chunk.Lines) != 0 {
		t.Fatalf("missing file should be empty, got %#v %v", chunk, err)
	}
}

func TestCameraFilter(t *testing.T) {
	filter := logs.CameraFilter("gate")
	tests := []struct {
		line string
		want bool
	}{
		{"2026-01-02T03:04:05Z INFO session[gate]: capture cycle started", true},
		{"2026-01-02T03:04:05Z WARN gate: restarting", true},
		{`{"level":"INFO","camera":"gate","msg":"x"}`, true},
		{"2026-01-02T03:04:05Z INFO session[gatehouse]: capture cycle started", false},
		{"2026-01-02T03:04:05Z INFO daemon: camwatch daemon started", false},
	}
	for _, tt := range tests {
		if got := filter(tt.line); got != tt.want {
			t.Fatalf("filter(%q) = %v", tt.line, got)
		}
	}
	if logs.CameraFilter(" ") != nil {
		t.Fatal("blank camera should disable filtering")
	}

	path := writeLog(t, "x session[gate]: a\nx session[dock]: b\nx session[gate]: c\n")
	chunk, err := logs.Read(path, logs.Options{Offset: -1, Limit: 10, Filter: filter})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(chunk.Lines) != 2 {
		t.Fatalf("expected two gate lines, got %#v", chunk.Lines)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, 6, 10*time.Millisecond, nil, func(lines []string) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, lines...)
			if len(got) >= 2 {
				cancel()
			}
			return nil
		})
	}()

	time.Sleep(30 * time.Millisecond)
	appendLog(t, path, "later\n")
	appendLog(t, path, "latest\n")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "later" || got[1] != "latest" {
		t.Fatalf("unexpected followed lines %#v", got)
	}
}
