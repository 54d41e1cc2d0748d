package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With(slog.String(FieldCamera, "gate"))
	logger.Debug("probe frame")
	logger.Info("stream stable")

	if strings.Contains(infoBuf.String(), "probe frame") {
		t.Fatalf("info handler received debug record: %q", infoBuf.String())
	}
	for _, want := range []string{"probe frame", "stream stable", "camera=gate"} {
		if !strings.Contains(debugBuf.String(), want) {
			t.Fatalf("debug handler missing %q: %q", want, debugBuf.String())
		}
	}
}

func TestFanoutHandlerHandleCopiesRecord(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	rec := slog.NewRecord(time.Now(), slog.LevelWarn, "read failed", 0)
	rec.AddAttrs(slog.Int("failures", 3))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	for _, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, `"failures":3`) {
			t.Fatalf("expected attribute in output, got %q", out)
		}
	}
}
