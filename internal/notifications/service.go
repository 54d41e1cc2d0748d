package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"camwatch/internal/config"
)

const userAgent = "Camwatch-Go/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyCameraRestarted(ctx context.Context, camera, reason string) error
	NotifyCameraStale(ctx context.Context, camera string, since time.Duration) error
	NotifyCaptureSaved(ctx context.Context, camera, path string) error
	NotifySaveFailed(ctx context.Context, camera string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		restarts: cfg.Notifications.Restarts,
		stale:    cfg.Notifications.Stale,
		captures: cfg.Notifications.Captures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	restarts bool
	stale    bool
	captures bool
}

func (n *ntfyService) NotifyCameraRestarted(ctx context.Context, camera, reason string) error {
	if !n.restarts {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unspecified"
	}
	return n.send(ctx, payload{
		title:   "Camwatch - Camera Restarted",
		message: fmt.Sprintf("🔄 %s restarted (%s)", strings.TrimSpace(camera), reason),
		tags:    []string{"camwatch", "camera", "restart"},
	})
}

func (n *ntfyService) NotifyCameraStale(ctx context.Context, camera string, since time.Duration) error {
	if !n.stale {
		return nil
	}
	since = max(since.Round(time.Second), 0)
	return n.send(ctx, payload{
		title:    "Camwatch - Camera Stale",
		message:  fmt.Sprintf("⚠️ No frames from %s for %s", strings.TrimSpace(camera), since),
		tags:     []string{"camwatch", "camera", "stale"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyCaptureSaved(ctx context.Context, camera, path string) error {
	if !n.captures {
		return nil
	}
	message := fmt.Sprintf("📸 Capture saved: %s", strings.TrimSpace(camera))
	if path = strings.TrimSpace(path); path != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, path)
	}
	return n.send(ctx, payload{
		title:   "Camwatch - Capture Saved",
		message: message,
		tags:    []string{"camwatch", "capture", "saved"},
	})
}

func (n *ntfyService) NotifySaveFailed(ctx context.Context, camera string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Save failed")
	if camera = strings.TrimSpace(camera); camera != "" {
		builder.WriteString(" for ")
		builder.WriteString(camera)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Camwatch - Save Failed",
		message:  builder.String(),
		tags:     []string{"camwatch", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Camwatch - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"camwatch", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCameraRestarted(context.Context, string, string) error    { return nil }
func (noopService) NotifyCameraStale(context.Context, string, time.Duration) error { return nil }
func (noopService) NotifyCaptureSaved(context.Context, string, string) error       { return nil }
func (noopService) NotifySaveFailed(context.Context, string, error) error          { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
