// Package httppoll reads frames by fetching a single image from an HTTP
// snapshot endpoint on every read.
package httppoll

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"

	"camwatch/internal/device"
	"camwatch/internal/services"
)

const maxSnapshotBytes = 32 << 20

// NewClient returns an HTTP client tuned for polling a single camera.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// Source opens polling handles. A handle owns its client so releasing it
// drops the idle connections it kept.
type Source struct {
	// Client overrides the per-handle client; tests point it at httptest.
	Client *http.Client
}

func (s Source) Open(ctx context.Context, params device.Params) (device.Handle, error) {
	if params.Locator.Kind != device.KindHTTP {
		return nil, services.Wrap(services.ErrConfiguration, "", "open", "httppoll needs an http locator", nil)
	}
	client := s.Client
	if client == nil {
		client = NewClient(params.Timeout)
	}
	h := &handle{client: client, url: params.Locator.URL, display: params.Locator.String(), timeout: params.Timeout}
	// A first fetch verifies the endpoint so open failures surface as such.
	if _, err := h.fetch(ctx); err != nil {
		h.client.CloseIdleConnections()
		return nil, services.Wrap(services.ErrDeviceOpen, "", "open", h.display, err)
	}
	return h, nil
}

type handle struct {
	client  *http.Client
	url     string
	display string
	timeout time.Duration
}

func (h *handle) Read(ctx context.Context) (image.Image, error) {
	img, err := h.fetch(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrFrameRead, "", "read", h.display, err)
	}
	return img, nil
}

func (h *handle) Release() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *handle) fetch(ctx context.Context) (image.Image, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("snapshot returned %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("snapshot is empty")
	}
	return img, nil
}
