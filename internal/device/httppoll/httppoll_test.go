package httppoll_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"camwatch/internal/device"
	"camwatch/internal/device/httppoll"
	"camwatch/internal/services"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestReadDecodesSnapshot(t *testing.T) {
	body := encodePNG(t, 32, 24)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	src := httppoll.Source{Client: srv.Client()}
	h, err := src.Open(context.Background(), device.Params{
		Locator: device.Locator{Kind: device.KindHTTP, URL: srv.URL + "/snap.png"},
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Release()

	img, err := h.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Fatalf("unexpected bounds %v", b)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected open probe plus one read, got %d requests", hits.Load())
	}
}

func TestOpenFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := httppoll.Source{Client: srv.Client()}.Open(context.Background(), device.Params{
		Locator: device.Locator{Kind: device.KindHTTP, URL: srv.URL},
	})
	if !errors.Is(err, services.ErrDeviceOpen) {
		t.Fatalf("expected device open error, got %v", err)
	}
}

func TestReadFailureIsFrameReadError(t *testing.T) {
	body := encodePNG(t, 8, 8)
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			_, _ = w.Write([]byte("garbage"))
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	h, err := httppoll.Source{Client: srv.Client()}.Open(context.Background(), device.Params{
		Locator: device.Locator{Kind: device.KindHTTP, URL: srv.URL},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fail.Store(true)
	if _, err := h.Read(context.Background()); !errors.Is(err, services.ErrFrameRead) {
		t.Fatalf("expected frame read error, got %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}
