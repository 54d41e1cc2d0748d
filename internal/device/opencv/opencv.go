// Package opencv opens local capture devices and network streams through
// gocv's VideoCapture.
package opencv

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"camwatch/internal/device"
	"camwatch/internal/logging"
	"camwatch/internal/services"
)

// Source opens gocv captures for device and stream locators.
type Source struct {
	logger *slog.Logger
}

// New returns a gocv-backed source.
func New(logger *slog.Logger) *Source {
	return &Source{logger: logging.NewComponentLogger(logger, "opencv")}
}

// Open connects to the device or stream named by params.Locator and applies
// the requested resolution, rate, and buffer size. Network streams are given
// params.Warmup to settle before the handle is returned.
func (s *Source) Open(ctx context.Context, params device.Params) (device.Handle, error) {
	loc := params.Locator
	var (
		vc  *gocv.VideoCapture
		err error
	)
	switch loc.Kind {
	case device.KindDevice:
		vc, err = gocv.OpenVideoCapture(loc.Index)
	case device.KindStream:
		vc, err = gocv.OpenVideoCaptureWithAPI(loc.URL, gocv.VideoCaptureFFmpeg)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "open", "opencv cannot open "+loc.Kind.String()+" sources", nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceOpen, "", "open", loc.String(), err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, services.Wrap(services.ErrDeviceOpen, "", "open", loc.String()+" did not open", nil)
	}

	if params.Width > 0 && params.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(params.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(params.Height))
	}
	if params.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, params.FPS)
	}
	if params.BufferSize > 0 {
		vc.Set(gocv.VideoCaptureBufferSize, float64(params.BufferSize))
	}

	if loc.Kind.Network() && params.Warmup > 0 {
		timer := time.NewTimer(params.Warmup)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = vc.Close()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.logger.Debug("capture opened",
		logging.String("source", loc.String()),
		logging.Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)),
		logging.Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)),
	)
	return &handle{vc: vc, mat: gocv.NewMat(), source: loc.String()}, nil
}

// handle serializes Read and Release so a release issued while a read is in
// flight waits for the read to return before closing the capture.
type handle struct {
	mu       sync.Mutex
	vc       *gocv.VideoCapture
	mat      gocv.Mat
	source   string
	released bool
}

func (h *handle) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, services.Wrap(services.ErrFrameRead, "", "read", "handle released", nil)
	}
	if ok := h.vc.Read(&h.mat); !ok || h.mat.Empty() {
		return nil, services.Wrap(services.ErrFrameRead, "", "read", "no frame from "+h.source, nil)
	}
	img, err := h.mat.ToImage()
	if err != nil {
		return nil, services.Wrap(services.ErrFrameRead, "", "read", "convert frame", err)
	}
	return img, nil
}

func (h *handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	_ = h.mat.Close()
	if err := h.vc.Close(); err != nil {
		return fmt.Errorf("close capture %s: %w", h.source, err)
	}
	return nil
}

// Camera describes a local device index that opened and produced a frame.
type Camera struct {
	Index  int
	Width  int
	Height int
}

// Detect probes device indices [0, max) and returns the ones that deliver a frame.
func Detect(ctx context.Context, max int) []Camera {
	var found []Camera
	for idx := 0; idx < max; idx++ {
		if ctx.Err() != nil {
			break
		}
		vc, err := gocv.OpenVideoCapture(idx)
		if err != nil {
			continue
		}
		if !vc.IsOpened() {
			_ = vc.Close()
			continue
		}
		mat := gocv.NewMat()
		if vc.Read(&mat) && !mat.Empty() {
			found = append(found, Camera{Index: idx, Width: mat.Cols(), Height: mat.Rows()})
		}
		_ = mat.Close()
		_ = vc.Close()
	}
	return found
}
