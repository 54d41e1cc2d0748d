// Package snapshot implements the capture-then-save flow: a raw frame is held
// in memory on capture and written to disk on an explicit save.
package snapshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"camwatch/internal/fileutil"
	"camwatch/internal/logging"
	"camwatch/internal/services"
	"camwatch/internal/textutil"
)

// Metadata describes the capture being saved.
type Metadata struct {
	Camera     string    `json:"camera"`
	Label      string    `json:"label,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
}

// Hook post-processes the raw frame before it is encoded, e.g. to watermark it.
type Hook interface {
	Apply(raw *image.RGBA, meta Metadata) (image.Image, error)
}

// HookFunc adapts a function to Hook.
type HookFunc func(raw *image.RGBA, meta Metadata) (image.Image, error)

func (f HookFunc) Apply(raw *image.RGBA, meta Metadata) (image.Image, error) { return f(raw, meta) }

// SaveFunc persists an image itself. It returns the location it wrote and
// ok=false when the default filesystem policy should be used instead.
type SaveFunc func(ctx context.Context, img image.Image, meta Metadata) (location string, ok bool)

// Result describes a completed save.
type Result struct {
	Path  string   `json:"path"`
	Bytes int64    `json:"bytes"`
	Meta  Metadata `json:"meta"`
}

// Options configures a Saver.
type Options struct {
	Dir      string
	Prefix   string
	Quality  int
	Hook     Hook
	SaveFunc SaveFunc
	Logger   *slog.Logger
}

// Saver writes pending captures.
type Saver struct {
	dir      string
	prefix   string
	quality  int
	hook     Hook
	saveFunc SaveFunc
	logger   *slog.Logger
}

func NewSaver(opts Options) *Saver {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 95
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = "camera"
	}
	return &Saver{
		dir:      opts.Dir,
		prefix:   opts.Prefix,
		quality:  opts.Quality,
		hook:     opts.Hook,
		saveFunc: opts.SaveFunc,
		logger:   logging.NewComponentLogger(opts.Logger, "snapshot"),
	}
}

// BaseName returns the collision-free name stem for a capture:
// prefix_camera_YYYYMMDD_HHMMSS.
func (s *Saver) BaseName(camera string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s", textutil.SafeName(s.prefix), textutil.SafeName(camera), at.Format("20060102_150405"))
}

// Save writes the pending capture. The pending frame is cleared only after a
// verified write; on any failure it is kept so the caller can retry.
func (s *Saver) Save(ctx context.Context, pending *Pending, camera string) (Result, error) {
	frame, label, gen, ok := pending.peek()
	if !ok {
		return Result{}, services.Wrap(services.ErrNothingToSave, camera, "save", "capture a frame first", nil)
	}
	meta := Metadata{
		Camera:     camera,
		Label:      label,
		CapturedAt: frame.Captured,
		Width:      frame.Width(),
		Height:     frame.Height(),
	}
	if meta.CapturedAt.IsZero() {
		meta.CapturedAt = time.Now()
	}

	var img image.Image = frame.Image
	if s.hook != nil {
		processed, err := s.hook.Apply(frame.Image, meta)
		if err != nil {
			return Result{}, &services.SaveError{Reason: services.SaveReasonEncode, Err: fmt.Errorf("post-process: %w", err)}
		}
		if processed != nil {
			img = processed
		}
	}

	if s.saveFunc != nil {
		if location, ok := s.saveFunc(ctx, img, meta); ok {
			pending.clearIf(gen)
			return Result{Path: location, Meta: meta}, nil
		}
		s.logger.Debug("save function declined, using default policy", logging.String(logging.FieldCamera, camera))
	}

	result, err := s.writeDefault(img, meta)
	if err != nil {
		return Result{}, err
	}
	pending.clearIf(gen)
	s.logger.Info("capture saved",
		logging.String(logging.FieldCamera, camera),
		logging.String("path", result.Path),
		logging.Int64("bytes", result.Bytes),
	)
	return result, nil
}

func (s *Saver) writeDefault(img image.Image, meta Metadata) (Result, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Result{}, classify(s.dir, err)
	}
	f, path, err := fileutil.CreateUnique(s.dir, s.BaseName(meta.Camera, meta.CapturedAt), ".jpg")
	if err != nil {
		return Result{}, classify(path, err)
	}

	sink := &errWriter{w: f}
	bw := bufio.NewWriter(sink)
	encErr := jpeg.Encode(bw, img, &jpeg.Options{Quality: s.quality})
	if encErr == nil {
		encErr = bw.Flush()
	}
	closeErr := f.Close()

	switch {
	case sink.err != nil:
		_ = os.Remove(path)
		return Result{}, classify(path, sink.err)
	case encErr != nil:
		_ = os.Remove(path)
		return Result{}, &services.SaveError{Reason: services.SaveReasonEncode, Path: path, Err: encErr}
	case closeErr != nil:
		_ = os.Remove(path)
		return Result{}, classify(path, closeErr)
	}

	size, err := fileutil.NonEmpty(path)
	if err != nil {
		_ = os.Remove(path)
		return Result{}, &services.SaveError{Reason: services.SaveReasonEmptyFile, Path: path, Err: err}
	}
	return Result{Path: path, Bytes: size, Meta: meta}, nil
}

// errWriter remembers the first write error so disk failures can be told
// apart from encoder failures.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

func classify(path string, err error) error {
	reason := services.SaveReasonIO
	switch {
	case errors.Is(err, fs.ErrPermission):
		reason = services.SaveReasonPermission
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.EDQUOT):
		reason = services.SaveReasonDiskFull
	}
	return &services.SaveError{Reason: reason, Path: path, Err: err}
}
