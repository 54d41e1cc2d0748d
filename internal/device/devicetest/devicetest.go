// Package devicetest provides a scripted device.Source for tests.
package devicetest

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"camwatch/internal/device"
	"camwatch/internal/services"
)

// Read is the scripted outcome of one handle read.
type Read struct {
	Width  int
	Height int
	Err    error
	Delay  time.Duration
}

// Frame is a successful read of the given size.
func Frame(w, h int) Read { return Read{Width: w, Height: h} }

// Fail is a failed read.
func Fail() Read { return Read{Err: errors.New("scripted read failure")} }

// Source is a fake device source. OpenFunc and ReadFunc receive zero-based
// counters across the life of the source; nil funcs open successfully and
// return 640x480 frames.
type Source struct {
	OpenFunc func(attempt int) error
	ReadFunc func(read int) Read

	mu       sync.Mutex
	opens    int
	reads    int
	releases int
	live     int
	maxLive  int
	params   []device.Params
	frames   map[image.Point]*image.RGBA
}

// Scripted returns a source whose reads follow script and then repeat its
// last entry.
func Scripted(script ...Read) *Source {
	return &Source{ReadFunc: func(n int) Read {
		if len(script) == 0 {
			return Frame(640, 480)
		}
		if n >= len(script) {
			return script[len(script)-1]
		}
		return script[n]
	}}
}

func (s *Source) Open(ctx context.Context, params device.Params) (device.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	attempt := s.opens
	s.opens++
	s.params = append(s.params, params)
	fn := s.OpenFunc
	s.mu.Unlock()

	if fn != nil {
		if err := fn(attempt); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.live++
	if s.live > s.maxLive {
		s.maxLive = s.live
	}
	s.mu.Unlock()
	return &handle{src: s}, nil
}

// SetOpenFunc replaces OpenFunc while handles may be in use.
func (s *Source) SetOpenFunc(fn func(attempt int) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenFunc = fn
}

// SetReadFunc replaces ReadFunc while handles may be in use.
func (s *Source) SetReadFunc(fn func(read int) Read) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadFunc = fn
}

// Opens returns how many times Open was called.
func (s *Source) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Reads returns how many reads were issued across all handles.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Releases returns how many handles were released.
func (s *Source) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// Live returns the number of open, unreleased handles.
func (s *Source) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// MaxLive returns the largest number of handles that were open at once.
func (s *Source) MaxLive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLive
}

// LastParams returns the parameters of the most recent Open.
func (s *Source) LastParams() (device.Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.params) == 0 {
		return device.Params{}, false
	}
	return s.params[len(s.params)-1], true
}

func (s *Source) frame(w, h int) *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames == nil {
		s.frames = make(map[image.Point]*image.RGBA)
	}
	key := image.Pt(w, h)
	img, ok := s.frames[key]
	if !ok {
		img = image.NewRGBA(image.Rect(0, 0, w, h))
		s.frames[key] = img
	}
	return img
}

type handle struct {
	src      *Source
	mu       sync.Mutex
	released bool
}

func (h *handle) Read(ctx context.Context) (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, services.Wrap(services.ErrFrameRead, "", "read", "handle released", nil)
	}

	s := h.src
	s.mu.Lock()
	n := s.reads
	s.reads++
	fn := s.ReadFunc
	s.mu.Unlock()

	r := Frame(640, 480)
	if fn != nil {
		r = fn(n)
	}
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	if r.Err != nil {
		return nil, services.Wrap(services.ErrFrameRead, "", "read", "scripted", r.Err)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return image.NewRGBA(image.Rectangle{}), nil
	}
	return s.frame(r.Width, r.Height), nil
}

func (h *handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	s := h.src
	s.mu.Lock()
	s.releases++
	s.live--
	s.mu.Unlock()
	return nil
}
