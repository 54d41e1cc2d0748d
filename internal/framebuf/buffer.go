// Package framebuf holds the single-slot, last-writer-wins frame buffer shared
// between a capture loop and its consumers.
package framebuf

import (
	"image"
	"image/draw"
	"sync"
	"time"
)

// Frame is one decoded image plus the time it was read from the device.
type Frame struct {
	Image    *image.RGBA
	Captured time.Time
	Seq      uint64
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	return &Frame{Image: cloneRGBA(f.Image), Captured: f.Captured, Seq: f.Seq}
}

// Slot is the buffer's published content: the full-resolution raw frame, an
// optional processed rendition, and the publish timestamp.
type Slot struct {
	Raw       *Frame
	Processed *Frame
	Timestamp time.Time
}

// Display returns the processed frame when present, otherwise the raw frame.
func (s Slot) Display() *Frame {
	if s.Processed != nil {
		return s.Processed
	}
	return s.Raw
}

// Buffer is a single-slot frame store. Publish overwrites the slot wholesale;
// readers copy out under the same mutex so they never observe a partial slot.
// Only copies happen while the mutex is held.
type Buffer struct {
	mu     sync.Mutex
	slot   Slot
	filled bool
	fresh  bool
	seq    uint64
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// ToRGBA converts any image into an RGBA copy anchored at the origin. Callers
// run it before Publish so decoding never happens under the buffer mutex.
func ToRGBA(img image.Image) *image.RGBA {
	if img == nil {
		return nil
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return cloneRGBA(rgba)
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Publish copies raw and processed into the slot, stamps it with ts, and
// raises the new-data flag. processed may be nil.
func (b *Buffer) Publish(raw, processed *image.RGBA, ts time.Time) uint64 {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.slot = Slot{
		Raw:       &Frame{Image: cloneRGBA(raw), Captured: ts, Seq: seq},
		Timestamp: ts,
	}
	if processed != nil {
		b.slot.Processed = &Frame{Image: cloneRGBA(processed), Captured: ts, Seq: seq}
	}
	b.filled = true
	b.fresh = true
	b.mu.Unlock()
	return seq
}

// Take copies the slot out and clears the new-data flag. It reports false
// when nothing has ever been published.
func (b *Buffer) Take() (Slot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.filled {
		return Slot{}, false
	}
	b.fresh = false
	return Slot{
		Raw:       b.slot.Raw.Clone(),
		Processed: b.slot.Processed.Clone(),
		Timestamp: b.slot.Timestamp,
	}, true
}

// CopyRaw copies the current raw frame without touching the new-data flag.
func (b *Buffer) CopyRaw() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.filled {
		return nil, false
	}
	return b.slot.Raw.Clone(), true
}

// HasNew reports whether a publish happened since the last Take.
func (b *Buffer) HasNew() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fresh
}

// Seq returns the sequence number of the latest publish, zero when empty.
func (b *Buffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	dst := &image.RGBA{
		Pix:    make([]byte, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)
	return dst
}
