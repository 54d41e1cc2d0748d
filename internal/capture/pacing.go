package capture

import (
	"image"
	"time"
)

// Pacer supplies the streaming cadence. Implementations are read from the
// loop goroutine and written by the resource monitor, so they must be safe
// for concurrent use.
type Pacer interface {
	// Interval is the minimum spacing between reads.
	Interval() time.Duration
	// SkipTick reports whether the next tick should be dropped without a read.
	SkipTick() bool
}

// FixedPacer reads at a constant rate and never skips.
type FixedPacer struct {
	FPS float64
}

func (p FixedPacer) Interval() time.Duration {
	if p.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / p.FPS)
}

func (FixedPacer) SkipTick() bool { return false }

// FrameProcessor renders the processed rendition of an accepted frame. It runs
// on the loop goroutine before the frame is published.
type FrameProcessor interface {
	Process(raw *image.RGBA) *image.RGBA
}

// ProcessorFunc adapts a function to FrameProcessor.
type ProcessorFunc func(raw *image.RGBA) *image.RGBA

func (f ProcessorFunc) Process(raw *image.RGBA) *image.RGBA { return f(raw) }

// Observer is notified of per-frame outcomes, e.g. to feed metrics.
type Observer interface {
	FrameAccepted()
	FrameDropped()
	TickSkipped()
}

type nopObserver struct{}

func (nopObserver) FrameAccepted() {}
func (nopObserver) FrameDropped()  {}
func (nopObserver) TickSkipped()   {}
