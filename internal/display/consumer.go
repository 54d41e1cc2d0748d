// Package display renders the freshest buffered frame for a viewport, with
// the session's zoom and pan applied.
package display

import (
	"context"
	"image"
	"sync"
	"time"

	"camwatch/internal/framebuf"
)

// Consumer is the single reader of a session's new-data flag. Viewers share
// it and each keeps its own Cursor, so one viewer seeing a frame never hides
// that frame from another. The last taken frame and the last render are
// cached.
type Consumer struct {
	buffer    *framebuf.Buffer
	view      *View
	smoothMin int

	mu       sync.Mutex
	frame    *framebuf.Frame
	rendered *image.RGBA
	key      renderKey
}

type renderKey struct {
	w, h    int
	version uint64
	seq     uint64
}

// Cursor records the last rendering handed to one viewer. The zero value has
// seen nothing.
type Cursor struct {
	key renderKey
}

// NewConsumer returns a consumer reading buffer through view.
func NewConsumer(buffer *framebuf.Buffer, view *View, smoothMin int) *Consumer {
	return &Consumer{buffer: buffer, view: view, smoothMin: smoothMin}
}

// Frame returns the viewport-sized rendering of the latest frame. fresh is
// true when the result differs from what cur last received; cur is then
// advanced. A nil cursor reports every available frame as fresh. Frame never
// blocks on the capture loop: when no new frame was published the cached
// frame is reused.
func (c *Consumer) Frame(vw, vh int, cur *Cursor) (img *image.RGBA, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buffer.HasNew() {
		if slot, ok := c.buffer.Take(); ok {
			c.frame = slot.Display()
		}
	}
	if c.frame == nil || vw <= 0 || vh <= 0 {
		return nil, false
	}

	state := c.view.State()
	key := renderKey{w: vw, h: vh, version: state.Version, seq: c.frame.Seq}
	if c.rendered == nil || key != c.key {
		smooth := max(vw, vh) >= c.smoothMin
		c.rendered = Fit(ApplyZoom(c.frame.Image, state, smooth), vw, vh, c.smoothMin)
		c.key = key
	}
	if cur == nil {
		return c.rendered, true
	}
	fresh = cur.key != key
	cur.key = key
	return c.rendered, fresh
}

// Forget drops the cached frame, e.g. after the session restarts.
func (c *Consumer) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = nil
	c.rendered = nil
	c.key = renderKey{}
}

// Run polls at refresh and passes each render this viewer has not seen to
// sink until ctx ends or sink fails.
func (c *Consumer) Run(ctx context.Context, vw, vh int, refresh time.Duration, sink func(*image.RGBA) error) error {
	if refresh <= 0 {
		refresh = 66 * time.Millisecond
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	var cur Cursor
	for {
		if img, fresh := c.Frame(vw, vh, &cur); fresh && img != nil {
			if err := sink(img); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
