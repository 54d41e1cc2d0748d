package snapshot

import (
	"sync"

	"camwatch/internal/framebuf"
)

// Pending holds at most one captured raw frame awaiting a save. Each capture
// bumps a generation so a save only clears the frame it actually wrote.
type Pending struct {
	mu    sync.Mutex
	frame *framebuf.Frame
	label string
	gen   uint64
}

// Capture copies the buffer's current raw frame into the pending slot. It
// reports false when nothing has been published yet.
func (p *Pending) Capture(buf *framebuf.Buffer, label string) bool {
	frame, ok := buf.CopyRaw()
	if !ok || frame == nil || frame.Image == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = frame
	p.label = label
	p.gen++
	return true
}

// Has reports whether a capture is waiting.
func (p *Pending) Has() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame != nil
}

func (p *Pending) peek() (*framebuf.Frame, string, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frame == nil {
		return nil, "", 0, false
	}
	return p.frame, p.label, p.gen, true
}

func (p *Pending) clearIf(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == gen {
		p.frame = nil
		p.label = ""
	}
}
