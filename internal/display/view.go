package display

import (
	"image"
	"math"
	"sync"
)

const zoomEpsilon = 1e-9

// ViewState is a snapshot of the zoom and pan applied to the live view.
type ViewState struct {
	Zoom    float64 `json:"zoom"`
	PanX    float64 `json:"pan_x"`
	PanY    float64 `json:"pan_y"`
	Version uint64  `json:"version"`
}

// Zoomed reports whether the state differs from the identity transform.
func (s ViewState) Zoomed() bool {
	return s.Zoom > 1
}

// View holds one session's zoom and pan. Version increments on every change
// so renderers can tell when cached output is out of date.
type View struct {
	mu      sync.Mutex
	min     float64
	max     float64
	step    float64
	zoom    float64
	panX    float64
	panY    float64
	version uint64
}

// NewView returns an identity view. Zoomed levels lie on the grid min, min+step,
// ... up to max; stepping below min returns to the identity zoom of 1.
func NewView(min, max, step float64) *View {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &View{min: min, max: max, step: step, zoom: 1}
}

// Zoom adds delta to the zoom level and returns the new level.
func (v *View) Zoom(delta float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	z := v.zoom + delta
	below := z < v.min-zoomEpsilon
	switch {
	case below && delta > 0:
		z = v.min
	case below:
		z = 1
	default:
		if v.step > 0 {
			z = v.min + math.Round((z-v.min)/v.step)*v.step
		}
		z = math.Min(v.max, z)
	}
	if z != v.zoom {
		v.zoom = z
		if z <= 1 {
			v.panX, v.panY = 0, 0
		}
		v.version++
	}
	return v.zoom
}

// Pan moves the crop center by (dx, dy) source pixels.
func (v *View) Pan(dx, dy float64) ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if dx != 0 || dy != 0 {
		v.panX += dx
		v.panY += dy
		v.version++
	}
	return v.stateLocked()
}

// Reset returns to the identity view.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zoom = 1
	v.panX, v.panY = 0, 0
	v.version++
}

// State returns the current view.
func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *View) stateLocked() ViewState {
	return ViewState{Zoom: v.zoom, PanX: v.panX, PanY: v.panY, Version: v.version}
}

// CropRect returns the (w/zoom, h/zoom) rectangle centered on the frame and
// offset by the pan vector. The rectangle is shifted back inside the frame
// when the pan would push it past an edge; its size never changes.
func CropRect(w, h int, zoom, panX, panY float64) image.Rectangle {
	if zoom <= 1 || w <= 0 || h <= 0 {
		return image.Rect(0, 0, w, h)
	}
	cw := int(math.Round(float64(w) / zoom))
	ch := int(math.Round(float64(h) / zoom))
	cw = max(1, min(cw, w))
	ch = max(1, min(ch, h))

	x0 := (w-cw)/2 + int(math.Round(panX))
	y0 := (h-ch)/2 + int(math.Round(panY))
	x0 = max(0, min(x0, w-cw))
	y0 = max(0, min(y0, h-ch))
	return image.Rect(x0, y0, x0+cw, y0+ch)
}
