// Package watermark stamps saved captures with the site, camera, timestamp,
// and capture label.
package watermark

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"camwatch/internal/snapshot"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	padding         = 3
	// baseHeight is the frame height at which text is drawn at 1x.
	baseHeight = 360
)

var (
	textColor  = image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	panelColor = image.NewUniform(color.RGBA{A: 160})
)

// Overlay is a snapshot.Hook drawing a header in the top-left corner and the
// capture label in the bottom-right corner.
type Overlay struct {
	Site string
}

var _ snapshot.Hook = Overlay{}

// Apply returns a stamped copy of raw; raw itself is not modified.
func (o Overlay) Apply(raw *image.RGBA, meta snapshot.Metadata) (image.Image, error) {
	b := raw.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, raw, b.Min, draw.Src)

	scale := max(1, b.Dy()/baseHeight)
	y := b.Min.Y + padding*scale
	for _, line := range o.headerLines(meta) {
		panel := renderLine(line)
		dst := image.Rect(b.Min.X+padding*scale, y, b.Min.X+padding*scale+panel.Bounds().Dx()*scale, y+panel.Bounds().Dy()*scale)
		draw.NearestNeighbor.Scale(out, dst, panel, panel.Bounds(), draw.Over, nil)
		y = dst.Max.Y + padding*scale
	}

	if label := strings.TrimSpace(meta.Label); label != "" {
		panel := renderLine(label)
		w, h := panel.Bounds().Dx()*scale, panel.Bounds().Dy()*scale
		dst := image.Rect(b.Max.X-w-padding*scale, b.Max.Y-h-padding*scale, b.Max.X-padding*scale, b.Max.Y-padding*scale)
		draw.NearestNeighbor.Scale(out, dst, panel, panel.Bounds(), draw.Over, nil)
	}
	return out, nil
}

func (o Overlay) headerLines(meta snapshot.Metadata) []string {
	parts := make([]string, 0, 3)
	if site := strings.TrimSpace(o.Site); site != "" {
		parts = append(parts, site)
	}
	if meta.Camera != "" {
		parts = append(parts, meta.Camera)
	}
	if !meta.CapturedAt.IsZero() {
		parts = append(parts, meta.CapturedAt.Format(timestampLayout))
	}
	lines := []string{strings.Join(parts, " - ")}
	if label := strings.TrimSpace(meta.Label); label != "" {
		lines = append(lines, "Ticket: "+label)
	}
	return lines
}

// renderLine draws text at 1x on a translucent panel sized to fit it.
func renderLine(text string) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	panel := image.NewRGBA(image.Rect(0, 0, width+2*padding, height+2*padding))
	draw.Draw(panel, panel.Bounds(), panelColor, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  panel,
		Src:  textColor,
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(padding), Y: fixed.I(padding) + metrics.Ascent},
	}
	d.DrawString(text)
	return panel
}
