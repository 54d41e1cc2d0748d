package display

import (
	"image"
	"image/jpeg"
	"io"

	"golang.org/x/image/draw"
)

// ApplyZoom crops src per state and scales the crop back to the source size.
// The identity view returns src unchanged.
func ApplyZoom(src *image.RGBA, state ViewState, smooth bool) *image.RGBA {
	if src == nil || !state.Zoomed() {
		return src
	}
	b := src.Bounds()
	crop := CropRect(b.Dx(), b.Dy(), state.Zoom, state.PanX, state.PanY).Add(b.Min)
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	scaler(smooth).Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

// FitSize returns the largest size with the source aspect ratio that fits in
// the viewport.
func FitSize(w, h, vw, vh int) (int, int) {
	if w <= 0 || h <= 0 || vw <= 0 || vh <= 0 {
		return 0, 0
	}
	if w*vh > h*vw {
		return vw, max(1, h*vw/w)
	}
	return max(1, w*vh/h), vh
}

// Fit scales src to fit the viewport, preserving aspect ratio. Viewports whose
// larger side is at least smoothMin use Catmull-Rom; smaller ones use the
// cheaper approximate bilinear filter.
func Fit(src *image.RGBA, vw, vh, smoothMin int) *image.RGBA {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), vw, vh)
	if w == 0 {
		return nil
	}
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scaler(max(vw, vh) >= smoothMin).Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func scaler(smooth bool) draw.Scaler {
	if smooth {
		return draw.CatmullRom
	}
	return draw.ApproxBiLinear
}

// EncodeJPEG writes img as a JPEG at the given quality.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
