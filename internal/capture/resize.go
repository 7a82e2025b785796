package capture

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Fit returns the size of a w x h image shrunk to fit inside maxW x maxH
// with its aspect ratio kept. Images that already fit are left alone.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	fw := int(math.Round(float64(w) * scale))
	fh := int(math.Round(float64(h) * scale))
	return max(fw, 1), max(fh, 1)
}

// Thumbnail downsamples src to fit the viewport. src is returned unchanged
// when it is already small enough.
func Thumbnail(src *image.RGBA, maxW, maxH int) *image.RGBA {
	b := src.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
