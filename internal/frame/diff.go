package frame

import (
	"bytes"
	"image"
)

// BoundingBox returns the smallest rectangle, relative to each image's
// origin, enclosing every pixel that differs between a and b. ok is false
// when the images are identical. Both images must have the same size.
func BoundingBox(a, b *image.RGBA) (box image.Rectangle, ok bool) {
	ab, bb := a.Bounds(), b.Bounds()
	w, h := ab.Dx(), ab.Dy()

	minX, minY, maxX, maxY := w, h, -1, -1
	for y := 0; y < h; y++ {
		ra := a.Pix[a.PixOffset(ab.Min.X, ab.Min.Y+y):][:w*4]
		rb := b.Pix[b.PixOffset(bb.Min.X, bb.Min.Y+y):][:w*4]
		if bytes.Equal(ra, rb) {
			continue
		}
		if y < minY {
			minY = y
		}
		maxY = y

		// Only scan columns outside the box found so far.
		for x := 0; x < minX; x++ {
			if !samePixel(ra, rb, x) {
				minX = x
				break
			}
		}
		for x := w - 1; x > maxX; x-- {
			if !samePixel(ra, rb, x) {
				maxX = x
				break
			}
		}
	}
	if maxY < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func samePixel(ra, rb []byte, x int) bool {
	i := x * 4
	return ra[i] == rb[i] && ra[i+1] == rb[i+1] && ra[i+2] == rb[i+2] && ra[i+3] == rb[i+3]
}
