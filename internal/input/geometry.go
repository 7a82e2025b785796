package input

import (
	"image"
	"math"
)

// Geometry relates client coordinates to the host desktop. Origin is where
// the captured region starts on the desktop. A zero viewport means clients
// send real display coordinates.
type Geometry struct {
	Origin     image.Point
	RealWidth  int
	RealHeight int
	ViewWidth  int
	ViewHeight int
}

// Known reports whether the real resolution has been learned.
func (g Geometry) Known() bool { return g.RealWidth > 0 && g.RealHeight > 0 }

// Map converts client coordinates to desktop coordinates: scaled by
// real/viewport, clamped into [0, real] and shifted by Origin.
// Coordinates pass through untouched until the real resolution is known.
func (g Geometry) Map(x, y int) (int, int) {
	if !g.Known() {
		return x + g.Origin.X, y + g.Origin.Y
	}
	fx, fy := float64(x), float64(y)
	if g.ViewWidth > 0 && g.ViewHeight > 0 {
		fx *= float64(g.RealWidth) / float64(g.ViewWidth)
		fy *= float64(g.RealHeight) / float64(g.ViewHeight)
	}
	mx := clamp(int(math.Round(fx)), 0, g.RealWidth)
	my := clamp(int(math.Round(fy)), 0, g.RealHeight)
	return mx + g.Origin.X, my + g.Origin.Y
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
