package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplay is returned when the host reports no active display.
var ErrNoDisplay = errors.New("no active display")

// Frame is one raw capture. Bounds is the captured region in desktop
// coordinates; Image is always rooted at (0,0) with the same size.
type Frame struct {
	Image  *image.RGBA
	Bounds image.Rectangle
}

// Width is the real horizontal resolution of the capture.
func (f *Frame) Width() int { return f.Bounds.Dx() }

// Height is the real vertical resolution of the capture.
func (f *Frame) Height() int { return f.Bounds.Dy() }

// Capturer grabs the host display.
type Capturer interface {
	// Bounds reports the region Capture would grab without grabbing pixels.
	Bounds(fullscreen bool, display int) (image.Rectangle, error)
	Capture(fullscreen bool, display int) (*Frame, error)
}

// Screen captures through the OS screenshot facilities.
type Screen struct{}

// Bounds returns the selected display's bounds, or the bounding union of
// every active display in fullscreen mode. An out-of-range display index
// falls back to the primary display.
func (Screen) Bounds(fullscreen bool, display int) (image.Rectangle, error) {
	num := screenshot.NumActiveDisplays()
	if num <= 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	if fullscreen {
		rects := make([]image.Rectangle, 0, num)
		for i := 0; i < num; i++ {
			rects = append(rects, screenshot.GetDisplayBounds(i))
		}
		return Union(rects), nil
	}
	if display < 0 || display >= num {
		display = 0
	}
	return screenshot.GetDisplayBounds(display), nil
}

func (s Screen) Capture(fullscreen bool, display int) (*Frame, error) {
	bounds, err := s.Bounds(fullscreen, display)
	if err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", bounds, err)
	}
	return &Frame{Image: img, Bounds: bounds}, nil
}

// Union is the smallest rectangle containing every rect.
func Union(rects []image.Rectangle) image.Rectangle {
	var u image.Rectangle
	for i, r := range rects {
		if i == 0 {
			u = r
			continue
		}
		u = u.Union(r)
	}
	return u
}
