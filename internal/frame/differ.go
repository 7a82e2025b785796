// Package frame decides, per client, whether the next response is a full
// frame, a cropped partial frame or a no-op, and produces its payload.
package frame

import (
	"fmt"
	"image"

	"remotedesk/internal/capture"
	"remotedesk/internal/codec"
)

const (
	DefaultPartialThreshold = 60
	DefaultEmptyThreshold   = 120

	MinViewport = 16
	MaxViewport = 2048
)

// Thresholds bound how many partial and empty responses may follow a full
// frame before another full frame is forced.
type Thresholds struct {
	Partial int
	Empty   int
}

// DefaultThresholds returns the stock resync budgets.
func DefaultThresholds() Thresholds {
	return Thresholds{Partial: DefaultPartialThreshold, Empty: DefaultEmptyThreshold}
}

// State is the per-session memory of what the client last rendered.
// The zero value is a session that has not received a frame yet.
type State struct {
	last       *image.RGBA
	viewport   image.Point
	realWidth  int
	realHeight int

	PartialSinceFull int
	EmptySinceFull   int
}

// HasImage reports whether a frame has been sent since the last reset.
func (s *State) HasImage() bool { return s.last != nil }

// ViewSize is the size of the last image sent, in viewport pixels.
func (s *State) ViewSize() (int, int) {
	if s.last == nil {
		return 0, 0
	}
	b := s.last.Bounds()
	return b.Dx(), b.Dy()
}

// RealSize is the real display resolution behind the last image sent.
func (s *State) RealSize() (int, int) { return s.realWidth, s.realHeight }

// Reset forgets the cached image so the next frame is full.
func (s *State) Reset() {
	*s = State{}
}

// NormalizeRequest clamps the viewport into [MinViewport, MaxViewport] and
// the quality into [1, 100]. A zero quality means capture.DefaultQuality.
func NormalizeRequest(req codec.FrameRequest) codec.FrameRequest {
	if req.Quality == 0 {
		req.Quality = capture.DefaultQuality
	}
	req.Width = min(max(req.Width, MinViewport), MaxViewport)
	req.Height = min(max(req.Height, MinViewport), MaxViewport)
	req.Quality = min(max(req.Quality, 1), 100)
	return req
}

// Differ produces frame responses.
type Differ struct {
	Encoder    capture.Encoder
	Thresholds Thresholds
}

// NewDiffer returns a Differ using enc and th.
func NewDiffer(enc capture.Encoder, th Thresholds) *Differ {
	return &Differ{Encoder: enc, Thresholds: th}
}

func (d *Differ) needsFull(st *State, img *image.RGBA, viewport image.Point) bool {
	switch {
	case st.last == nil:
		return true
	case st.viewport != viewport:
		return true
	case st.last.Bounds().Size() != img.Bounds().Size():
		return true
	case st.PartialSinceFull > d.Thresholds.Partial:
		return true
	case st.EmptySinceFull > d.Thresholds.Empty:
		return true
	}
	return false
}

// Next diffs a fresh capture against st and returns the response to send.
// st is only updated when the response was produced successfully. The
// capture's image must not be reused by the capturer afterwards because it
// may be retained as the comparison base.
func (d *Differ) Next(st *State, f *capture.Frame, req codec.FrameRequest) (codec.Response, error) {
	req = NormalizeRequest(req)
	viewport := image.Pt(req.Width, req.Height)
	img := capture.Thumbnail(f.Image, req.Width, req.Height)

	resp := codec.Response{RealWidth: f.Width(), RealHeight: f.Height()}

	if d.needsFull(st, img, viewport) {
		data, err := d.Encoder.Encode(img, req.Quality)
		if err != nil {
			return codec.Response{}, fmt.Errorf("encode full frame: %w", err)
		}
		st.last = img
		st.viewport = viewport
		st.realWidth, st.realHeight = resp.RealWidth, resp.RealHeight
		st.PartialSinceFull = 0
		st.EmptySinceFull = 0

		resp.Type = codec.ResponseFull
		resp.Image = data
		return resp, nil
	}

	box, changed := BoundingBox(st.last, img)
	if !changed {
		st.EmptySinceFull++
		return codec.Response{Type: codec.ResponseNoOp}, nil
	}

	crop := img.SubImage(box.Add(img.Bounds().Min))
	data, err := d.Encoder.Encode(crop, req.Quality)
	if err != nil {
		return codec.Response{}, fmt.Errorf("encode partial frame %v: %w", box, err)
	}
	st.last = img
	st.realWidth, st.realHeight = resp.RealWidth, resp.RealHeight
	st.PartialSinceFull++

	resp.Type = codec.ResponsePartial
	resp.CropX = box.Min.X
	resp.CropY = box.Min.Y
	resp.Image = data
	return resp, nil
}
