package frame

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remotedesk/internal/capture"
	"remotedesk/internal/codec"
)

// recordingEncoder returns a fixed payload and remembers what it was asked to encode.
type recordingEncoder struct {
	bounds []image.Rectangle
	fail   error
}

func (e *recordingEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	e.bounds = append(e.bounds, img.Bounds())
	return []byte{0xff, 0xd8, byte(quality)}, nil
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func paint(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func frameOf(img *image.RGBA) *capture.Frame {
	return &capture.Frame{Image: img, Bounds: img.Bounds()}
}

var grey = color.RGBA{R: 40, G: 40, B: 40, A: 255}

func TestDiffer_Scenario(t *testing.T) {
	t.Parallel()

	enc := &recordingEncoder{}
	d := NewDiffer(enc, DefaultThresholds())
	st := &State{}
	req := codec.FrameRequest{Width: 800, Height: 600, Quality: 80}
	screen := solid(800, 600, grey)

	resp, err := d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	assert.Equal(t, codec.ResponseFull, resp.Type)
	assert.Equal(t, 800, resp.RealWidth)
	assert.Equal(t, 600, resp.RealHeight)
	assert.Equal(t, []byte{0xff, 0xd8, 80}, resp.Image)

	resp, err = d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	assert.Equal(t, codec.ResponseNoOp, resp.Type)
	assert.Nil(t, resp.Image)
	assert.Equal(t, 1, st.EmptySinceFull)
	assert.Equal(t, 0, st.PartialSinceFull)

	changed := image.Rect(300, 200, 310, 210)
	paint(screen, changed, color.RGBA{R: 255, A: 255})
	resp, err = d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	assert.Equal(t, codec.ResponsePartial, resp.Type)
	assert.Equal(t, 300, resp.CropX)
	assert.Equal(t, 200, resp.CropY)
	assert.Equal(t, 1, st.PartialSinceFull)
	assert.Equal(t, changed, enc.bounds[len(enc.bounds)-1])
}

func TestDiffer_PartialThresholdForcesFull(t *testing.T) {
	t.Parallel()

	th := Thresholds{Partial: 5, Empty: 100}
	d := NewDiffer(&recordingEncoder{}, th)
	st := &State{}
	req := codec.FrameRequest{Width: 64, Height: 64, Quality: 50}
	screen := solid(64, 64, grey)

	resp, err := d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	require.Equal(t, codec.ResponseFull, resp.Type)

	for i := 0; i < th.Partial+1; i++ {
		screen.SetRGBA(i, i, color.RGBA{G: uint8(10 + i), A: 255})
		resp, err = d.Next(st, frameOf(clone(screen)), req)
		require.NoError(t, err)
		require.Equal(t, codec.ResponsePartial, resp.Type, "diff %d", i+1)
	}
	assert.Equal(t, th.Partial+1, st.PartialSinceFull)

	screen.SetRGBA(40, 40, color.RGBA{B: 200, A: 255})
	resp, err = d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	assert.Equal(t, codec.ResponseFull, resp.Type)
	assert.Equal(t, 0, st.PartialSinceFull)
	assert.Equal(t, 0, st.EmptySinceFull)
}

func TestDiffer_EmptyThresholdForcesFull(t *testing.T) {
	t.Parallel()

	th := Thresholds{Partial: 100, Empty: 3}
	d := NewDiffer(&recordingEncoder{}, th)
	st := &State{}
	req := codec.FrameRequest{Width: 32, Height: 32, Quality: 50}
	screen := solid(32, 32, grey)

	_, err := d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	for i := 0; i < th.Empty+1; i++ {
		resp, err := d.Next(st, frameOf(clone(screen)), req)
		require.NoError(t, err)
		require.Equal(t, codec.ResponseNoOp, resp.Type)
		assert.Equal(t, 0, st.PartialSinceFull)
	}
	resp, err := d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	assert.Equal(t, codec.ResponseFull, resp.Type)
	assert.Equal(t, 0, st.EmptySinceFull)
}

func TestDiffer_ViewportChangeForcesFull(t *testing.T) {
	t.Parallel()

	d := NewDiffer(&recordingEncoder{}, DefaultThresholds())
	st := &State{}
	screen := solid(1000, 500, grey)

	resp, err := d.Next(st, frameOf(clone(screen)), codec.FrameRequest{Width: 500, Height: 500, Quality: 70})
	require.NoError(t, err)
	require.Equal(t, codec.ResponseFull, resp.Type)
	w, h := st.ViewSize()
	assert.Equal(t, 500, w)
	assert.Equal(t, 250, h)

	// Different request that fits the image to the same size still forces full.
	resp, err = d.Next(st, frameOf(clone(screen)), codec.FrameRequest{Width: 500, Height: 400, Quality: 70})
	require.NoError(t, err)
	assert.Equal(t, codec.ResponseFull, resp.Type)

	resp, err = d.Next(st, frameOf(clone(screen)), codec.FrameRequest{Width: 500, Height: 400, Quality: 70})
	require.NoError(t, err)
	assert.Equal(t, codec.ResponseNoOp, resp.Type)
}

func TestDiffer_DownsamplesBeforeDiff(t *testing.T) {
	t.Parallel()

	enc := &recordingEncoder{}
	d := NewDiffer(enc, DefaultThresholds())
	st := &State{}
	req := codec.FrameRequest{Width: 100, Height: 100, Quality: 60}
	screen := solid(400, 400, grey)

	resp, err := d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	require.Equal(t, codec.ResponseFull, resp.Type)
	assert.Equal(t, 400, resp.RealWidth)
	assert.Equal(t, image.Rect(0, 0, 100, 100), enc.bounds[0])

	paint(screen, image.Rect(200, 200, 240, 240), color.RGBA{R: 255, A: 255})
	resp, err = d.Next(st, frameOf(clone(screen)), req)
	require.NoError(t, err)
	require.Equal(t, codec.ResponsePartial, resp.Type)
	// Offsets are in viewport pixels, a quarter of the source coordinates.
	assert.InDelta(t, 50, resp.CropX, 3)
	assert.InDelta(t, 50, resp.CropY, 3)
	assert.LessOrEqual(t, enc.bounds[1].Dx(), 16)
}

func TestDiffer_EncodeFailureKeepsState(t *testing.T) {
	t.Parallel()

	enc := &recordingEncoder{fail: errors.New("boom")}
	d := NewDiffer(enc, DefaultThresholds())
	st := &State{}

	_, err := d.Next(st, frameOf(solid(20, 20, grey)), codec.FrameRequest{Width: 20, Height: 20, Quality: 10})
	require.Error(t, err)
	assert.False(t, st.HasImage())

	enc.fail = nil
	resp, err := d.Next(st, frameOf(solid(20, 20, grey)), codec.FrameRequest{Width: 20, Height: 20, Quality: 10})
	require.NoError(t, err)
	assert.Equal(t, codec.ResponseFull, resp.Type)
}

func TestDiffer_ResolutionChangeForcesFull(t *testing.T) {
	t.Parallel()

	d := NewDiffer(&recordingEncoder{}, DefaultThresholds())
	st := &State{}
	req := codec.FrameRequest{Width: 2048, Height: 2048, Quality: 50}

	_, err := d.Next(st, frameOf(solid(640, 480, grey)), req)
	require.NoError(t, err)
	resp, err := d.Next(st, frameOf(solid(800, 600, grey)), req)
	require.NoError(t, err)
	assert.Equal(t, codec.ResponseFull, resp.Type)
	w, h := st.RealSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestNormalizeRequest(t *testing.T) {
	t.Parallel()

	got := NormalizeRequest(codec.FrameRequest{Width: 1, Height: 9000, Quality: -4})
	assert.Equal(t, codec.FrameRequest{Width: MinViewport, Height: MaxViewport, Quality: 1}, got)

	got = NormalizeRequest(codec.FrameRequest{Width: 800, Height: 600, Quality: 0})
	assert.Equal(t, capture.DefaultQuality, got.Quality, "zero quality uses the encoder default")

	resp, err := NewDiffer(&recordingEncoder{}, DefaultThresholds()).
		Next(&State{}, frameOf(solid(20, 20, grey)), codec.FrameRequest{Width: 20, Height: 20})
	require.NoError(t, err)
	assert.Equal(t, byte(capture.DefaultQuality), resp.Image[2])

	got = NormalizeRequest(codec.FrameRequest{Width: 800, Height: 600, Quality: 255})
	assert.Equal(t, codec.FrameRequest{Width: 800, Height: 600, Quality: 100}, got)
}

func TestState_Reset(t *testing.T) {
	t.Parallel()

	d := NewDiffer(&recordingEncoder{}, DefaultThresholds())
	st := &State{}
	_, err := d.Next(st, frameOf(solid(20, 20, grey)), codec.FrameRequest{Width: 20, Height: 20, Quality: 10})
	require.NoError(t, err)
	require.True(t, st.HasImage())

	st.Reset()
	assert.False(t, st.HasImage())
	w, h := st.ViewSize()
	assert.Zero(t, w)
	assert.Zero(t, h)
}
