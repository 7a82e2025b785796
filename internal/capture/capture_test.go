package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{"already fits", 800, 600, 800, 600, 800, 600},
		{"smaller than viewport", 640, 480, 1024, 1024, 640, 480},
		{"width bound", 1920, 1080, 960, 960, 960, 540},
		{"height bound", 1920, 1080, 4000, 540, 960, 540},
		{"extreme aspect", 4000, 10, 16, 16, 16, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Fit(tt.w, tt.h, tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestThumbnail(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	assert.Same(t, src, Thumbnail(src, 200, 200))

	dst := Thumbnail(src, 50, 50)
	assert.Equal(t, image.Rect(0, 0, 50, 25), dst.Bounds())
}

func TestUnion(t *testing.T) {
	t.Parallel()

	u := Union([]image.Rectangle{
		image.Rect(0, 0, 1920, 1080),
		image.Rect(1920, -200, 3200, 824),
	})
	assert.Equal(t, image.Rect(0, -200, 3200, 1080), u)
	assert.Equal(t, image.Rectangle{}, Union(nil))
}

func TestJPEG_Encode(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(3, 3, color.RGBA{R: 255, A: 255})

	for _, q := range []int{80, 0, 500} {
		data, err := JPEG{}.Encode(img, q)
		require.NoError(t, err)
		decoded, err := jpeg.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, img.Bounds(), decoded.Bounds())
	}
}

func TestFrame_Size(t *testing.T) {
	t.Parallel()

	f := &Frame{Bounds: image.Rect(100, 50, 900, 650)}
	assert.Equal(t, 800, f.Width())
	assert.Equal(t, 600, f.Height())
}
