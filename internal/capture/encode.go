package capture

import (
	"bytes"
	"image"
	"image/jpeg"
)

// DefaultQuality is used when a request carries an out-of-range quality.
const DefaultQuality = 75

// Encoder compresses an image for the wire.
type Encoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// JPEG encodes baseline JPEG.
type JPEG struct{}

func (JPEG) Encode(img image.Image, quality int) ([]byte, error) {
	q := quality
	if q <= 0 || q > 100 {
		q = DefaultQuality
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
