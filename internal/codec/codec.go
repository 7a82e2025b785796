// Package codec implements the binary framing spoken between the browser
// client and the host: fixed-width little-endian integers, packet type tags,
// frame requests, input batches and frame responses.
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrShortPacket is returned when a buffer ends before a field does.
	ErrShortPacket = errors.New("short packet")
	// ErrUnknownPacket is returned for an unrecognised packet type tag.
	ErrUnknownPacket = errors.New("unknown packet type")
	// ErrMalformedInput is returned for input payloads that are not a tuple array.
	ErrMalformedInput = errors.New("malformed input payload")
)

// MaxUint returns the largest value representable in width bytes.
func MaxUint(width int) uint32 {
	return 1<<(8*uint(width)) - 1
}

// AppendUint appends the low width bytes of v to dst, least significant first.
// width must be 1, 2 or 3.
func AppendUint(dst []byte, v uint32, width int) []byte {
	for i := 0; i < width; i++ {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}

// Uint decodes a width-byte little-endian integer from the start of src.
func Uint(src []byte, width int) (uint32, error) {
	if width < 1 || width > 3 {
		return 0, fmt.Errorf("unsupported integer width %d", width)
	}
	if len(src) < width {
		return 0, fmt.Errorf("need %d bytes, have %d: %w", width, len(src), ErrShortPacket)
	}
	var v uint32
	for i := 0; i < width; i++ {
		v |= uint32(src[i]) << (8 * uint(i))
	}
	return v, nil
}

// AppendUint8 appends a single byte.
func AppendUint8(dst []byte, v uint8) []byte { return append(dst, v) }

// AppendUint16 appends v as two little-endian bytes.
func AppendUint16(dst []byte, v uint16) []byte { return AppendUint(dst, uint32(v), 2) }

// AppendUint24 appends the low 24 bits of v as three little-endian bytes.
func AppendUint24(dst []byte, v uint32) []byte { return AppendUint(dst, v, 3) }

// reader walks a packet body field by field; the first short read sticks.
type reader struct {
	buf []byte
	err error
}

func (r *reader) next(width int) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := Uint(r.buf, width)
	if err != nil {
		r.err = err
		return 0
	}
	r.buf = r.buf[width:]
	return v
}

func (r *reader) u8() uint8   { return uint8(r.next(1)) }
func (r *reader) u16() uint16 { return uint16(r.next(2)) }
