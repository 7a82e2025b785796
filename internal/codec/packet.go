package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"remotedesk/internal/types"
)

// PacketType tags every client-to-server packet.
type PacketType uint8

const (
	PacketFrameRequest PacketType = 0x01
	PacketFrameAck     PacketType = 0x02
	PacketInput        PacketType = 0x03
)

func (p PacketType) String() string {
	switch p {
	case PacketFrameRequest:
		return "frame-request"
	case PacketFrameAck:
		return "frame-ack"
	case PacketInput:
		return "input"
	default:
		return fmt.Sprintf("0x%02x", uint8(p))
	}
}

// ResponseType tags every server-to-client frame packet.
type ResponseType uint8

const (
	ResponseNoOp    ResponseType = 0x00
	ResponseFull    ResponseType = 0x01
	ResponsePartial ResponseType = 0x02
)

func (r ResponseType) String() string {
	switch r {
	case ResponseNoOp:
		return "noop"
	case ResponseFull:
		return "full"
	case ResponsePartial:
		return "partial"
	default:
		return fmt.Sprintf("0x%02x", uint8(r))
	}
}

// LegacyAck is the text message older clients send to acknowledge a frame.
const LegacyAck = "FA"

// FrameRequest asks for one frame fitted into Width x Height.
type FrameRequest struct {
	Width   int
	Height  int
	Quality int
}

// Packet is a decoded client packet. Frame is set for PacketFrameRequest and
// Payload carries the raw body of PacketInput.
type Packet struct {
	Type    PacketType
	Frame   FrameRequest
	Payload []byte
}

// Decode parses one client message.
func Decode(msg []byte) (Packet, error) {
	if len(msg) == 0 {
		return Packet{}, fmt.Errorf("empty message: %w", ErrShortPacket)
	}
	p := Packet{Type: PacketType(msg[0])}
	body := msg[1:]
	switch p.Type {
	case PacketFrameRequest:
		r := reader{buf: body}
		p.Frame.Width = int(r.u16())
		p.Frame.Height = int(r.u16())
		p.Frame.Quality = int(r.u8())
		if r.err != nil {
			return Packet{}, fmt.Errorf("frame request: %w", r.err)
		}
	case PacketFrameAck:
	case PacketInput:
		p.Payload = body
	default:
		return Packet{}, fmt.Errorf("%s: %w", p.Type, ErrUnknownPacket)
	}
	return p, nil
}

// EncodeFrameRequest builds a 0x01 packet. It is the client-side inverse of
// Decode, kept for test clients and tooling.
func EncodeFrameRequest(req FrameRequest) []byte {
	b := make([]byte, 0, 6)
	b = AppendUint8(b, uint8(PacketFrameRequest))
	b = AppendUint16(b, uint16(req.Width))
	b = AppendUint16(b, uint16(req.Height))
	return AppendUint8(b, uint8(req.Quality))
}

// eventArity is the number of numeric fields following the kind tag.
var eventArity = map[types.EventKind]int{
	types.MouseMove:   2,
	types.MouseDown:   3,
	types.MouseUp:     3,
	types.MouseScroll: 3,
	types.KeyDown:     1,
	types.KeyUp:       1,
}

// DecodeInput parses a serialized array of [kind, ...fields] tuples.
// Tuples that cannot be understood are skipped and reported in the returned
// error; the events that did decode are returned alongside it in order.
func DecodeInput(payload []byte) ([]types.InputEvent, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	events := make([]types.InputEvent, 0, len(raw))
	var errs []error
	for i, item := range raw {
		ev, err := decodeEvent(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	return events, errors.Join(errs...)
}

func decodeEvent(item json.RawMessage) (types.InputEvent, error) {
	var fields []float64
	if err := json.Unmarshal(item, &fields); err != nil {
		return types.InputEvent{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(fields) == 0 {
		return types.InputEvent{}, fmt.Errorf("empty tuple: %w", ErrMalformedInput)
	}
	kind := types.EventKind(int(fields[0]))
	arity, ok := eventArity[kind]
	if !ok || fields[0] != math.Trunc(fields[0]) {
		return types.InputEvent{}, fmt.Errorf("event type %v: %w", fields[0], ErrMalformedInput)
	}
	if len(fields) < arity+1 {
		return types.InputEvent{}, fmt.Errorf("%s wants %d fields, got %d: %w", kind, arity, len(fields)-1, ErrMalformedInput)
	}
	f := fields[1:]
	ev := types.InputEvent{Kind: kind}
	switch kind {
	case types.MouseMove:
		ev.X, ev.Y = int(f[0]), int(f[1])
	case types.MouseDown, types.MouseUp:
		ev.X, ev.Y, ev.Button = int(f[0]), int(f[1]), types.Button(int(f[2]))
	case types.MouseScroll:
		ev.X, ev.Y, ev.DeltaY = int(f[0]), int(f[1]), int(f[2])
	case types.KeyDown, types.KeyUp:
		ev.Code = types.KeyCode(int(f[0]))
	}
	return ev, nil
}

// EncodeInput serializes events into the 0x03 wire form. Client side only,
// for test clients and tooling.
func EncodeInput(events []types.InputEvent) []byte {
	tuples := make([][]int, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case types.MouseMove:
			tuples = append(tuples, []int{int(ev.Kind), ev.X, ev.Y})
		case types.MouseDown, types.MouseUp:
			tuples = append(tuples, []int{int(ev.Kind), ev.X, ev.Y, int(ev.Button)})
		case types.MouseScroll:
			tuples = append(tuples, []int{int(ev.Kind), ev.X, ev.Y, ev.DeltaY})
		default:
			tuples = append(tuples, []int{int(ev.Kind), int(ev.Code)})
		}
	}
	body, _ := json.Marshal(tuples)
	return append([]byte{byte(PacketInput)}, body...)
}

// Response is one frame answer. CropX and CropY are only sent for partial
// frames; Image is absent for no-ops.
type Response struct {
	Type       ResponseType
	RealWidth  int
	RealHeight int
	CropX      int
	CropY      int
	Image      []byte
}

// Encode lays out the response on the wire:
//
//	noop:    [0x00]
//	full:    [0x01][realW:u16][realH:u16][image]
//	partial: [0x02][realW:u16][realH:u16][cropX:u16][cropY:u16][image]
func (r Response) Encode() []byte {
	if r.Type == ResponseNoOp {
		return []byte{byte(ResponseNoOp)}
	}
	b := make([]byte, 0, 9+len(r.Image))
	b = AppendUint8(b, uint8(r.Type))
	b = AppendUint16(b, uint16(r.RealWidth))
	b = AppendUint16(b, uint16(r.RealHeight))
	if r.Type == ResponsePartial {
		b = AppendUint16(b, uint16(r.CropX))
		b = AppendUint16(b, uint16(r.CropY))
	}
	return append(b, r.Image...)
}

// DecodeResponse is the client-side inverse of Response.Encode, kept for
// test clients and tooling.
func DecodeResponse(msg []byte) (Response, error) {
	if len(msg) == 0 {
		return Response{}, fmt.Errorf("empty response: %w", ErrShortPacket)
	}
	resp := Response{Type: ResponseType(msg[0])}
	r := reader{buf: msg[1:]}
	switch resp.Type {
	case ResponseNoOp:
		return resp, nil
	case ResponseFull, ResponsePartial:
		resp.RealWidth = int(r.u16())
		resp.RealHeight = int(r.u16())
		if resp.Type == ResponsePartial {
			resp.CropX = int(r.u16())
			resp.CropY = int(r.u16())
		}
	default:
		return Response{}, fmt.Errorf("response %s: %w", resp.Type, ErrUnknownPacket)
	}
	if r.err != nil {
		return Response{}, fmt.Errorf("%s response: %w", resp.Type, r.err)
	}
	resp.Image = r.buf
	return resp, nil
}
