package types

// AccessLevel is the permission tier granted to a connection at handshake.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessView
	AccessControl
)

func (a AccessLevel) String() string {
	switch a {
	case AccessControl:
		return "control"
	case AccessView:
		return "view"
	default:
		return "none"
	}
}

// CanControl reports whether input may be injected at this level.
func (a AccessLevel) CanControl() bool { return a == AccessControl }

// CanView reports whether frames may be requested at this level.
func (a AccessLevel) CanView() bool { return a == AccessControl || a == AccessView }

// EventKind is the leading integer of a wire input tuple.
type EventKind int

const (
	MouseMove EventKind = iota
	MouseDown
	MouseUp
	MouseScroll
	KeyDown
	KeyUp
)

func (k EventKind) String() string {
	switch k {
	case MouseMove:
		return "mousemove"
	case MouseDown:
		return "mousedown"
	case MouseUp:
		return "mouseup"
	case MouseScroll:
		return "scroll"
	case KeyDown:
		return "keydown"
	case KeyUp:
		return "keyup"
	default:
		return "unknown"
	}
}

// Button is a mouse button code as sent by browsers.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// Valid reports whether b is left, middle or right.
func (b Button) Valid() bool { return b >= ButtonLeft && b <= ButtonRight }

// KeyCode is a browser KeyboardEvent.keyCode value.
type KeyCode int

// InputEvent is one decoded client input. Only the fields relevant to Kind are set.
type InputEvent struct {
	Kind   EventKind
	X      int
	Y      int
	Button Button
	DeltaY int
	Code   KeyCode
}

// HasPosition reports whether the event carries pointer coordinates.
func (e InputEvent) HasPosition() bool {
	return e.Kind >= MouseMove && e.Kind <= MouseScroll
}
