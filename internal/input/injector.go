package input

import "remotedesk/internal/types"

// Injector synthesizes OS input. Coordinates are absolute desktop pixels.
type Injector interface {
	MouseMove(x, y int) error
	MouseDown(x, y int, b types.Button) error
	MouseUp(x, y int, b types.Button) error
	MouseScroll(x, y, deltaY int) error
	KeyDown(code types.KeyCode) error
	KeyUp(code types.KeyCode) error
}

// KeySet tracks which keys a session currently holds down.
type KeySet interface {
	Press(code types.KeyCode)
	Release(code types.KeyCode)
}
