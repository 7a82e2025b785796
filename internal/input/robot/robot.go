// Package robot injects input into the local desktop through robotgo.
package robot

import (
	"fmt"

	"github.com/go-vgo/robotgo"

	"remotedesk/internal/input"
	"remotedesk/internal/types"
)

// Injector implements input.Injector with robotgo.
type Injector struct{}

var _ input.Injector = Injector{}

var buttonNames = [...]string{
	types.ButtonLeft:   "left",
	types.ButtonMiddle: "center",
	types.ButtonRight:  "right",
}

func buttonName(b types.Button) (string, error) {
	if !b.Valid() {
		return "", fmt.Errorf("unsupported mouse button %d", b)
	}
	return buttonNames[b], nil
}

func (Injector) MouseMove(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (Injector) MouseDown(x, y int, b types.Button) error {
	name, err := buttonName(b)
	if err != nil {
		return err
	}
	robotgo.Move(x, y)
	return robotgo.Toggle(name, "down")
}

func (Injector) MouseUp(x, y int, b types.Button) error {
	name, err := buttonName(b)
	if err != nil {
		return err
	}
	robotgo.Move(x, y)
	return robotgo.Toggle(name, "up")
}

// MouseScroll scrolls at (x,y). Positive deltaY scrolls up.
func (Injector) MouseScroll(x, y, deltaY int) error {
	robotgo.Move(x, y)
	robotgo.Scroll(0, deltaY)
	return nil
}

func (Injector) KeyDown(code types.KeyCode) error {
	name, ok := input.KeyName(code)
	if !ok {
		return fmt.Errorf("unmapped key code %d", code)
	}
	return robotgo.KeyToggle(name, "down")
}

func (Injector) KeyUp(code types.KeyCode) error {
	name, ok := input.KeyName(code)
	if !ok {
		return fmt.Errorf("unmapped key code %d", code)
	}
	return robotgo.KeyToggle(name, "up")
}
