package input

import (
	"strconv"

	"remotedesk/internal/types"
)

// keyNames maps browser KeyboardEvent.keyCode values to robotgo key names.
var keyNames = map[types.KeyCode]string{
	8:   "backspace",
	9:   "tab",
	13:  "enter",
	16:  "shift",
	17:  "ctrl",
	18:  "alt",
	20:  "capslock",
	27:  "esc",
	32:  "space",
	33:  "pageup",
	34:  "pagedown",
	35:  "end",
	36:  "home",
	37:  "left",
	38:  "up",
	39:  "right",
	40:  "down",
	44:  "printscreen",
	45:  "insert",
	46:  "delete",
	91:  "cmd",
	92:  "cmd",
	93:  "menu",
	106: "num*",
	107: "num+",
	109: "num-",
	110: "num.",
	111: "num/",
	186: ";",
	187: "=",
	188: ",",
	189: "-",
	190: ".",
	191: "/",
	192: "`",
	219: "[",
	220: "\\",
	221: "]",
	222: "'",
}

func init() {
	for c := '0'; c <= '9'; c++ {
		keyNames[types.KeyCode(c)] = string(c)
		keyNames[types.KeyCode(96+c-'0')] = "num" + string(c)
	}
	for c := 'A'; c <= 'Z'; c++ {
		keyNames[types.KeyCode(c)] = string(c - 'A' + 'a')
	}
	for i := 1; i <= 24; i++ {
		keyNames[types.KeyCode(111+i)] = "f" + strconv.Itoa(i)
	}
}

// KeyName returns the injection name for a browser key code.
func KeyName(code types.KeyCode) (string, bool) {
	name, ok := keyNames[code]
	return name, ok
}
