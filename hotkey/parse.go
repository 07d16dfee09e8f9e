package hotkey

import (
	"fmt"
	"slices"
	"strings"

	hook "github.com/robotn/gohook"
)

var aliases = map[string]string{
	"control": "ctrl",
	"option":  "alt",
	"opt":     "alt",
	"command": "cmd",
	"meta":    "cmd",
	"super":   "cmd",
	"win":     "cmd",
	"escape":  "esc",
	"return":  "enter",
}

var modifierNames = []string{"ctrl", "alt", "shift", "cmd"}

// rightModifiers maps right-hand modifier names to their left-hand key.
var rightModifiers = map[string]string{
	"rctrl":  "ctrl",
	"ralt":   "alt",
	"rshift": "shift",
	"rcmd":   "cmd",
}

// Shortcut is a parsed key combination such as "ctrl+alt+space".
type Shortcut struct {
	Raw  string
	keys []uint16 // sorted
}

// Parse converts a "+"-separated shortcut string into key codes.
func Parse(s string) (Shortcut, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	keys := make([]uint16, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Shortcut{}, fmt.Errorf("invalid shortcut %q: empty key", s)
		}
		if a, ok := aliases[p]; ok {
			p = a
		}
		code, ok := hook.Keycode[p]
		if !ok {
			return Shortcut{}, fmt.Errorf("invalid shortcut %q: unknown key %q", s, p)
		}
		if slices.Contains(keys, code) {
			return Shortcut{}, fmt.Errorf("invalid shortcut %q: duplicate key %q", s, p)
		}
		keys = append(keys, code)
	}
	slices.Sort(keys)
	return Shortcut{Raw: s, keys: keys}, nil
}

// canonical folds right-hand modifiers onto their left-hand codes.
func canonical(code uint16) uint16 {
	for right, left := range rightModifiers {
		if rc, ok := hook.Keycode[right]; ok && rc == code {
			return hook.Keycode[left]
		}
	}
	return code
}

func isModifier(code uint16) bool {
	for _, m := range modifierNames {
		if hook.Keycode[m] == code {
			return true
		}
	}
	return false
}
