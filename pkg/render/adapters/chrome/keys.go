package chrome

import (
	"strings"

	"github.com/go-rod/rod/lib/input"
)

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"return":     input.Enter,
	"backspace":  input.Backspace,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"delete":     input.Delete,
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"space":      input.Key(' '),
}

// lookupKey resolves a DOM key name ("Enter", "ArrowLeft") or a single
// printable ASCII character to a rod key. Other input is reported as not a key
// so the caller can insert it as text.
func lookupKey(name string) (input.Key, bool) {
	if k, ok := namedKeys[strings.ToLower(name)]; ok {
		return k, true
	}
	if len(name) == 1 && name[0] >= 0x20 && name[0] < 0x7f {
		return input.Key(rune(name[0])), true
	}
	return 0, false
}
