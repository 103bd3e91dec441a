package tui

import (
	"github.com/gdamore/tcell/v2"
)

// csiTilde holds keys sent as CSI <n> ~.
var csiTilde = map[tcell.Key]string{
	tcell.KeyInsert: "2",
	tcell.KeyDelete: "3",
	tcell.KeyPgUp:   "5",
	tcell.KeyPgDn:   "6",
	tcell.KeyF5:     "15",
	tcell.KeyF6:     "17",
	tcell.KeyF7:     "18",
	tcell.KeyF8:     "19",
	tcell.KeyF9:     "20",
	tcell.KeyF10:    "21",
	tcell.KeyF11:    "23",
	tcell.KeyF12:    "24",
}

// ss3Keys are sent as ESC O <c> in application cursor mode and CSI <c>
// otherwise. F1-F4 always use SS3.
var ss3Keys = map[tcell.Key]byte{
	tcell.KeyUp:    'A',
	tcell.KeyDown:  'B',
	tcell.KeyRight: 'C',
	tcell.KeyLeft:  'D',
	tcell.KeyHome:  'H',
	tcell.KeyEnd:   'F',
}

var functionKeys = map[tcell.Key]byte{
	tcell.KeyF1: 'P',
	tcell.KeyF2: 'Q',
	tcell.KeyF3: 'R',
	tcell.KeyF4: 'S',
}

// EncodeKey returns the bytes an xterm sends for ev, or nil for keys with
// no encoding. appCursor selects DECCKM application cursor keys.
func EncodeKey(ev *tcell.EventKey, appCursor bool) []byte {
	alt := ev.Modifiers()&tcell.ModAlt != 0
	prefix := func(b []byte) []byte {
		if alt {
			return append([]byte{0x1b}, b...)
		}
		return b
	}

	key := ev.Key()
	switch key {
	case tcell.KeyRune:
		r := ev.Rune()
		if ev.Modifiers()&tcell.ModCtrl != 0 {
			if c, ok := ctrlCode(r); ok {
				return prefix([]byte{c})
			}
		}
		return prefix([]byte(string(r)))
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return prefix([]byte{0x7f})
	case tcell.KeyBacktab:
		return []byte("\x1b[Z")
	}

	if c, ok := ss3Keys[key]; ok {
		if appCursor {
			return []byte{0x1b, 'O', c}
		}
		return []byte{0x1b, '[', c}
	}
	if c, ok := functionKeys[key]; ok {
		return []byte{0x1b, 'O', c}
	}
	if n, ok := csiTilde[key]; ok {
		return []byte("\x1b[" + n + "~")
	}

	// Ctrl+letter, Tab, Enter, Escape and friends are their C0 code.
	if key < 0x20 {
		return prefix([]byte{byte(key)})
	}
	return nil
}

// ctrlCode maps a rune typed with Ctrl to its C0 code.
func ctrlCode(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r-'a') + 1, true
	case r >= '@' && r <= '_':
		return byte(r - '@'), true
	case r == ' ':
		return 0, true
	}
	return 0, false
}
