package interp

import (
	"github.com/trybotster/seshterm/internal/vt100"
	"github.com/trybotster/seshterm/internal/vtparse"
)

// applySGR returns pen updated by the SGR parameters p. An empty list is
// a reset.
func applySGR(pen vt100.Style, p vtparse.Params) vt100.Style {
	if len(p) == 0 {
		return vt100.Style{}
	}
	for i := 0; i < len(p); i++ {
		n := p[i]
		switch {
		case n == 0:
			pen = vt100.Style{}
		case n == 1:
			pen.Attrs |= vt100.AttrBold
		case n == 2:
			pen.Attrs |= vt100.AttrFaint
		case n == 3:
			pen.Attrs |= vt100.AttrItalic
		case n == 4 || n == 21:
			pen.Attrs |= vt100.AttrUnderline
		case n == 5 || n == 6:
			pen.Attrs |= vt100.AttrBlink
		case n == 7:
			pen.Attrs |= vt100.AttrInverse
		case n == 8:
			pen.Attrs |= vt100.AttrInvisible
		case n == 9:
			pen.Attrs |= vt100.AttrStrike
		case n == 22:
			pen.Attrs &^= vt100.AttrBold | vt100.AttrFaint
		case n == 23:
			pen.Attrs &^= vt100.AttrItalic
		case n == 24:
			pen.Attrs &^= vt100.AttrUnderline
		case n == 25:
			pen.Attrs &^= vt100.AttrBlink
		case n == 27:
			pen.Attrs &^= vt100.AttrInverse
		case n == 28:
			pen.Attrs &^= vt100.AttrInvisible
		case n == 29:
			pen.Attrs &^= vt100.AttrStrike
		case n >= 30 && n <= 37:
			pen.FG = vt100.IndexedColor(uint8(n - 30))
		case n == 38:
			if c, used, ok := extendedColor(p[i+1:]); ok {
				pen.FG = c
				i += used
			}
		case n == 39:
			pen.FG = vt100.DefaultColor
		case n >= 40 && n <= 47:
			pen.BG = vt100.IndexedColor(uint8(n - 40))
		case n == 48:
			if c, used, ok := extendedColor(p[i+1:]); ok {
				pen.BG = c
				i += used
			}
		case n == 49:
			pen.BG = vt100.DefaultColor
		case n >= 90 && n <= 97:
			pen.FG = vt100.IndexedColor(uint8(n - 90 + 8))
		case n >= 100 && n <= 107:
			pen.BG = vt100.IndexedColor(uint8(n - 100 + 8))
		}
	}
	return pen
}

// extendedColor parses the arguments following 38 or 48: "5;n" or
// "2;r;g;b". It reports how many parameters it consumed. Malformed
// arguments consume nothing so they are read as ordinary SGR codes.
func extendedColor(p vtparse.Params) (vt100.Color, int, bool) {
	if len(p) == 0 {
		return vt100.Color{}, 0, false
	}
	switch p[0] {
	case 5:
		if len(p) < 2 || p[1] > 255 {
			return vt100.Color{}, 0, false
		}
		return vt100.IndexedColor(uint8(p[1])), 2, true
	case 2:
		if len(p) < 4 || p[1] > 255 || p[2] > 255 || p[3] > 255 {
			return vt100.Color{}, 0, false
		}
		return vt100.RGBColor(uint8(p[1]), uint8(p[2]), uint8(p[3])), 4, true
	}
	return vt100.Color{}, 0, false
}
