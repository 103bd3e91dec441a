package interp

import (
	"fmt"

	"github.com/trybotster/seshterm/internal/vt100"
	"github.com/trybotster/seshterm/internal/vtparse"
)

type csiKey struct {
	final        byte
	private      byte
	intermediate byte
}

type csiHandler func(in *Interpreter, p vtparse.Params)

var csiTable = make(map[csiKey]csiHandler)

func onCSI(final, private, intermediate byte, h csiHandler) {
	csiTable[csiKey{final: final, private: private, intermediate: intermediate}] = h
}

func init() {
	onCSI('@', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.InsertChars(p.Get(0, 1)) })
	onCSI('A', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.CursorUp(p.Get(0, 1)) })
	onCSI('B', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.CursorDown(p.Get(0, 1)) })
	onCSI('C', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.CursorForward(p.Get(0, 1)) })
	onCSI('D', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.CursorBack(p.Get(0, 1)) })
	onCSI('E', 0, 0, func(in *Interpreter, p vtparse.Params) {
		in.term.CursorDown(p.Get(0, 1))
		in.term.CarriageReturn()
	})
	onCSI('F', 0, 0, func(in *Interpreter, p vtparse.Params) {
		in.term.CursorUp(p.Get(0, 1))
		in.term.CarriageReturn()
	})
	onCSI('G', 0, 0, csiColumn)
	onCSI('`', 0, 0, csiColumn)
	onCSI('H', 0, 0, csiPosition)
	onCSI('f', 0, 0, csiPosition)
	onCSI('I', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.TabForward(p.Get(0, 1)) })
	onCSI('J', 0, 0, csiEraseDisplay)
	onCSI('J', '?', 0, csiEraseDisplay)
	onCSI('K', 0, 0, csiEraseLine)
	onCSI('K', '?', 0, csiEraseLine)
	onCSI('L', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.InsertLines(p.Get(0, 1)) })
	onCSI('M', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.DeleteLines(p.Get(0, 1)) })
	onCSI('P', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.DeleteChars(p.Get(0, 1)) })
	onCSI('S', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.ScrollUp(p.Get(0, 1)) })
	onCSI('T', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.ScrollDown(p.Get(0, 1)) })
	onCSI('X', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.EraseChars(p.Get(0, 1)) })
	onCSI('Z', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.TabBackward(p.Get(0, 1)) })
	onCSI('a', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.CursorForward(p.Get(0, 1)) })
	onCSI('b', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.RepeatLast(p.Get(0, 1)) })
	onCSI('c', 0, 0, csiPrimaryDA)
	onCSI('c', '>', 0, csiSecondaryDA)
	onCSI('d', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.SetRow(p.Get(0, 1) - 1) })
	onCSI('e', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.CursorDown(p.Get(0, 1)) })
	onCSI('g', 0, 0, csiTabClear)
	onCSI('h', 0, 0, func(in *Interpreter, p vtparse.Params) { in.setANSIModes(p, true) })
	onCSI('l', 0, 0, func(in *Interpreter, p vtparse.Params) { in.setANSIModes(p, false) })
	onCSI('h', '?', 0, func(in *Interpreter, p vtparse.Params) { in.setDECModes(p, true) })
	onCSI('l', '?', 0, func(in *Interpreter, p vtparse.Params) { in.setDECModes(p, false) })
	onCSI('m', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.SetPen(applySGR(in.term.Pen(), p)) })
	onCSI('n', 0, 0, func(in *Interpreter, p vtparse.Params) { in.deviceStatus(p, false) })
	onCSI('n', '?', 0, func(in *Interpreter, p vtparse.Params) { in.deviceStatus(p, true) })
	onCSI('r', 0, 0, csiScrollRegion)
	onCSI('s', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.SaveCursor() })
	onCSI('u', 0, 0, func(in *Interpreter, p vtparse.Params) { in.term.RestoreCursor() })
	onCSI('p', 0, '!', func(in *Interpreter, p vtparse.Params) { in.term.SoftReset() })
	onCSI('q', 0, ' ', func(in *Interpreter, p vtparse.Params) { in.term.SetCursorShape(p.Raw(0)) })
}

func (in *Interpreter) csiDispatch(a vtparse.Action) {
	if len(a.Intermediates) > 1 {
		in.log.Debug("unhandled csi", "seq", a.String())
		return
	}
	key := csiKey{final: a.Final, private: a.Private, intermediate: a.Intermediate()}
	h, ok := csiTable[key]
	if !ok {
		in.log.Debug("unhandled csi", "seq", a.String())
		return
	}
	h(in, a.Params)
}

func csiColumn(in *Interpreter, p vtparse.Params) {
	in.term.SetColumn(p.Get(0, 1) - 1)
}

func csiPosition(in *Interpreter, p vtparse.Params) {
	in.term.MoveTo(p.Get(0, 1)-1, p.Get(1, 1)-1)
}

func csiEraseDisplay(in *Interpreter, p vtparse.Params) {
	in.term.EraseInDisplay(vt100.EraseMode(p.Raw(0)))
}

func csiEraseLine(in *Interpreter, p vtparse.Params) {
	in.term.EraseInLine(vt100.EraseMode(p.Raw(0)))
}

func csiTabClear(in *Interpreter, p vtparse.Params) {
	switch p.Raw(0) {
	case 0:
		in.term.ClearTabStop()
	case 3:
		in.term.ClearAllTabStops()
	}
}

func csiScrollRegion(in *Interpreter, p vtparse.Params) {
	rows, _ := in.term.Size()
	in.term.SetScrollRegion(p.Get(0, 1)-1, p.Get(1, rows)-1)
}

// csiPrimaryDA answers as a VT220 with ANSI color.
func csiPrimaryDA(in *Interpreter, p vtparse.Params) {
	if p.Raw(0) != 0 {
		return
	}
	in.write("\x1b[?62;22c")
}

func csiSecondaryDA(in *Interpreter, p vtparse.Params) {
	if p.Raw(0) != 0 {
		return
	}
	in.write("\x1b[>1;10;0c")
}

// deviceStatus answers DSR 5 (status) and 6 (cursor position). The
// private form (DECXCPR) echoes the '?' marker.
func (in *Interpreter) deviceStatus(p vtparse.Params, private bool) {
	switch p.Raw(0) {
	case 5:
		in.write("\x1b[0n")
	case 6:
		row, col := in.term.CursorPosition()
		if in.term.Mode(vt100.ModeOrigin) {
			top, _ := in.term.ScrollRegion()
			row -= top
		}
		prefix := ""
		if private {
			prefix = "?"
		}
		in.write(fmt.Sprintf("\x1b[%s%d;%dR", prefix, row+1, col+1))
	}
}

func (in *Interpreter) setANSIModes(p vtparse.Params, on bool) {
	for _, n := range p {
		switch n {
		case 4:
			in.term.SetMode(vt100.ModeInsert, on)
		case 20:
			in.term.SetMode(vt100.ModeLineFeedNewLine, on)
		default:
			in.log.Debug("unhandled ansi mode", "mode", n, "set", on)
		}
	}
}

var decModes = map[int]vt100.Mode{
	1:    vt100.ModeCursorKeys,
	5:    vt100.ModeReverseVideo,
	6:    vt100.ModeOrigin,
	7:    vt100.ModeAutoWrap,
	9:    vt100.ModeMouseX10,
	12:   vt100.ModeCursorBlink,
	25:   vt100.ModeCursorVisible,
	1000: vt100.ModeMouseNormal,
	1002: vt100.ModeMouseButton,
	1003: vt100.ModeMouseAny,
	1004: vt100.ModeFocusEvents,
	1006: vt100.ModeMouseSGR,
	2004: vt100.ModeBracketedPaste,
	2026: vt100.ModeSyncOutput,
}

func (in *Interpreter) setDECModes(p vtparse.Params, on bool) {
	for _, n := range p {
		switch n {
		case 47, 1047, 1049:
			mode := vt100.AltScreenMode(n)
			if on {
				in.term.EnterAltScreen(mode)
			} else {
				in.term.ExitAltScreen(mode)
			}
		case 1048:
			if on {
				in.term.SaveCursor()
			} else {
				in.term.RestoreCursor()
			}
		default:
			m, ok := decModes[n]
			if !ok {
				in.log.Debug("unhandled dec mode", "mode", n, "set", on)
				continue
			}
			in.term.SetMode(m, on)
		}
	}
}
