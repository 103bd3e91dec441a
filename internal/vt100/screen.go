package vt100

import (
	"fmt"

	"github.com/trybotster/seshterm/internal/notification"
)

// AltScreenMode selects the flavor of alternate-screen switch. Every flavor
// returns the primary cursor to where it was on entry.
type AltScreenMode int

const (
	// AltScreenPlain is mode 47: switch grids only.
	AltScreenPlain AltScreenMode = 47
	// AltScreenClear is mode 1047: clear the alternate grid on exit.
	AltScreenClear AltScreenMode = 1047
	// AltScreenSaveCursor is mode 1049: save the cursor and clear the
	// alternate grid on entry, restore the cursor on exit.
	AltScreenSaveCursor AltScreenMode = 1049
)

// SetMode sets mode m. Origin mode homes the cursor.
func (t *Terminal) SetMode(m Mode, on bool) {
	if t.modes.Get(m) == on {
		return
	}
	t.modes.Set(m, on)
	switch m {
	case ModeOrigin:
		t.MoveTo(0, 0)
	case ModeAutoWrap:
		if !on {
			t.cursor.PendingWrap = false
		}
	}
	t.changed()
}

// SetCursorShape records the DECSCUSR cursor style.
func (t *Terminal) SetCursorShape(shape int) {
	t.cursorShape = shape
	t.changed()
}

// EnterAltScreen switches to the alternate screen. Entering while already
// on the alternate screen does nothing.
func (t *Terminal) EnterAltScreen(mode AltScreenMode) {
	if t.alt {
		return
	}
	t.altReturn = t.cursor
	if mode == AltScreenSaveCursor {
		t.SaveCursor()
	}
	t.alt = true
	t.grid = t.alternate
	if mode == AltScreenSaveCursor {
		for r := 0; r < t.rows; r++ {
			t.grid.ClearLine(r, t.pen())
		}
	}
	t.grid.MarkAllDirty()
	t.changed()
}

// ExitAltScreen returns to the primary screen. Exiting while on the
// primary screen does nothing.
func (t *Terminal) ExitAltScreen(mode AltScreenMode) {
	if !t.alt {
		return
	}
	if mode == AltScreenClear {
		for r := 0; r < t.rows; r++ {
			t.grid.ClearLine(r, t.pen())
		}
	}
	t.alt = false
	t.grid = t.primary
	t.cursor = t.altReturn
	if mode == AltScreenSaveCursor {
		t.RestoreCursor()
	}
	t.grid.MarkAllDirty()
	t.changed()
}

func (t *Terminal) screenIndex() int {
	if t.alt {
		return 1
	}
	return 0
}

// SaveCursor stores the cursor, pen, origin mode and charsets (DECSC).
func (t *Terminal) SaveCursor() {
	t.saved[t.screenIndex()] = SavedCursor{
		Cursor:   t.cursor,
		Origin:   t.modes.Get(ModeOrigin),
		Charsets: t.charsets,
		GL:       t.gl,
		valid:    true,
	}
	t.changed()
}

// RestoreCursor restores the state saved by SaveCursor (DECRC). With
// nothing saved the cursor homes and the pen resets.
func (t *Terminal) RestoreCursor() {
	s := t.saved[t.screenIndex()]
	if !s.valid {
		t.cursor = Cursor{}
		t.modes.Set(ModeOrigin, false)
		t.charsets = [2]Charset{}
		t.gl = 0
		t.changed()
		return
	}
	t.cursor = s.Cursor
	t.cursor.Row = clamp(t.cursor.Row, 0, t.rows-1)
	t.cursor.Col = clamp(t.cursor.Col, 0, t.cols-1)
	t.modes.Set(ModeOrigin, s.Origin)
	t.charsets = s.Charsets
	t.gl = s.GL
	t.changed()
}

// DesignateCharset sets G0 (g=0) or G1 (g=1).
func (t *Terminal) DesignateCharset(g int, cs Charset) {
	if g < 0 || g > 1 {
		return
	}
	t.charsets[g] = cs
	t.changed()
}

// ShiftCharset invokes G0 (SI) or G1 (SO) into GL.
func (t *Terminal) ShiftCharset(g int) {
	if g < 0 || g > 1 {
		return
	}
	t.gl = g
	t.changed()
}

// SetTitle sets the window title.
func (t *Terminal) SetTitle(title string) {
	t.title = title
	t.changed()
}

// SetIconName sets the icon name.
func (t *Terminal) SetIconName(name string) {
	t.iconName = name
	t.changed()
}

// SetWorkingDir records the working directory reported by the shell.
func (t *Terminal) SetWorkingDir(dir string) {
	t.workingDir = dir
	t.changed()
}

// Bell rings the bell.
func (t *Terminal) Bell() {
	t.bells++
	t.notifications = append(t.notifications, notification.Notification{Type: notification.TypeBell})
	t.changed()
}

// Notify queues a desktop notification raised by the child.
func (t *Terminal) Notify(n notification.Notification) {
	t.notifications = append(t.notifications, n)
	t.changed()
}

// SoftReset performs DECSTR: modes, margins, pen and saved cursor return
// to defaults. Screen contents and cursor position are kept.
func (t *Terminal) SoftReset() {
	t.modes.Set(ModeInsert, false)
	t.modes.Set(ModeOrigin, false)
	t.modes.Set(ModeAutoWrap, true)
	t.modes.Set(ModeCursorVisible, true)
	t.modes.Set(ModeCursorKeys, false)
	t.modes.Set(ModeKeypadApplication, false)
	t.top, t.bottom = 0, t.rows-1
	t.cursor.Pen = Style{}
	t.cursor.PendingWrap = false
	t.charsets = [2]Charset{}
	t.gl = 0
	t.saved = [2]SavedCursor{}
	t.changed()
}

// Reset performs RIS: back to the primary screen with both grids cleared,
// all state at defaults. Scrollback is kept; title metadata is cleared.
func (t *Terminal) Reset() {
	t.alt = false
	t.primary = NewGrid(t.rows, t.cols)
	t.alternate = NewGrid(t.rows, t.cols)
	t.grid = t.primary
	t.grid.MarkAllDirty()
	t.title, t.iconName, t.workingDir = "", "", ""
	t.resetState()
	t.changed()
}

// Resize changes the terminal dimensions.
//
// Shrinking drops trailing blank rows below the cursor first, then pushes
// rows from the top of the primary screen into scrollback. Growing pads
// blank rows at the bottom. Columns are truncated or padded per row. The
// whole screen is marked dirty.
func (t *Terminal) Resize(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, rows, cols)
	}
	if rows == t.rows && cols == t.cols {
		return nil
	}

	active, inactive := 0, 1
	if t.alt {
		active, inactive = 1, 0
	}
	grids := [2]*Grid{t.primary, t.alternate}

	t.resizeGrid(grids[active], rows, cols, &t.cursor.Row, !t.alt)
	savedRow := t.saved[inactive].Row
	t.resizeGrid(grids[inactive], rows, cols, &savedRow, t.alt)
	if t.alt {
		t.altReturn.Row += savedRow - t.saved[inactive].Row
	}
	t.saved[inactive].Row = savedRow

	oldCols := t.cols
	t.rows, t.cols = rows, cols
	t.top, t.bottom = 0, rows-1
	t.resetTabs(min(oldCols, cols))

	t.cursor.Row = clamp(t.cursor.Row, 0, rows-1)
	t.cursor.Col = clamp(t.cursor.Col, 0, cols-1)
	t.cursor.PendingWrap = false
	t.altReturn.Row = clamp(t.altReturn.Row, 0, rows-1)
	t.altReturn.Col = clamp(t.altReturn.Col, 0, cols-1)
	t.altReturn.PendingWrap = false
	for i := range t.saved {
		t.saved[i].Row = clamp(t.saved[i].Row, 0, rows-1)
		t.saved[i].Col = clamp(t.saved[i].Col, 0, cols-1)
	}

	t.changed()
	return nil
}

// resizeGrid reshapes g. cursorRow is adjusted for rows removed from the
// top; those rows go to scrollback when toScrollback is set.
func (t *Terminal) resizeGrid(g *Grid, rows, cols int, cursorRow *int, toScrollback bool) {
	g.resizeCols(cols)

	lines := g.lines
	if rows < len(lines) {
		for len(lines) > rows && len(lines)-1 > *cursorRow && lines[len(lines)-1].IsBlank() {
			lines = lines[:len(lines)-1]
		}
		if extra := len(lines) - rows; extra > 0 {
			if toScrollback {
				for _, l := range lines[:extra] {
					t.scrollback.Push(l)
				}
			}
			lines = lines[extra:]
			*cursorRow -= extra
		}
	}
	for len(lines) < rows {
		lines = append(lines, NewLine(cols, Style{}))
	}
	g.lines = lines
	g.dirty = make([]span, rows)
	g.MarkAllDirty()
}
