package vt100

// EraseMode selects the range of an erase operation.
type EraseMode int

const (
	// EraseToEnd clears from the cursor to the end (inclusive).
	EraseToEnd EraseMode = 0
	// EraseToStart clears from the start to the cursor (inclusive).
	EraseToStart EraseMode = 1
	// EraseAll clears everything.
	EraseAll EraseMode = 2
	// EraseScrollback clears the scrollback (ED 3).
	EraseScrollback EraseMode = 3
)

// EraseInLine clears part of the cursor row to the pen background. The
// cursor does not move.
func (t *Terminal) EraseInLine(mode EraseMode) {
	row, col := t.cursor.Row, t.cursor.Col
	blank := BlankCell(t.pen())
	switch mode {
	case EraseToEnd:
		t.grid.Fill(row, col, t.cols, blank)
		t.grid.SetWrapped(row, false)
	case EraseToStart:
		t.grid.Fill(row, 0, col+1, blank)
	case EraseAll:
		t.grid.Fill(row, 0, t.cols, blank)
		t.grid.SetWrapped(row, false)
	default:
		return
	}
	t.cursor.PendingWrap = false
	t.changed()
}

// EraseInDisplay clears part of the screen to the pen background. The
// cursor does not move.
func (t *Terminal) EraseInDisplay(mode EraseMode) {
	row, col := t.cursor.Row, t.cursor.Col
	blank := BlankCell(t.pen())
	switch mode {
	case EraseToEnd:
		t.grid.Fill(row, col, t.cols, blank)
		t.grid.SetWrapped(row, false)
		for r := row + 1; r < t.rows; r++ {
			t.grid.ClearLine(r, t.pen())
		}
	case EraseToStart:
		for r := 0; r < row; r++ {
			t.grid.ClearLine(r, t.pen())
		}
		t.grid.Fill(row, 0, col+1, blank)
	case EraseAll:
		for r := 0; r < t.rows; r++ {
			t.grid.ClearLine(r, t.pen())
		}
	case EraseScrollback:
		t.scrollback.Clear()
	default:
		return
	}
	t.cursor.PendingWrap = false
	t.changed()
}

// EraseChars clears n cells starting at the cursor without shifting (ECH).
func (t *Terminal) EraseChars(n int) {
	col := t.cursor.Col
	t.grid.Fill(t.cursor.Row, col, col+max(n, 1), BlankCell(t.pen()))
	t.cursor.PendingWrap = false
	t.changed()
}

// InsertChars inserts n blank cells at the cursor (ICH).
func (t *Terminal) InsertChars(n int) {
	t.grid.InsertCells(t.cursor.Row, t.cursor.Col, max(n, 1), t.pen())
	t.cursor.PendingWrap = false
	t.changed()
}

// DeleteChars deletes n cells at the cursor (DCH).
func (t *Terminal) DeleteChars(n int) {
	t.grid.DeleteCells(t.cursor.Row, t.cursor.Col, max(n, 1), t.pen())
	t.cursor.PendingWrap = false
	t.changed()
}

// InsertLines inserts n blank lines at the cursor row, pushing lines below
// down within the scroll region (IL). Outside the region it does nothing.
func (t *Terminal) InsertLines(n int) {
	if t.cursor.Row < t.top || t.cursor.Row > t.bottom {
		return
	}
	t.grid.ScrollDown(t.cursor.Row, t.bottom, max(n, 1), t.pen())
	t.cursor.Col = 0
	t.cursor.PendingWrap = false
	t.changed()
}

// DeleteLines deletes n lines at the cursor row, pulling lines below up
// within the scroll region (DL). Deleted lines never enter scrollback.
func (t *Terminal) DeleteLines(n int) {
	if t.cursor.Row < t.top || t.cursor.Row > t.bottom {
		return
	}
	t.grid.ScrollUp(t.cursor.Row, t.bottom, max(n, 1), t.pen())
	t.cursor.Col = 0
	t.cursor.PendingWrap = false
	t.changed()
}

// ScrollUp scrolls the region up n lines (SU).
func (t *Terminal) ScrollUp(n int) {
	t.scrollUp(t.top, t.bottom, max(n, 1))
	t.changed()
}

// ScrollDown scrolls the region down n lines (SD).
func (t *Terminal) ScrollDown(n int) {
	t.grid.ScrollDown(t.top, t.bottom, max(n, 1), t.pen())
	t.changed()
}

// SetScrollRegion sets the scroll margins (0-based, inclusive) and homes
// the cursor. A region of fewer than two rows is rejected.
func (t *Terminal) SetScrollRegion(top, bottom int) {
	top = clamp(top, 0, t.rows-1)
	bottom = clamp(bottom, 0, t.rows-1)
	if top >= bottom {
		return
	}
	t.top, t.bottom = top, bottom
	t.MoveTo(0, 0)
}

// SetTabStop sets a tab stop at the cursor column (HTS).
func (t *Terminal) SetTabStop() {
	t.tabs[t.cursor.Col] = true
	t.changed()
}

// ClearTabStop clears the tab stop at the cursor column.
func (t *Terminal) ClearTabStop() {
	t.tabs[t.cursor.Col] = false
	t.changed()
}

// ClearAllTabStops removes every tab stop.
func (t *Terminal) ClearAllTabStops() {
	clear(t.tabs)
	t.changed()
}

// TabForward moves to the n-th next tab stop, or the last column.
func (t *Terminal) TabForward(n int) {
	col := t.cursor.Col
	for range max(n, 1) {
		col++
		for col < t.cols-1 && !t.tabs[col] {
			col++
		}
		if col >= t.cols-1 {
			col = t.cols - 1
			break
		}
	}
	t.cursor.Col = col
	t.cursor.PendingWrap = false
	t.changed()
}

// TabBackward moves to the n-th previous tab stop, or column 0 (CBT).
func (t *Terminal) TabBackward(n int) {
	col := t.cursor.Col
	for range max(n, 1) {
		col--
		for col > 0 && !t.tabs[col] {
			col--
		}
		if col <= 0 {
			col = 0
			break
		}
	}
	t.cursor.Col = col
	t.cursor.PendingWrap = false
	t.changed()
}

// FillScreen fills the screen with 'E' (DECALN) and resets the margins.
func (t *Terminal) FillScreen() {
	cell := Cell{Content: "E", Width: 1}
	for r := 0; r < t.rows; r++ {
		t.grid.ClearLine(r, Style{})
		t.grid.Fill(r, 0, t.cols, cell)
	}
	t.top, t.bottom = 0, t.rows-1
	t.cursor.Row, t.cursor.Col = 0, 0
	t.cursor.PendingWrap = false
	t.changed()
}
