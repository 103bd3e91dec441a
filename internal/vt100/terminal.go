// Package vt100 provides the terminal state model: the primary and
// alternate grids, the cursor, modes, scrollback and the metadata set by
// OSC sequences.
//
// A Terminal is mutated only through its operation methods, each of which
// advances the generation counter and marks the affected cells dirty.
// Observers never touch a Terminal; they receive immutable Snapshots and
// Deltas produced by Commit. A Terminal is not safe for concurrent use.
package vt100

import (
	"hash/fnv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/trybotster/seshterm/internal/notification"
)

// Default dimensions.
const (
	DefaultRows = 24
	DefaultCols = 80

	defaultTabWidth = 8
)

// widthCond fixes ambiguous-width runes to a single column so that the
// grid layout never depends on the host locale.
var widthCond = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// RuneWidth returns the number of columns r occupies.
func RuneWidth(r rune) int {
	return widthCond.RuneWidth(r)
}

// Terminal is the emulated terminal state.
type Terminal struct {
	rows, cols int

	primary   *Grid
	alternate *Grid
	grid      *Grid
	alt       bool

	cursor      Cursor
	saved       [2]SavedCursor
	// altReturn is the primary cursor while the alternate screen is up.
	altReturn Cursor
	modes       ModeSet
	cursorShape int

	// Scroll region, inclusive.
	top, bottom int

	tabs []bool

	charsets [2]Charset
	gl       int

	scrollback *Scrollback

	title      string
	iconName   string
	workingDir string

	bells         uint64
	notifications []notification.Notification

	lastRune rune
	gen      uint64
}

// New creates a terminal with the default scrollback bound.
func New(rows, cols int) *Terminal {
	return NewWithScrollback(rows, cols, DefaultScrollback)
}

// NewWithScrollback creates a terminal with a custom scrollback bound.
// Non-positive dimensions fall back to the defaults.
func NewWithScrollback(rows, cols, scrollback int) *Terminal {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	t := &Terminal{
		rows:       rows,
		cols:       cols,
		primary:    NewGrid(rows, cols),
		alternate:  NewGrid(rows, cols),
		scrollback: NewScrollback(scrollback),
	}
	t.grid = t.primary
	t.resetState()
	return t
}

// resetState restores everything except the grids' contents and scrollback
// to power-on defaults.
func (t *Terminal) resetState() {
	t.cursor = Cursor{}
	t.saved = [2]SavedCursor{}
	t.altReturn = Cursor{}
	t.modes = DefaultModes
	t.cursorShape = 0
	t.top, t.bottom = 0, t.rows-1
	t.charsets = [2]Charset{}
	t.gl = 0
	t.lastRune = 0
	t.resetTabs(0)
}

func (t *Terminal) resetTabs(from int) {
	tabs := make([]bool, t.cols)
	copy(tabs, t.tabs[:min(from, len(t.tabs))])
	for c := from; c < t.cols; c++ {
		tabs[c] = c > 0 && c%defaultTabWidth == 0
	}
	t.tabs = tabs
}

// changed advances the generation counter.
func (t *Terminal) changed() {
	t.gen++
}

// Generation returns the current generation.
func (t *Terminal) Generation() uint64 { return t.gen }

// Size returns the terminal dimensions.
func (t *Terminal) Size() (rows, cols int) { return t.rows, t.cols }

// Cursor returns the cursor.
func (t *Terminal) Cursor() Cursor { return t.cursor }

// CursorPosition returns the current cursor position (row, col).
func (t *Terminal) CursorPosition() (row, col int) {
	return t.cursor.Row, t.cursor.Col
}

// CursorState returns the cursor as observers see it.
func (t *Terminal) CursorState() CursorState {
	return CursorState{
		Row:     t.cursor.Row,
		Col:     t.cursor.Col,
		Visible: t.modes.Get(ModeCursorVisible),
		Shape:   t.cursorShape,
	}
}

// Modes returns the active mode set.
func (t *Terminal) Modes() ModeSet { return t.modes }

// Mode reports whether m is set.
func (t *Terminal) Mode(m Mode) bool { return t.modes.Get(m) }

// AltScreen reports whether the alternate screen is active.
func (t *Terminal) AltScreen() bool { return t.alt }

// ScrollRegion returns the scroll region (0-based, inclusive).
func (t *Terminal) ScrollRegion() (top, bottom int) { return t.top, t.bottom }

// Grid returns the active grid.
func (t *Terminal) Grid() *Grid { return t.grid }

// Cell returns the cell at (row, col) of the active grid.
func (t *Terminal) Cell(row, col int) Cell { return t.grid.Cell(row, col) }

// Scrollback returns the scrollback buffer.
func (t *Terminal) Scrollback() *Scrollback { return t.scrollback }

// Title returns the window title.
func (t *Terminal) Title() string { return t.title }

// IconName returns the icon name.
func (t *Terminal) IconName() string { return t.iconName }

// WorkingDir returns the working directory reported by OSC 7.
func (t *Terminal) WorkingDir() string { return t.workingDir }

// Bells returns the number of bells rung.
func (t *Terminal) Bells() uint64 { return t.bells }

// TakeNotifications returns and clears the pending notifications.
func (t *Terminal) TakeNotifications() []notification.Notification {
	n := t.notifications
	t.notifications = nil
	return n
}

// Text returns the visible screen as lines (plain text, trailing blanks
// trimmed).
func (t *Terminal) Text() []string {
	lines := make([]string, t.rows)
	for r := range lines {
		lines[r] = t.grid.lines[r].String()
	}
	return lines
}

// Contents returns the visible screen content as a single string.
func (t *Terminal) Contents() string {
	return strings.Join(t.Text(), "\n")
}

// Hash computes a hash of the visible screen and cursor for change
// detection.
func (t *Terminal) Hash() uint64 {
	h := fnv.New64a()
	for r := 0; r < t.rows; r++ {
		for _, c := range t.grid.lines[r].Cells {
			h.Write([]byte(c.Content))
		}
	}
	hashCursor(h, t.cursor.Row, t.cursor.Col)
	return h.Sum64()
}

// pen returns the current drawing style.
func (t *Terminal) pen() Style { return t.cursor.Pen }

// SetPen replaces the drawing style.
func (t *Terminal) SetPen(s Style) {
	t.cursor.Pen = s
	t.changed()
}

// Pen returns the drawing style.
func (t *Terminal) Pen() Style { return t.cursor.Pen }

// Print writes r at the cursor and advances it.
func (t *Terminal) Print(r rune) {
	r = t.charsets[t.gl].Translate(r)
	w := RuneWidth(r)
	if w == 0 {
		t.combine(r)
		return
	}
	if w > 2 {
		w = 2
	}
	if w == 2 && t.cols < 2 {
		w = 1
	}

	autowrap := t.modes.Get(ModeAutoWrap)
	if t.cursor.PendingWrap && autowrap {
		t.wrap()
	}
	if w == 2 && t.cursor.Col == t.cols-1 {
		if autowrap {
			t.wrap()
		} else {
			t.cursor.Col = t.cols - 2
		}
	}

	row, col := t.cursor.Row, t.cursor.Col
	g := t.grid
	if t.modes.Get(ModeInsert) {
		g.InsertCells(row, col, w, t.pen())
	}
	g.fixWide(row, col)
	if w == 2 {
		g.fixWide(row, col+1)
	}

	pen := t.pen()
	g.SetCell(row, col, Cell{Content: string(r), Width: uint8(w), FG: pen.FG, BG: pen.BG, Attrs: pen.Attrs})
	if w == 2 {
		g.SetCell(row, col+1, Cell{Width: 0, FG: pen.FG, BG: pen.BG, Attrs: pen.Attrs})
	}
	t.lastRune = r

	next := col + w
	if next >= t.cols {
		t.cursor.Col = t.cols - 1
		t.cursor.PendingWrap = autowrap
	} else {
		t.cursor.Col = next
		t.cursor.PendingWrap = false
	}
	t.changed()
}

// combine attaches a zero-width rune to the previously printed cell.
func (t *Terminal) combine(r rune) {
	row, col := t.cursor.Row, t.cursor.Col
	if !t.cursor.PendingWrap {
		col--
	}
	if col < 0 {
		return
	}
	if t.grid.Cell(row, col).Width == 0 && col > 0 {
		col--
	}
	cell := t.grid.Cell(row, col)
	if cell.Content == "" {
		return
	}
	cell.Content += string(r)
	t.grid.SetCell(row, col, cell)
	t.changed()
}

// wrap performs a pending soft wrap: flag the row and move to the start of
// the next line, scrolling at the bottom margin.
func (t *Terminal) wrap() {
	t.grid.SetWrapped(t.cursor.Row, true)
	t.cursor.Col = 0
	t.cursor.PendingWrap = false
	t.index()
}

// RepeatLast prints the last printed character n more times (REP).
func (t *Terminal) RepeatLast(n int) {
	if t.lastRune == 0 {
		return
	}
	n = min(n, t.rows*t.cols)
	for range n {
		t.Print(t.lastRune)
	}
}

// Backspace moves the cursor one column left, stopping at column 0.
func (t *Terminal) Backspace() {
	t.cursor.PendingWrap = false
	if t.cursor.Col > 0 {
		t.cursor.Col--
	}
	t.changed()
}

// CarriageReturn moves the cursor to column 0.
func (t *Terminal) CarriageReturn() {
	t.cursor.Col = 0
	t.cursor.PendingWrap = false
	t.changed()
}

// LineFeed moves down one line, scrolling at the bottom margin. With LNM
// set it also returns the carriage.
func (t *Terminal) LineFeed() {
	if t.modes.Get(ModeLineFeedNewLine) {
		t.cursor.Col = 0
	}
	t.Index()
}

// Index moves the cursor down one line, scrolling the region up when the
// cursor is on the bottom margin (IND).
func (t *Terminal) Index() {
	t.cursor.PendingWrap = false
	t.index()
	t.changed()
}

func (t *Terminal) index() {
	switch {
	case t.cursor.Row == t.bottom:
		t.scrollUp(t.top, t.bottom, 1)
	case t.cursor.Row < t.rows-1:
		t.cursor.Row++
	}
}

// ReverseIndex moves the cursor up one line, scrolling the region down
// when the cursor is on the top margin (RI).
func (t *Terminal) ReverseIndex() {
	t.cursor.PendingWrap = false
	switch {
	case t.cursor.Row == t.top:
		t.grid.ScrollDown(t.top, t.bottom, 1, t.pen())
	case t.cursor.Row > 0:
		t.cursor.Row--
	}
	t.changed()
}

// NextLine is CR followed by IND (NEL).
func (t *Terminal) NextLine() {
	t.cursor.Col = 0
	t.Index()
}

// scrollUp scrolls [top, bottom] up n rows. Rows leaving the top of the
// primary screen go to scrollback when the region starts at row 0.
func (t *Terminal) scrollUp(top, bottom, n int) {
	evicted := t.grid.ScrollUp(top, bottom, n, t.pen())
	if t.alt || top != 0 {
		return
	}
	for _, l := range evicted {
		t.scrollback.Push(l)
	}
}

// CursorUp moves up n rows, stopping at the top margin when starting
// inside the region.
func (t *Terminal) CursorUp(n int) {
	limit := 0
	if t.cursor.Row >= t.top {
		limit = t.top
	}
	t.cursor.Row = max(t.cursor.Row-max(n, 1), limit)
	t.cursor.PendingWrap = false
	t.changed()
}

// CursorDown moves down n rows, stopping at the bottom margin when
// starting inside the region.
func (t *Terminal) CursorDown(n int) {
	limit := t.rows - 1
	if t.cursor.Row <= t.bottom {
		limit = t.bottom
	}
	t.cursor.Row = min(t.cursor.Row+max(n, 1), limit)
	t.cursor.PendingWrap = false
	t.changed()
}

// CursorForward moves right n columns, stopping at the right edge.
func (t *Terminal) CursorForward(n int) {
	t.cursor.Col = min(t.cursor.Col+max(n, 1), t.cols-1)
	t.cursor.PendingWrap = false
	t.changed()
}

// CursorBack moves left n columns, stopping at column 0.
func (t *Terminal) CursorBack(n int) {
	t.cursor.Col = max(t.cursor.Col-max(n, 1), 0)
	t.cursor.PendingWrap = false
	t.changed()
}

// SetColumn moves to column col (0-based), clamped.
func (t *Terminal) SetColumn(col int) {
	t.cursor.Col = clamp(col, 0, t.cols-1)
	t.cursor.PendingWrap = false
	t.changed()
}

// SetRow moves to row (0-based), relative to the scroll region in origin
// mode.
func (t *Terminal) SetRow(row int) {
	t.cursor.Row = t.resolveRow(row)
	t.cursor.PendingWrap = false
	t.changed()
}

// MoveTo moves to (row, col), 0-based, honoring origin mode.
func (t *Terminal) MoveTo(row, col int) {
	t.cursor.Row = t.resolveRow(row)
	t.cursor.Col = clamp(col, 0, t.cols-1)
	t.cursor.PendingWrap = false
	t.changed()
}

func (t *Terminal) resolveRow(row int) int {
	if t.modes.Get(ModeOrigin) {
		return clamp(row+t.top, t.top, t.bottom)
	}
	return clamp(row, 0, t.rows-1)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
