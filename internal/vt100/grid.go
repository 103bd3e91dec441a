package vt100

// span is a half-open column range [lo, hi). An empty span (lo >= hi)
// means the row is clean.
type span struct {
	lo, hi int
}

func (s span) empty() bool { return s.lo >= s.hi }

// Grid is a fixed-size matrix of cells with per-row dirty tracking.
type Grid struct {
	cols  int
	lines []Line
	dirty []span
}

// NewGrid allocates a blank grid.
func NewGrid(rows, cols int) *Grid {
	g := &Grid{
		cols:  cols,
		lines: make([]Line, rows),
		dirty: make([]span, rows),
	}
	for r := range g.lines {
		g.lines[r] = NewLine(cols, Style{})
	}
	return g
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return len(g.lines) }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// Line returns row r. The returned line aliases grid storage.
func (g *Grid) Line(r int) *Line { return &g.lines[r] }

// Cell returns the cell at (r, c).
func (g *Grid) Cell(r, c int) Cell { return g.lines[r].Cells[c] }

// SetCell replaces the cell at (r, c) and marks it dirty.
func (g *Grid) SetCell(r, c int, cell Cell) {
	g.lines[r].Cells[c] = cell
	g.markDirty(r, c, c+1)
}

// SetWrapped sets the soft-wrap flag of row r.
func (g *Grid) SetWrapped(r int, wrapped bool) {
	if g.lines[r].Wrapped == wrapped {
		return
	}
	g.lines[r].Wrapped = wrapped
	// Flag changes travel with the row's dirty cells.
	g.markDirty(r, g.cols-1, g.cols)
}

func (g *Grid) markDirty(r, lo, hi int) {
	lo = max(lo, 0)
	hi = min(hi, g.cols)
	if lo >= hi {
		return
	}
	d := &g.dirty[r]
	if d.empty() {
		*d = span{lo, hi}
		return
	}
	d.lo = min(d.lo, lo)
	d.hi = max(d.hi, hi)
}

// MarkRowDirty marks an entire row dirty.
func (g *Grid) MarkRowDirty(r int) {
	g.dirty[r] = span{0, g.cols}
}

// MarkAllDirty marks every row dirty.
func (g *Grid) MarkAllDirty() {
	for r := range g.dirty {
		g.dirty[r] = span{0, g.cols}
	}
}

// Dirty returns the dirty column range of row r.
func (g *Grid) Dirty(r int) (lo, hi int, ok bool) {
	d := g.dirty[r]
	return d.lo, d.hi, !d.empty()
}

// ClearDirty marks every row clean.
func (g *Grid) ClearDirty() {
	clear(g.dirty)
}

// Fill sets columns [lo, hi) of row r to cell.
func (g *Grid) Fill(r, lo, hi int, cell Cell) {
	lo = max(lo, 0)
	hi = min(hi, g.cols)
	if lo >= hi {
		return
	}
	g.fixWide(r, lo)
	g.fixWide(r, hi-1)
	cells := g.lines[r].Cells
	for c := lo; c < hi; c++ {
		cells[c] = cell
	}
	g.markDirty(r, lo, hi)
}

// ClearLine blanks an entire row and drops its wrap flag.
func (g *Grid) ClearLine(r int, style Style) {
	g.lines[r] = NewLine(g.cols, style)
	g.MarkRowDirty(r)
}

// fixWide blanks the other half of a wide character that occupies column c
// so that overwriting one half never leaves an orphan.
func (g *Grid) fixWide(r, c int) {
	if c < 0 || c >= g.cols {
		return
	}
	cells := g.lines[r].Cells
	cell := cells[c]
	switch {
	case cell.Width == 2 && c+1 < g.cols:
		cells[c+1] = BlankCell(cell.Style())
		g.markDirty(r, c+1, c+2)
	case cell.Width == 0 && c > 0:
		cells[c-1] = BlankCell(cells[c-1].Style())
		g.markDirty(r, c-1, c)
	}
}

// ScrollUp moves rows [top, bottom] up by n, filling the bottom with blank
// rows. The rows shifted out of the top are returned in order.
func (g *Grid) ScrollUp(top, bottom, n int, style Style) []Line {
	height := bottom - top + 1
	n = min(n, height)
	if n <= 0 {
		return nil
	}
	evicted := make([]Line, n)
	copy(evicted, g.lines[top:top+n])
	copy(g.lines[top:], g.lines[top+n:bottom+1])
	for r := bottom - n + 1; r <= bottom; r++ {
		g.lines[r] = NewLine(g.cols, style)
	}
	for r := top; r <= bottom; r++ {
		g.MarkRowDirty(r)
	}
	return evicted
}

// ScrollDown moves rows [top, bottom] down by n, filling the top with blank
// rows. Rows pushed past bottom are discarded.
func (g *Grid) ScrollDown(top, bottom, n int, style Style) {
	height := bottom - top + 1
	n = min(n, height)
	if n <= 0 {
		return
	}
	copy(g.lines[top+n:bottom+1], g.lines[top:bottom+1-n])
	for r := top; r < top+n; r++ {
		g.lines[r] = NewLine(g.cols, style)
	}
	for r := top; r <= bottom; r++ {
		g.MarkRowDirty(r)
	}
}

// InsertCells shifts cells at and after column c right by n, discarding
// those pushed past the right edge.
func (g *Grid) InsertCells(r, c, n int, style Style) {
	if c >= g.cols || n <= 0 {
		return
	}
	n = min(n, g.cols-c)
	cells := g.lines[r].Cells
	// Inserting inside a wide pair splits it, so both halves go; a pair
	// starting at c shifts as a unit.
	if cells[c].Width == 0 {
		g.fixWide(r, c)
		cells[c] = BlankCell(cells[c].Style())
	}
	copy(cells[c+n:], cells[c:g.cols-n])
	blank := BlankCell(style)
	for i := c; i < c+n; i++ {
		cells[i] = blank
	}
	// A wide character split by the right edge loses its right half.
	if last := cells[g.cols-1]; last.Width == 2 {
		cells[g.cols-1] = BlankCell(last.Style())
	}
	g.markDirty(r, c, g.cols)
}

// DeleteCells removes n cells at column c, shifting the rest left and
// filling the right edge with blanks.
func (g *Grid) DeleteCells(r, c, n int, style Style) {
	if c >= g.cols || n <= 0 {
		return
	}
	n = min(n, g.cols-c)
	g.fixWide(r, c)
	g.fixWide(r, c+n-1)
	cells := g.lines[r].Cells
	copy(cells[c:], cells[c+n:])
	blank := BlankCell(style)
	for i := g.cols - n; i < g.cols; i++ {
		cells[i] = blank
	}
	g.markDirty(r, c, g.cols)
}

// resizeCols truncates or pads every row to cols. Soft-wrap flags are
// dropped since the wrap points no longer hold. Row count is handled by the
// Terminal.
func (g *Grid) resizeCols(cols int) {
	if cols == g.cols {
		return
	}
	for r := range g.lines {
		g.lines[r] = resizeLine(g.lines[r], cols)
	}
	g.cols = cols
}

func resizeLine(l Line, cols int) Line {
	if len(l.Cells) >= cols {
		cells := make([]Cell, cols)
		copy(cells, l.Cells[:cols])
		if last := cells[cols-1]; last.Width == 2 {
			cells[cols-1] = BlankCell(last.Style())
		}
		return Line{Cells: cells}
	}
	out := NewLine(cols, Style{})
	copy(out.Cells, l.Cells)
	return out
}
