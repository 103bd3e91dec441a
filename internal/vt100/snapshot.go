package vt100

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/fnv"
	"slices"
	"strings"
)

// ErrGap is returned when a delta does not start at the snapshot's
// generation.
var ErrGap = errors.New("delta does not follow snapshot generation")

// Snapshot is an immutable copy of the visible terminal state at one
// generation. Lines are shared between consecutive snapshots when the row
// did not change, so a Snapshot and its Lines must never be modified.
type Snapshot struct {
	Generation    uint64      `json:"generation"`
	Rows          int         `json:"rows"`
	Cols          int         `json:"cols"`
	Lines         []Line      `json:"lines"`
	Cursor        CursorState `json:"cursor"`
	Modes         ModeSet     `json:"modes"`
	AltScreen     bool        `json:"alt_screen,omitempty"`
	Title         string      `json:"title,omitempty"`
	IconName      string      `json:"icon_name,omitempty"`
	WorkingDir    string      `json:"working_dir,omitempty"`
	ScrollbackLen int         `json:"scrollback_len"`
	Bells         uint64      `json:"bells,omitempty"`
}

// DirtyCell is one changed cell in a Delta.
type DirtyCell struct {
	Row  int  `json:"row"`
	Col  int  `json:"col"`
	Cell Cell `json:"cell"`
}

// RowWrap carries the soft-wrap flag of a changed row.
type RowWrap struct {
	Row     int  `json:"row"`
	Wrapped bool `json:"wrapped"`
}

// Delta lists what changed between two generations: the dirty cells and
// the full cursor, mode and metadata state at To.
type Delta struct {
	From          uint64      `json:"from"`
	To            uint64      `json:"to"`
	Rows          int         `json:"rows"`
	Cols          int         `json:"cols"`
	Cells         []DirtyCell `json:"cells,omitempty"`
	Wraps         []RowWrap   `json:"wraps,omitempty"`
	Cursor        CursorState `json:"cursor"`
	Modes         ModeSet     `json:"modes"`
	AltScreen     bool        `json:"alt_screen,omitempty"`
	Title         string      `json:"title,omitempty"`
	IconName      string      `json:"icon_name,omitempty"`
	WorkingDir    string      `json:"working_dir,omitempty"`
	ScrollbackLen int         `json:"scrollback_len"`
	Bells         uint64      `json:"bells,omitempty"`
}

// Commit captures the current state as a Snapshot and the Delta from prev,
// then marks everything clean. Rows that are clean are shared with prev.
// prev may be nil for the first commit, in which case the delta lists only
// the cells dirtied so far.
func (t *Terminal) Commit(prev *Snapshot) (*Snapshot, Delta) {
	s := &Snapshot{
		Generation:    t.gen,
		Rows:          t.rows,
		Cols:          t.cols,
		Lines:         make([]Line, t.rows),
		Cursor:        t.CursorState(),
		Modes:         t.modes,
		AltScreen:     t.alt,
		Title:         t.title,
		IconName:      t.iconName,
		WorkingDir:    t.workingDir,
		ScrollbackLen: t.scrollback.Len(),
		Bells:         t.bells,
	}
	d := Delta{To: t.gen}
	if prev != nil {
		d.From = prev.Generation
	}

	reuse := prev != nil && prev.Rows == t.rows && prev.Cols == t.cols
	for r := 0; r < t.rows; r++ {
		lo, hi, dirty := t.grid.Dirty(r)
		if !dirty && reuse {
			s.Lines[r] = prev.Lines[r]
			continue
		}
		line := t.grid.lines[r]
		s.Lines[r] = line.Clone()
		if !dirty {
			continue
		}
		for c := lo; c < hi; c++ {
			d.Cells = append(d.Cells, DirtyCell{Row: r, Col: c, Cell: line.Cells[c]})
		}
		d.Wraps = append(d.Wraps, RowWrap{Row: r, Wrapped: line.Wrapped})
	}
	t.primary.ClearDirty()
	t.alternate.ClearDirty()

	d.setState(s)
	return s, d
}

func (d *Delta) setState(s *Snapshot) {
	d.Rows = s.Rows
	d.Cols = s.Cols
	d.Cursor = s.Cursor
	d.Modes = s.Modes
	d.AltScreen = s.AltScreen
	d.Title = s.Title
	d.IconName = s.IconName
	d.WorkingDir = s.WorkingDir
	d.ScrollbackLen = s.ScrollbackLen
	d.Bells = s.Bells
}

// Empty reports whether the delta carries no cell changes.
func (d Delta) Empty() bool {
	return len(d.Cells) == 0 && len(d.Wraps) == 0
}

// Apply returns the snapshot that results from applying d to s. Rows not
// touched by d are shared with s. A delta that changes the dimensions is
// applied onto a blank grid of the new size.
func (s *Snapshot) Apply(d Delta) (*Snapshot, error) {
	if d.From != s.Generation {
		return nil, fmt.Errorf("%w: snapshot at %d, delta from %d", ErrGap, s.Generation, d.From)
	}

	out := &Snapshot{
		Generation:    d.To,
		Rows:          d.Rows,
		Cols:          d.Cols,
		Cursor:        d.Cursor,
		Modes:         d.Modes,
		AltScreen:     d.AltScreen,
		Title:         d.Title,
		IconName:      d.IconName,
		WorkingDir:    d.WorkingDir,
		ScrollbackLen: d.ScrollbackLen,
		Bells:         d.Bells,
	}

	owned := make([]bool, d.Rows)
	if d.Rows == s.Rows && d.Cols == s.Cols {
		out.Lines = slices.Clone(s.Lines)
	} else {
		out.Lines = make([]Line, d.Rows)
		for r := range out.Lines {
			out.Lines[r] = NewLine(d.Cols, Style{})
			owned[r] = true
		}
	}

	own := func(r int) *Line {
		if !owned[r] {
			out.Lines[r] = out.Lines[r].Clone()
			owned[r] = true
		}
		return &out.Lines[r]
	}

	for _, dc := range d.Cells {
		if dc.Row < 0 || dc.Row >= d.Rows || dc.Col < 0 || dc.Col >= d.Cols {
			continue
		}
		own(dc.Row).Cells[dc.Col] = dc.Cell
	}
	for _, w := range d.Wraps {
		if w.Row < 0 || w.Row >= d.Rows {
			continue
		}
		if out.Lines[w.Row].Wrapped != w.Wrapped {
			own(w.Row).Wrapped = w.Wrapped
		}
	}
	return out, nil
}

// MergeDeltas folds consecutive deltas into one spanning the first From to
// the last To. Later cells win. A change of dimensions discards the cells
// accumulated before it, since such a delta already lists the whole grid.
// It reports false when the deltas are not contiguous.
func MergeDeltas(ds []Delta) (Delta, bool) {
	if len(ds) == 0 {
		return Delta{}, false
	}
	if len(ds) == 1 {
		return ds[0], true
	}

	type pos struct{ row, col int }
	cells := make(map[pos]Cell)
	wraps := make(map[int]bool)

	out := Delta{From: ds[0].From}
	rows, cols := ds[0].Rows, ds[0].Cols
	for i, d := range ds {
		if i > 0 && d.From != ds[i-1].To {
			return Delta{}, false
		}
		if d.Rows != rows || d.Cols != cols {
			clear(cells)
			clear(wraps)
			rows, cols = d.Rows, d.Cols
		}
		for _, dc := range d.Cells {
			cells[pos{dc.Row, dc.Col}] = dc.Cell
		}
		for _, w := range d.Wraps {
			wraps[w.Row] = w.Wrapped
		}
		out.To = d.To
		out.Rows, out.Cols = d.Rows, d.Cols
		out.Cursor = d.Cursor
		out.Modes = d.Modes
		out.AltScreen = d.AltScreen
		out.Title = d.Title
		out.IconName = d.IconName
		out.WorkingDir = d.WorkingDir
		out.ScrollbackLen = d.ScrollbackLen
		out.Bells = d.Bells
	}

	out.Cells = make([]DirtyCell, 0, len(cells))
	for p, c := range cells {
		out.Cells = append(out.Cells, DirtyCell{Row: p.row, Col: p.col, Cell: c})
	}
	slices.SortFunc(out.Cells, func(a, b DirtyCell) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	out.Wraps = make([]RowWrap, 0, len(wraps))
	for r, w := range wraps {
		out.Wraps = append(out.Wraps, RowWrap{Row: r, Wrapped: w})
	}
	slices.SortFunc(out.Wraps, func(a, b RowWrap) int { return a.Row - b.Row })
	return out, true
}

// Cell returns the cell at (row, col).
func (s *Snapshot) Cell(row, col int) Cell {
	return s.Lines[row].Cells[col]
}

// Text returns each row as plain text with trailing blanks trimmed.
func (s *Snapshot) Text() []string {
	out := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		out[i] = l.String()
	}
	return out
}

// Contents returns the screen text as a single string.
func (s *Snapshot) Contents() string {
	return strings.Join(s.Text(), "\n")
}

// Hash computes an FNV-64a hash of the grid and cursor for change
// detection. It matches Terminal.Hash for the same state.
func (s *Snapshot) Hash() uint64 {
	h := fnv.New64a()
	for _, l := range s.Lines {
		for _, c := range l.Cells {
			h.Write([]byte(c.Content))
		}
	}
	hashCursor(h, s.Cursor.Row, s.Cursor.Col)
	return h.Sum64()
}

// hashCursor folds the cursor position into h at full width.
func hashCursor(h hash.Hash64, row, col int) {
	var buf [2 * binary.MaxVarintLen64]byte
	b := binary.AppendUvarint(buf[:0], uint64(row))
	b = binary.AppendUvarint(b, uint64(col))
	h.Write(b)
}
