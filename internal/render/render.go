// Package render turns terminal snapshots and deltas back into ANSI byte
// streams for real terminals (SSH clients, the replay command).
//
// Feeding the output of Snapshot to a fresh terminal of the same size
// reproduces every cell of the snapshot.
package render

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/trybotster/seshterm/internal/vt100"
)

// SGRParams returns the SGR parameter string that selects style from a
// reset pen, e.g. "0;1;38;5;196".
func SGRParams(s vt100.Style) string {
	params := []string{"0"}
	attrs := []struct {
		attr vt100.Attr
		code string
	}{
		{vt100.AttrBold, "1"},
		{vt100.AttrFaint, "2"},
		{vt100.AttrItalic, "3"},
		{vt100.AttrUnderline, "4"},
		{vt100.AttrBlink, "5"},
		{vt100.AttrInverse, "7"},
		{vt100.AttrInvisible, "8"},
		{vt100.AttrStrike, "9"},
	}
	for _, a := range attrs {
		if s.Attrs&a.attr != 0 {
			params = append(params, a.code)
		}
	}
	params = appendColor(params, s.FG, 30, 90, 38)
	params = appendColor(params, s.BG, 40, 100, 48)
	return strings.Join(params, ";")
}

func appendColor(params []string, c vt100.Color, base, brightBase, extended int) []string {
	switch c.Kind {
	case vt100.ColorIndexed:
		switch {
		case c.Index < 8:
			return append(params, strconv.Itoa(base+int(c.Index)))
		case c.Index < 16:
			return append(params, strconv.Itoa(brightBase+int(c.Index)-8))
		default:
			return append(params, strconv.Itoa(extended), "5", strconv.Itoa(int(c.Index)))
		}
	case vt100.ColorRGB:
		return append(params, strconv.Itoa(extended), "2",
			strconv.Itoa(int(c.R)), strconv.Itoa(int(c.G)), strconv.Itoa(int(c.B)))
	}
	return params
}

// SGR returns the escape sequence that selects style from any pen.
func SGR(s vt100.Style) []byte {
	return []byte("\x1b[" + SGRParams(s) + "m")
}

type writer struct {
	buf bytes.Buffer
	pen vt100.Style
	set bool
}

func (w *writer) style(s vt100.Style) {
	if w.set && w.pen == s {
		return
	}
	w.buf.Write(SGR(s))
	w.pen = s
	w.set = true
}

func (w *writer) moveTo(row, col int) {
	w.buf.WriteString("\x1b[")
	w.buf.WriteString(strconv.Itoa(row + 1))
	w.buf.WriteByte(';')
	w.buf.WriteString(strconv.Itoa(col + 1))
	w.buf.WriteByte('H')
}

// cells writes cells starting at the current position. Blank cells are
// drawn with ECH so they stay empty rather than becoming spaces.
func (w *writer) cells(cells []vt100.Cell) {
	for i := 0; i < len(cells); {
		c := cells[i]
		switch {
		case c.IsContinuation():
			i++
		case c.Content == "":
			n := 1
			for i+n < len(cells) && cells[i+n].Content == "" && cells[i+n].Width == 1 && cells[i+n].BG == c.BG {
				n++
			}
			w.style(vt100.Style{BG: c.BG})
			w.buf.WriteString("\x1b[" + strconv.Itoa(n) + "X")
			w.buf.WriteString("\x1b[" + strconv.Itoa(n) + "C")
			i += n
		default:
			w.style(c.Style())
			w.buf.WriteString(c.Content)
			i++
		}
	}
}

func (w *writer) cursor(c vt100.CursorState) {
	w.buf.WriteString("\x1b[0m")
	w.moveTo(c.Row, c.Col)
	if c.Visible {
		w.buf.WriteString("\x1b[?25h")
	} else {
		w.buf.WriteString("\x1b[?25l")
	}
}

// Title renders an OSC 2 sequence setting the window title. Control
// characters (C0, DEL, C1) and invalid UTF-8 are dropped so the child
// cannot end the string early and smuggle in a sequence of its own.
func Title(title string) []byte {
	out := make([]byte, 0, len(title)+5)
	out = append(out, "\x1b]2;"...)
	for i := 0; i < len(title); {
		r, size := utf8.DecodeRuneInString(title[i:])
		if !(r == utf8.RuneError && size == 1) && r >= 0x20 && (r < 0x7f || r > 0x9f) {
			out = append(out, title[i:i+size]...)
		}
		i += size
	}
	return append(out, '\a')
}

// Snapshot renders a full redraw of s: clear, every row, title, then the
// cursor.
func Snapshot(s *vt100.Snapshot) []byte {
	var w writer
	w.buf.WriteString("\x1b[?25l\x1b[0m\x1b[H\x1b[2J")
	if s.Title != "" {
		w.buf.Write(Title(s.Title))
	}
	for r, line := range s.Lines {
		w.moveTo(r, 0)
		w.cells(line.Cells)
	}
	w.cursor(s.Cursor)
	return w.buf.Bytes()
}

// Line renders one row inline at the current cursor position, ending with
// an SGR reset. Blank cells become spaces.
func Line(l vt100.Line) []byte {
	var w writer
	for _, c := range l.Cells {
		if c.IsContinuation() {
			continue
		}
		w.style(c.Style())
		if c.Content == "" {
			w.buf.WriteByte(' ')
		} else {
			w.buf.WriteString(c.Content)
		}
	}
	w.buf.WriteString("\x1b[0m")
	return w.buf.Bytes()
}

// Delta renders the cells changed by d and the new cursor. Deltas that
// change the dimensions need a full Snapshot instead.
func Delta(d vt100.Delta) []byte {
	var w writer
	w.buf.WriteString("\x1b[?25l")
	cells := d.Cells
	for i := 0; i < len(cells); {
		// Group horizontally contiguous cells of a row into one run.
		j := i + 1
		for j < len(cells) && cells[j].Row == cells[i].Row && cells[j].Col == cells[j-1].Col+1 {
			j++
		}
		run := make([]vt100.Cell, j-i)
		for k := range run {
			run[k] = cells[i+k].Cell
		}
		col := cells[i].Col
		if run[0].IsContinuation() && col > 0 {
			// Never start a run on the right half of a wide character.
			col++
			run = run[1:]
		}
		w.moveTo(cells[i].Row, col)
		w.cells(run)
		i = j
	}
	w.cursor(d.Cursor)
	return w.buf.Bytes()
}
